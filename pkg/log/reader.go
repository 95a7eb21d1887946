package log

import (
	"errors"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader reads gateway events back from a CBOR capture file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
}

// OpenReader opens a capture file written by FileLogger.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
	}, nil
}

// Next returns the next event in the file, or io.EOF when exhausted.
func (r *Reader) Next() (Event, error) {
	var event Event
	if err := r.decoder.Decode(&event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// ReadAll reads every remaining event in the file.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
