// Command shc-capture is a tool for viewing and analyzing gateway event
// capture files.
//
// Capture files are created by running shc-gateway with the -capture flag.
//
// Usage:
//
//	shc-capture <command> [flags] <file.clog>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	shc-capture view gateway.clog
//
//	# View only long-poll activity
//	shc-capture view -category LONGPOLL gateway.clog
//
//	# Export to JSONL
//	shc-capture export gateway.clog > gateway.jsonl
//
//	# Show statistics
//	shc-capture stats gateway.clog
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shc-gateway/shc-go/pkg/log"
)

const usage = `shc-capture - Gateway event capture analyzer

Usage:
  shc-capture <command> [flags] <file.clog>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL
  stats    Show statistics about the capture file

Use "shc-capture <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "view":
		err = cmdView(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "shc-capture: %v\n", err)
		os.Exit(1)
	}
}

func cmdView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	category := fs.String("category", "", "Only show events of this category (HTTP, PAIRING, LONGPOLL, DISPATCH, STATE, ERROR, DISCOVERY)")
	device := fs.String("device", "", "Only show events for this device id")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("view: expected exactly one capture file")
	}

	return forEachEvent(fs.Arg(0), func(event log.Event) error {
		if *category != "" && !strings.EqualFold(event.Category.String(), *category) {
			return nil
		}
		if *device != "" && event.DeviceID != *device {
			return nil
		}
		formatEvent(os.Stdout, event)
		return nil
	})
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("export: expected exactly one capture file")
	}

	encoder := json.NewEncoder(os.Stdout)
	return forEachEvent(fs.Arg(0), func(event log.Event) error {
		return encoder.Encode(exportRecord(event))
	})
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("stats: expected exactly one capture file")
	}

	var (
		total      int
		byCategory = make(map[string]int)
		byDevice   = make(map[string]int)
		errCount   int
	)
	err := forEachEvent(fs.Arg(0), func(event log.Event) error {
		total++
		byCategory[event.Category.String()]++
		if event.DeviceID != "" {
			byDevice[event.DeviceID]++
		}
		if event.Error != nil {
			errCount++
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Events: %d (%d errors)\n\n", total, errCount)
	fmt.Println("By category:")
	for _, name := range sortedKeys(byCategory) {
		fmt.Printf("  %-10s %d\n", name, byCategory[name])
	}
	if len(byDevice) > 0 {
		fmt.Println("\nBy device:")
		for _, id := range sortedKeys(byDevice) {
			fmt.Printf("  %-45s %d\n", id, byDevice[id])
		}
	}
	return nil
}

func forEachEvent(path string, fn func(log.Event) error) error {
	reader, err := log.OpenReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading capture: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s %-3s %-9s", ts, event.Direction, event.Category)
	if event.DeviceID != "" {
		fmt.Fprintf(w, " device=%s", event.DeviceID)
	}
	if event.Service != "" {
		fmt.Fprintf(w, " service=%s", event.Service)
	}
	fmt.Fprintln(w)

	switch {
	case event.HTTP != nil:
		fmt.Fprintf(w, "  %s %s -> %d (%d bytes, %s)\n",
			event.HTTP.Method, event.HTTP.Path, event.HTTP.Status,
			event.HTTP.BodySize, event.HTTP.Duration)
	case event.Poll != nil:
		fmt.Fprintf(w, "  %s", event.Poll.Method)
		if event.Poll.SubscriptionID != "" {
			fmt.Fprintf(w, " sub=%s", event.Poll.SubscriptionID)
		}
		if event.Poll.BatchSize > 0 {
			fmt.Fprintf(w, " batch=%d", event.Poll.BatchSize)
		}
		if event.Poll.ErrorCode != 0 {
			fmt.Fprintf(w, " error=%d", event.Poll.ErrorCode)
		}
		fmt.Fprintln(w)
	case event.StateChange != nil:
		fmt.Fprintf(w, "  %s: %s -> %s", event.StateChange.Entity,
			event.StateChange.OldState, event.StateChange.NewState)
		if event.StateChange.Reason != "" {
			fmt.Fprintf(w, " (%s)", event.StateChange.Reason)
		}
		fmt.Fprintln(w)
	case event.Pairing != nil:
		fmt.Fprintf(w, "  step=%s", event.Pairing.Step)
		if event.Pairing.Status != 0 {
			fmt.Fprintf(w, " status=%d", event.Pairing.Status)
		}
		fmt.Fprintln(w)
	case event.Error != nil:
		fmt.Fprintf(w, "  %s", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, " (%s)", event.Error.Context)
		}
		fmt.Fprintln(w)
	}
}

// exportRecord flattens an event for JSONL export.
func exportRecord(event log.Event) map[string]any {
	record := map[string]any{
		"timestamp": event.Timestamp,
		"bridgeId":  event.BridgeID,
		"direction": event.Direction.String(),
		"category":  event.Category.String(),
	}
	if event.ControllerAddr != "" {
		record["controllerAddr"] = event.ControllerAddr
	}
	if event.DeviceID != "" {
		record["deviceId"] = event.DeviceID
	}
	if event.Service != "" {
		record["service"] = event.Service
	}
	switch {
	case event.HTTP != nil:
		record["http"] = event.HTTP
	case event.Poll != nil:
		record["poll"] = event.Poll
	case event.StateChange != nil:
		record["stateChange"] = map[string]any{
			"entity":   event.StateChange.Entity.String(),
			"oldState": event.StateChange.OldState,
			"newState": event.StateChange.NewState,
			"reason":   event.StateChange.Reason,
		}
	case event.Pairing != nil:
		record["pairing"] = event.Pairing
	case event.Error != nil:
		record["error"] = event.Error
	}
	return record
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
