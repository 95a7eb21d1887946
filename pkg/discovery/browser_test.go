package discovery

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/shc-gateway/shc-go/pkg/model"
)

func entryWithAddrs(addrs ...string) *zeroconf.ServiceEntry {
	entry := &zeroconf.ServiceEntry{}
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip.To4() != nil {
			entry.AddrIPv4 = append(entry.AddrIPv4, ip)
		} else {
			entry.AddrIPv6 = append(entry.AddrIPv6, ip)
		}
	}
	return entry
}

// fakeEntries wires a browser to a scripted entry stream and a scripted
// confirm function.
func fakeEntries(b *Browser, entries ...*zeroconf.ServiceEntry) {
	b.entrySource = func(ctx context.Context) <-chan *zeroconf.ServiceEntry {
		out := make(chan *zeroconf.ServiceEntry)
		go func() {
			defer close(out)
			for _, e := range entries {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	}
}

func TestDiscover_ConfirmsAndDeduplicates(t *testing.T) {
	b := NewBrowser(Config{Timeout: time.Second})
	fakeEntries(b,
		entryWithAddrs("192.168.1.2"),
		entryWithAddrs("192.168.1.3"),    // not a controller
		entryWithAddrs("192.168.1.2"),    // duplicate candidate, not re-probed
		entryWithAddrs("192.168.178.44"), // second interface of the same controller
	)

	var probes atomic.Int32
	b.confirm = func(ctx context.Context, address string) (*model.PublicInformation, error) {
		probes.Add(1)
		switch address {
		case "192.168.1.2", "192.168.178.44":
			return &model.PublicInformation{
				ShcIPAddress: "192.168.1.2",
				MacAddress:   "64-da-a0-02-14-9b",
			}, nil
		default:
			return nil, errors.New("connection refused")
		}
	}

	found, err := b.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("len(found) = %d, want 1", len(found))
	}
	if found[0].IPAddress != "192.168.1.2" || found[0].MacAddress != "64-da-a0-02-14-9b" {
		t.Errorf("found[0] = %+v", found[0])
	}
	// Three distinct addresses, one of them seen twice.
	if got := probes.Load(); got != 3 {
		t.Errorf("probes = %d, want 3", got)
	}
}

func TestDiscover_CanonicalAddressWins(t *testing.T) {
	b := NewBrowser(Config{Timeout: time.Second})
	fakeEntries(b, entryWithAddrs("10.0.0.7"))
	b.confirm = func(ctx context.Context, address string) (*model.PublicInformation, error) {
		// Reached on one interface, canonical address on another.
		return &model.PublicInformation{ShcIPAddress: "192.168.1.2"}, nil
	}

	found, err := b.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 1 || found[0].IPAddress != "192.168.1.2" {
		t.Errorf("found = %+v, want canonical 192.168.1.2", found)
	}
}

func TestDiscover_EmptyWindow(t *testing.T) {
	b := NewBrowser(Config{Timeout: 50 * time.Millisecond})
	b.entrySource = func(ctx context.Context) <-chan *zeroconf.ServiceEntry {
		return make(chan *zeroconf.ServiceEntry) // never yields
	}

	found, err := b.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 0 {
		t.Errorf("found = %+v, want none", found)
	}
}

func TestFindFirst_StopsEarly(t *testing.T) {
	b := NewBrowser(Config{Timeout: 5 * time.Second})
	fakeEntries(b,
		entryWithAddrs("192.168.1.3"),
		entryWithAddrs("192.168.1.2"),
		entryWithAddrs("192.168.1.9"),
	)

	var probes atomic.Int32
	b.confirm = func(ctx context.Context, address string) (*model.PublicInformation, error) {
		probes.Add(1)
		if address == "192.168.1.2" {
			return &model.PublicInformation{ShcIPAddress: "192.168.1.2", ShcGeneration: "SHC_1"}, nil
		}
		return nil, errors.New("connection refused")
	}

	start := time.Now()
	controller, err := b.FindFirst(context.Background())
	if err != nil {
		t.Fatalf("FindFirst() error = %v", err)
	}
	if controller.IPAddress != "192.168.1.2" || controller.Generation != "SHC_1" {
		t.Errorf("controller = %+v", controller)
	}
	// Stops at the first confirmation instead of waiting out the window.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("FindFirst() took %v", elapsed)
	}
	if got := probes.Load(); got != 2 {
		t.Errorf("probes = %d, want 2", got)
	}
}

func TestFindFirst_NotFound(t *testing.T) {
	b := NewBrowser(Config{Timeout: 50 * time.Millisecond})
	fakeEntries(b, entryWithAddrs("192.168.1.3"))
	b.confirm = func(ctx context.Context, address string) (*model.PublicInformation, error) {
		return nil, errors.New("connection refused")
	}

	if _, err := b.FindFirst(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindFirst() error = %v, want ErrNotFound", err)
	}
}

func TestEntryAddresses(t *testing.T) {
	entry := entryWithAddrs("192.168.1.2", "fe80::1")
	got := entryAddresses(entry)
	if len(got) != 2 || got[0] != "192.168.1.2" || got[1] != "fe80::1" {
		t.Errorf("entryAddresses() = %v", got)
	}
}
