package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/shc-gateway/shc-go/pkg/httpclient"
	"github.com/shc-gateway/shc-go/pkg/log"
	"github.com/shc-gateway/shc-go/pkg/model"
)

const (
	// ServiceType is the mDNS service controllers announce.
	ServiceType = "_http._tcp"

	// Domain is the mDNS browse domain.
	Domain = "local."

	// DefaultTimeout bounds one browse pass.
	DefaultTimeout = 10 * time.Second

	// confirmTimeout bounds one public information probe.
	confirmTimeout = 5 * time.Second
)

// ErrNotFound is returned by FindFirst when no controller confirmed within
// the browse window.
var ErrNotFound = errors.New("no controller found")

// Controller is one confirmed controller.
type Controller struct {
	// IPAddress is the canonical address from the controller's public
	// information document.
	IPAddress string

	// MacAddress is the controller's MAC-derived identifier.
	MacAddress string

	// Generation is the reported hardware generation, e.g. "SHC_1".
	Generation string
}

// Config configures a Browser.
type Config struct {
	// Timeout bounds one browse pass. Default: DefaultTimeout.
	Timeout time.Duration

	// Interface restricts browsing to one network interface. Empty means
	// all interfaces.
	Interface string

	// Logger receives one event per candidate probe. Nil disables
	// logging.
	Logger log.Logger

	// BridgeID tags log events.
	BridgeID string
}

// confirmFunc probes one candidate address for the public information
// document. Swapped out in tests.
type confirmFunc func(ctx context.Context, address string) (*model.PublicInformation, error)

// Browser discovers controllers via mDNS.
type Browser struct {
	cfg     Config
	logger  log.Logger
	confirm confirmFunc

	// entrySource yields candidate entries. Swapped out in tests.
	entrySource func(ctx context.Context) <-chan *zeroconf.ServiceEntry
}

// NewBrowser creates a Browser.
func NewBrowser(cfg Config) *Browser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	b := &Browser{
		cfg:     cfg,
		logger:  log.OrNoop(cfg.Logger),
		confirm: confirmCandidate,
	}
	b.entrySource = b.zeroconfEntries
	return b
}

// Discover browses for one timeout window and returns every confirmed
// controller, deduplicated by canonical address.
func (b *Browser) Discover(ctx context.Context) ([]Controller, error) {
	var (
		mu    sync.Mutex
		found []Controller
		seen  = make(map[string]bool)
	)
	err := b.browse(ctx, func(c Controller) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[c.IPAddress] {
			seen[c.IPAddress] = true
			found = append(found, c)
		}
		return false
	})
	return found, err
}

// FindFirst returns the first confirmed controller, stopping the browse as
// soon as one confirms. Returns ErrNotFound when the window elapses empty.
func (b *Browser) FindFirst(ctx context.Context) (Controller, error) {
	var (
		mu     sync.Mutex
		result Controller
		hit    bool
	)
	err := b.browse(ctx, func(c Controller) bool {
		mu.Lock()
		defer mu.Unlock()
		result = c
		hit = true
		return true
	})
	if err != nil {
		return Controller{}, err
	}
	if !hit {
		return Controller{}, ErrNotFound
	}
	return result, nil
}

// browse runs one mDNS browse pass, probing each candidate address once.
// handle returns true to stop early.
func (b *Browser) browse(ctx context.Context, handle func(Controller) bool) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	return b.consume(ctx, b.entrySource(ctx), handle)
}

// zeroconfEntries starts a zeroconf browse and returns its entry channel.
func (b *Browser) zeroconfEntries(ctx context.Context) <-chan *zeroconf.ServiceEntry {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	go func() {
		for range removed {
		}
	}()
	go func() {
		defer close(removed)
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.options()...)
	}()
	return entries
}

// consume probes candidate entries as they arrive. handle returns true to
// stop early.
func (b *Browser) consume(ctx context.Context, entries <-chan *zeroconf.ServiceEntry, handle func(Controller) bool) error {
	probed := make(map[string]bool)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			for _, address := range entryAddresses(entry) {
				if probed[address] {
					continue
				}
				probed[address] = true
				controller, ok := b.probe(ctx, address)
				if !ok {
					continue
				}
				if handle(controller) {
					return nil
				}
			}
		case <-ctx.Done():
			// The browse window elapsing is the normal end of a pass.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		}
	}
}

// probe confirms one candidate address and logs the outcome.
func (b *Browser) probe(ctx context.Context, address string) (Controller, bool) {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	info, err := b.confirm(ctx, address)
	if err != nil {
		b.logProbe(address, err)
		return Controller{}, false
	}
	if info.ShcIPAddress == "" {
		return Controller{}, false
	}
	b.logProbe(address, nil)
	return Controller{
		IPAddress:  info.ShcIPAddress,
		MacAddress: info.MacAddress,
		Generation: info.ShcGeneration,
	}, true
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.cfg.Interface != "" {
		if iface, err := net.InterfaceByName(b.cfg.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

func (b *Browser) logProbe(address string, err error) {
	event := log.Event{
		Timestamp:      time.Now(),
		BridgeID:       b.cfg.BridgeID,
		Direction:      log.DirectionIn,
		Category:       log.CategoryDiscovery,
		ControllerAddr: address,
	}
	if err != nil {
		event.Error = &log.ErrorEventData{Message: err.Error(), Context: "candidate probe"}
	}
	b.logger.Log(event)
}

// entryAddresses collects a service entry's addresses, IPv4 first.
func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addresses := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addresses = append(addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addresses = append(addresses, ip.String())
	}
	return addresses
}

// confirmCandidate fetches the public information document from a
// candidate. Any web server answers the browse; only a controller answers
// this.
func confirmCandidate(ctx context.Context, address string) (*model.PublicInformation, error) {
	client, err := httpclient.New(httpclient.Config{Host: address})
	if err != nil {
		return nil, err
	}
	return client.PublicInformation(ctx)
}
