// Package longpoll maintains the subscription to a controller's remote
// event channel and delivers decoded notifications.
//
// The driver is a single-goroutine state machine; each iteration either
// subscribes, polls, or waits out a backoff. One outstanding HTTP request
// at most, re-entry only after the prior call settles. Notifications of a
// batch are dispatched in order, which gives per-device ordering for free.
package longpoll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shc-gateway/shc-go/pkg/httpclient"
	"github.com/shc-gateway/shc-go/pkg/log"
	"github.com/shc-gateway/shc-go/pkg/model"
)

// Defaults for the poll loop timing.
const (
	// DefaultWaitSeconds is the server-side hold time per poll.
	DefaultWaitSeconds = 20

	// DefaultReadTimeout bounds the client side of a poll. Strictly
	// greater than the server-side wait so the full hold is usable.
	DefaultReadTimeout = 30 * time.Second

	// DefaultRetryDelay is the fixed backoff after transport failures.
	// No exponential growth: the controller is local and responsiveness
	// matters more than politeness.
	DefaultRetryDelay = 5 * time.Second

	// DefaultResubscribeDelay is the fixed backoff after a failed
	// re-subscription following a subscription invalidation.
	DefaultResubscribeDelay = 10 * time.Second
)

// ErrTerminated is returned by Start when the driver was stopped before.
var ErrTerminated = errors.New("driver terminated")

// Config configures a Driver.
type Config struct {
	// Client issues the JSON-RPC requests. The driver shares it with the
	// rest of the bridge; the controller limits distinct client
	// identities.
	Client *httpclient.Client

	// Dispatch receives each notification of a poll batch, in batch
	// order, from the driver goroutine. Must not block for long.
	Dispatch func(model.Notification)

	// Logger receives poll and state transition events.
	Logger log.Logger

	// BridgeID tags log events.
	BridgeID string

	WaitSeconds      int
	ReadTimeout      time.Duration
	RetryDelay       time.Duration
	ResubscribeDelay time.Duration
}

// Driver runs the long-poll loop against one controller.
type Driver struct {
	cfg Config

	mu             sync.Mutex
	state          State
	subscriptionID string
	started        bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Driver. Zero timing fields take the defaults.
func New(cfg Config) *Driver {
	if cfg.WaitSeconds == 0 {
		cfg.WaitSeconds = DefaultWaitSeconds
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.ResubscribeDelay == 0 {
		cfg.ResubscribeDelay = DefaultResubscribeDelay
	}
	cfg.Logger = log.OrNoop(cfg.Logger)
	return &Driver{
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start launches the poll loop. It returns immediately; the loop runs
// until Stop is called or ctx is cancelled.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateTerminated {
		return ErrTerminated
	}
	if d.started {
		return nil
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	go d.run(ctx)
	return nil
}

// Stop terminates the loop and waits for it to exit. A best-effort
// RE/unsubscribe is sent for any active subscription; the controller
// ignores unknown ids.
func (d *Driver) Stop(ctx context.Context) {
	d.mu.Lock()
	cancel := d.cancel
	started := d.started
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		select {
		case <-d.done:
		case <-ctx.Done():
			return
		}
	} else {
		d.setState(StateTerminated, "stopped before start")
	}

	d.mu.Lock()
	subID := d.subscriptionID
	d.subscriptionID = ""
	d.mu.Unlock()

	if subID == "" {
		return
	}
	unsubCtx, cancelUnsub := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancelUnsub()
	if _, err := d.cfg.Client.RPC(unsubCtx, model.NewUnsubscribeRequest(subID)); err != nil {
		d.logError(err, "unsubscribe")
	}
	d.logPoll(model.MethodUnsubscribe, subID, 0, 0)
}

// State returns the current driver state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SubscriptionID returns the active subscription id, empty when none.
func (d *Driver) SubscriptionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscriptionID
}

func (d *Driver) run(ctx context.Context) {
	defer close(d.done)
	defer d.setState(StateTerminated, "shutdown")

	// Set after a subscription invalidation so a failing re-subscribe
	// backs off longer than a plain transport failure.
	afterInvalidation := false

	for {
		if ctx.Err() != nil {
			return
		}

		switch d.State() {
		case StateNoSubscription:
			if err := d.subscribe(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				delay := d.cfg.RetryDelay
				if afterInvalidation {
					delay = d.cfg.ResubscribeDelay
				}
				d.logError(err, "subscribe")
				if !d.backoff(ctx, delay, "subscribe failed") {
					return
				}
				continue
			}
			afterInvalidation = false
			d.setState(StatePolling, "subscribed")

		case StatePolling:
			result, err := d.poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var rpcErr *pollError
				if errors.As(err, &rpcErr) && rpcErr.subscriptionInvalid {
					// Invalid id: resubscribe immediately, no backoff.
					d.clearSubscription()
					afterInvalidation = true
					d.setState(StateNoSubscription, "subscription invalidated")
					continue
				}
				d.logError(err, "poll")
				if !d.backoff(ctx, d.cfg.RetryDelay, "poll failed") {
					return
				}
				d.clearSubscription()
				continue
			}
			for _, n := range result {
				d.cfg.Dispatch(n)
			}

		default:
			// backoff moves through StateBackoff synchronously; reaching
			// here means termination.
			return
		}
	}
}

// subscribe establishes a new subscription and records its id.
func (d *Driver) subscribe(ctx context.Context) error {
	body, err := d.cfg.Client.RPC(ctx, model.NewSubscribeRequest())
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	var result model.SubscribeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decoding subscribe result: %w", err)
	}
	if result.Result == "" {
		return d.asRPCError(body, "subscribe")
	}

	d.mu.Lock()
	d.subscriptionID = result.Result
	d.mu.Unlock()

	d.logPoll(model.MethodSubscribe, result.Result, 0, 0)
	return nil
}

// pollError carries a decoded JSON-RPC error from a poll response.
type pollError struct {
	code                int
	message             string
	subscriptionInvalid bool
}

func (e *pollError) Error() string {
	return fmt.Sprintf("poll error %d: %s", e.code, e.message)
}

// poll issues one long poll and returns the notification batch.
func (d *Driver) poll(ctx context.Context) ([]model.Notification, error) {
	subID := d.SubscriptionID()

	pollCtx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()

	body, err := d.cfg.Client.RPC(pollCtx, model.NewLongPollRequest(subID, d.cfg.WaitSeconds))
	if err != nil {
		return nil, fmt.Errorf("long poll: %w", err)
	}

	// Success and error responses share the endpoint; absence of result
	// means the body carries an error envelope.
	var probe struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decoding poll response: %w", err)
	}
	if probe.Result == nil {
		return nil, d.asRPCError(body, "poll")
	}

	var result model.LongPollResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding poll batch: %w", err)
	}

	d.logPoll(model.MethodLongPoll, subID, len(result.Result), 0)
	return result.Result, nil
}

// asRPCError decodes a JSON-RPC error envelope into a pollError.
func (d *Driver) asRPCError(body []byte, op string) error {
	var rpcErr model.RPCError
	if err := json.Unmarshal(body, &rpcErr); err != nil || rpcErr.Error == nil {
		return fmt.Errorf("%s: response carries neither result nor error", op)
	}
	d.logPollError(op, rpcErr.Error.Code)
	return &pollError{
		code:                rpcErr.Error.Code,
		message:             rpcErr.Error.Message,
		subscriptionInvalid: rpcErr.SubscriptionInvalid(),
	}
}

// backoff waits out delay on a cancellable timer, then returns to
// StateNoSubscription. Returns false when the context ended first.
func (d *Driver) backoff(ctx context.Context, delay time.Duration, reason string) bool {
	d.setState(StateBackoff, reason)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		d.setState(StateNoSubscription, "backoff elapsed")
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Driver) clearSubscription() {
	d.mu.Lock()
	d.subscriptionID = ""
	d.mu.Unlock()
}

func (d *Driver) setState(s State, reason string) {
	d.mu.Lock()
	old := d.state
	d.state = s
	d.mu.Unlock()
	if old == s {
		return
	}
	d.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		BridgeID:  d.cfg.BridgeID,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.EntityPoller,
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
}

func (d *Driver) logPoll(method, subID string, batchSize, errorCode int) {
	d.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		BridgeID:  d.cfg.BridgeID,
		Category:  log.CategoryLongPoll,
		Poll: &log.PollEvent{
			Method:         method,
			SubscriptionID: subID,
			BatchSize:      batchSize,
			ErrorCode:      errorCode,
		},
	})
}

func (d *Driver) logPollError(op string, code int) {
	d.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		BridgeID:  d.cfg.BridgeID,
		Category:  log.CategoryLongPoll,
		Poll: &log.PollEvent{
			Method:    op,
			ErrorCode: code,
		},
	})
}

func (d *Driver) logError(err error, context string) {
	d.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		BridgeID:  d.cfg.BridgeID,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Message: err.Error(), Context: context},
	})
}
