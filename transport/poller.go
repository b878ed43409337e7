package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Poller keeps exactly one device's state fresh via periodic pull, for
// device classes with no push channel. One Poller is created per device and
// discarded with it.
type Poller struct {
	interval    time.Duration
	joinTimeout time.Duration
	log         Logger

	mu         sync.Mutex
	running    bool
	stopc      chan struct{}
	done       chan struct{}
	cancelLoop context.CancelFunc

	lastPolled atomic.Int64 // unix nanos of the most recent successful refresh
}

// Ensure Poller implements Transport.
var _ Transport = (*Poller)(nil)

// PollerOptions configures a Poller.
type PollerOptions struct {
	// Interval is the base delay between successful refresh attempts.
	// Concrete device classes choose their own; tens of seconds is sane.
	Interval time.Duration

	// JoinTimeout bounds how long Stop waits for the loop. Default: 5s.
	JoinTimeout time.Duration

	// Logger is optional.
	Logger Logger
}

// NewPoller creates a polling transport with the given base interval.
func NewPoller(opts PollerOptions) *Poller {
	p := &Poller{
		interval:    opts.Interval,
		joinTimeout: opts.JoinTimeout,
		log:         opts.Logger,
	}
	if p.interval <= 0 {
		p.interval = 30 * time.Second
	}
	if p.joinTimeout <= 0 {
		p.joinTimeout = defaultJoinTimeout
	}
	if p.log == nil {
		p.log = noopLogger{}
	}
	return p
}

// Start launches the polling loop bound to d. No-op if the loop is already
// running for this instance.
func (p *Poller) Start(_ context.Context, d Device) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true
	p.stopc = make(chan struct{})
	p.done = make(chan struct{})
	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancelLoop = cancel
	go p.run(loopCtx, d, p.stopc, p.done)
	p.log.Debug("poller started", "device", d.ID(), "interval", p.interval.String())
	return nil
}

// Stop signals the loop to stop and awaits it with a bounded timeout,
// cancelling an in-flight refresh on expiry. It returns well under the
// configured interval even when no poll has occurred yet: a stop request
// interrupts the inter-poll wait immediately. Safe to call when Start was
// never called.
func (p *Poller) Stop(_ context.Context, _ Device) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	select {
	case <-p.stopc:
		// Already signalled by a concurrent Stop.
	default:
		close(p.stopc)
	}
	done := p.done
	cancel := p.cancelLoop
	p.mu.Unlock()

	select {
	case <-done:
	case <-time.After(p.joinTimeout):
		p.log.Error("poll loop did not stop within timeout, cancelling refresh", "timeout", p.joinTimeout)
		cancel()
	}
	return nil
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastPolled returns the timestamp of the most recent successful refresh,
// or the zero time if none has succeeded yet.
func (p *Poller) LastPolled() time.Time {
	ns := p.lastPolled.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// run polls the device until stopped. The first refresh happens immediately;
// afterwards the loop waits the base interval between successful attempts
// and an exponentially growing, capped delay after failures. All waits are
// interrupted by the stop signal.
func (p *Poller) run(ctx context.Context, d Device, stopc, done chan struct{}) {
	defer close(done)
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	delay := p.interval
	for {
		err := d.Refresh(ctx)
		switch {
		case err == nil:
			p.lastPolled.Store(time.Now().UnixNano())
			delay = p.interval
		case ctx.Err() != nil:
			return // Refresh aborted by a forced stop
		default:
			p.log.Warn("refresh failed", "device", d.ID(), "retry_in", delay.String(), "error", err)
		}

		select {
		case <-stopc:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err != nil {
			delay = nextDelay(delay)
		}
	}
}
