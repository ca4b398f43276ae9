package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is how often an open conversation is refreshed.
const DefaultInterval = 4 * time.Second

// Poller runs a function on a fixed interval until stopped. At most one
// loop is alive per Poller: starting again stops the previous loop first.
type Poller struct {
	mu     sync.Mutex
	name   string
	log    *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(name string, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{name: name, log: logger}
}

// Start calls fn every interval until Stop is called or ctx ends. The first
// call happens one interval after Start. Errors from fn are logged and do not
// stop the loop.
func (p *Poller) Start(ctx context.Context, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.log.Debug("poller started", zap.String("poller", p.name), zap.Duration("interval", interval))

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if err := fn(loopCtx); err != nil && loopCtx.Err() == nil {
					p.log.Warn("poll failed", zap.String("poller", p.name), zap.Error(err))
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit. It is safe to call more
// than once and on a Poller that never started. It must not be called from
// inside fn.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.log.Debug("poller stopped", zap.String("poller", p.name))
}

// Running reports whether the loop is alive. A loop whose parent context
// ended is not running even before Stop is called.
func (p *Poller) Running() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
