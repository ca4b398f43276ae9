package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

// View is an open chat screen: the inbox plus at most one active thread,
// both refreshed by one poller while the view is open.
type View struct {
	mu       sync.Mutex
	svc      Service
	me       contract.User
	log      *zap.Logger
	interval time.Duration
	inbox    *Inbox
	thread   *Thread
	poller   *Poller
}

func NewView(svc Service, me contract.User, interval time.Duration, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &View{
		svc:      svc,
		me:       me,
		log:      logger,
		interval: interval,
		inbox:    NewInbox(svc, me.ID, logger),
		poller:   NewPoller("chat", logger),
	}
}

func (v *View) Inbox() *Inbox { return v.inbox }

// Thread returns the active thread, or nil.
func (v *View) Thread() *Thread {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.thread
}

// Open loads the inbox and starts polling.
func (v *View) Open(ctx context.Context) []contract.Conversation {
	convs := v.inbox.Load(ctx)
	v.startPolling(ctx)
	return convs
}

// OpenThread switches the active conversation and restarts polling for it.
func (v *View) OpenThread(ctx context.Context, otherID int64) (*Thread, error) {
	t := NewThread(v.svc, v.me, otherID, WithLogger(v.log))
	v.mu.Lock()
	v.thread = t
	v.mu.Unlock()
	err := t.Open(ctx)
	v.startPolling(ctx)
	return t, err
}

// Close stops polling and drops the active thread.
func (v *View) Close() {
	v.poller.Stop()
	v.mu.Lock()
	v.thread = nil
	v.mu.Unlock()
}

// Polling reports whether the view still has a live poller.
func (v *View) Polling() bool { return v.poller.Running() }

func (v *View) startPolling(ctx context.Context) {
	v.poller.Start(ctx, v.interval, v.tick)
}

func (v *View) tick(ctx context.Context) error {
	if err := v.inbox.Poll(ctx); err != nil {
		v.log.Debug("inbox poll failed", zap.Error(err))
	}
	t := v.Thread()
	if t == nil {
		return nil
	}
	return t.Refresh(ctx)
}
