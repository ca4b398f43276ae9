package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

// PageSize is the number of messages fetched per conversation refresh.
const PageSize = 50

var (
	ErrEmptyMessage = errors.New("message content is empty")
	ErrNotRetryable = errors.New("message is not a failed send")
)

// Service is the remote chat API.
type Service interface {
	ListConversations(ctx context.Context, userID int64) ([]contract.Conversation, error)
	ListMessages(ctx context.Context, userID, otherID int64, page, size int) ([]contract.ChatMessage, error)
	SendMessage(ctx context.Context, senderID, receiverID int64, content string) (contract.ChatMessage, error)
	MarkRead(ctx context.Context, receiverID, senderID int64) error
}

// Thread holds the messages between the signed-in user and one other user.
// Sent messages appear immediately as provisional entries and are swapped
// for the server copy once it arrives.
type Thread struct {
	mu       sync.Mutex
	svc      Service
	me       contract.User
	otherID  int64
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
	messages []contract.ChatMessage
	// acked maps server IDs of sends to the ack sequence they were
	// confirmed at, until a refresh sees them.
	ackSeq uint64
	acked  map[int64]uint64
}

type ThreadOption func(*Thread)

func WithClock(now func() time.Time) ThreadOption {
	return func(t *Thread) { t.now = now }
}

func WithLogger(l *zap.Logger) ThreadOption {
	return func(t *Thread) { t.log = l }
}

func NewThread(svc Service, me contract.User, otherID int64, opts ...ThreadOption) *Thread {
	t := &Thread{
		svc:     svc,
		me:      me,
		otherID: otherID,
		log:     zap.NewNop(),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
		acked:   map[int64]uint64{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Thread) OtherID() int64 { return t.otherID }

// Open marks the other user's messages as read and loads the thread.
func (t *Thread) Open(ctx context.Context) error {
	if err := t.svc.MarkRead(ctx, t.me.ID, t.otherID); err != nil {
		t.log.Warn("mark read failed", zap.Int64("other_id", t.otherID), zap.Error(err))
	}
	return t.Refresh(ctx)
}

// Refresh replaces the server messages and keeps unacknowledged local
// messages after them, along with sends confirmed while the fetch was in
// flight. On failure the current list stays as it is.
func (t *Thread) Refresh(ctx context.Context) error {
	t.mu.Lock()
	since := t.ackSeq
	t.mu.Unlock()

	msgs, err := t.svc.ListMessages(ctx, t.me.ID, t.otherID, 0, PageSize)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[int64]bool, len(msgs))
	for _, m := range msgs {
		seen[m.ID] = true
		delete(t.acked, m.ID)
	}
	next := make([]contract.ChatMessage, 0, len(msgs)+len(t.messages))
	next = append(next, msgs...)
	for _, m := range t.messages {
		switch {
		case m.Provisional():
			next = append(next, m)
		case !seen[m.ID] && t.acked[m.ID] > since:
			next = append(next, m)
		}
	}
	t.messages = next
	return nil
}

// Messages returns a copy of the thread in display order.
func (t *Thread) Messages() []contract.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]contract.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Send posts content. The returned message is the server copy on success
// and the failed provisional entry otherwise.
func (t *Thread) Send(ctx context.Context, content string) (contract.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return contract.ChatMessage{}, ErrEmptyMessage
	}
	provisional := contract.ChatMessage{
		TempID:     t.newID(),
		SenderID:   t.me.ID,
		SenderName: t.me.FullName(),
		ReceiverID: t.otherID,
		Content:    content,
		Status:     contract.MessagePending,
		CreatedAt:  t.now(),
	}
	t.mu.Lock()
	t.messages = append(t.messages, provisional)
	t.mu.Unlock()
	return t.deliver(ctx, provisional)
}

// Retry sends a failed provisional message again.
func (t *Thread) Retry(ctx context.Context, tempID string) (contract.ChatMessage, error) {
	t.mu.Lock()
	i := t.indexOf(tempID)
	if i < 0 || t.messages[i].Status != contract.MessageFailed {
		t.mu.Unlock()
		return contract.ChatMessage{}, ErrNotRetryable
	}
	t.messages[i].Status = contract.MessagePending
	m := t.messages[i]
	t.mu.Unlock()
	return t.deliver(ctx, m)
}

func (t *Thread) deliver(ctx context.Context, provisional contract.ChatMessage) (contract.ChatMessage, error) {
	sent, err := t.svc.SendMessage(ctx, provisional.SenderID, provisional.ReceiverID, provisional.Content)

	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(provisional.TempID)
	if err != nil {
		if i >= 0 {
			t.messages[i].Status = contract.MessageFailed
			provisional = t.messages[i]
		} else {
			provisional.Status = contract.MessageFailed
		}
		t.log.Warn("chat send failed", zap.String("temp_id", provisional.TempID), zap.Error(err))
		return provisional, fmt.Errorf("send message: %w", err)
	}
	if i < 0 {
		return sent, nil
	}
	if sent.ID != 0 {
		t.ackSeq++
		t.acked[sent.ID] = t.ackSeq
	}
	if sent.ID != 0 && t.hasServerID(sent.ID) {
		// A refresh already brought the server copy in.
		t.messages = append(t.messages[:i], t.messages[i+1:]...)
		return sent, nil
	}
	t.messages[i] = sent
	return sent, nil
}

func (t *Thread) indexOf(tempID string) int {
	for i, m := range t.messages {
		if m.TempID == tempID && m.ID == 0 {
			return i
		}
	}
	return -1
}

func (t *Thread) hasServerID(id int64) bool {
	for _, m := range t.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Inbox keeps the conversation list of the signed-in user.
type Inbox struct {
	mu     sync.Mutex
	svc    Service
	userID int64
	log    *zap.Logger
	convs  []contract.Conversation
}

func NewInbox(svc Service, userID int64, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{svc: svc, userID: userID, log: logger, convs: []contract.Conversation{}}
}

// Load fetches the list and replaces it. Transport failures leave an empty
// list behind rather than an error.
func (b *Inbox) Load(ctx context.Context) []contract.Conversation {
	convs, err := b.svc.ListConversations(ctx, b.userID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.log.Warn("conversations unavailable", zap.Error(err))
		convs = nil
	}
	b.convs = append([]contract.Conversation{}, convs...)
	return b.copyLocked()
}

// Poll refreshes the list but keeps the previous one when the server
// returns nothing or fails.
func (b *Inbox) Poll(ctx context.Context) error {
	convs, err := b.svc.ListConversations(ctx, b.userID)
	if err != nil {
		return fmt.Errorf("poll conversations: %w", err)
	}
	if len(convs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.convs = append([]contract.Conversation{}, convs...)
	return nil
}

func (b *Inbox) Conversations() []contract.Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyLocked()
}

// Unread sums the unread counters of every conversation.
func (b *Inbox) Unread() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.convs {
		n += c.UnreadCount
	}
	return n
}

func (b *Inbox) copyLocked() []contract.Conversation {
	out := make([]contract.Conversation, len(b.convs))
	copy(out, b.convs)
	return out
}
