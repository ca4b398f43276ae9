package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SkyAle-bit/Progetto-FE/internal/chat"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/dashboard"
	"github.com/SkyAle-bit/Progetto-FE/internal/output"
	"github.com/SkyAle-bit/Progetto-FE/internal/store"
)

type conversationList []contract.Conversation

func (l conversationList) plainLines(now time.Time) []string {
	if len(l) == 0 {
		return []string{"no conversations"}
	}
	out := make([]string, 0, len(l))
	for _, c := range l {
		line := fmt.Sprintf("%d\t%s\t%s", c.OtherUserID, c.OtherUserName, c.OtherUserRole)
		if c.UnreadCount > 0 {
			line += fmt.Sprintf("\t%d unread", c.UnreadCount)
		}
		if c.LastMessageTime != nil {
			line += "\t" + output.Ago(*c.LastMessageTime, now)
		}
		out = append(out, line)
	}
	return out
}

func (l conversationList) PlainLines() []string { return l.plainLines(clock()) }

type messageList []contract.ChatMessage

func (l messageList) PlainLines() []string {
	if len(l) == 0 {
		return []string{"no messages"}
	}
	out := make([]string, 0, len(l))
	for _, m := range l {
		out = append(out, messageLine(m))
	}
	return out
}

func messageLine(m contract.ChatMessage) string {
	who := m.SenderName
	if who == "" {
		who = strconv.FormatInt(m.SenderID, 10)
	}
	return fmt.Sprintf("[%s] %s: %s (%s)", m.CreatedAt.Format("2006-01-02 15:04"), who, m.Content, m.Status)
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "chat", Short: "Message your professionals or clients"}
	cmd.AddCommand(
		newChatConversationsCmd(opts),
		newChatMessagesCmd(opts),
		newChatSendCmd(opts),
		newChatWatchCmd(opts),
	)
	return cmd
}

func newChatConversationsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List conversations with unread counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "chat.conversations")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			inbox := chat.NewInbox(be, sess.User.ID, ro.log)
			var warnings []string
			if err := inbox.Poll(ctx); err != nil {
				warnings = append(warnings, "conversations unavailable: "+err.Error())
			}
			convs := inbox.Conversations()
			return successWithMeta(ctx, p, ro, conversationList(convs), map[string]any{"count": len(convs), "unread": inbox.Unread()}, warnings)
		},
	}
}

func newChatMessagesCmd(opts *globalOptions) *cobra.Command {
	var with string
	var page, size int
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show a conversation and mark it read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "chat.messages")
			if err != nil {
				return err
			}
			otherID, err := parseID("--with", with)
			if err != nil {
				return failUsage(p, err, "Run `fitctl chat conversations` to find user ids")
			}
			if page < 0 || size <= 0 {
				return failUsage(p, errors.New("--page must be >= 0 and --size > 0"), "")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()

			var msgs []contract.ChatMessage
			if page == 0 && size == chat.PageSize {
				t := chat.NewThread(be, sess.User, otherID, chat.WithLogger(ro.log), chat.WithClock(clock))
				if err := callBackendErr(ctx, "backend.list_messages", func() error { return t.Open(ctx) }); err != nil {
					return failBackend(p, err)
				}
				msgs = t.Messages()
			} else {
				msgs, err = callBackend(ctx, "backend.list_messages", func() ([]contract.ChatMessage, error) {
					return be.ListMessages(ctx, sess.User.ID, otherID, page, size)
				})
				if err != nil {
					return failBackend(p, err)
				}
			}
			return successWithMeta(ctx, p, ro, messageList(msgs), map[string]any{"count": len(msgs), "page": page}, nil)
		},
	}
	cmd.Flags().StringVar(&with, "with", "", "Other user id")
	cmd.Flags().IntVar(&page, "page", 0, "Page number, 0 is the newest")
	cmd.Flags().IntVar(&size, "size", chat.PageSize, "Page size")
	return cmd
}

func newChatSendCmd(opts *globalOptions) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, be, ro, err := buildContext(cmd, opts, "chat.send")
			if err != nil {
				return err
			}
			otherID, err := parseID("--to", to)
			if err != nil {
				return failUsage(p, err, "")
			}
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "-" {
				raw, rerr := io.ReadAll(cmd.InOrStdin())
				if rerr != nil {
					return failUsage(p, rerr, "")
				}
				content = strings.TrimSpace(string(raw))
			}
			if content == "" {
				return failUsage(p, chat.ErrEmptyMessage, "")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			t := chat.NewThread(be, sess.User, otherID, chat.WithLogger(ro.log), chat.WithClock(clock))
			msg, err := callBackend(ctx, "backend.send_message", func() (contract.ChatMessage, error) {
				return t.Send(ctx, content)
			})
			if err != nil {
				return failBackend(p, err)
			}
			recordActivity(ctx, st, ro, store.Activity{
				Kind:   store.KindMessageSent,
				UserID: sess.User.ID,
				Ref:    strconv.FormatInt(otherID, 10),
				Detail: strconv.FormatInt(msg.ID, 10),
			})
			return successWithMeta(ctx, p, ro, msg, nil, nil)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Receiver user id")
	return cmd
}

// chatEvent is one line of `chat watch` output.
type chatEvent struct {
	Type         string                 `json:"type"`
	Message      *contract.ChatMessage  `json:"message,omitempty"`
	Conversation *contract.Conversation `json:"conversation,omitempty"`
}

func newChatWatchCmd(opts *globalOptions) *cobra.Command {
	var with string
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the inbox, or one conversation, until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "chat.watch")
			if err != nil {
				return err
			}
			var otherID int64
			if strings.TrimSpace(with) != "" {
				if otherID, err = parseID("--with", with); err != nil {
					return failUsage(p, err, "")
				}
			}
			if duration < 0 {
				return failUsage(p, errors.New("--for must not be negative"), "")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()

			c := newController(sess, be, ro, nil)
			defer c.Close()
			w := newChatWatcher(p, cmd.OutOrStdout())
			if otherID != 0 {
				t, err := c.OpenChat(ctx, otherID)
				if err != nil {
					return failController(p, err)
				}
				w.messages(t.Messages())
			} else {
				if err := c.SwitchTab(ctx, dashboard.TabChat); err != nil {
					return failController(p, err)
				}
				w.conversations(c.Chat().Inbox().Conversations())
			}

			ticker := time.NewTicker(ro.PollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					c.Close()
					return nil
				case <-ticker.C:
					if t := c.Chat().Thread(); t != nil {
						w.messages(t.Messages())
					} else {
						w.conversations(c.Chat().Inbox().Conversations())
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&with, "with", "", "Follow the conversation with this user id")
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

// chatWatcher prints messages and inbox changes it has not printed yet.
type chatWatcher struct {
	p       output.Printer
	out     io.Writer
	seenMsg map[int64]bool
	unread  map[int64]int
	lastAt  map[int64]time.Time
}

func newChatWatcher(p output.Printer, out io.Writer) *chatWatcher {
	return &chatWatcher{p: p, out: out, seenMsg: map[int64]bool{}, unread: map[int64]int{}, lastAt: map[int64]time.Time{}}
}

func (w *chatWatcher) messages(msgs []contract.ChatMessage) {
	for _, m := range msgs {
		if m.ID == 0 || w.seenMsg[m.ID] {
			continue
		}
		w.seenMsg[m.ID] = true
		msg := m
		w.emit(chatEvent{Type: "message", Message: &msg}, messageLine(m))
	}
}

func (w *chatWatcher) conversations(convs []contract.Conversation) {
	for _, c := range convs {
		var at time.Time
		if c.LastMessageTime != nil {
			at = *c.LastMessageTime
		}
		prevAt, known := w.lastAt[c.OtherUserID]
		if known && w.unread[c.OtherUserID] == c.UnreadCount && prevAt.Equal(at) {
			continue
		}
		w.unread[c.OtherUserID] = c.UnreadCount
		w.lastAt[c.OtherUserID] = at
		conv := c
		line := fmt.Sprintf("%s: %d unread", c.OtherUserName, c.UnreadCount)
		if c.LastMessage != "" {
			line += " | " + c.LastMessage
		}
		w.emit(chatEvent{Type: "conversation", Conversation: &conv}, line)
	}
}

func (w *chatWatcher) emit(ev chatEvent, plain string) {
	if m := w.p.EffectiveSuccessMode(); m == output.ModeJSON || m == output.ModeJSONL {
		_ = json.NewEncoder(w.out).Encode(ev)
		return
	}
	_, _ = fmt.Fprintln(w.out, plain)
}
