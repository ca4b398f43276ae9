package store

import (
	"context"
	"fmt"
	"time"
)

// Activity kinds written by the CLI.
const (
	KindLogin           = "login"
	KindLogout          = "logout"
	KindRegister        = "register"
	KindSlotsCreated    = "slots.created"
	KindSlotDeleted     = "slot.deleted"
	KindBookingCreated  = "booking.created"
	KindMessageSent     = "message.sent"
	KindDocumentUpload  = "document.uploaded"
	KindDocumentDeleted = "document.deleted"
)

type Activity struct {
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	UserID int64     `json:"user_id,omitempty"`
	Ref    string    `json:"ref,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Record appends one entry to the journal.
func (s *Store) Record(ctx context.Context, a Activity) error {
	if a.Kind == "" {
		return fmt.Errorf("activity kind is required")
	}
	if a.At.IsZero() {
		a.At = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity(at, kind, user_id, ref, detail) VALUES(?, ?, ?, ?, ?)`,
		a.At.UTC().UnixMilli(), a.Kind, a.UserID, a.Ref, a.Detail)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// Page returns up to limit entries, newest first, skipping offset, and
// whether older entries remain.
func (s *Store) Page(ctx context.Context, limit, offset int) ([]Activity, bool, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		return nil, false, fmt.Errorf("offset must be >= 0")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, kind, user_id, ref, detail FROM activity ORDER BY at DESC, id DESC LIMIT ? OFFSET ?`,
		limit+1, offset)
	if err != nil {
		return nil, false, fmt.Errorf("read activity: %w", err)
	}
	defer rows.Close()
	out := make([]Activity, 0, limit)
	for rows.Next() {
		var a Activity
		var ms int64
		if err := rows.Scan(&a.ID, &ms, &a.Kind, &a.UserID, &a.Ref, &a.Detail); err != nil {
			return nil, false, err
		}
		a.At = time.UnixMilli(ms).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	return out, hasMore, nil
}
