package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type removerFunc func(ctx context.Context, slotID int64) error

func (f removerFunc) RemoveSlot(ctx context.Context, slotID int64) error { return f(ctx, slotID) }

func TestIndexQueriesDefaultFalse(t *testing.T) {
	x := NewIndex(nil, nil)
	assert.False(t, x.IsSelected("2024-06-03|09:00"))
	assert.False(t, x.IsExisting("2024-06-03|09:00"))
	assert.False(t, x.IsLocked("2024-06-03|09:00"))
	_, ok := x.SlotID("2024-06-03|09:00")
	assert.False(t, ok)
}

func TestIndexMarkOverwrites(t *testing.T) {
	x := NewIndex(nil, nil)
	x.Mark("2024-06-03|09:00", SelectedPending)
	assert.True(t, x.IsSelected("2024-06-03|09:00"))

	x.MarkExisting("2024-06-03|09:00", 11, true)
	assert.True(t, x.IsLocked("2024-06-03|09:00"))
	assert.True(t, x.IsExisting("2024-06-03|09:00"))
	id, ok := x.SlotID("2024-06-03|09:00")
	require.True(t, ok)
	assert.Equal(t, int64(11), id)

	x.Mark("2024-06-03|09:00", Unselected)
	assert.Zero(t, x.Len())
}

func TestIndexLockedToggleNeverPrompts(t *testing.T) {
	prompted := false
	confirm := ConfirmFunc(func(context.Context, string) (bool, error) {
		prompted = true
		return true, nil
	})
	removed := false
	x := NewIndex(removerFunc(func(context.Context, int64) error {
		removed = true
		return nil
	}), confirm)
	x.MarkExisting("2024-06-03|09:00", 3, true)

	for i := 0; i < 3; i++ {
		_, err := x.Toggle(context.Background(), "2024-06-03|09:00")
		require.ErrorIs(t, err, ErrSlotLocked)
	}
	assert.False(t, prompted)
	assert.False(t, removed)
	assert.True(t, x.IsLocked("2024-06-03|09:00"))
}

func TestIndexConfirmErrorKeepsSlot(t *testing.T) {
	x := NewIndex(removerFunc(func(context.Context, int64) error { return nil }),
		ConfirmFunc(func(context.Context, string) (bool, error) { return false, errors.New("no tty") }))
	x.MarkExisting("2024-06-03|09:00", 3, false)

	_, err := x.Toggle(context.Background(), "2024-06-03|09:00")
	require.Error(t, err)
	assert.True(t, x.IsExisting("2024-06-03|09:00"))
}

func TestIndexPendingOnAndClear(t *testing.T) {
	x := NewIndex(nil, nil)
	x.Mark("2024-06-04|10:00", SelectedPending)
	x.Mark("2024-06-03|09:30", SelectedPending)
	x.Mark("2024-06-03|09:00", SelectedPending)
	x.MarkExisting("2024-06-03|11:00", 1, false)

	assert.Equal(t, []string{"09:00", "09:30"}, x.PendingOn("2024-06-03"))
	assert.Equal(t, []string{"2024-06-03|09:00", "2024-06-03|09:30", "2024-06-04|10:00"}, x.Pending())

	x.ClearPending()
	assert.Empty(t, x.Pending())
	assert.True(t, x.IsExisting("2024-06-03|11:00"))
}
