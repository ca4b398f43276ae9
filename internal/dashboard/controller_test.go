package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyAle-bit/Progetto-FE/internal/availability"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

type fakeService struct {
	mu             sync.Mutex
	dashboard      contract.Dashboard
	dashboardCalls atomic.Int32
	slots          []contract.Slot
	created        []contract.SlotInput
	convCalls      atomic.Int32
}

func (f *fakeService) Dashboard(context.Context, int64) (contract.Dashboard, error) {
	f.dashboardCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dashboard, nil
}

func (f *fakeService) ListSlots(context.Context, int64) ([]contract.Slot, error) {
	return f.slots, nil
}

func (f *fakeService) CreateSlots(_ context.Context, _ int64, in []contract.SlotInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in...)
	return nil
}

func (f *fakeService) DeleteSlot(context.Context, int64, int64) error { return nil }

func (f *fakeService) CreateBooking(_ context.Context, userID, slotID int64) (contract.Booking, error) {
	return contract.Booking{ID: 1, SlotID: slotID, ClientID: userID}, nil
}

func (f *fakeService) ListConversations(context.Context, int64) ([]contract.Conversation, error) {
	f.convCalls.Add(1)
	return []contract.Conversation{{OtherUserID: 5}}, nil
}

func (f *fakeService) ListMessages(context.Context, int64, int64, int, int) ([]contract.ChatMessage, error) {
	return nil, nil
}

func (f *fakeService) SendMessage(_ context.Context, s, r int64, content string) (contract.ChatMessage, error) {
	return contract.ChatMessage{ID: 1, SenderID: s, ReceiverID: r, Content: content}, nil
}

func (f *fakeService) MarkRead(context.Context, int64, int64) error { return nil }

var monday = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func newController(t *testing.T, svc *fakeService, role contract.Role, width int) *Controller {
	t.Helper()
	now := monday
	c := New(Config{
		Service:           svc,
		Session:           &contract.Session{Token: "t", User: contract.User{ID: 7, Role: role}},
		Location:          time.UTC,
		Now:               func() time.Time { return now },
		ViewportWidth:     width,
		ChatInterval:      time.Millisecond,
		CallCheckInterval: time.Millisecond,
	})
	t.Cleanup(c.Close)
	return c
}

func TestLoadRequiresSession(t *testing.T) {
	c := New(Config{Service: &fakeService{}, Location: time.UTC})
	_, err := c.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, c.SwitchTab(context.Background(), TabChat), ErrUnauthenticated)
}

func TestCalendarDaysCarryBookings(t *testing.T) {
	svc := &fakeService{dashboard: contract.Dashboard{UpcomingBookings: []contract.Booking{
		{ID: 2, Start: time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)},
		{ID: 1, Start: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)},
		{ID: 3, Start: time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)},
	}}}
	c := newController(t, svc, contract.RoleClient, 1440)
	d, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.UpcomingBookings[0].ID)

	days := c.CalendarDays()
	require.Len(t, days, 7)
	assert.Equal(t, "2024-06-03", days[0].Date)
	assert.True(t, days[0].Today)
	assert.Len(t, days[0].Bookings, 1)
	assert.Len(t, days[2].Bookings, 1)
	assert.Empty(t, days[1].Bookings)

	c.NextWindow()
	days = c.CalendarDays()
	assert.Equal(t, "2024-06-10", days[0].Date)
	assert.Len(t, days[2].Bookings, 1)
}

func TestResizeChangesVisibleDays(t *testing.T) {
	c := newController(t, &fakeService{}, contract.RoleClient, 1440)
	assert.Len(t, c.VisibleDays(), 7)
	c.Resize(800)
	assert.Len(t, c.VisibleDays(), 3)
	c.Resize(320)
	c.NextWindow()
	c.Today()
	days := c.VisibleDays()
	require.Len(t, days, 1)
	assert.Equal(t, "2024-06-03", days[0].Format("2006-01-02"))
}

func TestSwitchTabStopsChatPolling(t *testing.T) {
	svc := &fakeService{}
	c := newController(t, svc, contract.RoleClient, 1440)
	ctx := context.Background()

	require.NoError(t, c.SwitchTab(ctx, TabChat))
	require.Eventually(t, func() bool { return svc.convCalls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, c.Chat().Polling())

	require.NoError(t, c.SwitchTab(ctx, TabDocuments))
	assert.False(t, c.Chat().Polling())
	assert.Equal(t, TabDocuments, c.Tab())

	assert.Error(t, c.SwitchTab(ctx, Tab("settings")))
}

func TestAvailabilityFlowRefreshesDashboard(t *testing.T) {
	svc := &fakeService{}
	c := newController(t, svc, contract.RolePersonalTrainer, 1440)
	ctx := context.Background()

	require.NoError(t, c.OpenAvailability(ctx))
	assert.Equal(t, ModalAvailability, c.Modal())
	_, err := c.Editor().Toggle(ctx, monday, "09:00")
	require.NoError(t, err)

	n, err := c.ConfirmAvailability(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ModalNone, c.Modal())
	assert.Equal(t, int32(1), svc.dashboardCalls.Load())
	assert.Equal(t, availability.Closed, c.Editor().State())
}

func TestRoleGates(t *testing.T) {
	ctx := context.Background()
	client := newController(t, &fakeService{}, contract.RoleClient, 1440)
	assert.ErrorIs(t, client.OpenAvailability(ctx), ErrNotProfessional)

	trainer := newController(t, &fakeService{}, contract.RolePersonalTrainer, 1440)
	assert.ErrorIs(t, trainer.OpenBooking(ctx, contract.Professional{ID: 5}), ErrClientsOnly)
}

func TestBookingFlow(t *testing.T) {
	start := time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)
	svc := &fakeService{slots: []contract.Slot{{ID: 3, Start: start, End: start.Add(30 * time.Minute), Available: true}}}
	c := newController(t, svc, contract.RoleClient, 1440)
	ctx := context.Background()

	require.NoError(t, c.OpenBooking(ctx, contract.Professional{ID: 5}))
	assert.Equal(t, ModalBooking, c.Modal())
	_, err := c.Selector().ToggleSlot(3)
	require.NoError(t, err)

	_, msg, err := c.ConfirmBooking(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tuesday 4 June 2024 at 09:00", msg)
	assert.Equal(t, ModalNone, c.Modal())
	assert.Equal(t, int32(1), svc.dashboardCalls.Load())
}

func TestCanJoinCall(t *testing.T) {
	b := contract.Booking{Start: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)}
	assert.False(t, CanJoinCall(b, b.Start.Add(-11*time.Minute)))
	assert.True(t, CanJoinCall(b, b.Start.Add(-10*time.Minute)))
	assert.True(t, CanJoinCall(b, b.Start.Add(29*time.Minute)))
	assert.False(t, CanJoinCall(b, b.End))
	assert.False(t, CanJoinCall(contract.Booking{}, b.Start))
}

func TestCallModalCheckerStopsOnClose(t *testing.T) {
	c := newController(t, &fakeService{}, contract.RoleClient, 1440)
	b := contract.Booking{ID: 9, Start: monday.Add(5 * time.Minute), End: monday.Add(35 * time.Minute)}

	assert.True(t, c.OpenCallModal(context.Background(), b))
	assert.Equal(t, ModalCall, c.Modal())
	assert.True(t, c.CallChecking())
	assert.True(t, c.CallJoinable())

	c.CloseModal()
	assert.False(t, c.CallChecking())
	assert.False(t, c.CallJoinable())
	assert.Equal(t, ModalNone, c.Modal())
}
