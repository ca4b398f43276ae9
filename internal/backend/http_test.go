package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc, cfg Config) *HTTPBackend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg.BaseURL = server.URL
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1000
	}
	b, err := NewHTTPBackend(cfg)
	require.NoError(t, err)
	return b
}

func TestNewHTTPBackendDefaults(t *testing.T) {
	b, err := NewHTTPBackend(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, b.BaseURL())
	assert.Equal(t, 15*time.Second, b.httpClient.Timeout)

	_, err = NewHTTPBackend(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestLoginSendsCredentialsAndDecodesSession(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "anna@example.com", body["email"])
		_, _ = io.WriteString(w, `{"token":"tok","id":7,"firstName":"Anna","lastName":"Bianchi","email":"anna@example.com","role":"client"}`)
	}, Config{})

	s, err := b.Login(context.Background(), " anna@example.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, int64(7), s.User.ID)
	assert.Equal(t, contract.RoleClient, s.User.Role)
	assert.Equal(t, "Anna Bianchi", s.User.FullName())

	_, err = b.Login(context.Background(), "", "x")
	assert.Error(t, err)
}

func TestBearerTokenIsSent(t *testing.T) {
	var got atomic.Value
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	}, Config{Token: "abc"})

	_, err := b.ListPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", got.Load())

	b.SetToken("")
	_, err = b.ListPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", got.Load())
}

func TestListSlotsAcceptsBothAvailabilityNames(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/professionals/5/slots", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"id":1,"startTime":"2024-06-03T09:00:00","endTime":"2024-06-03T09:30:00","isAvailable":true},
			{"id":2,"startTime":"2024-06-03T10:00:00","endTime":"2024-06-03T10:30:00","available":false},
			{"id":3,"startTime":"2024-06-03T11:00","endTime":"2024-06-03T11:30"},
			{"id":4,"startTime":"2024-06-03T12:00:00","endTime":"2024-06-03T11:30:00","isAvailable":true},
			{"id":5,"endTime":"2024-06-03T11:30:00"}
		]`)
	}, Config{})

	slots, err := b.ListSlots(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Available)
	assert.False(t, slots[1].Available)
	assert.True(t, slots[2].Available)
	assert.Equal(t, int64(5), slots[0].ProfessionalID)
	assert.True(t, slots[0].Start.Equal(time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)))
}

func TestCreateSlotsWireFormat(t *testing.T) {
	rome := time.FixedZone("CEST", 2*3600)
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "2024-06-03T09:00:00", body[0]["startTime"])
		assert.Equal(t, "2024-06-03T09:30:00", body[0]["endTime"])
		assert.Equal(t, true, body[0]["isAvailable"])
		w.WriteHeader(http.StatusCreated)
	}, Config{Location: rome})

	start := time.Date(2024, 6, 3, 9, 0, 0, 0, rome)
	err := b.CreateSlots(context.Background(), 5, []contract.SlotInput{{Start: start, End: start.Add(30 * time.Minute), Available: true}})
	require.NoError(t, err)

	assert.Error(t, b.CreateSlots(context.Background(), 5, nil))
}

func TestRetriesIdempotentCalls(t *testing.T) {
	var calls atomic.Int32
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}, Config{MaxRetries: 3})

	_, err := b.ListConversations(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, Config{MaxRetries: 3})

	_, err := b.CreateBooking(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
}

func TestAPIErrorMessageSurfaced(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"message":"Slot non disponibile"}`)
	}, Config{})

	_, err := b.CreateBooking(context.Background(), 1, 2)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Slot non disponibile", apiErr.UserMessage())
	assert.True(t, IsConflict(err))
	assert.False(t, IsUnauthorized(err))
}

func TestListClientsAcceptsWrappedValue(t *testing.T) {
	for _, body := range []string{
		`[{"id":3,"firstName":"Luca","lastName":"Verdi","role":"CLIENT"}]`,
		`{"value":[{"id":3,"firstName":"Luca","lastName":"Verdi","role":"CLIENT"}],"Count":1}`,
	} {
		b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/professionals/9/clients", r.URL.Path)
			_, _ = io.WriteString(w, body)
		}, Config{})
		clients, err := b.ListClients(context.Background(), 9)
		require.NoError(t, err)
		require.Len(t, clients, 1)
		assert.Equal(t, "Luca Verdi", clients[0].FullName())
	}
}

func TestDashboardDecoding(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/dashboard/7", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"profile":{"id":7,"firstName":"Anna","lastName":"Bianchi","role":"CLIENT"},
			"subscription":{"planName":"Gold","paymentFrequency":"MONTHLY","startDate":"2024-01-01"},
			"followingProfessionals":[{"id":5,"fullName":"Marco Rossi","role":"PERSONAL_TRAINER"}],
			"upcomingBookings":[{"id":1,"slotId":3,"professionalName":"Marco Rossi","startTime":"2024-06-03T09:00:00","endTime":"2024-06-03T09:30:00"}]
		}`)
	}, Config{})

	d, err := b.Dashboard(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), d.Profile.ID)
	require.NotNil(t, d.Subscription)
	assert.Equal(t, "Gold", d.Subscription.PlanName)
	require.Len(t, d.FollowingProfessionals, 1)
	require.Len(t, d.UpcomingBookings, 1)
	assert.Equal(t, 9, d.UpcomingBookings[0].Start.Hour())
}

func TestChatEndpoints(t *testing.T) {
	var readPath string
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/chat/conversation/1/2":
			assert.Equal(t, "0", r.URL.Query().Get("page"))
			assert.Equal(t, "50", r.URL.Query().Get("size"))
			_, _ = io.WriteString(w, `[{"id":9,"senderId":2,"receiverId":1,"content":"ciao","status":"READ","createdAt":"2024-06-03T09:00:00.123"}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/chat/send":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "hello", body["content"])
			_, _ = io.WriteString(w, `{"id":10,"senderId":1,"receiverId":2,"content":"hello","status":"SENT"}`)
		case r.Method == http.MethodPut:
			readPath = r.URL.Path
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}, Config{})

	msgs, err := b.ListMessages(context.Background(), 1, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, contract.MessageRead, msgs[0].Status)

	sent, err := b.SendMessage(context.Background(), 1, 2, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(10), sent.ID)

	require.NoError(t, b.MarkRead(context.Background(), 1, 2))
	assert.Equal(t, "/api/chat/read/1/2", readPath)
}

func TestValidateUpload(t *testing.T) {
	pdf := []byte("%PDF-1.7\n...")
	assert.NoError(t, ValidateUpload("plan.PDF", pdf))
	assert.ErrorIs(t, ValidateUpload("plan.pdf", nil), ErrEmptyFile)
	assert.ErrorIs(t, ValidateUpload("plan.docx", pdf), ErrNotPDF)
	assert.ErrorIs(t, ValidateUpload("plan.pdf", []byte("hello")), ErrNotPDF)
	big := append([]byte("%PDF-"), make([]byte, contract.MaxDocumentBytes)...)
	assert.ErrorIs(t, ValidateUpload("plan.pdf", big), ErrFileTooLarge)
}

func TestUploadDocumentMultipart(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/documents/client/3/WORKOUT_PLAN", r.URL.Path)
		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "plan.pdf", hdr.Filename)
		_, _ = io.WriteString(w, `{"id":44,"uploadDate":"2024-06-03T10:00:00"}`)
	}, Config{})

	doc, err := b.UploadDocument(context.Background(), UploadInput{
		ClientID: 3,
		Type:     contract.DocWorkoutPlan,
		FileName: "/tmp/plan.pdf",
		Data:     []byte("%PDF-1.4 body"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(44), doc.ID)
	assert.Equal(t, "plan.pdf", doc.FileName)
	assert.False(t, doc.UploadedAt.IsZero())
}

func TestDoctorReportsUnreachable(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, Config{})
	checks, err := b.Doctor(context.Background())
	require.Error(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, "fail", checks[1].Status)
}
