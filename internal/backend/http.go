package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

const (
	DefaultBaseURL   = "http://localhost:8080"
	defaultUserAgent = "fitctl"
)

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	// RequestsPerSecond caps outgoing calls; pollers share the budget.
	RequestsPerSecond float64
	Burst             int
	Location          *time.Location
	HTTPClient        *http.Client
	Logger            *zap.Logger
	UserAgent         string
}

// HTTPBackend talks to the REST API.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	loc        *time.Location
	log        *zap.Logger
	userAgent  string

	mu    sync.RWMutex
	token string
}

func NewHTTPBackend(cfg Config) (*HTTPBackend, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPBackend{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries: maxRetries,
		backoff:    backoff,
		loc:        loc,
		log:        logger,
		userAgent:  userAgent,
		token:      cfg.Token,
	}, nil
}

func (b *HTTPBackend) BaseURL() string { return b.baseURL }

// SetToken replaces the bearer token sent with every request.
func (b *HTTPBackend) SetToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

func (b *HTTPBackend) currentToken() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

func (b *HTTPBackend) Doctor(ctx context.Context) ([]contract.DoctorCheck, error) {
	checks := []contract.DoctorCheck{{Name: "base_url", Status: "ok", Message: b.baseURL}}
	start := time.Now()
	if _, err := b.invoke(ctx, http.MethodGet, "/api/plans", nil, nil, ""); err != nil {
		checks = append(checks, contract.DoctorCheck{Name: "api_reachable", Status: "fail", Message: err.Error()})
		return checks, fmt.Errorf("backend unreachable at %s: %w", b.baseURL, err)
	}
	checks = append(checks, contract.DoctorCheck{
		Name:    "api_reachable",
		Status:  "ok",
		Message: fmt.Sprintf("GET /api/plans answered in %s", time.Since(start).Round(time.Millisecond)),
	})
	return checks, nil
}

func (b *HTTPBackend) Login(ctx context.Context, email, password string) (contract.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return contract.Session{}, errors.New("email and password are required")
	}
	data, err := b.invokeJSON(ctx, http.MethodPost, "/api/auth/login", nil, map[string]string{"email": email, "password": password})
	if err != nil {
		return contract.Session{}, err
	}
	w, err := decodeOne[loginWire](data)
	if err != nil {
		return contract.Session{}, err
	}
	if w.Token == "" {
		return contract.Session{}, errors.New("login response carried no token")
	}
	return contract.Session{Token: w.Token, User: w.userWire.toContract()}, nil
}

func (b *HTTPBackend) Register(ctx context.Context, in contract.Registration) (contract.User, error) {
	data, err := b.invokeJSON(ctx, http.MethodPost, "/api/auth/register", nil, in)
	if err != nil {
		return contract.User{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return contract.User{FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, Role: contract.RoleClient}, nil
	}
	w, err := decodeOne[userWire](data)
	if err != nil {
		return contract.User{}, err
	}
	return w.toContract(), nil
}

func (b *HTTPBackend) ListPlans(ctx context.Context) ([]contract.Plan, error) {
	data, err := b.invoke(ctx, http.MethodGet, "/api/plans", nil, nil, "")
	if err != nil {
		return nil, err
	}
	items, err := decodeList[planWire](data)
	if err != nil {
		return nil, err
	}
	out := make([]contract.Plan, 0, len(items))
	for _, p := range items {
		out = append(out, contract.Plan{
			ID:        p.ID,
			Name:      p.Name,
			FullPrice: p.FullPrice,
			Duration:  contract.PlanDuration(strings.ToUpper(p.Duration)),
		})
	}
	return out, nil
}

func (b *HTTPBackend) ListProfessionals(ctx context.Context, role contract.Role) ([]contract.Professional, error) {
	q := url.Values{}
	q.Set("role", string(role))
	data, err := b.invoke(ctx, http.MethodGet, "/api/professionals", q, nil, "")
	if err != nil {
		return nil, err
	}
	items, err := decodeList[professionalWire](data)
	if err != nil {
		return nil, err
	}
	out := make([]contract.Professional, 0, len(items))
	for _, p := range items {
		pro := p.toContract()
		if pro.Role == "" {
			pro.Role = role
		}
		out = append(out, pro)
	}
	return out, nil
}

func (b *HTTPBackend) Dashboard(ctx context.Context, userID int64) (contract.Dashboard, error) {
	data, err := b.invoke(ctx, http.MethodGet, fmt.Sprintf("/api/users/dashboard/%d", userID), nil, nil, "")
	if err != nil {
		return contract.Dashboard{}, err
	}
	w, err := decodeOne[dashboardWire](data)
	if err != nil {
		return contract.Dashboard{}, err
	}
	return w.toContract(b.loc), nil
}

func (b *HTTPBackend) ListClients(ctx context.Context, professionalID int64) ([]contract.User, error) {
	data, err := b.invoke(ctx, http.MethodGet, fmt.Sprintf("/api/professionals/%d/clients", professionalID), nil, nil, "")
	if err != nil {
		return nil, err
	}
	items, err := decodeList[userWire](data)
	if err != nil {
		return nil, err
	}
	out := make([]contract.User, 0, len(items))
	for _, u := range items {
		out = append(out, u.toContract())
	}
	return out, nil
}

func (b *HTTPBackend) ListSlots(ctx context.Context, professionalID int64) ([]contract.Slot, error) {
	data, err := b.invoke(ctx, http.MethodGet, fmt.Sprintf("/api/professionals/%d/slots", professionalID), nil, nil, "")
	if err != nil {
		return nil, err
	}
	items, err := decodeList[slotWire](data)
	if err != nil {
		return nil, err
	}
	out := make([]contract.Slot, 0, len(items))
	for _, w := range items {
		s, err := w.toContract(b.loc)
		if err != nil {
			b.log.Warn("skipping malformed slot", zap.Int64("professional_id", professionalID), zap.Error(err))
			continue
		}
		if s.ProfessionalID == 0 {
			s.ProfessionalID = professionalID
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *HTTPBackend) CreateSlots(ctx context.Context, professionalID int64, slots []contract.SlotInput) error {
	if len(slots) == 0 {
		return errors.New("no slots to create")
	}
	body := make([]slotInputWire, 0, len(slots))
	for _, s := range slots {
		if !s.End.After(s.Start) {
			return fmt.Errorf("slot starting %s ends before it starts", s.Start.Format(wireTimeLayout))
		}
		body = append(body, slotInputWire{
			StartTime:   formatTime(s.Start, b.loc),
			EndTime:     formatTime(s.End, b.loc),
			IsAvailable: s.Available,
		})
	}
	_, err := b.invokeJSON(ctx, http.MethodPost, fmt.Sprintf("/api/professionals/%d/slots", professionalID), nil, body)
	return err
}

func (b *HTTPBackend) DeleteSlot(ctx context.Context, professionalID, slotID int64) error {
	_, err := b.invoke(ctx, http.MethodDelete, fmt.Sprintf("/api/professionals/%d/slots/%d", professionalID, slotID), nil, nil, "")
	return err
}

func (b *HTTPBackend) CreateBooking(ctx context.Context, userID, slotID int64) (contract.Booking, error) {
	data, err := b.invokeJSON(ctx, http.MethodPost, "/api/bookings", nil, map[string]int64{"userId": userID, "slotId": slotID})
	if err != nil {
		return contract.Booking{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return contract.Booking{SlotID: slotID, ClientID: userID}, nil
	}
	w, err := decodeOne[bookingWire](data)
	if err != nil {
		return contract.Booking{}, err
	}
	return w.toContract(b.loc), nil
}

func (b *HTTPBackend) ListConversations(ctx context.Context, userID int64) ([]contract.Conversation, error) {
	data, err := b.invoke(ctx, http.MethodGet, fmt.Sprintf("/api/chat/conversations/%d", userID), nil, nil, "")
	if err != nil {
		return nil, err
	}
	items, err := decodeList[conversationWire](data)
	if err != nil {
		return nil, err
	}
	out := make([]contract.Conversation, 0, len(items))
	for _, c := range items {
		out = append(out, c.toContract(b.loc))
	}
	return out, nil
}

func (b *HTTPBackend) ListMessages(ctx context.Context, userID, otherID int64, page, size int) ([]contract.ChatMessage, error) {
	if size <= 0 {
		size = 50
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	data, err := b.invoke(ctx, http.MethodGet, fmt.Sprintf("/api/chat/conversation/%d/%d", userID, otherID), q, nil, "")
	if err != nil {
		return nil, err
	}
	items, err := decodeList[messageWire](data)
	if err != nil {
		return nil, err
	}
	out := make([]contract.ChatMessage, 0, len(items))
	for _, m := range items {
		out = append(out, m.toContract(b.loc))
	}
	return out, nil
}

func (b *HTTPBackend) SendMessage(ctx context.Context, senderID, receiverID int64, content string) (contract.ChatMessage, error) {
	body := struct {
		SenderID   int64  `json:"senderId"`
		ReceiverID int64  `json:"receiverId"`
		Content    string `json:"content"`
	}{senderID, receiverID, content}
	data, err := b.invokeJSON(ctx, http.MethodPost, "/api/chat/send", nil, body)
	if err != nil {
		return contract.ChatMessage{}, err
	}
	w, err := decodeOne[messageWire](data)
	if err != nil {
		return contract.ChatMessage{}, err
	}
	return w.toContract(b.loc), nil
}

func (b *HTTPBackend) MarkRead(ctx context.Context, receiverID, senderID int64) error {
	_, err := b.invoke(ctx, http.MethodPut, fmt.Sprintf("/api/chat/read/%d/%d", receiverID, senderID), nil, []byte("{}"), "application/json")
	return err
}

func (b *HTTPBackend) ListDocuments(ctx context.Context, clientID int64) ([]contract.Document, error) {
	data, err := b.invoke(ctx, http.MethodGet, fmt.Sprintf("/api/documents/client/%d", clientID), nil, nil, "")
	if err != nil {
		return nil, err
	}
	items, err := decodeList[documentWire](data)
	if err != nil {
		return nil, err
	}
	out := make([]contract.Document, 0, len(items))
	for _, d := range items {
		doc := d.toContract(b.loc)
		if doc.ClientID == 0 {
			doc.ClientID = clientID
		}
		out = append(out, doc)
	}
	return out, nil
}

func (b *HTTPBackend) DownloadDocument(ctx context.Context, clientID int64, docType contract.DocumentType) ([]byte, error) {
	return b.invoke(ctx, http.MethodGet, fmt.Sprintf("/api/documents/client/%d/%s", clientID, docType), nil, nil, "")
}

// ValidateUpload applies the client side document rules: non-empty, at most
// 10 MB, PDF by extension and by content.
func ValidateUpload(fileName string, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}
	if len(data) > contract.MaxDocumentBytes {
		return fmt.Errorf("%w: %s", ErrFileTooLarge, humanize.IBytes(uint64(len(data))))
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") || !bytes.HasPrefix(data, []byte("%PDF-")) {
		return ErrNotPDF
	}
	return nil
}

func (b *HTTPBackend) UploadDocument(ctx context.Context, in UploadInput) (contract.Document, error) {
	if err := ValidateUpload(in.FileName, in.Data); err != nil {
		return contract.Document{}, err
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(in.FileName)))
	header.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(header)
	if err != nil {
		return contract.Document{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(in.Data); err != nil {
		return contract.Document{}, fmt.Errorf("copy document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return contract.Document{}, fmt.Errorf("close multipart writer: %w", err)
	}
	data, err := b.invoke(ctx, http.MethodPost, fmt.Sprintf("/api/documents/client/%d/%s", in.ClientID, in.Type), nil, buf.Bytes(), writer.FormDataContentType())
	if err != nil {
		return contract.Document{}, err
	}
	doc := contract.Document{ClientID: in.ClientID, Type: in.Type, FileName: filepath.Base(in.FileName), SizeBytes: int64(len(in.Data))}
	if len(bytes.TrimSpace(data)) > 0 {
		if w, err := decodeOne[documentWire](data); err == nil {
			got := w.toContract(b.loc)
			if got.ID != 0 {
				doc.ID = got.ID
			}
			if !got.UploadedAt.IsZero() {
				doc.UploadedAt = got.UploadedAt
			}
		}
	}
	return doc, nil
}

func (b *HTTPBackend) DeleteDocument(ctx context.Context, documentID int64) error {
	_, err := b.invoke(ctx, http.MethodDelete, fmt.Sprintf("/api/documents/%d", documentID), nil, nil, "")
	return err
}

func (b *HTTPBackend) invokeJSON(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", path, err)
	}
	return b.invoke(ctx, method, path, query, body, "application/json")
}

// invoke sends one request. Idempotent methods are retried with exponential
// backoff on transport errors, 429 and 5xx; POST is sent once.
func (b *HTTPBackend) invoke(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) ([]byte, error) {
	fullURL := b.buildURL(path, query)
	retries := b.maxRetries
	if method == http.MethodPost {
		retries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		requestID := uuid.NewString()
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", b.userAgent)
		req.Header.Set("X-Request-ID", requestID)
		if token := b.currentToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if body != nil {
			ct := contentType
			if ct == "" {
				ct = "application/json"
			}
			req.Header.Set("Content-Type", ct)
		}
		start := time.Now()
		resp, err := b.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == retries {
				return nil, fmt.Errorf("%s %s: %w", method, path, err)
			}
			lastErr = err
			b.logRetry(path, attempt, 0, err)
			if sleepErr := b.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read response: %w", readErr)
		}
		b.log.Debug("api call",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", requestID),
			zap.Duration("elapsed", time.Since(start)))
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < retries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			b.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := b.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("request failed without response")
}

func (b *HTTPBackend) buildURL(path string, query url.Values) string {
	full := b.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

func (b *HTTPBackend) sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.backoff * time.Duration(1<<attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *HTTPBackend) logRetry(path string, attempt, status int, err error) {
	b.log.Warn("api retry",
		zap.String("path", path),
		zap.Int("attempt", attempt+1),
		zap.Int("status", status),
		zap.Error(err))
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}
