package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

// wireTimeLayout is what the API accepts for zone-less local date-times.
const wireTimeLayout = "2006-01-02T15:04:05"

var readLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	wireTimeLayout,
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime reads an API date-time. Values without an offset are wall
// clock times in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty time")
	}
	for _, layout := range readLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func optionalTime(s string, loc *time.Location) time.Time {
	t, err := parseTime(s, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(wireTimeLayout)
}

type userWire struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	ProfilePicture string `json:"profilePicture"`
}

func (w userWire) toContract() contract.User {
	return contract.User{
		ID:             w.ID,
		FirstName:      w.FirstName,
		LastName:       w.LastName,
		Email:          w.Email,
		Role:           contract.Role(strings.ToUpper(w.Role)),
		ProfilePicture: w.ProfilePicture,
	}
}

type loginWire struct {
	userWire
	Token string `json:"token"`
}

type planWire struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	FullPrice float64 `json:"fullPrice"`
	Duration  string  `json:"duration"`
}

type professionalWire struct {
	ID             int64  `json:"id"`
	FullName       string `json:"fullName"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Role           string `json:"role"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture"`
}

func (w professionalWire) toContract() contract.Professional {
	name := strings.TrimSpace(w.FullName)
	if name == "" {
		name = strings.TrimSpace(w.FirstName + " " + w.LastName)
	}
	return contract.Professional{
		ID:             w.ID,
		FullName:       name,
		Role:           contract.Role(strings.ToUpper(w.Role)),
		Email:          w.Email,
		ProfilePicture: w.ProfilePicture,
	}
}

type slotWire struct {
	ID             int64  `json:"id"`
	ProfessionalID int64  `json:"professionalId"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	IsAvailable    *bool  `json:"isAvailable"`
	Available      *bool  `json:"available"`
}

// toContract validates a slot once: both bounds present and ordered. The
// availability flag may arrive under either name; missing means available.
func (w slotWire) toContract(loc *time.Location) (contract.Slot, error) {
	start, err := parseTime(w.StartTime, loc)
	if err != nil {
		return contract.Slot{}, fmt.Errorf("slot %d start: %w", w.ID, err)
	}
	end, err := parseTime(w.EndTime, loc)
	if err != nil {
		return contract.Slot{}, fmt.Errorf("slot %d end: %w", w.ID, err)
	}
	if !end.After(start) {
		return contract.Slot{}, fmt.Errorf("slot %d ends before it starts", w.ID)
	}
	available := true
	switch {
	case w.IsAvailable != nil:
		available = *w.IsAvailable
	case w.Available != nil:
		available = *w.Available
	}
	return contract.Slot{
		ID:             w.ID,
		ProfessionalID: w.ProfessionalID,
		Start:          start,
		End:            end,
		Available:      available,
	}, nil
}

type slotInputWire struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsAvailable bool   `json:"isAvailable"`
}

type bookingWire struct {
	ID               int64  `json:"id"`
	SlotID           int64  `json:"slotId"`
	ClientID         int64  `json:"clientId"`
	UserID           int64  `json:"userId"`
	ClientName       string `json:"clientName"`
	ProfessionalID   int64  `json:"professionalId"`
	ProfessionalName string `json:"professionalName"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	Status           string `json:"status"`
}

func (w bookingWire) toContract(loc *time.Location) contract.Booking {
	client := w.ClientID
	if client == 0 {
		client = w.UserID
	}
	return contract.Booking{
		ID:               w.ID,
		SlotID:           w.SlotID,
		ClientID:         client,
		ClientName:       w.ClientName,
		ProfessionalID:   w.ProfessionalID,
		ProfessionalName: w.ProfessionalName,
		Start:            optionalTime(w.StartTime, loc),
		End:              optionalTime(w.EndTime, loc),
		Status:           w.Status,
	}
}

type subscriptionWire struct {
	PlanName         string `json:"planName"`
	PaymentFrequency string `json:"paymentFrequency"`
	Status           string `json:"status"`
	StartDate        string `json:"startDate"`
	EndDate          string `json:"endDate"`
}

type dashboardWire struct {
	Profile                userWire           `json:"profile"`
	Subscription           *subscriptionWire  `json:"subscription"`
	FollowingProfessionals []professionalWire `json:"followingProfessionals"`
	UpcomingBookings       []bookingWire      `json:"upcomingBookings"`
}

func (w dashboardWire) toContract(loc *time.Location) contract.Dashboard {
	out := contract.Dashboard{
		Profile:                w.Profile.toContract(),
		FollowingProfessionals: make([]contract.Professional, 0, len(w.FollowingProfessionals)),
		UpcomingBookings:       make([]contract.Booking, 0, len(w.UpcomingBookings)),
	}
	if s := w.Subscription; s != nil {
		out.Subscription = &contract.Subscription{
			PlanName:         s.PlanName,
			PaymentFrequency: s.PaymentFrequency,
			Status:           s.Status,
			StartDate:        optionalTime(s.StartDate, loc),
			EndDate:          optionalTime(s.EndDate, loc),
		}
	}
	for _, p := range w.FollowingProfessionals {
		out.FollowingProfessionals = append(out.FollowingProfessionals, p.toContract())
	}
	for _, b := range w.UpcomingBookings {
		out.UpcomingBookings = append(out.UpcomingBookings, b.toContract(loc))
	}
	return out
}

type conversationWire struct {
	OtherUserID     int64  `json:"otherUserId"`
	OtherUserName   string `json:"otherUserName"`
	OtherUserRole   string `json:"otherUserRole"`
	LastMessage     string `json:"lastMessage"`
	LastMessageTime string `json:"lastMessageTime"`
	UnreadCount     int    `json:"unreadCount"`
}

func (w conversationWire) toContract(loc *time.Location) contract.Conversation {
	c := contract.Conversation{
		OtherUserID:   w.OtherUserID,
		OtherUserName: w.OtherUserName,
		OtherUserRole: contract.Role(strings.ToUpper(w.OtherUserRole)),
		LastMessage:   w.LastMessage,
		UnreadCount:   w.UnreadCount,
	}
	if t, err := parseTime(w.LastMessageTime, loc); err == nil {
		c.LastMessageTime = &t
	}
	return c
}

type messageWire struct {
	ID           int64  `json:"id"`
	SenderID     int64  `json:"senderId"`
	SenderName   string `json:"senderName"`
	ReceiverID   int64  `json:"receiverId"`
	ReceiverName string `json:"receiverName"`
	Content      string `json:"content"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
}

func (w messageWire) toContract(loc *time.Location) contract.ChatMessage {
	status := contract.MessageStatus(strings.ToUpper(w.Status))
	if status == "" {
		status = contract.MessageSent
	}
	return contract.ChatMessage{
		ID:           w.ID,
		SenderID:     w.SenderID,
		SenderName:   w.SenderName,
		ReceiverID:   w.ReceiverID,
		ReceiverName: w.ReceiverName,
		Content:      w.Content,
		Status:       status,
		CreatedAt:    optionalTime(w.CreatedAt, loc),
	}
}

type documentWire struct {
	ID           int64  `json:"id"`
	ClientID     int64  `json:"clientId"`
	DocumentType string `json:"documentType"`
	Type         string `json:"type"`
	FileName     string `json:"fileName"`
	FileSize     int64  `json:"fileSize"`
	UploadedBy   int64  `json:"uploadedBy"`
	UploadDate   string `json:"uploadDate"`
	UploadedAt   string `json:"uploadedAt"`
}

func (w documentWire) toContract(loc *time.Location) contract.Document {
	typ := w.DocumentType
	if typ == "" {
		typ = w.Type
	}
	uploaded := w.UploadedAt
	if uploaded == "" {
		uploaded = w.UploadDate
	}
	return contract.Document{
		ID:         w.ID,
		ClientID:   w.ClientID,
		Type:       contract.DocumentType(strings.ToUpper(typ)),
		FileName:   w.FileName,
		SizeBytes:  w.FileSize,
		UploadedBy: w.UploadedBy,
		UploadedAt: optionalTime(uploaded, loc),
	}
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under "value".
func decodeList[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '{' {
		var wrapped struct {
			Value []T `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if wrapped.Value == nil {
			return []T{}, nil
		}
		return wrapped.Value, nil
	}
	var out []T
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func decodeOne[T any](data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
