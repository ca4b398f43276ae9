package contract

import (
	"fmt"
	"strings"
	"time"
)

const SchemaVersion = "v1"

type ErrorCode string

const (
	ErrGeneric            ErrorCode = "GENERIC_FAILURE"
	ErrInvalidUsage       ErrorCode = "INVALID_USAGE"
	ErrUnauthenticated    ErrorCode = "UNAUTHENTICATED"
	ErrPermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrConflict           ErrorCode = "CONFLICT"
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrLocked             ErrorCode = "SLOT_LOCKED"
)

type ErrorEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Error         ErrorBody      `json:"error"`
	Meta          map[string]any `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

type SuccessEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Command       string         `json:"command"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Data          any            `json:"data"`
	Meta          map[string]any `json:"meta"`
	Warnings      []string       `json:"warnings"`
}

type Role string

const (
	RoleClient          Role = "CLIENT"
	RolePersonalTrainer Role = "PERSONAL_TRAINER"
	RoleNutritionist    Role = "NUTRITIONIST"
	RoleAdmin           Role = "ADMIN"
)

const roleProfessionalHint = "PERSONAL_TRAINER|NUTRITIONIST"

// IsProfessional reports whether the role owns an availability calendar.
func (r Role) IsProfessional() bool {
	return r == RolePersonalTrainer || r == RoleNutritionist
}

// ParseProfessionalRole accepts the wire names and a few short aliases.
func ParseProfessionalRole(v string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "PERSONAL_TRAINER", "PT", "TRAINER":
		return RolePersonalTrainer, nil
	case "NUTRITIONIST", "NUTRI":
		return RoleNutritionist, nil
	default:
		return "", fmt.Errorf("invalid role %q: want %s", v, roleProfessionalHint)
	}
}

type User struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Session struct {
	Token     string     `json:"token"`
	User      User       `json:"user"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Registration struct {
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	Email                  string `json:"email"`
	Password               string `json:"password"`
	SelectedPlanID         int64  `json:"selectedPlanId"`
	PaymentFrequency       string `json:"paymentFrequency"`
	SelectedPtID           int64  `json:"selectedPtId"`
	SelectedNutritionistID int64  `json:"selectedNutritionistId"`
	ProfilePicture         string `json:"profilePicture,omitempty"`
}

type PlanDuration string

const (
	DurationSemiannual PlanDuration = "SEMESTRALE"
	DurationAnnual     PlanDuration = "ANNUALE"
)

type Plan struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	FullPrice float64      `json:"full_price"`
	Duration  PlanDuration `json:"duration"`
}

type Professional struct {
	ID             int64  `json:"id"`
	FullName       string `json:"full_name"`
	Role           Role   `json:"role,omitempty"`
	Email          string `json:"email,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

type Subscription struct {
	PlanName         string    `json:"plan_name"`
	PaymentFrequency string    `json:"payment_frequency,omitempty"`
	Status           string    `json:"status,omitempty"`
	StartDate        time.Time `json:"start_date,omitempty"`
	EndDate          time.Time `json:"end_date,omitempty"`
}

type Booking struct {
	ID               int64     `json:"id"`
	SlotID           int64     `json:"slot_id,omitempty"`
	ClientID         int64     `json:"client_id,omitempty"`
	ClientName       string    `json:"client_name,omitempty"`
	ProfessionalID   int64     `json:"professional_id,omitempty"`
	ProfessionalName string    `json:"professional_name,omitempty"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Status           string    `json:"status,omitempty"`
}

type Dashboard struct {
	Profile                User           `json:"profile"`
	Subscription           *Subscription  `json:"subscription,omitempty"`
	FollowingProfessionals []Professional `json:"following_professionals"`
	UpcomingBookings       []Booking      `json:"upcoming_bookings"`
}

// Slot is one availability interval published by a professional.
type Slot struct {
	ID             int64     `json:"id"`
	ProfessionalID int64     `json:"professional_id,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Available      bool      `json:"available"`
}

// SlotInput is a new availability interval to publish.
type SlotInput struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

type Conversation struct {
	OtherUserID     int64      `json:"other_user_id"`
	OtherUserName   string     `json:"other_user_name"`
	OtherUserRole   Role       `json:"other_user_role"`
	LastMessage     string     `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int        `json:"unread_count"`
}

type MessageStatus string

const (
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
	// Client-side states for messages the server has not acknowledged.
	MessagePending MessageStatus = "PENDING"
	MessageFailed  MessageStatus = "FAILED"
)

type ChatMessage struct {
	ID           int64         `json:"id,omitempty"`
	TempID       string        `json:"temp_id,omitempty"`
	SenderID     int64         `json:"sender_id"`
	SenderName   string        `json:"sender_name,omitempty"`
	ReceiverID   int64         `json:"receiver_id"`
	ReceiverName string        `json:"receiver_name,omitempty"`
	Content      string        `json:"content"`
	Status       MessageStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Provisional reports whether the message has no server identity yet.
func (m ChatMessage) Provisional() bool {
	return m.ID == 0 && m.TempID != ""
}

type DocumentType string

const (
	DocWorkoutPlan     DocumentType = "WORKOUT_PLAN"
	DocDietPlan        DocumentType = "DIET_PLAN"
	DocMedicalCert     DocumentType = "MEDICAL_CERT"
	DocInsurancePolicy DocumentType = "INSURANCE_POLICE"
)

// MaxDocumentBytes is the upload ceiling enforced before any request is made.
const MaxDocumentBytes = 10 << 20

func DocumentTypes() []DocumentType {
	return []DocumentType{DocWorkoutPlan, DocDietPlan, DocMedicalCert, DocInsurancePolicy}
}

func ParseDocumentType(v string) (DocumentType, error) {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), "-", "_"))
	for _, t := range DocumentTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	switch s {
	case "WORKOUT":
		return DocWorkoutPlan, nil
	case "DIET":
		return DocDietPlan, nil
	case "MEDICAL":
		return DocMedicalCert, nil
	case "INSURANCE", "INSURANCE_POLICY":
		return DocInsurancePolicy, nil
	}
	return "", fmt.Errorf("invalid document type %q", v)
}

type Document struct {
	ID         int64        `json:"id"`
	ClientID   int64        `json:"client_id"`
	Type       DocumentType `json:"type"`
	FileName   string       `json:"file_name"`
	SizeBytes  int64        `json:"size_bytes,omitempty"`
	UploadedBy int64        `json:"uploaded_by,omitempty"`
	UploadedAt time.Time    `json:"uploaded_at,omitempty"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
