package backend

import (
	"context"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

// UploadInput is one PDF to attach to a client's file.
type UploadInput struct {
	ClientID int64
	Type     contract.DocumentType
	FileName string
	Data     []byte
}

type Backend interface {
	Doctor(context.Context) ([]contract.DoctorCheck, error)
	SetToken(token string)

	Login(ctx context.Context, email, password string) (contract.Session, error)
	Register(ctx context.Context, in contract.Registration) (contract.User, error)
	ListPlans(context.Context) ([]contract.Plan, error)
	ListProfessionals(ctx context.Context, role contract.Role) ([]contract.Professional, error)
	Dashboard(ctx context.Context, userID int64) (contract.Dashboard, error)
	ListClients(ctx context.Context, professionalID int64) ([]contract.User, error)

	ListSlots(ctx context.Context, professionalID int64) ([]contract.Slot, error)
	CreateSlots(ctx context.Context, professionalID int64, slots []contract.SlotInput) error
	DeleteSlot(ctx context.Context, professionalID, slotID int64) error
	CreateBooking(ctx context.Context, userID, slotID int64) (contract.Booking, error)

	ListConversations(ctx context.Context, userID int64) ([]contract.Conversation, error)
	ListMessages(ctx context.Context, userID, otherID int64, page, size int) ([]contract.ChatMessage, error)
	SendMessage(ctx context.Context, senderID, receiverID int64, content string) (contract.ChatMessage, error)
	MarkRead(ctx context.Context, receiverID, senderID int64) error

	ListDocuments(ctx context.Context, clientID int64) ([]contract.Document, error)
	DownloadDocument(ctx context.Context, clientID int64, docType contract.DocumentType) ([]byte, error)
	UploadDocument(ctx context.Context, in UploadInput) (contract.Document, error)
	DeleteDocument(ctx context.Context, documentID int64) error
}
