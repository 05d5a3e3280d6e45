package consultation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Update(ctx context.Context, c *Consultation) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Consultation, int, error)
	// Conversations lists userID's consultations ordered by latest activity.
	Conversations(ctx context.Context, userID uuid.UUID) ([]*Conversation, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListByConsultation(ctx context.Context, consultationID uuid.UUID, limit, offset int) ([]*Message, int, error)
	// MarkRead stamps every unread message in the thread not sent by readerID.
	MarkRead(ctx context.Context, consultationID, readerID uuid.UUID, at time.Time) (int, error)
}
