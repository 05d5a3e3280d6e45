package consultation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("consultation not found")
	ErrForbidden = errors.New("only the consulting doctor may change this consultation")
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"

	MaxMessageLength = 4000

	EventMessageCreated = "message.created"
	EventMessagesRead   = "messages.read"
)

var validStatuses = map[string]bool{
	StatusActive: true, StatusCompleted: true, StatusCancelled: true,
}

var validRiskScores = map[string]bool{
	RiskLow: true, RiskMedium: true, RiskHigh: true,
}

// Consultation maps to the consultations table.
type Consultation struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	PatientID         uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID          uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	DoctorNotes       *string         `db:"doctor_notes" json:"doctor_notes"`
	AISummary         json.RawMessage `db:"ai_summary" json:"ai_summary"`
	AIRiskScore       *string         `db:"ai_risk_score" json:"ai_risk_score"`
	AIRiskExplanation *string         `db:"ai_risk_explanation" json:"ai_risk_explanation"`
	Status            string          `db:"status" json:"status"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Participant reports whether userID is the consultation's patient or doctor.
func (c *Consultation) Participant(userID uuid.UUID) bool {
	return c.PatientID == userID || c.DoctorID == userID
}

// Counterpart returns the other participant.
func (c *Consultation) Counterpart(userID uuid.UUID) uuid.UUID {
	if c.PatientID == userID {
		return c.DoctorID
	}
	return c.PatientID
}

// Message maps to the consultation_messages table.
type Message struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ConsultationID uuid.UUID  `db:"consultation_id" json:"consultation_id"`
	SenderID       uuid.UUID  `db:"sender_id" json:"sender_id"`
	SenderRole     string     `db:"sender_role" json:"sender_role"`
	Body           string     `db:"body" json:"body"`
	ReadAt         *time.Time `db:"read_at" json:"read_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type CreateRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	DoctorNotes *string   `json:"doctor_notes"`
}

// UpdateRequest changes only the fields that are present.
type UpdateRequest struct {
	DoctorNotes       *string         `json:"doctor_notes"`
	Status            *string         `json:"status"`
	AISummary         json.RawMessage `json:"ai_summary"`
	AIRiskScore       *string         `json:"ai_risk_score"`
	AIRiskExplanation *string         `json:"ai_risk_explanation"`
}

// Conversation is one row of the caller's chat list.
type Conversation struct {
	ConsultationID  uuid.UUID  `json:"consultation_id"`
	Status          string     `json:"status"`
	CounterpartID   uuid.UUID  `json:"counterpart_id"`
	CounterpartName string     `json:"counterpart_name"`
	CounterpartRole string     `json:"counterpart_role"`
	AvatarURL       *string    `json:"avatar_url"`
	LastMessage     *string    `json:"last_message"`
	LastMessageAt   *time.Time `json:"last_message_at"`
	UnreadCount     int        `json:"unread_count"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ConversationList struct {
	Conversations []*Conversation `json:"conversations"`
	TotalUnread   int             `json:"total_unread"`
}
