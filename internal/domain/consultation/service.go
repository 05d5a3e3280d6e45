package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalia/portal/internal/domain/profile"
	"github.com/vitalia/portal/internal/platform/auth"
	"github.com/vitalia/portal/internal/platform/db"
	"github.com/vitalia/portal/internal/platform/websocket"
)

const topicPrefix = "consultation:"

// ValidationError is reported to the caller as a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// PatientLookup resolves the patient a consultation is opened for.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
}

type Service struct {
	consultations Repository
	messages      MessageRepository
	patients      PatientLookup
	events        websocket.EventPublisher
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(consultations Repository, messages MessageRepository, patients PatientLookup, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		consultations: consultations,
		messages:      messages,
		patients:      patients,
		events:        events,
		logger:        logger,
		now:           time.Now,
	}
}

// Topic is the websocket topic carrying a consultation's events.
func Topic(id uuid.UUID) string {
	return topicPrefix + id.String()
}

func caller(ctx context.Context) (*auth.Session, uuid.UUID, error) {
	sess := auth.SessionFromContext(ctx)
	if !sess.Authenticated() {
		return nil, uuid.Nil, ErrForbidden
	}
	id, err := uuid.Parse(sess.UserID)
	if err != nil {
		return nil, uuid.Nil, ErrForbidden
	}
	return sess, id, nil
}

// participantOf loads id and hides it from anyone outside the consultation.
func (s *Service) participantOf(ctx context.Context, id uuid.UUID) (*Consultation, *auth.Session, uuid.UUID, error) {
	sess, userID, err := caller(ctx)
	if err != nil {
		return nil, nil, uuid.Nil, err
	}
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, nil, uuid.Nil, err
	}
	if !c.Participant(userID) {
		return nil, nil, uuid.Nil, ErrNotFound
	}
	return c, sess, userID, nil
}

// -- Consultations --

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Consultation, error) {
	sess, doctorID, err := caller(ctx)
	if err != nil || !sess.IsDoctor() {
		return nil, ErrForbidden
	}
	if req.PatientID == uuid.Nil {
		return nil, invalid("patient_id is required")
	}
	p, err := s.patients.GetByID(ctx, req.PatientID)
	if errors.Is(err, profile.ErrNotFound) || (err == nil && p.Role != auth.RolePatient) {
		return nil, invalid("patient_id does not reference a patient")
	}
	if err != nil {
		return nil, fmt.Errorf("look up patient: %w", err)
	}

	c := &Consultation{
		PatientID:   req.PatientID,
		DoctorID:    doctorID,
		DoctorNotes: trimmed(req.DoctorNotes),
		Status:      StatusActive,
	}
	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create consultation: %w", err)
	}
	s.logger.Info().Str("consultation_id", c.ID.String()).Str("patient_id", c.PatientID.String()).Msg("consultation opened")
	return c, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Consultation, error) {
	c, sess, userID, err := s.participantOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsDoctor() || c.DoctorID != userID {
		return nil, ErrForbidden
	}

	if req.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*req.Status))
		if !validStatuses[status] {
			return nil, invalid("invalid status: %s", *req.Status)
		}
		c.Status = status
	}
	if req.AIRiskScore != nil {
		score := strings.ToLower(strings.TrimSpace(*req.AIRiskScore))
		if !validRiskScores[score] {
			return nil, invalid("invalid ai_risk_score: %s", *req.AIRiskScore)
		}
		c.AIRiskScore = &score
	}
	if len(req.AISummary) > 0 {
		if !json.Valid(req.AISummary) {
			return nil, invalid("ai_summary must be valid JSON")
		}
		if string(req.AISummary) == "null" {
			c.AISummary = nil
		} else {
			c.AISummary = req.AISummary
		}
	}
	if req.DoctorNotes != nil {
		c.DoctorNotes = trimmed(req.DoctorNotes)
	}
	if req.AIRiskExplanation != nil {
		c.AIRiskExplanation = trimmed(req.AIRiskExplanation)
	}

	if err := s.consultations.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update consultation: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, _, _, err := s.participantOf(ctx, id)
	return c, err
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Consultation, int, error) {
	_, userID, err := caller(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.consultations.ListForUser(ctx, userID, limit, offset)
}

// -- Messages --

func (s *Service) Messages(ctx context.Context, id uuid.UUID, limit, offset int) ([]*Message, int, error) {
	if _, _, _, err := s.participantOf(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.messages.ListByConsultation(ctx, id, limit, offset)
}

// SendMessage stores body and announces it on the consultation's topic.
// Delivery failures are logged; the message is already saved.
func (s *Service) SendMessage(ctx context.Context, id uuid.UUID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalid("message body is required")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, invalid("message must be at most %d characters", MaxMessageLength)
	}

	c, sess, userID, err := s.participantOf(ctx, id)
	if err != nil {
		return nil, err
	}
	m := &Message{
		ConsultationID: c.ID,
		SenderID:       userID,
		SenderRole:     sess.Role,
		Body:           body,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	s.publish(ctx, c.ID, EventMessageCreated, m.ID, m)
	return m, nil
}

// MarkRead marks the counterpart's messages read and returns how many changed.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) (int, error) {
	c, _, userID, err := s.participantOf(ctx, id)
	if err != nil {
		return 0, err
	}
	n, err := s.messages.MarkRead(ctx, c.ID, userID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	if n > 0 {
		s.publish(ctx, c.ID, EventMessagesRead, uuid.Nil, map[string]interface{}{
			"reader_id": userID,
			"count":     n,
		})
	}
	return n, nil
}

func (s *Service) Conversations(ctx context.Context) (*ConversationList, error) {
	_, userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.consultations.Conversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := &ConversationList{Conversations: items}
	if out.Conversations == nil {
		out.Conversations = []*Conversation{}
	}
	for _, cv := range items {
		out.TotalUnread += cv.UnreadCount
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, consultationID uuid.UUID, eventType string, resourceID uuid.UUID, payload interface{}) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to encode event")
		return
	}
	ev := websocket.Event{
		Type:         eventType,
		Topic:        Topic(consultationID),
		ResourceType: "consultation_message",
		Data:         data,
	}
	if resourceID != uuid.Nil {
		ev.ResourceID = resourceID.String()
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("consultation_id", consultationID.String()).Str("event", eventType).Msg("event publish failed")
	}
}

// Authorize admits websocket subscriptions to topics of consultations the
// client participates in. Other topics are refused.
func (s *Service) Authorize(ctx context.Context, client *websocket.Client, topic string) bool {
	raw, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return false
	}
	ctx = db.WithIdentity(ctx, db.Identity{UserID: client.UserID, Role: client.Role})
	ctx = auth.WithSession(ctx, &auth.Session{
		State:  auth.StateAuthenticated,
		UserID: client.UserID,
		Role:   client.Role,
	})
	if _, err := s.Get(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("topic", topic).Msg("subscription check failed")
		}
		return false
	}
	return true
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
