package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalia/portal/internal/domain/profile"
	"github.com/vitalia/portal/internal/platform/auth"
	"github.com/vitalia/portal/internal/platform/websocket"
)

// ── Mocks ──

type mockRepo struct {
	data     map[uuid.UUID]*Consultation
	messages *mockMessageRepo
	names    map[uuid.UUID]string
}

func (m *mockRepo) Create(_ context.Context, c *Consultation) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.data[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Consultation, error) {
	c, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, c *Consultation) error {
	if _, ok := m.data[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now()
	cp := *c
	m.data[c.ID] = &cp
	return nil
}

func (m *mockRepo) ListForUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	var out []*Consultation
	for _, c := range m.data {
		if c.Participant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockRepo) Conversations(_ context.Context, userID uuid.UUID) ([]*Conversation, error) {
	var out []*Conversation
	for _, c := range m.data {
		if !c.Participant(userID) {
			continue
		}
		other := c.Counterpart(userID)
		cv := &Conversation{
			ConsultationID:  c.ID,
			Status:          c.Status,
			CounterpartID:   other,
			CounterpartName: m.names[other],
			UpdatedAt:       c.UpdatedAt,
		}
		for _, msg := range m.messages.thread(c.ID) {
			body, at := msg.Body, msg.CreatedAt
			cv.LastMessage, cv.LastMessageAt = &body, &at
			if msg.SenderID != userID && msg.ReadAt == nil {
				cv.UnreadCount++
			}
		}
		out = append(out, cv)
	}
	return out, nil
}

type mockMessageRepo struct {
	items []*Message
	clock time.Time
}

func (m *mockMessageRepo) thread(id uuid.UUID) []*Message {
	var out []*Message
	for _, msg := range m.items {
		if msg.ConsultationID == id {
			out = append(out, msg)
		}
	}
	return out
}

func (m *mockMessageRepo) Create(_ context.Context, msg *Message) error {
	m.clock = m.clock.Add(time.Second)
	msg.ID = uuid.New()
	msg.CreatedAt = m.clock
	cp := *msg
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockMessageRepo) ListByConsultation(_ context.Context, id uuid.UUID, limit, offset int) ([]*Message, int, error) {
	all := m.thread(id)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *mockMessageRepo) MarkRead(_ context.Context, id, readerID uuid.UUID, at time.Time) (int, error) {
	n := 0
	for _, msg := range m.thread(id) {
		if msg.SenderID != readerID && msg.ReadAt == nil {
			t := at
			msg.ReadAt = &t
			n++
		}
	}
	return n, nil
}

type mockPatients map[uuid.UUID]*profile.Profile

func (m mockPatients) GetByID(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, ok := m[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return p, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
	fail   bool
}

func (r *recordingPublisher) Publish(_ context.Context, ev websocket.Event) error {
	if r.fail {
		return errors.New("hub closed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	messages *mockMessageRepo
	events   *recordingPublisher
	doctor   uuid.UUID
	patient  uuid.UUID
	outsider uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{doctor: uuid.New(), patient: uuid.New(), outsider: uuid.New()}
	f.messages = &mockMessageRepo{clock: time.Now().Add(-time.Hour)}
	f.repo = &mockRepo{
		data:     map[uuid.UUID]*Consultation{},
		messages: f.messages,
		names:    map[uuid.UUID]string{f.doctor: "Dr. Demo", f.patient: "Sarah Johnson"},
	}
	f.events = &recordingPublisher{}
	patients := mockPatients{
		f.patient:  {ID: f.patient, Role: auth.RolePatient, FullName: "Sarah Johnson"},
		f.outsider: {ID: f.outsider, Role: auth.RolePatient, FullName: "Other"},
		f.doctor:   {ID: f.doctor, Role: auth.RoleDoctor, FullName: "Dr. Demo"},
	}
	f.svc = NewService(f.repo, f.messages, patients, f.events, zerolog.Nop())
	return f
}

func sessionCtx(userID uuid.UUID, role string) context.Context {
	return auth.WithSession(context.Background(), &auth.Session{
		State: auth.StateAuthenticated, ID: "s1", UserID: userID.String(), Role: role,
	})
}

func (f *fixture) doctorCtx() context.Context   { return sessionCtx(f.doctor, auth.RoleDoctor) }
func (f *fixture) patientCtx() context.Context  { return sessionCtx(f.patient, auth.RolePatient) }
func (f *fixture) outsiderCtx() context.Context { return sessionCtx(f.outsider, auth.RolePatient) }

func (f *fixture) open(t *testing.T) *Consultation {
	t.Helper()
	c, err := f.svc.Create(f.doctorCtx(), CreateRequest{PatientID: f.patient})
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}
	return c
}

// ── Consultations ──

func TestService_Create(t *testing.T) {
	f := newFixture()
	notes := "  follow up on headaches  "
	c, err := f.svc.Create(f.doctorCtx(), CreateRequest{PatientID: f.patient, DoctorNotes: &notes})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusActive || c.DoctorID != f.doctor {
		t.Errorf("unexpected consultation: %+v", c)
	}
	if c.DoctorNotes == nil || *c.DoctorNotes != "follow up on headaches" {
		t.Errorf("expected trimmed notes, got %v", c.DoctorNotes)
	}
}

func TestService_Create_Rejects(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Create(f.patientCtx(), CreateRequest{PatientID: f.patient}); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient create: expected ErrForbidden, got %v", err)
	}
	var ve *ValidationError
	if _, err := f.svc.Create(f.doctorCtx(), CreateRequest{}); !errors.As(err, &ve) {
		t.Errorf("missing patient: expected ValidationError, got %v", err)
	}
	if _, err := f.svc.Create(f.doctorCtx(), CreateRequest{PatientID: f.doctor}); !errors.As(err, &ve) {
		t.Errorf("doctor as patient: expected ValidationError, got %v", err)
	}
	if _, err := f.svc.Create(f.doctorCtx(), CreateRequest{PatientID: uuid.New()}); !errors.As(err, &ve) {
		t.Errorf("unknown patient: expected ValidationError, got %v", err)
	}
}

func TestService_Update(t *testing.T) {
	f := newFixture()
	c := f.open(t)

	status, risk, why := "Completed", "HIGH", "BP 185/125"
	out, err := f.svc.Update(f.doctorCtx(), c.ID, UpdateRequest{
		Status:            &status,
		AIRiskScore:       &risk,
		AIRiskExplanation: &why,
		AISummary:         json.RawMessage(`{"summary":"stable"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != StatusCompleted || *out.AIRiskScore != RiskHigh || *out.AIRiskExplanation != why {
		t.Errorf("unexpected update: %+v", out)
	}
	if string(out.AISummary) != `{"summary":"stable"}` {
		t.Errorf("unexpected summary: %s", out.AISummary)
	}
}

func TestService_Update_Validation(t *testing.T) {
	f := newFixture()
	c := f.open(t)
	bad := "archived"
	var ve *ValidationError
	if _, err := f.svc.Update(f.doctorCtx(), c.ID, UpdateRequest{Status: &bad}); !errors.As(err, &ve) {
		t.Errorf("bad status: expected ValidationError, got %v", err)
	}
	if _, err := f.svc.Update(f.doctorCtx(), c.ID, UpdateRequest{AIRiskScore: &bad}); !errors.As(err, &ve) {
		t.Errorf("bad risk: expected ValidationError, got %v", err)
	}
	if _, err := f.svc.Update(f.doctorCtx(), c.ID, UpdateRequest{AISummary: json.RawMessage(`{oops`)}); !errors.As(err, &ve) {
		t.Errorf("bad json: expected ValidationError, got %v", err)
	}
}

func TestService_Update_OnlyOwningDoctor(t *testing.T) {
	f := newFixture()
	c := f.open(t)
	status := StatusCancelled
	if _, err := f.svc.Update(f.patientCtx(), c.ID, UpdateRequest{Status: &status}); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient update: expected ErrForbidden, got %v", err)
	}
	other := sessionCtx(uuid.New(), auth.RoleDoctor)
	if _, err := f.svc.Update(other, c.ID, UpdateRequest{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Errorf("other doctor: expected ErrNotFound, got %v", err)
	}
}

func TestService_Get_HiddenFromOutsiders(t *testing.T) {
	f := newFixture()
	c := f.open(t)
	if _, err := f.svc.Get(f.patientCtx(), c.ID); err != nil {
		t.Errorf("patient should read own consultation: %v", err)
	}
	if _, err := f.svc.Get(f.outsiderCtx(), c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("outsider: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), c.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("anonymous: expected ErrForbidden, got %v", err)
	}
}

func TestService_List(t *testing.T) {
	f := newFixture()
	f.open(t)
	f.open(t)
	items, total, err := f.svc.List(f.patientCtx(), 10, 0)
	if err != nil || total != 2 || len(items) != 2 {
		t.Errorf("expected 2 consultations, got %d/%d (%v)", len(items), total, err)
	}
	items, total, _ = f.svc.List(f.outsiderCtx(), 10, 0)
	if total != 0 || len(items) != 0 {
		t.Errorf("outsider should see nothing, got %d", total)
	}
}

// ── Messages ──

func TestService_SendMessage(t *testing.T) {
	f := newFixture()
	c := f.open(t)

	m, err := f.svc.SendMessage(f.patientCtx(), c.ID, "  I still have a headache  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Body != "I still have a headache" || m.SenderRole != auth.RolePatient || m.SenderID != f.patient {
		t.Errorf("unexpected message: %+v", m)
	}
	if len(f.events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.events.events))
	}
	ev := f.events.events[0]
	if ev.Type != EventMessageCreated || ev.Topic != "consultation:"+c.ID.String() || ev.ResourceID != m.ID.String() {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestService_SendMessage_Validation(t *testing.T) {
	f := newFixture()
	c := f.open(t)
	var ve *ValidationError
	if _, err := f.svc.SendMessage(f.patientCtx(), c.ID, "   "); !errors.As(err, &ve) {
		t.Errorf("blank: expected ValidationError, got %v", err)
	}
	long := make([]rune, MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := f.svc.SendMessage(f.patientCtx(), c.ID, string(long)); !errors.As(err, &ve) {
		t.Errorf("too long: expected ValidationError, got %v", err)
	}
	if _, err := f.svc.SendMessage(f.outsiderCtx(), c.ID, "hello"); !errors.Is(err, ErrNotFound) {
		t.Errorf("outsider: expected ErrNotFound, got %v", err)
	}
	if len(f.messages.items) != 0 {
		t.Error("rejected messages must not be stored")
	}
}

func TestService_SendMessage_PublishFailureKeepsMessage(t *testing.T) {
	f := newFixture()
	c := f.open(t)
	f.events.fail = true
	if _, err := f.svc.SendMessage(f.doctorCtx(), c.ID, "How are you feeling?"); err != nil {
		t.Fatalf("publish failure must not fail the send: %v", err)
	}
	if len(f.messages.items) != 1 {
		t.Error("message should be stored")
	}
}

func TestService_MarkReadAndConversations(t *testing.T) {
	f := newFixture()
	c := f.open(t)
	for _, body := range []string{"Hi Sarah", "Please log your vitals"} {
		if _, err := f.svc.SendMessage(f.doctorCtx(), c.ID, body); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if _, err := f.svc.SendMessage(f.patientCtx(), c.ID, "Will do"); err != nil {
		t.Fatalf("send: %v", err)
	}

	list, err := f.svc.Conversations(f.patientCtx())
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(list.Conversations) != 1 || list.TotalUnread != 2 {
		t.Fatalf("expected 1 conversation with 2 unread, got %+v", list)
	}
	cv := list.Conversations[0]
	if cv.CounterpartName != "Dr. Demo" || cv.LastMessage == nil || *cv.LastMessage != "Will do" {
		t.Errorf("unexpected conversation: %+v", cv)
	}

	n, err := f.svc.MarkRead(f.patientCtx(), c.ID)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 marked, got %d (%v)", n, err)
	}
	list, _ = f.svc.Conversations(f.patientCtx())
	if list.TotalUnread != 0 {
		t.Errorf("expected 0 unread after MarkRead, got %d", list.TotalUnread)
	}

	doctorList, _ := f.svc.Conversations(f.doctorCtx())
	if doctorList.TotalUnread != 1 {
		t.Errorf("doctor should have 1 unread, got %d", doctorList.TotalUnread)
	}
}

func TestService_Conversations_EmptyIsNotNil(t *testing.T) {
	f := newFixture()
	list, err := f.svc.Conversations(f.outsiderCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Conversations == nil || list.TotalUnread != 0 {
		t.Errorf("unexpected list: %+v", list)
	}
}

// ── Websocket authorization ──

func TestService_Authorize(t *testing.T) {
	f := newFixture()
	c := f.open(t)
	patient := &websocket.Client{ID: "c1", UserID: f.patient.String(), Role: auth.RolePatient}
	outsider := &websocket.Client{ID: "c2", UserID: f.outsider.String(), Role: auth.RolePatient}

	if !f.svc.Authorize(context.Background(), patient, Topic(c.ID)) {
		t.Error("participant should be allowed")
	}
	if f.svc.Authorize(context.Background(), outsider, Topic(c.ID)) {
		t.Error("outsider should be refused")
	}
	if f.svc.Authorize(context.Background(), patient, "vitals:"+c.ID.String()) {
		t.Error("foreign topic should be refused")
	}
	if f.svc.Authorize(context.Background(), patient, "consultation:not-a-uuid") {
		t.Error("malformed topic should be refused")
	}
}
