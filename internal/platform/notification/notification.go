// Package notification delivers templated account emails (password reset,
// welcome). Delivery goes through an EmailSender: SMTP when configured,
// otherwise a sender that writes the message to the log.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

const (
	TemplatePasswordReset = "password-reset"
	TemplateWelcome       = "welcome"
)

// Notification is a single outbound email.
type Notification struct {
	ID         string     `json:"id"`
	Recipient  string     `json:"recipient"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	TemplateID string     `json:"template_id,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// EmailSender sends an email message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplatePasswordReset,
			Subject: "Reset your Vitalia password",
			Body: "You requested a password reset. Click the following link to reset your password: {{reset_link}}\n\n" +
				"The link expires in {{expires_in}}. If you did not request this, you can ignore this email.",
		},
		{
			ID:      TemplateWelcome,
			Subject: "Welcome to Vitalia, {{name}}",
			Body:    "Hi {{name}}, your {{role}} account is ready. Sign in at {{login_link}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render substitutes data into the template. Unknown placeholders are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Senders
// ---------------------------------------------------------------------------

// LogEmailSender writes messages to the logger instead of delivering them.
// Bodies carry reset links, so they are only logged at debug level.
type LogEmailSender struct {
	logger zerolog.Logger
}

func NewLogEmailSender(logger zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().Str("to", to).Str("subject", subject).Msg("email (log delivery)")
	s.logger.Debug().Str("to", to).Str("body", body).Msg("email body")
	return nil
}

// SMTPConfig configures SMTPEmailSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout bounds a whole SMTP session. Zero means 10s.
	Timeout  time.Duration
}

// SMTPEmailSender delivers through an SMTP relay, upgrading to STARTTLS when
// the relay offers it and using PLAIN auth when a username is set. Each send
// opens its own session. Connecting is bounded by the caller's context and
// every SMTP exchange by cfg.Timeout.
type SMTPEmailSender struct {
	cfg SMTPConfig
}

func NewSMTPEmailSender(cfg SMTPConfig) *SMTPEmailSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPEmailSender{cfg: cfg}
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.message(to, subject, body)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPEmailSender) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithDialContextFunc(dialWithDeadline),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}

func (s *SMTPEmailSender) message(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("smtp sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("smtp recipient address: %w", err)
	}
	msg.Subject(stripCRLF(subject))
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// dialWithDeadline copies the dial deadline onto the connection, so a relay
// that stalls after accepting cannot outlive it.
func dialWithDeadline(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func stripCRLF(s string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Mailer renders and sends templated emails.
type Mailer interface {
	SendTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error)
}

// NotificationManager renders templates and keeps a bounded history of what
// was sent.
type NotificationManager struct {
	mu      sync.Mutex
	email   EmailSender
	tpl     *TemplateEngine
	logger  zerolog.Logger
	history []*Notification
	keep    int
}

func NewNotificationManager(email EmailSender, tpl *TemplateEngine, logger zerolog.Logger) *NotificationManager {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &NotificationManager{email: email, tpl: tpl, logger: logger, keep: 100}
}

func (m *NotificationManager) SendTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	if recipient == "" {
		return nil, errors.New("recipient is required")
	}
	subject, body, err := m.tpl.Render(templateID, data)
	if err != nil {
		return nil, err
	}

	n := &Notification{
		ID:         uuid.NewString(),
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Status:     "pending",
		CreatedAt:  time.Now().UTC(),
	}

	if err := m.email.SendEmail(ctx, recipient, subject, body); err != nil {
		n.Status = "failed"
		n.Error = err.Error()
		m.record(n)
		m.logger.Error().Err(err).Str("template", templateID).Str("notification_id", n.ID).Msg("email delivery failed")
		return n, err
	}

	now := time.Now().UTC()
	n.Status = "sent"
	n.SentAt = &now
	m.record(n)
	m.logger.Debug().Str("template", templateID).Str("notification_id", n.ID).Msg("email sent")
	return n, nil
}

func (m *NotificationManager) record(n *Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, n)
	if len(m.history) > m.keep {
		m.history = m.history[len(m.history)-m.keep:]
	}
}

// Recent returns the most recent notifications, newest last.
func (m *NotificationManager) Recent() []*Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Notification, len(m.history))
	copy(out, m.history)
	return out
}
