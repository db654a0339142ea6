package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/secutils/core/internal/config"
	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/apperr"
	"github.com/secutils/core/internal/pkg/logger"
)

// EmailMessage is the built email value C8 hands to Transport. Grounded on
// the teacher's internal/mailing/email_sender.go message shape, stripped
// of the SparkPost-specific transmission envelope (spec.md §6: the SMTP
// wire protocol itself is out of scope).
type EmailMessage struct {
	From    string
	ReplyTo string
	To      string
	Subject string
	Date    time.Time
	Text    string
	HTML    string
}

// Transport is the out-of-scope collaborator (spec.md §6) that actually
// delivers a built EmailMessage.
type Transport interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// UserResolver resolves a Destination(User(id)) to the user's email,
// narrowed from the out-of-scope IdentityClient (spec.md §6) to the one
// call C8 needs.
type UserResolver interface {
	Email(ctx context.Context, userID uuid.UUID) (string, error)
}

// TemplateSource looks up the subject/text/html of a Content(Template,
// bindings) notification by template id. Out of scope collaborator; a nil
// TemplateSource fails any ContentTemplate notification.
type TemplateSource interface {
	Template(ctx context.Context, id uuid.UUID) (subject, text, html string, err error)
}

// Sender is C8: a pure Notification->EmailMessage builder plus the
// Transport boundary it hands the result to, or a log line for ServerLog
// destinations.
type Sender struct {
	cfg       config.SMTPConfig
	transport Transport
	users     UserResolver
	templates TemplateSource
	renderer  *TemplateRenderer
}

// NewSender builds a Sender. templates may be nil if the
// deployment never schedules Content(Template, ...) notifications.
func NewSender(cfg config.SMTPConfig, transport Transport, users UserResolver, templates TemplateSource) *Sender {
	return &Sender{cfg: cfg, transport: transport, users: users, templates: templates, renderer: NewTemplateRenderer()}
}

// Send resolves a Notification to either a log line (ServerLog) or a built
// EmailMessage handed to Transport (spec.md §4.8).
func (s *Sender) Send(ctx context.Context, n domain.Notification) error {
	if n.Destination.Kind == domain.DestinationServerLog {
		subject, text, _, err := s.render(ctx, n.Content)
		if err != nil {
			return err
		}
		logger.Info("notification", "subject", subject, "body", text)
		return nil
	}

	msg, err := s.Build(ctx, n)
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, msg)
}

// Build constructs the EmailMessage for an email-bound notification
// without sending it, exposed separately so it can be unit tested as a
// pure function (spec.md §4.8).
func (s *Sender) Build(ctx context.Context, n domain.Notification) (EmailMessage, error) {
	to, err := s.resolveDestination(ctx, n.Destination)
	if err != nil {
		return EmailMessage{}, err
	}

	subject, text, html, err := s.render(ctx, n.Content)
	if err != nil {
		return EmailMessage{}, err
	}

	if s.cfg.CatchAllRecipient != "" {
		to = s.cfg.CatchAllRecipient
	}

	return EmailMessage{
		From:    s.cfg.Username,
		ReplyTo: s.cfg.Username,
		To:      to,
		Subject: subject,
		Date:    n.ScheduledAt,
		Text:    text,
		HTML:    html,
	}, nil
}

func (s *Sender) resolveDestination(ctx context.Context, d domain.Destination) (string, error) {
	switch d.Kind {
	case domain.DestinationEmail:
		return d.Email, nil
	case domain.DestinationUser:
		if s.users == nil {
			return "", apperr.System("no user resolver configured", fmt.Errorf("user %s", d.UserID))
		}
		email, err := s.users.Email(ctx, d.UserID)
		if err != nil {
			return "", err
		}
		if email == "" {
			return "", apperr.NotFound("user has no email on file")
		}
		return email, nil
	default:
		return "", apperr.System("unsupported destination kind for email delivery", fmt.Errorf("kind %d", d.Kind))
	}
}

// render turns a Content sum-type value into subject/text/html, running
// Liquid rendering for ContentTemplate.
func (s *Sender) render(ctx context.Context, c domain.Content) (subject, text, html string, err error) {
	switch c.Kind {
	case domain.ContentText:
		return "", c.Text, "", nil
	case domain.ContentEmail:
		return c.Subject, c.Text, c.HTML, nil
	case domain.ContentTemplate:
		if s.templates == nil {
			return "", "", "", apperr.System("no template source configured", fmt.Errorf("template %s", c.TemplateID))
		}
		subjectTpl, textTpl, htmlTpl, err := s.templates.Template(ctx, c.TemplateID)
		if err != nil {
			return "", "", "", err
		}
		subject, err = s.renderer.Render(subjectTpl, c.Bindings)
		if err != nil {
			return "", "", "", err
		}
		text, err = s.renderer.Render(textTpl, c.Bindings)
		if err != nil {
			return "", "", "", err
		}
		if htmlTpl != "" {
			html, err = s.renderer.Render(htmlTpl, c.Bindings)
			if err != nil {
				return "", "", "", err
			}
		}
		return subject, text, html, nil
	default:
		return "", "", "", apperr.System("unsupported content kind", fmt.Errorf("kind %d", c.Kind))
	}
}
