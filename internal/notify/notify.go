// Package notify renders and delivers invitation emails. The mail transport
// is an external collaborator boundary: failures are reported to the caller,
// never retried or queued here.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/eventinvite/eventinvite-go/internal/config"
	"github.com/eventinvite/eventinvite-go/internal/platform/logutil"
	"github.com/eventinvite/eventinvite-go/internal/store"
)

// Message is one rendered email ready for transport.
type Message struct {
	To       string
	From     string
	Subject  string
	HTMLBody string
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// EmailDispatcher renders invitation templates and hands them to a transport.
type EmailDispatcher struct {
	transport    Transport
	cfg          config.MailConfig
	publicOrigin string
	logger       *slog.Logger
}

// NewEmailDispatcher creates a dispatcher using the configured templates.
func NewEmailDispatcher(transport Transport, cfg config.MailConfig, publicOrigin string, logger *slog.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		transport:    transport,
		cfg:          cfg,
		publicOrigin: publicOrigin,
		logger:       logutil.NoopIfNil(logger),
	}
}

// Send renders and dispatches the invitation email for a guest/event pair.
func (d *EmailDispatcher) Send(ctx context.Context, inv *store.Invitation, guest *store.Guest, event *store.Event) error {
	if guest.Email == "" {
		return fmt.Errorf("guest %d has no email address", guest.ID)
	}

	url := InvitationURL(d.publicOrigin, inv.Token)
	msg := &Message{
		To:       guest.Email,
		From:     d.cfg.From,
		Subject:  Render(d.cfg.SubjectTemplate, guest, event, url),
		HTMLBody: Render(d.cfg.BodyTemplate, guest, event, url),
	}

	if err := d.transport.Send(ctx, msg); err != nil {
		return err
	}

	// The token is a secret; log only ids for correlation.
	d.logger.Info("invitation email dispatched", "invitation_id", inv.ID, "event_id", event.ID)
	return nil
}

// SMTPTransport sends messages over plain SMTP.
type SMTPTransport struct {
	cfg config.MailConfig
}

// NewSMTPTransport creates a transport from mail configuration.
func NewSMTPTransport(cfg config.MailConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg}
}

// Send delivers the message via net/smtp. One attempt, no queueing.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	addr := fmt.Sprintf("%s:%d", t.cfg.SMTPHost, t.cfg.SMTPPort)

	var auth smtp.Auth
	if t.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", t.cfg.SMTPUsername, t.cfg.SMTPPassword, t.cfg.SMTPHost)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)

	if err := smtp.SendMail(addr, auth, msg.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", addr, err)
	}
	return nil
}

// Ensure SMTPTransport implements Transport.
var _ Transport = (*SMTPTransport)(nil)
