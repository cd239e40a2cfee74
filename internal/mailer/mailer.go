// Package mailer delivers transactional email.  Senders never return an
// error: the outcome is a Result the caller logs.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/config"
)

// Result is the outcome of one delivery attempt.
type Result struct {
	Sent   bool
	Reason string // set when Sent is false
}

// Delivered is the successful Result.
func Delivered() Result { return Result{Sent: true} }

// Failed builds a DeliveryFailed result.
func Failed(reason string) Result { return Result{Reason: reason} }

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) Result
}

// New picks the SMTP sender when a host is configured and the log-only
// sender otherwise.
func New(cfg config.MailConfig, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		logger.Warn("SMTP_HOST not set, verification emails are only logged")
		return &LogSender{logger: logger}
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

const sendTimeout = 15 * time.Second

// Send dials the relay and delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg Message) Result {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return Failed(fmt.Sprintf("invalid sender address: %v", err))
	}
	if err := m.To(msg.To); err != nil {
		return Failed(fmt.Sprintf("invalid recipient address: %v", err))
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(sendTimeout),
	}
	if s.cfg.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password))
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return Failed(fmt.Sprintf("smtp client: %v", err))
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return Failed(fmt.Sprintf("smtp send: %v", err))
	}
	return Delivered()
}

// LogSender writes the message to the log instead of sending it.  It is
// used in development when no relay is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender { return &LogSender{logger: logger} }

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, msg Message) Result {
	s.logger.Info("email (log only)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return Delivered()
}

// VerificationMessage renders the OTP email.
func VerificationMessage(to, username, code string) Message {
	return Message{
		To:      to,
		Subject: "Your Aura verification code",
		Body: fmt.Sprintf("Hi %s,\n\nYour Aura verification code is %s.\n"+
			"It expires in 10 minutes.\n\nIf you did not create an account you can ignore this email.\n",
			username, code),
	}
}
