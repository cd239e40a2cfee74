package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/aura/internal/config"
)

func TestNewPicksLogSenderWithoutHost(t *testing.T) {
	s := New(config.MailConfig{}, zap.NewNop())
	_, ok := s.(*LogSender)
	assert.True(t, ok)

	s = New(config.MailConfig{Host: "smtp.example.com", Port: 587}, zap.NewNop())
	_, ok = s.(*SMTPSender)
	assert.True(t, ok)
}

func TestLogSenderLogsMessage(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	res := s.Send(context.Background(), VerificationMessage("neo@matrix.io", "neo", "048213"))

	assert.True(t, res.Sent)
	entries := logs.FilterField(zap.String("to", "neo@matrix.io")).All()
	if assert.Len(t, entries, 1) {
		assert.Contains(t, entries[0].ContextMap()["body"], "048213")
	}
}

func TestSMTPSenderInvalidRecipient(t *testing.T) {
	s := &SMTPSender{cfg: config.MailConfig{Host: "127.0.0.1", Port: 2525, From: "Aura <no-reply@aura.local>"}, logger: zap.NewNop()}

	res := s.Send(context.Background(), Message{To: "not an address", Subject: "x", Body: "y"})

	assert.False(t, res.Sent)
	assert.Contains(t, res.Reason, "invalid recipient")
}

func TestVerificationMessage(t *testing.T) {
	m := VerificationMessage("a@b.c", "trinity", "000042")
	assert.Equal(t, "a@b.c", m.To)
	assert.Contains(t, m.Body, "000042")
	assert.Contains(t, m.Body, "10 minutes")
}
