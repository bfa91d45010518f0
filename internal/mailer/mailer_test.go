package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"furniture-catalog/internal/config"
	"furniture-catalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func render(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSend_BuildsMultipartMessage(t *testing.T) {
	d := &fakeDialer{}
	m := &SMTPMailer{dialer: d, from: "shop@example.com", logger: zap.NewNop()}

	err := m.Send(context.Background(), domain.Message{
		To:      "owner@example.com",
		ReplyTo: "visitor@example.com",
		Subject: "New message from Ada",
		HTML:    "<p>Hello</p>",
		Text:    "Hello",
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	assert.Equal(t, []string{"shop@example.com"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"owner@example.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"visitor@example.com"}, d.sent[0].GetHeader("Reply-To"))

	raw := render(t, d.sent[0])
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
}

func TestSend_Errors(t *testing.T) {
	unconfigured := New(config.MailConfig{}, zap.NewNop())
	assert.ErrorIs(t, unconfigured.Send(context.Background(), domain.Message{To: "a@b.com"}), ErrNotConfigured)

	boom := errors.New("535 authentication failed")
	m := &SMTPMailer{dialer: &fakeDialer{err: boom}, from: "shop@example.com", logger: zap.NewNop()}
	assert.ErrorIs(t, m.Send(context.Background(), domain.Message{To: "a@b.com", Text: "x"}), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, domain.Message{To: "a@b.com"}), context.Canceled)
}

func TestBuild_HTMLOnly(t *testing.T) {
	raw := render(t, build("shop@example.com", domain.Message{To: "a@b.com", Subject: "s", HTML: "<b>x</b>"}))
	assert.Contains(t, raw, "text/html")
	assert.NotContains(t, raw, "multipart/alternative")
	assert.NotContains(t, raw, "Reply-To")
}
