package push_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/push"
)

type fakeBot struct {
	to   tele.Recipient
	what interface{}
	opts []interface{}
	err  error
}

func (b *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	b.to, b.what, b.opts = to, what, opts
	return &tele.Message{}, b.err
}

func TestTelegramGateway_Send(t *testing.T) {
	bot := &fakeBot{}
	g := push.NewTelegramGateway(bot)

	err := g.Send(context.Background(), "123456", "Admin Reply", "Use <b> & enjoy")
	require.NoError(t, err)
	assert.Equal(t, "123456", bot.to.Recipient())
	assert.Equal(t, "<b>Admin Reply</b>\nUse &lt;b&gt; &amp; enjoy", bot.what)
	assert.Contains(t, bot.opts, tele.ModeHTML)
}

func TestTelegramGateway_Errors(t *testing.T) {
	g := push.NewTelegramGateway(&fakeBot{})
	assert.Error(t, g.Send(context.Background(), "not-a-chat", "t", "b"))

	g = push.NewTelegramGateway(&fakeBot{err: errors.New("blocked")})
	assert.Error(t, g.Send(context.Background(), "1", "t", "b"))
}

type fakeMailer struct {
	to, subject, body string
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return nil
}

func TestEmailGateway_Send(t *testing.T) {
	mailer := &fakeMailer{}
	g := push.NewEmailGateway(mailer)

	require.NoError(t, g.Send(context.Background(), "owner@example.com", "Report Status Updated", "closed"))
	assert.Equal(t, fakeMailer{"owner@example.com", "Report Status Updated", "closed"}, *mailer)

	assert.Error(t, g.Send(context.Background(), "123456", "t", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.Send(ctx, "owner@example.com", "t", "b"), context.Canceled)
}
