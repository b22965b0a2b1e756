package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/traillog/traillog/backend/go-services/internal/config"
)

func TestNewSender_FallsBackToLog(t *testing.T) {
	s := NewSender(config.EmailConfig{})
	_, ok := s.(LogSender)
	require.True(t, ok)
	require.NoError(t, s.Send(context.Background(), Welcome("a@b.c", "alice")))
}

func TestSMTPSender_Send(t *testing.T) {
	cfg := config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 2525, Username: "u", Password: "p", From: "no-reply@traillog.local"}
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s := &SMTPSender{cfg: cfg, send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		require.NotNil(t, a)
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}}

	require.NoError(t, s.Send(context.Background(), Welcome("alice@example.com", "alice")))
	require.Equal(t, "smtp.example.com:2525", gotAddr)
	require.Equal(t, "no-reply@traillog.local", gotFrom)
	require.Equal(t, []string{"alice@example.com"}, gotTo)
	body := string(gotMsg)
	require.True(t, strings.HasPrefix(body, "From: no-reply@traillog.local\r\n"))
	require.Contains(t, body, "Subject: Welcome to traillog\r\n")
	require.Contains(t, body, "Hi alice,\r\n")
}

func TestSMTPSender_Errors(t *testing.T) {
	s := &SMTPSender{cfg: config.EmailConfig{SMTPHost: "h", SMTPPort: 25}, send: func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("relay down")
	}}
	require.Error(t, s.Send(context.Background(), Message{To: "not-an-address"}))
	err := s.Send(context.Background(), Message{To: "a@b.c"})
	require.ErrorContains(t, err, "relay down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, Message{To: "a@b.c"}), context.Canceled)
}
