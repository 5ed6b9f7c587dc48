package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

type Message struct {
	From    string
	To      string // user id; address lookup is the sender's job
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Log.Info().
		Str("from", m.From).
		Str("to", m.To).
		Str("subject", m.Subject).
		Str("body", m.Body).
		Msg("mail sent")
	return nil
}
