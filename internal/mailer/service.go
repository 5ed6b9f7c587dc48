// Package mailer sends order confirmations for OrderPlaced events.
package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Service struct {
	Dedup  Deduper
	Sender Sender
	From   string
	Log    zerolog.Logger
}

// HandleOrderPlaced is installed as the consumer handler for order.placed.
// A returned error leaves the offset uncommitted.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// pesan rusak tidak akan pernah sukses, jangan blok partisi
		s.Log.Error().Err(err).Int64("offset", m.Offset).Msg("skip undecodable message")
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}
	log := s.Log.With().Str("event_id", env.EventID).Str("order_id", env.CorrelationID).Logger()

	seen, err := s.Dedup.Seen(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if seen {
		log.Debug().Msg("duplicate event ignored")
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		log.Error().Err(err).Msg("skip undecodable payload")
		return nil
	}
	msg, err := Render(s.From, p)
	if err != nil {
		log.Error().Err(err).Msg("skip unrenderable order")
		return nil
	}

	if err := s.Sender.Send(ctx, msg); err != nil {
		// lepas tanda dedup supaya redelivery dicoba lagi
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			log.Error().Err(ferr).Msg("dedup forget failed")
		}
		return fmt.Errorf("send confirmation for order %s: %w", p.OrderID, err)
	}
	log.Info().Str("to", msg.To).Int("lines", len(p.Items)).Msg("confirmation sent")
	return nil
}
