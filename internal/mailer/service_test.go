package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, m Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}

func newService(t *testing.T, sender Sender) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return &Service{
		Dedup:  redisx.NewDedup(rdb, "mailer", 0),
		Sender: sender,
		From:   "orders@example.test",
		Log:    zerolog.Nop(),
	}
}

func placedMessage(eventID string) kafkago.Message {
	p := orders.OrderPlacedPayload{
		OrderID: "o-1",
		UserID:  "u-1",
		Items: []orders.LinePayload{
			{PlacementID: "pl-1", ProductID: "p-1", Title: "Mug", Qty: 2, UnitPrice: decimal.RequireFromString("10")},
		},
		Total:    decimal.RequireFromString("20"),
		PlacedAt: time.Now().UTC(),
	}
	env := orders.Envelope{
		EventID:       eventID,
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		CorrelationID: "o-1",
		Payload:       kafkax.MustMarshal(p),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestRender(t *testing.T) {
	msg, err := Render("orders@example.test", orders.OrderPlacedPayload{
		OrderID: "o-7",
		UserID:  "u-3",
		Items: []orders.LinePayload{
			{Title: "Mug", Qty: 2, UnitPrice: decimal.RequireFromString("10")},
			{Title: "Spoon", Qty: 1, UnitPrice: decimal.RequireFromString("5.5")},
		},
		Total: decimal.RequireFromString("25.5"),
	})
	require.NoError(t, err)

	assert.Equal(t, "u-3", msg.To)
	assert.Equal(t, "Order o-7 confirmed", msg.Subject)
	assert.Contains(t, msg.Body, "- Mug x 2 @ 10.00\n")
	assert.Contains(t, msg.Body, "- Spoon x 1 @ 5.50\n")
	assert.Contains(t, msg.Body, "Total: 25.50")
}

func TestHandleOrderPlacedSendsOnce(t *testing.T) {
	sender := &recordingSender{}
	svc := newService(t, sender)
	ctx := context.Background()

	require.NoError(t, svc.HandleOrderPlaced(ctx, placedMessage("evt-1")))
	require.NoError(t, svc.HandleOrderPlaced(ctx, placedMessage("evt-1")))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "Mug x 2 @ 10.00")
}

func TestHandleOrderPlacedSendFailureAllowsRedelivery(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	svc := newService(t, sender)
	ctx := context.Background()

	err := svc.HandleOrderPlaced(ctx, placedMessage("evt-2"))
	require.Error(t, err)

	sender.err = nil
	require.NoError(t, svc.HandleOrderPlaced(ctx, placedMessage("evt-2")))
	assert.Len(t, sender.sent, 1)
}

func TestHandleOrderPlacedIgnoresOtherEventsAndGarbage(t *testing.T) {
	sender := &recordingSender{}
	svc := newService(t, sender)
	ctx := context.Background()

	env := orders.Envelope{EventID: "evt-3", EventType: orders.EventOrderCancelled, Payload: []byte(`{}`)}
	require.NoError(t, svc.HandleOrderPlaced(ctx, kafkago.Message{Value: kafkax.MustMarshal(env)}))
	require.NoError(t, svc.HandleOrderPlaced(ctx, kafkago.Message{Value: []byte("not json")}))

	assert.Empty(t, sender.sent)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{Log: zerolog.Nop()}.Send(context.Background(), Message{To: "u-1"}))
}
