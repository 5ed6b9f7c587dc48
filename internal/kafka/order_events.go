package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/tracing"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
	eventVersion       = 1
)

type publisher interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header) bool
}

// OrderEvents publishes order lifecycle events. It implements orders.Notifier.
type OrderEvents struct {
	pub     publisher
	service string
	log     zerolog.Logger
	newID   func() string
	now     func() time.Time
}

var _ orders.Notifier = (*OrderEvents)(nil)

func NewOrderEvents(pub publisher, service string, log zerolog.Logger) *OrderEvents {
	return &OrderEvents{pub: pub, service: service, log: log, newID: uuid.NewString, now: time.Now}
}

func (e *OrderEvents) OrderPlaced(ctx context.Context, o orders.Order) {
	e.publish(ctx, orders.TopicOrderPlaced, orders.EventOrderPlaced, o.ID, orders.NewOrderPlacedPayload(o))
}

func (e *OrderEvents) OrderCancelled(ctx context.Context, o orders.Order) {
	e.publish(ctx, orders.TopicOrderCancelled, orders.EventOrderCancelled, o.ID, orders.NewOrderCancelledPayload(o))
}

func (e *OrderEvents) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	ev := orders.Envelope{
		EventID:       e.newID(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    e.now().UTC(),
		Producer:      e.service,
		CorrelationID: orderID,
		Payload:       MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}

	headers := tracing.InjectKafkaHeaders(ctx, []kafka.Header{
		{Key: HeaderEventType, Value: []byte(eventType)},
		{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(eventVersion))},
	})
	if !e.pub.Publish(topic, orders.PartitionKey(orderID), MustMarshal(ev), headers...) {
		e.log.Warn().Str("event_id", ev.EventID).Str("event_type", eventType).Str("order_id", orderID).Msg("order event not published")
	}
}
