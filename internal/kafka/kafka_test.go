package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
	err    error
	block  chan struct{}
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, zerolog.Nop())
	p.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.True(t, p.Publish("t", []byte("k"), []byte{byte(i)}))
	}
	p.Close()
	p.Close()
	p.WaitClosed()

	msgs := w.written()
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, "t", m.Topic)
		assert.Equal(t, []byte{byte(i)}, m.Value)
	}
	assert.True(t, w.closed)
	assert.False(t, p.Publish("t", nil, nil), "publish after close must be refused")
}

func TestProducerStopsOnContextCancel(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	require.True(t, p.Publish("t", nil, []byte("a")))
	cancel()
	p.WaitClosed()

	assert.Len(t, w.written(), 1)
	assert.True(t, w.closed)
}

func TestProducerPublishNeverBlocks(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	p := newProducer(w, 1, zerolog.Nop())
	p.Start(context.Background())

	accepted := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			if p.Publish("t", nil, []byte{byte(i)}) {
				accepted++
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
	assert.Less(t, accepted, 10)

	close(w.block)
	p.Close()
	p.WaitClosed()
	assert.Len(t, w.written(), accepted)
}

func TestProducerAcceptedMessagesSurviveConcurrentClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		w := &fakeWriter{}
		p := newProducer(w, 256, zerolog.Nop())
		p.Start(context.Background())

		var (
			wg       sync.WaitGroup
			accepted atomic.Int64
		)
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 32; i++ {
					if p.Publish("t", nil, []byte("m")) {
						accepted.Add(1)
					}
				}
			}()
		}
		p.Close()
		wg.Wait()
		p.WaitClosed()

		require.Len(t, w.written(), int(accepted.Load()), "round %d", round)
	}
}

func TestProducerRefusesAfterContextStop(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.WaitClosed()

	assert.False(t, p.Publish("t", nil, []byte("late")))
	assert.Empty(t, w.written())
}

func TestProducerLogsWriteErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, 4, zerolog.Nop())
	p.Start(context.Background())

	require.True(t, p.Publish("t", nil, []byte("x")))
	p.Close()
	p.WaitClosed()
	assert.Len(t, w.written(), 1)
}

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerCommitsOnlySuccessfulMessages(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Offset: 1, Value: []byte("ok")},
		kafka.Message{Offset: 2, Value: []byte("fail")},
		kafka.Message{Offset: 3, Value: []byte("ok")},
	)
	c := newConsumer(r, 2, zerolog.Nop())
	c.failBackoff = time.Millisecond

	var (
		mu   sync.Mutex
		seen int
	)
	ctx, cancel := context.WithCancel(context.Background())
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		seen++
		if seen == 3 {
			defer cancel()
		}
		mu.Unlock()
		if string(m.Value) == "fail" {
			return errors.New("boom")
		}
		return nil
	}

	require.NoError(t, c.Start(ctx, h))

	assert.ElementsMatch(t, []int64{1, 3}, r.commits())
	assert.True(t, r.closed)
}

func TestConsumerReturnsFetchError(t *testing.T) {
	r := &errReader{err: errors.New("group coordinator unavailable")}
	c := newConsumer(r, 1, zerolog.Nop())

	err := c.Start(context.Background(), func(context.Context, kafka.Message) error { return nil })
	assert.EqualError(t, err, "group coordinator unavailable")
}

type errReader struct{ err error }

func (r *errReader) FetchMessage(context.Context) (kafka.Message, error) {
	return kafka.Message{}, r.err
}

func (r *errReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }

func (r *errReader) Close() error { return nil }

type capturePublisher struct {
	topic   string
	key     []byte
	value   []byte
	headers []kafka.Header
	accept  bool
}

func (c *capturePublisher) Publish(topic string, key, value []byte, headers ...kafka.Header) bool {
	c.topic, c.key, c.value, c.headers = topic, key, value, headers
	return c.accept
}

func sampleOrder() orders.Order {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return orders.Order{
		ID:     "o-1",
		UserID: "u-1",
		Status: orders.StatusPlaced,
		Total:  decimal.RequireFromString("25.50"),
		Placements: []orders.Placement{
			{ID: "pl-1", OrderID: "o-1", ProductID: "p-1", Quantity: 2, ProductTitle: "Mug", UnitPrice: decimal.RequireFromString("10.00")},
			{ID: "pl-2", OrderID: "o-1", ProductID: "p-2", Quantity: 1, ProductTitle: "Spoon", UnitPrice: decimal.RequireFromString("5.50")},
		},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestOrderEventsOrderPlaced(t *testing.T) {
	pub := &capturePublisher{accept: true}
	ev := NewOrderEvents(pub, "order-api", zerolog.Nop())
	ev.newID = func() string { return "evt-1" }

	ev.OrderPlaced(context.Background(), sampleOrder())

	assert.Equal(t, orders.TopicOrderPlaced, pub.topic)
	assert.Equal(t, []byte("o-1"), pub.key)

	msg := kafka.Message{Value: pub.value, Headers: pub.headers}
	assert.Equal(t, orders.EventOrderPlaced, Header(msg, HeaderEventType))
	assert.Equal(t, "1", Header(msg, HeaderEventVersion))

	env, err := DecodeEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", env.EventID)
	assert.Equal(t, "order-api", env.Producer)
	assert.Equal(t, "o-1", env.CorrelationID)

	p, err := UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.UserID)
	assert.True(t, p.Total.Equal(decimal.RequireFromString("25.50")))
	require.Len(t, p.Items, 2)
	assert.Equal(t, "Mug", p.Items[0].Title)
	assert.Equal(t, 2, p.Items[0].Qty)
}

func TestOrderEventsOrderCancelled(t *testing.T) {
	pub := &capturePublisher{accept: false}
	ev := NewOrderEvents(pub, "order-api", zerolog.Nop())

	o := sampleOrder()
	o.Status = orders.StatusCancelled
	ev.OrderCancelled(context.Background(), o)

	assert.Equal(t, orders.TopicOrderCancelled, pub.topic)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(pub.value, &env))
	assert.Equal(t, orders.EventOrderCancelled, env.EventType)

	p, err := UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
	require.NoError(t, err)
	assert.Len(t, p.Items, 2)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := DecodeEnvelope(kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
}
