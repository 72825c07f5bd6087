package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherblog/internal/logging"
	"gopherblog/internal/model"
)

type ackRecorder struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue []bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { return nil }

type memoryEventStore struct {
	mu     sync.Mutex
	events []model.AuthEvent
	err    error
}

func (s *memoryEventStore) Create(_ context.Context, e *model.AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, *e)
	return nil
}

func newWorker(store AuthEventStore) *AuthEventWorker {
	return NewAuthEventWorker(nil, store, "blog.auth.events", logging.Discard())
}

func delivery(t *testing.T, ack amqp.Acknowledger, body any, redelivered bool) amqp.Delivery {
	t.Helper()
	raw, ok := body.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: raw, Redelivered: redelivered}
}

func TestAuthEventWorker_Consume(t *testing.T) {
	store := &memoryEventStore{}
	w := newWorker(store)
	ack := &ackRecorder{}

	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- delivery(t, ack, model.AuthEvent{ID: 99, Kind: model.AuthEventRegister, UserID: "u1"}, false)
	deliveries <- delivery(t, ack, []byte("{not json"), false)
	deliveries <- delivery(t, ack, model.AuthEvent{Kind: model.AuthEventLogout, UserID: "u1"}, false)
	close(deliveries)

	w.consume(context.Background(), deliveries)

	require.Len(t, store.events, 2)
	assert.Equal(t, model.AuthEventRegister, store.events[0].Kind)
	assert.Zero(t, store.events[0].ID)
	assert.Equal(t, 2, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, []bool{false}, ack.requeue)
}

func TestAuthEventWorker_StoreFailureRetriesOnce(t *testing.T) {
	store := &memoryEventStore{err: errors.New("database is locked")}
	w := newWorker(store)
	ack := &ackRecorder{}
	event := model.AuthEvent{Kind: model.AuthEventLoginFailed, Email: "a@example.com"}

	w.handle(context.Background(), delivery(t, ack, event, false))
	w.handle(context.Background(), delivery(t, ack, event, true))

	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, []bool{true, false}, ack.requeue)
}

func TestAuthEventWorker_StopsOnCancel(t *testing.T) {
	w := newWorker(&memoryEventStore{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.consume(ctx, make(chan amqp.Delivery))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume did not return after cancel")
	}
}

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) DeleteExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestSessionJanitor(t *testing.T) {
	purger := &countingPurger{}
	j := NewSessionJanitor(purger, 5*time.Millisecond, logging.Discard())
	j.Start(context.Background())
	j.Start(context.Background())

	require.Eventually(t, func() bool { return purger.calls.Load() >= 3 }, time.Second, time.Millisecond)
	j.Close()

	after := purger.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, purger.calls.Load(), "no sweeps after Close")
}

func TestSessionJanitor_KeepsRunningOnError(t *testing.T) {
	purger := &countingPurger{err: errors.New("no such table: sessions")}
	j := NewSessionJanitor(purger, 5*time.Millisecond, logging.Discard())
	j.Start(context.Background())
	defer j.Close()

	require.Eventually(t, func() bool { return purger.calls.Load() >= 2 }, time.Second, time.Millisecond)
}
