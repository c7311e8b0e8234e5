package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enqueueCall struct {
	source     entity.Source
	eventType  string
	payload    string
	deliveryID string
}

type mockIntake struct {
	mu          sync.Mutex
	calls       []enqueueCall
	enqueueFunc func(call enqueueCall) error
}

func (m *mockIntake) Enqueue(_ context.Context, source entity.Source, eventType string, payload []byte, deliveryID string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := enqueueCall{source, eventType, string(payload), deliveryID}
	m.calls = append(m.calls, call)
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(call); err != nil {
			return uuid.Nil, err
		}
	}
	return uuid.New(), nil
}

func (m *mockIntake) enqueued() []enqueueCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]enqueueCall(nil), m.calls...)
}

func (m *mockIntake) Get(context.Context, uuid.UUID) (*entity.IntakeEvent, error) { return nil, nil }

func (m *mockIntake) List(context.Context, entity.IntakeFilter) ([]*entity.IntakeEvent, error) {
	return nil, nil
}

func (m *mockIntake) Actions(context.Context, uuid.UUID) ([]*entity.ActionLogEntry, error) {
	return nil, nil
}

func (m *mockIntake) Commands(context.Context, uuid.UUID) ([]*entity.Command, error) { return nil, nil }

func (m *mockIntake) Stats(context.Context) (map[entity.Status]int64, error) { return nil, nil }

func (m *mockIntake) DailyMetrics(context.Context, time.Time) ([]entity.DailyMetric, error) {
	return nil, nil
}

func (m *mockIntake) Replay(context.Context, uuid.UUID) (uuid.UUID, error) { return uuid.Nil, nil }

// mockReader hands out queued messages and then blocks until the context ends.
type mockReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newMockReader(msgs ...kafka.Message) *mockReader {
	r := &mockReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *mockReader) Commit(_ context.Context, msg kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msg.Offset)
	return nil
}

func (r *mockReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *mockReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func message(offset int64, value string) kafka.Message {
	return kafka.Message{Topic: "webhooks.intake", Partition: 0, Offset: offset, Value: []byte(value)}
}

func newBridge(intake *mockIntake, reader *mockReader) *IntakeBridge {
	return New(intake, reader, logger.NewWithWriter(io.Discard, "error"), time.Second, 2*time.Second, 1)
}

func TestIntakeBridge_Handle(t *testing.T) {
	intake := &mockIntake{}
	b := newBridge(intake, newMockReader())

	err := b.handle(context.Background(), message(7,
		`{"source":"payment_platform","event_type":"purchase_approved","payload":{"transaction_id":"T1"}}`))
	require.NoError(t, err)

	err = b.handle(context.Background(), message(8,
		`{"source":"cms_platform","event_type":"user_created","delivery_id":"d-1","payload":{"user_id":"u"}}`))
	require.NoError(t, err)

	calls := intake.enqueued()
	require.Len(t, calls, 2)
	assert.Equal(t, enqueueCall{
		source:     entity.SourcePaymentPlatform,
		eventType:  "purchase_approved",
		payload:    `{"transaction_id":"T1"}`,
		deliveryID: "kafka:webhooks.intake/0/7",
	}, calls[0])
	assert.Equal(t, "d-1", calls[1].deliveryID)
}

func TestIntakeBridge_HandleMalformed(t *testing.T) {
	intake := &mockIntake{}
	b := newBridge(intake, newMockReader())

	err := b.handle(context.Background(), message(1, `not json`))
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Empty(t, intake.enqueued())
}

func TestIntakeBridge_HandleRetriesTransientErrors(t *testing.T) {
	t.Run("until stored", func(t *testing.T) {
		failures := 0
		intake := &mockIntake{enqueueFunc: func(enqueueCall) error {
			if failures < _alertAfterAttempts {
				failures++
				return errors.New("pool exhausted")
			}
			return nil
		}}
		b := newBridge(intake, newMockReader())

		err := b.handle(context.Background(), message(1, `{"source":"cms_platform","event_type":"user_created","payload":{}}`))
		require.NoError(t, err)
		assert.Len(t, intake.enqueued(), _alertAfterAttempts+1)
	})

	t.Run("until the context ends", func(t *testing.T) {
		intake := &mockIntake{enqueueFunc: func(enqueueCall) error { return errors.New("pool exhausted") }}
		b := newBridge(intake, newMockReader())

		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		defer cancel()

		err := b.handle(ctx, message(1, `{"source":"cms_platform","event_type":"user_created","payload":{}}`))
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, rejected(err))
		assert.GreaterOrEqual(t, len(intake.enqueued()), 2)
	})
}

func TestIntakeBridge_HandleDoesNotRetryRejectedEvents(t *testing.T) {
	intake := &mockIntake{enqueueFunc: func(enqueueCall) error { return errs.ErrUnknownSource }}
	b := newBridge(intake, newMockReader())

	err := b.handle(context.Background(), message(1, `{"source":"crm","event_type":"x","payload":{}}`))
	require.ErrorIs(t, err, errs.ErrUnknownSource)
	assert.Len(t, intake.enqueued(), 1)
}

func TestIntakeBridge_CommitsStoredAndRejectedMessages(t *testing.T) {
	intake := &mockIntake{enqueueFunc: func(c enqueueCall) error {
		if c.eventType == "flaky" {
			return errors.New("connection reset")
		}
		return nil
	}}
	reader := newMockReader(
		message(1, `{"source":"payment_platform","event_type":"purchase_approved","payload":{}}`),
		message(2, `garbage`),
		message(3, `{"source":"payment_platform","event_type":"flaky","payload":{}}`),
	)
	b := newBridge(intake, reader)

	require.NoError(t, b.Start(context.Background()))

	require.Eventually(t, func() bool {
		return len(intake.enqueued()) >= 1+_alertAfterAttempts
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Shutdown(context.Background()))
	assert.Equal(t, []int64{1, 2}, reader.commits())
	assert.True(t, reader.closed)
}

func TestIntakeBridge_LaterOffsetWaitsForEarlierOne(t *testing.T) {
	var (
		mu      sync.Mutex
		healthy bool
	)
	intake := &mockIntake{enqueueFunc: func(c enqueueCall) error {
		mu.Lock()
		defer mu.Unlock()
		if c.eventType == "flaky" && !healthy {
			return errors.New("connection reset")
		}
		return nil
	}}
	reader := newMockReader(
		message(10, `{"source":"payment_platform","event_type":"flaky","payload":{}}`),
		message(11, `{"source":"payment_platform","event_type":"purchase_approved","payload":{}}`),
	)
	b := New(intake, reader, logger.NewWithWriter(io.Discard, "error"), time.Second, 2*time.Second, 2)

	require.NoError(t, b.Start(context.Background()))

	require.Eventually(t, func() bool {
		for _, c := range intake.enqueued() {
			if c.eventType == "purchase_approved" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, reader.commits())

	mu.Lock()
	healthy = true
	mu.Unlock()

	require.Eventually(t, func() bool {
		return len(reader.commits()) > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Shutdown(context.Background()))
	assert.Equal(t, []int64{11}, reader.commits())
}
