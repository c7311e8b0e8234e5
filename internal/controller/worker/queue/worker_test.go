package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockQueue struct {
	mu        sync.Mutex
	due       []*entity.IntakeEvent
	finalized map[uuid.UUID]entity.Outcome

	released map[uuid.UUID]int

	claimDueErr  error
	finalizeErr  error
	sweepCalls   atomic.Int32
	archiveCalls atomic.Int32
}

func newMockQueue(events ...*entity.IntakeEvent) *mockQueue {
	return &mockQueue{
		due:       events,
		finalized: make(map[uuid.UUID]entity.Outcome),
		released:  make(map[uuid.UUID]int),
	}
}

func (m *mockQueue) ClaimDue(_ context.Context, limit int) ([]*entity.IntakeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.claimDueErr != nil {
		return nil, m.claimDueErr
	}
	n := min(limit, len(m.due))
	batch := m.due[:n]
	m.due = m.due[n:]
	return batch, nil
}

func (m *mockQueue) ClaimByID(_ context.Context, id uuid.UUID) (*entity.IntakeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.due {
		if e.ID == id {
			m.due = append(m.due[:i], m.due[i+1:]...)
			return e, nil
		}
	}
	return nil, errs.ErrAlreadyClaimed
}

func (m *mockQueue) Finalize(ctx context.Context, event *entity.IntakeEvent, outcome entity.Outcome) (*entity.IntakeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.finalizeErr != nil {
		return nil, m.finalizeErr
	}
	m.finalized[event.ID] = outcome

	next := *event
	switch outcome.Kind {
	case entity.OutcomeSuccess:
		next.Status = entity.Completed
	case entity.OutcomeRetryable:
		next.Status = entity.Pending
		next.RetryCount++
	default:
		next.Status = entity.Failed
	}
	return &next, nil
}

func (m *mockQueue) Release(ctx context.Context, event *entity.IntakeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	m.released[event.ID] = event.RetryCount
	return nil
}

func (m *mockQueue) ReleaseStale(context.Context, time.Duration, int) (int, error) {
	m.sweepCalls.Add(1)
	return 0, nil
}

func (m *mockQueue) Archive(context.Context, time.Duration, int) (int, error) {
	m.archiveCalls.Add(1)
	return 0, nil
}

func (m *mockQueue) releasedEvents() map[uuid.UUID]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[uuid.UUID]int, len(m.released))
	for k, v := range m.released {
		out[k] = v
	}
	return out
}

func (m *mockQueue) outcomes() map[uuid.UUID]entity.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[uuid.UUID]entity.Outcome, len(m.finalized))
	for k, v := range m.finalized {
		out[k] = v
	}
	return out
}

type mockDispatcher struct {
	dispatchFunc func(ctx context.Context, event *entity.IntakeEvent) entity.Outcome
	inFlight     atomic.Int32
	maxInFlight  atomic.Int32
}

func (m *mockDispatcher) Dispatch(ctx context.Context, event *entity.IntakeEvent) entity.Outcome {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if m.dispatchFunc != nil {
		return m.dispatchFunc(ctx, event)
	}
	return entity.Success()
}

func pendingEvents(n int) []*entity.IntakeEvent {
	events := make([]*entity.IntakeEvent, n)
	for i := range events {
		events[i] = &entity.IntakeEvent{
			ID:        uuid.New(),
			Source:    entity.SourcePaymentPlatform,
			EventType: "purchase_approved",
			Status:    entity.Processing,
		}
	}
	return events
}

func newWorker(q *mockQueue, d *mockDispatcher, s Settings) *Worker {
	return New(q, d, logger.NewWithWriter(io.Discard, "error"), s)
}

func TestWorker_PollFinalizesEveryEvent(t *testing.T) {
	events := pendingEvents(5)
	q := newMockQueue(events...)
	d := &mockDispatcher{
		dispatchFunc: func(_ context.Context, e *entity.IntakeEvent) entity.Outcome {
			if e.ID == events[1].ID {
				return entity.RetryableFailure("store down")
			}
			if e.ID == events[2].ID {
				return entity.PermanentFailure("bad payload")
			}
			return entity.Success()
		},
	}
	w := newWorker(q, d, Settings{BatchSize: 10, Concurrency: 2, DispatchTimeout: time.Second})

	n, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	outcomes := q.outcomes()
	require.Len(t, outcomes, 5)
	assert.Equal(t, entity.OutcomeRetryable, outcomes[events[1].ID].Kind)
	assert.Equal(t, entity.OutcomePermanent, outcomes[events[2].ID].Kind)
	assert.Equal(t, entity.OutcomeSuccess, outcomes[events[4].ID].Kind)
	assert.LessOrEqual(t, d.maxInFlight.Load(), int32(2))
}

func TestWorker_PollRespectsBatchSize(t *testing.T) {
	q := newMockQueue(pendingEvents(5)...)
	w := newWorker(q, &mockDispatcher{}, Settings{BatchSize: 3, Concurrency: 3})

	n, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWorker_PollClaimError(t *testing.T) {
	q := newMockQueue()
	q.claimDueErr = errors.New("pool closed")
	w := newWorker(q, &mockDispatcher{}, Settings{BatchSize: 3})

	_, err := w.Poll(context.Background())
	require.Error(t, err)
}

func TestWorker_TimedOutDispatchIsNotFinalized(t *testing.T) {
	events := pendingEvents(2)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	q := newMockQueue(events...)
	d := &mockDispatcher{
		dispatchFunc: func(_ context.Context, e *entity.IntakeEvent) entity.Outcome {
			if e.ID == events[0].ID {
				<-release
			}
			return entity.Success()
		},
	}
	w := newWorker(q, d, Settings{BatchSize: 10, Concurrency: 2, DispatchTimeout: 20 * time.Millisecond})

	n, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	outcomes := q.outcomes()
	assert.NotContains(t, outcomes, events[0].ID)
	assert.Contains(t, outcomes, events[1].ID)
}

func TestWorker_ClaimLostIsTolerated(t *testing.T) {
	q := newMockQueue(pendingEvents(1)...)
	q.finalizeErr = errs.ErrClaimLost
	w := newWorker(q, &mockDispatcher{}, Settings{BatchSize: 1, DispatchTimeout: time.Second})

	n, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWorker_DispatcherPanicIsRetryable(t *testing.T) {
	events := pendingEvents(1)
	q := newMockQueue(events...)
	d := &mockDispatcher{
		dispatchFunc: func(context.Context, *entity.IntakeEvent) entity.Outcome { panic("boom") },
	}
	w := newWorker(q, d, Settings{BatchSize: 1, DispatchTimeout: time.Second})

	_, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeRetryable, q.outcomes()[events[0].ID].Kind)
}

func TestWorker_ProcessByID(t *testing.T) {
	events := pendingEvents(1)
	q := newMockQueue(events...)
	w := newWorker(q, &mockDispatcher{}, Settings{DispatchTimeout: time.Second})

	next, err := w.ProcessByID(context.Background(), events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.Completed, next.Status)

	_, err = w.ProcessByID(context.Background(), events[0].ID)
	require.ErrorIs(t, err, errs.ErrAlreadyClaimed)
}

func TestWorker_StartRunsLoops(t *testing.T) {
	q := newMockQueue(pendingEvents(4)...)
	w := newWorker(q, &mockDispatcher{}, Settings{
		PollInterval:       5 * time.Millisecond,
		BatchSize:          2,
		Concurrency:        2,
		DispatchTimeout:    time.Second,
		StaleSweepInterval: 5 * time.Millisecond,
		ArchiveInterval:    5 * time.Millisecond,
	})

	require.NoError(t, w.Start(context.Background()))
	require.Error(t, w.Start(context.Background()))

	require.Eventually(t, func() bool {
		return len(q.outcomes()) == 4 && q.sweepCalls.Load() > 0 && q.archiveCalls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
}

func TestWorker_ShutdownWithoutStart(t *testing.T) {
	w := newWorker(newMockQueue(), &mockDispatcher{}, Settings{})
	require.NoError(t, w.Shutdown(context.Background()))
}

func TestWorker_ShutdownDrainsClaimedBatch(t *testing.T) {
	events := pendingEvents(8)
	for _, e := range events {
		e.RetryCount = 2
	}
	q := newMockQueue(events...)
	d := &mockDispatcher{
		dispatchFunc: func(ctx context.Context, _ *entity.IntakeEvent) entity.Outcome {
			select {
			case <-time.After(40 * time.Millisecond):
				return entity.Success()
			case <-ctx.Done():
				return entity.RetryableFailure("cancelled")
			}
		},
	}
	w := newWorker(q, d, Settings{
		PollInterval:    5 * time.Millisecond,
		BatchSize:       8,
		Concurrency:     2,
		DispatchTimeout: time.Second,
	})

	require.NoError(t, w.Start(context.Background()))
	require.Eventually(t, func() bool { return d.inFlight.Load() > 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))

	outcomes := q.outcomes()
	released := q.releasedEvents()
	assert.NotEmpty(t, outcomes)
	assert.NotEmpty(t, released)
	assert.Len(t, events, len(outcomes)+len(released), "every claimed event is finalized or released")

	for id, o := range outcomes {
		assert.Equal(t, entity.OutcomeSuccess, o.Kind, id)
	}
	for id, retries := range released {
		assert.Equal(t, 2, retries, id)
		assert.NotContains(t, outcomes, id)
	}
}

func TestWorker_ShutdownDeadlineCancelsDispatch(t *testing.T) {
	events := pendingEvents(1)
	q := newMockQueue(events...)
	cancelled := make(chan struct{})
	d := &mockDispatcher{
		dispatchFunc: func(ctx context.Context, _ *entity.IntakeEvent) entity.Outcome {
			<-ctx.Done()
			close(cancelled)
			return entity.RetryableFailure("cancelled")
		},
	}
	w := newWorker(q, d, Settings{PollInterval: 5 * time.Millisecond, BatchSize: 1, DispatchTimeout: time.Minute})

	require.NoError(t, w.Start(context.Background()))
	require.Eventually(t, func() bool { return d.inFlight.Load() > 0 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, w.Shutdown(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("dispatch was not cancelled after the shutdown deadline")
	}
}
