package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const _finalizeTimeout = 10 * time.Second

// Settings are the knobs of the queue worker. Zero intervals disable the matching loop.
type Settings struct {
	PollInterval       time.Duration
	BatchSize          int
	Concurrency        int
	DispatchTimeout    time.Duration
	StaleClaimTimeout  time.Duration
	StaleSweepInterval time.Duration
	ArchiveInterval    time.Duration
	ArchiveRetention   time.Duration
}

// Worker claims due intake events, runs them through the dispatcher and finalizes the outcome.
// Any number of workers, in any number of processes, may poll the same table.
//
// ctx stops claiming. Dispatches run under dispatchCtx, which is cancelled only when
// Shutdown runs out of time, so a graceful shutdown lets them finish.
type Worker struct {
	queue      usecase.QueueUseCase
	dispatcher usecase.DispatcherUseCase
	logger     logger.Interface
	settings   Settings

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dispatchCtx    context.Context
	dispatchCancel context.CancelFunc

	started atomic.Bool
}

func New(q usecase.QueueUseCase, d usecase.DispatcherUseCase, l logger.Interface, s Settings) *Worker {
	if s.BatchSize <= 0 {
		s.BatchSize = 1
	}
	if s.Concurrency <= 0 {
		s.Concurrency = 1
	}

	return &Worker{
		queue:          q,
		dispatcher:     d,
		logger:         l,
		settings:       s,
		ctx:            context.Background(),
		dispatchCtx:    context.Background(),
		dispatchCancel: func() {},
	}
}

func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("QueueWorker - Start - worker already started")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.dispatchCtx, w.dispatchCancel = context.WithCancel(context.WithoutCancel(ctx))

	// 1. claim and dispatch due events, draining full batches without waiting for the next tick
	w.loop(w.settings.PollInterval, func() {
		for w.ctx.Err() == nil {
			n, err := w.Poll(w.ctx)
			if err != nil {
				w.logger.Error(err, "QueueWorker - Start - loop - w.Poll")
				return
			}
			if n < w.settings.BatchSize {
				return
			}
		}
	})

	// 2. send abandoned claims down the retry path
	w.loop(w.settings.StaleSweepInterval, func() {
		_, err := w.queue.ReleaseStale(w.ctx, w.settings.StaleClaimTimeout, w.settings.BatchSize)
		if err != nil {
			w.logger.Error(err, "QueueWorker - Start - loop - w.queue.ReleaseStale")
		}
	})

	// 3. archive payloads of finished events
	w.loop(w.settings.ArchiveInterval, func() {
		n, err := w.queue.Archive(w.ctx, w.settings.ArchiveRetention, w.settings.BatchSize)
		if err != nil {
			w.logger.Error(err, "QueueWorker - Start - loop - w.queue.Archive")
		}
		if n > 0 {
			w.logger.Info("QueueWorker - archived %d payloads", n)
		}
	})

	return nil
}

// Poll claims one batch and processes it with bounded concurrency.
// It returns the number of claimed events once all of them are finalized, released or abandoned.
// Once ctx is done, events of the batch that have not started are released.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	events, err := w.queue.ClaimDue(ctx, w.settings.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("QueueWorker - Poll - w.queue.ClaimDue: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(w.settings.Concurrency)

	for _, event := range events {
		g.Go(func() error {
			w.process(ctx, event)
			return nil
		})
	}
	_ = g.Wait()

	return len(events), nil
}

// ProcessByID claims a single pending event and processes it synchronously.
func (w *Worker) ProcessByID(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error) {
	event, err := w.queue.ClaimByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("QueueWorker - ProcessByID - w.queue.ClaimByID: %w", err)
	}

	outcome, ok := w.dispatch(ctx, event)
	if !ok {
		return event, fmt.Errorf("QueueWorker - ProcessByID - dispatch of %s did not finish within %s",
			id, w.settings.DispatchTimeout)
	}

	next, err := w.queue.Finalize(ctx, event, outcome)
	if err != nil {
		return nil, fmt.Errorf("QueueWorker - ProcessByID - w.queue.Finalize: %w", err)
	}

	return next, nil
}

func (w *Worker) process(ctx context.Context, event *entity.IntakeEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(fmt.Errorf("panic %v", r), "QueueWorker - process - panic")
		}
	}()

	if ctx.Err() != nil {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _finalizeTimeout)
		defer cancel()

		if err := w.queue.Release(releaseCtx, event); err != nil {
			w.logger.Error(err, "QueueWorker - process - w.queue.Release")
		}
		return
	}

	outcome, ok := w.dispatch(w.dispatchCtx, event)
	if !ok {
		w.logger.Warn("QueueWorker - process - event %s abandoned after %s, left for the stale sweep",
			event.ID, w.settings.DispatchTimeout)
		return
	}

	// the outcome is recorded even while shutting down
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _finalizeTimeout)
	defer cancel()

	next, err := w.queue.Finalize(finalizeCtx, event, outcome)
	if err != nil {
		if errors.Is(err, errs.ErrClaimLost) {
			w.logger.Warn("QueueWorker - process - claim on %s lost before finalize", event.ID)
			return
		}
		w.logger.Error(err, "QueueWorker - process - w.queue.Finalize")
		return
	}

	if next.Status != entity.Completed {
		w.logger.Warn("QueueWorker - process - event %s %s/%s -> %s (retry_count=%d): %s",
			next.ID, next.Source, next.EventType, next.Status, next.RetryCount, outcome.Reason)
	}
}

// dispatch runs the dispatcher under ctx and waits at most DispatchTimeout. On timeout, or
// when ctx is cancelled, the call keeps running in the background and ok is false; the row
// stays in processing.
func (w *Worker) dispatch(ctx context.Context, event *entity.IntakeEvent) (entity.Outcome, bool) {
	result := make(chan entity.Outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- entity.RetryableFailure(fmt.Sprintf("dispatcher panic: %v", r))
			}
		}()
		result <- w.dispatcher.Dispatch(ctx, event)
	}()

	var timeout <-chan time.Time
	if w.settings.DispatchTimeout > 0 {
		timer := time.NewTimer(w.settings.DispatchTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case outcome := <-result:
		return outcome, true
	case <-timeout:
		return entity.Outcome{}, false
	case <-ctx.Done():
		return entity.Outcome{}, false
	}
}

func (w *Worker) loop(interval time.Duration, task func()) {
	if interval <= 0 {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

// Shutdown stops claiming and waits for in-flight dispatches until ctx is done.
// Claimed events that have not started go back to pending. When ctx expires first the
// remaining dispatches are cancelled and left to the stale sweep.
func (w *Worker) Shutdown(ctx context.Context) error {
	if !w.started.Load() {
		return nil
	}

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})

	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.dispatchCancel()
		return fmt.Errorf("QueueWorker - Shutdown: %w", ctx.Err())
	}
}
