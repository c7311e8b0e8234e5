package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/backoff"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/segmentio/kafka-go"
)

// failures of one message are logged as errors from this attempt on
const _alertAfterAttempts = 3

// IntakeBridge moves webhook envelopes from the intake topic into the intake store.
// A message is committed once it is stored, or once it is known it can never be stored.
// Storage failures are retried until they succeed or the bridge stops; commits never pass
// a message that is still unfinished, so it is redelivered after a restart.
type IntakeBridge struct {
	intake usecase.IntakeUseCase
	reader infrastructure.IntakeReader
	logger logger.Interface

	commitTimeout  time.Duration
	processTimeout time.Duration
	retry          backoff.Policy
	offsets        *offsetTracker

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	intake usecase.IntakeUseCase,
	reader infrastructure.IntakeReader,
	l logger.Interface,
	commitTimeout time.Duration,
	processTimeout time.Duration,
	workers int,
) *IntakeBridge {
	return &IntakeBridge{
		intake:         intake,
		reader:         reader,
		logger:         l,
		commitTimeout:  commitTimeout,
		processTimeout: processTimeout,
		retry:          backoff.New(100*time.Millisecond, 5*time.Second, true),
		offsets:        newOffsetTracker(),
		workers:        max(workers, 1),
	}
}

func (b *IntakeBridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return fmt.Errorf("IntakeBridge - Start - bridge already started")
	}

	b.ctx, b.cancel = context.WithCancel(ctx)

	tasks := make(chan kafka.Message, b.workers*2)

	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker(tasks)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(tasks)

		failures := 0
		for {
			msg, err := b.reader.ReadMessage(b.ctx)
			if err != nil {
				if b.ctx.Err() != nil {
					return
				}
				b.logger.Error(err, "IntakeBridge - Start - b.reader.ReadMessage")

				failures++
				select {
				case <-time.After(b.retry.Delay(failures)):
				case <-b.ctx.Done():
					return
				}
				continue
			}
			failures = 0

			b.offsets.track(msg)

			select {
			case tasks <- msg:
			case <-b.ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (b *IntakeBridge) worker(tasks <-chan kafka.Message) {
	defer b.wg.Done()

	for msg := range tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error(fmt.Errorf("panic %v", r), "IntakeBridge - worker - panic")
				}
			}()

			err := b.handle(b.ctx, msg)
			if err != nil {
				if !rejected(err) {
					// stopping: the message stays unfinished and holds back its partition
					b.logger.Warn("IntakeBridge - worker - message %s/%d/%d not stored: %v",
						msg.Topic, msg.Partition, msg.Offset, err)
					return
				}
				b.logger.Warn("IntakeBridge - worker - dropping message %s/%d/%d: %v",
					msg.Topic, msg.Partition, msg.Offset, err)
			}

			err = b.offsets.finish(msg, func(upTo kafka.Message) error {
				commitCtx, commitCancel := context.WithTimeout(context.WithoutCancel(b.ctx), b.commitTimeout)
				defer commitCancel()

				return b.reader.Commit(commitCtx, upTo)
			})
			if err != nil {
				b.logger.Error(err, "IntakeBridge - worker - b.reader.Commit")
			}
		}()
	}
}

// rejected reports whether err means the message can never be stored.
func rejected(err error) bool {
	return errs.IsPermanent(err) || errors.Is(err, errs.ErrUnknownSource)
}

// handle stores one message, retrying transient failures until ctx ends. Without an explicit
// delivery id the message coordinates serve as one, so a redelivered message does not create
// a second event.
func (b *IntakeBridge) handle(ctx context.Context, msg kafka.Message) error {
	var env IntakeEnvelope
	err := json.Unmarshal(msg.Value, &env)
	if err != nil {
		return fmt.Errorf("IntakeBridge - handle - json.Unmarshal: %v: %w", err, errs.ErrValidation)
	}

	deliveryID := env.DeliveryID
	if deliveryID == "" {
		deliveryID = fmt.Sprintf("kafka:%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, b.processTimeout)
		id, err := b.intake.Enqueue(attemptCtx, env.Source, env.EventType, env.Payload, deliveryID)
		cancel()
		if err == nil {
			b.logger.Debug("IntakeBridge - handle - stored %s/%s as %s", env.Source, env.EventType, id)
			return nil
		}

		if rejected(err) {
			return fmt.Errorf("IntakeBridge - handle - b.intake.Enqueue: %w", err)
		}

		if attempt >= _alertAfterAttempts {
			b.logger.Error(err, "IntakeBridge - handle - attempt %d for %s", attempt, deliveryID)
		}

		select {
		case <-time.After(b.retry.Delay(attempt)):
		case <-ctx.Done():
			return fmt.Errorf("IntakeBridge - handle: %w", ctx.Err())
		}
	}
}

func (b *IntakeBridge) Shutdown(ctx context.Context) error {
	if !b.started.Load() {
		return nil
	}

	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})

	go func() {
		b.wg.Wait()
		if err := b.reader.Close(); err != nil {
			b.logger.Error(err, "IntakeBridge - Shutdown - b.reader.Close")
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
