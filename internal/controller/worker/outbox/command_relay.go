package outbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
)

// CommandRelay announces newly enqueued commands on the broker. The commands table is
// the outbox: a command is marked published only after the broker accepted it, so a
// crash between the two steps re-announces it and subscribers must dedupe by command id.
type CommandRelay struct {
	cmd    usecase.CommandRelayUseCase
	cs     infrastructure.CommandSender
	logger logger.Interface

	pollInterval        time.Duration
	processBatchTimeout time.Duration
	batchSize           int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	cmd usecase.CommandRelayUseCase,
	cs infrastructure.CommandSender,
	l logger.Interface,
	pollInterval time.Duration,
	processBatchTimeout time.Duration,
	batchSize int,
) *CommandRelay {
	return &CommandRelay{
		cmd:                 cmd,
		cs:                  cs,
		logger:              l,
		pollInterval:        pollInterval,
		processBatchTimeout: processBatchTimeout,
		batchSize:           batchSize,
	}
}

func (r *CommandRelay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("CommandRelay - Start - relay already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				batchCtx, batchCancel := context.WithTimeout(r.ctx, r.processBatchTimeout)
				_, err := r.PublishBatch(batchCtx)
				batchCancel()
				if err != nil {
					r.logger.Error(err, "CommandRelay - Start - r.PublishBatch")
				}
			}
		}
	}()

	return nil
}

// PublishBatch sends one batch of unpublished commands and returns how many were published.
func (r *CommandRelay) PublishBatch(ctx context.Context) (int, error) {
	// 1. commands not announced yet, oldest first
	cmds, err := r.cmd.Unpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("CommandRelay - PublishBatch - r.cmd.Unpublished: %w", err)
	}
	if len(cmds) == 0 {
		return 0, nil
	}

	// 2. send, a failed batch is retried on the next tick
	err = r.cs.SendCommands(ctx, cmds)
	if err != nil {
		return 0, fmt.Errorf("CommandRelay - PublishBatch - r.cs.SendCommands: %w", err)
	}

	// 3. remember what the broker accepted
	err = r.cmd.MarkPublished(ctx, cmds)
	if err != nil {
		return 0, fmt.Errorf("CommandRelay - PublishBatch - r.cmd.MarkPublished: %w", err)
	}

	return len(cmds), nil
}

func (r *CommandRelay) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		if err := r.cs.Close(); err != nil {
			r.logger.Error(err, "CommandRelay - Shutdown - r.cs.Close")
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
