package command

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/repo"
	"github.com/google/uuid"
)

// UseCase feeds the command relay: it hands out commands not yet announced
// on the broker and records their publication.
type UseCase struct {
	commandRepo repo.CommandRepo
	now         func() time.Time
}

func New(commandRepo repo.CommandRepo) *UseCase {
	return &UseCase{
		commandRepo: commandRepo,
		now:         time.Now,
	}
}

func (uc *UseCase) Unpublished(ctx context.Context, limit int) ([]*entity.Command, error) {
	cmds, err := uc.commandRepo.ListUnpublished(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("CommandUseCase - Unpublished - uc.commandRepo.ListUnpublished: %w", err)
	}

	return cmds, nil
}

func (uc *UseCase) MarkPublished(ctx context.Context, cmds []*entity.Command) error {
	if len(cmds) == 0 {
		return nil
	}

	ids := make(uuid.UUIDs, 0, len(cmds))
	for _, c := range cmds {
		ids = append(ids, c.ID)
	}

	err := uc.commandRepo.MarkPublished(ctx, ids, uc.now())
	if err != nil {
		return fmt.Errorf("CommandUseCase - MarkPublished - uc.commandRepo.MarkPublished: %w", err)
	}

	return nil
}
