package infrastructure

import (
	"context"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/segmentio/kafka-go"
)

type (
	// CommandSender announces stored commands to subscribers.
	CommandSender interface {
		SendCommands(ctx context.Context, cmds []*entity.Command) error
		Close() error
	}

	IntakeReader interface {
		ReadMessage(ctx context.Context) (kafka.Message, error)
		Commit(ctx context.Context, msg kafka.Message) error
		Close() error
	}
)
