package kafka

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Webhook-Pipeline/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

// IntakeConsumer reads webhook envelopes from the intake topic with explicit commits.
type IntakeConsumer struct {
	*consumer.Consumer
}

func NewIntakeConsumer(consumer *consumer.Consumer) *IntakeConsumer {
	return &IntakeConsumer{consumer}
}

func (ic *IntakeConsumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	msg, err := ic.Reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("IntakeConsumer - ReadMessage - ic.Reader.FetchMessage: %w", err)
	}

	return msg, nil
}

func (ic *IntakeConsumer) Commit(ctx context.Context, msg kafka.Message) error {
	err := ic.Reader.CommitMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("IntakeConsumer - Commit - ic.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (ic *IntakeConsumer) Close() error {
	err := ic.Consumer.Close()
	if err != nil {
		return fmt.Errorf("IntakeConsumer - Close: %w", err)
	}

	return nil
}
