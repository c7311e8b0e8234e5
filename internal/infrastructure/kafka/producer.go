package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/kafka/producer"
	"github.com/segmentio/kafka-go"
)

type CommandProducer struct {
	*producer.Producer
	topic string
}

func NewCommandProducer(producer *producer.Producer, topic string) *CommandProducer {
	return &CommandProducer{
		producer,
		topic,
	}
}

// SendCommands writes one message per command, keyed by the command id.
func (cp *CommandProducer) SendCommands(ctx context.Context, cmds []*entity.Command) error {
	msgs := make([]kafka.Message, 0, len(cmds))

	for _, cmd := range cmds {
		value, err := json.Marshal(cmd)
		if err != nil {
			return fmt.Errorf("CommandProducer - SendCommands - json.Marshal: %w", err)
		}

		msgs = append(msgs, kafka.Message{
			Topic: cp.topic,
			Key:   []byte(cmd.ID.String()),
			Value: value,
			Headers: []kafka.Header{
				{Key: "target", Value: []byte(cmd.Target)},
				{Key: "action", Value: []byte(cmd.Action)},
				{Key: "priority", Value: []byte(strconv.Itoa(cmd.Priority))},
				{Key: "origin_event_id", Value: []byte(cmd.OriginEventID.String())},
			},
		})
	}

	if len(msgs) == 0 {
		return nil
	}

	err := cp.Writer.WriteMessages(ctx, msgs...)
	if err != nil {
		return fmt.Errorf("CommandProducer - SendCommands - cp.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (cp *CommandProducer) Close() error {
	err := cp.Producer.Close()
	if err != nil {
		return fmt.Errorf("CommandProducer - Close: %w", err)
	}

	return nil
}
