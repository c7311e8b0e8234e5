package kafka

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

type topicPartition struct {
	topic     string
	partition int
}

type partitionOffsets struct {
	inFlight []int64
	finished map[int64]kafka.Message
}

// offsetTracker lets a partition be committed only up to its lowest unfinished message.
// Commits are cumulative per partition, so committing a later offset while an earlier
// message is still being retried would skip the earlier one for good.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[topicPartition]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[topicPartition]*partitionOffsets)}
}

// track registers msg in read order. An offset at or below one already tracked means the
// partition was rewound, after a rebalance for example, and starts a fresh window.
func (t *offsetTracker) track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := topicPartition{msg.Topic, msg.Partition}
	p, ok := t.partitions[key]
	if !ok || (len(p.inFlight) > 0 && msg.Offset <= p.inFlight[len(p.inFlight)-1]) {
		p = &partitionOffsets{finished: make(map[int64]kafka.Message)}
		t.partitions[key] = p
	}

	p.inFlight = append(p.inFlight, msg.Offset)
}

// finish marks msg as handled. commit is called, under the tracker lock, with the last
// message of the contiguous finished prefix of the partition whenever that prefix grows.
func (t *offsetTracker) finish(msg kafka.Message, commit func(kafka.Message) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[topicPartition{msg.Topic, msg.Partition}]
	if !ok {
		return nil
	}
	p.finished[msg.Offset] = msg

	var (
		last  kafka.Message
		moved bool
	)
	for len(p.inFlight) > 0 {
		m, done := p.finished[p.inFlight[0]]
		if !done {
			break
		}
		delete(p.finished, p.inFlight[0])
		p.inFlight = p.inFlight[1:]
		last, moved = m, true
	}

	if !moved {
		return nil
	}

	return commit(last)
}
