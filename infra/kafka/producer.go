package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes quote payloads straight to a topic, keyed by the
// input sequence that produced them.
type Producer struct {
	writer messageWriter
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Topic() string { return p.topic }

func (p *Producer) Send(ctx context.Context, seq uint64, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(seq, 10)),
		Value: value,
	})
	if err != nil {
		return errors.Wrapf(err, "publish seq %d to %s", seq, p.topic)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
