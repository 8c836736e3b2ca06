package broadcaster

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"feedbook/infra/logging"
	exitwal "feedbook/infra/wal/exit"
)

// Broadcaster publishes outbox quotes to Kafka in sequence order. Each
// record is marked SENT before the send and ACKED after it, so a crash in
// between resends rather than loses.
type Broadcaster struct {
	outbox   *exitwal.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      zerolog.Logger

	mu   sync.Mutex
	done chan struct{}
}

func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func New(
	outbox *exitwal.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	log zerolog.Logger,
) (*Broadcaster, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, errors.Wrap(err, "broadcaster: producer")
	}
	return NewWithProducer(outbox, producer, topic, interval, log), nil
}

// NewWithProducer wires an existing producer, e.g. a sarama mock.
func NewWithProducer(
	outbox *exitwal.Outbox,
	producer sarama.SyncProducer,
	topic string,
	interval time.Duration,
	log zerolog.Logger,
) *Broadcaster {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      logging.Component(log, "broadcaster"),
	}
}

// Start drains the outbox every interval until ctx is done, then drains
// one last time so quotes emitted before shutdown still go out.
func (b *Broadcaster) Start(ctx context.Context) {
	b.done = make(chan struct{})
	b.log.Info().Str("topic", b.topic).Dur("interval", b.interval).Msg("started")

	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if _, err := b.DrainOnce(); err != nil {
					b.log.Warn().Err(err).Msg("final drain incomplete")
				}
				b.logBacklog()
				return
			case <-ticker.C:
				if _, err := b.DrainOnce(); err != nil {
					b.log.Warn().Err(err).Msg("drain incomplete, will retry")
				}
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (b *Broadcaster) Wait() {
	if b.done != nil {
		<-b.done
	}
}

// DrainOnce publishes every pending record and purges the acknowledged
// ones. It stops at the first failed send so order is kept.
func (b *Broadcaster) DrainOnce() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var pending []exitwal.Record
	if err := b.outbox.ScanPending(func(r exitwal.Record) error {
		pending = append(pending, r)
		return nil
	}); err != nil {
		return 0, errors.Wrap(err, "scan outbox")
	}

	sent := 0
	for _, rec := range pending {
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return sent, err
		}

		_, _, err := b.producer.SendMessage(&sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(rec.Seq, 10)),
			Value: sarama.ByteEncoder(rec.Payload),
		})
		if err != nil {
			if merr := b.outbox.MarkFailed(rec.Seq); merr != nil {
				b.log.Error().Err(merr).Uint64("seq", rec.Seq).Msg("mark failed")
			}
			return sent, errors.Wrapf(err, "send seq %d", rec.Seq)
		}

		if err := b.outbox.MarkAcked(rec.Seq); err != nil {
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		if _, err := b.outbox.PurgeAcked(); err != nil {
			return sent, errors.Wrap(err, "purge outbox")
		}
		b.log.Debug().Int("sent", sent).Msg("drained")
	}
	return sent, nil
}

// logBacklog reports what is left for the next run to publish.
func (b *Broadcaster) logBacklog() {
	counts, err := b.outbox.Count()
	if err != nil {
		b.log.Warn().Err(err).Msg("outbox count")
		return
	}
	left := counts[exitwal.StateNew] + counts[exitwal.StateSent] + counts[exitwal.StateFailed]
	if left > 0 {
		b.log.Warn().Int("pending", left).Int("failed", counts[exitwal.StateFailed]).Msg("quotes left in outbox")
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
