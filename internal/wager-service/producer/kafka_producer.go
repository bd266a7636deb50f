package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/shared/metrics"
)

type Publisher interface {
	Publish(ctx context.Context, msgs []Message) error
}

// KafkaPublisher envia as mensagens num único WriteMessages.
// Topics traduz o nome lógico para o tópico configurado (KAFKA_TOPIC_*).
type KafkaPublisher struct {
	Writer *kafka.Writer
	Topics map[string]string
}

func NewKafkaPublisher(w *kafka.Writer, topics map[string]string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topics: topics}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now()
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m.Value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", m.Topic, err)
		}
		out = append(out, kafka.Message{
			Topic: p.topic(m.Topic),
			Key:   []byte(m.Key),
			Value: b,
			Time:  now,
		})
	}
	return p.Writer.WriteMessages(ctx, out...)
}

func (p *KafkaPublisher) topic(logical string) string {
	if t, ok := p.Topics[logical]; ok && t != "" {
		return t
	}
	return logical
}

// LogPublisher só loga os eventos; usado quando o serviço roda sem Kafka
type LogPublisher struct {
	Log *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, msgs []Message) error {
	for _, m := range msgs {
		p.Log.Debug("event", zap.String("topic", m.Topic), zap.String("key", m.Key), zap.Any("value", m.Value))
	}
	return nil
}

// Dispatcher publica um Batch já commitado. Falhas são logadas e contadas,
// a operação de negócio já foi confirmada e não volta atrás.
type Dispatcher struct {
	Pub     Publisher
	Metrics *metrics.Wager
	Log     *zap.Logger
	Timeout time.Duration
}

func NewDispatcher(pub Publisher, m *metrics.Wager, log *zap.Logger) *Dispatcher {
	return &Dispatcher{Pub: pub, Metrics: m, Log: log, Timeout: 5 * time.Second}
}

func (d *Dispatcher) Flush(ctx context.Context, b *Batch) {
	if b == nil {
		return
	}
	for _, ct := range b.Credits() {
		d.Metrics.LedgerMutations.WithLabelValues(string(ct.Type)).Inc()
	}

	msgs := b.Messages()
	if len(msgs) == 0 {
		return
	}
	// o request pode ter sido cancelado logo após o commit
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.Timeout)
	defer cancel()

	if err := d.Pub.Publish(pctx, msgs); err != nil {
		seen := map[string]bool{}
		for _, m := range msgs {
			if !seen[m.Topic] {
				seen[m.Topic] = true
				d.Metrics.PublishFailures.WithLabelValues(m.Topic).Inc()
			}
		}
		d.Log.Warn("publish events failed", zap.Int("count", len(msgs)), zap.Error(err))
	}
}
