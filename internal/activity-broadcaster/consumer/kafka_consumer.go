package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/shared/metrics"
	"github.com/radieske/social-wager-platform/pkg/contracts/events"
	"github.com/radieske/social-wager-platform/pkg/contracts/topics"
)

// MessageReader é o subconjunto do *kafka.Reader usado pelo loop
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Sink recebe o envelope já decodificado (Redis pub/sub em produção)
type Sink interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Processor consome os eventos de domínio do Kafka e repassa cada um,
// embrulhado com o group id, para o Sink
type Processor struct {
	Log     *zap.Logger
	Reader  MessageReader
	Sink    Sink
	Metrics *metrics.Broadcaster

	// pausa depois de erro de leitura
	Backoff time.Duration
}

var errMissingGroup = errors.New("event without group_id")

// groupOnly extrai só o campo comum a todos os eventos
type groupOnly struct {
	GroupID string `json:"group_id"`
}

// Run roda até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.Metrics.ConsumeErrors.WithLabelValues("read").Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff()):
			}
			continue
		}
		p.Metrics.Consumed.WithLabelValues(m.Topic).Inc()

		env, err := Decode(m)
		if err != nil {
			p.Log.Warn("invalid message", zap.String("topic", m.Topic), zap.Error(err))
			p.Metrics.ConsumeErrors.WithLabelValues(m.Topic).Inc()
			continue
		}

		// falha no Redis não trava o consumo; o evento só deixa de ir pro ws
		if err := p.Sink.Publish(ctx, env); err != nil {
			p.Log.Warn("redis publish failed", zap.String("topic", m.Topic), zap.String("group_id", env.GroupID), zap.Error(err))
			p.Metrics.PublishErrors.Inc()
			continue
		}
		p.Metrics.Published.Inc()
	}
}

func (p *Processor) backoff() time.Duration {
	if p.Backoff > 0 {
		return p.Backoff
	}
	return 500 * time.Millisecond
}

// Decode valida o JSON e monta o envelope; payload segue intacto
func Decode(m kafka.Message) (events.Envelope, error) {
	var g groupOnly
	if err := json.Unmarshal(m.Value, &g); err != nil {
		return events.Envelope{}, err
	}
	groupID := g.GroupID
	if groupID == "" {
		// producer usa o group id como key
		groupID = string(m.Key)
	}
	if groupID == "" {
		return events.Envelope{}, errMissingGroup
	}
	if m.Topic == topics.LedgerMutations {
		return redactLedger(m.Topic, groupID, m.Value)
	}
	return events.Envelope{Topic: m.Topic, GroupID: groupID, Payload: json.RawMessage(m.Value)}, nil
}

// ledgerActivity é a parte pública de uma mutação de ledger: qualquer inscrito
// no grupo recebe o evento, então os saldos do usuário não saem daqui
type ledgerActivity struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	GroupID       string    `json:"group_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Ts            time.Time `json:"ts"`
}

func redactLedger(topic, groupID string, raw []byte) (events.Envelope, error) {
	var lm events.LedgerMutation
	if err := json.Unmarshal(raw, &lm); err != nil {
		return events.Envelope{}, err
	}
	return events.Envelope{Topic: topic, GroupID: groupID, Payload: ledgerActivity{
		TransactionID: lm.TransactionID,
		UserID:        lm.UserID,
		GroupID:       groupID,
		Type:          lm.Type,
		Amount:        lm.Amount,
		Ts:            lm.Ts,
	}}, nil
}
