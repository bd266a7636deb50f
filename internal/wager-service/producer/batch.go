package producer

import (
	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/pkg/contracts/events"
	"github.com/radieske/social-wager-platform/pkg/contracts/topics"
)

// Message é um evento pendente. Topic é o nome lógico de pkg/contracts/topics;
// Key é o group id.
type Message struct {
	Topic string
	Key   string
	Value any
}

// Batch acumula os eventos de uma unidade de trabalho. Deve ser criado dentro
// da closure do WithinTx (uma retentativa começa um batch novo) e só é
// publicado depois do commit.
type Batch struct {
	msgs    []Message
	credits []domain.CreditTransaction
}

func NewBatch() *Batch { return &Batch{} }

// Credit registra uma transação de crédito gravada no ledger
func (b *Batch) Credit(ct domain.CreditTransaction) {
	b.credits = append(b.credits, ct)
	b.msgs = append(b.msgs, Message{
		Topic: topics.LedgerMutations,
		Key:   ct.GroupID,
		Value: events.LedgerMutation{
			TransactionID:  ct.ID,
			UserID:         ct.UserID,
			GroupID:        ct.GroupID,
			Type:           string(ct.Type),
			Amount:         ct.Amount.StringFixed(2),
			BalanceAfter:   ct.BalanceAfter.StringFixed(2),
			AllocatedAfter: ct.AllocatedAfter.StringFixed(2),
			Ts:             ct.CreatedAt,
		},
	})
}

func (b *Batch) BetSettled(e events.BetSettled) {
	b.msgs = append(b.msgs, Message{Topic: topics.BetSettled, Key: e.GroupID, Value: e})
}

func (b *Batch) BetCancelled(e events.BetCancelled) {
	b.msgs = append(b.msgs, Message{Topic: topics.BetCancelled, Key: e.GroupID, Value: e})
}

func (b *Batch) ParlayResolved(e events.ParlayResolved) {
	b.msgs = append(b.msgs, Message{Topic: topics.ParlayResolved, Key: e.GroupID, Value: e})
}

func (b *Batch) Messages() []Message { return b.msgs }

func (b *Batch) Credits() []domain.CreditTransaction { return b.credits }
