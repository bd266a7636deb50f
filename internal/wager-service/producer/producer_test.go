package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/shared/metrics"
	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/pkg/contracts/events"
	"github.com/radieske/social-wager-platform/pkg/contracts/topics"
)

type fakePublisher struct {
	got []Message
	err error
}

func (f *fakePublisher) Publish(_ context.Context, msgs []Message) error {
	f.got = append(f.got, msgs...)
	return f.err
}

func sampleBatch() *Batch {
	b := NewBatch()
	b.Credit(domain.CreditTransaction{
		ID: "tx1", UserID: "u1", GroupID: "g1", Type: domain.TxWagerWon,
		Amount: decimal.RequireFromString("500"), BalanceAfter: decimal.RequireFromString("1300"),
		AllocatedAfter: decimal.Zero, CreatedAt: time.Unix(0, 0),
	})
	b.BetSettled(events.BetSettled{BetID: "b1", GroupID: "g1", WagersWon: 1})
	return b
}

func TestBatch_Credit(t *testing.T) {
	b := sampleBatch()

	require.Len(t, b.Messages(), 2)
	m := b.Messages()[0]
	assert.Equal(t, topics.LedgerMutations, m.Topic)
	assert.Equal(t, "g1", m.Key)
	lm, ok := m.Value.(events.LedgerMutation)
	require.True(t, ok)
	assert.Equal(t, "500.00", lm.Amount)
	assert.Equal(t, "1300.00", lm.BalanceAfter)
	assert.Equal(t, "wager_won", lm.Type)
	assert.Len(t, b.Credits(), 1)
}

func TestDispatcher_Flush(t *testing.T) {
	m := metrics.NewWager(prometheus.NewRegistry())
	pub := &fakePublisher{}
	d := NewDispatcher(pub, m, zap.NewNop())

	d.Flush(context.Background(), sampleBatch())

	assert.Len(t, pub.got, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerMutations.WithLabelValues("wager_won")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues(topics.BetSettled)))
}

func TestDispatcher_FlushFailureIsCounted(t *testing.T) {
	m := metrics.NewWager(prometheus.NewRegistry())
	d := NewDispatcher(&fakePublisher{err: errors.New("broker down")}, m, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Flush(ctx, sampleBatch())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues(topics.BetSettled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues(topics.LedgerMutations)))
	// a mutação foi commitada mesmo com falha no publish
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerMutations.WithLabelValues("wager_won")))
}

func TestKafkaPublisher_TopicMapping(t *testing.T) {
	p := NewKafkaPublisher(nil, map[string]string{topics.BetSettled: "prod.bet_settled"})

	assert.Equal(t, "prod.bet_settled", p.topic(topics.BetSettled))
	assert.Equal(t, topics.ParlayResolved, p.topic(topics.ParlayResolved))
	assert.NoError(t, p.Publish(context.Background(), nil))
}
