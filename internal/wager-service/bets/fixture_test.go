package bets

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/shared/metrics"
	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/internal/wager-service/ledger"
	"github.com/radieske/social-wager-platform/internal/wager-service/membership"
	"github.com/radieske/social-wager-platform/internal/wager-service/parlays"
	"github.com/radieske/social-wager-platform/internal/wager-service/producer"
	"github.com/radieske/social-wager-platform/internal/wager-service/repo"
	"github.com/radieske/social-wager-platform/internal/wager-service/wagers"
)

var (
	d   = decimal.RequireFromString
	now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
)

// recorder guarda as mensagens publicadas; Publish pode vir de várias goroutines
type recorder struct {
	mu   sync.Mutex
	msgs []producer.Message
}

func (r *recorder) Publish(_ context.Context, msgs []producer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		out = append(out, m.Topic)
	}
	return out
}

type fixture struct {
	store   *repo.Memory
	led     *ledger.Ledger
	bets    *Service
	wagers  *wagers.Service
	parlays *parlays.Service
	pub     *recorder
	metrics *metrics.Wager
}

// newFixture: grupo g1 com admin, creator e os apostadores alice/bob, todos com 1000
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repo.NewMemory()
	store.PutGroup(domain.Group{ID: "g1", Name: "office", DefaultCredits: d("1000")})
	store.PutMembership(domain.Membership{UserID: "admin", GroupID: "g1", Role: domain.RoleAdmin, Status: domain.MembershipApproved})
	for _, u := range []string{"creator", "alice", "bob"} {
		store.PutMembership(domain.Membership{UserID: u, GroupID: "g1", Role: domain.RoleMember, Status: domain.MembershipApproved})
	}

	clock := func() time.Time { return now }
	led := &ledger.Ledger{Now: clock}
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, tx repo.Tx) error {
		for _, u := range []string{"admin", "creator", "alice", "bob"} {
			if _, err := led.Initialize(ctx, tx, u, "g1", d("1000")); err != nil {
				return err
			}
		}
		return nil
	}))

	pub := &recorder{}
	m := metrics.NewWager(prometheus.NewRegistry())
	ev := producer.NewDispatcher(pub, m, zap.NewNop())
	members := membership.NewStoreVerifier(store)
	log := zap.NewNop()

	cascade := parlays.NewResolver(led)
	cascade.Now = clock

	f := &fixture{
		store:   store,
		led:     led,
		bets:    NewService(store, led, cascade, members, ev, m, log),
		wagers:  wagers.NewService(store, led, members, ev, m, log),
		parlays: parlays.NewService(store, led, members, ev, m, log),
		pub:     pub,
		metrics: m,
	}
	f.bets.Now = clock
	f.wagers.Now = clock
	f.parlays.Now = clock
	return f
}

// twoWay cria uma bet do creator com opções (+150, -200) ou as odds informadas
func (f *fixture) twoWay(t *testing.T, odds ...int) View {
	t.Helper()
	if len(odds) == 0 {
		odds = []int{150, -200}
	}
	in := CreateInput{Title: "match"}
	for i, o := range odds {
		in.Options = append(in.Options, OptionInput{Label: string(rune('A' + i)), AmericanOdds: o})
	}
	v, err := f.bets.Create(context.Background(), "creator", "g1", in)
	require.NoError(t, err)
	return v
}

func (f *fixture) balance(t *testing.T, user string) domain.Balance {
	t.Helper()
	var b domain.Balance
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, tx repo.Tx) error {
		var err error
		b, err = f.led.GetBalance(ctx, tx, user, "g1")
		return err
	}))
	return b
}

func (f *fixture) wager(t *testing.T, id string) domain.Wager {
	t.Helper()
	w, err := f.wagers.Get(context.Background(), "admin", id)
	require.NoError(t, err)
	return w
}

func (f *fixture) parlay(t *testing.T, id string) parlays.View {
	t.Helper()
	v, err := f.parlays.Get(context.Background(), "admin", id)
	require.NoError(t, err)
	return v
}

func assertBalance(t *testing.T, b domain.Balance, available, allocated string) {
	t.Helper()
	assert.True(t, b.Available.Equal(d(available)), "available = %s, want %s", b.Available, available)
	assert.True(t, b.Allocated.Equal(d(allocated)), "allocated = %s, want %s", b.Allocated, allocated)
}
