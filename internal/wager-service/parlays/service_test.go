package parlays

import (
	"context"
	"errors"
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
	"github.com/radieske/social-wager-platform/internal/wager-service/producer"
	"github.com/radieske/social-wager-platform/internal/wager-service/repo"
)

var (
	d   = decimal.RequireFromString
	now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	store *repo.Memory
	led   *ledger.Ledger
	svc   *Service
	res   *Resolver
}

// newFixture: bets b1..b3 em g1 e bx em g2, cada uma com opções <id>-a (+100) e <id>-b (-150)
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repo.NewMemory()
	store.PutGroup(domain.Group{ID: "g1", DefaultCredits: d("1000")})
	store.PutGroup(domain.Group{ID: "g2", DefaultCredits: d("1000")})
	for _, u := range []string{"alice", "bob", "carol"} {
		store.PutMembership(domain.Membership{UserID: u, GroupID: "g1", Role: domain.RoleMember, Status: domain.MembershipApproved})
	}
	store.PutMembership(domain.Membership{UserID: "carol", GroupID: "g2", Role: domain.RoleMember, Status: domain.MembershipApproved})

	clock := func() time.Time { return now }
	led := &ledger.Ledger{Now: clock}
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, tx repo.Tx) error {
		for _, u := range []string{"alice", "bob", "carol"} {
			if _, err := led.Initialize(ctx, tx, u, "g1", d("1000")); err != nil {
				return err
			}
		}
		for _, b := range []struct{ id, group string }{{"b1", "g1"}, {"b2", "g1"}, {"b3", "g1"}, {"bx", "g2"}} {
			err := tx.InsertBet(ctx, domain.Bet{
				ID: b.id, GroupID: b.group, CreatedByID: "carol", Title: b.id, Status: domain.BetOpen,
				CreatedAt: now, UpdatedAt: now,
			}, []domain.Option{
				{ID: b.id + "-a", BetID: b.id, Label: "a", AmericanOdds: 100, Position: 0},
				{ID: b.id + "-b", BetID: b.id, Label: "b", AmericanOdds: -150, Position: 1},
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	m := metrics.NewWager(prometheus.NewRegistry())
	ev := producer.NewDispatcher(producer.LogPublisher{Log: zap.NewNop()}, m, zap.NewNop())
	svc := NewService(store, led, membership.NewStoreVerifier(store), ev, m, zap.NewNop())
	svc.Now = clock
	res := NewResolver(led)
	res.Now = clock
	return &fixture{store: store, led: led, svc: svc, res: res}
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

func (f *fixture) setStatus(t *testing.T, betID string, st domain.BetStatus) {
	t.Helper()
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, tx repo.Tx) error {
		b, err := tx.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		b.Status = st
		return tx.UpdateBet(ctx, b)
	}))
}

func leg(bet, opt string) LegInput { return LegInput{BetID: bet, OptionID: bet + "-" + opt} }

func TestPlace(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.Place(context.Background(), "alice", "g1", d("100"), []LegInput{leg("b1", "a"), leg("b2", "b"), leg("b3", "a")})
	require.NoError(t, err)

	// 2.0 * 1.6667 * 2.0
	assert.InDelta(t, 6.6667, v.Parlay.CombinedDecimalOdds, 1e-3)
	assert.True(t, v.Parlay.PotentialPayout.Equal(d("666.67")), "payout %s", v.Parlay.PotentialPayout)
	assert.Equal(t, 567, v.EffectiveOdds)
	require.Len(t, v.Legs, 3)
	for _, l := range v.Legs {
		assert.Equal(t, domain.ResultPending, l.Result)
		assert.Equal(t, domain.BetOpen, l.BetStatus)
	}
	assert.Equal(t, -150, legByBet(v, "b2").OddsAtPlacement)
	assert.True(t, f.balance(t, "alice").Allocated.Equal(d("100")))
}

func legByBet(v View, betID string) domain.LegWithBet {
	for _, l := range v.Legs {
		if l.BetID == betID {
			return l
		}
	}
	return domain.LegWithBet{}
}

func TestPlace_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		user  string
		group string
		legs  []LegInput
		setup func(t *testing.T, f *fixture)
		want  error
	}{
		{name: "one leg", user: "alice", group: "g1", legs: []LegInput{leg("b1", "a")}, want: domain.ErrValidation},
		{name: "eleven legs", user: "alice", group: "g1", legs: make([]LegInput, 11), want: domain.ErrValidation},
		{name: "duplicate bet", user: "alice", group: "g1", legs: []LegInput{leg("b1", "a"), leg("b1", "b")}, want: domain.ErrValidation},
		{name: "option of another bet", user: "alice", group: "g1", legs: []LegInput{leg("b1", "a"), {BetID: "b2", OptionID: "b3-a"}}, want: domain.ErrValidation},
		{name: "bet of another group", user: "alice", group: "g1", legs: []LegInput{leg("b1", "a"), leg("bx", "a")}, want: domain.ErrValidation},
		{name: "unknown bet", user: "alice", group: "g1", legs: []LegInput{leg("b1", "a"), leg("nope", "a")}, want: domain.ErrNotFound},
		{name: "not a member", user: "mallory", group: "g1", legs: []LegInput{leg("b1", "a"), leg("b2", "a")}, want: domain.ErrForbidden},
		{name: "creator leg", user: "carol", group: "g1", legs: []LegInput{leg("b1", "a"), leg("b2", "a")}, want: domain.ErrForbidden},
		{
			name: "locked leg", user: "alice", group: "g1", legs: []LegInput{leg("b1", "a"), leg("b2", "a")}, want: domain.ErrInvalidState,
			setup: func(t *testing.T, f *fixture) { f.setStatus(t, "b2", domain.BetLocked) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			_, err := f.svc.Place(context.Background(), tt.user, tt.group, d("10"), tt.legs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			if tt.user != "mallory" {
				assert.True(t, f.balance(t, tt.user).Allocated.IsZero(), "no partial reserve")
			}
		})
	}
}

func TestPlace_InsufficientCredits(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Place(context.Background(), "alice", "g1", d("1500"), []LegInput{leg("b1", "a"), leg("b2", "a")})
	assert.True(t, errors.Is(err, domain.ErrInsufficientCredits))
	assert.Contains(t, err.Error(), "required 1500.00")
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Place(ctx, "alice", "g1", d("100"), []LegInput{leg("b1", "a"), leg("b2", "a")})
	require.NoError(t, err)

	assert.True(t, errors.Is(f.svc.Cancel(ctx, "bob", v.Parlay.ID), domain.ErrForbidden))

	require.NoError(t, f.svc.Cancel(ctx, "alice", v.Parlay.ID))
	b := f.balance(t, "alice")
	assert.True(t, b.Available.Equal(d("1000")))
	assert.True(t, b.Allocated.IsZero())

	_, err = f.svc.Get(ctx, "alice", v.Parlay.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCancel_BlockedByAnyLockedLeg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Place(ctx, "alice", "g1", d("100"), []LegInput{leg("b1", "a"), leg("b2", "a")})
	require.NoError(t, err)
	f.setStatus(t, "b2", domain.BetLocked)

	err = f.svc.Cancel(ctx, "alice", v.Parlay.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	assert.True(t, f.balance(t, "alice").Allocated.Equal(d("100")))
}

func TestResolveBet_SkipsResolvedParlays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Place(ctx, "alice", "g1", d("100"), []LegInput{leg("b1", "a"), leg("b2", "a")})
	require.NoError(t, err)
	f.setStatus(t, "b1", domain.BetSettled)

	resolve := func() Outcome {
		var out Outcome
		require.NoError(t, f.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
			var err error
			out, err = f.res.ResolveBet(ctx, tx, "b1", "b1-b", producer.NewBatch())
			return err
		}))
		return out
	}

	assert.Equal(t, Outcome{Lost: 1}, resolve())
	// invocado de novo para a mesma bet: nada muda
	assert.Equal(t, Outcome{}, resolve())

	b := f.balance(t, "alice")
	assert.True(t, b.Available.Equal(d("900")))
	assert.True(t, b.Allocated.IsZero())

	got, err := f.svc.Get(ctx, "bob", v.Parlay.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultLost, got.Parlay.Result)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Place(ctx, "alice", "g1", d("10"), []LegInput{leg("b1", "a"), leg("b2", "a")})
	require.NoError(t, err)
	_, err = f.svc.Place(ctx, "bob", "g1", d("10"), []LegInput{leg("b1", "b"), leg("b3", "a")})
	require.NoError(t, err)

	vs, err := f.svc.ListMine(ctx, "alice", "g1")
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Len(t, vs[0].Legs, 2)
}

func TestPlace_LegsKeepPlacementOrder(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.Place(context.Background(), "alice", "g1", d("10"), []LegInput{leg("b3", "a"), leg("b1", "b"), leg("b2", "a")})
	require.NoError(t, err)

	require.Len(t, v.Legs, 3)
	for i, want := range []string{"b3", "b1", "b2"} {
		assert.Equal(t, want, v.Legs[i].BetID)
		assert.Equal(t, i, v.Legs[i].Position)
	}
}

func TestPlace_PayoutBeyondStorableAmount(t *testing.T) {
	f := newFixture(t)
	ids := []string{"l1", "l2", "l3", "l4"}
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, tx repo.Tx) error {
		for _, id := range ids {
			err := tx.InsertBet(ctx, domain.Bet{
				ID: id, GroupID: "g1", CreatedByID: "carol", Title: id, Status: domain.BetOpen,
				CreatedAt: now, UpdatedAt: now,
			}, []domain.Option{
				{ID: id + "-a", BetID: id, Label: "a", AmericanOdds: 100000, Position: 0},
				{ID: id + "-b", BetID: id, Label: "b", AmericanOdds: -100000, Position: 1},
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	// 1001^4 * 1.00 passa de 999999999999.99
	legs := make([]LegInput, 0, len(ids))
	for _, id := range ids {
		legs = append(legs, leg(id, "a"))
	}
	_, err := f.svc.Place(context.Background(), "alice", "g1", d("1"), legs)
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
	assertUntouched(t, f.balance(t, "alice"))

	// três pernas ainda cabem: 1001^3 ≈ 1.003e9
	v, err := f.svc.Place(context.Background(), "alice", "g1", d("1"), legs[:3])
	require.NoError(t, err)
	assert.True(t, v.Parlay.PotentialPayout.Equal(d("1003003001")), "payout %s", v.Parlay.PotentialPayout)
	assert.Equal(t, 100300300000, v.EffectiveOdds)
}

func assertUntouched(t *testing.T, b domain.Balance) {
	t.Helper()
	assert.True(t, b.Available.Equal(d("1000")), "available %s", b.Available)
	assert.True(t, b.Allocated.IsZero(), "allocated %s", b.Allocated)
}
