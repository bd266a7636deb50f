// Package parlays cria e cancela parlays (2 a 10 pernas, cada uma numa bet
// diferente do mesmo grupo) e resolve as pernas quando uma bet termina.
package parlays

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/shared/metrics"
	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/internal/wager-service/ledger"
	"github.com/radieske/social-wager-platform/internal/wager-service/membership"
	"github.com/radieske/social-wager-platform/internal/wager-service/producer"
	"github.com/radieske/social-wager-platform/internal/wager-service/repo"
	"github.com/radieske/social-wager-platform/internal/wager-service/wagers"
	"github.com/radieske/social-wager-platform/pkg/oddsmath"
)

const (
	MinLegs = 2
	MaxLegs = 10
)

type LegInput struct {
	BetID    string
	OptionID string
}

// View é o parlay com as pernas e a odd americana efetiva da combinação
type View struct {
	Parlay        domain.Parlay
	Legs          []domain.LegWithBet
	EffectiveOdds int
}

type Service struct {
	Store   repo.Store
	Ledger  *ledger.Ledger
	Members membership.Verifier
	Events  *producer.Dispatcher
	Metrics *metrics.Wager
	Log     *zap.Logger
	Now     func() time.Time
}

func NewService(store repo.Store, l *ledger.Ledger, members membership.Verifier, ev *producer.Dispatcher, m *metrics.Wager, log *zap.Logger) *Service {
	return &Service{Store: store, Ledger: l, Members: members, Events: ev, Metrics: m, Log: log, Now: time.Now}
}

func validateLegs(legs []LegInput) error {
	if len(legs) < MinLegs || len(legs) > MaxLegs {
		return domain.Validation("a parlay needs between %d and %d legs, got %d", MinLegs, MaxLegs, len(legs))
	}
	seen := make(map[string]struct{}, len(legs))
	for i, l := range legs {
		if l.BetID == "" || l.OptionID == "" {
			return domain.Validation("leg %d: betId and optionId are required", i)
		}
		if _, dup := seen[l.BetID]; dup {
			return domain.Validation("leg %d: bet %s already used by another leg", i, l.BetID)
		}
		seen[l.BetID] = struct{}{}
	}
	return nil
}

// Place valida todas as pernas antes de qualquer escrita; a primeira falha aborta tudo
func (s *Service) Place(ctx context.Context, userID, groupID string, amount decimal.Decimal, legs []LegInput) (View, error) {
	if err := wagers.ValidateStake(amount); err != nil {
		return View{}, err
	}
	if err := validateLegs(legs); err != nil {
		return View{}, err
	}

	var (
		v     View
		batch *producer.Batch
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		batch = producer.NewBatch()

		if _, err := membership.CheckTx(ctx, tx, userID, groupID); err != nil {
			return err
		}
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}

		now := s.Now()
		p := domain.Parlay{
			ID:        uuid.NewString(),
			GroupID:   groupID,
			UserID:    userID,
			Amount:    amount,
			Result:    domain.ResultPending,
			CreatedAt: now,
		}
		odds := make([]int, 0, len(legs))
		rows := make([]domain.ParlayLeg, 0, len(legs))
		for i, in := range legs {
			bet, err := tx.GetBetForUpdate(ctx, in.BetID)
			if err != nil {
				return err
			}
			if bet.GroupID != groupID {
				return domain.Validation("leg %d: bet %s does not belong to group %s", i, bet.ID, groupID)
			}
			opt, err := tx.GetOption(ctx, in.OptionID)
			if err != nil {
				return err
			}
			if opt.BetID != bet.ID {
				return domain.Validation("leg %d: option %s does not belong to bet %s", i, opt.ID, bet.ID)
			}
			if bet.Status != domain.BetOpen {
				return domain.InvalidState("leg %d: bet %s is not open", i, bet.ID)
			}
			if bet.LockedByTime(now) {
				return domain.InvalidState("leg %d: bet %s is locked for new wagers", i, bet.ID)
			}
			if bet.CreatedByID == userID && !g.AllowCreatorWagers {
				return domain.Forbidden("leg %d: bet creators cannot wager on their own bets in this group", i)
			}

			odds = append(odds, opt.AmericanOdds)
			rows = append(rows, domain.ParlayLeg{
				ID:              uuid.NewString(),
				ParlayID:        p.ID,
				BetID:           bet.ID,
				OptionID:        opt.ID,
				OddsAtPlacement: opt.AmericanOdds,
				Position:        i,
				Result:          domain.ResultPending,
			})
		}

		combined, err := oddsmath.CombinedDecimal(odds)
		if err != nil {
			return domain.Validation("%v", err)
		}
		p.CombinedDecimalOdds = combined
		p.PotentialPayout = oddsmath.ParlayPayout(amount, combined)
		if err := oddsmath.CheckAmount(p.PotentialPayout); err != nil {
			return domain.Validation("potential payout %s: %v", p.PotentialPayout.StringFixed(2), err)
		}

		ct, err := s.Ledger.Reserve(ctx, tx, userID, groupID, amount, domain.TxParlayPlaced, domain.TxRef{ParlayID: &p.ID})
		if err != nil {
			return err
		}
		batch.Credit(ct)
		if err := tx.InsertParlay(ctx, p, rows); err != nil {
			return err
		}

		v, err = load(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return View{}, err
	}

	s.Events.Flush(ctx, batch)
	s.Metrics.ParlaysPlaced.Inc()
	s.Log.Info("parlay placed",
		zap.String("parlay_id", v.Parlay.ID),
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.Int("legs", len(v.Legs)),
		zap.String("amount", amount.StringFixed(2)),
		zap.Float64("combined_decimal_odds", v.Parlay.CombinedDecimalOdds),
		zap.String("potential_payout", v.Parlay.PotentialPayout.StringFixed(2)),
	)
	return v, nil
}

// Cancel só é aceito enquanto todas as bets das pernas estão open:
// basta uma perna travada para o parlay ficar comprometido.
func (s *Service) Cancel(ctx context.Context, userID, parlayID string) error {
	var (
		p     domain.Parlay
		batch *producer.Batch
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		batch = producer.NewBatch()

		var err error
		p, err = tx.GetParlayForUpdate(ctx, parlayID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return domain.Forbidden("only the parlay owner can cancel it")
		}
		if _, err := membership.CheckTx(ctx, tx, userID, p.GroupID); err != nil {
			return err
		}
		if p.Result != domain.ResultPending {
			return domain.InvalidState("parlay is not pending")
		}
		legs, err := tx.ListLegs(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, l := range legs {
			if l.BetStatus != domain.BetOpen {
				return domain.InvalidState("parlay leg on bet %s is %s", l.BetID, l.BetStatus)
			}
		}

		ct, err := s.Ledger.Release(ctx, tx, userID, p.GroupID, p.Amount, domain.TxParlayCancelled, domain.TxRef{ParlayID: &p.ID})
		if err != nil {
			return err
		}
		batch.Credit(ct)
		return tx.DeleteParlay(ctx, p.ID)
	})
	if err != nil {
		return err
	}

	s.Events.Flush(ctx, batch)
	s.Metrics.ParlaysCancelled.Inc()
	s.Log.Info("parlay cancelled",
		zap.String("parlay_id", p.ID),
		zap.String("user_id", userID),
		zap.String("amount", p.Amount.StringFixed(2)),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, userID, parlayID string) (View, error) {
	var v View
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		v, err = load(ctx, tx, parlayID)
		return err
	})
	if err != nil {
		return View{}, err
	}
	if _, err := s.Members.Verify(ctx, userID, v.Parlay.GroupID); err != nil {
		return View{}, err
	}
	return v, nil
}

func (s *Service) ListMine(ctx context.Context, userID, groupID string) ([]View, error) {
	if _, err := s.Members.Verify(ctx, userID, groupID); err != nil {
		return nil, err
	}
	var out []View
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		ps, err := tx.ListParlaysByUser(ctx, userID, groupID)
		if err != nil {
			return err
		}
		out = make([]View, 0, len(ps))
		for _, p := range ps {
			v, err := load(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func load(ctx context.Context, tx repo.Tx, parlayID string) (View, error) {
	p, err := tx.GetParlay(ctx, parlayID)
	if err != nil {
		return View{}, err
	}
	legs, err := tx.ListLegs(ctx, parlayID)
	if err != nil {
		return View{}, err
	}
	eff, err := oddsmath.DecimalToAmerican(p.CombinedDecimalOdds)
	if err != nil {
		return View{}, domain.Conflict("parlay %s has invalid combined odds %f", p.ID, p.CombinedDecimalOdds)
	}
	return View{Parlay: p, Legs: legs, EffectiveOdds: eff}, nil
}
