// Package wagers implementa o ciclo de vida de uma aposta simples (wager):
// pending ao ser feita, removida se o dono cancelar com a bet ainda open,
// e won/lost/push quando a bet termina (ver pacote bets).
package wagers

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
	"github.com/radieske/social-wager-platform/pkg/oddsmath"
)

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

// ValidateStake recusa valores não positivos ou com mais de 2 casas decimais
func ValidateStake(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Validation("amount must be positive")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return domain.Validation("amount must have at most 2 decimal places")
	}
	if err := oddsmath.CheckAmount(amount); err != nil {
		return domain.Validation("amount: %v", err)
	}
	return nil
}

// Place reserva o stake e grava o wager na mesma unidade de trabalho
func (s *Service) Place(ctx context.Context, userID, optionID string, amount decimal.Decimal) (domain.Wager, error) {
	if err := ValidateStake(amount); err != nil {
		return domain.Wager{}, err
	}

	var (
		w     domain.Wager
		batch *producer.Batch
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		batch = producer.NewBatch()

		opt, err := tx.GetOption(ctx, optionID)
		if err != nil {
			return err
		}
		bet, err := tx.GetBetForUpdate(ctx, opt.BetID)
		if err != nil {
			return err
		}
		if _, err := membership.CheckTx(ctx, tx, userID, bet.GroupID); err != nil {
			return err
		}

		now := s.Now()
		if bet.Status != domain.BetOpen {
			return domain.InvalidState("bet is not open")
		}
		if bet.LockedByTime(now) {
			return domain.InvalidState("bet is locked for new wagers since %s", bet.LocksAt.UTC().Format(time.RFC3339))
		}
		if _, exists, err := tx.FindWager(ctx, userID, bet.ID); err != nil {
			return err
		} else if exists {
			return domain.InvalidState("user already has a wager on this bet")
		}
		if bet.CreatedByID == userID {
			g, err := tx.GetGroup(ctx, bet.GroupID)
			if err != nil {
				return err
			}
			if !g.AllowCreatorWagers {
				return domain.Forbidden("bet creators cannot wager on their own bets in this group")
			}
		}

		payout, err := oddsmath.Payout(opt.AmericanOdds, amount)
		if err != nil {
			return domain.Validation("option %s: %v", opt.ID, err)
		}
		if err := oddsmath.CheckAmount(payout); err != nil {
			return domain.Validation("potential payout %s: %v", payout.StringFixed(2), err)
		}

		w = domain.Wager{
			ID:              uuid.NewString(),
			BetID:           bet.ID,
			OptionID:        opt.ID,
			UserID:          userID,
			GroupID:         bet.GroupID,
			Amount:          amount,
			OddsAtWager:     opt.AmericanOdds,
			PotentialPayout: payout,
			Result:          domain.ResultPending,
			CreatedAt:       now,
		}
		ct, err := s.Ledger.Reserve(ctx, tx, userID, bet.GroupID, amount, domain.TxWagerPlaced,
			domain.TxRef{WagerID: &w.ID, BetID: &w.BetID})
		if err != nil {
			return err
		}
		batch.Credit(ct)
		return tx.InsertWager(ctx, w)
	})
	if err != nil {
		return domain.Wager{}, err
	}

	s.Events.Flush(ctx, batch)
	s.Metrics.WagersPlaced.Inc()
	s.Log.Info("wager placed",
		zap.String("wager_id", w.ID),
		zap.String("bet_id", w.BetID),
		zap.String("user_id", userID),
		zap.String("amount", w.Amount.StringFixed(2)),
		zap.Int("odds", w.OddsAtWager),
		zap.String("potential_payout", w.PotentialPayout.StringFixed(2)),
	)
	return w, nil
}

// Cancel devolve o stake e apaga o wager; o histórico fica só no log de créditos
func (s *Service) Cancel(ctx context.Context, userID, wagerID string) error {
	var (
		w     domain.Wager
		batch *producer.Batch
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		batch = producer.NewBatch()

		var err error
		w, err = tx.GetWager(ctx, wagerID)
		if err != nil {
			return err
		}
		if w.UserID != userID {
			return domain.Forbidden("only the wager owner can cancel it")
		}
		if _, err := membership.CheckTx(ctx, tx, userID, w.GroupID); err != nil {
			return err
		}
		bet, err := tx.GetBetForUpdate(ctx, w.BetID)
		if err != nil {
			return err
		}
		if bet.Status != domain.BetOpen || w.Result != domain.ResultPending {
			return domain.InvalidState("bet is not open")
		}

		ct, err := s.Ledger.Release(ctx, tx, userID, w.GroupID, w.Amount, domain.TxWagerCancelled,
			domain.TxRef{WagerID: &w.ID, BetID: &w.BetID})
		if err != nil {
			return err
		}
		batch.Credit(ct)
		return tx.DeleteWager(ctx, w.ID)
	})
	if err != nil {
		return err
	}

	s.Events.Flush(ctx, batch)
	s.Metrics.WagersCancelled.Inc()
	s.Log.Info("wager cancelled",
		zap.String("wager_id", w.ID),
		zap.String("bet_id", w.BetID),
		zap.String("user_id", userID),
		zap.String("amount", w.Amount.StringFixed(2)),
	)
	return nil
}

// Get devolve o wager para qualquer membro aprovado do grupo
func (s *Service) Get(ctx context.Context, userID, wagerID string) (domain.Wager, error) {
	var w domain.Wager
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		w, err = tx.GetWager(ctx, wagerID)
		return err
	})
	if err != nil {
		return domain.Wager{}, err
	}
	if _, err := s.Members.Verify(ctx, userID, w.GroupID); err != nil {
		return domain.Wager{}, err
	}
	return w, nil
}

// ListMine lista os wagers do usuário no grupo em ordem de criação
func (s *Service) ListMine(ctx context.Context, userID, groupID string) ([]domain.Wager, error) {
	if _, err := s.Members.Verify(ctx, userID, groupID); err != nil {
		return nil, err
	}
	var out []domain.Wager
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.ListWagersByUser(ctx, userID, groupID)
		return err
	})
	return out, err
}
