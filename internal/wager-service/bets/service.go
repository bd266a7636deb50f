// Package bets cuida do ciclo de vida de uma bet:
// open → locked → settled | cancelled (settled e cancelled são terminais).
// Settle e Cancel gravam status, todos os wagers e a cascata de parlays numa
// única unidade de trabalho: ou tudo é aplicado, ou nada.
package bets

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/shared/metrics"
	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/internal/wager-service/ledger"
	"github.com/radieske/social-wager-platform/internal/wager-service/membership"
	"github.com/radieske/social-wager-platform/internal/wager-service/parlays"
	"github.com/radieske/social-wager-platform/internal/wager-service/producer"
	"github.com/radieske/social-wager-platform/internal/wager-service/repo"
	"github.com/radieske/social-wager-platform/pkg/contracts/events"
	"github.com/radieske/social-wager-platform/pkg/oddsmath"
)

const (
	MinOptions = 2
	MaxOptions = 10
)

type OptionInput struct {
	Label        string
	AmericanOdds int
}

type CreateInput struct {
	Title       string
	Description string
	LocksAt     *time.Time
	Options     []OptionInput
}

// View é a bet com opções em ordem e o total de wagers
type View struct {
	Bet        domain.Bet
	Options    []domain.Option
	WagerCount int
}

type SettleResult struct {
	Bet        domain.Bet
	WagersWon  int
	WagersLost int
	Parlays    parlays.Outcome
}

type CancelResult struct {
	Bet          domain.Bet
	WagersPushed int
	Parlays      parlays.Outcome
}

type Service struct {
	Store   repo.Store
	Ledger  *ledger.Ledger
	Cascade *parlays.Resolver
	Members membership.Verifier
	Events  *producer.Dispatcher
	Metrics *metrics.Wager
	Log     *zap.Logger
	Now     func() time.Time
}

func NewService(store repo.Store, l *ledger.Ledger, cascade *parlays.Resolver, members membership.Verifier, ev *producer.Dispatcher, m *metrics.Wager, log *zap.Logger) *Service {
	return &Service{Store: store, Ledger: l, Cascade: cascade, Members: members, Events: ev, Metrics: m, Log: log, Now: time.Now}
}

func validateCreate(in CreateInput, now time.Time) error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Validation("title is required")
	}
	if len(in.Options) < MinOptions || len(in.Options) > MaxOptions {
		return domain.Validation("a bet needs between %d and %d options, got %d", MinOptions, MaxOptions, len(in.Options))
	}
	if in.LocksAt != nil && !in.LocksAt.After(now) {
		return domain.Validation("locksAt must be in the future")
	}
	seen := make(map[string]struct{}, len(in.Options))
	for i, o := range in.Options {
		label := strings.TrimSpace(o.Label)
		if label == "" {
			return domain.Validation("option %d: label is required", i)
		}
		k := strings.ToLower(label)
		if _, dup := seen[k]; dup {
			return domain.Validation("option %d: duplicate label %q", i, label)
		}
		seen[k] = struct{}{}
		if !oddsmath.Valid(o.AmericanOdds) {
			return domain.Validation("option %d: invalid American odds %d (magnitude must be between %d and %d)",
				i, o.AmericanOdds, oddsmath.MinMagnitude, oddsmath.MaxMagnitude)
		}
	}
	return nil
}

// Create abre uma bet no grupo; qualquer membro aprovado pode criar
func (s *Service) Create(ctx context.Context, actorID, groupID string, in CreateInput) (View, error) {
	now := s.Now()
	if err := validateCreate(in, now); err != nil {
		return View{}, err
	}

	b := domain.Bet{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		CreatedByID: actorID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      domain.BetOpen,
		LocksAt:     in.LocksAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	opts := make([]domain.Option, len(in.Options))
	for i, o := range in.Options {
		opts[i] = domain.Option{
			ID:           uuid.NewString(),
			BetID:        b.ID,
			Label:        strings.TrimSpace(o.Label),
			AmericanOdds: o.AmericanOdds,
			Position:     i,
		}
	}

	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		if _, err := membership.CheckTx(ctx, tx, actorID, groupID); err != nil {
			return err
		}
		if _, err := tx.GetGroup(ctx, groupID); err != nil {
			return err
		}
		return tx.InsertBet(ctx, b, opts)
	})
	if err != nil {
		return View{}, err
	}

	s.Metrics.BetsCreated.Inc()
	s.Log.Info("bet created",
		zap.String("bet_id", b.ID),
		zap.String("group_id", groupID),
		zap.String("created_by", actorID),
		zap.Int("options", len(opts)),
	)
	return View{Bet: b, Options: opts}, nil
}

// Lock só bloqueia novos wagers e cancelamentos; não mexe em créditos
func (s *Service) Lock(ctx context.Context, actorID, betID string) (domain.Bet, error) {
	var b domain.Bet
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		b, err = s.authorize(ctx, tx, actorID, betID)
		if err != nil {
			return err
		}
		if b.Status != domain.BetOpen {
			return domain.InvalidState("bet is not open")
		}
		b.Status = domain.BetLocked
		b.UpdatedAt = s.Now()
		return tx.UpdateBet(ctx, b)
	})
	if err != nil {
		return domain.Bet{}, err
	}

	s.Log.Info("bet locked", zap.String("bet_id", b.ID), zap.String("actor", actorID))
	return b, nil
}

// Settle aceita bet open ou locked. Repetir o settle de uma bet já liquidada
// falha com invalid_state sem tocar no ledger.
func (s *Service) Settle(ctx context.Context, actorID, betID, winningOptionID string) (SettleResult, error) {
	var (
		res   SettleResult
		batch *producer.Batch
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		res = SettleResult{}
		batch = producer.NewBatch()

		b, err := s.authorize(ctx, tx, actorID, betID)
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return domain.InvalidState("bet is not open")
		}
		opts, err := tx.ListOptions(ctx, b.ID)
		if err != nil {
			return err
		}
		if !hasOption(opts, winningOptionID) {
			return domain.Validation("option %s does not belong to bet %s", winningOptionID, b.ID)
		}

		now := s.Now()
		win := winningOptionID
		b.Status = domain.BetSettled
		b.WinningOptionID = &win
		b.SettledAt = &now
		b.UpdatedAt = now
		if err := tx.UpdateBet(ctx, b); err != nil {
			return err
		}

		ws, err := tx.ListWagersByBet(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, w := range ws {
			if w.Result != domain.ResultPending {
				continue
			}
			ref := domain.TxRef{WagerID: &w.ID, BetID: &w.BetID}
			var ct domain.CreditTransaction
			result := domain.ResultLost
			if w.OptionID == winningOptionID {
				result = domain.ResultWon
				ct, err = s.Ledger.SettleWin(ctx, tx, w.UserID, w.GroupID, w.Amount, w.PotentialPayout, domain.TxWagerWon, ref)
				res.WagersWon++
			} else {
				ct, err = s.Ledger.SettleLoss(ctx, tx, w.UserID, w.GroupID, w.Amount, domain.TxWagerLost, ref)
				res.WagersLost++
			}
			if err != nil {
				return err
			}
			if err := tx.UpdateWagerResult(ctx, w.ID, result, now); err != nil {
				return err
			}
			batch.Credit(ct)
		}

		res.Parlays, err = s.Cascade.ResolveBet(ctx, tx, b.ID, winningOptionID, batch)
		if err != nil {
			return err
		}
		res.Bet = b

		batch.BetSettled(events.BetSettled{
			BetID:           b.ID,
			GroupID:         b.GroupID,
			WinningOptionID: winningOptionID,
			SettledBy:       actorID,
			WagersWon:       res.WagersWon,
			WagersLost:      res.WagersLost,
			ParlaysWon:      res.Parlays.Won,
			ParlaysLost:     res.Parlays.Lost,
			Ts:              now,
		})
		return nil
	})
	if err != nil {
		return SettleResult{}, err
	}

	s.Events.Flush(ctx, batch)
	s.Metrics.BetsSettled.Inc()
	s.countParlays(res.Parlays)
	s.Log.Info("bet settled",
		zap.String("bet_id", betID),
		zap.String("winning_option_id", winningOptionID),
		zap.String("actor", actorID),
		zap.Int("wagers_won", res.WagersWon),
		zap.Int("wagers_lost", res.WagersLost),
		zap.Int("parlays_won", res.Parlays.Won),
		zap.Int("parlays_lost", res.Parlays.Lost),
	)
	return res, nil
}

// Cancel devolve todos os stakes (push) e anula os parlays pendentes que dependem da bet
func (s *Service) Cancel(ctx context.Context, actorID, betID string) (CancelResult, error) {
	var (
		res   CancelResult
		batch *producer.Batch
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		res = CancelResult{}
		batch = producer.NewBatch()

		b, err := s.authorize(ctx, tx, actorID, betID)
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return domain.InvalidState("bet is not open")
		}

		now := s.Now()
		b.Status = domain.BetCancelled
		b.UpdatedAt = now
		if err := tx.UpdateBet(ctx, b); err != nil {
			return err
		}

		ws, err := tx.ListWagersByBet(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, w := range ws {
			if w.Result != domain.ResultPending {
				continue
			}
			ct, err := s.Ledger.SettlePush(ctx, tx, w.UserID, w.GroupID, w.Amount, domain.TxBetCancelled,
				domain.TxRef{WagerID: &w.ID, BetID: &w.BetID})
			if err != nil {
				return err
			}
			if err := tx.UpdateWagerResult(ctx, w.ID, domain.ResultPush, now); err != nil {
				return err
			}
			batch.Credit(ct)
			res.WagersPushed++
		}

		res.Parlays, err = s.Cascade.VoidBet(ctx, tx, b.ID, batch)
		if err != nil {
			return err
		}
		res.Bet = b

		batch.BetCancelled(events.BetCancelled{
			BetID:         b.ID,
			GroupID:       b.GroupID,
			CancelledBy:   actorID,
			WagersPushed:  res.WagersPushed,
			ParlaysVoided: res.Parlays.Voided,
			Ts:            now,
		})
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}

	s.Events.Flush(ctx, batch)
	s.Metrics.BetsCancelled.Inc()
	s.countParlays(res.Parlays)
	s.Log.Info("bet cancelled",
		zap.String("bet_id", betID),
		zap.String("actor", actorID),
		zap.Int("wagers_pushed", res.WagersPushed),
		zap.Int("parlays_voided", res.Parlays.Voided),
	)
	return res, nil
}

// Delete remove a linha da bet; só o criador, com a bet open e sem wagers nem pernas de parlay
func (s *Service) Delete(ctx context.Context, actorID, betID string) error {
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		b, err := tx.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		if _, err := membership.CheckTx(ctx, tx, actorID, b.GroupID); err != nil {
			return err
		}
		if b.CreatedByID != actorID {
			return domain.Forbidden("only the bet creator can delete it")
		}
		if b.Status != domain.BetOpen {
			return domain.InvalidState("bet is not open")
		}
		n, err := tx.CountWagersByBet(ctx, b.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.InvalidState("bet has %d wagers", n)
		}
		legs, err := tx.CountLegsByBet(ctx, b.ID)
		if err != nil {
			return err
		}
		if legs > 0 {
			return domain.InvalidState("bet is used by %d parlay legs", legs)
		}
		return tx.DeleteBet(ctx, b.ID)
	})
	if err != nil {
		return err
	}

	s.Log.Info("bet deleted", zap.String("bet_id", betID), zap.String("actor", actorID))
	return nil
}

func (s *Service) Get(ctx context.Context, userID, betID string) (View, error) {
	var v View
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		if v.Bet, err = tx.GetBet(ctx, betID); err != nil {
			return err
		}
		if v.Options, err = tx.ListOptions(ctx, betID); err != nil {
			return err
		}
		v.WagerCount, err = tx.CountWagersByBet(ctx, betID)
		return err
	})
	if err != nil {
		return View{}, err
	}
	if _, err := s.Members.Verify(ctx, userID, v.Bet.GroupID); err != nil {
		return View{}, err
	}
	return v, nil
}

// authorize trava a bet e exige criador ou admin aprovado do grupo
func (s *Service) authorize(ctx context.Context, tx repo.Tx, actorID, betID string) (domain.Bet, error) {
	b, err := tx.GetBetForUpdate(ctx, betID)
	if err != nil {
		return b, err
	}
	ms, err := membership.CheckTx(ctx, tx, actorID, b.GroupID)
	if err != nil {
		return b, err
	}
	return b, membership.RequireAdminOrCreator(ms, b)
}

func (s *Service) countParlays(o parlays.Outcome) {
	s.Metrics.ParlaysResolved.WithLabelValues(string(domain.ResultWon)).Add(float64(o.Won))
	s.Metrics.ParlaysResolved.WithLabelValues(string(domain.ResultLost)).Add(float64(o.Lost))
	s.Metrics.ParlaysResolved.WithLabelValues(string(domain.ResultPush)).Add(float64(o.Voided))
}

func hasOption(opts []domain.Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}
