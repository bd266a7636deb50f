// Package credits expõe o ledger para fora: semeia os créditos iniciais de um
// membro, aplica ajustes de admin, consulta saldo e histórico e confere o
// histórico contra o saldo gravado.
package credits

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/internal/wager-service/ledger"
	"github.com/radieske/social-wager-platform/internal/wager-service/membership"
	"github.com/radieske/social-wager-platform/internal/wager-service/producer"
	"github.com/radieske/social-wager-platform/internal/wager-service/repo"
)

type Service struct {
	Store   repo.Store
	Ledger  *ledger.Ledger
	Members membership.Verifier
	Events  *producer.Dispatcher
	Log     *zap.Logger
}

func NewService(store repo.Store, l *ledger.Ledger, members membership.Verifier, ev *producer.Dispatcher, log *zap.Logger) *Service {
	return &Service{Store: store, Ledger: l, Members: members, Events: ev, Log: log}
}

// Report é o resultado de uma reconciliação bem sucedida
type Report struct {
	Transactions int
	Balance      domain.Balance
}

// Seed cria o ledger do membro com os defaultCredits do grupo
func (s *Service) Seed(ctx context.Context, userID, groupID string) (domain.CreditTransaction, error) {
	var (
		ct    domain.CreditTransaction
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
		ct, err = s.Ledger.Initialize(ctx, tx, userID, groupID, g.DefaultCredits)
		if err != nil {
			return err
		}
		batch.Credit(ct)
		return nil
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}

	s.Events.Flush(ctx, batch)
	s.Log.Info("credits seeded",
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.String("amount", ct.Amount.StringFixed(2)),
	)
	return ct, nil
}

// Adjust soma (ou subtrai) créditos do disponível de um membro; só admin
func (s *Service) Adjust(ctx context.Context, adminID, userID, groupID string, signedAmount decimal.Decimal, note string) (domain.CreditTransaction, error) {
	if !signedAmount.Equal(signedAmount.Truncate(2)) {
		return domain.CreditTransaction{}, domain.Validation("amount must have at most 2 decimal places")
	}

	var (
		ct    domain.CreditTransaction
		batch *producer.Batch
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		batch = producer.NewBatch()
		ms, err := membership.CheckTx(ctx, tx, adminID, groupID)
		if err != nil {
			return err
		}
		if err := membership.RequireAdmin(ms); err != nil {
			return err
		}
		if _, err := tx.GetMembership(ctx, userID, groupID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFound("user %s is not a member of group %s", userID, groupID)
			}
			return err
		}
		ct, err = s.Ledger.AdminAdjust(ctx, tx, userID, groupID, signedAmount, note, adminID)
		if err != nil {
			return err
		}
		batch.Credit(ct)
		return nil
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}

	s.Events.Flush(ctx, batch)
	s.Log.Info("credits adjusted",
		zap.String("admin_id", adminID),
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.String("amount", signedAmount.StringFixed(2)),
		zap.String("balance_after", ct.BalanceAfter.StringFixed(2)),
	)
	return ct, nil
}

func (s *Service) Balance(ctx context.Context, userID, groupID string) (domain.Balance, error) {
	if _, err := s.Members.Verify(ctx, userID, groupID); err != nil {
		return domain.Balance{}, err
	}
	var b domain.Balance
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		b, err = s.Ledger.GetBalance(ctx, tx, userID, groupID)
		return err
	})
	return b, err
}

// History devolve as transações de crédito em ordem de gravação
func (s *Service) History(ctx context.Context, userID, groupID string) ([]domain.CreditTransaction, error) {
	if _, err := s.Members.Verify(ctx, userID, groupID); err != nil {
		return nil, err
	}
	var out []domain.CreditTransaction
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.ListCreditTransactions(ctx, userID, groupID)
		return err
	})
	return out, err
}

// Reconcile refaz o histórico do usuário e compara com o ledger gravado.
// O próprio usuário ou um admin do grupo podem pedir.
func (s *Service) Reconcile(ctx context.Context, actorID, userID, groupID string) (Report, error) {
	var rep Report
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		ms, err := membership.CheckTx(ctx, tx, actorID, groupID)
		if err != nil {
			return err
		}
		if actorID != userID {
			if err := membership.RequireAdmin(ms); err != nil {
				return err
			}
		}

		txs, err := tx.ListCreditTransactions(ctx, userID, groupID)
		if err != nil {
			return err
		}
		entry, err := tx.GetLedgerEntryForUpdate(ctx, userID, groupID)
		if errors.Is(err, domain.ErrNotFound) {
			if len(txs) > 0 {
				return domain.Conflict("user %s has %d credit transactions but no ledger entry", userID, len(txs))
			}
			rep = Report{Balance: domain.Balance{Available: decimal.Zero, Allocated: decimal.Zero}}
			return nil
		}
		if err != nil {
			return err
		}

		rep.Balance, err = Replay(txs, entry)
		rep.Transactions = len(txs)
		return err
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindConflict {
			s.Log.Error("ledger reconciliation failed",
				zap.String("user_id", userID), zap.String("group_id", groupID), zap.Error(err))
		}
		return Report{}, err
	}
	return rep, nil
}

// Replay confere a cadeia de balanceAfter e o último snapshot contra o ledger.
// O primeiro registro tem que ser o initial.
func Replay(txs []domain.CreditTransaction, entry domain.LedgerEntry) (domain.Balance, error) {
	if len(txs) == 0 {
		return domain.Balance{}, domain.Conflict("ledger entry %s has no credit transactions", entry.ID)
	}
	if txs[0].Type != domain.TxInitial {
		return domain.Balance{}, domain.Conflict("first credit transaction %s is %s, want %s", txs[0].ID, txs[0].Type, domain.TxInitial)
	}

	available := decimal.Zero
	for _, ct := range txs {
		available = available.Add(ct.Type.AvailableDelta(ct.Amount))
		if !available.Equal(ct.BalanceAfter) {
			return domain.Balance{}, domain.Conflict("credit transaction %s (%s): balanceAfter %s, replay gives %s",
				ct.ID, ct.Type, ct.BalanceAfter.StringFixed(2), available.StringFixed(2))
		}
		if ct.AllocatedAfter.IsNegative() {
			return domain.Balance{}, domain.Conflict("credit transaction %s has negative allocated %s", ct.ID, ct.AllocatedAfter.StringFixed(2))
		}
	}

	last := txs[len(txs)-1]
	if !last.BalanceAfter.Equal(entry.AvailableBalance) || !last.AllocatedAfter.Equal(entry.AllocatedBalance) {
		return domain.Balance{}, domain.Conflict("ledger entry (%s/%s) differs from last transaction %s (%s/%s)",
			entry.AvailableBalance.StringFixed(2), entry.AllocatedBalance.StringFixed(2), last.ID,
			last.BalanceAfter.StringFixed(2), last.AllocatedAfter.StringFixed(2))
	}
	return entry.Balance(), nil
}
