// Package ledger move créditos entre os baldes available e allocated de um
// usuário num grupo. Toda operação lê o saldo com lock, grava o novo saldo e
// anexa exatamente uma transação de crédito dentro da mesma unidade de trabalho
// do chamador (repo.Tx).
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/internal/wager-service/repo"
)

// Ledger não guarda estado; Now é o relógio usado nos carimbos das transações
type Ledger struct {
	Now func() time.Time
}

func New() *Ledger { return &Ledger{Now: time.Now} }

// GetBalance retorna {0,0} quando o usuário ainda não tem ledger no grupo
func (l *Ledger) GetBalance(ctx context.Context, tx repo.Tx, userID, groupID string) (domain.Balance, error) {
	e, err := tx.GetLedgerEntryForUpdate(ctx, userID, groupID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Balance{Available: decimal.Zero, Allocated: decimal.Zero}, nil
	}
	if err != nil {
		return domain.Balance{}, err
	}
	return e.Balance(), nil
}

// Initialize cria o ledger com available = amount e registra a transação initial
func (l *Ledger) Initialize(ctx context.Context, tx repo.Tx, userID, groupID string, amount decimal.Decimal) (domain.CreditTransaction, error) {
	if amount.IsNegative() {
		return domain.CreditTransaction{}, domain.Validation("initial credits must not be negative")
	}
	_, err := tx.GetLedgerEntryForUpdate(ctx, userID, groupID)
	if err == nil {
		return domain.CreditTransaction{}, domain.Conflict("credits already initialized for user %s in group %s", userID, groupID)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.CreditTransaction{}, err
	}

	now := l.Now()
	e := domain.LedgerEntry{
		ID:               uuid.NewString(),
		UserID:           userID,
		GroupID:          groupID,
		AvailableBalance: amount,
		AllocatedBalance: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.InsertLedgerEntry(ctx, e); err != nil {
		return domain.CreditTransaction{}, err
	}
	return l.record(ctx, tx, e, domain.TxInitial, amount, domain.TxRef{Note: "initial credits"})
}

// Reserve move amount de available para allocated (wager_placed / parlay_placed)
func (l *Ledger) Reserve(ctx context.Context, tx repo.Tx, userID, groupID string, amount decimal.Decimal, typ domain.TxType, ref domain.TxRef) (domain.CreditTransaction, error) {
	if err := positive(amount); err != nil {
		return domain.CreditTransaction{}, err
	}
	e, err := l.lockForDebit(ctx, tx, userID, groupID)
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	if e.AvailableBalance.LessThan(amount) {
		return domain.CreditTransaction{}, domain.InsufficientCredits(e.AvailableBalance, amount)
	}

	e.AvailableBalance = e.AvailableBalance.Sub(amount)
	e.AllocatedBalance = e.AllocatedBalance.Add(amount)
	return l.apply(ctx, tx, e, typ, amount.Neg(), ref)
}

// Release devolve um stake ainda não liquidado (wager_cancelled / parlay_cancelled)
func (l *Ledger) Release(ctx context.Context, tx repo.Tx, userID, groupID string, amount decimal.Decimal, typ domain.TxType, ref domain.TxRef) (domain.CreditTransaction, error) {
	if err := positive(amount); err != nil {
		return domain.CreditTransaction{}, err
	}
	e, err := l.lockForDebit(ctx, tx, userID, groupID)
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	if err := consumeAllocated(&e, amount); err != nil {
		return domain.CreditTransaction{}, err
	}
	e.AvailableBalance = e.AvailableBalance.Add(amount)
	return l.apply(ctx, tx, e, typ, amount, ref)
}

// SettleWin credita o payout inteiro e consome o stake alocado.
// O valor da transação é +payout; o lucro líquido é só para exibição.
func (l *Ledger) SettleWin(ctx context.Context, tx repo.Tx, userID, groupID string, stake, payout decimal.Decimal, typ domain.TxType, ref domain.TxRef) (domain.CreditTransaction, error) {
	if err := positive(stake); err != nil {
		return domain.CreditTransaction{}, err
	}
	if payout.LessThan(stake) {
		return domain.CreditTransaction{}, domain.Validation("payout %s is lower than stake %s", payout.StringFixed(2), stake.StringFixed(2))
	}
	e, err := l.lockForDebit(ctx, tx, userID, groupID)
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	if err := consumeAllocated(&e, stake); err != nil {
		return domain.CreditTransaction{}, err
	}
	e.AvailableBalance = e.AvailableBalance.Add(payout)
	return l.apply(ctx, tx, e, typ, payout, ref)
}

// SettleLoss consome o stake alocado; available não muda
func (l *Ledger) SettleLoss(ctx context.Context, tx repo.Tx, userID, groupID string, stake decimal.Decimal, typ domain.TxType, ref domain.TxRef) (domain.CreditTransaction, error) {
	if err := positive(stake); err != nil {
		return domain.CreditTransaction{}, err
	}
	e, err := l.lockForDebit(ctx, tx, userID, groupID)
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	if err := consumeAllocated(&e, stake); err != nil {
		return domain.CreditTransaction{}, err
	}
	return l.apply(ctx, tx, e, typ, stake.Neg(), ref)
}

// SettlePush devolve o stake como Release; usado quando a aposta é cancelada
func (l *Ledger) SettlePush(ctx context.Context, tx repo.Tx, userID, groupID string, stake decimal.Decimal, typ domain.TxType, ref domain.TxRef) (domain.CreditTransaction, error) {
	return l.Release(ctx, tx, userID, groupID, stake, typ, ref)
}

// AdminAdjust soma signedAmount em available; recusa (nunca trunca) saldo negativo
func (l *Ledger) AdminAdjust(ctx context.Context, tx repo.Tx, userID, groupID string, signedAmount decimal.Decimal, note, adminID string) (domain.CreditTransaction, error) {
	if signedAmount.IsZero() {
		return domain.CreditTransaction{}, domain.Validation("adjustment amount must not be zero")
	}
	e, err := l.lockForDebit(ctx, tx, userID, groupID)
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	next := e.AvailableBalance.Add(signedAmount)
	if next.IsNegative() {
		return domain.CreditTransaction{}, domain.InvalidState(
			"adjustment of %s would reduce available credits below 0 (available %s)",
			signedAmount.StringFixed(2), e.AvailableBalance.StringFixed(2))
	}
	e.AvailableBalance = next
	admin := adminID
	return l.apply(ctx, tx, e, domain.TxAdminAdjustment, signedAmount, domain.TxRef{AdminID: &admin, Note: note})
}

// lockForDebit troca o not_found genérico por ErrNoCreditsInGroup
func (l *Ledger) lockForDebit(ctx context.Context, tx repo.Tx, userID, groupID string) (domain.LedgerEntry, error) {
	e, err := tx.GetLedgerEntryForUpdate(ctx, userID, groupID)
	if errors.Is(err, domain.ErrNotFound) {
		return e, domain.ErrNoCreditsInGroup
	}
	return e, err
}

func (l *Ledger) apply(ctx context.Context, tx repo.Tx, e domain.LedgerEntry, typ domain.TxType, amount decimal.Decimal, ref domain.TxRef) (domain.CreditTransaction, error) {
	e.UpdatedAt = l.Now()
	if err := tx.UpdateLedgerEntry(ctx, e); err != nil {
		return domain.CreditTransaction{}, err
	}
	return l.record(ctx, tx, e, typ, amount, ref)
}

func (l *Ledger) record(ctx context.Context, tx repo.Tx, e domain.LedgerEntry, typ domain.TxType, amount decimal.Decimal, ref domain.TxRef) (domain.CreditTransaction, error) {
	ct := domain.CreditTransaction{
		ID:             uuid.NewString(),
		UserID:         e.UserID,
		GroupID:        e.GroupID,
		Type:           typ,
		Amount:         amount,
		BalanceAfter:   e.AvailableBalance,
		AllocatedAfter: e.AllocatedBalance,
		Ref:            ref,
		CreatedAt:      e.UpdatedAt,
	}
	if err := tx.InsertCreditTransaction(ctx, ct); err != nil {
		return domain.CreditTransaction{}, err
	}
	return ct, nil
}

func positive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Validation("amount must be positive")
	}
	return nil
}

// consumeAllocated falha se o alocado não cobre o stake: isso indica ledger inconsistente
func consumeAllocated(e *domain.LedgerEntry, stake decimal.Decimal) error {
	if e.AllocatedBalance.LessThan(stake) {
		return domain.Conflict("allocated credits %s do not cover stake %s",
			e.AllocatedBalance.StringFixed(2), stake.StringFixed(2))
	}
	e.AllocatedBalance = e.AllocatedBalance.Sub(stake)
	return nil
}
