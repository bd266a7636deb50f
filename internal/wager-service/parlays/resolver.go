package parlays

import (
	"context"
	"time"

	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/internal/wager-service/ledger"
	"github.com/radieske/social-wager-platform/internal/wager-service/producer"
	"github.com/radieske/social-wager-platform/internal/wager-service/repo"
	"github.com/radieske/social-wager-platform/pkg/contracts/events"
)

// Outcome resume o que a cascata fez com os parlays de uma bet
type Outcome struct {
	Won    int
	Lost   int
	Voided int
}

// Resolver propaga o resultado de uma bet para as pernas de parlay que apontam
// para ela. Roda sempre dentro da unidade de trabalho de bets.Settle/Cancel,
// depois que o status da bet já foi gravado.
type Resolver struct {
	Ledger *ledger.Ledger
	Now    func() time.Time
}

func NewResolver(l *ledger.Ledger) *Resolver { return &Resolver{Ledger: l, Now: time.Now} }

// ResolveBet marca a perna como won/lost. Uma perna perdida decide o parlay na
// hora; uma perna ganha só paga quando todas as pernas estão settled e won.
// Parlays fora de pending são ignorados, então rodar duas vezes não movimenta o ledger.
func (r *Resolver) ResolveBet(ctx context.Context, tx repo.Tx, betID, winningOptionID string, batch *producer.Batch) (Outcome, error) {
	var out Outcome
	ids, err := tx.ListPendingParlayIDsByBet(ctx, betID)
	if err != nil {
		return out, err
	}

	for _, id := range ids {
		p, err := tx.GetParlayForUpdate(ctx, id)
		if err != nil {
			return out, err
		}
		if p.Result != domain.ResultPending {
			continue
		}
		legs, err := tx.ListLegs(ctx, p.ID)
		if err != nil {
			return out, err
		}

		result := domain.ResultPending
		for i := range legs {
			if legs[i].BetID != betID {
				continue
			}
			result = domain.ResultLost
			if legs[i].OptionID == winningOptionID {
				result = domain.ResultWon
			}
			if err := tx.UpdateLegResult(ctx, legs[i].ID, result); err != nil {
				return out, err
			}
			legs[i].Result = result
		}

		switch result {
		case domain.ResultLost:
			if err := r.settle(ctx, tx, p, domain.ResultLost, betID, batch); err != nil {
				return out, err
			}
			out.Lost++
		case domain.ResultWon:
			if !allWon(legs) {
				continue
			}
			if err := r.settle(ctx, tx, p, domain.ResultWon, betID, batch); err != nil {
				return out, err
			}
			out.Won++
		}
	}
	return out, nil
}

// VoidBet anula os parlays pendentes que têm perna numa bet cancelada:
// perna e parlay viram push e o stake volta para available.
func (r *Resolver) VoidBet(ctx context.Context, tx repo.Tx, betID string, batch *producer.Batch) (Outcome, error) {
	var out Outcome
	ids, err := tx.ListPendingParlayIDsByBet(ctx, betID)
	if err != nil {
		return out, err
	}

	for _, id := range ids {
		p, err := tx.GetParlayForUpdate(ctx, id)
		if err != nil {
			return out, err
		}
		if p.Result != domain.ResultPending {
			continue
		}
		legs, err := tx.ListLegs(ctx, p.ID)
		if err != nil {
			return out, err
		}
		for _, l := range legs {
			if l.BetID == betID {
				if err := tx.UpdateLegResult(ctx, l.ID, domain.ResultPush); err != nil {
					return out, err
				}
			}
		}
		if err := r.settle(ctx, tx, p, domain.ResultPush, betID, batch); err != nil {
			return out, err
		}
		out.Voided++
	}
	return out, nil
}

func (r *Resolver) settle(ctx context.Context, tx repo.Tx, p domain.Parlay, result domain.Result, betID string, batch *producer.Batch) error {
	ref := domain.TxRef{ParlayID: &p.ID, BetID: &betID}

	var (
		ct  domain.CreditTransaction
		err error
	)
	ev := events.ParlayResolved{
		ParlayID: p.ID,
		GroupID:  p.GroupID,
		UserID:   p.UserID,
		Result:   string(result),
		Amount:   p.Amount.StringFixed(2),
	}
	switch result {
	case domain.ResultWon:
		ref.Note = "all legs won"
		ct, err = r.Ledger.SettleWin(ctx, tx, p.UserID, p.GroupID, p.Amount, p.PotentialPayout, domain.TxParlayWon, ref)
		ev.Payout = p.PotentialPayout.StringFixed(2)
	case domain.ResultLost:
		ref.Note = "leg lost on bet " + betID + ", potential payout " + p.PotentialPayout.StringFixed(2)
		ct, err = r.Ledger.SettleLoss(ctx, tx, p.UserID, p.GroupID, p.Amount, domain.TxParlayLost, ref)
	default:
		ref.Note = "bet cancelled"
		ct, err = r.Ledger.SettlePush(ctx, tx, p.UserID, p.GroupID, p.Amount, domain.TxParlayCancelled, ref)
		ev.Payout = p.Amount.StringFixed(2)
	}
	if err != nil {
		return err
	}

	now := r.Now()
	if err := tx.UpdateParlayResult(ctx, p.ID, result, now); err != nil {
		return err
	}
	ev.Ts = now
	batch.Credit(ct)
	batch.ParlayResolved(ev)
	return nil
}

// allWon exige todas as pernas won com a bet settled
func allWon(legs []domain.LegWithBet) bool {
	for _, l := range legs {
		if l.Result != domain.ResultWon || l.BetStatus != domain.BetSettled {
			return false
		}
	}
	return true
}
