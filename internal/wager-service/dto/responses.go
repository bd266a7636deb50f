package dto

import (
	"time"

	"github.com/radieske/social-wager-platform/internal/wager-service/bets"
	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/internal/wager-service/parlays"
	"github.com/radieske/social-wager-platform/pkg/oddsmath"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type OptionResponse struct {
	ID                 string  `json:"id"`
	Label              string  `json:"label"`
	AmericanOdds       int     `json:"americanOdds"`
	DecimalOdds        float64 `json:"decimalOdds"`
	ImpliedProbability float64 `json:"impliedProbability"`
}

type BetResponse struct {
	ID              string           `json:"id"`
	GroupID         string           `json:"groupId"`
	CreatedByID     string           `json:"createdById"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Status          string           `json:"status"`
	LocksAt         *time.Time       `json:"locksAt,omitempty"`
	WinningOptionID *string          `json:"winningOptionId,omitempty"`
	SettledAt       *time.Time       `json:"settledAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	Options         []OptionResponse `json:"options,omitempty"`
	WagerCount      int              `json:"wagerCount"`
}

type SettleBetResponse struct {
	Bet         BetResponse `json:"bet"`
	WagersWon   int         `json:"wagersWon"`
	WagersLost  int         `json:"wagersLost"`
	ParlaysWon  int         `json:"parlaysWon"`
	ParlaysLost int         `json:"parlaysLost"`
}

type CancelBetResponse struct {
	Bet           BetResponse `json:"bet"`
	WagersPushed  int         `json:"wagersPushed"`
	ParlaysVoided int         `json:"parlaysVoided"`
}

type WagerResponse struct {
	ID              string     `json:"id"`
	BetID           string     `json:"betId"`
	OptionID        string     `json:"optionId"`
	UserID          string     `json:"userId"`
	GroupID         string     `json:"groupId"`
	Amount          string     `json:"amount"`
	OddsAtWager     int        `json:"oddsAtWager"`
	PotentialPayout string     `json:"potentialPayout"`
	PotentialProfit string     `json:"potentialProfit"`
	Result          string     `json:"result"`
	CreatedAt       time.Time  `json:"createdAt"`
	SettledAt       *time.Time `json:"settledAt,omitempty"`
}

type LegResponse struct {
	ID              string `json:"id"`
	BetID           string `json:"betId"`
	OptionID        string `json:"optionId"`
	OddsAtPlacement int    `json:"oddsAtPlacement"`
	Result          string `json:"result"`
	BetStatus       string `json:"betStatus"`
}

type ParlayResponse struct {
	ID                    string        `json:"id"`
	GroupID               string        `json:"groupId"`
	UserID                string        `json:"userId"`
	Amount                string        `json:"amount"`
	CombinedDecimalOdds   float64       `json:"combinedDecimalOdds"`
	EffectiveAmericanOdds int           `json:"effectiveAmericanOdds"`
	PotentialPayout       string        `json:"potentialPayout"`
	Result                string        `json:"result"`
	CreatedAt             time.Time     `json:"createdAt"`
	SettledAt             *time.Time    `json:"settledAt,omitempty"`
	Legs                  []LegResponse `json:"legs"`
}

type BalanceResponse struct {
	UserID    string `json:"userId"`
	GroupID   string `json:"groupId"`
	Available string `json:"available"`
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
}

type TransactionResponse struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Amount         string    `json:"amount"`
	BalanceAfter   string    `json:"balanceAfter"`
	AllocatedAfter string    `json:"allocatedAfter"`
	WagerID        *string   `json:"wagerId,omitempty"`
	BetID          *string   `json:"betId,omitempty"`
	ParlayID       *string   `json:"parlayId,omitempty"`
	AdminID        *string   `json:"adminId,omitempty"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ReconcileResponse struct {
	UserID       string `json:"userId"`
	GroupID      string `json:"groupId"`
	Transactions int    `json:"transactions"`
	Available    string `json:"available"`
	Allocated    string `json:"allocated"`
}

func FromBetView(v bets.View) BetResponse {
	r := FromBet(v.Bet)
	r.WagerCount = v.WagerCount
	r.Options = make([]OptionResponse, 0, len(v.Options))
	for _, o := range v.Options {
		dec, _ := oddsmath.AmericanToDecimal(o.AmericanOdds)
		prob, _ := oddsmath.ImpliedProbability(o.AmericanOdds)
		r.Options = append(r.Options, OptionResponse{
			ID:                 o.ID,
			Label:              o.Label,
			AmericanOdds:       o.AmericanOdds,
			DecimalOdds:        dec,
			ImpliedProbability: prob,
		})
	}
	return r
}

func FromBet(b domain.Bet) BetResponse {
	return BetResponse{
		ID:              b.ID,
		GroupID:         b.GroupID,
		CreatedByID:     b.CreatedByID,
		Title:           b.Title,
		Description:     b.Description,
		Status:          string(b.Status),
		LocksAt:         b.LocksAt,
		WinningOptionID: b.WinningOptionID,
		SettledAt:       b.SettledAt,
		CreatedAt:       b.CreatedAt,
	}
}

func FromSettle(r bets.SettleResult) SettleBetResponse {
	return SettleBetResponse{
		Bet:         FromBet(r.Bet),
		WagersWon:   r.WagersWon,
		WagersLost:  r.WagersLost,
		ParlaysWon:  r.Parlays.Won,
		ParlaysLost: r.Parlays.Lost,
	}
}

func FromCancel(r bets.CancelResult) CancelBetResponse {
	return CancelBetResponse{Bet: FromBet(r.Bet), WagersPushed: r.WagersPushed, ParlaysVoided: r.Parlays.Voided}
}

// FromWager calcula o lucro potencial só para exibição (payout - stake)
func FromWager(w domain.Wager) WagerResponse {
	return WagerResponse{
		ID:              w.ID,
		BetID:           w.BetID,
		OptionID:        w.OptionID,
		UserID:          w.UserID,
		GroupID:         w.GroupID,
		Amount:          w.Amount.StringFixed(2),
		OddsAtWager:     w.OddsAtWager,
		PotentialPayout: w.PotentialPayout.StringFixed(2),
		PotentialProfit: w.PotentialPayout.Sub(w.Amount).StringFixed(2),
		Result:          string(w.Result),
		CreatedAt:       w.CreatedAt,
		SettledAt:       w.SettledAt,
	}
}

func FromWagers(ws []domain.Wager) []WagerResponse {
	out := make([]WagerResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, FromWager(w))
	}
	return out
}

func FromParlay(v parlays.View) ParlayResponse {
	p := v.Parlay
	r := ParlayResponse{
		ID:                    p.ID,
		GroupID:               p.GroupID,
		UserID:                p.UserID,
		Amount:                p.Amount.StringFixed(2),
		CombinedDecimalOdds:   p.CombinedDecimalOdds,
		EffectiveAmericanOdds: v.EffectiveOdds,
		PotentialPayout:       p.PotentialPayout.StringFixed(2),
		Result:                string(p.Result),
		CreatedAt:             p.CreatedAt,
		SettledAt:             p.SettledAt,
		Legs:                  make([]LegResponse, 0, len(v.Legs)),
	}
	for _, l := range v.Legs {
		r.Legs = append(r.Legs, LegResponse{
			ID:              l.ID,
			BetID:           l.BetID,
			OptionID:        l.OptionID,
			OddsAtPlacement: l.OddsAtPlacement,
			Result:          string(l.Result),
			BetStatus:       string(l.BetStatus),
		})
	}
	return r
}

func FromParlays(vs []parlays.View) []ParlayResponse {
	out := make([]ParlayResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, FromParlay(v))
	}
	return out
}

func FromBalance(userID, groupID string, b domain.Balance) BalanceResponse {
	return BalanceResponse{
		UserID:    userID,
		GroupID:   groupID,
		Available: b.Available.StringFixed(2),
		Allocated: b.Allocated.StringFixed(2),
		Total:     b.Total().StringFixed(2),
	}
}

func FromTransaction(ct domain.CreditTransaction) TransactionResponse {
	return TransactionResponse{
		ID:             ct.ID,
		Type:           string(ct.Type),
		Amount:         ct.Amount.StringFixed(2),
		BalanceAfter:   ct.BalanceAfter.StringFixed(2),
		AllocatedAfter: ct.AllocatedAfter.StringFixed(2),
		WagerID:        ct.Ref.WagerID,
		BetID:          ct.Ref.BetID,
		ParlayID:       ct.Ref.ParlayID,
		AdminID:        ct.Ref.AdminID,
		Note:           ct.Ref.Note,
		CreatedAt:      ct.CreatedAt,
	}
}

func FromTransactions(txs []domain.CreditTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, ct := range txs {
		out = append(out, FromTransaction(ct))
	}
	return out
}
