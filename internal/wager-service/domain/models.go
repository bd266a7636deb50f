package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BetStatus string

const (
	BetOpen      BetStatus = "open"
	BetLocked    BetStatus = "locked"
	BetSettled   BetStatus = "settled"
	BetCancelled BetStatus = "cancelled"
)

// Terminal indica settled ou cancelled: nenhuma transição sai deles
func (s BetStatus) Terminal() bool { return s == BetSettled || s == BetCancelled }

type Result string

const (
	ResultPending Result = "pending"
	ResultWon     Result = "won"
	ResultLost    Result = "lost"
	ResultPush    Result = "push"
)

type TxType string

const (
	TxInitial         TxType = "initial"
	TxAdminAdjustment TxType = "admin_adjustment"
	TxWagerPlaced     TxType = "wager_placed"
	TxWagerCancelled  TxType = "wager_cancelled"
	TxWagerWon        TxType = "wager_won"
	TxWagerLost       TxType = "wager_lost"
	TxBetCancelled    TxType = "bet_cancelled"
	TxParlayPlaced    TxType = "parlay_placed"
	TxParlayCancelled TxType = "parlay_cancelled"
	TxParlayWon       TxType = "parlay_won"
	TxParlayLost      TxType = "parlay_lost"
)

// AvailableDelta é quanto a transação moveu o saldo disponível.
// Perdas só consomem o alocado, o resto move exatamente Amount.
func (t TxType) AvailableDelta(amount decimal.Decimal) decimal.Decimal {
	if t == TxWagerLost || t == TxParlayLost {
		return decimal.Zero
	}
	return amount
}

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipApproved MembershipStatus = "approved"
	MembershipRejected MembershipStatus = "rejected"
)

type Membership struct {
	UserID  string           `json:"userId"`
	GroupID string           `json:"groupId"`
	Role    Role             `json:"role"`
	Status  MembershipStatus `json:"status"`
}

func (m Membership) Approved() bool { return m.Status == MembershipApproved }
func (m Membership) IsAdmin() bool  { return m.Approved() && m.Role == RoleAdmin }

type Group struct {
	ID                 string
	Name               string
	DefaultCredits     decimal.Decimal
	AllowCreatorWagers bool
}

// Balance é a visão pública do ledger de um usuário num grupo
type Balance struct {
	Available decimal.Decimal `json:"available"`
	Allocated decimal.Decimal `json:"allocated"`
}

func (b Balance) Total() decimal.Decimal { return b.Available.Add(b.Allocated) }

type LedgerEntry struct {
	ID               string
	UserID           string
	GroupID          string
	AvailableBalance decimal.Decimal
	AllocatedBalance decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (e LedgerEntry) Balance() Balance {
	return Balance{Available: e.AvailableBalance, Allocated: e.AllocatedBalance}
}

// TxRef aponta o objeto que causou a transação de crédito
type TxRef struct {
	WagerID  *string
	BetID    *string
	ParlayID *string
	AdminID  *string
	Note     string
}

type CreditTransaction struct {
	ID             string
	UserID         string
	GroupID        string
	Type           TxType
	Amount         decimal.Decimal
	BalanceAfter   decimal.Decimal
	AllocatedAfter decimal.Decimal
	Ref            TxRef
	CreatedAt      time.Time
}

type Bet struct {
	ID              string
	GroupID         string
	CreatedByID     string
	Title           string
	Description     string
	Status          BetStatus
	LocksAt         *time.Time
	WinningOptionID *string
	SettledAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LockedByTime compara o prazo da aposta com o relógio informado
func (b Bet) LockedByTime(now time.Time) bool {
	return b.LocksAt != nil && !now.Before(*b.LocksAt)
}

type Option struct {
	ID           string
	BetID        string
	Label        string
	AmericanOdds int
	Position     int
}

type Wager struct {
	ID              string
	BetID           string
	OptionID        string
	UserID          string
	GroupID         string
	Amount          decimal.Decimal
	OddsAtWager     int
	PotentialPayout decimal.Decimal
	Result          Result
	CreatedAt       time.Time
	SettledAt       *time.Time
}

type Parlay struct {
	ID                  string
	GroupID             string
	UserID              string
	Amount              decimal.Decimal
	CombinedDecimalOdds float64
	PotentialPayout     decimal.Decimal
	Result              Result
	CreatedAt           time.Time
	SettledAt           *time.Time
}

type ParlayLeg struct {
	ID              string
	ParlayID        string
	BetID           string
	OptionID        string
	OddsAtPlacement int
	Position        int // ordem em que a perna foi informada
	Result          Result
}

// LegWithBet junta a perna ao status atual da aposta referenciada
type LegWithBet struct {
	ParlayLeg
	BetStatus BetStatus
}
