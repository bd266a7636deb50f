package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Valores monetários aceitam número ou string JSON ("12.50"); o núcleo valida sinal e casas decimais

type CreateBetRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	LocksAt     *time.Time      `json:"locksAt"`
	Options     []OptionRequest `json:"options" validate:"required,min=2,max=10,dive"`
}

type OptionRequest struct {
	Label        string `json:"label" validate:"required,max=100"`
	AmericanOdds int    `json:"americanOdds" validate:"required,min=-100000,max=100000"`
}

type SettleBetRequest struct {
	WinningOptionID string `json:"winningOptionId" validate:"required"`
}

type PlaceWagerRequest struct {
	OptionID string          `json:"optionId" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

type PlaceParlayRequest struct {
	GroupID string          `json:"groupId" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Legs    []LegRequest    `json:"legs" validate:"required,min=2,max=10,dive"`
}

type LegRequest struct {
	BetID    string `json:"betId" validate:"required"`
	OptionID string `json:"optionId" validate:"required"`
}

type AdjustCreditsRequest struct {
	UserID string          `json:"userId" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note" validate:"max=500"`
}
