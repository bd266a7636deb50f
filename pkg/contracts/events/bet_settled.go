package events

import "time"

// Evento emitido pelo wager-service após liquidar uma aposta (bet) com opção vencedora.
type BetSettled struct {
	BetID           string    `json:"bet_id"`
	GroupID         string    `json:"group_id"`
	WinningOptionID string    `json:"winning_option_id"`
	SettledBy       string    `json:"settled_by"`
	WagersWon       int       `json:"wagers_won"`
	WagersLost      int       `json:"wagers_lost"`
	ParlaysWon      int       `json:"parlays_won"`
	ParlaysLost     int       `json:"parlays_lost"`
	Ts              time.Time `json:"ts"`
}

// Evento emitido quando uma aposta é cancelada e os stakes devolvidos (push).
type BetCancelled struct {
	BetID         string    `json:"bet_id"`
	GroupID       string    `json:"group_id"`
	CancelledBy   string    `json:"cancelled_by"`
	WagersPushed  int       `json:"wagers_pushed"`
	ParlaysVoided int       `json:"parlays_voided"`
	Ts            time.Time `json:"ts"`
}
