package events

import "time"

// Evento publicado no tópico "parlay_resolved" quando um parlay sai de pending
type ParlayResolved struct {
	ParlayID string    `json:"parlay_id"`
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Result   string    `json:"result"` // "won" | "lost" | "push"
	Amount   string    `json:"amount"`
	Payout   string    `json:"payout,omitempty"`
	Ts       time.Time `json:"ts"`
}
