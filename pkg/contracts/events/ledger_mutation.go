package events

import "time"

// LedgerMutation espelha uma transação de crédito já commitada
type LedgerMutation struct {
	TransactionID  string    `json:"transaction_id"`
	UserID         string    `json:"user_id"`
	GroupID        string    `json:"group_id"`
	Type           string    `json:"type"`
	Amount         string    `json:"amount"`
	BalanceAfter   string    `json:"balance_after"`
	AllocatedAfter string    `json:"allocated_after"`
	Ts             time.Time `json:"ts"`
}

// Envelope é o formato repassado ao Redis Pub/Sub pelo activity-broadcaster
type Envelope struct {
	Topic   string `json:"topic"`
	GroupID string `json:"groupId"`
	Payload any    `json:"payload"`
}
