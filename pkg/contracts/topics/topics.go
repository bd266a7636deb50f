package topics

const (
	// Bets
	BetSettled   = "bet_settled"
	BetCancelled = "bet_cancelled"

	// Parlays
	ParlayResolved = "parlay_resolved"

	// Ledger (uma mensagem por transação de crédito)
	LedgerMutations = "ledger_mutations"
)
