package repo

import (
	"context"
	"time"

	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
)

// Store é o colaborador de persistência. WithinTx executa fn como uma unidade de
// trabalho: se fn retorna erro nada é gravado.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx expõe consultas nomeadas que devolvem registros planos.
// Métodos *ForUpdate bloqueiam a linha até o fim da unidade de trabalho.
// Registros inexistentes retornam erro com Kind not_found.
type Tx interface {
	GetGroup(ctx context.Context, groupID string) (domain.Group, error)
	GetMembership(ctx context.Context, userID, groupID string) (domain.Membership, error)

	GetLedgerEntryForUpdate(ctx context.Context, userID, groupID string) (domain.LedgerEntry, error)
	InsertLedgerEntry(ctx context.Context, e domain.LedgerEntry) error
	UpdateLedgerEntry(ctx context.Context, e domain.LedgerEntry) error
	InsertCreditTransaction(ctx context.Context, t domain.CreditTransaction) error
	ListCreditTransactions(ctx context.Context, userID, groupID string) ([]domain.CreditTransaction, error)

	InsertBet(ctx context.Context, b domain.Bet, opts []domain.Option) error
	GetBet(ctx context.Context, betID string) (domain.Bet, error)
	GetBetForUpdate(ctx context.Context, betID string) (domain.Bet, error)
	UpdateBet(ctx context.Context, b domain.Bet) error
	DeleteBet(ctx context.Context, betID string) error
	ListOptions(ctx context.Context, betID string) ([]domain.Option, error)
	GetOption(ctx context.Context, optionID string) (domain.Option, error)

	InsertWager(ctx context.Context, w domain.Wager) error
	GetWager(ctx context.Context, wagerID string) (domain.Wager, error)
	FindWager(ctx context.Context, userID, betID string) (domain.Wager, bool, error)
	ListWagersByBet(ctx context.Context, betID string) ([]domain.Wager, error)
	ListWagersByUser(ctx context.Context, userID, groupID string) ([]domain.Wager, error)
	CountWagersByBet(ctx context.Context, betID string) (int, error)
	UpdateWagerResult(ctx context.Context, wagerID string, result domain.Result, settledAt time.Time) error
	DeleteWager(ctx context.Context, wagerID string) error

	InsertParlay(ctx context.Context, p domain.Parlay, legs []domain.ParlayLeg) error
	GetParlay(ctx context.Context, parlayID string) (domain.Parlay, error)
	GetParlayForUpdate(ctx context.Context, parlayID string) (domain.Parlay, error)
	ListParlaysByUser(ctx context.Context, userID, groupID string) ([]domain.Parlay, error)
	UpdateParlayResult(ctx context.Context, parlayID string, result domain.Result, settledAt time.Time) error
	DeleteParlay(ctx context.Context, parlayID string) error
	ListLegs(ctx context.Context, parlayID string) ([]domain.LegWithBet, error)
	ListPendingParlayIDsByBet(ctx context.Context, betID string) ([]string, error)
	CountLegsByBet(ctx context.Context, betID string) (int, error)
	UpdateLegResult(ctx context.Context, legID string, result domain.Result) error
}
