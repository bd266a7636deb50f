package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
)

var lockLedger = regexp.QuoteMeta(`FROM ledger_entries WHERE user_id=$1 AND group_id=$2 FOR UPDATE`)

func newMock(t *testing.T, retries int) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db, retries), mock
}

func ledgerRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "group_id", "available_balance", "allocated_balance", "created_at", "updated_at"}).
		AddRow("le1", "u1", "g1", "800.00", "200.00", now, now)
}

func lockEntry(ctx context.Context, tx Tx) (domain.LedgerEntry, error) {
	return tx.GetLedgerEntryForUpdate(ctx, "u1", "g1")
}

func TestWithinTx_Commit(t *testing.T) {
	p, mock := newMock(t, 3)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(lockLedger).WithArgs("u1", "g1").WillReturnRows(ledgerRows(now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE ledger_entries`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "le1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		e, err := lockEntry(ctx, tx)
		if err != nil {
			return err
		}
		assert.True(t, e.AvailableBalance.Equal(decimal.RequireFromString("800")))
		assert.True(t, e.AllocatedBalance.Equal(decimal.RequireFromString("200")))
		e.AvailableBalance = e.AvailableBalance.Sub(decimal.NewFromInt(50))
		return tx.UpdateLedgerEntry(ctx, e)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_ErrorRollsBack(t *testing.T) {
	p, mock := newMock(t, 3)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(lockLedger).WillReturnRows(ledgerRows(time.Now()))
	mock.ExpectRollback()

	err := p.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if _, err := lockEntry(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RetriesSerializationFailure(t *testing.T) {
	p, mock := newMock(t, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(lockLedger).WillReturnError(&pq.Error{Code: codeSerializationFailure})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(lockLedger).WillReturnRows(ledgerRows(time.Now()))
	mock.ExpectCommit()

	calls := 0
	err := p.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		calls++
		_, err := lockEntry(ctx, tx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RetriesExhausted(t *testing.T) {
	p, mock := newMock(t, 2)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(lockLedger).WillReturnError(&pq.Error{Code: codeDeadlockDetected})
		mock.ExpectRollback()
	}

	err := p.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := lockEntry(ctx, tx)
		return err
	})
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWager_UniqueViolationIsConflict(t *testing.T) {
	p, mock := newMock(t, 3)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wagers`)).WillReturnError(&pq.Error{Code: codeUniqueViolation})
	mock.ExpectRollback()

	err := p.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertWager(ctx, domain.Wager{ID: "w1", Amount: decimal.NewFromInt(10), Result: domain.ResultPending})
	})
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBetForUpdate(t *testing.T) {
	p, mock := newMock(t, 1)
	now := time.Now().UTC()
	cols := []string{"id", "group_id", "created_by_id", "title", "description", "status", "locks_at", "winning_option_id", "settled_at", "created_at", "updated_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bets WHERE id=$1 FOR UPDATE`)).WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("b1", "g1", "carol", "Who wins?", "", "open", now, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bets WHERE id=$1 FOR UPDATE`)).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectCommit()

	err := p.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		b, err := tx.GetBetForUpdate(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, domain.BetOpen, b.Status)
		require.NotNil(t, b.LocksAt)
		assert.Nil(t, b.WinningOptionID)
		assert.Nil(t, b.SettledAt)

		_, err = tx.GetBetForUpdate(ctx, "missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWagerResult_MissingRowIsNotFound(t *testing.T) {
	p, mock := newMock(t, 1)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE wagers SET result=$1`)).
		WithArgs("won", sqlmock.AnyArg(), "w404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := p.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateWagerResult(ctx, "w404", domain.ResultWon, time.Now())
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertParlay_LegsCarryPosition(t *testing.T) {
	p, mock := newMock(t, 1)
	now := time.Now().UTC()
	parlay := domain.Parlay{ID: "p1", GroupID: "g1", UserID: "u1", Amount: decimal.NewFromInt(10),
		CombinedDecimalOdds: 4, PotentialPayout: decimal.NewFromInt(40), Result: domain.ResultPending, CreatedAt: now}
	legs := []domain.ParlayLeg{
		{ID: "l1", ParlayID: "p1", BetID: "b3", OptionID: "o3", OddsAtPlacement: 100, Position: 0, Result: domain.ResultPending},
		{ID: "l2", ParlayID: "p1", BetID: "b1", OptionID: "o1", OddsAtPlacement: 100, Position: 1, Result: domain.ResultPending},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO parlays`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO parlay_legs`)).
		WithArgs("l1", "p1", "b3", "o3", 100, 0, "pending").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO parlay_legs`)).
		WithArgs("l2", "p1", "b1", "o1", 100, 1, "pending").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertParlay(ctx, parlay, legs)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListLegs_OrderedByPosition(t *testing.T) {
	p, mock := newMock(t, 1)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY l.position`)).WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "parlay_id", "bet_id", "option_id", "odds_at_placement", "position", "result", "status"}).
			AddRow("l1", "p1", "b3", "o3", 100, 0, "pending", "open").
			AddRow("l2", "p1", "b1", "o1", -150, 1, "won", "settled"))
	mock.ExpectCommit()

	var got []domain.LegWithBet
	err := p.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		got, err = tx.ListLegs(ctx, "p1")
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b3", got[0].BetID)
	assert.Equal(t, 1, got[1].Position)
	assert.Equal(t, domain.ResultWon, got[1].Result)
	assert.Equal(t, domain.BetSettled, got[1].BetStatus)
}
