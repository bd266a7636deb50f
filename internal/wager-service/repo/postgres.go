package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
)

// Códigos SQLSTATE tratados
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Postgres implementa Store em banco Postgres.
// Cada unidade de trabalho roda em SERIALIZABLE e é repetida em caso de falha de serialização.
type Postgres struct {
	db         *sql.DB
	maxRetries int
}

func NewPostgres(db *sql.DB, maxRetries int) *Postgres {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Postgres{db: db, maxRetries: maxRetries}
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// WithinTx abre a transação, executa fn e faz commit; qualquer erro faz rollback
func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		err = p.runOnce(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return domain.ConflictWrap(err, "concurrent update, retries exhausted")
}

func (p *Postgres) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
	}
	return false
}

// wrap traduz violação de unicidade em conflict e preserva o resto para retry/log
func wrap(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation {
		return domain.ConflictWrap(err, "%s: duplicate record", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) GetGroup(ctx context.Context, groupID string) (domain.Group, error) {
	var g domain.Group
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, default_credits, allow_creator_wagers
		FROM groups WHERE id=$1`, groupID).Scan(&g.ID, &g.Name, &g.DefaultCredits, &g.AllowCreatorWagers)
	if err == sql.ErrNoRows {
		return g, domain.NotFound("group %s not found", groupID)
	}
	if err != nil {
		return g, wrap("get group", err)
	}
	return g, nil
}

func (t *pgTx) GetMembership(ctx context.Context, userID, groupID string) (domain.Membership, error) {
	ms := domain.Membership{UserID: userID, GroupID: groupID}
	err := t.tx.QueryRowContext(ctx, `
		SELECT role, status FROM group_members WHERE user_id=$1 AND group_id=$2`,
		userID, groupID).Scan(&ms.Role, &ms.Status)
	if err == sql.ErrNoRows {
		return ms, domain.NotFound("membership not found")
	}
	if err != nil {
		return ms, wrap("get membership", err)
	}
	return ms, nil
}

func (t *pgTx) GetLedgerEntryForUpdate(ctx context.Context, userID, groupID string) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, group_id, available_balance, allocated_balance, created_at, updated_at
		FROM ledger_entries WHERE user_id=$1 AND group_id=$2 FOR UPDATE`, userID, groupID).
		Scan(&e.ID, &e.UserID, &e.GroupID, &e.AvailableBalance, &e.AllocatedBalance, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, domain.NotFound("ledger entry not found")
	}
	if err != nil {
		return e, wrap("lock ledger entry", err)
	}
	return e, nil
}

func (t *pgTx) InsertLedgerEntry(ctx context.Context, e domain.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, group_id, available_balance, allocated_balance, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.UserID, e.GroupID, e.AvailableBalance, e.AllocatedBalance, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return wrap("insert ledger entry", err)
	}
	return nil
}

func (t *pgTx) UpdateLedgerEntry(ctx context.Context, e domain.LedgerEntry) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE ledger_entries SET available_balance=$1, allocated_balance=$2, updated_at=$3
		WHERE id=$4`, e.AvailableBalance, e.AllocatedBalance, e.UpdatedAt, e.ID)
	if err != nil {
		return wrap("update ledger entry", err)
	}
	return expectOne(res, "ledger entry", e.ID)
}

func (t *pgTx) InsertCreditTransaction(ctx context.Context, ct domain.CreditTransaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO credit_transactions
		  (id, user_id, group_id, type, amount, balance_after, allocated_after, wager_id, bet_id, parlay_id, admin_id, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		ct.ID, ct.UserID, ct.GroupID, string(ct.Type), ct.Amount, ct.BalanceAfter, ct.AllocatedAfter,
		ct.Ref.WagerID, ct.Ref.BetID, ct.Ref.ParlayID, ct.Ref.AdminID, ct.Ref.Note, ct.CreatedAt)
	if err != nil {
		return wrap("insert credit transaction", err)
	}
	return nil
}

func (t *pgTx) ListCreditTransactions(ctx context.Context, userID, groupID string) ([]domain.CreditTransaction, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, user_id, group_id, type, amount, balance_after, allocated_after,
		       wager_id, bet_id, parlay_id, admin_id, note, created_at
		FROM credit_transactions
		WHERE user_id=$1 AND group_id=$2
		ORDER BY seq`, userID, groupID)
	if err != nil {
		return nil, wrap("list credit transactions", err)
	}
	defer rows.Close()

	var out []domain.CreditTransaction
	for rows.Next() {
		var ct domain.CreditTransaction
		var wagerID, betID, parlayID, adminID sql.NullString
		if err := rows.Scan(&ct.ID, &ct.UserID, &ct.GroupID, &ct.Type, &ct.Amount, &ct.BalanceAfter, &ct.AllocatedAfter,
			&wagerID, &betID, &parlayID, &adminID, &ct.Ref.Note, &ct.CreatedAt); err != nil {
			return nil, wrap("scan credit transaction", err)
		}
		ct.Ref.WagerID = nullableString(wagerID)
		ct.Ref.BetID = nullableString(betID)
		ct.Ref.ParlayID = nullableString(parlayID)
		ct.Ref.AdminID = nullableString(adminID)
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertBet(ctx context.Context, b domain.Bet, opts []domain.Option) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bets (id, group_id, created_by_id, title, description, status, locks_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.GroupID, b.CreatedByID, b.Title, b.Description, string(b.Status), b.LocksAt, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return wrap("insert bet", err)
	}
	for _, o := range opts {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO bet_options (id, bet_id, label, american_odds, position)
			VALUES ($1,$2,$3,$4,$5)`, o.ID, o.BetID, o.Label, o.AmericanOdds, o.Position); err != nil {
			return wrap("insert bet option", err)
		}
	}
	return nil
}

const betColumns = `id, group_id, created_by_id, title, description, status, locks_at, winning_option_id, settled_at, created_at, updated_at`

func scanBet(row *sql.Row) (domain.Bet, error) {
	var b domain.Bet
	var locksAt, settledAt sql.NullTime
	var winning sql.NullString
	err := row.Scan(&b.ID, &b.GroupID, &b.CreatedByID, &b.Title, &b.Description, &b.Status,
		&locksAt, &winning, &settledAt, &b.CreatedAt, &b.UpdatedAt)
	b.LocksAt = nullableTime(locksAt)
	b.SettledAt = nullableTime(settledAt)
	b.WinningOptionID = nullableString(winning)
	return b, err
}

func (t *pgTx) GetBet(ctx context.Context, betID string) (domain.Bet, error) {
	b, err := scanBet(t.tx.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1`, betID))
	if err == sql.ErrNoRows {
		return b, domain.NotFound("bet %s not found", betID)
	}
	if err != nil {
		return b, wrap("get bet", err)
	}
	return b, nil
}

func (t *pgTx) GetBetForUpdate(ctx context.Context, betID string) (domain.Bet, error) {
	b, err := scanBet(t.tx.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1 FOR UPDATE`, betID))
	if err == sql.ErrNoRows {
		return b, domain.NotFound("bet %s not found", betID)
	}
	if err != nil {
		return b, wrap("lock bet", err)
	}
	return b, nil
}

func (t *pgTx) UpdateBet(ctx context.Context, b domain.Bet) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE bets SET title=$1, description=$2, status=$3, locks_at=$4,
			winning_option_id=$5, settled_at=$6, updated_at=$7
		WHERE id=$8`, b.Title, b.Description, string(b.Status), b.LocksAt,
		b.WinningOptionID, b.SettledAt, b.UpdatedAt, b.ID)
	if err != nil {
		return wrap("update bet", err)
	}
	return expectOne(res, "bet", b.ID)
}

func (t *pgTx) DeleteBet(ctx context.Context, betID string) error {
	// bet_options cai junto via ON DELETE CASCADE
	res, err := t.tx.ExecContext(ctx, `DELETE FROM bets WHERE id=$1`, betID)
	if err != nil {
		return wrap("delete bet", err)
	}
	return expectOne(res, "bet", betID)
}

func (t *pgTx) ListOptions(ctx context.Context, betID string) ([]domain.Option, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, bet_id, label, american_odds, position
		FROM bet_options WHERE bet_id=$1 ORDER BY position`, betID)
	if err != nil {
		return nil, wrap("list options", err)
	}
	defer rows.Close()

	var out []domain.Option
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.ID, &o.BetID, &o.Label, &o.AmericanOdds, &o.Position); err != nil {
			return nil, wrap("scan option", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *pgTx) GetOption(ctx context.Context, optionID string) (domain.Option, error) {
	var o domain.Option
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, bet_id, label, american_odds, position FROM bet_options WHERE id=$1`, optionID).
		Scan(&o.ID, &o.BetID, &o.Label, &o.AmericanOdds, &o.Position)
	if err == sql.ErrNoRows {
		return o, domain.NotFound("option %s not found", optionID)
	}
	if err != nil {
		return o, wrap("get option", err)
	}
	return o, nil
}

func (t *pgTx) InsertWager(ctx context.Context, w domain.Wager) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO wagers (id, bet_id, option_id, user_id, group_id, amount, odds_at_wager, potential_payout, result, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		w.ID, w.BetID, w.OptionID, w.UserID, w.GroupID, w.Amount, w.OddsAtWager, w.PotentialPayout, string(w.Result), w.CreatedAt)
	if err != nil {
		return wrap("insert wager", err)
	}
	return nil
}

const wagerColumns = `id, bet_id, option_id, user_id, group_id, amount, odds_at_wager, potential_payout, result, created_at, settled_at`

type scanner interface{ Scan(dest ...any) error }

func scanWager(s scanner) (domain.Wager, error) {
	var w domain.Wager
	var settledAt sql.NullTime
	err := s.Scan(&w.ID, &w.BetID, &w.OptionID, &w.UserID, &w.GroupID, &w.Amount, &w.OddsAtWager,
		&w.PotentialPayout, &w.Result, &w.CreatedAt, &settledAt)
	w.SettledAt = nullableTime(settledAt)
	return w, err
}

func (t *pgTx) GetWager(ctx context.Context, wagerID string) (domain.Wager, error) {
	w, err := scanWager(t.tx.QueryRowContext(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id=$1`, wagerID))
	if err == sql.ErrNoRows {
		return w, domain.NotFound("wager %s not found", wagerID)
	}
	if err != nil {
		return w, wrap("get wager", err)
	}
	return w, nil
}

func (t *pgTx) FindWager(ctx context.Context, userID, betID string) (domain.Wager, bool, error) {
	w, err := scanWager(t.tx.QueryRowContext(ctx,
		`SELECT `+wagerColumns+` FROM wagers WHERE user_id=$1 AND bet_id=$2`, userID, betID))
	if err == sql.ErrNoRows {
		return w, false, nil
	}
	if err != nil {
		return w, false, wrap("find wager", err)
	}
	return w, true, nil
}

func (t *pgTx) listWagers(ctx context.Context, op, where string, args ...any) ([]domain.Wager, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (t *pgTx) ListWagersByBet(ctx context.Context, betID string) ([]domain.Wager, error) {
	return t.listWagers(ctx, "list wagers by bet", `bet_id=$1`, betID)
}

func (t *pgTx) ListWagersByUser(ctx context.Context, userID, groupID string) ([]domain.Wager, error) {
	return t.listWagers(ctx, "list wagers by user", `user_id=$1 AND group_id=$2`, userID, groupID)
}

func (t *pgTx) CountWagersByBet(ctx context.Context, betID string) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM wagers WHERE bet_id=$1`, betID).Scan(&n); err != nil {
		return 0, wrap("count wagers", err)
	}
	return n, nil
}

func (t *pgTx) UpdateWagerResult(ctx context.Context, wagerID string, result domain.Result, settledAt time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE wagers SET result=$1, settled_at=$2 WHERE id=$3`,
		string(result), settledAt, wagerID)
	if err != nil {
		return wrap("update wager result", err)
	}
	return expectOne(res, "wager", wagerID)
}

func (t *pgTx) DeleteWager(ctx context.Context, wagerID string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM wagers WHERE id=$1`, wagerID)
	if err != nil {
		return wrap("delete wager", err)
	}
	return expectOne(res, "wager", wagerID)
}

func (t *pgTx) InsertParlay(ctx context.Context, p domain.Parlay, legs []domain.ParlayLeg) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO parlays (id, group_id, user_id, amount, combined_decimal_odds, potential_payout, result, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.GroupID, p.UserID, p.Amount, p.CombinedDecimalOdds, p.PotentialPayout, string(p.Result), p.CreatedAt)
	if err != nil {
		return wrap("insert parlay", err)
	}
	for _, l := range legs {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO parlay_legs (id, parlay_id, bet_id, option_id, odds_at_placement, position, result)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			l.ID, l.ParlayID, l.BetID, l.OptionID, l.OddsAtPlacement, l.Position, string(l.Result)); err != nil {
			return wrap("insert parlay leg", err)
		}
	}
	return nil
}

const parlayColumns = `id, group_id, user_id, amount, combined_decimal_odds, potential_payout, result, created_at, settled_at`

func scanParlay(s scanner) (domain.Parlay, error) {
	var p domain.Parlay
	var settledAt sql.NullTime
	err := s.Scan(&p.ID, &p.GroupID, &p.UserID, &p.Amount, &p.CombinedDecimalOdds, &p.PotentialPayout,
		&p.Result, &p.CreatedAt, &settledAt)
	p.SettledAt = nullableTime(settledAt)
	return p, err
}

func (t *pgTx) GetParlay(ctx context.Context, parlayID string) (domain.Parlay, error) {
	p, err := scanParlay(t.tx.QueryRowContext(ctx, `SELECT `+parlayColumns+` FROM parlays WHERE id=$1`, parlayID))
	if err == sql.ErrNoRows {
		return p, domain.NotFound("parlay %s not found", parlayID)
	}
	if err != nil {
		return p, wrap("get parlay", err)
	}
	return p, nil
}

func (t *pgTx) GetParlayForUpdate(ctx context.Context, parlayID string) (domain.Parlay, error) {
	p, err := scanParlay(t.tx.QueryRowContext(ctx, `SELECT `+parlayColumns+` FROM parlays WHERE id=$1 FOR UPDATE`, parlayID))
	if err == sql.ErrNoRows {
		return p, domain.NotFound("parlay %s not found", parlayID)
	}
	if err != nil {
		return p, wrap("lock parlay", err)
	}
	return p, nil
}

func (t *pgTx) ListParlaysByUser(ctx context.Context, userID, groupID string) ([]domain.Parlay, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+parlayColumns+` FROM parlays
		WHERE user_id=$1 AND group_id=$2 ORDER BY created_at, id`, userID, groupID)
	if err != nil {
		return nil, wrap("list parlays", err)
	}
	defer rows.Close()

	var out []domain.Parlay
	for rows.Next() {
		p, err := scanParlay(rows)
		if err != nil {
			return nil, wrap("scan parlay", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) UpdateParlayResult(ctx context.Context, parlayID string, result domain.Result, settledAt time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE parlays SET result=$1, settled_at=$2 WHERE id=$3`,
		string(result), settledAt, parlayID)
	if err != nil {
		return wrap("update parlay result", err)
	}
	return expectOne(res, "parlay", parlayID)
}

func (t *pgTx) DeleteParlay(ctx context.Context, parlayID string) error {
	// parlay_legs cai junto via ON DELETE CASCADE
	res, err := t.tx.ExecContext(ctx, `DELETE FROM parlays WHERE id=$1`, parlayID)
	if err != nil {
		return wrap("delete parlay", err)
	}
	return expectOne(res, "parlay", parlayID)
}

func (t *pgTx) ListLegs(ctx context.Context, parlayID string) ([]domain.LegWithBet, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT l.id, l.parlay_id, l.bet_id, l.option_id, l.odds_at_placement, l.position, l.result, b.status
		FROM parlay_legs l
		JOIN bets b ON b.id = l.bet_id
		WHERE l.parlay_id=$1
		ORDER BY l.position`, parlayID)
	if err != nil {
		return nil, wrap("list legs", err)
	}
	defer rows.Close()

	var out []domain.LegWithBet
	for rows.Next() {
		var l domain.LegWithBet
		if err := rows.Scan(&l.ID, &l.ParlayID, &l.BetID, &l.OptionID, &l.OddsAtPlacement, &l.Position, &l.Result, &l.BetStatus); err != nil {
			return nil, wrap("scan leg", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) ListPendingParlayIDsByBet(ctx context.Context, betID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT DISTINCT p.id
		FROM parlay_legs l
		JOIN parlays p ON p.id = l.parlay_id
		WHERE l.bet_id=$1 AND p.result='pending'
		ORDER BY p.id`, betID)
	if err != nil {
		return nil, wrap("list pending parlays", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("scan parlay id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *pgTx) CountLegsByBet(ctx context.Context, betID string) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM parlay_legs WHERE bet_id=$1`, betID).Scan(&n); err != nil {
		return 0, wrap("count legs", err)
	}
	return n, nil
}

func (t *pgTx) UpdateLegResult(ctx context.Context, legID string, result domain.Result) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE parlay_legs SET result=$1 WHERE id=$2`, string(result), legID)
	if err != nil {
		return wrap("update leg result", err)
	}
	return expectOne(res, "parlay leg", legID)
}

func expectOne(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.NotFound("%s %s not found", what, id)
	}
	return nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
