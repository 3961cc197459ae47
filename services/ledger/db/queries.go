package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Participant struct {
	ID        int64
	Balance   int64
	Referrer  sql.NullInt64
	Createdat int64
}

type EnsureParticipantParams struct {
	ID        int64
	Createdat int64
}

// EnsureParticipant creates the participant row if it does not exist yet
// and reports how many rows were written (0 means it already existed).
func (q *Queries) EnsureParticipant(ctx context.Context, arg EnsureParticipantParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO participants (id, balance, referrer, createdat)
		 VALUES (?, 0, NULL, ?)`,
		arg.ID, arg.Createdat,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) GetParticipant(ctx context.Context, id int64) (Participant, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, balance, referrer, createdat FROM participants WHERE id = ?`,
		id,
	)
	var p Participant
	err := row.Scan(&p.ID, &p.Balance, &p.Referrer, &p.Createdat)
	return p, err
}

func (q *Queries) GetBalance(ctx context.Context, id int64) (int64, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT balance FROM participants WHERE id = ?`, id,
	)
	var balance int64
	err := row.Scan(&balance)
	return balance, err
}

type AddBalanceParams struct {
	Amount int64
	ID     int64
}

func (q *Queries) AddBalance(ctx context.Context, arg AddBalanceParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE participants SET balance = balance + ? WHERE id = ?`,
		arg.Amount, arg.ID,
	)
	return err
}

type DebitBalanceParams struct {
	Amount int64
	ID     int64
}

// DebitBalance is a compare-and-decrement: it only fires when the current
// balance covers the amount. 0 rows affected means insufficient funds (or
// an unknown participant), and nothing was changed.
func (q *Queries) DebitBalance(ctx context.Context, arg DebitBalanceParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE participants SET balance = balance - ?
		 WHERE id = ? AND balance >= ?`,
		arg.Amount, arg.ID, arg.Amount,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type ClampSubtractBalanceParams struct {
	Amount int64
	ID     int64
}

// ClampSubtractBalance subtracts but never goes below zero. Admin
// adjustments use this; participant-facing debits never do.
func (q *Queries) ClampSubtractBalance(ctx context.Context, arg ClampSubtractBalanceParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE participants SET balance = MAX(balance - ?, 0) WHERE id = ?`,
		arg.Amount, arg.ID,
	)
	return err
}

type SetReferrerParams struct {
	Referrer int64
	ID       int64
}

// SetReferrer stores the referrer on a participant, first write wins: a
// participant that already has one keeps it.
func (q *Queries) SetReferrer(ctx context.Context, arg SetReferrerParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE participants SET referrer = ? WHERE id = ? AND referrer IS NULL`,
		arg.Referrer, arg.ID,
	)
	return err
}

type CreateReferralParams struct {
	Referrer  int64
	Referred  int64
	Createdat int64
}

// CreateReferral records the edge, reporting 0 rows when it already
// existed.
func (q *Queries) CreateReferral(ctx context.Context, arg CreateReferralParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO referrals (referrer, referred, createdat)
		 VALUES (?, ?, ?)`,
		arg.Referrer, arg.Referred, arg.Createdat,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) CountReferrals(ctx context.Context, referrer int64) (int64, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referrer = ?`, referrer,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

type CreateLedgerEntryParams struct {
	Participant int64
	Delta       int64
	Reason      string
	Createdat   int64
}

func (q *Queries) CreateLedgerEntry(ctx context.Context, arg CreateLedgerEntryParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO ledgerentries (participant, delta, reason, createdat)
		 VALUES (?, ?, ?, ?)`,
		arg.Participant, arg.Delta, arg.Reason, arg.Createdat,
	)
	return err
}

func (q *Queries) CountParticipants(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants`)
	var count int64
	err := row.Scan(&count)
	return count, err
}

func (q *Queries) TotalBalance(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance), 0) FROM participants`)
	var total int64
	err := row.Scan(&total)
	return total, err
}

func (q *Queries) TopParticipants(ctx context.Context, limit int64) ([]Participant, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, balance, referrer, createdat FROM participants
		 ORDER BY balance DESC, id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		err := rows.Scan(&p.ID, &p.Balance, &p.Referrer, &p.Createdat)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) AllParticipantIds(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM participants`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		err := rows.Scan(&id)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
