package ledger

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
	"smsgate-backend/lib/telemetry"
	"smsgate-backend/services/ledger/db"

	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = telemetry.Tracer("smsgate.services.ledger")

// reasons attached to every balance mutation
const (
	ReasonReferralCredit = "referral-credit"
	ReasonResourceDebit  = "resource-debit"
	ReasonAdminAdjust    = "admin-adjust"
)

// ErrInsufficientBalance means a debit would have taken the balance
// negative; nothing was changed.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Service is the durable point balance and referral graph. It is the only
// place balances change; every mutation lands atomically together with its
// ledger entry.
type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) Service {
	return Service{
		db:  database,
		qry: db.New(database),
	}
}

// GetBalance reports 0 for unknown participants; rows are materialized on
// first contact, not on read.
func (s Service) GetBalance(ctx context.Context, participant int64) (int64, error) {
	balance, err := s.qry.GetBalance(ctx, participant)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit unconditionally adds points, creating the participant row when
// needed.
func (s Service) Credit(ctx context.Context, participant, amount int64, reason string) error {
	ctx, span := tracer.Start(ctx, "Credit")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	now := time.Now().Unix()
	_, err = txqry.EnsureParticipant(ctx, db.EnsureParticipantParams{
		ID:        participant,
		Createdat: now,
	})
	if err != nil {
		return err
	}
	err = txqry.AddBalance(ctx, db.AddBalanceParams{
		Amount: amount,
		ID:     participant,
	})
	if err != nil {
		return err
	}
	err = txqry.CreateLedgerEntry(ctx, db.CreateLedgerEntryParams{
		Participant: participant,
		Delta:       amount,
		Reason:      reason,
		Createdat:   now,
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Debit takes points only if the full amount is covered. On
// ErrInsufficientBalance the balance is untouched; there is no partial
// debit.
func (s Service) Debit(ctx context.Context, participant, amount int64, reason string) error {
	ctx, span := tracer.Start(ctx, "Debit")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	affected, err := txqry.DebitBalance(ctx, db.DebitBalanceParams{
		Amount: amount,
		ID:     participant,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientBalance
	}
	err = txqry.CreateLedgerEntry(ctx, db.CreateLedgerEntryParams{
		Participant: participant,
		Delta:       -amount,
		Reason:      reason,
		Createdat:   time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// AdminAdjust applies a signed delta. Negative adjustments clamp at zero
// rather than failing, matching what an operator correcting a balance
// expects. Returns the balance after the adjustment.
func (s Service) AdminAdjust(ctx context.Context, participant, delta int64) (int64, error) {
	ctx, span := tracer.Start(ctx, "AdminAdjust")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	now := time.Now().Unix()
	_, err = txqry.EnsureParticipant(ctx, db.EnsureParticipantParams{
		ID:        participant,
		Createdat: now,
	})
	if err != nil {
		return 0, err
	}

	before, err := txqry.GetBalance(ctx, participant)
	if err != nil {
		return 0, err
	}

	if delta >= 0 {
		err = txqry.AddBalance(ctx, db.AddBalanceParams{Amount: delta, ID: participant})
	} else {
		err = txqry.ClampSubtractBalance(ctx, db.ClampSubtractBalanceParams{
			Amount: -delta,
			ID:     participant,
		})
	}
	if err != nil {
		return 0, err
	}

	after, err := txqry.GetBalance(ctx, participant)
	if err != nil {
		return 0, err
	}

	// record what actually happened, which may be less than requested
	// when clamping
	err = txqry.CreateLedgerEntry(ctx, db.CreateLedgerEntryParams{
		Participant: participant,
		Delta:       after - before,
		Reason:      ReasonAdminAdjust,
		Createdat:   now,
	})
	if err != nil {
		return 0, err
	}

	err = tx.Commit()
	if err != nil {
		return 0, err
	}
	return after, nil
}

// RecordReferral materializes a participant on first contact and resolves
// their first-touch referrer. It is idempotent: a participant that
// already exists is left completely alone, no matter what referrer id
// arrives with the duplicate event. Self-referrals never create an edge.
//
// The new participant's own row commits on its own first; the referral
// side effect (edge + credit) is deliberately best effort after that, so
// a failing referrer write can never lose the new participant.
func (s Service) RecordReferral(ctx context.Context, participant, referrer int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "RecordReferral")
	defer span.End()

	now := time.Now().Unix()
	created, err := s.qry.EnsureParticipant(ctx, db.EnsureParticipantParams{
		ID:        participant,
		Createdat: now,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create participant row")
		return false, err
	}
	if created == 0 {
		return false, nil
	}

	if referrer == 0 || referrer == participant {
		return true, nil
	}

	err = s.applyReferral(ctx, participant, referrer, now)
	if err != nil {
		slog.WarnContext(ctx, "referral side effect failed",
			"participant", participant, "referrer", referrer, "err", err)
	}
	return true, nil
}

func (s Service) applyReferral(ctx context.Context, participant, referrer, now int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	// non-recursive two-step upsert: an unknown referrer gets a plain
	// row of their own (with no referrer), then the edge applies
	_, err = txqry.EnsureParticipant(ctx, db.EnsureParticipantParams{
		ID:        referrer,
		Createdat: now,
	})
	if err != nil {
		return err
	}

	edges, err := txqry.CreateReferral(ctx, db.CreateReferralParams{
		Referrer:  referrer,
		Referred:  participant,
		Createdat: now,
	})
	if err != nil {
		return err
	}
	if edges == 0 {
		return nil
	}

	err = txqry.SetReferrer(ctx, db.SetReferrerParams{
		Referrer: referrer,
		ID:       participant,
	})
	if err != nil {
		return err
	}
	err = txqry.AddBalance(ctx, db.AddBalanceParams{Amount: 1, ID: referrer})
	if err != nil {
		return err
	}
	err = txqry.CreateLedgerEntry(ctx, db.CreateLedgerEntryParams{
		Participant: referrer,
		Delta:       1,
		Reason:      ReasonReferralCredit,
		Createdat:   now,
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ReferralCount is the size of the participant's referred set.
func (s Service) ReferralCount(ctx context.Context, participant int64) (int64, error) {
	return s.qry.CountReferrals(ctx, participant)
}

type Stats struct {
	Participants int64
	TotalPoints  int64
	Top          []db.Participant
}

func (s Service) Stats(ctx context.Context) (Stats, error) {
	count, err := s.qry.CountParticipants(ctx)
	if err != nil {
		return Stats{}, err
	}
	total, err := s.qry.TotalBalance(ctx)
	if err != nil {
		return Stats{}, err
	}
	top, err := s.qry.TopParticipants(ctx, 5)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Participants: count,
		TotalPoints:  total,
		Top:          top,
	}, nil
}

// AllParticipants lists every known participant id, for broadcasts.
func (s Service) AllParticipants(ctx context.Context) ([]int64, error) {
	return s.qry.AllParticipantIds(ctx)
}
