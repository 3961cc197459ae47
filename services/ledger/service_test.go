package ledger

import (
	"context"
	"testing"
	"time"
	"smsgate-backend/lib/testutil"
	"smsgate-backend/services/ledger/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setup(t *testing.T) (Service, func()) {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/ledger",
		DbSchema: db.Schema,
	})
	return NewService(result.DB), cleanup
}

func TestCreditDebit(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	balance, err := service.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)

	err = service.Credit(ctx, 100, 12, ReasonReferralCredit)
	require.NoError(t, err)

	balance, err = service.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.EqualValues(t, 12, balance)

	err = service.Debit(ctx, 100, 10, ReasonResourceDebit)
	require.NoError(t, err)

	balance, err = service.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.EqualValues(t, 2, balance)
}

func TestDebitNeverGoesNegative(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := service.Credit(ctx, 200, 10, ReasonReferralCredit)
	require.NoError(t, err)

	// only one of these fits in the balance
	first := service.Debit(ctx, 200, 10, ReasonResourceDebit)
	second := service.Debit(ctx, 200, 10, ReasonResourceDebit)

	require.NoError(t, first)
	require.ErrorIs(t, second, ErrInsufficientBalance)

	balance, err := service.GetBalance(ctx, 200)
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)
}

func TestDebitUnknownParticipant(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := service.Debit(ctx, 999, 1, ReasonResourceDebit)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRecordReferralSingleCredit(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	// A refers B; duplicate start events for B must credit A exactly once
	created, err := service.RecordReferral(ctx, 2, 1)
	require.NoError(t, err)
	require.True(t, created)

	created, err = service.RecordReferral(ctx, 2, 1)
	require.NoError(t, err)
	require.False(t, created)

	balance, err := service.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, balance)

	count, err := service.ReferralCount(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestRecordReferralSelf(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	created, err := service.RecordReferral(ctx, 5, 5)
	require.NoError(t, err)
	require.True(t, created)

	balance, err := service.GetBalance(ctx, 5)
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)

	count, err := service.ReferralCount(ctx, 5)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestRecordReferralUnknownReferrer(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	// the referrer has never been seen; they get a plain row and the
	// credit, no recursion involved
	created, err := service.RecordReferral(ctx, 20, 10)
	require.NoError(t, err)
	require.True(t, created)

	balance, err := service.GetBalance(ctx, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, balance)

	// the materialized referrer has no referrer of their own
	count, err := service.ReferralCount(ctx, 20)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestReferrerImmutable(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, err := service.RecordReferral(ctx, 2, 1)
	require.NoError(t, err)

	// a later start event carrying a different referrer changes nothing
	created, err := service.RecordReferral(ctx, 2, 3)
	require.NoError(t, err)
	require.False(t, created)

	balance, err := service.GetBalance(ctx, 3)
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)
}

func TestAdminAdjust(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	after, err := service.AdminAdjust(ctx, 7, 5)
	require.NoError(t, err)
	require.EqualValues(t, 5, after)

	// subtracting past zero clamps instead of failing
	after, err = service.AdminAdjust(ctx, 7, -8)
	require.NoError(t, err)
	require.EqualValues(t, 0, after)
}

func TestStats(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	for id, points := range map[int64]int64{1: 3, 2: 9, 3: 1} {
		err := service.Credit(ctx, id, points, ReasonAdminAdjust)
		require.NoError(t, err)
	}

	stats, err := service.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Participants)
	require.EqualValues(t, 13, stats.TotalPoints)
	require.Len(t, stats.Top, 3)
	require.EqualValues(t, 2, stats.Top[0].ID)

	all, err := service.AllParticipants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
