package repository

import (
	"context"
	"testing"
	"time"

	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/testutil"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *gorm.DB {
	return testutil.OpenDB(t, &domain.SalaryPayment{}, &commissiondomain.Commission{})
}

func salary(id snowflake.ID, retries int) *domain.SalaryPayment {
	return &domain.SalaryPayment{
		ID: id, WorkspaceID: 1, SDRID: 20, JobID: 40, Currency: "usd",
		SalaryAmount:       decimal.NewFromInt(3000),
		AgencyChargeStatus: domain.AgencyChargePaid,
		SDRPayoutDate:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		SDRPayoutStatus:    domain.PayoutScheduled,
		SDRPayoutAmount:    decimal.NewFromInt(3000),
		RetryCount:         retries,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func dueFilter(kind domain.Kind) domain.DueFilter {
	return domain.DueFilter{
		Kind:       kind,
		DueBefore:  time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		MaxRetries: 3,
		Limit:      10,
	}
}

func TestListDueSkipsExhaustedRetries(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()
	require.NoError(t, r.InsertSalary(ctx, db, salary(1, 0)))
	require.NoError(t, r.InsertSalary(ctx, db, salary(2, 3)))

	records, err := r.ListDue(ctx, db, dueFilter(domain.KindSalary))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, snowflake.ID(1), records[0].ID)
	assert.Equal(t, domain.KindSalary, records[0].Kind)
	assert.Equal(t, snowflake.ID(20), records[0].SDRID)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, int64(1), records[0].Version)
}

func TestListDueCommissionsNeedSDRAndAgencyPayment(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()
	date := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	sdr := snowflake.ID(20)

	rows := []commissiondomain.Commission{
		{ID: 1, DealID: 101, SDRID: &sdr, Status: commissiondomain.StatusPaid, SDRPayoutStatus: domain.PayoutPending, SDRPayoutDate: &date},
		{ID: 2, DealID: 102, SDRID: &sdr, Status: commissiondomain.StatusPending, SDRPayoutStatus: domain.PayoutPending, SDRPayoutDate: &date},
		{ID: 3, DealID: 103, Status: commissiondomain.StatusPaid, SDRPayoutStatus: domain.PayoutNotApplicable},
	}
	for i := range rows {
		rows[i].WorkspaceID = 1
		rows[i].Currency = "usd"
		rows[i].SDRPayoutAmount = decimal.NewFromInt(950)
		rows[i].Version = 1
		rows[i].CreatedAt = now
		rows[i].UpdatedAt = now
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	records, err := r.ListDue(ctx, db, dueFilter(domain.KindCommission))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, snowflake.ID(1), records[0].ID)
}

func TestClaimIsCompareAndSwap(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()
	require.NoError(t, r.InsertSalary(ctx, db, salary(1, 0)))

	records, err := r.ListDue(ctx, db, dueFilter(domain.KindSalary))
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]

	ok, err := r.Claim(ctx, db, rec, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second run holding the same snapshot loses
	ok, err = r.Claim(ctx, db, rec, now)
	require.NoError(t, err)
	assert.False(t, ok)

	rec.Version++
	ok, err = r.RecordFailure(ctx, db, rec, domain.Failure{Reason: "timeout", RetryCount: 1, Status: domain.PayoutScheduled}, now)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := r.FindSalary(ctx, db, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutScheduled, stored.SDRPayoutStatus)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "timeout", stored.FailureReason)
	assert.Equal(t, int64(3), stored.Version)
}

func TestRecoverStaleAndReleaseHeld(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()

	stale := salary(1, 0)
	stale.SDRPayoutStatus = domain.PayoutProcessing
	stale.UpdatedAt = now.Add(-time.Hour)
	held := salary(2, 0)
	held.SDRPayoutStatus = domain.PayoutHeld
	held.FailureReason = "no account"
	require.NoError(t, r.InsertSalary(ctx, db, stale))
	require.NoError(t, r.InsertSalary(ctx, db, held))

	n, err := r.RecoverStale(ctx, db, domain.KindSalary, now.Add(-15*time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	released, err := r.ReleaseHeld(ctx, db, 20, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	for _, id := range []snowflake.ID{1, 2} {
		stored, err := r.FindSalary(ctx, db, id)
		require.NoError(t, err)
		assert.Equal(t, domain.PayoutScheduled, stored.SDRPayoutStatus)
		assert.Empty(t, stored.FailureReason)
	}
}

func TestSalaryChargeTransitions(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()
	p := salary(1, 0)
	p.AgencyChargeStatus = domain.AgencyChargePending
	require.NoError(t, r.InsertSalary(ctx, db, p))

	ok, err := r.MarkSalaryChargeFailed(ctx, db, 1, 1, "card declined", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.MarkSalaryCharged(ctx, db, 1, 1, "pi_1", now)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not win")

	ok, err = r.MarkSalaryCharged(ctx, db, 1, 2, "pi_1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := r.FindSalary(ctx, db, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.AgencyChargePaid, stored.AgencyChargeStatus)
	assert.Equal(t, "pi_1", stored.AgencyChargeReference)
	assert.Empty(t, stored.FailureReason)
}

func TestListDueResumesAfterCursor(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()
	early := salary(9, 0)
	early.SDRPayoutDate = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.InsertSalary(ctx, db, early))
	for id := snowflake.ID(1); id <= 3; id++ {
		require.NoError(t, r.InsertSalary(ctx, db, salary(id, 0)))
	}

	filter := dueFilter(domain.KindSalary)
	filter.Limit = 2
	first, err := r.ListDue(ctx, db, filter)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, snowflake.ID(9), first[0].ID)
	assert.Equal(t, snowflake.ID(1), first[1].ID)

	filter.After = &domain.DueCursor{PayoutDate: first[1].PayoutDate, ID: first[1].ID}
	second, err := r.ListDue(ctx, db, filter)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, snowflake.ID(2), second[0].ID)
	assert.Equal(t, snowflake.ID(3), second[1].ID)

	filter.After = &domain.DueCursor{PayoutDate: second[1].PayoutDate, ID: second[1].ID}
	rest, err := r.ListDue(ctx, db, filter)
	require.NoError(t, err)
	assert.Empty(t, rest)
}
