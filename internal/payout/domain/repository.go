package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository covers both payable tables. Every transition is a
// compare-and-swap on the record version; a false return means another
// writer moved the row first.
type Repository interface {
	InsertSalary(ctx context.Context, db *gorm.DB, payment *SalaryPayment) error
	FindSalary(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SalaryPayment, error)
	MarkSalaryCharged(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, reference string, now time.Time) (bool, error)
	MarkSalaryChargeFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, reason string, now time.Time) (bool, error)

	ListDue(ctx context.Context, db *gorm.DB, filter DueFilter) ([]Record, error)
	Claim(ctx context.Context, db *gorm.DB, rec Record, now time.Time) (bool, error)
	MarkPaid(ctx context.Context, db *gorm.DB, rec Record, transferID string, now time.Time) (bool, error)
	MarkHeld(ctx context.Context, db *gorm.DB, rec Record, reason string, now time.Time) (bool, error)
	RecordFailure(ctx context.Context, db *gorm.DB, rec Record, failure Failure, now time.Time) (bool, error)
	RecoverStale(ctx context.Context, db *gorm.DB, kind Kind, olderThan, now time.Time) (int64, error)
	ReleaseHeld(ctx context.Context, db *gorm.DB, sdrID snowflake.ID, now time.Time) (int64, error)
}

// DueFilter selects records whose agency side is paid and whose payout date
// has arrived.
type DueFilter struct {
	Kind       Kind
	DueBefore  time.Time // exclusive; the start of the day after today
	MaxRetries int
	Limit      int
	// After resumes listing past the last record of the previous page.
	After *DueCursor
}

// DueCursor is a position in the (sdr_payout_date, id) order ListDue returns.
type DueCursor struct {
	PayoutDate time.Time
	ID         snowflake.ID
}

// Failure is what RecordFailure writes: the next status is either the ready
// status again or PayoutFailed.
type Failure struct {
	Reason     string
	RetryCount int
	Status     PayoutStatus
}
