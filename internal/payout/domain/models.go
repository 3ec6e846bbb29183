package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PayoutStatus tracks the SDR side of a settlement record.
type PayoutStatus string

const (
	PayoutScheduled     PayoutStatus = "scheduled" // salary waiting for its date
	PayoutPending       PayoutStatus = "pending"   // commission waiting for its date
	PayoutProcessing    PayoutStatus = "processing"
	PayoutPaid          PayoutStatus = "paid"
	PayoutHeld          PayoutStatus = "held"
	PayoutFailed        PayoutStatus = "failed"
	PayoutNotApplicable PayoutStatus = "not_applicable"
)

type AgencyChargeStatus string

const (
	AgencyChargePending AgencyChargeStatus = "pending"
	AgencyChargePaid    AgencyChargeStatus = "paid"
	AgencyChargeFailed  AgencyChargeStatus = "failed"
)

// Kind distinguishes the two record tables the batch pays out from.
type Kind string

const (
	KindSalary     Kind = "salary"
	KindCommission Kind = "commission"
)

// ReadyStatus is the payout status a record of this kind waits in.
func (k Kind) ReadyStatus() PayoutStatus {
	if k == KindSalary {
		return PayoutScheduled
	}
	return PayoutPending
}

// IdempotencyKey is sent with every transfer attempt for the record, so a
// retried or overlapping batch can never pay it twice.
func (k Kind) IdempotencyKey(id snowflake.ID) string {
	return string(k) + "_payout:" + id.String()
}

// SalaryPayment is one month of salary owed to a hired SDR.
type SalaryPayment struct {
	ID                    snowflake.ID       `gorm:"primaryKey" json:"id"`
	WorkspaceID           snowflake.ID       `gorm:"not null;index" json:"workspace_id"`
	SDRID                 snowflake.ID       `gorm:"column:sdr_id;not null;index" json:"sdr_id"`
	JobID                 snowflake.ID       `gorm:"not null" json:"job_id"`
	Currency              string             `gorm:"type:text;not null" json:"currency"`
	SalaryAmount          decimal.Decimal    `gorm:"type:numeric(18,2);not null" json:"salary_amount"`
	AgencyChargeStatus    AgencyChargeStatus `gorm:"type:text;not null" json:"agency_charge_status"`
	AgencyChargedAt       *time.Time         `json:"agency_charged_at,omitempty"`
	AgencyChargeReference string             `gorm:"type:text" json:"agency_charge_reference,omitempty"`
	SDRPayoutDate         time.Time          `gorm:"column:sdr_payout_date;not null;index" json:"sdr_payout_date"`
	SDRPayoutStatus       PayoutStatus       `gorm:"column:sdr_payout_status;type:text;not null;index" json:"sdr_payout_status"`
	SDRPayoutAmount       decimal.Decimal    `gorm:"column:sdr_payout_amount;type:numeric(18,2);not null" json:"sdr_payout_amount"`
	RetryCount            int                `gorm:"not null;default:0" json:"retry_count"`
	FailureReason         string             `gorm:"type:text" json:"failure_reason,omitempty"`
	TransferID            string             `gorm:"type:text" json:"transfer_id,omitempty"`
	Version               int64              `gorm:"not null;default:1" json:"-"`
	SDRPaidAt             *time.Time         `gorm:"column:sdr_paid_at" json:"sdr_paid_at,omitempty"`
	CreatedAt             time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time          `gorm:"not null" json:"updated_at"`
}

func (SalaryPayment) TableName() string { return "salary_payments" }

// ChargeIdempotencyKey follows the version, which every recorded charge
// failure bumps, so a retry after a decline reaches the provider as a fresh attempt.
func (p SalaryPayment) ChargeIdempotencyKey() string {
	return fmt.Sprintf("salary_charge:%s:v%d", p.ID, p.Version)
}

// Record is the kind-independent view of a payable row.
type Record struct {
	ID          snowflake.ID
	Kind        Kind
	WorkspaceID snowflake.ID
	SDRID       snowflake.ID
	Currency    string
	Amount      decimal.Decimal
	PayoutDate  time.Time
	Status      PayoutStatus
	RetryCount  int
	Version     int64
}

// Outcome is the per-record line of a batch result.
type Outcome struct {
	RecordID   snowflake.ID    `json:"record_id"`
	Kind       Kind            `json:"kind"`
	SDRID      snowflake.ID    `json:"sdr_id"`
	Status     PayoutStatus    `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	TransferID string          `json:"transfer_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	RetryCount int             `json:"retry_count"`
	// Skipped is set when another run claimed the record first.
	Skipped bool `json:"skipped,omitempty"`
}

// BatchResult is returned by both the scheduled and the manual trigger.
type BatchResult struct {
	RunID         string    `json:"run_id"`
	Processed     int       `json:"processed"`
	Successful    int       `json:"successful"`
	Failed        int       `json:"failed"`
	Held          int       `json:"held"`
	Retrying      int       `json:"retrying"`
	Skipped       int       `json:"skipped"`
	Recovered     int       `json:"recovered"`
	NotConfigured bool      `json:"not_configured"`
	Details       []Outcome `json:"details"`
}

func (r *BatchResult) Add(o Outcome) {
	r.Details = append(r.Details, o)
	if o.Skipped {
		r.Skipped++
		return
	}
	r.Processed++
	switch o.Status {
	case PayoutPaid:
		r.Successful++
	case PayoutHeld:
		r.Held++
	case PayoutFailed:
		r.Failed++
	default:
		r.Retrying++
	}
}
