package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type HireRequest struct {
	WorkspaceID snowflake.ID
	SDRID       snowflake.ID
	JobID       snowflake.ID
	// SalaryAmount overrides the job posting's salary when positive.
	SalaryAmount decimal.Decimal
	HiredAt      time.Time
}

type HireResult struct {
	MemberID      snowflake.ID   `json:"member_id"`
	SalaryPayment *SalaryPayment `json:"salary_payment,omitempty"`
}

type PayoutAccountResult struct {
	SDRID     snowflake.ID `json:"sdr_id"`
	AccountID string       `json:"account_id"`
	Status    string       `json:"status"`
	Released  int64        `json:"released"`
}

// Service is the salary arrangement side of payouts.
type Service interface {
	HireSDR(ctx context.Context, req HireRequest) (HireResult, error)
	ChargeAgency(ctx context.Context, salaryPaymentID snowflake.ID) (SalaryPayment, error)
	UpdatePayoutAccount(ctx context.Context, sdrID snowflake.ID, accountID string) (PayoutAccountResult, error)
}

// Processor pays every due record. Both the cron job and the admin endpoint
// call it.
type Processor interface {
	ProcessDue(ctx context.Context) (BatchResult, error)
}
