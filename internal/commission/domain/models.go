package domain

import (
	"fmt"
	"time"

	payoutdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status is the agency side of a commission: has the workspace paid it.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Commission is the settlement of one closed-won deal. Amounts are stored
// rounded to cents.
type Commission struct {
	ID                    snowflake.ID              `gorm:"primaryKey" json:"id"`
	WorkspaceID           snowflake.ID              `gorm:"not null;index" json:"workspace_id"`
	DealID                snowflake.ID              `gorm:"not null;uniqueIndex" json:"deal_id"`
	CloserID              snowflake.ID              `gorm:"not null" json:"closer_id"`
	SDRID                 *snowflake.ID             `gorm:"column:sdr_id;index" json:"sdr_id,omitempty"`
	Currency              string                    `gorm:"type:text;not null" json:"currency"`
	DealValue             decimal.Decimal           `gorm:"type:numeric(18,2);not null" json:"deal_value"`
	SDRCommissionAmount   decimal.Decimal           `gorm:"column:sdr_commission_amount;type:numeric(18,2);not null" json:"sdr_commission_amount"`
	AgencyRakeAmount      decimal.Decimal           `gorm:"type:numeric(18,2);not null" json:"agency_rake_amount"`
	PlatformCutPercentage decimal.Decimal           `gorm:"type:numeric(7,4);not null" json:"platform_cut_percentage"`
	PlatformCutAmount     decimal.Decimal           `gorm:"type:numeric(18,2);not null" json:"platform_cut_amount"`
	SDRPayoutAmount       decimal.Decimal           `gorm:"column:sdr_payout_amount;type:numeric(18,2);not null" json:"sdr_payout_amount"`
	TotalAgencyOwed       decimal.Decimal           `gorm:"type:numeric(18,2);not null" json:"total_agency_owed"`
	Status                Status                    `gorm:"type:text;not null;index" json:"status"`
	SDRPayoutStatus       payoutdomain.PayoutStatus `gorm:"column:sdr_payout_status;type:text;not null;index" json:"sdr_payout_status"`
	SDRPayoutDate         *time.Time                `gorm:"column:sdr_payout_date" json:"sdr_payout_date,omitempty"`
	RetryCount            int                       `gorm:"not null;default:0" json:"retry_count"`
	FailureReason         string                    `gorm:"type:text" json:"failure_reason,omitempty"`
	TransferID            string                    `gorm:"type:text" json:"transfer_id,omitempty"`
	ChargeReference       string                    `gorm:"type:text" json:"charge_reference,omitempty"`
	ChargeFailureReason   string                    `gorm:"type:text" json:"charge_failure_reason,omitempty"`
	Version               int64                     `gorm:"not null;default:1" json:"-"`
	PaidAt                *time.Time                `json:"paid_at,omitempty"`
	SDRPaidAt             *time.Time                `gorm:"column:sdr_paid_at" json:"sdr_paid_at,omitempty"`
	CreatedAt             time.Time                 `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time                 `gorm:"not null" json:"updated_at"`
}

func (Commission) TableName() string { return "commissions" }

// ChargeIdempotencyKey changes with every failed attempt so a retry after a
// decline is a new request at the provider.
func (c Commission) ChargeIdempotencyKey() string {
	return fmt.Sprintf("commission_charge:%s:v%d", c.ID, c.Version)
}

// SelfClosed reports whether the agency closed the deal without an SDR.
func (c Commission) SelfClosed() bool {
	return c.SDRID == nil
}
