package domain

import (
	"time"

	tierdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/tier/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Workspace is an agency account. Only the fields settlement reads are modelled.
type Workspace struct {
	ID                     snowflake.ID                `gorm:"primaryKey" json:"id"`
	Name                   string                      `gorm:"type:text;not null" json:"name"`
	OwnerID                snowflake.ID                `gorm:"not null;index" json:"owner_id"`
	SubscriptionTier       tierdomain.SubscriptionTier `gorm:"type:text;not null" json:"subscription_tier"`
	StripeCustomerID       string                      `gorm:"type:text" json:"-"`
	DefaultPaymentMethodID string                      `gorm:"type:text" json:"-"`
	CreatedAt              time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Workspace) TableName() string { return "workspaces" }

// CanBeCharged reports whether a stored payment method is on file.
func (w Workspace) CanBeCharged() bool {
	return w.StripeCustomerID != "" && w.DefaultPaymentMethodID != ""
}

const (
	MemberRoleSDR = "sdr"
)

// Member is a hired SDR seat in a workspace.
type Member struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	WorkspaceID  snowflake.ID  `gorm:"not null;uniqueIndex:ux_workspace_members_user,priority:1" json:"workspace_id"`
	UserID       snowflake.ID  `gorm:"not null;uniqueIndex:ux_workspace_members_user,priority:2" json:"user_id"`
	Role         string        `gorm:"type:text;not null" json:"role"`
	JobPostingID *snowflake.ID `json:"job_posting_id,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
}

func (Member) TableName() string { return "workspace_members" }

type PayoutAccountStatus string

const (
	PayoutAccountNone       PayoutAccountStatus = ""
	PayoutAccountPending    PayoutAccountStatus = "pending"
	PayoutAccountActive     PayoutAccountStatus = "active"
	PayoutAccountRestricted PayoutAccountStatus = "restricted"
)

// SDRProfile holds the SDR's level and payout destination.
type SDRProfile struct {
	ID                  snowflake.ID        `gorm:"primaryKey" json:"id"`
	UserID              snowflake.ID        `gorm:"not null;uniqueIndex" json:"user_id"`
	DisplayName         string              `gorm:"type:text" json:"display_name"`
	Email               string              `gorm:"type:text" json:"-"`
	Level               int                 `gorm:"not null;default:1" json:"level"`
	PayoutAccountID     string              `gorm:"type:text" json:"-"`
	PayoutAccountStatus PayoutAccountStatus `gorm:"type:text" json:"payout_account_status"`
	CreatedAt           time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time           `gorm:"not null" json:"updated_at"`
}

func (SDRProfile) TableName() string { return "sdr_profiles" }

// HasActiveDestination reports whether a transfer can be attempted without a remote check.
func (p SDRProfile) HasActiveDestination() bool {
	return p.PayoutAccountID != "" && p.PayoutAccountStatus == PayoutAccountActive
}

type CompensationType string

const (
	CompensationCommission CompensationType = "commission"
	CompensationSalary     CompensationType = "salary"
)

// JobPosting carries the compensation terms agreed when an SDR was hired.
// CommissionPercentage is a fraction in [0, 1].
type JobPosting struct {
	ID                   snowflake.ID     `gorm:"primaryKey" json:"id"`
	WorkspaceID          snowflake.ID     `gorm:"not null;index" json:"workspace_id"`
	Title                string           `gorm:"type:text;not null" json:"title"`
	CompensationType     CompensationType `gorm:"type:text;not null" json:"compensation_type"`
	CommissionPercentage decimal.Decimal  `gorm:"type:numeric(7,4);not null;default:0" json:"commission_percentage"`
	SalaryAmount         decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0" json:"salary_amount"`
	Currency             string           `gorm:"type:text;not null" json:"currency"`
	CreatedAt            time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"not null" json:"updated_at"`
}

func (JobPosting) TableName() string { return "job_postings" }
