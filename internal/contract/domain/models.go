package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type DealStage string

const (
	DealStageOpen      DealStage = "open"
	DealStageClosedWon DealStage = "closed_won"
	DealStageLost      DealStage = "closed_lost"
)

// Deal is a CRM opportunity. AssigneeID is the user who works it, either an
// SDR or the workspace owner.
type Deal struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	WorkspaceID  snowflake.ID    `gorm:"not null;index" json:"workspace_id"`
	AssigneeID   snowflake.ID    `gorm:"not null;index" json:"assignee_id"`
	JobPostingID *snowflake.ID   `json:"job_posting_id,omitempty"`
	Title        string          `gorm:"type:text;not null" json:"title"`
	Value        decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"value"`
	Currency     string          `gorm:"type:text;not null" json:"currency"`
	Stage        DealStage       `gorm:"type:text;not null" json:"stage"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

func (Deal) TableName() string { return "deals" }

type ContractStatus string

const (
	ContractDraft  ContractStatus = "draft"
	ContractSent   ContractStatus = "sent"
	ContractSigned ContractStatus = "signed"
)

type Contract struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	WorkspaceID snowflake.ID   `gorm:"not null;index" json:"workspace_id"`
	DealID      snowflake.ID   `gorm:"not null;index" json:"deal_id"`
	Status      ContractStatus `gorm:"type:text;not null" json:"status"`
	SignerName  string         `gorm:"type:text" json:"signer_name,omitempty"`
	SignerEmail string         `gorm:"type:text" json:"signer_email,omitempty"`
	Signature   string         `gorm:"type:text" json:"-"`
	SignerIP    string         `gorm:"column:signer_ip;type:text" json:"-"`
	SignedAt    *time.Time     `json:"signed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Contract) TableName() string { return "contracts" }
