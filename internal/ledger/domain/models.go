package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Direction represents debit or credit postings.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

type SourceType string

const (
	SourceCommission       SourceType = "commission"        // agency liability recognised at deal close
	SourceCommissionCharge SourceType = "commission_charge" // agency paid the commission invoice
	SourceSalaryCharge     SourceType = "salary_charge"     // agency paid a monthly salary
	SourceCommissionPayout SourceType = "commission_payout" // SDR received commission
	SourceSalaryPayout     SourceType = "salary_payout"     // SDR received salary
)

type AccountCode string

const (
	// Assets
	AccountAgencyReceivable AccountCode = "agency_receivable"
	AccountCash             AccountCode = "cash"

	// Liabilities
	AccountSDRPayable AccountCode = "sdr_payable"

	// Revenue
	AccountPlatformRevenue AccountCode = "platform_revenue"
)

// Entry is the immutable header for one financial event. A source can post
// at most one entry per workspace.
type Entry struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	WorkspaceID snowflake.ID `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:1"`
	SourceType  SourceType   `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source,priority:2"`
	SourceID    snowflake.ID `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:3"`
	Currency    string       `gorm:"type:text;not null"`
	OccurredAt  time.Time    `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null"`
	Lines       []Line       `gorm:"foreignKey:EntryID"`
}

func (Entry) TableName() string { return "ledger_entries" }

// Line is a double-entry posting in minor units.
type Line struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	EntryID   snowflake.ID `gorm:"column:ledger_entry_id;not null;index"`
	Account   AccountCode  `gorm:"column:account_code;type:text;not null"`
	Direction Direction    `gorm:"type:text;not null"`
	Amount    int64        `gorm:"not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (Line) TableName() string { return "ledger_entry_lines" }

func DebitLine(account AccountCode, amount int64) Line {
	return Line{Account: account, Direction: Debit, Amount: amount}
}

func CreditLine(account AccountCode, amount int64) Line {
	return Line{Account: account, Direction: Credit, Amount: amount}
}
