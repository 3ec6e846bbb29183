package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Type string

const (
	TypeCommissionRecorded     Type = "commission_recorded"
	TypeCommissionCharged      Type = "commission_charged"
	TypeCommissionChargeFailed Type = "commission_charge_failed"
	TypePayoutSecured          Type = "payout_secured"
	TypePayoutPaid             Type = "payout_paid"
	TypePayoutHeld             Type = "payout_held"
	TypePayoutFailed           Type = "payout_failed"
	TypeSalaryCharged          Type = "salary_charged"
	TypeSalaryChargeFailed     Type = "salary_charge_failed"
)

// Notification is an in-app message shown to a workspace owner or SDR.
type Notification struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID      `gorm:"not null;index" json:"user_id"`
	WorkspaceID snowflake.ID      `gorm:"not null;index" json:"workspace_id"`
	Type        Type              `gorm:"type:text;not null" json:"type"`
	Title       string            `gorm:"type:text;not null" json:"title"`
	Message     string            `gorm:"type:text;not null" json:"message"`
	Data        datatypes.JSONMap `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead      bool              `gorm:"not null;default:false" json:"is_read"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// Request asks for a notification to be stored and, when Email is set, mailed.
type Request struct {
	UserID      snowflake.ID
	WorkspaceID snowflake.ID
	Type        Type
	Title       string
	Message     string
	Data        map[string]any
	Email       string
}

// Dispatcher is best-effort: callers never see delivery failures and are
// never blocked by a slow store.
type Dispatcher interface {
	Notify(ctx context.Context, req Request)
	AlertOperator(ctx context.Context, message string)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(context.Context, Request)       {}
func (Nop) AlertOperator(context.Context, string) {}
