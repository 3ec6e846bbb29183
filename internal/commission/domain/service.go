package domain

import (
	"context"
	"errors"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/settlement"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RecordRequest carries one closed deal's settlement to the writer.
type RecordRequest struct {
	DealID      snowflake.ID
	WorkspaceID snowflake.ID
	OwnerID     snowflake.ID
	CloserID    snowflake.ID
	// SDRID is nil when the agency closed the deal itself.
	SDRID      *snowflake.ID
	Currency   string
	DealValue  decimal.Decimal
	SignedAt   time.Time
	Breakdown  settlement.Breakdown
	SelfClosed bool
}

type ListRequest struct {
	WorkspaceID     snowflake.ID
	Status          string
	SDRPayoutStatus string
	PageToken       string
	PageSize        int
}

type ListResponse struct {
	pagination.PageInfo
	Commissions []Commission `json:"commissions"`
}

// Writer persists the settlement of a closed deal.
type Writer interface {
	RecordForClosedDeal(ctx context.Context, req RecordRequest) (Commission, error)
}

type Service interface {
	Writer
	ChargeAgency(ctx context.Context, id snowflake.ID) (Commission, error)
	ListByWorkspace(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (Commission, error)
}

var (
	ErrDuplicateCommission  = errors.New("duplicate_commission")
	ErrNotFound             = errors.New("commission_not_found")
	ErrInvalidDeal          = errors.New("invalid_deal")
	ErrInvalidWorkspace     = errors.New("invalid_workspace")
	ErrMissingSDR           = errors.New("missing_sdr")
	ErrAlreadyPaid          = errors.New("commission_already_paid")
	ErrPaymentMethodMissing = errors.New("payment_method_missing")
	ErrChargeFailed         = errors.New("commission_charge_failed")
	ErrConcurrentUpdate     = errors.New("commission_concurrent_update")
	ErrInvalidFilter        = errors.New("invalid_filter")
)
