package domain

import (
	"context"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status          Status
	SDRPayoutStatus string
	SDRID           *snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, commission *Commission) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Commission, error)
	List(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Commission, error)
	// MarkAgencyPaid flips a pending commission to paid if version still matches.
	MarkAgencyPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, reference string, now time.Time) (bool, error)
	MarkAgencyChargeFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, reason string, now time.Time) (bool, error)
}
