package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindContract(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contract, error)
	FindDeal(ctx context.Context, db *gorm.DB, workspaceID, id snowflake.ID) (*Deal, error)
	// MarkSigned only succeeds for a contract that is not yet signed.
	MarkSigned(ctx context.Context, db *gorm.DB, contract *Contract) (bool, error)
	CloseDealWon(ctx context.Context, db *gorm.DB, dealID snowflake.ID, closedAt time.Time) error
}
