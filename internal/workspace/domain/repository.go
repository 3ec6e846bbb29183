package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository lookups return (nil, nil) when the row does not exist.
type Repository interface {
	FindWorkspace(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Workspace, error)
	FindJobPosting(ctx context.Context, db *gorm.DB, workspaceID, id snowflake.ID) (*JobPosting, error)
	FindSDRProfile(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*SDRProfile, error)
	FindMember(ctx context.Context, db *gorm.DB, workspaceID, userID snowflake.ID) (*Member, error)
	CountSDRSeats(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID) (int64, error)
	InsertMember(ctx context.Context, db *gorm.DB, member *Member) error
	UpdatePayoutAccount(ctx context.Context, db *gorm.DB, userID snowflake.ID, accountID string, status PayoutAccountStatus, now time.Time) error
}

var (
	ErrWorkspaceNotFound  = errors.New("workspace_not_found")
	ErrJobPostingNotFound = errors.New("job_posting_not_found")
	ErrSDRNotFound        = errors.New("sdr_not_found")
	ErrAlreadyMember      = errors.New("already_member")
)
