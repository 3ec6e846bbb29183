package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func first[T any](db *gorm.DB, query string, args ...any) (*T, error) {
	var row T
	err := db.Where(query, args...).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) FindWorkspace(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Workspace, error) {
	return first[domain.Workspace](db.WithContext(ctx), "id = ?", id)
}

func (r *repo) FindJobPosting(ctx context.Context, db *gorm.DB, workspaceID, id snowflake.ID) (*domain.JobPosting, error) {
	return first[domain.JobPosting](db.WithContext(ctx), "workspace_id = ? AND id = ?", workspaceID, id)
}

func (r *repo) FindSDRProfile(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.SDRProfile, error) {
	return first[domain.SDRProfile](db.WithContext(ctx), "user_id = ?", userID)
}

func (r *repo) FindMember(ctx context.Context, db *gorm.DB, workspaceID, userID snowflake.ID) (*domain.Member, error) {
	return first[domain.Member](db.WithContext(ctx), "workspace_id = ? AND user_id = ?", workspaceID, userID)
}

func (r *repo) CountSDRSeats(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("workspace_id = ? AND role = ?", workspaceID, domain.MemberRoleSDR).
		Count(&count).Error
	return count, err
}

func (r *repo) InsertMember(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Create(member).Error
}

func (r *repo) UpdatePayoutAccount(ctx context.Context, db *gorm.DB, userID snowflake.ID, accountID string, status domain.PayoutAccountStatus, now time.Time) error {
	result := db.WithContext(ctx).
		Model(&domain.SDRProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"payout_account_id":     accountID,
			"payout_account_status": status,
			"updated_at":            now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrSDRNotFound
	}
	return nil
}
