package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, commission *domain.Commission) error {
	return db.WithContext(ctx).Create(commission).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Commission, error) {
	var commission domain.Commission
	err := db.WithContext(ctx).Where("id = ?", id).Take(&commission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

// List returns up to page.Limit()+1 rows so the caller can tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Commission, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Commission{}).
		Where("workspace_id = ?", workspaceID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.SDRPayoutStatus != "" {
		stmt = stmt.Where("sdr_payout_status = ?", filter.SDRPayoutStatus)
	}
	if filter.SDRID != nil {
		stmt = stmt.Where("sdr_id = ?", *filter.SDRID)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		createdAt, id, err := cursor.Position()
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}

	var commissions []*domain.Commission
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.Limit() + 1).
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *repo) MarkAgencyPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, reference string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Commission{}).
		Where("id = ? AND version = ? AND status = ?", id, version, domain.StatusPending).
		Updates(map[string]any{
			"status":                domain.StatusPaid,
			"paid_at":               now,
			"charge_reference":      reference,
			"charge_failure_reason": "",
			"version":               gorm.Expr("version + 1"),
			"updated_at":            now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkAgencyChargeFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, reason string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Commission{}).
		Where("id = ? AND version = ? AND status = ?", id, version, domain.StatusPending).
		Updates(map[string]any{
			"charge_failure_reason": reason,
			"version":               gorm.Expr("version + 1"),
			"updated_at":            now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
