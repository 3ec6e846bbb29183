package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindContract(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Contract, error) {
	var contract domain.Contract
	err := db.WithContext(ctx).Where("id = ?", id).Take(&contract).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repo) FindDeal(ctx context.Context, db *gorm.DB, workspaceID, id snowflake.ID) (*domain.Deal, error) {
	var deal domain.Deal
	err := db.WithContext(ctx).Where("workspace_id = ? AND id = ?", workspaceID, id).Take(&deal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *repo) MarkSigned(ctx context.Context, db *gorm.DB, contract *domain.Contract) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Contract{}).
		Where("id = ? AND status <> ?", contract.ID, domain.ContractSigned).
		Updates(map[string]any{
			"status":       domain.ContractSigned,
			"signer_name":  contract.SignerName,
			"signer_email": contract.SignerEmail,
			"signature":    contract.Signature,
			"signer_ip":    contract.SignerIP,
			"signed_at":    contract.SignedAt,
			"updated_at":   contract.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) CloseDealWon(ctx context.Context, db *gorm.DB, dealID snowflake.ID, closedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("id = ?", dealID).
		Updates(map[string]any{
			"stage":      domain.DealStageClosedWon,
			"closed_at":  closedAt,
			"updated_at": closedAt,
		}).Error
}
