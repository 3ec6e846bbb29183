package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// payable describes how one table exposes the shared payout columns.
type payable struct {
	table string
	// agencyPaid is the condition meaning the workspace has paid the record.
	agencyPaid      string
	agencyPaidValue any
}

var payables = map[domain.Kind]payable{
	domain.KindSalary: {
		table:           "salary_payments",
		agencyPaid:      "agency_charge_status = ?",
		agencyPaidValue: domain.AgencyChargePaid,
	},
	domain.KindCommission: {
		table:           "commissions",
		agencyPaid:      "status = ?",
		agencyPaidValue: commissiondomain.StatusPaid,
	},
}

func tableFor(kind domain.Kind) (payable, error) {
	p, ok := payables[kind]
	if !ok {
		return payable{}, fmt.Errorf("unknown payout kind %q", kind)
	}
	return p, nil
}

type dueRow struct {
	ID              snowflake.ID    `gorm:"column:id"`
	WorkspaceID     snowflake.ID    `gorm:"column:workspace_id"`
	SDRID           snowflake.ID    `gorm:"column:sdr_id"`
	Currency        string          `gorm:"column:currency"`
	SDRPayoutAmount decimal.Decimal `gorm:"column:sdr_payout_amount"`
	SDRPayoutDate   time.Time       `gorm:"column:sdr_payout_date"`
	SDRPayoutStatus string          `gorm:"column:sdr_payout_status"`
	RetryCount      int             `gorm:"column:retry_count"`
	Version         int64           `gorm:"column:version"`
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertSalary(ctx context.Context, db *gorm.DB, payment *domain.SalaryPayment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindSalary(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.SalaryPayment, error) {
	var payment domain.SalaryPayment
	err := db.WithContext(ctx).Where("id = ?", id).Take(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repo) MarkSalaryCharged(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, reference string, now time.Time) (bool, error) {
	return affectedOne(db.WithContext(ctx).
		Model(&domain.SalaryPayment{}).
		Where("id = ? AND version = ? AND agency_charge_status <> ?", id, version, domain.AgencyChargePaid).
		Updates(map[string]any{
			"agency_charge_status":    domain.AgencyChargePaid,
			"agency_charged_at":       now,
			"agency_charge_reference": reference,
			"failure_reason":          "",
			"version":                 gorm.Expr("version + 1"),
			"updated_at":              now,
		}))
}

func (r *repo) MarkSalaryChargeFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, reason string, now time.Time) (bool, error) {
	return affectedOne(db.WithContext(ctx).
		Model(&domain.SalaryPayment{}).
		Where("id = ? AND version = ? AND agency_charge_status <> ?", id, version, domain.AgencyChargePaid).
		Updates(map[string]any{
			"agency_charge_status": domain.AgencyChargeFailed,
			"failure_reason":       reason,
			"version":              gorm.Expr("version + 1"),
			"updated_at":           now,
		}))
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, filter domain.DueFilter) ([]domain.Record, error) {
	p, err := tableFor(filter.Kind)
	if err != nil {
		return nil, err
	}

	stmt := db.WithContext(ctx).
		Table(p.table).
		Select("id, workspace_id, sdr_id, currency, sdr_payout_amount, sdr_payout_date, sdr_payout_status, retry_count, version").
		Where(p.agencyPaid, p.agencyPaidValue).
		Where("sdr_id IS NOT NULL").
		Where("sdr_payout_status = ?", filter.Kind.ReadyStatus()).
		Where("sdr_payout_date < ?", filter.DueBefore).
		Where("retry_count < ?", filter.MaxRetries)
	if after := filter.After; after != nil {
		stmt = stmt.Where("((sdr_payout_date > ?) OR (sdr_payout_date = ? AND id > ?))", after.PayoutDate, after.PayoutDate, after.ID)
	}

	var rows []dueRow
	err = stmt.
		Order("sdr_payout_date asc, id asc").
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.Record{
			ID:          row.ID,
			Kind:        filter.Kind,
			WorkspaceID: row.WorkspaceID,
			SDRID:       row.SDRID,
			Currency:    row.Currency,
			Amount:      row.SDRPayoutAmount,
			PayoutDate:  row.SDRPayoutDate,
			Status:      domain.PayoutStatus(row.SDRPayoutStatus),
			RetryCount:  row.RetryCount,
			Version:     row.Version,
		})
	}
	return records, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, rec domain.Record, now time.Time) (bool, error) {
	return r.transition(ctx, db, rec, rec.Kind.ReadyStatus(), map[string]any{
		"sdr_payout_status": domain.PayoutProcessing,
	}, now)
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, rec domain.Record, transferID string, now time.Time) (bool, error) {
	return r.transition(ctx, db, rec, domain.PayoutProcessing, map[string]any{
		"sdr_payout_status": domain.PayoutPaid,
		"transfer_id":       transferID,
		"retry_count":       0,
		"failure_reason":    "",
		"sdr_paid_at":       now,
	}, now)
}

func (r *repo) MarkHeld(ctx context.Context, db *gorm.DB, rec domain.Record, reason string, now time.Time) (bool, error) {
	return r.transition(ctx, db, rec, domain.PayoutProcessing, map[string]any{
		"sdr_payout_status": domain.PayoutHeld,
		"failure_reason":    reason,
	}, now)
}

func (r *repo) RecordFailure(ctx context.Context, db *gorm.DB, rec domain.Record, failure domain.Failure, now time.Time) (bool, error) {
	return r.transition(ctx, db, rec, domain.PayoutProcessing, map[string]any{
		"sdr_payout_status": failure.Status,
		"retry_count":       failure.RetryCount,
		"failure_reason":    failure.Reason,
	}, now)
}

// transition moves rec from status `from` when its version still matches.
func (r *repo) transition(ctx context.Context, db *gorm.DB, rec domain.Record, from domain.PayoutStatus, updates map[string]any, now time.Time) (bool, error) {
	p, err := tableFor(rec.Kind)
	if err != nil {
		return false, err
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = now
	return affectedOne(db.WithContext(ctx).
		Table(p.table).
		Where("id = ? AND version = ? AND sdr_payout_status = ?", rec.ID, rec.Version, from).
		Updates(updates))
}

func (r *repo) RecoverStale(ctx context.Context, db *gorm.DB, kind domain.Kind, olderThan, now time.Time) (int64, error) {
	p, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	result := db.WithContext(ctx).
		Table(p.table).
		Where("sdr_payout_status = ? AND updated_at < ?", domain.PayoutProcessing, olderThan).
		Updates(map[string]any{
			"sdr_payout_status": kind.ReadyStatus(),
			"version":           gorm.Expr("version + 1"),
			"updated_at":        now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) ReleaseHeld(ctx context.Context, db *gorm.DB, sdrID snowflake.ID, now time.Time) (int64, error) {
	var released int64
	for _, kind := range []domain.Kind{domain.KindSalary, domain.KindCommission} {
		p := payables[kind]
		result := db.WithContext(ctx).
			Table(p.table).
			Where("sdr_id = ? AND sdr_payout_status = ?", sdrID, domain.PayoutHeld).
			Updates(map[string]any{
				"sdr_payout_status": kind.ReadyStatus(),
				"failure_reason":    "",
				"version":           gorm.Expr("version + 1"),
				"updated_at":        now,
			})
		if result.Error != nil {
			return released, result.Error
		}
		released += result.RowsAffected
	}
	return released, nil
}

func affectedOne(result *gorm.DB) (bool, error) {
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
