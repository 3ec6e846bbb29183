package service

import (
	"context"
	"strings"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	ledgerdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger/domain"
	obsmetrics "github.com/CloserClaus/closer-claus-hub-sub004/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *obsmetrics.SettlementMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *obsmetrics.SettlementMetrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Post(ctx context.Context, tx *gorm.DB, req ledgerdomain.PostRequest) error {
	lines, err := validate(req)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		s.log.Debug("ledger entry skipped: zero amount",
			zap.String("source_type", string(req.SourceType)),
			zap.String("source_id", req.SourceID.String()),
		)
		return nil
	}
	if tx == nil {
		tx = s.db
	}

	inserted := false
	err = tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		entry := ledgerdomain.Entry{
			ID:          s.genID.Generate(),
			WorkspaceID: req.WorkspaceID,
			SourceType:  req.SourceType,
			SourceID:    req.SourceID,
			Currency:    strings.ToLower(strings.TrimSpace(req.Currency)),
			OccurredAt:  req.OccurredAt.UTC(),
			CreatedAt:   now,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "source_type"}, {Name: "source_id"}},
			DoNothing: true,
		}).Omit("Lines").Create(&entry)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		inserted = true

		for i := range lines {
			lines[i].ID = s.genID.Generate()
			lines[i].EntryID = entry.ID
			lines[i].CreatedAt = now
		}
		return tx.Create(&lines).Error
	})
	if err != nil {
		return err
	}
	if inserted {
		s.metrics.IncLedgerEntry(string(req.SourceType))
	} else {
		s.log.Debug("ledger entry already posted",
			zap.String("source_type", string(req.SourceType)),
			zap.String("source_id", req.SourceID.String()),
		)
	}
	return nil
}

func validate(req ledgerdomain.PostRequest) ([]ledgerdomain.Line, error) {
	switch {
	case req.WorkspaceID == 0:
		return nil, ledgerdomain.ErrInvalidWorkspace
	case strings.TrimSpace(string(req.SourceType)) == "":
		return nil, ledgerdomain.ErrInvalidSourceType
	case req.SourceID == 0:
		return nil, ledgerdomain.ErrInvalidSourceID
	case strings.TrimSpace(req.Currency) == "":
		return nil, ledgerdomain.ErrInvalidCurrency
	case req.OccurredAt.IsZero():
		return nil, ledgerdomain.ErrInvalidOccurredAt
	}

	if len(req.Lines) == 0 {
		return nil, ledgerdomain.ErrInvalidEntryLines
	}

	lines := make([]ledgerdomain.Line, 0, len(req.Lines))
	for _, line := range req.Lines {
		if strings.TrimSpace(string(line.Account)) == "" {
			return nil, ledgerdomain.ErrInvalidAccount
		}
		if line.Amount < 0 {
			return nil, ledgerdomain.ErrInvalidLineAmount
		}
		// zero lines appear on self-closed deals; they carry no information
		if line.Amount == 0 {
			continue
		}
		lines = append(lines, ledgerdomain.Line{
			Account:   line.Account,
			Direction: ledgerdomain.Direction(strings.ToLower(string(line.Direction))),
			Amount:    line.Amount,
		})
	}
	// $0 deals settle to nothing; there is no movement to record
	if len(lines) == 0 {
		return nil, nil
	}
	if len(lines) < 2 {
		return nil, ledgerdomain.ErrInvalidEntryLines
	}
	if err := ledgerdomain.ValidateBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}
