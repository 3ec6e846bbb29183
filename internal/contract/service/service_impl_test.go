package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/repository"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/testutil"
	tierdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/tier/domain"
	workspacedomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/domain"
	workspacerepo "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubWriter struct {
	requests []commissiondomain.RecordRequest
	err      error
}

func (w *stubWriter) RecordForClosedDeal(_ context.Context, req commissiondomain.RecordRequest) (commissiondomain.Commission, error) {
	w.requests = append(w.requests, req)
	if w.err != nil {
		return commissiondomain.Commission{}, w.err
	}
	return commissiondomain.Commission{
		ID:          snowflake.ID(900),
		DealID:      req.DealID,
		WorkspaceID: req.WorkspaceID,
		SDRID:       req.SDRID,
	}, nil
}

const (
	workspaceID = snowflake.ID(1)
	ownerID     = snowflake.ID(10)
	sdrUserID   = snowflake.ID(20)
	jobID       = snowflake.ID(30)
)

type fixture struct {
	svc    domain.Service
	db     *gorm.DB
	writer *stubWriter
	now    time.Time
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t,
		&domain.Deal{},
		&domain.Contract{},
		&workspacedomain.Workspace{},
		&workspacedomain.JobPosting{},
		&workspacedomain.SDRProfile{},
	)
	clk := clock.NewFakeClock(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))
	now := clk.Now()

	require.NoError(t, db.Create(&workspacedomain.Workspace{
		ID: workspaceID, Name: "Acme", OwnerID: ownerID, SubscriptionTier: tierdomain.TierStarter,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&workspacedomain.JobPosting{
		ID: jobID, WorkspaceID: workspaceID, Title: "Outbound SDR",
		CompensationType:     workspacedomain.CompensationCommission,
		CommissionPercentage: decimal.RequireFromString("0.10"),
		Currency:             "usd", CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&workspacedomain.SDRProfile{
		ID: 3, UserID: sdrUserID, Level: 2, Email: "sdr@example.com", CreatedAt: now, UpdatedAt: now,
	}).Error)

	writer := &stubWriter{}
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clk,
		Repo:       repository.Provide(),
		Workspaces: workspacerepo.Provide(),
		Writer:     writer,
	})
	return fixture{svc: svc, db: db, writer: writer, now: now}
}

func (f fixture) seedDeal(t *testing.T, id snowflake.ID, assignee snowflake.ID, job *snowflake.ID, value string) snowflake.ID {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.Deal{
		ID: id, WorkspaceID: workspaceID, AssigneeID: assignee, JobPostingID: job,
		Title: "Deal", Value: decimal.RequireFromString(value), Currency: "usd",
		Stage: domain.DealStageOpen, CreatedAt: f.now, UpdatedAt: f.now,
	}).Error)
	contractID := id + 1000
	require.NoError(t, f.db.Create(&domain.Contract{
		ID: contractID, WorkspaceID: workspaceID, DealID: id, Status: domain.ContractSent,
		CreatedAt: f.now, UpdatedAt: f.now,
	}).Error)
	return contractID
}

func signRequest(id snowflake.ID) domain.SignRequest {
	return domain.SignRequest{
		ContractID:  id,
		SignerName:  "Pat Buyer",
		SignerEmail: "pat@buyer.test",
		Signature:   "data:image/png;base64,AAAA",
		SignerIP:    "203.0.113.7",
	}
}

func TestSignSDRClosedDeal(t *testing.T) {
	f := setup(t)
	job := jobID
	contractID := f.seedDeal(t, 100, sdrUserID, &job, "10000")

	res, err := f.svc.Sign(context.Background(), signRequest(contractID))
	require.NoError(t, err)

	assert.False(t, res.SelfClosed)
	assert.Equal(t, domain.ContractSigned, res.Contract.Status)
	assert.Equal(t, domain.DealStageClosedWon, res.Deal.Stage)
	assert.True(t, res.Breakdown.AgencyRake.Equal(decimal.NewFromInt(200)))
	assert.True(t, res.Breakdown.SDRGrossCommission.Equal(decimal.NewFromInt(1000)))
	assert.True(t, res.Breakdown.PlatformCutAmount.Equal(decimal.NewFromInt(40)))
	assert.True(t, res.Breakdown.SDRNetPayout.Equal(decimal.NewFromInt(960)))
	assert.True(t, res.Breakdown.TotalAgencyOwed.Equal(decimal.NewFromInt(1200)))
	require.NotNil(t, res.Commission)
	assert.Empty(t, res.CommissionError)

	require.Len(t, f.writer.requests, 1)
	req := f.writer.requests[0]
	require.NotNil(t, req.SDRID)
	assert.Equal(t, sdrUserID, *req.SDRID)
	assert.Equal(t, ownerID, req.OwnerID)
	assert.Equal(t, "usd", req.Currency)
	assert.True(t, req.SignedAt.Equal(f.now))

	var stored domain.Contract
	require.NoError(t, f.db.First(&stored, contractID).Error)
	assert.Equal(t, domain.ContractSigned, stored.Status)
	assert.Equal(t, "203.0.113.7", stored.SignerIP)
	require.NotNil(t, stored.SignedAt)

	var deal domain.Deal
	require.NoError(t, f.db.First(&deal, 100).Error)
	assert.Equal(t, domain.DealStageClosedWon, deal.Stage)
	require.NotNil(t, deal.ClosedAt)
}

func TestSignSelfClosedDealSkipsJobLinkage(t *testing.T) {
	f := setup(t)
	contractID := f.seedDeal(t, 101, ownerID, nil, "5000")

	res, err := f.svc.Sign(context.Background(), signRequest(contractID))
	require.NoError(t, err)

	assert.True(t, res.SelfClosed)
	assert.True(t, res.Breakdown.AgencyRake.Equal(decimal.NewFromInt(100)))
	assert.True(t, res.Breakdown.SDRGrossCommission.IsZero())
	assert.True(t, res.Breakdown.TotalAgencyOwed.Equal(decimal.NewFromInt(100)))

	require.Len(t, f.writer.requests, 1)
	assert.Nil(t, f.writer.requests[0].SDRID)
	assert.True(t, f.writer.requests[0].SelfClosed)
}

func TestSignMissingProfileSettlesAtLevelOne(t *testing.T) {
	f := setup(t)
	job := jobID
	contractID := f.seedDeal(t, 102, snowflake.ID(77), &job, "1000")

	res, err := f.svc.Sign(context.Background(), signRequest(contractID))
	require.NoError(t, err)
	assert.True(t, res.Breakdown.PlatformCutPercentage.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, res.Breakdown.SDRNetPayout.Equal(decimal.NewFromInt(95)))
}

func TestSignRejectsBeforeWriting(t *testing.T) {
	f := setup(t)
	job := jobID
	missingJob := snowflake.ID(999)

	noLink := f.seedDeal(t, 110, sdrUserID, nil, "1000")
	badJob := f.seedDeal(t, 111, sdrUserID, &missingJob, "1000")
	negative := f.seedDeal(t, 112, sdrUserID, &job, "-1")

	tests := []struct {
		name    string
		req     domain.SignRequest
		wantErr error
	}{
		{name: "unknown contract", req: signRequest(snowflake.ID(5)), wantErr: domain.ErrNotFound},
		{name: "missing signer", req: domain.SignRequest{ContractID: noLink}, wantErr: domain.ErrInvalidSigner},
		{name: "no job posting", req: signRequest(noLink), wantErr: domain.ErrMissingJobLinkage},
		{name: "unknown job posting", req: signRequest(badJob), wantErr: domain.ErrMissingJobLinkage},
		{name: "negative value", req: signRequest(negative), wantErr: domain.ErrInvalidDealValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Sign(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, f.writer.requests)
	var signed int64
	require.NoError(t, f.db.Model(&domain.Contract{}).Where("status = ?", domain.ContractSigned).Count(&signed).Error)
	assert.Zero(t, signed)
}

func TestSignTwiceFails(t *testing.T) {
	f := setup(t)
	job := jobID
	contractID := f.seedDeal(t, 120, sdrUserID, &job, "1000")

	_, err := f.svc.Sign(context.Background(), signRequest(contractID))
	require.NoError(t, err)
	_, err = f.svc.Sign(context.Background(), signRequest(contractID))
	assert.ErrorIs(t, err, domain.ErrAlreadySigned)
	assert.Len(t, f.writer.requests, 1)
}

func TestSignUnknownTier(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Model(&workspacedomain.Workspace{}).
		Where("id = ?", workspaceID).
		Update("subscription_tier", "platinum").Error)
	contractID := f.seedDeal(t, 130, ownerID, nil, "1000")

	_, err := f.svc.Sign(context.Background(), signRequest(contractID))
	assert.ErrorIs(t, err, tierdomain.ErrUnknownTier)
}

func TestSignKeepsSignatureWhenCommissionFails(t *testing.T) {
	f := setup(t)
	f.writer.err = errors.New("ledger unavailable")
	job := jobID
	contractID := f.seedDeal(t, 140, sdrUserID, &job, "1000")

	res, err := f.svc.Sign(context.Background(), signRequest(contractID))
	require.NoError(t, err)
	assert.Nil(t, res.Commission)
	assert.Equal(t, "ledger unavailable", res.CommissionError)

	var stored domain.Contract
	require.NoError(t, f.db.First(&stored, contractID).Error)
	assert.Equal(t, domain.ContractSigned, stored.Status)
}
