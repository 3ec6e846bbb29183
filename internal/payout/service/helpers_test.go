package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/events"
	ledgerdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger/domain"
	ledgerservice "github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger/service"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/notificationtest"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/repository"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/paymenttest"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/testutil"
	tierdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/tier/domain"
	workspacedomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/domain"
	workspacerepo "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	workspaceID = snowflake.ID(1)
	ownerID     = snowflake.ID(10)
	sdrActive   = snowflake.ID(20) // connected, active account
	sdrNoAcct   = snowflake.ID(21) // never connected an account
	sdrPending  = snowflake.ID(22) // connected, not yet verified locally
	sdrSecond   = snowflake.ID(23) // second active account
	salaryJobID = snowflake.ID(40)
	commJobID   = snowflake.ID(41)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	if l.held {
		return "", false, nil
	}
	return "token", true, nil
}

func (l *fakeLocker) Release(context.Context, string, string) error {
	l.released++
	return nil
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	gateway   *paymenttest.Gateway
	notifier  *notificationtest.Recorder
	publisher *recordingPublisher
	locker    *fakeLocker
	ledger    ledgerdomain.Service
	svc       domain.Service
	processor domain.Processor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t,
		&domain.SalaryPayment{},
		&commissiondomain.Commission{},
		&ledgerdomain.Entry{},
		&ledgerdomain.Line{},
		&workspacedomain.Workspace{},
		&workspacedomain.Member{},
		&workspacedomain.JobPosting{},
		&workspacedomain.SDRProfile{},
	)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	now := clk.Now()

	require.NoError(t, db.Create(&workspacedomain.Workspace{
		ID: workspaceID, Name: "Acme", OwnerID: ownerID, SubscriptionTier: tierdomain.TierStarter,
		StripeCustomerID: "cus_1", DefaultPaymentMethodID: "pm_1", CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&[]workspacedomain.JobPosting{
		{
			ID: salaryJobID, WorkspaceID: workspaceID, Title: "Salaried SDR",
			CompensationType: workspacedomain.CompensationSalary,
			SalaryAmount:     decimal.RequireFromString("3000"),
			Currency:         "usd", CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: commJobID, WorkspaceID: workspaceID, Title: "Commission SDR",
			CompensationType:     workspacedomain.CompensationCommission,
			CommissionPercentage: decimal.RequireFromString("0.10"),
			Currency:             "usd", CreatedAt: now, UpdatedAt: now,
		},
	}).Error)
	require.NoError(t, db.Create(&[]workspacedomain.SDRProfile{
		{ID: 1, UserID: sdrActive, Email: "active@example.com", Level: 1, PayoutAccountID: "acct_a", PayoutAccountStatus: workspacedomain.PayoutAccountActive, CreatedAt: now, UpdatedAt: now},
		{ID: 2, UserID: sdrNoAcct, Email: "none@example.com", Level: 1, CreatedAt: now, UpdatedAt: now},
		{ID: 3, UserID: sdrPending, Email: "pending@example.com", Level: 1, PayoutAccountID: "acct_c", PayoutAccountStatus: workspacedomain.PayoutAccountPending, CreatedAt: now, UpdatedAt: now},
		{ID: 4, UserID: sdrSecond, Email: "second@example.com", Level: 1, PayoutAccountID: "acct_d", PayoutAccountStatus: workspacedomain.PayoutAccountActive, CreatedAt: now, UpdatedAt: now},
	}).Error)

	node := testutil.Node(t)
	f := &fixture{
		db:        db,
		node:      node,
		clock:     clk,
		gateway:   paymenttest.New().ActiveAccount("acct_a").ActiveAccount("acct_d"),
		notifier:  &notificationtest.Recorder{},
		publisher: &recordingPublisher{},
		locker:    &fakeLocker{},
	}
	ledger := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk})
	f.ledger = ledger
	payoutCfg := config.NewStaticPayoutConfigHolder(config.DefaultPayoutConfig())

	f.svc = New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       repository.Provide(),
		Workspaces: workspacerepo.Provide(),
		Ledger:     ledger,
		Gateway:    f.gateway,
		Notifier:   f.notifier,
		Publisher:  f.publisher,
		Payout:     payoutCfg,
	})
	f.processor = NewProcessor(ProcessorParams{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clk,
		Repo:       repository.Provide(),
		Workspaces: workspacerepo.Provide(),
		Ledger:     ledger,
		Gateway:    f.gateway,
		Notifier:   f.notifier,
		Publisher:  f.publisher,
		Payout:     payoutCfg,
		Locker:     f.locker,
	})
	return f
}

// newProcessor builds a processor over the fixture with its own payout
// config and repository.
func (f *fixture) newProcessor(cfg config.PayoutConfig, repo domain.Repository) domain.Processor {
	return NewProcessor(ProcessorParams{
		DB:         f.db,
		Log:        zap.NewNop(),
		Clock:      f.clock,
		Repo:       repo,
		Workspaces: workspacerepo.Provide(),
		Ledger:     f.ledger,
		Gateway:    f.gateway,
		Notifier:   f.notifier,
		Publisher:  f.publisher,
		Payout:     config.NewStaticPayoutConfigHolder(cfg),
	})
}

// claimPanicRepo panics while claiming one record.
type claimPanicRepo struct {
	domain.Repository
	id snowflake.ID
}

func (r claimPanicRepo) Claim(ctx context.Context, db *gorm.DB, rec domain.Record, now time.Time) (bool, error) {
	if rec.ID == r.id {
		panic("claim exploded")
	}
	return r.Repository.Claim(ctx, db, rec, now)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) seedSalary(t *testing.T, id, sdr snowflake.ID, payoutDate time.Time, charge domain.AgencyChargeStatus) {
	t.Helper()
	now := f.clock.Now()
	require.NoError(t, f.db.Create(&domain.SalaryPayment{
		ID: id, WorkspaceID: workspaceID, SDRID: sdr, JobID: salaryJobID, Currency: "usd",
		SalaryAmount:       decimal.RequireFromString("3000"),
		AgencyChargeStatus: charge,
		SDRPayoutDate:      payoutDate,
		SDRPayoutStatus:    domain.PayoutScheduled,
		SDRPayoutAmount:    decimal.RequireFromString("3000"),
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}).Error)
}

func (f *fixture) seedCommission(t *testing.T, id, sdr snowflake.ID, payoutDate time.Time, status commissiondomain.Status) {
	t.Helper()
	now := f.clock.Now()
	require.NoError(t, f.db.Create(&commissiondomain.Commission{
		ID: id, WorkspaceID: workspaceID, DealID: id + 5000, CloserID: sdr, SDRID: &sdr, Currency: "usd",
		DealValue:             decimal.RequireFromString("10000"),
		SDRCommissionAmount:   decimal.RequireFromString("1000"),
		AgencyRakeAmount:      decimal.RequireFromString("200"),
		PlatformCutPercentage: decimal.RequireFromString("0.05"),
		PlatformCutAmount:     decimal.RequireFromString("50"),
		SDRPayoutAmount:       decimal.RequireFromString("950"),
		TotalAgencyOwed:       decimal.RequireFromString("1200"),
		Status:                status,
		SDRPayoutStatus:       domain.PayoutPending,
		SDRPayoutDate:         &payoutDate,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}).Error)
}

func (f *fixture) salary(t *testing.T, id snowflake.ID) domain.SalaryPayment {
	t.Helper()
	var p domain.SalaryPayment
	require.NoError(t, f.db.First(&p, id).Error)
	return p
}

func (f *fixture) commission(t *testing.T, id snowflake.ID) commissiondomain.Commission {
	t.Helper()
	var c commissiondomain.Commission
	require.NoError(t, f.db.First(&c, id).Error)
	return c
}

func ledgerBalances(t *testing.T, db *gorm.DB) map[ledgerdomain.AccountCode]int64 {
	t.Helper()
	var lines []ledgerdomain.Line
	require.NoError(t, db.Find(&lines).Error)
	out := map[ledgerdomain.AccountCode]int64{}
	for _, line := range lines {
		if line.Direction == ledgerdomain.Debit {
			out[line.Account] += line.Amount
		} else {
			out[line.Account] -= line.Amount
		}
	}
	return out
}
