package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/events"
	ledgerdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger/domain"
	notificationdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/domain"
	obsmetrics "github.com/CloserClaus/closer-claus-hub-sub004/internal/observability/metrics"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	paymentdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/settlement"
	tierdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/tier/domain"
	workspacedomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Workspaces workspacedomain.Repository
	Ledger     ledgerdomain.Service
	Gateway    paymentdomain.Gateway
	Notifier   notificationdomain.Dispatcher
	Publisher  events.Publisher
	Payout     *config.PayoutConfigHolder
	Metrics    *obsmetrics.SettlementMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	workspaces workspacedomain.Repository
	ledger     ledgerdomain.Service
	gateway    paymentdomain.Gateway
	notifier   notificationdomain.Dispatcher
	publisher  events.Publisher
	payout     *config.PayoutConfigHolder
	metrics    *obsmetrics.SettlementMetrics
}

func New(p Params) domain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payout.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		workspaces: p.Workspaces,
		ledger:     p.Ledger,
		gateway:    p.Gateway,
		notifier:   p.Notifier,
		publisher:  publisher,
		payout:     p.Payout,
		metrics:    p.Metrics,
	}
}

// HireSDR seats an SDR in the workspace. Salaried postings also schedule the
// first month of salary one calendar month after the hire.
func (s *Service) HireSDR(ctx context.Context, req domain.HireRequest) (domain.HireResult, error) {
	if req.WorkspaceID == 0 || req.SDRID == 0 || req.JobID == 0 {
		return domain.HireResult{}, domain.ErrInvalidRequest
	}
	if req.SalaryAmount.IsNegative() {
		return domain.HireResult{}, domain.ErrInvalidSalary
	}
	hiredAt := req.HiredAt
	if hiredAt.IsZero() {
		hiredAt = s.clock.Now()
	}

	workspace, err := s.workspaces.FindWorkspace(ctx, s.db, req.WorkspaceID)
	if err != nil {
		return domain.HireResult{}, err
	}
	if workspace == nil {
		return domain.HireResult{}, workspacedomain.ErrWorkspaceNotFound
	}
	rates, err := tierdomain.RatesFor(workspace.SubscriptionTier)
	if err != nil {
		return domain.HireResult{}, err
	}
	job, err := s.workspaces.FindJobPosting(ctx, s.db, req.WorkspaceID, req.JobID)
	if err != nil {
		return domain.HireResult{}, err
	}
	if job == nil {
		return domain.HireResult{}, workspacedomain.ErrJobPostingNotFound
	}

	var payment *domain.SalaryPayment
	if job.CompensationType == workspacedomain.CompensationSalary {
		amount := job.SalaryAmount
		if req.SalaryAmount.IsPositive() {
			amount = req.SalaryAmount
		}
		amount = settlement.RoundMoney(amount)
		if !amount.IsPositive() {
			return domain.HireResult{}, domain.ErrInvalidSalary
		}
		payoutDate, err := domain.NextPayoutDate(hiredAt)
		if err != nil {
			return domain.HireResult{}, err
		}
		currency := strings.ToLower(strings.TrimSpace(job.Currency))
		if currency == "" {
			currency = s.payout.Get().Currency
		}
		now := s.clock.Now()
		payment = &domain.SalaryPayment{
			ID:                 s.genID.Generate(),
			WorkspaceID:        req.WorkspaceID,
			SDRID:              req.SDRID,
			JobID:              job.ID,
			Currency:           currency,
			SalaryAmount:       amount,
			AgencyChargeStatus: domain.AgencyChargePending,
			SDRPayoutDate:      payoutDate,
			SDRPayoutStatus:    domain.PayoutScheduled,
			SDRPayoutAmount:    amount,
			Version:            1,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
	}

	jobID := job.ID
	member := workspacedomain.Member{
		ID:           s.genID.Generate(),
		WorkspaceID:  req.WorkspaceID,
		UserID:       req.SDRID,
		Role:         workspacedomain.MemberRoleSDR,
		JobPostingID: &jobID,
		CreatedAt:    hiredAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.workspaces.FindMember(ctx, tx, req.WorkspaceID, req.SDRID)
		if err != nil {
			return err
		}
		if existing != nil {
			return workspacedomain.ErrAlreadyMember
		}
		seats, err := s.workspaces.CountSDRSeats(ctx, tx, req.WorkspaceID)
		if err != nil {
			return err
		}
		if !rates.AllowsSeats(int(seats) + 1) {
			return domain.ErrSeatLimitReached
		}
		if err := s.workspaces.InsertMember(ctx, tx, &member); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return workspacedomain.ErrAlreadyMember
			}
			return err
		}
		if payment == nil {
			return nil
		}
		return s.repo.InsertSalary(ctx, tx, payment)
	})
	if err != nil {
		return domain.HireResult{}, err
	}

	fields := []zap.Field{
		zap.String("workspace_id", req.WorkspaceID.String()),
		zap.String("sdr_id", req.SDRID.String()),
		zap.String("job_id", job.ID.String()),
	}
	if payment != nil {
		fields = append(fields,
			zap.String("salary_payment_id", payment.ID.String()),
			zap.Time("sdr_payout_date", payment.SDRPayoutDate),
		)
	}
	s.log.Info("sdr hired", fields...)

	return domain.HireResult{MemberID: member.ID, SalaryPayment: payment}, nil
}

func (s *Service) ChargeAgency(ctx context.Context, id snowflake.ID) (domain.SalaryPayment, error) {
	if id == 0 {
		return domain.SalaryPayment{}, domain.ErrNotFound
	}
	payment, err := s.repo.FindSalary(ctx, s.db, id)
	if err != nil {
		return domain.SalaryPayment{}, err
	}
	if payment == nil {
		return domain.SalaryPayment{}, domain.ErrNotFound
	}
	if payment.AgencyChargeStatus == domain.AgencyChargePaid {
		return domain.SalaryPayment{}, domain.ErrAlreadyCharged
	}
	if !s.gateway.Configured() {
		return domain.SalaryPayment{}, paymentdomain.ErrNotConfigured
	}
	workspace, err := s.workspaces.FindWorkspace(ctx, s.db, payment.WorkspaceID)
	if err != nil {
		return domain.SalaryPayment{}, err
	}
	if workspace == nil {
		return domain.SalaryPayment{}, workspacedomain.ErrWorkspaceNotFound
	}
	if !workspace.CanBeCharged() {
		return domain.SalaryPayment{}, domain.ErrPaymentMethodMissing
	}

	amount := settlement.ToMinorUnits(payment.SalaryAmount)
	cfg := s.payout.Get()
	chargeCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
	charge, chargeErr := s.gateway.ChargeCustomer(chargeCtx, paymentdomain.ChargeRequest{
		CustomerID:      workspace.StripeCustomerID,
		PaymentMethodID: workspace.DefaultPaymentMethodID,
		Amount:          amount,
		Currency:        payment.Currency,
		IdempotencyKey:  payment.ChargeIdempotencyKey(),
		Description:     "SDR salary for " + payment.SDRPayoutDate.Format("January 2006"),
		Metadata: map[string]string{
			"salary_payment_id": payment.ID.String(),
			"sdr_id":            payment.SDRID.String(),
			"workspace_id":      payment.WorkspaceID.String(),
		},
	})
	cancel()
	if chargeErr == nil && !charge.Succeeded() {
		chargeErr = fmt.Errorf("charge status %q", charge.Status)
	}
	if chargeErr != nil {
		return domain.SalaryPayment{}, s.chargeFailed(ctx, *payment, *workspace, chargeErr)
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkSalaryCharged(ctx, tx, payment.ID, payment.Version, charge.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentUpdate
		}
		return s.ledger.Post(ctx, tx, ledgerdomain.PostRequest{
			WorkspaceID: payment.WorkspaceID,
			SourceType:  ledgerdomain.SourceSalaryCharge,
			SourceID:    payment.ID,
			Currency:    payment.Currency,
			OccurredAt:  now,
			Lines: []ledgerdomain.Line{
				ledgerdomain.DebitLine(ledgerdomain.AccountCash, amount),
				ledgerdomain.CreditLine(ledgerdomain.AccountSDRPayable, amount),
			},
		})
	})
	if err != nil {
		s.log.Error("salary charged but not marked paid",
			zap.String("salary_payment_id", payment.ID.String()),
			zap.String("charge_id", charge.ID),
			zap.Error(err),
		)
		return domain.SalaryPayment{}, err
	}
	s.metrics.IncAgencyCharge(string(domain.KindSalary), "paid")

	payment.AgencyChargeStatus = domain.AgencyChargePaid
	payment.AgencyChargedAt = &now
	payment.AgencyChargeReference = charge.ID
	payment.FailureReason = ""
	payment.Version++
	payment.UpdatedAt = now

	if err := s.publisher.Publish(ctx, events.Event{
		Type:        events.EventSalaryCharged,
		WorkspaceID: payment.WorkspaceID,
		SubjectID:   payment.ID,
		DedupeKey:   events.EventSalaryCharged + ":" + payment.ID.String(),
		Payload:     salaryData(*payment),
		OccurredAt:  now,
	}); err != nil {
		s.log.Warn("settlement event not published",
			zap.String("event_type", events.EventSalaryCharged),
			zap.String("salary_payment_id", payment.ID.String()),
			zap.Error(err),
		)
	}

	s.notifier.Notify(ctx, notificationdomain.Request{
		UserID:      workspace.OwnerID,
		WorkspaceID: workspace.ID,
		Type:        notificationdomain.TypeSalaryCharged,
		Title:       "Salary paid",
		Message:     fmt.Sprintf("%s was charged for an SDR salary.", settlement.FormatMoney(payment.SalaryAmount, payment.Currency)),
		Data:        salaryData(*payment),
	})
	secured := notificationdomain.Request{
		UserID:      payment.SDRID,
		WorkspaceID: payment.WorkspaceID,
		Type:        notificationdomain.TypePayoutSecured,
		Title:       "Salary secured",
		Message: fmt.Sprintf("Your salary of %s is funded and will be paid out on %s.",
			settlement.FormatMoney(payment.SDRPayoutAmount, payment.Currency),
			payment.SDRPayoutDate.Format("January 2, 2006")),
		Data: salaryData(*payment),
	}
	if profile, err := s.workspaces.FindSDRProfile(ctx, s.db, payment.SDRID); err == nil && profile != nil {
		secured.Email = profile.Email
	}
	s.notifier.Notify(ctx, secured)

	return *payment, nil
}

func (s *Service) chargeFailed(ctx context.Context, payment domain.SalaryPayment, workspace workspacedomain.Workspace, chargeErr error) error {
	s.metrics.IncAgencyCharge(string(domain.KindSalary), "failed")
	s.log.Warn("salary charge failed",
		zap.String("salary_payment_id", payment.ID.String()),
		zap.Error(chargeErr),
	)

	if _, err := s.repo.MarkSalaryChargeFailed(ctx, s.db, payment.ID, payment.Version, chargeErr.Error(), s.clock.Now()); err != nil {
		s.log.Error("salary charge failure not recorded",
			zap.String("salary_payment_id", payment.ID.String()),
			zap.Error(err),
		)
	}
	payment.AgencyChargeStatus = domain.AgencyChargeFailed
	s.notifier.Notify(ctx, notificationdomain.Request{
		UserID:      workspace.OwnerID,
		WorkspaceID: workspace.ID,
		Type:        notificationdomain.TypeSalaryChargeFailed,
		Title:       "Salary payment failed",
		Message: fmt.Sprintf("We could not charge %s for an SDR salary. Please update your payment method.",
			settlement.FormatMoney(payment.SalaryAmount, payment.Currency)),
		Data: salaryData(payment),
	})
	return fmt.Errorf("%w: %v", domain.ErrChargeFailed, chargeErr)
}

// UpdatePayoutAccount verifies the connected account remotely before storing
// it. An active account releases everything held for the SDR.
func (s *Service) UpdatePayoutAccount(ctx context.Context, sdrID snowflake.ID, accountID string) (domain.PayoutAccountResult, error) {
	accountID = strings.TrimSpace(accountID)
	if sdrID == 0 || accountID == "" {
		return domain.PayoutAccountResult{}, domain.ErrInvalidPayoutAccount
	}
	profile, err := s.workspaces.FindSDRProfile(ctx, s.db, sdrID)
	if err != nil {
		return domain.PayoutAccountResult{}, err
	}
	if profile == nil {
		return domain.PayoutAccountResult{}, workspacedomain.ErrSDRNotFound
	}
	if !s.gateway.Configured() {
		return domain.PayoutAccountResult{}, paymentdomain.ErrNotConfigured
	}

	cfg := s.payout.Get()
	statusCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
	remote, err := s.gateway.GetAccountStatus(statusCtx, accountID)
	cancel()
	if errors.Is(err, paymentdomain.ErrAccountNotFound) {
		return domain.PayoutAccountResult{}, domain.ErrInvalidPayoutAccount
	}
	if err != nil {
		return domain.PayoutAccountResult{}, err
	}
	status := localAccountStatus(remote)

	now := s.clock.Now()
	var released int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.workspaces.UpdatePayoutAccount(ctx, tx, sdrID, accountID, status, now); err != nil {
			return err
		}
		if status != workspacedomain.PayoutAccountActive {
			return nil
		}
		n, err := s.repo.ReleaseHeld(ctx, tx, sdrID, now)
		released = n
		return err
	})
	if err != nil {
		return domain.PayoutAccountResult{}, err
	}

	s.log.Info("payout account updated",
		zap.String("sdr_id", sdrID.String()),
		zap.String("account_status", string(status)),
		zap.Int64("released", released),
	)
	return domain.PayoutAccountResult{
		SDRID:     sdrID,
		AccountID: accountID,
		Status:    string(status),
		Released:  released,
	}, nil
}

func localAccountStatus(remote paymentdomain.AccountStatus) workspacedomain.PayoutAccountStatus {
	switch {
	case remote.Active():
		return workspacedomain.PayoutAccountActive
	case !remote.DetailsSubmitted && remote.DisabledReason == "":
		return workspacedomain.PayoutAccountPending
	default:
		return workspacedomain.PayoutAccountRestricted
	}
}

func salaryData(p domain.SalaryPayment) map[string]any {
	return map[string]any{
		"salary_payment_id": p.ID.String(),
		"sdr_id":            p.SDRID.String(),
		"salary_amount":     p.SalaryAmount.StringFixed(2),
		"sdr_payout_date":   p.SDRPayoutDate.Format("2006-01-02"),
		"currency":          p.Currency,
	}
}
