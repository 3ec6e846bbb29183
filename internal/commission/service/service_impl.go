package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/events"
	ledgerdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger/domain"
	notificationdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/domain"
	obsmetrics "github.com/CloserClaus/closer-claus-hub-sub004/internal/observability/metrics"
	payoutdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	paymentdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/settlement"
	workspacedomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db/pagination"
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
		log:        p.Log.Named("commission.service"),
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

func (s *Service) RecordForClosedDeal(ctx context.Context, req domain.RecordRequest) (domain.Commission, error) {
	if req.DealID == 0 {
		return domain.Commission{}, domain.ErrInvalidDeal
	}
	if req.WorkspaceID == 0 {
		return domain.Commission{}, domain.ErrInvalidWorkspace
	}
	if !req.SelfClosed && (req.SDRID == nil || *req.SDRID == 0) {
		return domain.Commission{}, domain.ErrMissingSDR
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.payout.Get().Currency
	}
	signedAt := req.SignedAt
	if signedAt.IsZero() {
		signedAt = s.clock.Now()
	}
	amounts := req.Breakdown.Rounded()
	now := s.clock.Now()

	commission := domain.Commission{
		ID:                    s.genID.Generate(),
		WorkspaceID:           req.WorkspaceID,
		DealID:                req.DealID,
		CloserID:              req.CloserID,
		Currency:              currency,
		DealValue:             settlement.RoundMoney(req.DealValue),
		SDRCommissionAmount:   amounts.SDRGrossCommission,
		AgencyRakeAmount:      amounts.AgencyRake,
		PlatformCutPercentage: amounts.PlatformCutPercentage,
		PlatformCutAmount:     amounts.PlatformCutAmount,
		SDRPayoutAmount:       amounts.SDRNetPayout,
		TotalAgencyOwed:       amounts.TotalAgencyOwed,
		Status:                domain.StatusPending,
		SDRPayoutStatus:       payoutdomain.PayoutNotApplicable,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if !req.SelfClosed {
		payoutDate, err := payoutdomain.NextPayoutDate(signedAt)
		if err != nil {
			return domain.Commission{}, err
		}
		sdrID := *req.SDRID
		commission.SDRID = &sdrID
		commission.SDRPayoutStatus = payoutdomain.PayoutPending
		commission.SDRPayoutDate = &payoutDate
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &commission); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCommission
			}
			return err
		}
		return s.ledger.Post(ctx, tx, ledgerdomain.PostRequest{
			WorkspaceID: commission.WorkspaceID,
			SourceType:  ledgerdomain.SourceCommission,
			SourceID:    commission.ID,
			Currency:    commission.Currency,
			OccurredAt:  signedAt,
			Lines: []ledgerdomain.Line{
				ledgerdomain.DebitLine(ledgerdomain.AccountAgencyReceivable, settlement.ToMinorUnits(amounts.TotalAgencyOwed)),
				ledgerdomain.CreditLine(ledgerdomain.AccountSDRPayable, settlement.ToMinorUnits(amounts.SDRNetPayout)),
				ledgerdomain.CreditLine(ledgerdomain.AccountPlatformRevenue, settlement.ToMinorUnits(amounts.PlatformRevenue())),
			},
		})
	})
	closedBy := closedByLabel(req.SelfClosed)
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrDuplicateCommission) {
			result = "duplicate"
		}
		s.metrics.IncCommission(closedBy, result)
		return domain.Commission{}, err
	}
	s.metrics.IncCommission(closedBy, "recorded")

	s.log.Info("commission recorded",
		zap.String("commission_id", commission.ID.String()),
		zap.String("deal_id", commission.DealID.String()),
		zap.String("workspace_id", commission.WorkspaceID.String()),
		zap.String("closed_by", closedBy),
		zap.String("total_agency_owed", commission.TotalAgencyOwed.StringFixed(2)),
	)

	s.publish(ctx, events.EventCommissionRecorded, commission)
	s.notifier.Notify(ctx, notificationdomain.Request{
		UserID:      req.OwnerID,
		WorkspaceID: commission.WorkspaceID,
		Type:        notificationdomain.TypeCommissionRecorded,
		Title:       "Deal closed",
		Message: fmt.Sprintf("A deal worth %s closed. %s is due from your workspace.",
			settlement.FormatMoney(commission.DealValue, commission.Currency),
			settlement.FormatMoney(commission.TotalAgencyOwed, commission.Currency)),
		Data: commissionData(commission),
	})
	return commission, nil
}

func (s *Service) ChargeAgency(ctx context.Context, id snowflake.ID) (domain.Commission, error) {
	commission, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Commission{}, err
	}
	if commission.Status == domain.StatusPaid {
		return domain.Commission{}, domain.ErrAlreadyPaid
	}
	if !s.gateway.Configured() {
		return domain.Commission{}, paymentdomain.ErrNotConfigured
	}

	workspace, err := s.workspaces.FindWorkspace(ctx, s.db, commission.WorkspaceID)
	if err != nil {
		return domain.Commission{}, err
	}
	if workspace == nil {
		return domain.Commission{}, workspacedomain.ErrWorkspaceNotFound
	}
	if !workspace.CanBeCharged() {
		return domain.Commission{}, domain.ErrPaymentMethodMissing
	}

	amount := settlement.ToMinorUnits(commission.TotalAgencyOwed)
	reference := ""
	if amount > 0 {
		cfg := s.payout.Get()
		chargeCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
		charge, chargeErr := s.gateway.ChargeCustomer(chargeCtx, paymentdomain.ChargeRequest{
			CustomerID:      workspace.StripeCustomerID,
			PaymentMethodID: workspace.DefaultPaymentMethodID,
			Amount:          amount,
			Currency:        commission.Currency,
			IdempotencyKey:  commission.ChargeIdempotencyKey(),
			Description:     "Commission for deal " + commission.DealID.String(),
			Metadata: map[string]string{
				"commission_id": commission.ID.String(),
				"deal_id":       commission.DealID.String(),
				"workspace_id":  commission.WorkspaceID.String(),
			},
		})
		cancel()
		if chargeErr == nil && !charge.Succeeded() {
			chargeErr = fmt.Errorf("charge status %q", charge.Status)
		}
		if chargeErr != nil {
			s.metrics.IncAgencyCharge(string(payoutdomain.KindCommission), "failed")
			s.log.Warn("commission charge failed",
				zap.String("commission_id", commission.ID.String()),
				zap.Error(chargeErr),
			)
			if _, err := s.repo.MarkAgencyChargeFailed(ctx, s.db, commission.ID, commission.Version, chargeErr.Error(), s.clock.Now()); err != nil {
				s.log.Error("commission charge failure not recorded",
					zap.String("commission_id", commission.ID.String()),
					zap.Error(err),
				)
			}
			s.notifier.Notify(ctx, notificationdomain.Request{
				UserID:      workspace.OwnerID,
				WorkspaceID: workspace.ID,
				Type:        notificationdomain.TypeCommissionChargeFailed,
				Title:       "Commission payment failed",
				Message: fmt.Sprintf("We could not charge %s for a closed deal. Please update your payment method.",
					settlement.FormatMoney(commission.TotalAgencyOwed, commission.Currency)),
				Data: commissionData(commission),
			})
			return domain.Commission{}, fmt.Errorf("%w: %v", domain.ErrChargeFailed, chargeErr)
		}
		reference = charge.ID
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkAgencyPaid(ctx, tx, commission.ID, commission.Version, reference, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentUpdate
		}
		if amount == 0 {
			return nil
		}
		return s.ledger.Post(ctx, tx, ledgerdomain.PostRequest{
			WorkspaceID: commission.WorkspaceID,
			SourceType:  ledgerdomain.SourceCommissionCharge,
			SourceID:    commission.ID,
			Currency:    commission.Currency,
			OccurredAt:  now,
			Lines: []ledgerdomain.Line{
				ledgerdomain.DebitLine(ledgerdomain.AccountCash, amount),
				ledgerdomain.CreditLine(ledgerdomain.AccountAgencyReceivable, amount),
			},
		})
	})
	if err != nil {
		// the provider already captured the charge; the idempotency key lets a retry finish the bookkeeping
		s.log.Error("commission charged but not marked paid",
			zap.String("commission_id", commission.ID.String()),
			zap.String("charge_id", reference),
			zap.Error(err),
		)
		return domain.Commission{}, err
	}
	s.metrics.IncAgencyCharge(string(payoutdomain.KindCommission), "paid")

	commission.Status = domain.StatusPaid
	commission.PaidAt = &now
	commission.ChargeReference = reference
	commission.ChargeFailureReason = ""
	commission.Version++
	commission.UpdatedAt = now

	s.publish(ctx, events.EventCommissionCharged, commission)
	s.notifier.Notify(ctx, notificationdomain.Request{
		UserID:      workspace.OwnerID,
		WorkspaceID: workspace.ID,
		Type:        notificationdomain.TypeCommissionCharged,
		Title:       "Commission paid",
		Message:     fmt.Sprintf("%s was charged for a closed deal.", settlement.FormatMoney(commission.TotalAgencyOwed, commission.Currency)),
		Data:        commissionData(commission),
	})
	if commission.SDRID != nil {
		s.notifySDRSecured(ctx, commission)
	}
	return commission, nil
}

func (s *Service) notifySDRSecured(ctx context.Context, commission domain.Commission) {
	req := notificationdomain.Request{
		UserID:      *commission.SDRID,
		WorkspaceID: commission.WorkspaceID,
		Type:        notificationdomain.TypePayoutSecured,
		Title:       "Commission secured",
		Message:     fmt.Sprintf("The agency paid your commission of %s.", settlement.FormatMoney(commission.SDRPayoutAmount, commission.Currency)),
		Data:        commissionData(commission),
	}
	if commission.SDRPayoutDate != nil {
		req.Message += " It will be paid out on " + commission.SDRPayoutDate.Format("January 2, 2006") + "."
	}
	if profile, err := s.workspaces.FindSDRProfile(ctx, s.db, *commission.SDRID); err == nil && profile != nil {
		req.Email = profile.Email
	}
	s.notifier.Notify(ctx, req)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Commission, error) {
	if id == 0 {
		return domain.Commission{}, domain.ErrNotFound
	}
	commission, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Commission{}, err
	}
	if commission == nil {
		return domain.Commission{}, domain.ErrNotFound
	}
	return *commission, nil
}

func (s *Service) ListByWorkspace(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.WorkspaceID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidWorkspace
	}
	filter := domain.ListFilter{
		Status:          domain.Status(strings.TrimSpace(req.Status)),
		SDRPayoutStatus: strings.TrimSpace(req.SDRPayoutStatus),
	}
	switch filter.Status {
	case "", domain.StatusPending, domain.StatusPaid:
	default:
		return domain.ListResponse{}, domain.ErrInvalidFilter
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	rows, err := s.repo.List(ctx, s.db, req.WorkspaceID, filter, page)
	if errors.Is(err, pagination.ErrInvalidCursor) {
		return domain.ListResponse{}, domain.ErrInvalidFilter
	}
	if err != nil {
		return domain.ListResponse{}, err
	}
	rows, info := pagination.Trim(rows, page.Limit(), func(c *domain.Commission) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        c.ID.String(),
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	out := make([]domain.Commission, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return domain.ListResponse{PageInfo: info, Commissions: out}, nil
}

func (s *Service) publish(ctx context.Context, eventType string, commission domain.Commission) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:        eventType,
		WorkspaceID: commission.WorkspaceID,
		SubjectID:   commission.ID,
		DedupeKey:   eventType + ":" + commission.ID.String(),
		Payload:     commissionData(commission),
		OccurredAt:  s.clock.Now(),
	})
	if err != nil {
		s.log.Warn("settlement event not published",
			zap.String("event_type", eventType),
			zap.String("commission_id", commission.ID.String()),
			zap.Error(err),
		)
	}
}

func commissionData(c domain.Commission) map[string]any {
	data := map[string]any{
		"commission_id":     c.ID.String(),
		"deal_id":           c.DealID.String(),
		"deal_value":        c.DealValue.StringFixed(2),
		"total_agency_owed": c.TotalAgencyOwed.StringFixed(2),
		"sdr_payout_amount": c.SDRPayoutAmount.StringFixed(2),
		"currency":          c.Currency,
	}
	if c.SDRID != nil {
		data["sdr_id"] = c.SDRID.String()
	}
	return data
}

func closedByLabel(selfClosed bool) string {
	if selfClosed {
		return "agency"
	}
	return "sdr"
}
