package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/events"
	ledgerdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger/domain"
	notificationdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/domain"
	obsmetrics "github.com/CloserClaus/closer-claus-hub-sub004/internal/observability/metrics"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	paymentdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/settlement"
	workspacedomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const batchLockKey = "payouts:batch"

// BatchLocker keeps payout batches in different processes from overlapping.
type BatchLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type ProcessorParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       domain.Repository
	Workspaces workspacedomain.Repository
	Ledger     ledgerdomain.Service
	Gateway    paymentdomain.Gateway
	Notifier   notificationdomain.Dispatcher
	Publisher  events.Publisher
	Payout     *config.PayoutConfigHolder
	Locker     BatchLocker                   `optional:"true"`
	Metrics    *obsmetrics.SettlementMetrics `optional:"true"`
}

type Processor struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       domain.Repository
	workspaces workspacedomain.Repository
	ledger     ledgerdomain.Service
	gateway    paymentdomain.Gateway
	notifier   notificationdomain.Dispatcher
	publisher  events.Publisher
	payout     *config.PayoutConfigHolder
	locker     BatchLocker
	metrics    *obsmetrics.SettlementMetrics

	running atomic.Bool
}

func NewProcessor(p ProcessorParams) domain.Processor {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Processor{
		db:         p.DB,
		log:        p.Log.Named("payout.processor"),
		clock:      p.Clock,
		repo:       p.Repo,
		workspaces: p.Workspaces,
		ledger:     p.Ledger,
		gateway:    p.Gateway,
		notifier:   p.Notifier,
		publisher:  publisher,
		payout:     p.Payout,
		locker:     p.Locker,
		metrics:    p.Metrics,
	}
}

// ProcessDue pays every due salary and commission. Records are independent:
// one failing or panicking record never stops the rest of the batch.
func (p *Processor) ProcessDue(ctx context.Context) (domain.BatchResult, error) {
	result := domain.BatchResult{
		RunID:   ulid.Make().String(),
		Details: []domain.Outcome{},
	}
	log := p.log.With(zap.String("run_id", result.RunID))

	if !p.gateway.Configured() {
		result.NotConfigured = true
		p.metrics.IncBatchRun(obsmetrics.BatchOutcomeNotConfigured)
		log.Warn("payout batch skipped: payment provider not configured")
		return result, domain.ErrPaymentProviderNotConfigured
	}

	if !p.running.CompareAndSwap(false, true) {
		p.metrics.IncBatchRun(obsmetrics.BatchOutcomeLocked)
		return result, domain.ErrBatchInProgress
	}
	defer p.running.Store(false)

	cfg := p.payout.Get()
	if p.locker != nil {
		token, ok, err := p.locker.TryLock(ctx, batchLockKey, cfg.LockTTL)
		if err != nil {
			p.metrics.IncBatchRun(obsmetrics.BatchOutcomeError)
			return result, fmt.Errorf("acquire payout batch lock: %w", err)
		}
		if !ok {
			p.metrics.IncBatchRun(obsmetrics.BatchOutcomeLocked)
			return result, domain.ErrBatchInProgress
		}
		defer func() {
			if err := p.locker.Release(context.WithoutCancel(ctx), batchLockKey, token); err != nil {
				log.Warn("payout batch lock not released", zap.Error(err))
			}
		}()
	}

	start := p.clock.Now()
	log.Info("payout batch started")

	recovered, err := p.recoverStale(ctx, cfg, start)
	if err != nil {
		p.metrics.IncBatchRun(obsmetrics.BatchOutcomeError)
		return result, err
	}
	result.Recovered = int(recovered)

	dueBefore := domain.StartOfDay(start).AddDate(0, 0, 1)
	for _, kind := range []domain.Kind{domain.KindSalary, domain.KindCommission} {
		if err := p.processKind(ctx, cfg, kind, dueBefore, &result); err != nil {
			p.metrics.IncBatchRun(obsmetrics.BatchOutcomeError)
			return result, err
		}
	}

	p.metrics.IncBatchRun(obsmetrics.BatchOutcomeCompleted)
	p.metrics.ObserveBatchDuration(p.clock.Now().Sub(start))
	log.Info("payout batch finished",
		zap.Int("processed", result.Processed),
		zap.Int("successful", result.Successful),
		zap.Int("held", result.Held),
		zap.Int("retrying", result.Retrying),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("recovered", result.Recovered),
	)
	return result, nil
}

// processKind pages through every due record of one kind. The cursor only
// moves forward, so a record that fails back to its ready status is not
// picked up a second time in the same run.
func (p *Processor) processKind(ctx context.Context, cfg config.PayoutConfig, kind domain.Kind, dueBefore time.Time, result *domain.BatchResult) error {
	filter := domain.DueFilter{
		Kind:       kind,
		DueBefore:  dueBefore,
		MaxRetries: cfg.MaxRetries,
		Limit:      cfg.BatchSize,
	}
	for {
		records, err := p.repo.ListDue(ctx, p.db, filter)
		if err != nil {
			return fmt.Errorf("list due %s payouts: %w", kind, err)
		}
		if len(records) == 0 {
			return nil
		}
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Add(p.processRecord(ctx, cfg, rec))
		}
		last := records[len(records)-1]
		filter.After = &domain.DueCursor{PayoutDate: last.PayoutDate, ID: last.ID}
	}
}

// recoverStale returns records a crashed run left in processing. Transfers
// carry idempotency keys, so paying them again cannot double pay.
func (p *Processor) recoverStale(ctx context.Context, cfg config.PayoutConfig, now time.Time) (int64, error) {
	if cfg.RecoveryThreshold <= 0 {
		return 0, nil
	}
	olderThan := now.Add(-cfg.RecoveryThreshold)
	var total int64
	for _, kind := range []domain.Kind{domain.KindSalary, domain.KindCommission} {
		n, err := p.repo.RecoverStale(ctx, p.db, kind, olderThan, now)
		if err != nil {
			return total, fmt.Errorf("recover stale %s payouts: %w", kind, err)
		}
		if n > 0 {
			p.log.Warn("stale payouts returned to schedule",
				zap.String("kind", string(kind)),
				zap.Int64("count", n),
			)
		}
		total += n
	}
	return total, nil
}

func (p *Processor) processRecord(ctx context.Context, cfg config.PayoutConfig, rec domain.Record) (out domain.Outcome) {
	out = domain.Outcome{
		RecordID:   rec.ID,
		Kind:       rec.Kind,
		SDRID:      rec.SDRID,
		Status:     rec.Status,
		Amount:     rec.Amount,
		RetryCount: rec.RetryCount,
	}
	log := p.log.With(
		zap.String("kind", string(rec.Kind)),
		zap.String("record_id", rec.ID.String()),
		zap.String("sdr_id", rec.SDRID.String()),
	)

	claimed, settled := false, false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Error("payout record panicked", zap.Any("panic", r), zap.Stack("stack"))
		if !claimed {
			out.Skipped = true
			out.Reason = fmt.Sprintf("internal error: %v", r)
			return
		}
		if settled {
			return
		}
		out = p.fail(ctx, cfg, rec, nil, fmt.Sprintf("internal error: %v", r))
	}()

	ok, err := p.repo.Claim(ctx, p.db, rec, p.clock.Now())
	if err != nil {
		log.Error("payout claim failed", zap.Error(err))
		out.Skipped = true
		out.Reason = "could not claim record"
		return out
	}
	if !ok {
		out.Skipped = true
		out.Reason = "claimed by another run"
		return out
	}
	claimed = true
	rec.Version++
	rec.Status = domain.PayoutProcessing
	out.Status = domain.PayoutProcessing

	profile, holdReason, err := p.resolveDestination(ctx, cfg, rec)
	if err != nil {
		return p.fail(ctx, cfg, rec, profile, "payout account check failed: "+err.Error())
	}
	if holdReason != "" {
		settled = true
		return p.hold(ctx, rec, profile, holdReason)
	}

	amount := settlement.ToMinorUnits(rec.Amount)
	transferID := ""
	if amount > 0 {
		transferCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
		transfer, err := p.gateway.CreateTransfer(transferCtx, paymentdomain.TransferRequest{
			DestinationAccountID: profile.PayoutAccountID,
			Amount:               amount,
			Currency:             rec.Currency,
			IdempotencyKey:       rec.Kind.IdempotencyKey(rec.ID),
			Description:          fmt.Sprintf("Closer Claus %s payout", rec.Kind),
			Metadata: map[string]string{
				"kind":         string(rec.Kind),
				"record_id":    rec.ID.String(),
				"sdr_id":       rec.SDRID.String(),
				"workspace_id": rec.WorkspaceID.String(),
			},
		})
		cancel()
		if errors.Is(err, paymentdomain.ErrAccountNotFound) {
			settled = true
			return p.hold(ctx, rec, profile, "Your payout account could not be found. Reconnect it to receive this payout.")
		}
		if err != nil {
			log.Warn("payout transfer failed",
				zap.Bool("transient", paymentdomain.IsTransient(err)),
				zap.Error(err),
			)
			return p.fail(ctx, cfg, rec, profile, err.Error())
		}
		transferID = transfer.ID
	}

	settled = true
	return p.markPaid(ctx, rec, profile, amount, transferID)
}

// resolveDestination returns a hold reason when the SDR cannot receive
// transfers. A destination that is not known to be active is checked remotely.
func (p *Processor) resolveDestination(ctx context.Context, cfg config.PayoutConfig, rec domain.Record) (*workspacedomain.SDRProfile, string, error) {
	profile, err := p.workspaces.FindSDRProfile(ctx, p.db, rec.SDRID)
	if err != nil {
		return nil, "", err
	}
	if profile == nil || profile.PayoutAccountID == "" {
		return profile, "Connect a payout account to receive this payout.", nil
	}
	if profile.HasActiveDestination() {
		return profile, "", nil
	}

	statusCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
	remote, err := p.gateway.GetAccountStatus(statusCtx, profile.PayoutAccountID)
	cancel()
	if errors.Is(err, paymentdomain.ErrAccountNotFound) {
		return profile, "Your payout account could not be found. Reconnect it to receive this payout.", nil
	}
	if err != nil {
		return profile, "", err
	}
	if !remote.Active() {
		reason := "Your payout account is not enabled for transfers yet."
		if remote.DisabledReason != "" {
			reason = fmt.Sprintf("Your payout account is disabled (%s).", remote.DisabledReason)
		}
		return profile, reason, nil
	}

	if err := p.workspaces.UpdatePayoutAccount(ctx, p.db, rec.SDRID, profile.PayoutAccountID, workspacedomain.PayoutAccountActive, p.clock.Now()); err != nil {
		p.log.Warn("payout account status not refreshed", zap.String("sdr_id", rec.SDRID.String()), zap.Error(err))
	}
	profile.PayoutAccountStatus = workspacedomain.PayoutAccountActive
	return profile, "", nil
}

func (p *Processor) markPaid(ctx context.Context, rec domain.Record, profile *workspacedomain.SDRProfile, amount int64, transferID string) domain.Outcome {
	out := outcomeOf(rec)
	now := p.clock.Now()
	writeCtx := context.WithoutCancel(ctx)

	err := p.db.WithContext(writeCtx).Transaction(func(tx *gorm.DB) error {
		ok, err := p.repo.MarkPaid(writeCtx, tx, rec, transferID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentUpdate
		}
		if amount == 0 {
			return nil
		}
		return p.ledger.Post(writeCtx, tx, ledgerdomain.PostRequest{
			WorkspaceID: rec.WorkspaceID,
			SourceType:  payoutSource(rec.Kind),
			SourceID:    rec.ID,
			Currency:    rec.Currency,
			OccurredAt:  now,
			Lines: []ledgerdomain.Line{
				ledgerdomain.DebitLine(ledgerdomain.AccountSDRPayable, amount),
				ledgerdomain.CreditLine(ledgerdomain.AccountCash, amount),
			},
		})
	})
	if err != nil {
		// the transfer went out; a later run repeats it under the same key and finishes the bookkeeping
		p.log.Error("payout sent but not marked paid",
			zap.String("record_id", rec.ID.String()),
			zap.String("transfer_id", transferID),
			zap.Error(err),
		)
		out.TransferID = transferID
		out.Reason = "transfer sent; bookkeeping pending"
		return out
	}

	out.Status = domain.PayoutPaid
	out.TransferID = transferID
	out.RetryCount = 0
	p.metrics.IncPayout(string(rec.Kind), string(domain.PayoutPaid))
	p.metrics.AddPayoutAmount(string(rec.Kind), amount)

	p.publish(ctx, events.EventPayoutPaid, rec, map[string]any{"transfer_id": transferID})
	p.notifier.Notify(ctx, notificationdomain.Request{
		UserID:      rec.SDRID,
		WorkspaceID: rec.WorkspaceID,
		Type:        notificationdomain.TypePayoutPaid,
		Title:       "Payout sent",
		Message:     fmt.Sprintf("Your %s payout of %s is on its way.", rec.Kind, settlement.FormatMoney(rec.Amount, rec.Currency)),
		Data:        recordData(rec),
		Email:       emailOf(profile),
	})
	return out
}

func (p *Processor) hold(ctx context.Context, rec domain.Record, profile *workspacedomain.SDRProfile, reason string) domain.Outcome {
	out := outcomeOf(rec)
	ok, err := p.repo.MarkHeld(context.WithoutCancel(ctx), p.db, rec, reason, p.clock.Now())
	if err != nil || !ok {
		p.log.Error("payout hold not recorded",
			zap.String("record_id", rec.ID.String()),
			zap.Bool("lost_race", err == nil),
			zap.Error(err),
		)
		out.Reason = reason
		return out
	}

	out.Status = domain.PayoutHeld
	out.Reason = reason
	p.metrics.IncPayout(string(rec.Kind), string(domain.PayoutHeld))
	p.publish(ctx, events.EventPayoutHeld, rec, map[string]any{"reason": reason})
	p.notifier.Notify(ctx, notificationdomain.Request{
		UserID:      rec.SDRID,
		WorkspaceID: rec.WorkspaceID,
		Type:        notificationdomain.TypePayoutHeld,
		Title:       "Payout on hold",
		Message:     fmt.Sprintf("Your %s payout of %s is on hold. %s", rec.Kind, settlement.FormatMoney(rec.Amount, rec.Currency), reason),
		Data:        recordData(rec),
		Email:       emailOf(profile),
	})
	return out
}

// fail counts one failed attempt. The record goes back to its ready status
// until MaxRetries attempts have failed, then it is failed for good.
func (p *Processor) fail(ctx context.Context, cfg config.PayoutConfig, rec domain.Record, profile *workspacedomain.SDRProfile, reason string) domain.Outcome {
	out := outcomeOf(rec)
	failure := domain.Failure{
		Reason:     reason,
		RetryCount: rec.RetryCount + 1,
		Status:     rec.Kind.ReadyStatus(),
	}
	if failure.RetryCount >= cfg.MaxRetries {
		failure.Status = domain.PayoutFailed
	}

	ok, err := p.repo.RecordFailure(context.WithoutCancel(ctx), p.db, rec, failure, p.clock.Now())
	if err != nil || !ok {
		p.log.Error("payout failure not recorded",
			zap.String("record_id", rec.ID.String()),
			zap.String("reason", reason),
			zap.Bool("lost_race", err == nil),
			zap.Error(err),
		)
		out.Reason = reason
		return out
	}

	out.Status = failure.Status
	out.Reason = reason
	out.RetryCount = failure.RetryCount
	p.metrics.IncPayout(string(rec.Kind), string(failure.Status))

	if failure.Status != domain.PayoutFailed {
		return out
	}
	p.publish(ctx, events.EventPayoutFailed, rec, map[string]any{"reason": reason, "retry_count": failure.RetryCount})
	if profile == nil {
		profile, _ = p.workspaces.FindSDRProfile(ctx, p.db, rec.SDRID)
	}
	p.notifier.Notify(ctx, notificationdomain.Request{
		UserID:      rec.SDRID,
		WorkspaceID: rec.WorkspaceID,
		Type:        notificationdomain.TypePayoutFailed,
		Title:       "Payout failed",
		Message: fmt.Sprintf("We could not send your %s payout of %s after %d attempts. Our team has been notified.",
			rec.Kind, settlement.FormatMoney(rec.Amount, rec.Currency), failure.RetryCount),
		Data:  recordData(rec),
		Email: emailOf(profile),
	})
	p.notifier.AlertOperator(ctx, fmt.Sprintf(
		":rotating_light: %s payout %s to SDR %s failed after %d attempts: %s",
		rec.Kind, rec.ID, rec.SDRID, failure.RetryCount, reason))
	return out
}

func (p *Processor) publish(ctx context.Context, eventType string, rec domain.Record, extra map[string]any) {
	payload := recordData(rec)
	for k, v := range extra {
		payload[k] = v
	}
	err := p.publisher.Publish(ctx, events.Event{
		Type:        eventType,
		WorkspaceID: rec.WorkspaceID,
		SubjectID:   rec.ID,
		DedupeKey:   eventType + ":" + string(rec.Kind) + ":" + rec.ID.String(),
		Payload:     payload,
		OccurredAt:  p.clock.Now(),
	})
	if err != nil {
		p.log.Warn("settlement event not published",
			zap.String("event_type", eventType),
			zap.String("record_id", rec.ID.String()),
			zap.Error(err),
		)
	}
}

func outcomeOf(rec domain.Record) domain.Outcome {
	return domain.Outcome{
		RecordID:   rec.ID,
		Kind:       rec.Kind,
		SDRID:      rec.SDRID,
		Status:     rec.Status,
		Amount:     rec.Amount,
		RetryCount: rec.RetryCount,
	}
}

func payoutSource(kind domain.Kind) ledgerdomain.SourceType {
	if kind == domain.KindSalary {
		return ledgerdomain.SourceSalaryPayout
	}
	return ledgerdomain.SourceCommissionPayout
}

func recordData(rec domain.Record) map[string]any {
	return map[string]any{
		"kind":        string(rec.Kind),
		"record_id":   rec.ID.String(),
		"amount":      rec.Amount.StringFixed(2),
		"currency":    rec.Currency,
		"payout_date": rec.PayoutDate.Format("2006-01-02"),
	}
}

func emailOf(profile *workspacedomain.SDRProfile) string {
	if profile == nil {
		return ""
	}
	return profile.Email
}
