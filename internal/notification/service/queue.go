package service

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/domain"
	obsmetrics "github.com/CloserClaus/closer-claus-hub-sub004/internal/observability/metrics"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/email"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/slack"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	channelStore = "store"
	channelEmail = "email"
	channelSlack = "slack"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Email   email.Provider
	Slack   slack.Provider
	Config  config.Config
	Payout  *config.PayoutConfigHolder
	Metrics *obsmetrics.SettlementMetrics `optional:"true"`
}

type job struct {
	ctx          context.Context
	notification *domain.Notification
	email        string
	alert        string
}

// Queue persists notifications and operator alerts from a bounded buffer on
// background workers.
type Queue struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            domain.Repository
	email           email.Provider
	slack           slack.Provider
	operatorChannel string
	metrics         *obsmetrics.SettlementMetrics

	maxElapsed      time.Duration
	initialInterval time.Duration

	jobs   chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(p Params) *Queue {
	workers := p.Payout.Get().NotificationWorkers
	if workers <= 0 {
		workers = 1
	}
	q := newQueue(p)
	for i := 0; i < workers; i++ {
		q.start()
	}
	return q
}

func newQueue(p Params) *Queue {
	cfg := p.Payout.Get()
	defaults := config.DefaultPayoutConfig()
	size := cfg.NotificationQueueSize
	if size <= 0 {
		size = defaults.NotificationQueueSize
	}
	maxElapsed := cfg.NotificationMaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = defaults.NotificationMaxElapsed
	}

	q := &Queue{
		db:              p.DB,
		log:             p.Log.Named("notification.queue"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		email:           p.Email,
		slack:           p.Slack,
		operatorChannel: p.Config.Slack.OperatorChannel,
		metrics:         p.Metrics,
		maxElapsed:      maxElapsed,
		initialInterval: 200 * time.Millisecond,
		jobs:            make(chan job, size),
	}
	if q.email == nil {
		q.email = &email.NoOpProvider{}
	}
	if q.slack == nil {
		q.slack = &slack.NoOpProvider{}
	}
	return q
}

func (q *Queue) start() {
	q.wg.Add(1)
	go q.run()
}

func (q *Queue) Notify(ctx context.Context, req domain.Request) {
	if req.UserID == 0 {
		q.log.Warn("notification dropped: missing recipient", zap.String("type", string(req.Type)))
		return
	}
	n := &domain.Notification{
		ID:          q.genID.Generate(),
		UserID:      req.UserID,
		WorkspaceID: req.WorkspaceID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Data:        datatypes.JSONMap(req.Data),
		CreatedAt:   q.clock.Now(),
	}
	q.enqueue(job{ctx: context.WithoutCancel(ctx), notification: n, email: req.Email}, channelStore)
}

func (q *Queue) AlertOperator(ctx context.Context, message string) {
	if q.operatorChannel == "" {
		q.log.Warn("operator alert not delivered: no operator channel", zap.String("message", message))
		return
	}
	q.enqueue(job{ctx: context.WithoutCancel(ctx), alert: message}, channelSlack)
}

func (q *Queue) enqueue(j job, channel string) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.metrics.IncNotification(channel, "dropped")
		q.log.Warn("notification dropped: queue closed", zap.String("channel", channel))
		return
	}
	select {
	case q.jobs <- j:
	default:
		q.metrics.IncNotification(channel, "dropped")
		q.log.Warn("notification dropped: queue full", zap.String("channel", channel))
	}
}

// Close stops accepting work and waits for queued jobs to drain or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.handle(j)
	}
}

func (q *Queue) handle(j job) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("notification worker panic", zap.Any("panic", r))
		}
	}()

	if j.alert != "" {
		q.deliverAlert(j)
		return
	}
	if err := q.persist(j.ctx, j.notification); err != nil {
		q.metrics.IncNotification(channelStore, "failed")
		q.log.Warn("notification not stored",
			zap.String("type", string(j.notification.Type)),
			zap.String("user_id", j.notification.UserID.String()),
			zap.Error(err),
		)
	} else {
		q.metrics.IncNotification(channelStore, "delivered")
	}
	if j.email != "" && q.email.Configured() {
		q.deliverEmail(j)
	}
}

func (q *Queue) persist(ctx context.Context, n *domain.Notification) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = q.initialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := q.repo.Insert(ctx, q.db, n)
		// an earlier attempt may have committed before timing out
		if err == nil || db.IsDuplicateKeyErr(err) {
			return struct{}{}, nil
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxElapsedTime(q.maxElapsed))
	return err
}

func (q *Queue) deliverEmail(j job) {
	body := fmt.Sprintf("<p>%s</p>", html.EscapeString(j.notification.Message))
	if err := q.email.Send(j.ctx, []string{j.email}, j.notification.Title, body); err != nil {
		q.metrics.IncNotification(channelEmail, "failed")
		q.log.Warn("notification email failed", zap.String("type", string(j.notification.Type)), zap.Error(err))
		return
	}
	q.metrics.IncNotification(channelEmail, "delivered")
}

func (q *Queue) deliverAlert(j job) {
	if err := q.slack.PostMessage(j.ctx, q.operatorChannel, j.alert); err != nil {
		q.metrics.IncNotification(channelSlack, "failed")
		q.log.Error("operator alert failed", zap.String("message", j.alert), zap.Error(err))
		return
	}
	q.metrics.IncNotification(channelSlack, "delivered")
}

var _ domain.Dispatcher = (*Queue)(nil)
