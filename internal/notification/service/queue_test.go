package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/repository"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/testutil"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) Configured() bool { return true }

func (m *mockEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	args := m.Called(to, subject, htmlBody)
	return args.Error(0)
}

type mockSlack struct {
	mock.Mock
}

func (m *mockSlack) PostMessage(ctx context.Context, channelID string, message string) error {
	args := m.Called(channelID, message)
	return args.Error(0)
}

// flakyRepo fails the first n inserts before delegating.
type flakyRepo struct {
	domain.Repository
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *flakyRepo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	r.mu.Lock()
	r.calls++
	fail := r.calls <= r.failures
	r.mu.Unlock()
	if fail {
		return errors.New("database is locked")
	}
	return r.Repository.Insert(ctx, db, n)
}

func queueParams(t *testing.T, repo domain.Repository, cfg config.PayoutConfig) (Params, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t, &domain.Notification{})
	if repo == nil {
		repo = repository.Provide()
	}
	return Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  testutil.Node(t),
		Clock:  clock.NewFakeClock(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)),
		Repo:   repo,
		Config: config.Config{Slack: config.SlackConfig{OperatorChannel: "C-OPS"}},
		Payout: config.NewStaticPayoutConfigHolder(cfg),
	}, db
}

func TestNotifyPersistsAndEmails(t *testing.T) {
	p, db := queueParams(t, nil, config.DefaultPayoutConfig())
	mailer := &mockEmail{}
	mailer.On("Send", []string{"sdr@example.com"}, "Payout sent", "<p>$950.00 is on its way</p>").Return(nil).Once()
	p.Email = mailer

	q := NewQueue(p)
	q.Notify(context.Background(), domain.Request{
		UserID:      snowflake.ID(20),
		WorkspaceID: snowflake.ID(1),
		Type:        domain.TypePayoutPaid,
		Title:       "Payout sent",
		Message:     "$950.00 is on its way",
		Data:        map[string]any{"amount": "950.00"},
		Email:       "sdr@example.com",
	})
	require.NoError(t, q.Close(context.Background()))

	var stored []domain.Notification
	require.NoError(t, db.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.TypePayoutPaid, stored[0].Type)
	assert.Equal(t, "950.00", stored[0].Data["amount"])
	assert.False(t, stored[0].IsRead)
	mailer.AssertExpectations(t)
}

func TestNotifyRetriesTransientStoreFailures(t *testing.T) {
	repo := &flakyRepo{Repository: repository.Provide(), failures: 2}
	p, db := queueParams(t, repo, config.DefaultPayoutConfig())

	q := newQueue(p)
	q.initialInterval = time.Millisecond
	q.start()
	q.Notify(context.Background(), domain.Request{UserID: 20, WorkspaceID: 1, Type: domain.TypePayoutHeld, Title: "Payout on hold", Message: "Connect a payout account"})
	require.NoError(t, q.Close(context.Background()))

	var count int64
	db.Model(&domain.Notification{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 3, repo.calls)
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	cfg := config.DefaultPayoutConfig()
	cfg.NotificationQueueSize = 1
	p, db := queueParams(t, nil, cfg)

	q := newQueue(p)
	q.Notify(context.Background(), domain.Request{UserID: 20, WorkspaceID: 1, Type: domain.TypePayoutPaid, Title: "a", Message: "a"})
	q.Notify(context.Background(), domain.Request{UserID: 21, WorkspaceID: 1, Type: domain.TypePayoutPaid, Title: "b", Message: "b"})
	q.start()
	require.NoError(t, q.Close(context.Background()))

	var stored []domain.Notification
	require.NoError(t, db.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, snowflake.ID(20), stored[0].UserID)
}

func TestNotifyAfterCloseIsDropped(t *testing.T) {
	p, db := queueParams(t, nil, config.DefaultPayoutConfig())
	q := NewQueue(p)
	require.NoError(t, q.Close(context.Background()))

	assert.NotPanics(t, func() {
		q.Notify(context.Background(), domain.Request{UserID: 20, Type: domain.TypePayoutPaid})
	})
	var count int64
	db.Model(&domain.Notification{}).Count(&count)
	assert.Zero(t, count)
}

func TestAlertOperatorPostsToChannel(t *testing.T) {
	p, _ := queueParams(t, nil, config.DefaultPayoutConfig())
	poster := &mockSlack{}
	poster.On("PostMessage", "C-OPS", "payout 42 failed after 3 attempts").Return(errors.New("slack down")).Once()
	p.Slack = poster

	q := NewQueue(p)
	q.AlertOperator(context.Background(), "payout 42 failed after 3 attempts")
	require.NoError(t, q.Close(context.Background()))
	poster.AssertExpectations(t)
}

func TestNotifySurvivesCancelledCallerContext(t *testing.T) {
	p, db := queueParams(t, nil, config.DefaultPayoutConfig())
	q := NewQueue(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Notify(ctx, domain.Request{UserID: 20, WorkspaceID: 1, Type: domain.TypeCommissionRecorded, Title: "t", Message: "m"})
	require.NoError(t, q.Close(context.Background()))

	var count int64
	db.Model(&domain.Notification{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
