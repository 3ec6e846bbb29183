package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLockerGrantsLocks(t *testing.T) {
	var l *Locker

	token, ok, err := l.TryLock(context.Background(), "payouts:batch", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, l.Release(context.Background(), "payouts:batch", token))
}

func TestTryLockValidatesArguments(t *testing.T) {
	var l *Locker

	_, _, err := l.TryLock(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, _, err = l.TryLock(context.Background(), "payouts:batch", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestNewLockerWithoutClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
}
