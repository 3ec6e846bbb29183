package authorization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorize(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   string
		object  string
		action  string
		wantErr error
	}{
		{"admin processes payouts", ActorAdmin, ObjectPayout, ActionPayoutProcess, nil},
		{"system processes payouts", ActorSystem, ObjectPayout, ActionPayoutProcess, nil},
		{"admin cannot do unknown actions", ActorAdmin, ObjectPayout, "payout.delete", ErrForbidden},
		{"unknown actor", "user:42", ObjectPayout, ActionPayoutProcess, ErrForbidden},
		{"blank actor", "  ", ObjectPayout, ActionPayoutProcess, ErrInvalidActor},
		{"blank object", ActorAdmin, "", ActionPayoutProcess, ErrInvalidObject},
		{"blank action", ActorAdmin, ObjectPayout, "", ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tt.actor, tt.object, tt.action)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
