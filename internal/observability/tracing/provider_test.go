package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/contracts/:id/sign"),
		attribute.String("payout_account_id", "acct_123"),
		attribute.String("sdr.email", "sdr@example.com"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsPrefixOnly(t *testing.T) {
	err := fmt.Errorf("transfer failed: %w", errors.New("acct_123 rejected"))
	assert.EqualError(t, SafeError(err), "transfer failed")
	assert.Nil(t, SafeError(nil))
}

func TestNewProviderDisabled(t *testing.T) {
	tp, err := NewProvider(nil, Config{Enabled: false, ServiceName: "closerclaus"}, nil)
	require.NoError(t, err)
	require.NotNil(t, tp)
}
