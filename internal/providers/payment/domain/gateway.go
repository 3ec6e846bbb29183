package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNotConfigured   = errors.New("payment_provider_not_configured")
	ErrAccountNotFound = errors.New("payout_account_not_found")
	ErrInvalidRequest  = errors.New("invalid_payment_request")
	ErrInvalidResponse = errors.New("invalid_payment_response")
)

// Gateway is the subset of the payment provider the settlement core calls.
type Gateway interface {
	// Configured reports whether credentials are present. Callers treat an
	// unconfigured gateway as a configuration error, not as per-record failures.
	Configured() bool
	CreateTransfer(ctx context.Context, req TransferRequest) (Transfer, error)
	GetAccountStatus(ctx context.Context, accountID string) (AccountStatus, error)
	ChargeCustomer(ctx context.Context, req ChargeRequest) (Charge, error)
}

type TransferRequest struct {
	DestinationAccountID string
	Amount               int64
	Currency             string
	IdempotencyKey       string
	Description          string
	Metadata             map[string]string
}

type Transfer struct {
	ID          string
	Amount      int64
	Currency    string
	Destination string
	CreatedAt   time.Time
}

type AccountStatus struct {
	AccountID        string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	DisabledReason   string
}

// Active reports whether transfers to the account can succeed.
func (s AccountStatus) Active() bool {
	return s.PayoutsEnabled && strings.TrimSpace(s.DisabledReason) == ""
}

type ChargeRequest struct {
	CustomerID      string
	PaymentMethodID string
	Amount          int64
	Currency        string
	IdempotencyKey  string
	Description     string
	Metadata        map[string]string
}

type Charge struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

// Succeeded reports whether the charge captured funds.
func (c Charge) Succeeded() bool {
	return c.Status == "succeeded"
}

// ProviderError is a non-2xx answer or transport failure from the provider.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "payment provider request failed"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment provider: %d %s", e.StatusCode, msg)
	}
	return "payment provider: " + msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether the same request may succeed if retried.
func (e *ProviderError) Transient() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusConflict ||
		e.StatusCode >= http.StatusInternalServerError
}

// IsTransient reports whether err is worth retrying on a later run.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Transient()
	}
	return false
}
