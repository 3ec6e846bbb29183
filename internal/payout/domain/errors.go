package domain

import "errors"

var (
	ErrInvalidDate                  = errors.New("invalid_date")
	ErrPaymentProviderNotConfigured = errors.New("payment_provider_not_configured")
	ErrBatchInProgress              = errors.New("payout_batch_in_progress")
	ErrSeatLimitReached             = errors.New("sdr_seat_limit_reached")
	ErrNotFound                     = errors.New("salary_payment_not_found")
	ErrAlreadyCharged               = errors.New("agency_already_charged")
	ErrPaymentMethodMissing         = errors.New("payment_method_missing")
	ErrInvalidSalary                = errors.New("invalid_salary_amount")
	ErrInvalidPayoutAccount         = errors.New("invalid_payout_account")
	ErrInvalidRequest               = errors.New("invalid_request")
	ErrChargeFailed                 = errors.New("agency_charge_failed")
	ErrConcurrentUpdate             = errors.New("payout_concurrent_update")
)
