package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/authorization"
	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	contractdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/domain"
	payoutdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	paymentdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/domain"
	tierdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/tier/domain"
	workspacedomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	}

	if sentinel, ok := matchAny(err, conflictErrors...); ok {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: sentinel.Error(),
		}
	}
	if sentinel, ok := matchAny(err, notFoundErrors...); ok {
		message := "not found"
		if !errors.Is(sentinel, ErrNotFound) && !errors.Is(sentinel, gorm.ErrRecordNotFound) {
			message = sentinel.Error()
		}
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: message,
		}
	}
	if sentinel, ok := matchAny(err, commissiondomain.ErrChargeFailed, payoutdomain.ErrChargeFailed); ok {
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_failed",
			Message: sentinel.Error(),
		}
	}

	switch {
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrNotConfigured),
		errors.Is(err, payoutdomain.ErrPaymentProviderNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "payment provider not configured",
		}
	case isProviderError(err):
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_error",
			Message: "payment provider error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

var conflictErrors = []error{
	ErrConflict,
	contractdomain.ErrAlreadySigned,
	commissiondomain.ErrDuplicateCommission,
	commissiondomain.ErrAlreadyPaid,
	commissiondomain.ErrConcurrentUpdate,
	payoutdomain.ErrAlreadyCharged,
	payoutdomain.ErrSeatLimitReached,
	payoutdomain.ErrConcurrentUpdate,
	payoutdomain.ErrBatchInProgress,
	workspacedomain.ErrAlreadyMember,
}

var notFoundErrors = []error{
	ErrNotFound,
	contractdomain.ErrNotFound,
	contractdomain.ErrDealNotFound,
	commissiondomain.ErrNotFound,
	payoutdomain.ErrNotFound,
	workspacedomain.ErrWorkspaceNotFound,
	workspacedomain.ErrJobPostingNotFound,
	workspacedomain.ErrSDRNotFound,
	gorm.ErrRecordNotFound,
}

func matchAny(err error, targets ...error) (error, bool) {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target, true
		}
	}
	return nil, false
}

func isProviderError(err error) bool {
	var perr *paymentdomain.ProviderError
	return errors.As(err, &perr) || errors.Is(err, paymentdomain.ErrInvalidResponse)
}

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Message
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorCode(err error) (string, bool) {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request", true
	}
	targets := []error{pagination.ErrInvalidCursor, tierdomain.ErrUnknownTier}
	targets = append(targets, contractValidationErrors...)
	targets = append(targets, commissionValidationErrors...)
	targets = append(targets, payoutValidationErrors...)
	if sentinel, ok := matchAny(err, targets...); ok {
		return sentinel.Error(), true
	}
	return "", false
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_job_linkage":
		return "deal is not linked to a job posting"
	case "payment_method_missing":
		return "agency has no payment method on file"
	case "unknown_subscription_tier":
		return "workspace subscription tier is not recognised"
	default:
		return "invalid value"
	}
}
