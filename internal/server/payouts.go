package server

import (
	"errors"
	"net/http"
	"strings"

	payoutdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type hireSDRRequest struct {
	SDRID        string           `json:"sdr_id"`
	JobID        string           `json:"job_id"`
	SalaryAmount *decimal.Decimal `json:"salary_amount"`
}

func (s *Server) HireSDR(c *gin.Context) {
	workspaceID, err := parseIDParam(c, "workspace_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req hireSDRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	sdrID, err := snowflake.ParseString(strings.TrimSpace(req.SDRID))
	if err != nil || sdrID <= 0 {
		AbortWithError(c, newValidationError("sdr_id", "invalid_sdr_id", "invalid sdr_id"))
		return
	}
	jobID, err := snowflake.ParseString(strings.TrimSpace(req.JobID))
	if err != nil || jobID <= 0 {
		AbortWithError(c, newValidationError("job_id", "invalid_job_id", "invalid job_id"))
		return
	}

	hire := payoutdomain.HireRequest{
		WorkspaceID: workspaceID,
		SDRID:       sdrID,
		JobID:       jobID,
		HiredAt:     s.clock.Now(),
	}
	if req.SalaryAmount != nil {
		hire.SalaryAmount = *req.SalaryAmount
	}

	resp, err := s.payoutSvc.HireSDR(c.Request.Context(), hire)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ChargeSalaryPayment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payoutSvc.ChargeAgency(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updatePayoutAccountRequest struct {
	AccountID string `json:"account_id"`
}

func (s *Server) UpdatePayoutAccount(c *gin.Context) {
	sdrID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updatePayoutAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.UpdatePayoutAccount(c.Request.Context(), sdrID, req.AccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ProcessPayouts runs the payout batch on demand. The response carries the
// same result the scheduled run logs, including when the provider is not
// configured.
func (s *Server) ProcessPayouts(c *gin.Context) {
	result, err := s.processor.ProcessDue(c.Request.Context())
	if errors.Is(err, payoutdomain.ErrPaymentProviderNotConfigured) {
		status, payload := mapError(err)
		c.JSON(status, gin.H{"error": payload, "data": result})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("manual payout batch finished",
		zap.String("run_id", result.RunID),
		zap.Int("processed", result.Processed),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.Int("held", result.Held),
	)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

var payoutValidationErrors = []error{
	payoutdomain.ErrInvalidRequest,
	payoutdomain.ErrInvalidSalary,
	payoutdomain.ErrInvalidPayoutAccount,
	payoutdomain.ErrInvalidDate,
	payoutdomain.ErrPaymentMethodMissing,
}
