package server

import (
	"net/http"
	"strings"

	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListWorkspaceCommissions(c *gin.Context) {
	workspaceID, err := parseIDParam(c, "workspace_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		pagination.Pagination
		Status          string `form:"status"`
		SDRPayoutStatus string `form:"sdr_payout_status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.commissionSvc.ListByWorkspace(c.Request.Context(), commissiondomain.ListRequest{
		WorkspaceID:     workspaceID,
		Status:          strings.TrimSpace(query.Status),
		SDRPayoutStatus: strings.TrimSpace(query.SDRPayoutStatus),
		PageToken:       query.PageToken,
		PageSize:        query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ChargeCommission bills the agency for the rake, commission and cut of a
// closed deal.
func (s *Server) ChargeCommission(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.commissionSvc.ChargeAgency(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

var commissionValidationErrors = []error{
	commissiondomain.ErrInvalidDeal,
	commissiondomain.ErrInvalidWorkspace,
	commissiondomain.ErrMissingSDR,
	commissiondomain.ErrPaymentMethodMissing,
	commissiondomain.ErrInvalidFilter,
}
