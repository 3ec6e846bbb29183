package server

import (
	"net/http"
	"strings"

	contractdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/domain"
	"github.com/gin-gonic/gin"
)

type signContractRequest struct {
	SignerName  string `json:"signer_name"`
	SignerEmail string `json:"signer_email"`
	Signature   string `json:"signature"`
}

// SignContract signs the contract, closes its deal and records the
// commission. A commission failure is reported in the body, not the status:
// the signature has already been stored.
func (s *Server) SignContract(c *gin.Context) {
	contractID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req signContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contractSvc.Sign(c.Request.Context(), contractdomain.SignRequest{
		ContractID:  contractID,
		SignerName:  strings.TrimSpace(req.SignerName),
		SignerEmail: strings.TrimSpace(req.SignerEmail),
		Signature:   req.Signature,
		SignerIP:    c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

var contractValidationErrors = []error{
	contractdomain.ErrInvalidSigner,
	contractdomain.ErrInvalidDealValue,
	contractdomain.ErrMissingJobLinkage,
}
