package domain

import (
	"context"
	"errors"

	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/settlement"
	"github.com/bwmarrin/snowflake"
)

type SignRequest struct {
	ContractID  snowflake.ID
	SignerName  string
	SignerEmail string
	Signature   string
	SignerIP    string
}

// SignResult reports the signature and the settlement it produced. The
// signature stands even when the commission could not be written; that
// failure is surfaced in CommissionError.
type SignResult struct {
	Contract        Contract                     `json:"contract"`
	Deal            Deal                         `json:"deal"`
	SelfClosed      bool                         `json:"self_closed"`
	Breakdown       settlement.Breakdown         `json:"breakdown"`
	Commission      *commissiondomain.Commission `json:"commission,omitempty"`
	CommissionError string                       `json:"commission_error,omitempty"`
}

type Service interface {
	Sign(ctx context.Context, req SignRequest) (SignResult, error)
}

var (
	ErrNotFound          = errors.New("contract_not_found")
	ErrDealNotFound      = errors.New("deal_not_found")
	ErrAlreadySigned     = errors.New("contract_already_signed")
	ErrInvalidDealValue  = errors.New("invalid_deal_value")
	ErrMissingJobLinkage = errors.New("missing_job_linkage")
	ErrInvalidSigner     = errors.New("invalid_signer")
)
