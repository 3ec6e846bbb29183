package service

import (
	"context"
	"strings"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/settlement"
	tierdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/tier/domain"
	workspacedomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       domain.Repository
	Workspaces workspacedomain.Repository
	Writer     commissiondomain.Writer
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       domain.Repository
	workspaces workspacedomain.Repository
	writer     commissiondomain.Writer
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("contract.service"),
		clock:      p.Clock,
		repo:       p.Repo,
		workspaces: p.Workspaces,
		writer:     p.Writer,
	}
}

// settlementInputs is everything Sign loads before it writes anything.
type settlementInputs struct {
	contract  domain.Contract
	deal      domain.Deal
	workspace workspacedomain.Workspace
	input     settlement.Input
	currency  string
}

func (s *Service) Sign(ctx context.Context, req domain.SignRequest) (domain.SignResult, error) {
	if strings.TrimSpace(req.SignerName) == "" {
		return domain.SignResult{}, domain.ErrInvalidSigner
	}
	in, err := s.load(ctx, req.ContractID)
	if err != nil {
		return domain.SignResult{}, err
	}

	now := s.clock.Now()
	contract := in.contract
	contract.Status = domain.ContractSigned
	contract.SignerName = strings.TrimSpace(req.SignerName)
	contract.SignerEmail = strings.TrimSpace(req.SignerEmail)
	contract.Signature = req.Signature
	contract.SignerIP = req.SignerIP
	contract.SignedAt = &now
	contract.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkSigned(ctx, tx, &contract)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadySigned
		}
		return s.repo.CloseDealWon(ctx, tx, in.deal.ID, now)
	})
	if err != nil {
		return domain.SignResult{}, err
	}

	deal := in.deal
	deal.Stage = domain.DealStageClosedWon
	deal.ClosedAt = &now
	deal.UpdatedAt = now

	breakdown := settlement.Calculate(in.input)
	result := domain.SignResult{
		Contract:   contract,
		Deal:       deal,
		SelfClosed: in.input.IsAgencySelfClosed,
		Breakdown:  breakdown.Rounded(),
	}

	record := commissiondomain.RecordRequest{
		DealID:      deal.ID,
		WorkspaceID: deal.WorkspaceID,
		OwnerID:     in.workspace.OwnerID,
		CloserID:    deal.AssigneeID,
		Currency:    in.currency,
		DealValue:   deal.Value,
		SignedAt:    now,
		Breakdown:   breakdown,
		SelfClosed:  in.input.IsAgencySelfClosed,
	}
	if !record.SelfClosed {
		sdrID := deal.AssigneeID
		record.SDRID = &sdrID
	}

	commission, err := s.writer.RecordForClosedDeal(ctx, record)
	if err != nil {
		// the signature is already committed and stays that way
		s.log.Error("commission not recorded for signed contract",
			zap.String("contract_id", contract.ID.String()),
			zap.String("deal_id", deal.ID.String()),
			zap.Error(err),
		)
		result.CommissionError = err.Error()
		return result, nil
	}
	result.Commission = &commission
	return result, nil
}

func (s *Service) load(ctx context.Context, contractID snowflake.ID) (settlementInputs, error) {
	contract, err := s.repo.FindContract(ctx, s.db, contractID)
	if err != nil {
		return settlementInputs{}, err
	}
	if contract == nil {
		return settlementInputs{}, domain.ErrNotFound
	}
	if contract.Status == domain.ContractSigned {
		return settlementInputs{}, domain.ErrAlreadySigned
	}

	deal, err := s.repo.FindDeal(ctx, s.db, contract.WorkspaceID, contract.DealID)
	if err != nil {
		return settlementInputs{}, err
	}
	if deal == nil {
		return settlementInputs{}, domain.ErrDealNotFound
	}
	if deal.Value.IsNegative() {
		return settlementInputs{}, domain.ErrInvalidDealValue
	}

	workspace, err := s.workspaces.FindWorkspace(ctx, s.db, deal.WorkspaceID)
	if err != nil {
		return settlementInputs{}, err
	}
	if workspace == nil {
		return settlementInputs{}, workspacedomain.ErrWorkspaceNotFound
	}
	rates, err := tierdomain.RatesFor(workspace.SubscriptionTier)
	if err != nil {
		return settlementInputs{}, err
	}

	in := settlementInputs{
		contract:  *contract,
		deal:      *deal,
		workspace: *workspace,
		currency:  deal.Currency,
		input: settlement.Input{
			DealValue:            deal.Value,
			AgencyRakePercentage: rates.AgencyRakePercentage,
			CommissionPercentage: decimal.Zero,
			SDRLevel:             1,
			// ownership is judged by the current owner id only
			IsAgencySelfClosed: deal.AssigneeID == workspace.OwnerID,
		},
	}
	if in.input.IsAgencySelfClosed {
		return in, nil
	}

	if deal.JobPostingID == nil {
		return settlementInputs{}, domain.ErrMissingJobLinkage
	}
	job, err := s.workspaces.FindJobPosting(ctx, s.db, deal.WorkspaceID, *deal.JobPostingID)
	if err != nil {
		return settlementInputs{}, err
	}
	if job == nil {
		return settlementInputs{}, domain.ErrMissingJobLinkage
	}
	in.input.CommissionPercentage = job.CommissionPercentage
	if in.currency == "" {
		in.currency = job.Currency
	}

	profile, err := s.workspaces.FindSDRProfile(ctx, s.db, deal.AssigneeID)
	if err != nil {
		return settlementInputs{}, err
	}
	if profile != nil {
		in.input.SDRLevel = tierdomain.SDRLevel(profile.Level)
	} else {
		s.log.Warn("sdr profile missing; settling at level 1",
			zap.String("deal_id", deal.ID.String()),
			zap.String("sdr_id", deal.AssigneeID.String()),
		)
	}
	return in, nil
}
