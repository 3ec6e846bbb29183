package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/authorization"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	contractdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/observability"
	payoutdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	paymentdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/domain"
	workspacedomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAdminToken = "op-secret"

type fakeContractService struct {
	req contractdomain.SignRequest
	err error
}

func (f *fakeContractService) Sign(ctx context.Context, req contractdomain.SignRequest) (contractdomain.SignResult, error) {
	f.req = req
	if f.err != nil {
		return contractdomain.SignResult{}, f.err
	}
	return contractdomain.SignResult{
		Contract:        contractdomain.Contract{ID: req.ContractID, Status: contractdomain.ContractSigned},
		CommissionError: "commission_writer_unavailable",
	}, nil
}

type fakeCommissionService struct {
	listReq commissiondomain.ListRequest
	err     error
}

func (f *fakeCommissionService) RecordForClosedDeal(ctx context.Context, req commissiondomain.RecordRequest) (commissiondomain.Commission, error) {
	return commissiondomain.Commission{}, nil
}

func (f *fakeCommissionService) ChargeAgency(ctx context.Context, id snowflake.ID) (commissiondomain.Commission, error) {
	if f.err != nil {
		return commissiondomain.Commission{}, f.err
	}
	return commissiondomain.Commission{ID: id, Status: commissiondomain.StatusPaid}, nil
}

func (f *fakeCommissionService) ListByWorkspace(ctx context.Context, req commissiondomain.ListRequest) (commissiondomain.ListResponse, error) {
	f.listReq = req
	if f.err != nil {
		return commissiondomain.ListResponse{}, f.err
	}
	return commissiondomain.ListResponse{Commissions: []commissiondomain.Commission{{ID: 1}}}, nil
}

func (f *fakeCommissionService) GetByID(ctx context.Context, id snowflake.ID) (commissiondomain.Commission, error) {
	return commissiondomain.Commission{ID: id}, nil
}

type fakePayoutService struct {
	hire      payoutdomain.HireRequest
	accountID string
	err       error
}

func (f *fakePayoutService) HireSDR(ctx context.Context, req payoutdomain.HireRequest) (payoutdomain.HireResult, error) {
	f.hire = req
	if f.err != nil {
		return payoutdomain.HireResult{}, f.err
	}
	return payoutdomain.HireResult{MemberID: 77}, nil
}

func (f *fakePayoutService) ChargeAgency(ctx context.Context, id snowflake.ID) (payoutdomain.SalaryPayment, error) {
	if f.err != nil {
		return payoutdomain.SalaryPayment{}, f.err
	}
	return payoutdomain.SalaryPayment{ID: id}, nil
}

func (f *fakePayoutService) UpdatePayoutAccount(ctx context.Context, sdrID snowflake.ID, accountID string) (payoutdomain.PayoutAccountResult, error) {
	f.accountID = accountID
	if f.err != nil {
		return payoutdomain.PayoutAccountResult{}, f.err
	}
	return payoutdomain.PayoutAccountResult{SDRID: sdrID, AccountID: accountID, Status: "active", Released: 2}, nil
}

type fakeProcessor struct {
	calls  int
	result payoutdomain.BatchResult
	err    error
}

func (f *fakeProcessor) ProcessDue(ctx context.Context) (payoutdomain.BatchResult, error) {
	f.calls++
	return f.result, f.err
}

type testDeps struct {
	contracts   *fakeContractService
	commissions *fakeCommissionService
	payouts     *fakePayoutService
	processor   *fakeProcessor
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)

	deps := &testDeps{
		contracts:   &fakeContractService{},
		commissions: &fakeCommissionService{},
		payouts:     &fakePayoutService{},
		processor:   &fakeProcessor{},
	}
	srv := NewServer(ServerParams{
		Gin:           NewEngine(observability.Config{}, nil),
		Cfg:           config.Config{AdminAPIToken: testAdminToken},
		Log:           zap.NewNop(),
		Clock:         clock.NewFakeClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
		AuthzSvc:      authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		ContractSvc:   deps.contracts,
		CommissionSvc: deps.commissions,
		PayoutSvc:     deps.payouts,
		Processor:     deps.processor,
	})
	return srv, deps
}

func doRequest(srv *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestSignContract(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/api/contracts/123/sign", gin.H{
		"signer_name":  "  Dana Client ",
		"signer_email": "dana@example.com",
		"signature":    "data:image/png;base64,xyz",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, snowflake.ID(123), deps.contracts.req.ContractID)
	assert.Equal(t, "Dana Client", deps.contracts.req.SignerName)
	assert.Contains(t, w.Body.String(), "commission_writer_unavailable")
}

func TestSignContractErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
		wantType string
	}{
		{"bad id", "/api/contracts/abc/sign", nil, http.StatusBadRequest, "validation_error"},
		{"missing linkage", "/api/contracts/1/sign", contractdomain.ErrMissingJobLinkage, http.StatusBadRequest, "validation_error"},
		{"not found", "/api/contracts/1/sign", contractdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"already signed", "/api/contracts/1/sign", contractdomain.ErrAlreadySigned, http.StatusConflict, "conflict"},
		{"unexpected", "/api/contracts/1/sign", fmt.Errorf("db down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, deps := newTestServer(t)
			deps.contracts.err = tt.err

			w := doRequest(srv, http.MethodPost, tt.path, gin.H{"signer_name": "Dana"}, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantType, decodeError(t, w).Type)
		})
	}
}

func TestValidationErrorCarriesCode(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.contracts.err = contractdomain.ErrInvalidSigner

	w := doRequest(srv, http.MethodPost, "/api/contracts/1/sign", gin.H{}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_signer", payload.Errors[0].Code)
	assert.Equal(t, "signer", payload.Errors[0].Field)
}

func TestListWorkspaceCommissions(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/workspaces/9/commissions?status=pending&page_size=10", nil, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, snowflake.ID(9), deps.commissions.listReq.WorkspaceID)
	assert.Equal(t, "pending", deps.commissions.listReq.Status)
	assert.Equal(t, 10, deps.commissions.listReq.PageSize)
}

func TestChargeCommissionErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"already paid", commissiondomain.ErrAlreadyPaid, http.StatusConflict},
		{"charge declined", fmt.Errorf("%w: card_declined", commissiondomain.ErrChargeFailed), http.StatusPaymentRequired},
		{"no payment method", commissiondomain.ErrPaymentMethodMissing, http.StatusBadRequest},
		{"provider missing", paymentdomain.ErrNotConfigured, http.StatusServiceUnavailable},
		{"provider 500", &paymentdomain.ProviderError{StatusCode: 500, Message: "boom"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, deps := newTestServer(t)
			deps.commissions.err = tt.err

			w := doRequest(srv, http.MethodPost, "/api/commissions/5/charge", nil, nil)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestHireSDR(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/api/workspaces/9/hires", gin.H{
		"sdr_id":        "20",
		"job_id":        "40",
		"salary_amount": "4250.505",
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, snowflake.ID(9), deps.payouts.hire.WorkspaceID)
	assert.Equal(t, snowflake.ID(20), deps.payouts.hire.SDRID)
	assert.Equal(t, snowflake.ID(40), deps.payouts.hire.JobID)
	assert.True(t, deps.payouts.hire.SalaryAmount.Equal(decimal.RequireFromString("4250.505")))
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), deps.payouts.hire.HiredAt)
}

func TestHireSDRErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     gin.H
		err      error
		wantCode int
	}{
		{"bad sdr id", gin.H{"sdr_id": "x", "job_id": "40"}, nil, http.StatusBadRequest},
		{"bad job id", gin.H{"sdr_id": "20"}, nil, http.StatusBadRequest},
		{"seat limit", gin.H{"sdr_id": "20", "job_id": "40"}, payoutdomain.ErrSeatLimitReached, http.StatusConflict},
		{"already member", gin.H{"sdr_id": "20", "job_id": "40"}, workspacedomain.ErrAlreadyMember, http.StatusConflict},
		{"missing job", gin.H{"sdr_id": "20", "job_id": "40"}, workspacedomain.ErrJobPostingNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, deps := newTestServer(t)
			deps.payouts.err = tt.err

			w := doRequest(srv, http.MethodPost, "/api/workspaces/9/hires", tt.body, nil)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestChargeSalaryPayment(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/api/salary-payments/31/charge", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	deps.payouts.err = payoutdomain.ErrAlreadyCharged
	w = doRequest(srv, http.MethodPost, "/api/salary-payments/31/charge", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "agency_already_charged", decodeError(t, w).Message)
}

func TestUpdatePayoutAccount(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodPut, "/api/sdrs/20/payout-account", gin.H{"account_id": "acct_123"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "acct_123", deps.payouts.accountID)

	deps.payouts.err = payoutdomain.ErrInvalidPayoutAccount
	w = doRequest(srv, http.MethodPut, "/api/sdrs/20/payout-account", gin.H{"account_id": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessPayoutsRequiresAdminToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testAdminToken},
		{"wrong token", "Bearer nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, deps := newTestServer(t)
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}

			w := doRequest(srv, http.MethodPost, "/admin/payouts/process", nil, headers)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Zero(t, deps.processor.calls)
		})
	}
}

func TestProcessPayoutsWithoutConfiguredTokenIsLocked(t *testing.T) {
	srv, deps := newTestServer(t)
	srv.cfg.AdminAPIToken = ""
	srv.engine = NewEngine(observability.Config{}, nil)
	srv.registerAdminRoutes()

	w := doRequest(srv, http.MethodPost, "/admin/payouts/process", nil, map[string]string{"Authorization": "Bearer "})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, deps.processor.calls)
}

func TestProcessPayouts(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.processor.result = payoutdomain.BatchResult{RunID: "run-1", Processed: 2, Successful: 1, Held: 1}

	w := doRequest(srv, http.MethodPost, "/admin/payouts/process", nil, map[string]string{
		"Authorization": "Bearer " + testAdminToken,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data payoutdomain.BatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, 1, resp.Data.Held)
}

func TestProcessPayoutsNotConfigured(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.processor.result = payoutdomain.BatchResult{RunID: "run-2", NotConfigured: true}
	deps.processor.err = payoutdomain.ErrPaymentProviderNotConfigured

	w := doRequest(srv, http.MethodPost, "/admin/payouts/process", nil, map[string]string{
		"Authorization": "Bearer " + testAdminToken,
	})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp struct {
		Error errorPayload             `json:"error"`
		Data  payoutdomain.BatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "service_unavailable", resp.Error.Type)
	assert.True(t, resp.Data.NotConfigured)
}

func TestProcessPayoutsBatchInProgress(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.processor.err = payoutdomain.ErrBatchInProgress

	w := doRequest(srv, http.MethodPost, "/admin/payouts/process", nil, map[string]string{
		"Authorization": "Bearer " + testAdminToken,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Type)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
