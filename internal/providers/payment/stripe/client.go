package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/domain"
)

const (
	defaultBaseURL = "https://api.stripe.com"
	defaultTimeout = 30 * time.Second
)

type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

type stripeTransfer struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
	Created     int64  `json:"created"`
}

type stripeAccount struct {
	ID               string `json:"id"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
	Requirements     struct {
		DisabledReason *string `json:"disabled_reason"`
	} `json:"requirements"`
}

type stripePaymentIntent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the Stripe REST API for connected-account transfers and
// off-session agency charges.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ paymentdomain.Gateway = (*Client)(nil)

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.SecretKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) CreateTransfer(ctx context.Context, req paymentdomain.TransferRequest) (paymentdomain.Transfer, error) {
	destination := strings.TrimSpace(req.DestinationAccountID)
	if destination == "" || req.Amount <= 0 || strings.TrimSpace(req.IdempotencyKey) == "" {
		return paymentdomain.Transfer{}, paymentdomain.ErrInvalidRequest
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(req.Amount, 10))
	values.Set("currency", strings.ToLower(strings.TrimSpace(req.Currency)))
	values.Set("destination", destination)
	if req.Description != "" {
		values.Set("description", req.Description)
	}
	setMetadata(values, req.Metadata)

	var transfer stripeTransfer
	if err := c.doRequest(ctx, http.MethodPost, "/v1/transfers", values, req.IdempotencyKey, &transfer); err != nil {
		return paymentdomain.Transfer{}, err
	}
	if transfer.ID == "" {
		return paymentdomain.Transfer{}, paymentdomain.ErrInvalidResponse
	}

	return paymentdomain.Transfer{
		ID:          transfer.ID,
		Amount:      transfer.Amount,
		Currency:    transfer.Currency,
		Destination: transfer.Destination,
		CreatedAt:   time.Unix(transfer.Created, 0).UTC(),
	}, nil
}

func (c *Client) GetAccountStatus(ctx context.Context, accountID string) (paymentdomain.AccountStatus, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return paymentdomain.AccountStatus{}, paymentdomain.ErrAccountNotFound
	}

	var account stripeAccount
	if err := c.doRequest(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(accountID), nil, "", &account); err != nil {
		return paymentdomain.AccountStatus{}, err
	}
	if account.ID == "" {
		return paymentdomain.AccountStatus{}, paymentdomain.ErrInvalidResponse
	}

	status := paymentdomain.AccountStatus{
		AccountID:        account.ID,
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	}
	if account.Requirements.DisabledReason != nil {
		status.DisabledReason = *account.Requirements.DisabledReason
	}
	return status, nil
}

func (c *Client) ChargeCustomer(ctx context.Context, req paymentdomain.ChargeRequest) (paymentdomain.Charge, error) {
	if strings.TrimSpace(req.CustomerID) == "" || strings.TrimSpace(req.PaymentMethodID) == "" || req.Amount <= 0 {
		return paymentdomain.Charge{}, paymentdomain.ErrInvalidRequest
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(req.Amount, 10))
	values.Set("currency", strings.ToLower(strings.TrimSpace(req.Currency)))
	values.Set("customer", strings.TrimSpace(req.CustomerID))
	values.Set("payment_method", strings.TrimSpace(req.PaymentMethodID))
	values.Set("confirm", "true")
	values.Set("off_session", "true")
	if req.Description != "" {
		values.Set("description", req.Description)
	}
	setMetadata(values, req.Metadata)

	var intent stripePaymentIntent
	if err := c.doRequest(ctx, http.MethodPost, "/v1/payment_intents", values, req.IdempotencyKey, &intent); err != nil {
		return paymentdomain.Charge{}, err
	}
	if intent.ID == "" || intent.Status == "" {
		return paymentdomain.Charge{}, paymentdomain.ErrInvalidResponse
	}

	return paymentdomain.Charge{
		ID:       intent.ID,
		Status:   intent.Status,
		Amount:   intent.Amount,
		Currency: intent.Currency,
	}, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	if !c.Configured() {
		return paymentdomain.ErrNotConfigured
	}
	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &paymentdomain.ProviderError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return paymentdomain.ErrInvalidResponse
	}
	return nil
}

func decodeError(resp *http.Response) error {
	perr := &paymentdomain.ProviderError{StatusCode: resp.StatusCode}

	var stripeErr stripeErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err == nil {
		perr.Code = strings.TrimSpace(stripeErr.Error.Code)
		perr.Message = strings.TrimSpace(stripeErr.Error.Message)
	}
	if perr.Message == "" {
		perr.Message = "stripe_request_failed"
	}

	switch perr.Code {
	case "resource_missing", "account_invalid", "no_account":
		perr.Err = paymentdomain.ErrAccountNotFound
	}
	return perr
}

func setMetadata(values url.Values, metadata map[string]string) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set("metadata["+k+"]", metadata[k])
	}
}
