// Package paymenttest provides an in-memory payment gateway that honours
// idempotency keys the way the real provider does.
package paymenttest

import (
	"context"
	"fmt"
	"sync"

	paymentdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/domain"
)

type Gateway struct {
	mu sync.Mutex

	Unconfigured bool
	// Accounts maps account ids to their remote status. Unknown ids return ErrAccountNotFound.
	Accounts map[string]paymentdomain.AccountStatus
	// TransferErr, when set, is returned for a destination before any transfer is made.
	TransferErr func(req paymentdomain.TransferRequest) error
	ChargeErr   error
	ChargeState string

	transfers     map[string]paymentdomain.Transfer
	transferCalls int
	charges       map[string]paymentdomain.Charge
	declines      map[string]error
	chargeKeys    []string
	statusCalls   int
}

func New() *Gateway {
	return &Gateway{Accounts: map[string]paymentdomain.AccountStatus{}}
}

// ActiveAccount registers a destination that accepts transfers.
func (g *Gateway) ActiveAccount(id string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Accounts[id] = paymentdomain.AccountStatus{AccountID: id, ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true}
	return g
}

func (g *Gateway) Configured() bool { return !g.Unconfigured }

func (g *Gateway) CreateTransfer(ctx context.Context, req paymentdomain.TransferRequest) (paymentdomain.Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transferCalls++
	if err := ctx.Err(); err != nil {
		return paymentdomain.Transfer{}, err
	}
	if g.TransferErr != nil {
		if err := g.TransferErr(req); err != nil {
			return paymentdomain.Transfer{}, err
		}
	}
	if g.transfers == nil {
		g.transfers = map[string]paymentdomain.Transfer{}
	}
	if existing, ok := g.transfers[req.IdempotencyKey]; ok {
		return existing, nil
	}
	transfer := paymentdomain.Transfer{
		ID:          fmt.Sprintf("tr_%d", len(g.transfers)+1),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Destination: req.DestinationAccountID,
	}
	g.transfers[req.IdempotencyKey] = transfer
	return transfer, nil
}

func (g *Gateway) GetAccountStatus(ctx context.Context, accountID string) (paymentdomain.AccountStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	status, ok := g.Accounts[accountID]
	if !ok {
		return paymentdomain.AccountStatus{}, paymentdomain.ErrAccountNotFound
	}
	return status, nil
}

func (g *Gateway) ChargeCustomer(ctx context.Context, req paymentdomain.ChargeRequest) (paymentdomain.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chargeKeys = append(g.chargeKeys, req.IdempotencyKey)
	// a key that was declined once keeps answering with the same decline
	if err, ok := g.declines[req.IdempotencyKey]; ok {
		return paymentdomain.Charge{}, err
	}
	if g.ChargeErr != nil {
		if g.declines == nil {
			g.declines = map[string]error{}
		}
		g.declines[req.IdempotencyKey] = g.ChargeErr
		return paymentdomain.Charge{}, g.ChargeErr
	}
	if g.charges == nil {
		g.charges = map[string]paymentdomain.Charge{}
	}
	if existing, ok := g.charges[req.IdempotencyKey]; ok {
		return existing, nil
	}
	status := g.ChargeState
	if status == "" {
		status = "succeeded"
	}
	charge := paymentdomain.Charge{
		ID:       fmt.Sprintf("pi_%d", len(g.charges)+1),
		Status:   status,
		Amount:   req.Amount,
		Currency: req.Currency,
	}
	g.charges[req.IdempotencyKey] = charge
	return charge, nil
}

// Transfers returns the distinct transfers created, keyed by idempotency key.
func (g *Gateway) Transfers() map[string]paymentdomain.Transfer {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]paymentdomain.Transfer, len(g.transfers))
	for k, v := range g.transfers {
		out[k] = v
	}
	return out
}

func (g *Gateway) TransferCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transferCalls
}

func (g *Gateway) StatusCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls
}

func (g *Gateway) Charges() map[string]paymentdomain.Charge {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]paymentdomain.Charge, len(g.charges))
	for k, v := range g.charges {
		out[k] = v
	}
	return out
}

// ChargeKeys lists the idempotency key of every charge attempt in order.
func (g *Gateway) ChargeKeys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.chargeKeys...)
}

var _ paymentdomain.Gateway = (*Gateway)(nil)
