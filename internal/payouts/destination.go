package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/rassdread/homecheff-app-sub014/pkg/stripe"
)

// TransferRequest describes one seller transfer.
type TransferRequest struct {
	EscrowID    uuid.UUID
	OrderID     uuid.UUID
	AmountCents int64
	Currency    string
	Destination string
}

// IdempotencyKey is stable per escrow so a retried transfer cannot move money twice.
func (r TransferRequest) IdempotencyKey() string {
	return "escrow-payout-" + r.EscrowID.String()
}

// PayoutDestination moves seller money to the seller's payout account.
type PayoutDestination interface {
	Transfer(ctx context.Context, req TransferRequest) (providerRef string, err error)
}

// PartnerTransfer describes a delivery-partner payout.
type PartnerTransfer struct {
	DeliveryOrderID uuid.UUID
	OrderID         uuid.UUID
	ToUserID        uuid.UUID
	AmountCents     int64
}

// PartnerPayoutDestination is where delivery-partner money would move.
type PartnerPayoutDestination interface {
	PayPartner(ctx context.Context, req PartnerTransfer) (providerRef string, err error)
}

// LedgerOnlyDestination records partner payouts without moving money.
type LedgerOnlyDestination struct{}

func (LedgerOnlyDestination) PayPartner(context.Context, PartnerTransfer) (string, error) {
	return "", nil
}

// StripeDestination transfers seller payouts to Stripe Connect accounts.
type StripeDestination struct {
	transfers pkgstripe.TransferCreator
}

// NewStripeDestination wraps the Stripe transfer API.
func NewStripeDestination(transfers pkgstripe.TransferCreator) (*StripeDestination, error) {
	if transfers == nil {
		return nil, errors.New("stripe transfer api required")
	}
	return &StripeDestination{transfers: transfers}, nil
}

func (d *StripeDestination) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	if strings.TrimSpace(req.Destination) == "" {
		return "", errors.New("destination account required")
	}
	if req.AmountCents <= 0 {
		return "", fmt.Errorf("invalid transfer amount %d", req.AmountCents)
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyEUR)
	}
	params := &stripe.TransferCreateParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(currency),
		Destination:   stripe.String(req.Destination),
		TransferGroup: stripe.String("ORDER_" + req.OrderID.String()),
		Metadata: map[string]string{
			"orderId":  req.OrderID.String(),
			"type":     "seller_payout",
			"escrowId": req.EscrowID.String(),
		},
	}
	params.SetIdempotencyKey(req.IdempotencyKey())

	transfer, err := d.transfers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe transfer: %w", err)
	}
	return transfer.ID, nil
}
