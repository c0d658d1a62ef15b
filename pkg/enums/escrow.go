package enums

import "fmt"

// EscrowStatus is the lifecycle of a payment escrow. Only the payouts engine
// moves an escrow between states.
type EscrowStatus string

const (
	EscrowStatusHeld            EscrowStatus = "held"
	EscrowStatusPayoutScheduled EscrowStatus = "payout_scheduled"
	EscrowStatusPaidOut         EscrowStatus = "paid_out"
)

var validEscrowStatuses = []EscrowStatus{
	EscrowStatusHeld,
	EscrowStatusPayoutScheduled,
	EscrowStatusPaidOut,
}

func (s EscrowStatus) IsValid() bool {
	for _, candidate := range validEscrowStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseEscrowStatus(value string) (EscrowStatus, error) {
	for _, candidate := range validEscrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow status %q", value)
}

// PayoutTrigger selects which fulfillment event releases an escrow.
type PayoutTrigger string

const (
	PayoutTriggerShipped   PayoutTrigger = "SHIPPED"
	PayoutTriggerDelivered PayoutTrigger = "DELIVERED"
)

var validPayoutTriggers = []PayoutTrigger{
	PayoutTriggerShipped,
	PayoutTriggerDelivered,
}

func (t PayoutTrigger) IsValid() bool {
	for _, candidate := range validPayoutTriggers {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParsePayoutTrigger(value string) (PayoutTrigger, error) {
	for _, candidate := range validPayoutTriggers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout trigger %q", value)
}

// PayoutKind distinguishes who a payout row was recorded for.
type PayoutKind string

const (
	PayoutKindSeller          PayoutKind = "seller"
	PayoutKindDeliveryPartner PayoutKind = "delivery_partner"
)

func (k PayoutKind) IsValid() bool {
	return k == PayoutKindSeller || k == PayoutKindDeliveryPartner
}
