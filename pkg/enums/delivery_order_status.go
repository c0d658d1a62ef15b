package enums

import (
	"fmt"
	"strings"
)

// DeliveryOrderStatus is the lifecycle of a delivery-partner assignment.
type DeliveryOrderStatus string

const (
	DeliveryOrderStatusAccepted  DeliveryOrderStatus = "ACCEPTED"
	DeliveryOrderStatusPickedUp  DeliveryOrderStatus = "PICKED_UP"
	DeliveryOrderStatusDelivered DeliveryOrderStatus = "DELIVERED"
	DeliveryOrderStatusCancelled DeliveryOrderStatus = "CANCELLED"
)

var validDeliveryOrderStatuses = []DeliveryOrderStatus{
	DeliveryOrderStatusAccepted,
	DeliveryOrderStatusPickedUp,
	DeliveryOrderStatusDelivered,
	DeliveryOrderStatusCancelled,
}

func (s DeliveryOrderStatus) String() string {
	return string(s)
}

func (s DeliveryOrderStatus) IsValid() bool {
	for _, candidate := range validDeliveryOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s DeliveryOrderStatus) IsTerminal() bool {
	return s == DeliveryOrderStatusDelivered || s == DeliveryOrderStatusCancelled
}

func ParseDeliveryOrderStatus(value string) (DeliveryOrderStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validDeliveryOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery order status %q", value)
}

// ShippingLabelStatus mirrors the carrier label lifecycle.
type ShippingLabelStatus string

const (
	ShippingLabelStatusGenerated ShippingLabelStatus = "generated"
	ShippingLabelStatusShipped   ShippingLabelStatus = "shipped"
	ShippingLabelStatusDelivered ShippingLabelStatus = "delivered"
)

func (s ShippingLabelStatus) IsValid() bool {
	switch s {
	case ShippingLabelStatusGenerated, ShippingLabelStatusShipped, ShippingLabelStatusDelivered:
		return true
	}
	return false
}
