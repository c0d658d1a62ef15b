package shipping

import (
	"strings"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

var carrierStatusAliases = map[string]enums.ShippingStatusKind{
	"created":          enums.ShippingLabelCreated,
	"label_created":    enums.ShippingLabelCreated,
	"shipped":          enums.ShippingShipped,
	"in_transit":       enums.ShippingInTransit,
	"out_for_delivery": enums.ShippingOutForDelivery,
	"delivered":        enums.ShippingDelivered,
	"failed":           enums.ShippingFailed,
	"exception":        enums.ShippingFailed,
}

// MapCarrierStatus normalizes a carrier status. Matching is case-insensitive;
// unknown values are kept verbatim as a passthrough status.
func MapCarrierStatus(raw string) enums.ShippingStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return enums.ShippingStatus{}
	}
	if kind, ok := carrierStatusAliases[key]; ok {
		return enums.KnownShippingStatus(kind)
	}
	return enums.PassthroughShippingStatus(raw)
}

// impliesShipped reports whether the parcel has left the seller.
func impliesShipped(status enums.ShippingStatus) bool {
	switch status.Kind() {
	case enums.ShippingShipped, enums.ShippingInTransit, enums.ShippingOutForDelivery:
		return true
	}
	return false
}
