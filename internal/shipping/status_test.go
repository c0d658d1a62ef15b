package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

func TestMapCarrierStatus(t *testing.T) {
	cases := []struct {
		raw  string
		kind enums.ShippingStatusKind
	}{
		{"created", enums.ShippingLabelCreated},
		{"label_created", enums.ShippingLabelCreated},
		{"shipped", enums.ShippingShipped},
		{"SHIPPED", enums.ShippingShipped},
		{"in_transit", enums.ShippingInTransit},
		{"Out_For_Delivery", enums.ShippingOutForDelivery},
		{" delivered ", enums.ShippingDelivered},
		{"failed", enums.ShippingFailed},
		{"exception", enums.ShippingFailed},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			status := MapCarrierStatus(tc.raw)
			assert.True(t, status.Known())
			assert.Equal(t, tc.kind, status.Kind())
			assert.Equal(t, string(tc.kind), status.Raw())
		})
	}
}

func TestMapCarrierStatusPassthrough(t *testing.T) {
	status := MapCarrierStatus("Awaiting_Customs")
	assert.False(t, status.Known())
	assert.Equal(t, enums.ShippingPassthrough, status.Kind())
	assert.Equal(t, "Awaiting_Customs", status.Raw())

	assert.True(t, MapCarrierStatus("").IsZero())
}

func TestImpliesShipped(t *testing.T) {
	assert.True(t, impliesShipped(MapCarrierStatus("shipped")))
	assert.True(t, impliesShipped(MapCarrierStatus("in_transit")))
	assert.True(t, impliesShipped(MapCarrierStatus("out_for_delivery")))
	assert.False(t, impliesShipped(MapCarrierStatus("delivered")))
	assert.False(t, impliesShipped(MapCarrierStatus("label_created")))
	assert.False(t, impliesShipped(MapCarrierStatus("unknown-thing")))
}
