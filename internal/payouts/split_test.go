package payouts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartnerShare(t *testing.T) {
	cases := []struct {
		fee     int64
		percent int
		partner int64
	}{
		{500, 88, 440},
		{495, 88, 436},  // 435.6 rounds up
		{125, 88, 110},  // 110.0
		{3, 50, 2},      // 1.5 rounds half up
		{999, 100, 999}, // full share
		{0, 88, 0},
		{-10, 88, 0},
	}
	for _, tc := range cases {
		got := PartnerShare(tc.fee, tc.percent)
		assert.Equal(t, tc.partner, got, "fee=%d percent=%d", tc.fee, tc.percent)
		if tc.fee > 0 {
			assert.Equal(t, tc.fee, got+PlatformShare(tc.fee, tc.percent))
		}
	}
}
