package enums

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ShippingStatusKind enumerates the carrier statuses the platform understands.
type ShippingStatusKind string

const (
	ShippingLabelCreated   ShippingStatusKind = "label_created"
	ShippingShipped        ShippingStatusKind = "shipped"
	ShippingInTransit      ShippingStatusKind = "in_transit"
	ShippingOutForDelivery ShippingStatusKind = "out_for_delivery"
	ShippingDelivered      ShippingStatusKind = "delivered"
	ShippingFailed         ShippingStatusKind = "failed"
	// ShippingPassthrough marks a carrier status with no canonical mapping.
	ShippingPassthrough ShippingStatusKind = "passthrough"
)

var knownShippingStatusKinds = []ShippingStatusKind{
	ShippingLabelCreated,
	ShippingShipped,
	ShippingInTransit,
	ShippingOutForDelivery,
	ShippingDelivered,
	ShippingFailed,
}

// ShippingStatus is either a known kind or a passthrough carrying the carrier's
// verbatim status. The zero value is an empty passthrough.
type ShippingStatus struct {
	kind ShippingStatusKind
	raw  string
}

// KnownShippingStatus builds a status for one of the canonical kinds.
func KnownShippingStatus(kind ShippingStatusKind) ShippingStatus {
	return ShippingStatus{kind: kind, raw: string(kind)}
}

// PassthroughShippingStatus keeps an unmapped carrier status verbatim.
func PassthroughShippingStatus(raw string) ShippingStatus {
	return ShippingStatus{kind: ShippingPassthrough, raw: raw}
}

// ShippingStatusFromStored rebuilds a status from its persisted text form.
func ShippingStatusFromStored(value string) ShippingStatus {
	for _, candidate := range knownShippingStatusKinds {
		if string(candidate) == value {
			return KnownShippingStatus(candidate)
		}
	}
	return PassthroughShippingStatus(value)
}

// Kind returns the canonical kind, or ShippingPassthrough.
func (s ShippingStatus) Kind() ShippingStatusKind {
	if s.kind == "" {
		return ShippingPassthrough
	}
	return s.kind
}

// Known reports whether the status maps to a canonical kind.
func (s ShippingStatus) Known() bool {
	return s.kind != "" && s.kind != ShippingPassthrough
}

// Raw returns the persisted text: the canonical kind or the verbatim carrier value.
func (s ShippingStatus) Raw() string {
	return s.raw
}

func (s ShippingStatus) IsZero() bool {
	return s.raw == ""
}

func (s ShippingStatus) IsShipped() bool {
	return s.kind == ShippingShipped
}

func (s ShippingStatus) IsDelivered() bool {
	return s.kind == ShippingDelivered
}

func (s ShippingStatus) String() string {
	return s.raw
}

// Value implements driver.Valuer. Empty statuses are stored as NULL.
func (s ShippingStatus) Value() (driver.Value, error) {
	if s.raw == "" {
		return nil, nil
	}
	return s.raw, nil
}

// Scan implements sql.Scanner.
func (s *ShippingStatus) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = ShippingStatus{}
	case string:
		*s = ShippingStatusFromStored(v)
	case []byte:
		*s = ShippingStatusFromStored(string(v))
	default:
		return fmt.Errorf("unsupported shipping status type %T", value)
	}
	return nil
}

func (s ShippingStatus) MarshalJSON() ([]byte, error) {
	if s.raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s.raw)
}

func (s *ShippingStatus) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = ShippingStatus{}
		return nil
	}
	*s = ShippingStatusFromStored(*raw)
	return nil
}
