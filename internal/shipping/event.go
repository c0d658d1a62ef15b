package shipping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

const (
	EventStatusChanged = "shipment.status_changed"
	EventDelivered     = "shipment.delivered"
	EventShipped       = "shipment.shipped"
	EventLabelCreated  = "label.created"
)

// WebhookEvent is a carrier notification with nested data flattened.
type WebhookEvent struct {
	ID             string
	Type           string
	ShipmentID     string
	LabelID        string
	OrderID        string
	OrderNumber    string
	Status         string
	TrackingNumber string
	DeliveredAt    string
	PDFURL         string
	Price          string
	Carrier        string
}

// ParseWebhookEvent decodes a carrier payload. Fields inside a nested "data"
// object take precedence over top-level ones.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	if raw == nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook payload: empty object")
	}
	fields := map[string]any{}
	for k, v := range raw {
		if k != "data" {
			fields[k] = v
		}
	}
	if nested, ok := raw["data"].(map[string]any); ok {
		for k, v := range nested {
			if str := stringValue(v); str != "" {
				fields[k] = v
			}
		}
	}

	return WebhookEvent{
		ID:             firstString(fields, "event_id", "webhook_id"),
		Type:           firstString(fields, "type", "event"),
		ShipmentID:     firstString(fields, "shipment_id"),
		LabelID:        firstString(fields, "label_id"),
		OrderID:        firstString(fields, "order_id"),
		OrderNumber:    firstString(fields, "order_number"),
		Status:         firstString(fields, "status"),
		TrackingNumber: firstString(fields, "tracking_number"),
		DeliveredAt:    firstString(fields, "delivered_at"),
		PDFURL:         firstString(fields, "pdf_url", "label_url"),
		Price:          firstString(fields, "price"),
		Carrier:        firstString(fields, "carrier"),
	}, nil
}

// CarrierLabelID is the carrier's identifier for the label or shipment.
func (e WebhookEvent) CarrierLabelID() string {
	if e.LabelID != "" {
		return e.LabelID
	}
	return e.ShipmentID
}

// ResolvedStatus maps the explicit status, falling back to the status implied
// by the event type.
func (e WebhookEvent) ResolvedStatus() enums.ShippingStatus {
	if status := MapCarrierStatus(e.Status); !status.IsZero() {
		return status
	}
	switch e.Type {
	case EventDelivered:
		return enums.KnownShippingStatus(enums.ShippingDelivered)
	case EventShipped:
		return enums.KnownShippingStatus(enums.ShippingShipped)
	}
	return enums.ShippingStatus{}
}

// InternalOrderID parses order_id when it carries a platform UUID.
func (e WebhookEvent) InternalOrderID() (uuid.UUID, bool) {
	if e.OrderID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(e.OrderID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

var deliveredAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DeliveredAtOr returns the parsed delivered_at, or fallback when absent or
// unparseable.
func (e WebhookEvent) DeliveredAtOr(fallback time.Time) time.Time {
	value := strings.TrimSpace(e.DeliveredAt)
	if value == "" {
		return fallback
	}
	for _, layout := range deliveredAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return fallback
}

// PriceCents converts the euro price to cents, rounding half up. A missing
// price yields nil.
func (e WebhookEvent) PriceCents() (*int64, error) {
	value := strings.TrimSpace(e.Price)
	if value == "" {
		return nil, nil
	}
	if !strings.Contains(value, ".") {
		value = strings.Replace(value, ",", ".", 1)
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid label price %q: %w", e.Price, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("invalid label price %q", e.Price)
	}
	cents := amount.Shift(2).Round(0).IntPart()
	return &cents, nil
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key]; ok {
			if s := stringValue(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
