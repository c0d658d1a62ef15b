package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPayoutMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPayoutMetrics(reg)
	m.IncReleased("seller")
	m.IncReleased("seller")
	m.IncReleased("delivery_partner")
	m.IncScheduled()
	m.IncSkipped("not_held")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchValue(mfs, "homecheff_payouts_released_total", map[string]string{"kind": "seller"}); err != nil || got != 2 {
		t.Fatalf("expected 2 seller releases, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "homecheff_payouts_skipped_total", map[string]string{"reason": "not_held"}); err != nil || got != 1 {
		t.Fatalf("expected 1 skip, got %f (%v)", got, err)
	}
	mf := findMetricFamily(mfs, "homecheff_payouts_scheduled_total")
	if mf == nil || len(mf.GetMetric()) != 1 || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected payouts_scheduled_total=1")
	}
}

func TestWebhookMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.Observe("ectaroship", "processed")
	m.Observe("", "rejected")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchValue(mfs, "homecheff_carrier_webhooks_total", map[string]string{"carrier": "unknown", "outcome": "rejected"}); err != nil || got != 1 {
		t.Fatalf("expected unknown carrier counted once, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var payouts *PayoutMetrics
	payouts.IncReleased("seller")
	payouts.IncScheduled()
	payouts.IncSkipped("x")
	NewWebhookMetrics(nil).Observe("a", "b")
	var outbox *OutboxMetrics
	outbox.Observe("a", "b")
}

func TestOutboxMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Observe("hc-order-events", "published")
	m.Observe("hc-order-events", "published")
	m.Observe("", "dead_letter")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchValue(mfs, "homecheff_outbox_events_total", map[string]string{"topic": "hc-order-events", "outcome": "published"}); err != nil || got != 2 {
		t.Fatalf("expected 2 published, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "homecheff_outbox_events_total", map[string]string{"topic": "unknown", "outcome": "dead_letter"}); err != nil || got != 1 {
		t.Fatalf("expected 1 dead letter, got %f (%v)", got, err)
	}
}
