package redis

import "strings"

const keyNamespace = "hc"

// Key families. Every key the services write lives under hc:<family>:...
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familyCountdown   = "countdown"
	familySession     = "session"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(familyIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(familyRateLimit, scope)
}

// CountdownKey holds the unix start time of a delivery countdown.
func (c *Client) CountdownKey(deliveryOrderID string) string {
	return buildKey(familyCountdown, deliveryOrderID)
}

func (c *Client) AccessSessionKey(accessID string) string {
	return buildKey(familySession, "access", accessID)
}

func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
