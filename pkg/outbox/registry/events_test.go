package registry

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox/payloads"
)

var testTopics = config.PubSubConfig{
	OrdersTopic:  "orders-topic",
	PayoutsTopic: "payouts-topic",
	ReviewsTopic: "reviews-topic",
	UsersTopic:   "users-topic",
}

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)
	return reg
}

func envelopeOf(t *testing.T, data string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.CurrentEnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return raw
}

func row(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, payload json.RawMessage) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestResolveDecodesPayoutPayload(t *testing.T) {
	reg := newTestRegistry(t)
	escrowID := uuid.New()
	data, err := json.Marshal(payloads.PayoutRecordedEvent{
		PayoutID:    uuid.New(),
		Kind:        enums.PayoutKindSeller,
		ToUserID:    uuid.New(),
		EscrowID:    &escrowID,
		AmountCents: 8800,
	})
	require.NoError(t, err)

	resolved, err := reg.Resolve(row(enums.EventPayoutRecorded, enums.AggregatePayout, envelopeOf(t, string(data))))
	require.NoError(t, err)
	assert.Equal(t, "payouts-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.PayoutRecordedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, escrowID, *payload.EscrowID)
	assert.EqualValues(t, 8800, payload.AmountCents)
	assert.NotEmpty(t, resolved.Envelope.EventID)
}

func TestResolveRoutesByEventType(t *testing.T) {
	reg := newTestRegistry(t)
	cases := []struct {
		event     enums.OutboxEventType
		aggregate enums.OutboxAggregateType
		topic     string
	}{
		{enums.EventOrderShipped, enums.AggregateOrder, "orders-topic"},
		{enums.EventOrderDelivered, enums.AggregateOrder, "orders-topic"},
		{enums.EventDeliveryStatusChanged, enums.AggregateDeliveryOrder, "orders-topic"},
		{enums.EventReviewSubmitted, enums.AggregateReview, "reviews-topic"},
		{enums.EventUserDeleted, enums.AggregateUser, "users-topic"},
	}
	for _, tc := range cases {
		resolved, err := reg.Resolve(row(tc.event, tc.aggregate, envelopeOf(t, `{}`)))
		require.NoError(t, err, tc.event)
		assert.Equal(t, tc.topic, resolved.Descriptor.Topic, tc.event)
	}
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestRegistry(t)
	missingID := row(enums.EventReviewSubmitted, enums.AggregateReview, envelopeOf(t, `{}`))
	missingID.AggregateID = uuid.Nil

	cases := map[string]models.OutboxEvent{
		"unknown type":       row("label_printed", enums.AggregateOrder, envelopeOf(t, `{}`)),
		"aggregate mismatch": row(enums.EventUserDeleted, enums.AggregateOrder, envelopeOf(t, `{}`)),
		"missing aggregate":  missingID,
		"null data":          row(enums.EventDeliveryStatusChanged, enums.AggregateDeliveryOrder, envelopeOf(t, `null`)),
		"broken envelope":    row(enums.EventOrderShipped, enums.AggregateOrder, json.RawMessage(`{"data":`)),
		"wrong payload type": row(enums.EventOrderShipped, enums.AggregateOrder, envelopeOf(t, `[1,2]`)),
	}
	for name, event := range cases {
		_, err := reg.Resolve(event)
		var nonRetry NonRetryableError
		assert.True(t, errors.As(err, &nonRetry), "%s: expected non-retryable, got %v", name, err)
	}
}

func TestNewEventRegistryNamesEveryMissingTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	require.Error(t, err)
	for _, name := range []string{"payouts", "reviews", "users"} {
		assert.True(t, strings.Contains(err.Error(), name), "missing %s in %v", name, err)
	}
}

func TestTopicsAreDistinctAndSorted(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Equal(t, []string{"orders-topic", "payouts-topic", "reviews-topic", "users-topic"}, reg.Topics())
}

func TestNonRetryableErrorUnwraps(t *testing.T) {
	cause := errors.New("bad row")
	err := error(NewNonRetryableError(cause))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}
