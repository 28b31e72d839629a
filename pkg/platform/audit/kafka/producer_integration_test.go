//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "creditflow/pkg/platform/audit"
	"creditflow/pkg/platform/audit/kafka"
	auditpg "creditflow/pkg/platform/audit/store/postgres"
	"creditflow/pkg/testutil/containers"
)

func TestProducerPublishesKeyedEvents(t *testing.T) {
	broker := containers.GetManager().GetKafka(t).Broker
	topic := "creditflow.audit." + uuid.NewString()[:8]

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	producer, err := kafka.NewProducer([]string{broker}, topic)
	require.NoError(t, err)
	defer producer.Close(ctx)

	require.NoError(t, producer.EnsureTopic(ctx, 1, 1))
	require.NoError(t, producer.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	event := audit.Event{
		ID:            uuid.New(),
		Category:      audit.CategoryCompliance,
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Action:        string(audit.EventCreditDecisionMade),
		Subject:       "CLI12345",
		ApplicationID: uuid.NewString(),
		Decision:      "APPROVED",
	}
	require.NoError(t, producer.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "CLI12345", string(rec.Key))
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "event_type", rec.Headers[0].Key)
	assert.Equal(t, string(audit.EventCreditDecisionMade), string(rec.Headers[0].Value))

	var payload auditpg.Payload
	require.NoError(t, json.Unmarshal(rec.Value, &payload))
	assert.Equal(t, event.ID.String(), payload.ID)
	assert.Equal(t, "compliance", payload.Category)
	assert.Equal(t, "APPROVED", payload.Decision)
}
