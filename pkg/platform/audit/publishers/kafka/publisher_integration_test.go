//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "ledger/pkg/platform/audit"
	"ledger/pkg/testutil/containers"
)

func TestPublishRoundTrip(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	const topic = "ledger.audit.changes.test"

	pub, err := New([]string{rp.Broker}, topic)
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, pub.EnsureTopic(ctx))
	require.NoError(t, pub.EnsureTopic(ctx), "existing topic is not an error")

	newQty := "12"
	set := audit.ChangeSet{
		HeaderID:  7,
		RequestID: "req-7",
		UserName:  "alice",
		Changes: []audit.FieldChange{
			{HeaderID: 7, EntityType: "DocumentLineItem", EntityID: "3", Operation: audit.OperationUpdated, FieldName: "Quantity", NewValue: &newQty},
		},
	}
	require.NoError(t, pub.Publish(ctx, set))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "7", string(records[0].Key))

	var got audit.ChangeSet
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, int64(7), got.HeaderID)
	require.Len(t, got.Changes, 1)
	assert.Equal(t, "12", *got.Changes[0].NewValue)
}
