//go:build integration

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ppiankov/claimlink/internal/model"
)

func TestKafka_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.1.7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	cfg := model.LedgerConfig{Enabled: true, Brokers: []string{broker}, Topic: "claimlink.test.notarized"}
	n, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	snap := NewSnapshot(testReport())
	receipt, err := n.Notarize(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, cfg.Topic, receipt.Topic)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.NotEmpty(t, records)
	assert.Equal(t, snap.ClaimID, string(records[0].Key))

	want, err := snap.Canonical()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(records[0].Value))
	assert.True(t, Verify(snap, receipt.Digest))
}
