package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Redis when REDIS_TEST_ADDR is set; uses DB 15.
func TestReceiptRoundTripAndDLQ(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Del(ctx, QueueReceipts, QueueDLQ).Err())

	q := NewQueue(rdb, nil)
	require.NoError(t, q.EnqueueReceipt(ctx, ReceiptPayload{OrderID: "O-1", TransactionID: "T-1", Amount: "165.00"}))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeCheckoutReceipt, job.Type)

	var p ReceiptPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, "T-1", p.TransactionID)

	for i := 0; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
	}
	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, dead, 1)
	n, err := rdb.LLen(ctx, QueueReceipts).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(MaxRetries-1), n)
}
