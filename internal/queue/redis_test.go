package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

type usageItem struct {
	Provider string `json:"provider"`
	Success  bool   `json:"success"`
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	client, mr := setupTestRedis(t)
	q := NewRedisQueue(client, DefaultConfig("usage"))
	ctx := context.Background()

	assert.Equal(t, "smartai:queue:usage", q.Key())

	require.NoError(t, q.Enqueue(ctx, usageItem{Provider: "groq", Success: true}))
	assert.True(t, mr.Exists("smartai:queue:usage"))

	items, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	raw, ok := items[0].(json.RawMessage)
	require.True(t, ok)

	var got usageItem
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, usageItem{Provider: "groq", Success: true}, got)
}

func TestRedisQueue_BatchesPreserveOrder(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewRedisQueue(client, DefaultConfig("usage"))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, q.Enqueue(ctx, i))
	}

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, length)

	items, err := q.DequeueWithTimeout(ctx, 5, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.JSONEq(t, "0", string(items[0].(json.RawMessage)))
	assert.JSONEq(t, "4", string(items[4].(json.RawMessage)))

	items, err = q.DequeueWithTimeout(ctx, 5, time.Second)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRedisQueue_DequeueWithTimeoutEmpty(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewRedisQueue(client, DefaultConfig("usage"))

	items, err := q.DequeueWithTimeout(context.Background(), 5, time.Second)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedisQueue_SurvivesNewInstance(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedisQueue(client, DefaultConfig("usage"))
	require.NoError(t, first.Enqueue(ctx, "pending"))
	require.NoError(t, first.Close())

	second := NewRedisQueue(client, DefaultConfig("usage"))
	length, err := second.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, length)
}

func TestRedisDeadLetterQueue(t *testing.T) {
	client, mr := setupTestRedis(t)
	dlq := NewRedisDeadLetterQueue(client, DefaultConfig("usage"))
	ctx := context.Background()

	require.NoError(t, dlq.Add(ctx, usageItem{Provider: "groq"}, errors.New("insert failed")))
	time.Sleep(time.Millisecond)
	require.NoError(t, dlq.Add(ctx, usageItem{Provider: "together"}, ErrMaxRetriesExceeded))
	assert.True(t, mr.Exists("smartai:dlq:usage"))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "insert failed", items[0].Error)
	assert.JSONEq(t, `{"provider":"groq","success":false}`, string(items[0].Item.(json.RawMessage)))

	limited, err := dlq.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, items[0].ID, limited[0].ID)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))
	assert.ErrorIs(t, dlq.Remove(ctx, items[0].ID), ErrItemNotFound)

	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestNew_UsesRedisWhenConfigured(t *testing.T) {
	client, _ := setupTestRedis(t)
	config := DefaultConfig("usage")
	config.UseRedis = true

	q, dlq := New(config, client)
	assert.IsType(t, &RedisQueue{}, q)
	assert.IsType(t, &RedisDeadLetterQueue{}, dlq)
}
