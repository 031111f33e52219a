package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	redisRepo "github.com/landscape-rescale/internal/repository/redis"
)

const (
	testRequestStream = "test:stream:rescale:request"
	testDoneStream    = "test:stream:rescale:done"
)

// getTestRedisClient creates a Redis client for testing
func getTestRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     "localhost:6379",
		Password: "",
		DB:       1, // Use DB 1 for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for integration tests: %v", err)
	}

	client.Del(ctx, testRequestStream, testDoneStream)

	return client
}

func TestStreamRepository_CreateConsumerGroup(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewStreamRepository(client, zap.NewNop())
	ctx := context.Background()
	defer client.Del(ctx, testRequestStream)

	err := repo.CreateConsumerGroup(ctx, testRequestStream, "test-group")
	require.NoError(t, err)

	groups, err := client.XInfoGroups(ctx, testRequestStream).Result()
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Equal(t, "test-group", groups[0].Name)

	// BUSYGROUP is not an error
	err = repo.CreateConsumerGroup(ctx, testRequestStream, "test-group")
	assert.NoError(t, err)
}

func TestStreamRepository_PublishToStream(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewStreamRepository(client, zap.NewNop())
	ctx := context.Background()
	defer client.Del(ctx, testDoneStream)

	runID := uuid.New()
	event := &domain.RescaleDoneEvent{
		RunID:        runID,
		Indicator:    "acacia_aneura",
		Observations: 120,
		Kinds: []domain.KindOutcome{
			{Kind: domain.UnitKindGrid, Assigned: 118, Unassigned: 2, Units: 7, Filtered: 3},
		},
	}

	require.NoError(t, repo.PublishToStream(ctx, testDoneStream, event))

	messages, err := client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{testDoneStream, "0"},
		Count:   1,
	}).Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Messages, 1)

	dataStr, ok := messages[0].Messages[0].Values["data"].(string)
	require.True(t, ok)

	var received domain.RescaleDoneEvent
	require.NoError(t, json.Unmarshal([]byte(dataStr), &received))
	assert.Equal(t, runID, received.RunID)
	assert.Equal(t, "acacia_aneura", received.Indicator)
	require.Len(t, received.Kinds, 1)
	assert.Equal(t, 7, received.Kinds[0].Units)
}

func TestStreamRepository_ConsumeBatchAndAck(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewStreamRepository(client, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer client.Del(context.Background(), testRequestStream)

	group := "test-consume-group"
	require.NoError(t, repo.CreateConsumerGroup(ctx, testRequestStream, group))

	runID := uuid.New()
	for _, ind := range []string{"a", "b", "c"} {
		require.NoError(t, repo.PublishToStream(ctx, testRequestStream, &domain.RescaleRequestEvent{
			RunID:      runID,
			Indicators: []string{ind},
		}))
	}

	messages, err := repo.ConsumeBatch(ctx, testRequestStream, group, "test-consumer", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	var first domain.RescaleRequestEvent
	require.NoError(t, json.Unmarshal([]byte(messages[0].Data), &first))
	assert.Equal(t, runID, first.RunID)
	assert.Equal(t, []string{"a"}, first.Indicators)

	pending, err := client.XPending(ctx, testRequestStream, group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending.Count)

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	require.NoError(t, repo.AckMessages(ctx, testRequestStream, group, ids...))

	pending, err = client.XPending(ctx, testRequestStream, group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestStreamRepository_ConsumeBatch_Empty(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewStreamRepository(client, zap.NewNop())
	ctx := context.Background()
	defer client.Del(ctx, testRequestStream)

	group := "test-empty-group"
	require.NoError(t, repo.CreateConsumerGroup(ctx, testRequestStream, group))

	messages, err := repo.ConsumeBatch(ctx, testRequestStream, group, "test-consumer", 10, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestStreamRepository_AckMessages_NoIDs(t *testing.T) {
	repo := redisRepo.NewStreamRepository(nil, zap.NewNop())
	assert.NoError(t, repo.AckMessages(context.Background(), testRequestStream, "g"))
}

func TestStreamRepository_ClaimPending(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewStreamRepository(client, zap.NewNop())
	ctx := context.Background()
	defer client.Del(ctx, testRequestStream)

	group := "test-claim-group"
	require.NoError(t, repo.CreateConsumerGroup(ctx, testRequestStream, group))
	require.NoError(t, repo.PublishToStream(ctx, testRequestStream, domain.RescaleRequestEvent{
		RunID:      uuid.New(),
		Indicators: []string{"acacia"},
	}))

	// первый consumer читает и "падает" без ack
	read, err := repo.ConsumeBatch(ctx, testRequestStream, group, "crashed", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, read, 1)

	// пока сообщение свежее, его не забирают
	claimed, err := repo.ClaimPending(ctx, testRequestStream, group, "survivor", time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	time.Sleep(20 * time.Millisecond)
	claimed, err = repo.ClaimPending(ctx, testRequestStream, group, "survivor", 10*time.Millisecond, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, read[0].ID, claimed[0].ID)
	assert.Equal(t, read[0].Data, claimed[0].Data)

	consumers, err := client.XInfoConsumers(ctx, testRequestStream, group).Result()
	require.NoError(t, err)
	pendingBy := make(map[string]int64, len(consumers))
	for _, c := range consumers {
		pendingBy[c.Name] = c.Pending
	}
	assert.Equal(t, int64(0), pendingBy["crashed"])
	assert.Equal(t, int64(1), pendingBy["survivor"])

	require.NoError(t, repo.AckMessages(ctx, testRequestStream, group, claimed[0].ID))
}
