package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"provenance-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires Redis (set TEST_REDIS_ADDR)")
	}

	c, err := NewClient(addr, "", 0, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStatusRoundTrip(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	productID := "PROD-" + uuid.NewString()

	_, _, ok, err := c.GetStatus(ctx, productID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetStatus(ctx, productID, models.StatusDelivered, "Shop"))

	status, location, ok, err := c.GetStatus(ctx, productID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.StatusDelivered, status)
	assert.Equal(t, "Shop", location)

	ttl, err := c.rdb.TTL(ctx, statusKey(productID)).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "product-status:PROD-001", statusKey("PROD-001"))
}

func TestDefaultTTL(t *testing.T) {
	c := NewWithRedis(nil, 0)
	assert.Equal(t, DefaultStatusTTL, c.ttl)
}
