package session_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/trajet/trajet/internal/session"
)

// TestRedisStore_Contract runs against a real Redis when REDIS_ADDR is set.
func TestRedisStore_Contract(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb, err := session.NewRedisClient(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	store := session.NewRedisStore(session.RedisConfig{
		Client:    rdb,
		TTL:       time.Minute,
		KeyPrefix: "trajet-test:" + uuid.NewString() + ":",
	})
	require.NoError(t, store.Ping(context.Background()))

	storeContract(t, store)
}
