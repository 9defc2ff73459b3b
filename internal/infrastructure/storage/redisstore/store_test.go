package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balance_engine/internal/app/port"
)

// Runs against a live server only when BALANCE_ENGINE_REDIS_ADDR is set.
func TestStore_Live(t *testing.T) {
	addr := os.Getenv("BALANCE_ENGINE_REDIS_ADDR")
	if addr == "" {
		t.Skip("BALANCE_ENGINE_REDIS_ADDR not set")
	}
	s, err := New([]string{addr}, os.Getenv("BALANCE_ENGINE_REDIS_PASSWORD"), false, "balance_engine_test")
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Ping(ctx))

	key := "byAccountId.test-" + time.Now().Format("150405.000") + ".balances.bySlug"
	require.NoError(t, s.Set(ctx, key, []byte(`{"toncoin":"bigint:1"}`)))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"toncoin":"bigint:1"}`, string(got))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New(nil, "", false, "")
	assert.Error(t, err)
}

func TestStore_KeyNamespace(t *testing.T) {
	assert.Equal(t, "ns:k", (&Store{namespace: "ns"}).key("k"))
	assert.Equal(t, "k", (&Store{}).key("k"))
}
