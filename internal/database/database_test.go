package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{"invalid connection string", "invalid://connection"},
		{"unreachable host", "postgres://localhost:59999/nonexistent?connect_timeout=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pool, err := Connect(context.Background(), tt.url)
			require.Error(t, err)
			require.Nil(t, pool)
		})
	}
}

func TestTestPool_Shared(t *testing.T) {
	require.Same(t, TestPool(t), TestPool(t))
}

func TestCheck(t *testing.T) {
	t.Parallel()

	t.Run("answers on a live transaction", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, Check(context.Background(), TestTx(t)))
	})

	t.Run("fails on a cancelled context", func(t *testing.T) {
		t.Parallel()
		db := TestTx(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorContains(t, Check(ctx, db), "database unavailable")
	})
}
