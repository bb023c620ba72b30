package rankcycle

import (
	"context"
	"testing"

	testingpkg "github.com/aristath/tierledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_WatermarkPerUserAndMonth(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	done, err := repo.IsProcessed(ctx, "alice", "2025-01")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, repo.MarkProcessed(ctx, "alice", "2025-01", "run-1"))

	done, err = repo.IsProcessed(ctx, "alice", "2025-01")
	require.NoError(t, err)
	assert.True(t, done)

	for _, other := range [][2]string{{"alice", "2025-02"}, {"bob", "2025-01"}} {
		done, err := repo.IsProcessed(ctx, other[0], other[1])
		require.NoError(t, err)
		assert.False(t, done, "%s/%s", other[0], other[1])
	}

	assert.Error(t, repo.MarkProcessed(ctx, "alice", "2025-01", "run-2"), "a month is processed once per user")
}
