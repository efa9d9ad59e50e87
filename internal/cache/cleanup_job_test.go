package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJob(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	job := NewCleanupJob(repo, zerolog.Nop())

	assert.Equal(t, "cache_cleanup", job.Name())

	require.NoError(t, repo.Put("AAPL", CategoryQuote, "fresh", time.Hour))
	require.NoError(t, repo.Put("MSFT", CategoryQuote, "old", -time.Hour))

	require.NoError(t, job.Run())

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Zero(t, stats.Expired)
}
