package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "warden/pkg/domain-errors"
)

func TestInMemoryStoreWindow(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	for i := 0; i < 3; i++ {
		res, err := store.Allow(ctx, "admin:a-1", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := store.Allow(ctx, "admin:a-1", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// Other keys are unaffected.
	res, err = store.Allow(ctx, "admin:a-2", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	require.NoError(t, store.Reset(ctx, "admin:a-1"))
	res, err = store.Allow(ctx, "admin:a-1", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiterMapsToRateLimitError(t *testing.T) {
	ctx := context.Background()
	limiter := NewLimiter(NewInMemoryStore(), 2, time.Hour)

	require.NoError(t, limiter.Check(ctx, "a-1"))
	require.NoError(t, limiter.Check(ctx, "a-1"))

	err := limiter.Check(ctx, "a-1")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))
}

func TestLimiterZeroLimitDisabled(t *testing.T) {
	limiter := NewLimiter(NewInMemoryStore(), 0, time.Hour)
	for i := 0; i < 10; i++ {
		assert.NoError(t, limiter.Check(context.Background(), "a-1"))
	}
}
