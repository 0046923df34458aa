package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/secure-file-share/internal/model"
	"github.com/iliyamo/secure-file-share/internal/repository"
)

func newGrant(hash string, ttl time.Duration) model.DownloadGrant {
	now := time.Now().UTC()
	return model.DownloadGrant{
		TokenHash: hash,
		FileID:    "file-abc",
		IssuedTo:  7,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestPutRejectsDuplicateToken(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryGrantStore()

	require.NoError(t, s.Put(ctx, newGrant("h1", time.Minute)))
	assert.ErrorIs(t, s.Put(ctx, newGrant("h1", time.Minute)), repository.ErrTokenExists)
}

func TestTryConsumeUnknownToken(t *testing.T) {
	s := repository.NewMemoryGrantStore()
	_, err := s.TryConsume(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrGrantNotFound)
}

func TestTryConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryGrantStore()
	require.NoError(t, s.Put(ctx, newGrant("h1", time.Minute)))

	g, err := s.TryConsume(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, g.Consumed)
	assert.Equal(t, "file-abc", g.FileID)

	_, err = s.TryConsume(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrGrantConsumed)
}

func TestTryConsumeExpiredGrant(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryGrantStore()
	require.NoError(t, s.Put(ctx, newGrant("h1", 30*time.Minute)))

	// Move the clock 31 minutes forward: the unconsumed grant must now
	// be dead, and staying dead must not depend on GC having run.
	s.Now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, err := s.TryConsume(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrGrantExpired)

	// Still expired on a second attempt, never consumable.
	_, err = s.TryConsume(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrGrantExpired)
}

func TestTryConsumeConcurrent(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryGrantStore()
	require.NoError(t, s.Put(ctx, newGrant("h1", time.Minute)))

	const n = 64
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		consumed int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.TryConsume(ctx, "h1")
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				wins++
			case repository.ErrGrantConsumed:
				consumed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one consumer must win")
	assert.Equal(t, n-1, consumed, "all others must see ErrGrantConsumed")
}

func TestDeleteExpiredHonorsRetention(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryGrantStore()
	require.NoError(t, s.Put(ctx, newGrant("old", time.Minute)))
	require.NoError(t, s.Put(ctx, newGrant("recent", 45*time.Minute)))
	require.NoError(t, s.Put(ctx, newGrant("live", 2*time.Hour)))

	base := time.Now()
	s.Now = func() time.Time { return base.Add(90 * time.Minute) }

	// With a 60 minute retention the cutoff sits at +30min: "old"
	// (expired at +1min) is past grace and must go, "recent" (expired
	// at +45min) is still inside the audit window, "live" has not even
	// expired.
	removed, err := s.DeleteExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = s.TryConsume(ctx, "recent")
	assert.ErrorIs(t, err, repository.ErrGrantExpired, "retained but still not consumable")
	_, err = s.TryConsume(ctx, "live")
	assert.NoError(t, err)
}
