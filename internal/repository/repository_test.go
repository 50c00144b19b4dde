package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-points-system/internal/models"
	"referral-points-system/internal/testutil"
	apperrors "referral-points-system/pkg/errors"
)

const (
	alice = "0x52908400098527886E0F7030069857D2E4169EE7"
	bob   = "0xde709f2102306220921060314715629080e2FB77"
	carol = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

func TestCodeRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCodeRepository(testutil.NewDB(t))

	active, err := repo.GetActive(ctx, alice)
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, repo.Create(ctx, &models.ReferralCode{
		Address: alice, Code: "GRAY-WAVE-07", Rarity: "COMMON", RollsUsed: 1, IsActive: true,
	}))

	t.Run("find by code is case insensitive", func(t *testing.T) {
		row, err := repo.FindByCode(ctx, "gray-wave-07")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, alice, row.Address)

		exists, err := repo.ExistsCode(ctx, "GRAY-WAVE-07")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("rotate keeps history", func(t *testing.T) {
		require.NoError(t, repo.Rotate(ctx, alice, &models.ReferralCode{
			Code: "JADE-ECHO-12", Rarity: "UNCOMMON", RollsUsed: 2,
		}))

		active, err := repo.GetActive(ctx, alice)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "JADE-ECHO-12", active.Code)

		all, err := repo.ListByAddress(ctx, alice)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.False(t, all[0].IsActive)
		assert.True(t, all[1].IsActive)

		old, err := repo.FindByCode(ctx, "GRAY-WAVE-07")
		require.NoError(t, err)
		require.NotNil(t, old)
		assert.Equal(t, alice, old.Address)
	})
}

func TestReferralRepositoryUniqueReferred(t *testing.T) {
	ctx := context.Background()
	repo := NewReferralRepository(testutil.NewDB(t))

	first := &models.ReferralEvent{
		ReferrerAddress: alice, ReferralCode: "GRAY-WAVE-07", ReferredAddress: bob,
		SwapAmount: 150, SwapTimestamp: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, first))

	dup := &models.ReferralEvent{
		ReferrerAddress: carol, ReferralCode: "JADE-ECHO-12", ReferredAddress: bob,
		SwapAmount: 500, SwapTimestamp: time.Now(),
	}
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, apperrors.AlreadyReferred)

	count, err := repo.CountAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	n, err := repo.CountByReferrer(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	referrers, err := repo.ListReferrers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{alice}, referrers)

	got, err := repo.GetByReferred(ctx, bob)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice, got.ReferrerAddress)
}

func TestSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(testutil.NewDB(t))

	exists, err := repo.ExistsForDate(ctx, "2026-10-14")
	require.NoError(t, err)
	assert.False(t, exists)

	now := time.Now()
	inserted, err := repo.CreateBatch(ctx, []models.DailyBalanceSnapshot{
		{Date: "2026-10-14", ReferredAddress: bob, Balance: 100, RecordedAt: now},
		{Date: "2026-10-14", ReferredAddress: carol, Balance: 50.5, RecordedAt: now},
		{Date: "2026-10-15", ReferredAddress: bob, Balance: 120, RecordedAt: now},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, inserted)

	// same (date, address) is ignored
	inserted, err = repo.CreateBatch(ctx, []models.DailyBalanceSnapshot{
		{Date: "2026-10-14", ReferredAddress: bob, Balance: 999, RecordedAt: now},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, inserted)

	sum, err := repo.SumBalances(ctx, []string{bob})
	require.NoError(t, err)
	assert.InDelta(t, 220, sum, 1e-9)

	sum, err = repo.SumBalances(ctx, []string{bob, carol})
	require.NoError(t, err)
	assert.InDelta(t, 270.5, sum, 1e-9)

	sum, err = repo.SumBalances(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestLeaderboardRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLeaderboardRepository(testutil.NewDB(t))

	last, err := repo.LastRefresh(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	start := time.Now().Add(-time.Minute)
	stale := &models.LeaderboardEntry{Address: "stale", TotalPoints: 5, LastUpdated: start.Add(-time.Hour)}
	require.NoError(t, repo.Upsert(ctx, stale))

	for addr, total := range map[string]float64{"a": 10, "b": 30, "c": 20, "d": 20} {
		require.NoError(t, repo.Upsert(ctx, &models.LeaderboardEntry{Address: addr, TotalPoints: total, LastUpdated: time.Now()}))
	}

	// overwrite keeps one row per address
	require.NoError(t, repo.Upsert(ctx, &models.LeaderboardEntry{Address: "a", TotalPoints: 11, LastUpdated: time.Now()}))

	removed, err := repo.DeleteStale(ctx, start, []string{"stale"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, removed)

	removed, err = repo.DeleteStale(ctx, start, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	top, err := repo.Top(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "b", top[0].Address)
	assert.Equal(t, "c", top[1].Address)
	assert.Equal(t, "d", top[2].Address)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	require.NoError(t, repo.RecordRefresh(ctx, &models.LeaderboardRefresh{
		StartedAt: start, FinishedAt: time.Now(), Participants: 4, Entries: 4,
		Stats: models.JSONB{"stake_unavailable": 0},
	}))
	last, err = repo.LastRefresh(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 4, last.Entries)
}

func TestStakerAndBlockRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	stakers := NewStakerRepository(db)
	blocks := NewBlockRepository(db)

	require.NoError(t, stakers.Add(ctx, alice, "USDX", 10))
	require.NoError(t, stakers.Add(ctx, alice, "USDX", 12))
	require.NoError(t, stakers.Add(ctx, alice, "EURX", 13))
	require.NoError(t, stakers.Add(ctx, bob, "USDX", 14))

	addrs, err := stakers.ListStakers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice, bob}, addrs)

	n, err := stakers.CountByToken(ctx, "USDX")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	last, err := blocks.GetLastProcessed(ctx, "base:USDX")
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, blocks.MarkProcessed(ctx, "base:USDX", 100))
	require.NoError(t, blocks.MarkProcessed(ctx, "base:USDX", 90))
	last, err = blocks.GetLastProcessed(ctx, "base:USDX")
	require.NoError(t, err)
	assert.EqualValues(t, 100, last)
}
