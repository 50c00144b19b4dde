package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-points-system/internal/models"
	"referral-points-system/internal/oracle"
	"referral-points-system/pkg/errors"
)

func TestLeaderboardEmptyCache(t *testing.T) {
	f := newFixture(t)

	_, err := f.leaderboard.Get(context.Background(), 10)
	assert.ErrorIs(t, err, errors.CacheEmpty)
}

func TestLeaderboardOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, total := range []float64{10, 30, 20} {
		require.NoError(t, f.boardRepo.Upsert(ctx, &models.LeaderboardEntry{
			Address:     evmAddr(int64(i + 1)),
			TotalPoints: total,
			LastUpdated: fixedNow,
		}))
	}
	require.NoError(t, f.boardRepo.RecordRefresh(ctx, &models.LeaderboardRefresh{
		StartedAt:  fixedNow,
		FinishedAt: fixedNow,
		Entries:    3,
	}))

	page, err := f.leaderboard.Get(ctx, 2)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, evmAddr(2), page.Entries[0].Address)
	assert.Equal(t, evmAddr(3), page.Entries[1].Address)
	assert.EqualValues(t, 3, page.TotalEntries)
}

func TestLeaderboardRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.refer(t, evmAddr(1), evmAddr(2))
	_, err := f.referrals.UseCode(ctx, "VIP", evmAddr(6), 5)
	require.NoError(t, err)

	f.oracle.stakers = []string{evmAddr(5), evmAddr(7)}
	f.oracle.stakes[evmAddr(5)+"/USDX"] = oracle.StakeInfo{
		StakedAmount: big.NewInt(2_000_000),
		StoredPoints: big.NewInt(500_000_000_000),
		LastUpdate:   fixedNow.Add(-24 * time.Hour),
	}
	f.oracle.balances[evmAddr(5)+"/USDX"] = big.NewInt(3_500_000)
	f.oracle.down[evmAddr(7)] = true

	// left over from an earlier refresh, no longer a participant
	require.NoError(t, f.boardRepo.Upsert(ctx, &models.LeaderboardEntry{
		Address:     evmAddr(8),
		TotalPoints: 50,
		LastUpdated: fixedNow.Add(-2 * time.Hour),
	}))

	res, err := f.leaderboard.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Participants)
	assert.Equal(t, 4, res.Entries)
	assert.Zero(t, res.Failed)
	assert.EqualValues(t, 1, res.Removed)

	page, err := f.leaderboard.Get(ctx, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 4)
	assert.EqualValues(t, 4, page.TotalEntries)

	// ties on 1000 points are ordered by address
	assert.Equal(t, evmAddr(1), page.Entries[0].Address)
	assert.Equal(t, 1000.0, page.Entries[0].ReferralPoints)
	assert.EqualValues(t, 1, page.Entries[0].Referrals)
	assert.Equal(t, evmAddr(2), page.Entries[1].Address)
	assert.Equal(t, 1000.0, page.Entries[1].RefereeBonus)
	assert.Equal(t, evmAddr(6), page.Entries[2].Address)

	staker := page.Entries[3]
	assert.Equal(t, evmAddr(5), staker.Address)
	assert.Equal(t, 7.0, staker.StablePoints)
	assert.Equal(t, 2.0, staker.TotalStaked)
	assert.Equal(t, 3.5, staker.TotalBalance)
	assert.Equal(t, 7.0, staker.TotalPoints)
	assert.Equal(t, models.TokenPositions{
		"USDX": {Balance: 3.5, Staked: 2},
		"EURX": {},
	}, staker.Tokens)

	for _, e := range page.Entries {
		assert.NotEqual(t, evmAddr(0), e.Address)
	}
}

func TestLeaderboardRefreshIsRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.refer(t, evmAddr(1), evmAddr(2))

	first, err := f.leaderboard.Refresh(ctx)
	require.NoError(t, err)
	second, err := f.leaderboard.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Entries, second.Entries)
	assert.Zero(t, second.Removed)
}
