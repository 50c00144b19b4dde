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
)

func TestGetReferrerStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := evmAddr(1)

	f.refer(t, owner, evmAddr(2))
	f.refer(t, owner, evmAddr(3))
	f.refer(t, evmAddr(4), owner)

	_, err := f.snapRepo.CreateBatch(ctx, []models.DailyBalanceSnapshot{
		{Date: "2026-10-12", ReferredAddress: evmAddr(2), Balance: 100, RecordedAt: fixedNow},
		{Date: "2026-10-13", ReferredAddress: evmAddr(3), Balance: 50, RecordedAt: fixedNow},
		{Date: "2026-10-13", ReferredAddress: evmAddr(9), Balance: 999, RecordedAt: fixedNow},
	})
	require.NoError(t, err)

	stats, err := f.points.GetReferrerStats(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalReferrals)
	assert.Equal(t, 2000.0, stats.SignupPoints)
	assert.Equal(t, 15.0, stats.DailyPoints)
	assert.Equal(t, 1000.0, stats.RefereeBonus)
	assert.Equal(t, 2015.0, stats.ReferralPoints)
	assert.Equal(t, 3015.0, stats.TotalReferralPoints)
	assert.ElementsMatch(t, []string{evmAddr(2), evmAddr(3)}, stats.ReferredAddresses)
}

func TestGetReferrerStatsForNewcomer(t *testing.T) {
	f := newFixture(t)

	stats, err := f.points.GetReferrerStats(context.Background(), evmAddr(1))
	require.NoError(t, err)
	assert.Zero(t, stats.TotalReferrals)
	assert.Zero(t, stats.TotalReferralPoints)
	assert.NotNil(t, stats.ReferredAddresses)
}

func TestStakingPointsAccrue(t *testing.T) {
	f := newFixture(t)
	staker := evmAddr(5)
	f.oracle.stakes[staker+"/USDX"] = oracle.StakeInfo{
		StakedAmount: big.NewInt(2_000_000),
		StoredPoints: big.NewInt(500_000_000_000),
		LastUpdate:   fixedNow.Add(-24 * time.Hour),
	}

	sp := f.points.StakingPoints(context.Background(), staker)
	assert.InDelta(t, 7.0, sp.Points, 1e-9)
	assert.InDelta(t, 2.0, sp.Staked, 1e-9)
}

func TestStakingPointsDegradeToZero(t *testing.T) {
	f := newFixture(t)
	staker := evmAddr(5)
	f.oracle.stakes[staker+"/USDX"] = oracle.StakeInfo{
		StakedAmount: big.NewInt(2_000_000),
		StoredPoints: big.NewInt(0),
		LastUpdate:   fixedNow.Add(-time.Hour),
	}
	f.oracle.down[staker] = true

	sp := f.points.StakingPoints(context.Background(), staker)
	assert.Zero(t, sp.Points)

	b, err := f.points.Breakdown(context.Background(), staker)
	require.NoError(t, err)
	assert.Zero(t, b.Total())
}

func TestRoundPoints(t *testing.T) {
	assert.Equal(t, 1.23, RoundPoints(1.234))
	assert.Equal(t, 1.24, RoundPoints(1.2351))
	assert.Equal(t, 0.0, RoundPoints(0.004))
}

func TestBreakdownTokenPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	holder, unreachable := evmAddr(5), evmAddr(7)

	f.oracle.stakes[holder+"/USDX"] = oracle.StakeInfo{
		StakedAmount: big.NewInt(2_000_000),
		StoredPoints: big.NewInt(0),
		LastUpdate:   fixedNow,
	}
	f.oracle.balances[holder+"/EURX"] = big.NewInt(1_250_000)
	f.oracle.down[unreachable] = true

	b, err := f.points.Breakdown(ctx, holder)
	require.NoError(t, err)
	assert.Equal(t, 2.0, b.TotalStaked)
	assert.Equal(t, 1.25, b.TotalBalance)
	assert.Equal(t, models.TokenPositions{
		"USDX": {Staked: 2},
		"EURX": {Balance: 1.25},
	}, b.Tokens)

	b, err = f.points.Breakdown(ctx, unreachable)
	require.NoError(t, err)
	assert.Zero(t, b.TotalBalance)
	assert.Equal(t, models.TokenPositions{"USDX": {}, "EURX": {}}, b.Tokens)
}
