package service

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-points-system/internal/oracle"
	"referral-points-system/pkg/errors"
)

func TestTakeDailySnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := evmAddr(1)

	f.refer(t, owner, evmAddr(2))
	f.refer(t, owner, evmAddr(3))
	f.refer(t, owner, evmAddr(4))
	_, err := f.referrals.UseCode(ctx, "PUNK", "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", 5)
	require.NoError(t, err)

	f.oracle.balances[evmAddr(2)+"/USDX"] = big.NewInt(150_000_000)
	f.oracle.stakes[evmAddr(2)+"/EURX"] = oracle.StakeInfo{
		StakedAmount: big.NewInt(50_000_000),
		StoredPoints: big.NewInt(0),
	}
	f.oracle.balances[evmAddr(4)+"/USDX"] = big.NewInt(70_000_000)
	f.oracle.down[evmAddr(4)] = true

	res, err := f.snapshots.TakeDailySnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-14", res.Date)
	assert.False(t, res.Skipped)
	assert.Equal(t, 4, res.Addresses)
	assert.EqualValues(t, 1, res.Recorded)

	history, err := f.snapshots.History(ctx, strings.ToLower(evmAddr(2)), 0)
	require.NoError(t, err)
	assert.Equal(t, evmAddr(2), history.Address)
	require.Len(t, history.Snapshots, 1)
	assert.Equal(t, 200.0, history.Snapshots[0].Balance)
	assert.Equal(t, "2026-10-14", history.Snapshots[0].Date)

	_, err = f.snapshots.History(ctx, "nope", 0)
	assert.ErrorIs(t, err, errors.InvalidAddress)

	again, err := f.snapshots.TakeDailySnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Zero(t, again.Recorded)

	stats, err := f.points.GetReferrerStats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 20.0, stats.DailyPoints)
}
