package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-points-system/pkg/errors"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := evmAddr(1)

	first, err := f.codes.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RollsUsed)
	assert.Equal(t, 2, first.RollsRemaining)
	assert.Equal(t, 3, first.MaxRolls)
	assert.Equal(t, "0/3", first.UnlockProgress)

	// lower-case input normalizes to the same checksummed owner
	second, err := f.codes.GetOrCreate(ctx, strings.ToLower(owner))
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, owner, second.Address)

	history, err := f.codes.History(ctx, strings.ToLower(owner))
	require.NoError(t, err)
	assert.Equal(t, owner, history.Address)
	assert.Len(t, history.Codes, 1)
}

func TestGetOrCreateRejectsInvalidAddress(t *testing.T) {
	f := newFixture(t)

	_, err := f.codes.GetOrCreate(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, errors.InvalidAddress)
	assert.True(t, errors.IsValidation(err))
}

func TestGetOrCreateReactivatesLatestCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := evmAddr(1)

	created, err := f.codes.GetOrCreate(ctx, owner)
	require.NoError(t, err)

	history, err := f.codeRepo.ListByAddress(ctx, owner)
	require.NoError(t, err)
	require.NoError(t, f.codeRepo.SetActive(ctx, history[0].ID, false))

	again, err := f.codes.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, created.Code, again.Code)
	assert.Equal(t, 1, again.RollsUsed)
}

func TestRegenerateStopsAtMaxRolls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := evmAddr(1)

	_, err := f.codes.GetOrCreate(ctx, owner)
	require.NoError(t, err)

	for want := 2; want <= 3; want++ {
		info, err := f.codes.Regenerate(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, want, info.RollsUsed)
	}

	_, err = f.codes.Regenerate(ctx, owner)
	assert.ErrorIs(t, err, errors.NoRollsRemaining)

	history, err := f.codes.History(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, history.Codes, 3)

	active := 0
	for _, c := range history.Codes {
		if c.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestRegenerateWithoutCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.codes.Regenerate(context.Background(), evmAddr(1))
	assert.ErrorIs(t, err, errors.NoExistingCode)
}

func TestRollsUnlockAfterThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := evmAddr(1)

	_, err := f.codes.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	_, err = f.codes.Regenerate(ctx, owner)
	require.NoError(t, err)
	_, err = f.codes.Regenerate(ctx, owner)
	require.NoError(t, err)

	_, err = f.codes.Regenerate(ctx, owner)
	require.ErrorIs(t, err, errors.NoRollsRemaining)

	for i := int64(100); i < 103; i++ {
		f.refer(t, owner, evmAddr(i))
	}

	info, err := f.codes.Regenerate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 4, info.RollsUsed)
	assert.Equal(t, 6, info.MaxRolls)
	assert.Equal(t, 2, info.RollsRemaining)
	assert.Equal(t, "3/3", info.UnlockProgress)
}

func TestResolveOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := evmAddr(1)

	info, err := f.codes.GetOrCreate(ctx, owner)
	require.NoError(t, err)

	got, err := f.codes.ResolveOwner(ctx, strings.ToLower(info.Code))
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	got, err = f.codes.ResolveOwner(ctx, "punk")
	require.NoError(t, err)
	assert.Equal(t, SpecialCodeOwner, got)

	got, err = f.codes.ResolveOwner(ctx, "NOPE-NOPE-00")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetCodeBenefits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	special, err := f.codes.GetCodeBenefits(ctx, "LAUNCH")
	require.NoError(t, err)
	assert.True(t, special.IsSpecial)
	assert.True(t, special.IsValid)
	assert.Equal(t, 10.0, special.MinSwap)
	assert.Equal(t, 250.0, special.BonusPoints)

	unknown, err := f.codes.GetCodeBenefits(ctx, "NOPE-NOPE-00")
	require.NoError(t, err)
	assert.False(t, unknown.IsValid)

	info, err := f.codes.GetOrCreate(ctx, evmAddr(1))
	require.NoError(t, err)
	ordinary, err := f.codes.GetCodeBenefits(ctx, info.Code)
	require.NoError(t, err)
	assert.True(t, ordinary.IsValid)
	assert.False(t, ordinary.IsSpecial)
	assert.Equal(t, 100.0, ordinary.MinSwap)
	assert.Zero(t, ordinary.BonusPoints)
}

func TestRegenerateConcurrentSameAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := evmAddr(1)

	_, err := f.codes.GetOrCreate(ctx, owner)
	require.NoError(t, err)

	const n = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		rolls []int
	)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			info, err := f.codes.Regenerate(ctx, owner)
			if err != nil {
				if errors.CodeOf(err) != errors.ErrNoRollsRemaining {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			rolls = append(rolls, info.RollsUsed)
			mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			if _, err := f.codes.GetOrCreate(ctx, owner); err != nil {
				t.Errorf("get or create: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{2, 3}, rolls)

	history, err := f.codes.History(ctx, owner)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(history.Codes), f.cfg.Referral.BaseRolls)

	active := 0
	for _, c := range history.Codes {
		if c.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}
