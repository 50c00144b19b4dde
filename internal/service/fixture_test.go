package service

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"referral-points-system/internal/address"
	"referral-points-system/internal/config"
	"referral-points-system/internal/oracle"
	"referral-points-system/internal/rarity"
	"referral-points-system/internal/repository"
	"referral-points-system/internal/testutil"
	"referral-points-system/pkg/errors"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func evmAddr(i int64) string {
	return common.BigToAddress(big.NewInt(i)).Hex()
}

type fakeOracle struct {
	mu       sync.Mutex
	stakes   map[string]oracle.StakeInfo
	balances map[string]*big.Int
	down     map[string]bool
	stakers  []string
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		stakes:   make(map[string]oracle.StakeInfo),
		balances: make(map[string]*big.Int),
		down:     make(map[string]bool),
	}
}

func (f *fakeOracle) GetStakeInfo(_ context.Context, addr, token string) oracle.Signal[oracle.StakeInfo] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[addr] {
		return oracle.Unavailable[oracle.StakeInfo](errors.New(errors.ErrOracle, "rpc timeout", nil))
	}
	info, ok := f.stakes[addr+"/"+token]
	if !ok {
		return oracle.Available(oracle.StakeInfo{StakedAmount: big.NewInt(0), StoredPoints: big.NewInt(0)})
	}
	return oracle.Available(info)
}

func (f *fakeOracle) GetBalance(_ context.Context, addr, token string) oracle.Signal[*big.Int] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[addr] {
		return oracle.Unavailable[*big.Int](errors.New(errors.ErrOracle, "rpc timeout", nil))
	}
	if b, ok := f.balances[addr+"/"+token]; ok {
		return oracle.Available(b)
	}
	return oracle.Available(big.NewInt(0))
}

func (f *fakeOracle) ListStakers(context.Context) ([]string, error) {
	return f.stakers, nil
}

type fixture struct {
	cfg         *config.Config
	oracle      *fakeOracle
	codeRepo    *repository.CodeRepository
	referralRep *repository.ReferralRepository
	snapRepo    *repository.SnapshotRepository
	boardRepo   *repository.LeaderboardRepository
	stakerRepo  *repository.StakerRepository

	codes       *CodeService
	referrals   *ReferralService
	points      *PointsService
	leaderboard *LeaderboardService
	snapshots   *SnapshotService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)

	cfg := config.Default()
	cfg.Staking.Tokens = []config.TokenConfig{
		{Symbol: "USDX", Namespace: "evm", Address: evmAddr(0xa1), StakingContract: evmAddr(0xb1), Decimals: 6},
		{Symbol: "EURX", Namespace: "evm", Address: evmAddr(0xa2), StakingContract: evmAddr(0xb2), Decimals: 6},
	}

	f := &fixture{
		cfg:         cfg,
		oracle:      newFakeOracle(),
		codeRepo:    repository.NewCodeRepository(db),
		referralRep: repository.NewReferralRepository(db),
		snapRepo:    repository.NewSnapshotRepository(db),
		boardRepo:   repository.NewLeaderboardRepository(db),
		stakerRepo:  repository.NewStakerRepository(db),
	}

	validator := address.NewValidator()
	gen := rarity.NewGenerator(rarity.Options{
		MaxAttempts:       cfg.Referral.MaxCodeAttempts,
		MaxCommonAttempts: cfg.Referral.MaxCommonAttempts,
	})

	f.codes = NewCodeService(f.codeRepo, f.referralRep, gen, validator, &cfg.Referral)
	f.referrals = NewReferralService(f.codes, f.referralRep, validator, &cfg.Referral)
	f.referrals.now = func() time.Time { return fixedNow }
	f.points = NewPointsService(f.referralRep, f.snapRepo, f.oracle, f.oracle, validator, &cfg.Referral, &cfg.Staking)
	f.points.now = func() time.Time { return fixedNow }
	f.leaderboard = NewLeaderboardService(f.boardRepo, f.referralRep, f.oracle, f.points, validator, &cfg.Leaderboard)
	f.leaderboard.now = func() time.Time { return fixedNow }
	f.snapshots = NewSnapshotService(f.referralRep, f.snapRepo, f.oracle, f.oracle, validator, &cfg.Staking)
	f.snapshots.now = func() time.Time { return fixedNow }
	return f
}

// refer makes referred use the current code of owner.
func (f *fixture) refer(t *testing.T, owner, referred string) *UseCodeResult {
	t.Helper()
	ctx := context.Background()
	info, err := f.codes.GetOrCreate(ctx, owner)
	if err != nil {
		t.Fatalf("get code: %v", err)
	}
	res, err := f.referrals.UseCode(ctx, info.Code, referred, 100)
	if err != nil {
		t.Fatalf("use code: %v", err)
	}
	return res
}
