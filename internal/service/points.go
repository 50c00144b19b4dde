package service

import (
	"context"
	"math"
	"math/big"
	"time"

	"referral-points-system/internal/address"
	"referral-points-system/internal/config"
	"referral-points-system/internal/metrics"
	"referral-points-system/internal/models"
	"referral-points-system/internal/oracle"
	"referral-points-system/pkg/errors"
	"referral-points-system/pkg/logger"
)

const secondsPerDay = 86400

// ReferrerStats 推荐人积分统计
type ReferrerStats struct {
	Address             string   `json:"address"`
	TotalReferrals      int64    `json:"total_referrals"`
	SignupPoints        float64  `json:"signup_points"`
	DailyPoints         float64  `json:"daily_points"`
	RefereeBonus        float64  `json:"referee_bonus"`
	ReferralPoints      float64  `json:"referral_points"`
	TotalReferralPoints float64  `json:"total_referral_points"`
	ReferredAddresses   []string `json:"referred_addresses"`
}

// StakingPoints 各代币质押积分之和，Staked 为按精度换算后的数量，PerToken 按代币拆分
type StakingPoints struct {
	Points   float64
	Staked   float64
	PerToken map[string]float64
}

// Breakdown 单个地址的完整积分构成（排行榜用），均未四舍五入
type Breakdown struct {
	Address        string
	StablePoints   float64
	ReferralPoints float64
	RefereeBonus   float64
	Referrals      int64
	TotalStaked    float64
	TotalBalance   float64
	Tokens         models.TokenPositions
}

// Total 稳定币质押积分 + 推荐积分 + 被推荐奖励
func (b Breakdown) Total() float64 {
	return b.StablePoints + b.ReferralPoints + b.RefereeBonus
}

// PointsService 积分聚合
type PointsService struct {
	referrals ReferralStore
	snapshots SnapshotStore
	staking   oracle.StakingOracle
	balances  oracle.BalanceOracle
	validator address.Validator
	cfg       *config.ReferralConfig
	tokens    *config.StakingConfig
	now       func() time.Time
}

// NewPointsService staking 和 balances 可以为 nil，对应部分按 0 计算
func NewPointsService(
	referrals ReferralStore,
	snapshots SnapshotStore,
	staking oracle.StakingOracle,
	balances oracle.BalanceOracle,
	validator address.Validator,
	cfg *config.ReferralConfig,
	tokens *config.StakingConfig,
) *PointsService {
	return &PointsService{
		referrals: referrals,
		snapshots: snapshots,
		staking:   staking,
		balances:  balances,
		validator: validator,
		cfg:       cfg,
		tokens:    tokens,
		now:       time.Now,
	}
}

// GetReferrerStats 推荐相关积分：注册奖励 + 每日持仓奖励 + 被推荐奖励。
// 快照读取失败时每日积分按 0 计算。
func (s *PointsService) GetReferrerStats(ctx context.Context, rawAddress string) (*ReferrerStats, error) {
	res := s.validator.Normalize(rawAddress)
	if !res.Valid {
		return nil, reject(errors.ErrInvalidAddress, "Invalid address")
	}

	p, err := s.referralPart(ctx, res.Canonical)
	if err != nil {
		return nil, err
	}

	return &ReferrerStats{
		Address:             res.Canonical,
		TotalReferrals:      p.referrals,
		SignupPoints:        p.signup,
		DailyPoints:         RoundPoints(p.daily),
		RefereeBonus:        p.refereeBonus,
		ReferralPoints:      RoundPoints(p.signup + p.daily),
		TotalReferralPoints: RoundPoints(p.signup + p.daily + p.refereeBonus),
		ReferredAddresses:   p.referred,
	}, nil
}

// Breakdown 计算已规范化地址的全部积分构成及各代币持仓。
// 推荐记录读取失败时返回错误；质押和余额查询失败按 0 计算。
func (s *PointsService) Breakdown(ctx context.Context, addr string) (Breakdown, error) {
	p, err := s.referralPart(ctx, addr)
	if err != nil {
		return Breakdown{}, err
	}
	sp := s.StakingPoints(ctx, addr)

	b := Breakdown{
		Address:        addr,
		StablePoints:   sp.Points,
		ReferralPoints: p.signup + p.daily,
		RefereeBonus:   p.refereeBonus,
		Referrals:      p.referrals,
		TotalStaked:    sp.Staked,
		Tokens:         make(models.TokenPositions),
	}

	namespace := s.validator.Normalize(addr).Namespace
	for _, token := range s.tokens.TokensFor(string(namespace)) {
		balance, err := walletBalance(ctx, s.balances, addr, token)
		if err != nil {
			metrics.SignalUnavailable.WithLabelValues("balance_" + token.Symbol).Inc()
			logger.WithFields(logger.Fields{
				"address": addr,
				"token":   token.Symbol,
				"error":   err,
			}).Warn("Balance unavailable, using 0")
		}
		b.TotalBalance += balance
		b.Tokens[token.Symbol] = models.TokenPosition{
			Balance: balance,
			Staked:  sp.PerToken[token.Symbol],
		}
	}
	return b, nil
}

type referralTotals struct {
	referrals    int64
	signup       float64
	daily        float64
	refereeBonus float64
	referred     []string
}

func (s *PointsService) referralPart(ctx context.Context, addr string) (referralTotals, error) {
	events, err := s.referrals.ListByReferrer(ctx, addr)
	if err != nil {
		return referralTotals{}, errors.New(errors.ErrDatabase, "查询推荐记录失败", err)
	}

	referred := make([]string, 0, len(events))
	for _, e := range events {
		referred = append(referred, e.ReferredAddress)
	}

	var daily float64
	if len(referred) > 0 {
		sum, err := s.snapshots.SumBalances(ctx, referred)
		if err != nil {
			metrics.SignalUnavailable.WithLabelValues("daily_snapshots").Inc()
			logger.WithFields(logger.Fields{
				"address": addr,
				"error":   err,
			}).Warn("Failed to sum daily snapshots, using 0")
		} else {
			daily = sum * s.cfg.DailyBonusRate
		}
	}

	signup := float64(len(events)) * s.cfg.SignupBonus

	var refereeBonus float64
	own, err := s.referrals.GetByReferred(ctx, addr)
	if err != nil {
		metrics.SignalUnavailable.WithLabelValues("referee_bonus").Inc()
		logger.WithFields(logger.Fields{
			"address": addr,
			"error":   err,
		}).Warn("Failed to check referee status, using 0")
	} else if own != nil {
		refereeBonus = s.cfg.RefereeBonus
	}

	return referralTotals{
		referrals:    int64(len(events)),
		signup:       signup,
		daily:        daily,
		refereeBonus: refereeBonus,
		referred:     referred,
	}, nil
}

// StakingPoints 汇总各质押代币的已存积分与待结算积分。
// pending_raw = staked * elapsed * 10^scale / (10^decimals * 86400)，向下取整
func (s *PointsService) StakingPoints(ctx context.Context, addr string) StakingPoints {
	out := StakingPoints{PerToken: make(map[string]float64)}
	if s.staking == nil {
		return out
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.tokens.PointsScaleExp)), nil)
	now := s.now()

	for _, token := range s.tokens.StakingTokens() {
		sig := s.staking.GetStakeInfo(ctx, addr, token.Symbol)
		if !sig.OK {
			if !errors.IsNotConfigured(sig.Err) {
				metrics.SignalUnavailable.WithLabelValues("stake_" + token.Symbol).Inc()
				logger.WithFields(logger.Fields{
					"address": addr,
					"token":   token.Symbol,
					"error":   sig.Err,
				}).Warn("Staking data unavailable, using 0")
			}
			continue
		}

		info := sig.Value
		if info.StakedAmount == nil || info.StakedAmount.Sign() <= 0 {
			if info.StoredPoints != nil && info.StoredPoints.Sign() > 0 {
				out.Points += ratio(info.StoredPoints, scale)
			}
			continue
		}

		unit := unitOf(token)
		staked := ratio(info.StakedAmount, unit)
		out.Staked += staked
		out.PerToken[token.Symbol] += staked

		raw := new(big.Int)
		if info.StoredPoints != nil {
			raw.Set(info.StoredPoints)
		}
		elapsed := int64(0)
		if !info.LastUpdate.IsZero() {
			elapsed = int64(now.Sub(info.LastUpdate) / time.Second)
		}
		if elapsed > 0 {
			pending := new(big.Int).Mul(info.StakedAmount, big.NewInt(elapsed))
			pending.Mul(pending, scale)
			pending.Quo(pending, new(big.Int).Mul(unit, big.NewInt(secondsPerDay)))
			raw.Add(raw, pending)
		}
		out.Points += ratio(raw, scale)
	}
	return out
}

// RoundPoints 展示用，保留 2 位小数
func RoundPoints(v float64) float64 {
	return math.Round(v*100) / 100
}

// walletBalance 钱包余额（按代币精度换算）；未配置按 0 且不返回错误
func walletBalance(ctx context.Context, balances oracle.BalanceOracle, addr string, token config.TokenConfig) (float64, error) {
	if balances == nil {
		return 0, nil
	}
	sig := balances.GetBalance(ctx, addr, token.Symbol)
	if !sig.OK {
		if errors.IsNotConfigured(sig.Err) {
			return 0, nil
		}
		return 0, sig.Err
	}
	if sig.Value == nil {
		return 0, nil
	}
	return ratio(sig.Value, unitOf(token)), nil
}

func unitOf(token config.TokenConfig) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals)), nil)
}

func ratio(num, den *big.Int) float64 {
	f, _ := new(big.Rat).SetFrac(num, den).Float64()
	return f
}
