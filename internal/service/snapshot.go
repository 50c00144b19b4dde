package service

import (
	"context"
	"time"

	"referral-points-system/internal/address"
	"referral-points-system/internal/config"
	"referral-points-system/internal/metrics"
	"referral-points-system/internal/models"
	"referral-points-system/internal/oracle"
	"referral-points-system/pkg/errors"
	"referral-points-system/pkg/logger"
)

const (
	snapshotDateLayout = "2006-01-02"

	defaultSnapshotHistory = 30
	maxSnapshotHistory     = 366
)

type SnapshotResult struct {
	Date      string `json:"date"`
	Skipped   bool   `json:"skipped"`
	Addresses int    `json:"addresses"`
	Recorded  int64  `json:"recorded"`
}

// SnapshotService 被推荐地址的每日余额快照，每个 UTC 日期只执行一次
type SnapshotService struct {
	referrals ReferralStore
	snapshots SnapshotStore
	balances  oracle.BalanceOracle
	staking   oracle.StakingOracle
	validator address.Validator
	tokens    *config.StakingConfig
	now       func() time.Time
}

func NewSnapshotService(
	referrals ReferralStore,
	snapshots SnapshotStore,
	balances oracle.BalanceOracle,
	staking oracle.StakingOracle,
	validator address.Validator,
	tokens *config.StakingConfig,
) *SnapshotService {
	return &SnapshotService{
		referrals: referrals,
		snapshots: snapshots,
		balances:  balances,
		staking:   staking,
		validator: validator,
		tokens:    tokens,
		now:       time.Now,
	}
}

// TakeDailySnapshot 记录当天（UTC）全部被推荐地址的余额，当天已有快照时跳过
func (s *SnapshotService) TakeDailySnapshot(ctx context.Context) (*SnapshotResult, error) {
	now := s.now().UTC()
	date := now.Format(snapshotDateLayout)
	result := &SnapshotResult{Date: date}

	exists, err := s.snapshots.ExistsForDate(ctx, date)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询快照失败", err)
	}
	if exists {
		result.Skipped = true
		logger.WithFields(logger.Fields{
			"date": date,
		}).Info("Daily snapshot already taken, skipping")
		return result, nil
	}

	referred, err := s.referrals.ListReferred(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询被推荐地址失败", err)
	}
	result.Addresses = len(referred)

	var rows []models.DailyBalanceSnapshot
	for _, addr := range referred {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.ErrSnapshot, "快照被取消", err)
		}

		balance := s.balanceOf(ctx, addr)
		if balance <= 0 {
			continue
		}
		rows = append(rows, models.DailyBalanceSnapshot{
			Date:            date,
			ReferredAddress: addr,
			Balance:         balance,
			RecordedAt:      now,
		})
	}

	recorded, err := s.snapshots.CreateBatch(ctx, rows)
	if err != nil {
		return nil, errors.New(errors.ErrSnapshot, "保存快照失败", err)
	}
	result.Recorded = recorded

	metrics.SnapshotBalancesRecorded.Add(float64(recorded))
	logger.WithFields(logger.Fields{
		"date":      date,
		"addresses": result.Addresses,
		"recorded":  recorded,
	}).Info("Daily snapshot completed")

	return result, nil
}

// SnapshotHistory 单个被推荐地址的快照，按日期倒序
type SnapshotHistory struct {
	Address   string                        `json:"address"`
	Snapshots []models.DailyBalanceSnapshot `json:"snapshots"`
}

// History 返回地址最近 limit 天的快照，limit <= 0 时取默认值
func (s *SnapshotService) History(ctx context.Context, rawAddress string, limit int) (*SnapshotHistory, error) {
	res := s.validator.Normalize(rawAddress)
	if !res.Valid {
		return nil, reject(errors.ErrInvalidAddress, "Invalid address")
	}
	if limit <= 0 {
		limit = defaultSnapshotHistory
	}
	if limit > maxSnapshotHistory {
		limit = maxSnapshotHistory
	}

	rows, err := s.snapshots.ListByAddress(ctx, res.Canonical, limit)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询快照历史失败", err)
	}
	return &SnapshotHistory{Address: res.Canonical, Snapshots: rows}, nil
}

// balanceOf 钱包余额 + 质押数量（按代币精度换算），单个信号不可用时计 0
func (s *SnapshotService) balanceOf(ctx context.Context, raw string) float64 {
	res := s.validator.Normalize(raw)
	if !res.Valid {
		logger.WithFields(logger.Fields{
			"address": raw,
		}).Warn("Skipping snapshot for invalid address")
		return 0
	}

	var total float64
	for _, token := range s.tokens.TokensFor(string(res.Namespace)) {
		unit := unitOf(token)

		balance, err := walletBalance(ctx, s.balances, res.Canonical, token)
		if err != nil {
			s.unavailable("balance_"+token.Symbol, res.Canonical, err)
		}
		total += balance

		if s.staking != nil && token.StakingContract != "" {
			sig := s.staking.GetStakeInfo(ctx, res.Canonical, token.Symbol)
			if sig.OK && sig.Value.StakedAmount != nil {
				total += ratio(sig.Value.StakedAmount, unit)
			} else if !sig.OK && !errors.IsNotConfigured(sig.Err) {
				s.unavailable("stake_"+token.Symbol, res.Canonical, sig.Err)
			}
		}
	}
	return total
}

func (s *SnapshotService) unavailable(signal, addr string, err error) {
	metrics.SignalUnavailable.WithLabelValues(signal).Inc()
	logger.WithFields(logger.Fields{
		"address": addr,
		"signal":  signal,
		"error":   err,
	}).Warn("Snapshot signal unavailable, using 0")
}
