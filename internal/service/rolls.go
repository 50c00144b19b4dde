package service

import (
	"fmt"

	"referral-points-system/internal/config"
)

// RollEconomy 计算推荐码重新生成次数；每次查询都按最新推荐数重新计算
type RollEconomy struct {
	base      int
	bonus     int
	threshold int
}

func NewRollEconomy(cfg *config.ReferralConfig) RollEconomy {
	return RollEconomy{
		base:      cfg.BaseRolls,
		bonus:     cfg.BonusRolls,
		threshold: cfg.UnlockThreshold,
	}
}

// MaxRolls 基础次数，成功推荐达到阈值后加上奖励次数
func (e RollEconomy) MaxRolls(successfulReferrals int64) int {
	if successfulReferrals >= int64(e.threshold) {
		return e.base + e.bonus
	}
	return e.base
}

// Remaining 剩余 roll 次数，不小于 0
func (e RollEconomy) Remaining(rollsUsed int, successfulReferrals int64) int {
	remaining := e.MaxRolls(successfulReferrals) - rollsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Progress 解锁进度，格式为 "n/threshold"
func (e RollEconomy) Progress(successfulReferrals int64) string {
	return fmt.Sprintf("%d/%d", successfulReferrals, e.threshold)
}
