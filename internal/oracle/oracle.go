// Package oracle 积分计算依赖的链上数据接口。
// 每次查询返回 Signal，调用方据此显式地把不可用的信号按 0 计算。
package oracle

import (
	"context"
	"math/big"
	"time"
)

// Signal 一次外部查询的结果，OK 为 false 时 Err 说明原因
type Signal[T any] struct {
	Value T
	OK    bool
	Err   error
}

func Available[T any](v T) Signal[T] {
	return Signal[T]{Value: v, OK: true}
}

func Unavailable[T any](err error) Signal[T] {
	return Signal[T]{Err: err}
}

// OrZero 信号不可用时返回零值
func (s Signal[T]) OrZero() T {
	if !s.OK {
		var zero T
		return zero
	}
	return s.Value
}

// StakeInfo 质押合约 getUserStakingData 的返回值（原始整数单位）
type StakeInfo struct {
	StakedAmount *big.Int
	StoredPoints *big.Int
	LastUpdate   time.Time
}

// StakingOracle 查询质押合约中的用户数据
type StakingOracle interface {
	GetStakeInfo(ctx context.Context, address, token string) Signal[StakeInfo]
}

// BalanceOracle 返回代币原始单位余额（未按精度换算）
type BalanceOracle interface {
	GetBalance(ctx context.Context, address, token string) Signal[*big.Int]
}

// StakerSource 列出已知的质押地址
type StakerSource interface {
	ListStakers(ctx context.Context) ([]string, error)
}
