package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"referral-points-system/internal/address"
	"referral-points-system/internal/config"
	"referral-points-system/internal/oracle"
	"referral-points-system/pkg/errors"
)

type evmReader interface {
	BalanceOf(ctx context.Context, token, holder string) (*big.Int, error)
	UserStakingData(ctx context.Context, stakingContract, user string) (oracle.StakeInfo, error)
}

type splReader interface {
	TokenBalance(ctx context.Context, owner, mint string) (*big.Int, error)
}

// Oracle 按代币所在命名空间把余额和质押查询路由到对应链的客户端。
// 未配置的代币或客户端返回 NOT_CONFIGURED。
type Oracle struct {
	tokens *config.StakingConfig
	evm    evmReader
	sol    splReader
}

// NewOracle evm 和 sol 可以为 nil，对应命名空间的查询即为未配置
func NewOracle(tokens *config.StakingConfig, evm *EVMClient, sol *SolanaClient) *Oracle {
	o := &Oracle{tokens: tokens}
	if evm != nil {
		o.evm = evm
	}
	if sol != nil {
		o.sol = sol
	}
	return o
}

// GetBalance 查询钱包余额（原始单位）
func (o *Oracle) GetBalance(ctx context.Context, holder, symbol string) oracle.Signal[*big.Int] {
	token, ok := o.tokens.Token(symbol)
	if !ok || token.Address == "" {
		return oracle.Unavailable[*big.Int](notConfigured("token " + symbol))
	}

	res := address.Normalize(holder)
	if !res.Valid {
		return oracle.Unavailable[*big.Int](errors.InvalidAddress)
	}
	// 其他命名空间的地址不可能持有该代币
	if !strings.EqualFold(string(res.Namespace), token.Namespace) {
		return oracle.Available(big.NewInt(0))
	}

	switch res.Namespace {
	case address.NamespaceEVM:
		if o.evm == nil {
			return oracle.Unavailable[*big.Int](notConfigured("evm rpc"))
		}
		balance, err := o.evm.BalanceOf(ctx, token.Address, res.Canonical)
		if err != nil {
			return oracle.Unavailable[*big.Int](err)
		}
		return oracle.Available(balance)
	case address.NamespaceSolana:
		if o.sol == nil {
			return oracle.Unavailable[*big.Int](notConfigured("solana rpc"))
		}
		balance, err := o.sol.TokenBalance(ctx, res.Canonical, token.Address)
		if err != nil {
			return oracle.Unavailable[*big.Int](err)
		}
		return oracle.Available(balance)
	}
	return oracle.Unavailable[*big.Int](notConfigured("namespace " + string(res.Namespace)))
}

// GetStakeInfo 查询质押合约中的用户数据，仅支持 EVM
func (o *Oracle) GetStakeInfo(ctx context.Context, user, symbol string) oracle.Signal[oracle.StakeInfo] {
	token, ok := o.tokens.Token(symbol)
	if !ok || token.StakingContract == "" {
		return oracle.Unavailable[oracle.StakeInfo](notConfigured("staking contract " + symbol))
	}
	if !strings.EqualFold(token.Namespace, string(address.NamespaceEVM)) {
		return oracle.Unavailable[oracle.StakeInfo](notConfigured("staking on " + token.Namespace))
	}

	res := address.Normalize(user)
	if !res.Valid {
		return oracle.Unavailable[oracle.StakeInfo](errors.InvalidAddress)
	}
	if res.Namespace != address.NamespaceEVM {
		return oracle.Available(oracle.StakeInfo{StakedAmount: big.NewInt(0), StoredPoints: big.NewInt(0)})
	}
	if o.evm == nil {
		return oracle.Unavailable[oracle.StakeInfo](notConfigured("evm rpc"))
	}

	info, err := o.evm.UserStakingData(ctx, token.StakingContract, res.Canonical)
	if err != nil {
		return oracle.Unavailable[oracle.StakeInfo](err)
	}
	return oracle.Available(info)
}

func notConfigured(what string) error {
	return errors.New(errors.ErrNotConfigured, fmt.Sprintf("%s not configured", what), nil)
}
