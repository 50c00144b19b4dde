package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"referral-points-system/internal/config"
	"referral-points-system/internal/oracle"
	"referral-points-system/pkg/errors"
	"referral-points-system/pkg/logger"
)

const erc20ABI = `[
  {"name":"balanceOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// getUserStakingData 返回 (totalStaked, storedPoints, lastUpdate)，storedPoints 放大了 10^points_scale_exp
const stakingABI = `[
  {"name":"getUserStakingData","type":"function","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"totalStaked","type":"uint256"},{"name":"storedPoints","type":"uint256"},{"name":"lastUpdate","type":"uint256"}]},
  {"name":"Staked","type":"event","anonymous":false,
   "inputs":[{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

var stakedEventSig = crypto.Keccak256Hash([]byte("Staked(address,uint256)"))

var (
	erc20Parsed   = mustABI(erc20ABI)
	stakingParsed = mustABI(stakingABI)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EVMClient 只读 EVM RPC 客户端，所有调用经过限速
type EVMClient struct {
	cfg     *config.EVMConfig
	client  *ethclient.Client
	limiter *rate.Limiter
}

// NewEVMClient 连接 EVM RPC 节点
func NewEVMClient(cfg *config.EVMConfig) (*EVMClient, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect,
			fmt.Sprintf("连接RPC失败: %s", cfg.RPCURL), err)
	}

	return &EVMClient{
		cfg:     cfg,
		client:  client,
		limiter: newLimiter(cfg.RequestsPerSecond),
	}, nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func (c *EVMClient) Close() {
	c.client.Close()
}

// GetLatestBlockNumber 获取最新区块号
func (c *EVMClient) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.New(errors.ErrBlockFetch, "获取最新区块失败", err)
	}
	return header.Number.Int64(), nil
}

// GetConfirmBlockNumber 获取已确认的最新区块号（扣除确认区块数）
func (c *EVMClient) GetConfirmBlockNumber(ctx context.Context) (int64, error) {
	latest, err := c.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := latest - int64(c.cfg.ConfirmationBlocks)
	if confirmed < 0 {
		confirmed = 0
	}
	return confirmed, nil
}

// GetStakedLogs 获取指定区块范围内质押合约的 Staked 事件
func (c *EVMClient) GetStakedLogs(ctx context.Context, contracts []common.Address, startBlock, endBlock int64) ([]types.Log, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(startBlock),
		ToBlock:   big.NewInt(endBlock),
		Addresses: contracts,
		Topics:    [][]common.Hash{{stakedEventSig}},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrEventParse, "过滤Staked事件失败", err)
	}

	logger.WithFields(logger.Fields{
		"chain_id":    c.cfg.ID,
		"start_block": startBlock,
		"end_block":   endBlock,
		"logs_count":  len(logs),
	}).Debug("Fetched Staked logs")

	return logs, nil
}

// BalanceOf ERC20 余额（原始单位）
func (c *EVMClient) BalanceOf(ctx context.Context, token, holder string) (*big.Int, error) {
	out, err := c.call(ctx, erc20Parsed, token, "balanceOf", common.HexToAddress(holder))
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.New(errors.ErrRPCCall, "balanceOf 返回类型错误", nil)
	}
	return balance, nil
}

// UserStakingData 查询质押合约的用户数据
func (c *EVMClient) UserStakingData(ctx context.Context, stakingContract, user string) (oracle.StakeInfo, error) {
	out, err := c.call(ctx, stakingParsed, stakingContract, "getUserStakingData", common.HexToAddress(user))
	if err != nil {
		return oracle.StakeInfo{}, err
	}
	if len(out) < 3 {
		return oracle.StakeInfo{}, errors.New(errors.ErrRPCCall, "getUserStakingData 返回值数量错误", nil)
	}

	staked, ok1 := out[0].(*big.Int)
	stored, ok2 := out[1].(*big.Int)
	last, ok3 := out[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return oracle.StakeInfo{}, errors.New(errors.ErrRPCCall, "getUserStakingData 返回类型错误", nil)
	}

	info := oracle.StakeInfo{
		StakedAmount: staked,
		StoredPoints: stored,
	}
	if last.Sign() > 0 {
		info.LastUpdate = time.Unix(last.Int64(), 0).UTC()
	}
	return info, nil
}

func (c *EVMClient) call(ctx context.Context, parsed abi.ABI, contract, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, errors.New(errors.ErrRPCCall, fmt.Sprintf("编码 %s 调用失败", method), err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	to := common.HexToAddress(contract)
	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.New(errors.ErrRPCCall,
			fmt.Sprintf("调用 %s.%s 失败", contract, method), err)
	}

	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, errors.New(errors.ErrRPCCall, fmt.Sprintf("解码 %s 返回值失败", method), err)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrRPCCall, fmt.Sprintf("%s 无返回值", method), nil)
	}
	return out, nil
}
