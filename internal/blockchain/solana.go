package blockchain

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"golang.org/x/time/rate"

	"referral-points-system/internal/config"
	"referral-points-system/pkg/errors"
)

// SolanaClient 查询 SPL 代币余额
type SolanaClient struct {
	client  *rpc.Client
	limiter *rate.Limiter
}

func NewSolanaClient(cfg *config.SolanaConfig) *SolanaClient {
	return &SolanaClient{
		client:  rpc.New(cfg.RPCURL),
		limiter: newLimiter(cfg.RequestsPerSecond),
	}
}

// TokenBalance 返回 owner 在 mint 的关联代币账户余额（原始单位），
// 关联代币账户不存在时余额为 0
func (c *SolanaClient) TokenBalance(ctx context.Context, owner, mint string) (*big.Int, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, errors.New(errors.ErrRPCCall, fmt.Sprintf("解析 owner 地址失败: %s", owner), err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, errors.New(errors.ErrRPCCall, fmt.Sprintf("解析 mint 地址失败: %s", mint), err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return nil, errors.New(errors.ErrRPCCall, "计算关联代币账户失败", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
	if isAccountNotFound(err) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, errors.New(errors.ErrRPCCall, "获取代币账户余额失败", err)
	}
	if resp == nil || resp.Value == nil {
		return nil, errors.New(errors.ErrRPCCall, "代币账户余额返回空值", nil)
	}

	amount, ok := new(big.Int).SetString(resp.Value.Amount, 10)
	if !ok {
		return nil, errors.New(errors.ErrRPCCall, fmt.Sprintf("解析代币余额失败: %s", resp.Value.Amount), nil)
	}
	return amount, nil
}

// isAccountNotFound 节点对不存在的账户返回 invalid param 错误
func isAccountNotFound(err error) bool {
	var rpcErr *jsonrpc.RPCError
	if !stderrors.As(err, &rpcErr) {
		return false
	}
	return strings.Contains(strings.ToLower(rpcErr.Message), "could not find account")
}
