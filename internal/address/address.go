// Package address 把 EVM 和 Solana 地址规范化为唯一的字符串形式
package address

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

// Namespace 地址所属的链类型
type Namespace string

const (
	NamespaceEVM    Namespace = "evm"
	NamespaceSolana Namespace = "solana"
)

// Result 规范化结果，Valid 为 false 时其余字段无意义
type Result struct {
	Valid     bool
	Namespace Namespace
	Canonical string
}

// Validator 地址校验与规范化
type Validator interface {
	Normalize(raw string) Result
}

type validator struct{}

func NewValidator() Validator {
	return validator{}
}

// Normalize EVM 地址转为 EIP-55 校验和格式，Solana 公钥保持 base58 原样
func (validator) Normalize(raw string) Result {
	return Normalize(raw)
}

// Normalize 识别地址命名空间并规范化
func Normalize(raw string) Result {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Result{Canonical: raw}
	}

	if common.IsHexAddress(s) {
		return Result{
			Valid:     true,
			Namespace: NamespaceEVM,
			Canonical: common.HexToAddress(s).Hex(),
		}
	}

	if pk, err := solana.PublicKeyFromBase58(s); err == nil {
		return Result{
			Valid:     true,
			Namespace: NamespaceSolana,
			Canonical: pk.String(),
		}
	}

	return Result{Canonical: raw}
}

// Equal 比较两个已规范化的地址（大小写不敏感）
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}
