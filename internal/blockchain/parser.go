package blockchain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type StakedEvent struct {
	Contract common.Address
	User     common.Address
	Amount   *big.Int
	TxHash   string
	BlockNum int64
}

// ParseStakedLog 解析 Staked(address indexed user, uint256 amount) 事件
func ParseStakedLog(log types.Log) (*StakedEvent, error) {
	if len(log.Topics) < 2 || log.Topics[0] != stakedEventSig {
		return nil, ErrInvalidLogFormat
	}

	amount := new(big.Int)
	if len(log.Data) > 0 {
		amount.SetBytes(log.Data)
	}

	return &StakedEvent{
		Contract: log.Address,
		User:     common.BytesToAddress(log.Topics[1].Bytes()),
		Amount:   amount,
		TxHash:   log.TxHash.Hex(),
		BlockNum: int64(log.BlockNumber),
	}, nil
}

var ErrInvalidLogFormat = &InvalidLogFormatError{}

type InvalidLogFormatError struct{}

func (e *InvalidLogFormatError) Error() string {
	return "invalid log format: not a Staked event"
}
