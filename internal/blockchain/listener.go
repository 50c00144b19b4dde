package blockchain

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"referral-points-system/internal/config"
	"referral-points-system/pkg/logger"
)

type logSource interface {
	GetConfirmBlockNumber(ctx context.Context) (int64, error)
	GetStakedLogs(ctx context.Context, contracts []common.Address, startBlock, endBlock int64) ([]types.Log, error)
}

type blockStore interface {
	GetLastProcessed(ctx context.Context, sourceID string) (int64, error)
	MarkProcessed(ctx context.Context, sourceID string, blockNumber int64) error
}

type stakerStore interface {
	Add(ctx context.Context, address, token string, block int64) error
}

const maxBatchSize = int64(5000)

// StakerIndexer 轮询已确认区块中的 Staked 事件，记录质押地址供排行榜使用
type StakerIndexer struct {
	cfg       *config.EVMConfig
	source    logSource
	blocks    blockStore
	stakers   stakerStore
	contracts map[common.Address]string // staking contract -> token symbol

	isProcessing int32
	processed    int64
	errorCount   int64
}

func NewStakerIndexer(cfg *config.EVMConfig, tokens *config.StakingConfig, source logSource, blocks blockStore, stakers stakerStore) *StakerIndexer {
	contracts := make(map[common.Address]string)
	for _, t := range tokens.StakingTokens() {
		if strings.EqualFold(t.Namespace, "evm") && common.IsHexAddress(t.StakingContract) {
			contracts[common.HexToAddress(t.StakingContract)] = t.Symbol
		}
	}
	return &StakerIndexer{
		cfg:       cfg,
		source:    source,
		blocks:    blocks,
		stakers:   stakers,
		contracts: contracts,
	}
}

func (l *StakerIndexer) sourceID() string {
	return l.cfg.ID + ":stakers"
}

// Start 按 pull_interval 轮询，直到 ctx 取消
func (l *StakerIndexer) Start(ctx context.Context) {
	if len(l.contracts) == 0 {
		logger.Warn("No staking contracts configured, staker indexer not started")
		return
	}

	interval := time.Duration(l.cfg.PullInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.WithFields(logger.Fields{
		"chain_id":  l.cfg.ID,
		"contracts": len(l.contracts),
		"interval":  interval.String(),
	}).Info("Staker indexer started")

	for {
		select {
		case <-ctx.Done():
			logger.WithFields(l.GetStats()).Info("Staker indexer stopped")
			return
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&l.isProcessing, 0, 1) {
				logger.WithFields(logger.Fields{
					"chain_id": l.cfg.ID,
				}).Warn("上一次处理尚未完成，跳过本次触发")
				continue
			}
			l.processWithRetry(ctx)
			atomic.StoreInt32(&l.isProcessing, 0)
		}
	}
}

func (l *StakerIndexer) processWithRetry(ctx context.Context) {
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		_, err := l.ProcessNewBlocks(ctx)
		if err == nil {
			return
		}
		atomic.AddInt64(&l.errorCount, 1)
		logger.WithFields(logger.Fields{
			"chain_id": l.cfg.ID,
			"attempt":  i + 1,
			"error":    err,
		}).Error("Failed to process blocks")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}
}

// ProcessNewBlocks 处理一批已确认区块，返回处理到的区块号
func (l *StakerIndexer) ProcessNewBlocks(ctx context.Context) (int64, error) {
	lastBlock, err := l.blocks.GetLastProcessed(ctx, l.sourceID())
	if err != nil {
		return 0, err
	}

	confirmedBlock, err := l.source.GetConfirmBlockNumber(ctx)
	if err != nil {
		return lastBlock, err
	}

	startBlock := lastBlock + 1
	if lastBlock == 0 && l.cfg.StartBlock > 0 {
		startBlock = l.cfg.StartBlock
	}
	if confirmedBlock < startBlock {
		return lastBlock, nil
	}

	batchSize := int64(l.cfg.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}
	endBlock := confirmedBlock
	if endBlock-startBlock >= batchSize {
		endBlock = startBlock + batchSize - 1
	}

	contracts := make([]common.Address, 0, len(l.contracts))
	for c := range l.contracts {
		contracts = append(contracts, c)
	}

	logs, err := l.source.GetStakedLogs(ctx, contracts, startBlock, endBlock)
	if err != nil {
		return lastBlock, err
	}

	recorded := 0
	for _, log := range logs {
		event, err := ParseStakedLog(log)
		if err != nil {
			logger.WithFields(logger.Fields{
				"tx_hash": log.TxHash.Hex(),
				"error":   err,
			}).Warn("Failed to parse log")
			continue
		}
		symbol, ok := l.contracts[event.Contract]
		if !ok {
			continue
		}
		// 写入失败时不推进区块号，下次重新处理
		if err := l.stakers.Add(ctx, event.User.Hex(), symbol, event.BlockNum); err != nil {
			return lastBlock, err
		}
		recorded++
	}

	if err := l.blocks.MarkProcessed(ctx, l.sourceID(), endBlock); err != nil {
		return lastBlock, err
	}
	atomic.AddInt64(&l.processed, int64(recorded))

	logger.WithFields(logger.Fields{
		"chain_id":    l.cfg.ID,
		"start_block": startBlock,
		"end_block":   endBlock,
		"logs_count":  len(logs),
		"recorded":    recorded,
	}).Info("Processed blocks")

	return endBlock, nil
}

// IsProcessing 返回是否正在处理
func (l *StakerIndexer) IsProcessing() bool {
	return atomic.LoadInt32(&l.isProcessing) == 1
}

// GetStats 返回索引器运行统计
func (l *StakerIndexer) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"contracts":       len(l.contracts),
		"processed_count": atomic.LoadInt64(&l.processed),
		"error_count":     atomic.LoadInt64(&l.errorCount),
		"is_processing":   l.IsProcessing(),
	}
}
