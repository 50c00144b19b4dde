package repository

import (
	"context"
	"errors"

	"referral-points-system/internal/models"

	"gorm.io/gorm"
)

// BlockRepository 记录每个索引源已处理到的区块
type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// GetLastProcessed 返回索引源最后处理的区块号，没有记录时返回 0
func (r *BlockRepository) GetLastProcessed(ctx context.Context, sourceID string) (int64, error) {
	var block models.ProcessedBlock
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", sourceID).
		First(&block).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return block.BlockNumber, err
}

// MarkProcessed 更新索引源最后处理的区块号
func (r *BlockRepository) MarkProcessed(ctx context.Context, sourceID string, blockNumber int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProcessedBlock
		err := tx.Where("chain_id = ?", sourceID).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			block := &models.ProcessedBlock{
				ChainID:     sourceID,
				BlockNumber: blockNumber,
			}
			return tx.Create(block).Error
		}

		if err != nil {
			return err
		}

		if blockNumber <= existing.BlockNumber {
			return nil
		}
		return tx.Model(&existing).Update("block_number", blockNumber).Error
	})
}
