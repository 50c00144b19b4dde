package repository

import (
	"context"

	"referral-points-system/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// ExistsForDate 指定日期是否已有快照
func (r *SnapshotRepository) ExistsForDate(ctx context.Context, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DailyBalanceSnapshot{}).
		Where("date = ?", date).
		Count(&count).Error
	return count > 0, err
}

// CreateBatch 批量写入快照，(date, referred_address) 冲突的行被忽略
func (r *SnapshotRepository) CreateBatch(ctx context.Context, snapshots []models.DailyBalanceSnapshot) (int64, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(snapshots, 200)
	return result.RowsAffected, result.Error
}

// SumBalances 汇总指定被推荐地址的全部快照余额
func (r *SnapshotRepository) SumBalances(ctx context.Context, addresses []string) (float64, error) {
	if len(addresses) == 0 {
		return 0, nil
	}
	var total float64
	err := r.db.WithContext(ctx).
		Model(&models.DailyBalanceSnapshot{}).
		Select("COALESCE(SUM(balance), 0)").
		Where("referred_address IN ?", addresses).
		Row().
		Scan(&total)
	return total, err
}

// ListByAddress 按日期倒序返回地址的快照，limit <= 0 时不限制
func (r *SnapshotRepository) ListByAddress(ctx context.Context, address string, limit int) ([]models.DailyBalanceSnapshot, error) {
	var snapshots []models.DailyBalanceSnapshot
	query := r.db.WithContext(ctx).
		Where("referred_address = ?", address).
		Order("date DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&snapshots).Error
	return snapshots, err
}
