package repository

import (
	"context"
	"errors"
	"time"

	"referral-points-system/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// Upsert 按地址插入或整行覆盖缓存条目
func (r *LeaderboardRepository) Upsert(ctx context.Context, entry *models.LeaderboardEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			UpdateAll: true,
		}).
		Create(entry).Error
}

// DeleteStale 删除 before 之后未被重写的条目，keep 中的地址除外
func (r *LeaderboardRepository) DeleteStale(ctx context.Context, before time.Time, keep []string) (int64, error) {
	query := r.db.WithContext(ctx).
		Where("last_updated < ?", before)

	if len(keep) > 0 {
		query = query.Where("address NOT IN ?", keep)
	}

	result := query.Delete(&models.LeaderboardEntry{})
	return result.RowsAffected, result.Error
}

// Top 按总积分降序，积分相同时按地址升序
func (r *LeaderboardRepository) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	query := r.db.WithContext(ctx).
		Order("total_points DESC").
		Order("address ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&entries).Error
	return entries, err
}

// Count 缓存条目总数
func (r *LeaderboardRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LeaderboardEntry{}).
		Count(&count).Error
	return count, err
}

// RecordRefresh 记录一次完成的刷新
func (r *LeaderboardRepository) RecordRefresh(ctx context.Context, refresh *models.LeaderboardRefresh) error {
	return r.db.WithContext(ctx).Create(refresh).Error
}

// LastRefresh 返回最近一次完成的刷新，从未刷新时返回 nil
func (r *LeaderboardRepository) LastRefresh(ctx context.Context) (*models.LeaderboardRefresh, error) {
	var refresh models.LeaderboardRefresh
	err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		First(&refresh).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &refresh, nil
}
