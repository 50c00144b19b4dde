package repository

import (
	"context"

	"referral-points-system/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StakerRepository struct {
	db *gorm.DB
}

func NewStakerRepository(db *gorm.DB) *StakerRepository {
	return &StakerRepository{db: db}
}

// Add 记录质押地址，重复记录被忽略
func (r *StakerRepository) Add(ctx context.Context, address, token string, block int64) error {
	staker := &models.Staker{
		Address:        address,
		Token:          token,
		FirstSeenBlock: block,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(staker).Error
}

// ListStakers 返回去重后的全部质押地址
func (r *StakerRepository) ListStakers(ctx context.Context) ([]string, error) {
	var addrs []string
	err := r.db.WithContext(ctx).
		Model(&models.Staker{}).
		Distinct("address").
		Order("address ASC").
		Pluck("address", &addrs).Error
	return addrs, err
}

// CountByToken 统计某代币已发现的质押地址数
func (r *StakerRepository) CountByToken(ctx context.Context, token string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Staker{}).
		Where("token = ?", token).
		Count(&count).Error
	return count, err
}
