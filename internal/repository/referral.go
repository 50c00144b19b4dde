package repository

import (
	"context"
	"errors"

	"referral-points-system/internal/models"
	apperrors "referral-points-system/pkg/errors"

	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create 插入推荐记录；referred_address 唯一索引冲突时返回 AlreadyReferred
func (r *ReferralRepository) Create(ctx context.Context, event *models.ReferralEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.AlreadyReferred
	}
	return err
}

// GetByReferred 查询地址是否已被推荐，未被推荐时返回 nil
func (r *ReferralRepository) GetByReferred(ctx context.Context, referred string) (*models.ReferralEvent, error) {
	var event models.ReferralEvent
	err := r.db.WithContext(ctx).
		Where("referred_address = ?", referred).
		First(&event).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// CountByReferrer 推荐人的成功推荐数
func (r *ReferralRepository) CountByReferrer(ctx context.Context, referrer string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReferralEvent{}).
		Where("referrer_address = ?", referrer).
		Count(&count).Error
	return count, err
}

// ListByReferrer 推荐人的全部推荐事件
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrer string) ([]models.ReferralEvent, error) {
	var events []models.ReferralEvent
	err := r.db.WithContext(ctx).
		Where("referrer_address = ?", referrer).
		Order("id ASC").
		Find(&events).Error
	return events, err
}

// ListReferrers 返回所有出现过的推荐人地址（去重）
func (r *ReferralRepository) ListReferrers(ctx context.Context) ([]string, error) {
	var addrs []string
	err := r.db.WithContext(ctx).
		Model(&models.ReferralEvent{}).
		Distinct("referrer_address").
		Order("referrer_address ASC").
		Pluck("referrer_address", &addrs).Error
	return addrs, err
}

// ListReferred 返回所有被推荐地址
func (r *ReferralRepository) ListReferred(ctx context.Context) ([]string, error) {
	var addrs []string
	err := r.db.WithContext(ctx).
		Model(&models.ReferralEvent{}).
		Order("referred_address ASC").
		Pluck("referred_address", &addrs).Error
	return addrs, err
}

// CountAll 推荐事件总数
func (r *ReferralRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReferralEvent{}).
		Count(&count).Error
	return count, err
}
