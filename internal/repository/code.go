package repository

import (
	"context"
	"errors"
	"strings"

	"referral-points-system/internal/models"

	"gorm.io/gorm"
)

type CodeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

// Create 追加一条推荐码记录
func (r *CodeRepository) Create(ctx context.Context, code *models.ReferralCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// GetActive 获取地址当前激活的推荐码，不存在时返回 nil
func (r *CodeRepository) GetActive(ctx context.Context, address string) (*models.ReferralCode, error) {
	var code models.ReferralCode
	err := r.db.WithContext(ctx).
		Where("address = ? AND is_active = ?", address, true).
		Order("id DESC").
		First(&code).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// ListByAddress 返回地址全部历史推荐码，按创建顺序
func (r *CodeRepository) ListByAddress(ctx context.Context, address string) ([]models.ReferralCode, error) {
	var codes []models.ReferralCode
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		Order("id ASC").
		Find(&codes).Error
	return codes, err
}

// FindByCode 大小写不敏感地查找推荐码，不区分是否激活
func (r *CodeRepository) FindByCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	var row models.ReferralCode
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Order("id ASC").
		First(&row).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ExistsCode 推荐码是否已存在（不区分大小写，含历史推荐码）
func (r *CodeRepository) ExistsCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReferralCode{}).
		Where("code = ?", strings.ToUpper(code)).
		Count(&count).Error
	return count > 0, err
}

// Rotate 在同一事务中停用地址的全部激活推荐码，并写入 next 作为新的激活码
func (r *CodeRepository) Rotate(ctx context.Context, address string, next *models.ReferralCode) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.ReferralCode{}).
			Where("address = ? AND is_active = ?", address, true).
			Update("is_active", false).Error
		if err != nil {
			return err
		}

		next.Address = address
		next.IsActive = true
		return tx.Create(next).Error
	})
}

// SetActive 修改推荐码的激活状态
func (r *CodeRepository) SetActive(ctx context.Context, id uint64, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.ReferralCode{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

// CountAll 已发放的推荐码总数
func (r *CodeRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReferralCode{}).
		Count(&count).Error
	return count, err
}
