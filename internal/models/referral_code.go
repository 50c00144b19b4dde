package models

import (
	"time"
)

// ReferralCode 推荐码记录，只追加；除 is_active 外不做修改
type ReferralCode struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Address   string    `gorm:"size:64;not null;index:idx_address_active" json:"address"`
	Code      string    `gorm:"size:64;not null;index" json:"code"`
	Rarity    string    `gorm:"size:20;not null" json:"rarity"`
	RollsUsed int       `gorm:"not null;default:1" json:"rolls_used"`
	IsActive  bool      `gorm:"not null;default:true;index:idx_address_active" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReferralCode) TableName() string {
	return "referral_codes"
}
