package models

import (
	"time"
)

// ReferralEvent 一次性推荐记录，每个被推荐地址终身最多一条
type ReferralEvent struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferrerAddress  string    `gorm:"size:64;not null;index" json:"referrer_address"`
	ReferralCode     string    `gorm:"size:64;not null" json:"referral_code"`
	ReferredAddress  string    `gorm:"size:64;not null;uniqueIndex:uk_referred" json:"referred_address"`
	SwapAmount       float64   `gorm:"not null" json:"swap_amount"`
	SignupBonusPaid  bool      `gorm:"not null;default:true" json:"signup_bonus_paid"`
	RefereeBonusPaid bool      `gorm:"not null;default:true" json:"referee_bonus_paid"`
	SwapTimestamp    time.Time `gorm:"not null" json:"swap_timestamp"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReferralEvent) TableName() string {
	return "referral_events"
}
