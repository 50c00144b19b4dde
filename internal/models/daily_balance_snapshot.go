package models

import (
	"time"
)

// DailyBalanceSnapshot 被推荐用户的每日余额快照，(date, referred_address) 唯一
type DailyBalanceSnapshot struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Date            string    `gorm:"size:10;not null;uniqueIndex:uk_date_referred" json:"date"`
	ReferredAddress string    `gorm:"size:64;not null;uniqueIndex:uk_date_referred;index" json:"referred_address"`
	Balance         float64   `gorm:"not null" json:"balance"`
	RecordedAt      time.Time `gorm:"not null" json:"recorded_at"`
}

func (DailyBalanceSnapshot) TableName() string {
	return "daily_balance_snapshots"
}
