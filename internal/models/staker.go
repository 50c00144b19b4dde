package models

import (
	"time"
)

// Staker 从质押合约 Staked 事件中发现的地址
type Staker struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Address        string    `gorm:"size:64;not null;uniqueIndex:uk_staker_token" json:"address"`
	Token          string    `gorm:"size:20;not null;uniqueIndex:uk_staker_token" json:"token"`
	FirstSeenBlock int64     `gorm:"not null" json:"first_seen_block"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Staker) TableName() string {
	return "stakers"
}
