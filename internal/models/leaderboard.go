package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// LeaderboardEntry 排行榜缓存行，可随时丢弃并重建
type LeaderboardEntry struct {
	Address        string         `gorm:"primaryKey;size:64" json:"address"`
	StablePoints   float64        `gorm:"not null;default:0" json:"stable_points"`
	ReferralPoints float64        `gorm:"not null;default:0" json:"referral_points"`
	RefereeBonus   float64        `gorm:"not null;default:0" json:"referee_bonus"`
	Referrals      int64          `gorm:"not null;default:0" json:"referrals"`
	TotalStaked    float64        `gorm:"not null;default:0" json:"total_staked"`
	TotalBalance   float64        `gorm:"not null;default:0" json:"total_balance"`
	Tokens         TokenPositions `gorm:"type:json" json:"tokens"`
	TotalPoints    float64        `gorm:"not null;default:0;index:idx_total_points" json:"total_points"`
	LastUpdated    time.Time      `gorm:"not null;index" json:"last_updated"`
}

func (LeaderboardEntry) TableName() string {
	return "leaderboard_cache"
}

// TokenPosition 单个代币的钱包余额与质押数量（已按精度换算）
type TokenPosition struct {
	Balance float64 `json:"balance"`
	Staked  float64 `json:"staked"`
}

// TokenPositions 按代币符号索引，以 JSON 存储
type TokenPositions map[string]TokenPosition

func (p TokenPositions) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *TokenPositions) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = nil
		return nil
	}
	return errors.New("type assertion to []byte failed")
}

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	case nil:
		*j = nil
		return nil
	}
	return errors.New("type assertion to []byte failed")
}

// LeaderboardRefresh 记录一次完整刷新，用于区分"缓存为空"和"排行榜为空"
type LeaderboardRefresh struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	StartedAt    time.Time `gorm:"not null" json:"started_at"`
	FinishedAt   time.Time `gorm:"not null;index" json:"finished_at"`
	Participants int       `gorm:"not null" json:"participants"`
	Entries      int       `gorm:"not null" json:"entries"`
	Stats        JSONB     `gorm:"type:json" json:"stats"`
}

func (LeaderboardRefresh) TableName() string {
	return "leaderboard_refreshes"
}
