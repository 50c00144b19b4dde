package service

import (
	"context"
	"time"

	"referral-points-system/internal/models"
)

// 服务只依赖以下账本接口，由 gorm repository 实现

// CodeStore 推荐码账本
type CodeStore interface {
	Create(ctx context.Context, code *models.ReferralCode) error
	GetActive(ctx context.Context, address string) (*models.ReferralCode, error)
	ListByAddress(ctx context.Context, address string) ([]models.ReferralCode, error)
	FindByCode(ctx context.Context, code string) (*models.ReferralCode, error)
	ExistsCode(ctx context.Context, code string) (bool, error)
	Rotate(ctx context.Context, address string, next *models.ReferralCode) error
	SetActive(ctx context.Context, id uint64, active bool) error
}

// ReferralStore 推荐事件账本，referred_address 唯一
type ReferralStore interface {
	Create(ctx context.Context, event *models.ReferralEvent) error
	GetByReferred(ctx context.Context, referred string) (*models.ReferralEvent, error)
	CountByReferrer(ctx context.Context, referrer string) (int64, error)
	ListByReferrer(ctx context.Context, referrer string) ([]models.ReferralEvent, error)
	ListReferrers(ctx context.Context) ([]string, error)
	ListReferred(ctx context.Context) ([]string, error)
}

// SnapshotStore 每日余额快照
type SnapshotStore interface {
	ExistsForDate(ctx context.Context, date string) (bool, error)
	CreateBatch(ctx context.Context, snapshots []models.DailyBalanceSnapshot) (int64, error)
	SumBalances(ctx context.Context, addresses []string) (float64, error)
	ListByAddress(ctx context.Context, address string, limit int) ([]models.DailyBalanceSnapshot, error)
}

// LeaderboardStore 排行榜缓存及刷新记录
type LeaderboardStore interface {
	Upsert(ctx context.Context, entry *models.LeaderboardEntry) error
	DeleteStale(ctx context.Context, before time.Time, keep []string) (int64, error)
	Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Count(ctx context.Context) (int64, error)
	RecordRefresh(ctx context.Context, refresh *models.LeaderboardRefresh) error
	LastRefresh(ctx context.Context) (*models.LeaderboardRefresh, error)
}

// Counter 统计总行数
type Counter interface {
	CountAll(ctx context.Context) (int64, error)
}

// StakerCounter 按代币统计已发现的质押地址
type StakerCounter interface {
	CountByToken(ctx context.Context, token string) (int64, error)
}
