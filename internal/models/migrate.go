package models

import "gorm.io/gorm"

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ReferralCode{},
		&ReferralEvent{},
		&DailyBalanceSnapshot{},
		&LeaderboardEntry{},
		&LeaderboardRefresh{},
		&Staker{},
		&ProcessedBlock{},
	)
}
