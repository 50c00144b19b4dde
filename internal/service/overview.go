package service

import (
	"context"
	"time"

	"referral-points-system/internal/config"
	"referral-points-system/pkg/errors"
)

// Overview 系统概况
type Overview struct {
	CodesIssued        int64            `json:"codes_issued"`
	Referrals          int64            `json:"referrals"`
	Stakers            map[string]int64 `json:"stakers"`
	LeaderboardEntries int64            `json:"leaderboard_entries"`
	LastRefresh        *time.Time       `json:"last_refresh,omitempty"`
}

// OverviewService 汇总各账本的计数
type OverviewService struct {
	codes     Counter
	referrals Counter
	stakers   StakerCounter
	board     LeaderboardStore
	tokens    *config.StakingConfig
}

// NewOverviewService stakers 可以为 nil，此时不统计质押地址
func NewOverviewService(codes, referrals Counter, stakers StakerCounter, board LeaderboardStore, tokens *config.StakingConfig) *OverviewService {
	return &OverviewService{
		codes:     codes,
		referrals: referrals,
		stakers:   stakers,
		board:     board,
		tokens:    tokens,
	}
}

// Get 汇总推荐码、推荐记录、质押地址和排行榜的计数
func (s *OverviewService) Get(ctx context.Context) (*Overview, error) {
	codes, err := s.codes.CountAll(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "统计推荐码失败", err)
	}
	referrals, err := s.referrals.CountAll(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "统计推荐记录失败", err)
	}

	out := &Overview{
		CodesIssued: codes,
		Referrals:   referrals,
		Stakers:     make(map[string]int64),
	}

	if s.stakers != nil {
		for _, token := range s.tokens.StakingTokens() {
			n, err := s.stakers.CountByToken(ctx, token.Symbol)
			if err != nil {
				return nil, errors.New(errors.ErrDatabase, "统计质押地址失败", err)
			}
			out.Stakers[token.Symbol] = n
		}
	}

	entries, err := s.board.Count(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "统计排行榜失败", err)
	}
	out.LeaderboardEntries = entries

	last, err := s.board.LastRefresh(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询排行榜刷新记录失败", err)
	}
	if last != nil {
		finished := last.FinishedAt
		out.LastRefresh = &finished
	}
	return out, nil
}
