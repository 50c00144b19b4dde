package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"referral-points-system/internal/address"
	"referral-points-system/internal/config"
	"referral-points-system/internal/metrics"
	"referral-points-system/internal/models"
	"referral-points-system/internal/oracle"
	"referral-points-system/pkg/errors"
	"referral-points-system/pkg/logger"
)

// RefreshResult 一次刷新的统计
type RefreshResult struct {
	Participants int           `json:"participants"`
	Entries      int           `json:"entries"`
	Failed       int           `json:"failed"`
	Removed      int64         `json:"removed"`
	Duration     time.Duration `json:"duration"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// LeaderboardPage 排行榜查询结果
type LeaderboardPage struct {
	Entries      []models.LeaderboardEntry `json:"leaderboard"`
	TotalEntries int64                     `json:"total_entries"`
	RefreshedAt  time.Time                 `json:"refreshed_at"`
}

// LeaderboardService 排行榜缓存，可随时由账本和质押数据完整重建
type LeaderboardService struct {
	store     LeaderboardStore
	referrals ReferralStore
	stakers   oracle.StakerSource
	points    *PointsService
	validator address.Validator
	cfg       *config.LeaderboardConfig

	mu  sync.Mutex
	now func() time.Time
}

func NewLeaderboardService(
	store LeaderboardStore,
	referrals ReferralStore,
	stakers oracle.StakerSource,
	points *PointsService,
	validator address.Validator,
	cfg *config.LeaderboardConfig,
) *LeaderboardService {
	return &LeaderboardService{
		store:     store,
		referrals: referrals,
		stakers:   stakers,
		points:    points,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Refresh 重新计算全部参与者的积分并重写缓存。
// 单个地址计算失败时记录日志并跳过，保留其原有条目。
func (s *LeaderboardService) Refresh(ctx context.Context) (*RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startedAt := s.now().UTC()
	logger.Info("Starting leaderboard refresh")

	participants, err := s.participants(ctx)
	if err != nil {
		return nil, err
	}

	var (
		resMu   sync.Mutex
		written []string
		failed  []string
		wg      sync.WaitGroup
	)
	tasks := make(chan string)

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range tasks {
				ok, err := s.refreshOne(ctx, addr)
				resMu.Lock()
				if err != nil {
					failed = append(failed, addr)
					logger.WithFields(logger.Fields{
						"address": addr,
						"error":   err,
					}).Error("Failed to refresh leaderboard entry")
				} else if ok {
					written = append(written, addr)
				}
				resMu.Unlock()
			}
		}()
	}

feed:
	for _, addr := range participants {
		select {
		case <-ctx.Done():
			break feed
		case tasks <- addr:
		}
	}
	close(tasks)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.New(errors.ErrPointsCalc, "排行榜刷新被取消", err)
	}

	keep := make([]string, 0, len(written)+len(failed))
	keep = append(keep, written...)
	keep = append(keep, failed...)
	removed, err := s.store.DeleteStale(ctx, startedAt, keep)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "清理排行榜缓存失败", err)
	}

	finishedAt := s.now().UTC()
	result := &RefreshResult{
		Participants: len(participants),
		Entries:      len(written),
		Failed:       len(failed),
		Removed:      removed,
		Duration:     finishedAt.Sub(startedAt),
		FinishedAt:   finishedAt,
	}

	if err := s.store.RecordRefresh(ctx, &models.LeaderboardRefresh{
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Participants: result.Participants,
		Entries:      result.Entries,
		Stats: models.JSONB{
			"failed":  result.Failed,
			"removed": result.Removed,
			"workers": workers,
		},
	}); err != nil {
		return nil, errors.New(errors.ErrDatabase, "记录排行榜刷新失败", err)
	}

	metrics.LeaderboardRefreshSeconds.Observe(result.Duration.Seconds())
	metrics.LeaderboardEntries.Set(float64(result.Entries))
	logger.WithFields(logger.Fields{
		"participants": result.Participants,
		"entries":      result.Entries,
		"failed":       result.Failed,
		"removed":      result.Removed,
		"duration":     result.Duration.String(),
	}).Info("Leaderboard refresh completed")

	return result, nil
}

// refreshOne 写入一个地址的排行榜条目；总积分为 0 时不写入
func (s *LeaderboardService) refreshOne(ctx context.Context, addr string) (bool, error) {
	b, err := s.points.Breakdown(ctx, addr)
	if err != nil {
		return false, err
	}
	total := b.Total()
	if total <= 0 {
		return false, nil
	}

	tokens := make(models.TokenPositions, len(b.Tokens))
	for symbol, pos := range b.Tokens {
		tokens[symbol] = models.TokenPosition{
			Balance: RoundPoints(pos.Balance),
			Staked:  RoundPoints(pos.Staked),
		}
	}

	entry := &models.LeaderboardEntry{
		Address:        addr,
		StablePoints:   RoundPoints(b.StablePoints),
		ReferralPoints: RoundPoints(b.ReferralPoints),
		RefereeBonus:   RoundPoints(b.RefereeBonus),
		Referrals:      b.Referrals,
		TotalStaked:    RoundPoints(b.TotalStaked),
		TotalBalance:   RoundPoints(b.TotalBalance),
		Tokens:         tokens,
		TotalPoints:    RoundPoints(total),
		LastUpdated:    s.now().UTC(),
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		return false, errors.New(errors.ErrDatabase, "写入排行榜缓存失败", err)
	}
	return true, nil
}

// participants 质押地址 ∪ 推荐人 ∪ 被推荐人，规范化后排序；特殊码推荐人不是地址，被跳过
func (s *LeaderboardService) participants(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(raw string) {
		res := s.validator.Normalize(raw)
		if !res.Valid {
			return
		}
		seen[res.Canonical] = struct{}{}
	}

	if s.stakers != nil {
		stakers, err := s.stakers.ListStakers(ctx)
		if err != nil {
			metrics.SignalUnavailable.WithLabelValues("stakers").Inc()
			logger.WithFields(logger.Fields{
				"error": err,
			}).Warn("Failed to list stakers, refreshing referral participants only")
		}
		for _, a := range stakers {
			add(a)
		}
	}

	referrers, err := s.referrals.ListReferrers(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询推荐人列表失败", err)
	}
	for _, a := range referrers {
		add(a)
	}

	referred, err := s.referrals.ListReferred(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询被推荐人列表失败", err)
	}
	for _, a := range referred {
		add(a)
	}

	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

// Get 按总积分返回前 limit 名。从未完成过刷新时返回 errors.CacheEmpty，
// 与排行榜本身为空相区分。
func (s *LeaderboardService) Get(ctx context.Context, limit int) (*LeaderboardPage, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	last, err := s.store.LastRefresh(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询排行榜刷新记录失败", err)
	}
	if last == nil {
		return nil, errors.CacheEmpty
	}

	entries, err := s.store.Top(ctx, limit)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询排行榜失败", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "统计排行榜失败", err)
	}

	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return &LeaderboardPage{
		Entries:      entries,
		TotalEntries: total,
		RefreshedAt:  last.FinishedAt,
	}, nil
}
