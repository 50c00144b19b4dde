package service

import (
	"context"
	"fmt"
	"strings"

	"referral-points-system/internal/address"
	"referral-points-system/internal/config"
	"referral-points-system/internal/metrics"
	"referral-points-system/internal/models"
	"referral-points-system/internal/rarity"
	"referral-points-system/pkg/errors"
	"referral-points-system/pkg/logger"
)

// SpecialCodeOwner 特殊码的所有者，也记为特殊码推荐事件的推荐人。
// 它不是合法地址，不会与任何规范化地址相等。
const SpecialCodeOwner = "SPECIAL_CODE"

// CodeInfo 地址当前推荐码及 roll 状态
type CodeInfo struct {
	Address             string `json:"address"`
	Code                string `json:"code"`
	Rarity              string `json:"rarity"`
	RollsUsed           int    `json:"rolls_used"`
	RollsRemaining      int    `json:"rolls_remaining"`
	MaxRolls            int    `json:"max_rolls"`
	SuccessfulReferrals int64  `json:"successful_referrals"`
	UnlockProgress      string `json:"unlock_progress"`
}

// CodeBenefits 推荐码的最低兑换额和奖励
type CodeBenefits struct {
	MinSwap     float64 `json:"min_swap"`
	BonusPoints float64 `json:"bonus_points"`
	Description string  `json:"description"`
	IsSpecial   bool    `json:"is_special"`
	IsValid     bool    `json:"is_valid"`
}

// CodeService 推荐码账本：发放、重新生成、按码查找所有者
type CodeService struct {
	codes     CodeStore
	referrals ReferralStore
	generator *rarity.Generator
	validator address.Validator
	rolls     RollEconomy
	cfg       *config.ReferralConfig
	locks     *keyedMutex
}

func NewCodeService(
	codes CodeStore,
	referrals ReferralStore,
	generator *rarity.Generator,
	validator address.Validator,
	cfg *config.ReferralConfig,
) *CodeService {
	return &CodeService{
		codes:     codes,
		referrals: referrals,
		generator: generator,
		validator: validator,
		rolls:     NewRollEconomy(cfg),
		cfg:       cfg,
		locks:     newKeyedMutex(),
	}
}

// GetOrCreate 返回地址当前激活的推荐码，没有则生成一个（计为第 1 次 roll）
func (s *CodeService) GetOrCreate(ctx context.Context, rawAddress string) (*CodeInfo, error) {
	addr, err := s.normalize(rawAddress)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(addr)
	defer unlock()

	active, err := s.codes.GetActive(ctx, addr)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询激活推荐码失败", err)
	}
	if active != nil {
		return s.info(ctx, active)
	}

	history, err := s.codes.ListByAddress(ctx, addr)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询推荐码历史失败", err)
	}
	if len(history) > 0 {
		// 有历史但无激活记录：恢复最近一条，不消耗 roll
		latest := history[len(history)-1]
		if err := s.codes.SetActive(ctx, latest.ID, true); err != nil {
			return nil, errors.New(errors.ErrDatabase, "恢复推荐码失败", err)
		}
		latest.IsActive = true
		logger.WithFields(logger.Fields{
			"address": addr,
			"code":    latest.Code,
		}).Warn("No active referral code, reactivated latest")
		return s.info(ctx, &latest)
	}

	draw, err := s.generator.Generate(ctx, s.codes.ExistsCode)
	if err != nil {
		return nil, errors.New(errors.ErrCodeGeneration, "生成推荐码失败", err)
	}

	row := &models.ReferralCode{
		Address:   addr,
		Code:      draw.Code,
		Rarity:    string(draw.Tier),
		RollsUsed: 1,
		IsActive:  true,
	}
	if err := s.codes.Create(ctx, row); err != nil {
		return nil, errors.New(errors.ErrDatabase, "保存推荐码失败", err)
	}

	metrics.CodesIssued.WithLabelValues("create", row.Rarity).Inc()
	logger.WithFields(logger.Fields{
		"address":  addr,
		"code":     row.Code,
		"rarity":   row.Rarity,
		"fallback": draw.Fallback,
	}).Info("Created referral code")

	return s.info(ctx, row)
}

// Regenerate 消耗一次 roll：停用当前推荐码并追加新生成的推荐码，旧推荐码仍可使用
func (s *CodeService) Regenerate(ctx context.Context, rawAddress string) (*CodeInfo, error) {
	addr, err := s.normalize(rawAddress)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(addr)
	defer unlock()

	history, err := s.codes.ListByAddress(ctx, addr)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询推荐码历史失败", err)
	}
	if len(history) == 0 {
		return nil, reject(errors.ErrNoExistingCode, "No referral code found")
	}

	rollsUsed := 0
	for _, c := range history {
		if c.RollsUsed > rollsUsed {
			rollsUsed = c.RollsUsed
		}
	}

	successful, err := s.referrals.CountByReferrer(ctx, addr)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "统计推荐数失败", err)
	}

	maxRolls := s.rolls.MaxRolls(successful)
	if rollsUsed >= maxRolls {
		return nil, reject(errors.ErrNoRollsRemaining,
			fmt.Sprintf("No rolls remaining (%d/%d), unlock progress %s", rollsUsed, maxRolls, s.rolls.Progress(successful)))
	}

	draw, err := s.generator.Generate(ctx, s.codes.ExistsCode)
	if err != nil {
		return nil, errors.New(errors.ErrCodeGeneration, "生成推荐码失败", err)
	}

	row := &models.ReferralCode{
		Code:      draw.Code,
		Rarity:    string(draw.Tier),
		RollsUsed: rollsUsed + 1,
	}
	if err := s.codes.Rotate(ctx, addr, row); err != nil {
		return nil, errors.New(errors.ErrDatabase, "保存新推荐码失败", err)
	}

	metrics.CodesIssued.WithLabelValues("regenerate", row.Rarity).Inc()
	logger.WithFields(logger.Fields{
		"address":    addr,
		"code":       row.Code,
		"rarity":     row.Rarity,
		"rolls_used": row.RollsUsed,
	}).Info("Regenerated referral code")

	return &CodeInfo{
		Address:             addr,
		Code:                row.Code,
		Rarity:              row.Rarity,
		RollsUsed:           row.RollsUsed,
		RollsRemaining:      s.rolls.Remaining(row.RollsUsed, successful),
		MaxRolls:            maxRolls,
		SuccessfulReferrals: successful,
		UnlockProgress:      s.rolls.Progress(successful),
	}, nil
}

// ResolveOwner 按码查找所有者（包括已停用的历史码）；特殊码返回 SpecialCodeOwner，
// 未知码返回空字符串
func (s *CodeService) ResolveOwner(ctx context.Context, code string) (string, error) {
	if _, ok := s.cfg.Special(code); ok {
		return SpecialCodeOwner, nil
	}
	if strings.TrimSpace(code) == "" {
		return "", nil
	}

	row, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		return "", errors.New(errors.ErrDatabase, "查询推荐码失败", err)
	}
	if row == nil {
		return "", nil
	}
	return row.Address, nil
}

// GetCodeBenefits 特殊码返回配置的权益，普通码使用默认最低兑换额
func (s *CodeService) GetCodeBenefits(ctx context.Context, code string) (*CodeBenefits, error) {
	if sc, ok := s.cfg.Special(code); ok {
		return &CodeBenefits{
			MinSwap:     sc.MinSwap,
			BonusPoints: sc.BonusPoints,
			Description: sc.Description,
			IsSpecial:   true,
			IsValid:     true,
		}, nil
	}

	owner, err := s.ResolveOwner(ctx, code)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		return &CodeBenefits{
			MinSwap:     s.cfg.MinSwapAmount,
			Description: "Invalid code",
		}, nil
	}
	return &CodeBenefits{
		MinSwap:     s.cfg.MinSwapAmount,
		Description: "Standard referral code",
		IsValid:     true,
	}, nil
}

// CodeHistory 地址（规范化后）及其全部历史推荐码
type CodeHistory struct {
	Address string                `json:"address"`
	Codes   []models.ReferralCode `json:"codes"`
}

// History 按创建顺序列出地址持有过的全部推荐码
func (s *CodeService) History(ctx context.Context, rawAddress string) (*CodeHistory, error) {
	addr, err := s.normalize(rawAddress)
	if err != nil {
		return nil, err
	}
	codes, err := s.codes.ListByAddress(ctx, addr)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询推荐码历史失败", err)
	}
	return &CodeHistory{Address: addr, Codes: codes}, nil
}

func (s *CodeService) info(ctx context.Context, row *models.ReferralCode) (*CodeInfo, error) {
	successful, err := s.referrals.CountByReferrer(ctx, row.Address)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "统计推荐数失败", err)
	}
	return &CodeInfo{
		Address:             row.Address,
		Code:                row.Code,
		Rarity:              row.Rarity,
		RollsUsed:           row.RollsUsed,
		RollsRemaining:      s.rolls.Remaining(row.RollsUsed, successful),
		MaxRolls:            s.rolls.MaxRolls(successful),
		SuccessfulReferrals: successful,
		UnlockProgress:      s.rolls.Progress(successful),
	}, nil
}

func (s *CodeService) normalize(raw string) (string, error) {
	res := s.validator.Normalize(raw)
	if !res.Valid {
		return "", reject(errors.ErrInvalidAddress, "Invalid address")
	}
	return res.Canonical, nil
}

// reject 构造业务校验错误；只记 Debug 日志，不视为故障
func reject(code, message string) error {
	metrics.ValidationFailures.WithLabelValues(code).Inc()
	logger.WithFields(logger.Fields{
		"code":    code,
		"message": message,
	}).Debug("Request rejected")
	return errors.Validation(code, message)
}
