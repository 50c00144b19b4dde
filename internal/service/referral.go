package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"referral-points-system/internal/address"
	"referral-points-system/internal/config"
	"referral-points-system/internal/metrics"
	"referral-points-system/internal/models"
	"referral-points-system/pkg/errors"
	"referral-points-system/pkg/logger"
)

type UseCodeResult struct {
	Success         bool    `json:"success"`
	ReferrerAddress string  `json:"referrer_address"`
	ReferredAddress string  `json:"referred_address"`
	Code            string  `json:"code"`
	ReferrerBonus   float64 `json:"referrer_bonus"`
	RefereeBonus    float64 `json:"referee_bonus"`
	IsSpecialCode   bool    `json:"is_special_code"`
	Description     string  `json:"description"`
}

// ReferralService 推荐记录账本
type ReferralService struct {
	codes     *CodeService
	referrals ReferralStore
	validator address.Validator
	cfg       *config.ReferralConfig

	// 串行化"检查是否已推荐 + 插入"；唯一索引兜底
	mu  sync.Mutex
	now func() time.Time
}

func NewReferralService(codes *CodeService, referrals ReferralStore, validator address.Validator, cfg *config.ReferralConfig) *ReferralService {
	return &ReferralService{
		codes:     codes,
		referrals: referrals,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// UseCode 按固定顺序校验，全部通过后追加一条 ReferralEvent；返回第一个失败的校验
func (s *ReferralService) UseCode(ctx context.Context, code, referredAddress string, swapAmount float64) (*UseCodeResult, error) {
	res := s.validator.Normalize(referredAddress)
	if !res.Valid {
		return nil, reject(errors.ErrInvalidAddress, "Invalid referred address")
	}
	referred := res.Canonical

	owner, err := s.codes.ResolveOwner(ctx, code)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, reject(errors.ErrUnknownCode, "Invalid referral code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.referrals.GetByReferred(ctx, referred)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询推荐记录失败", err)
	}
	if existing != nil {
		return nil, reject(errors.ErrAlreadyReferred, "Address already referred")
	}

	isSpecial := owner == SpecialCodeOwner
	if !isSpecial && address.Equal(owner, referred) {
		return nil, reject(errors.ErrSelfReferral, "Cannot use your own referral code")
	}

	benefits, err := s.codes.GetCodeBenefits(ctx, code)
	if err != nil {
		return nil, err
	}

	if swapAmount < benefits.MinSwap {
		return nil, reject(errors.ErrBelowMinimum,
			fmt.Sprintf("Minimum swap of %s required for this code", strconv.FormatFloat(benefits.MinSwap, 'f', -1, 64)))
	}

	// 特殊码的推荐人记为 SpecialCodeOwner，不对应任何可查询的地址
	referrer := owner

	event := &models.ReferralEvent{
		ReferrerAddress:  referrer,
		ReferralCode:     code,
		ReferredAddress:  referred,
		SwapAmount:       swapAmount,
		SignupBonusPaid:  true,
		RefereeBonusPaid: true,
		SwapTimestamp:    s.now().UTC(),
	}
	if err := s.referrals.Create(ctx, event); err != nil {
		if stderrors.Is(err, errors.AlreadyReferred) {
			return nil, reject(errors.ErrAlreadyReferred, "Address already referred")
		}
		return nil, errors.New(errors.ErrDatabase, "保存推荐记录失败", err)
	}

	referrerBonus := s.cfg.SignupBonus
	if isSpecial {
		referrerBonus = 0
	}

	metrics.ReferralsRecorded.WithLabelValues(strconv.FormatBool(isSpecial)).Inc()
	logger.WithFields(logger.Fields{
		"code":     code,
		"referrer": referrer,
		"referred": referred,
		"amount":   swapAmount,
		"special":  isSpecial,
	}).Info("Referral recorded")

	return &UseCodeResult{
		Success:         true,
		ReferrerAddress: referrer,
		ReferredAddress: referred,
		Code:            code,
		ReferrerBonus:   referrerBonus,
		RefereeBonus:    s.cfg.RefereeBonus + benefits.BonusPoints,
		IsSpecialCode:   isSpecial,
		Description:     benefits.Description,
	}, nil
}

// CheckReferred 返回地址的推荐记录，未被推荐时返回 nil
func (s *ReferralService) CheckReferred(ctx context.Context, rawAddress string) (*models.ReferralEvent, error) {
	res := s.validator.Normalize(rawAddress)
	if !res.Valid {
		return nil, reject(errors.ErrInvalidAddress, "Invalid address")
	}
	event, err := s.referrals.GetByReferred(ctx, res.Canonical)
	if err != nil {
		return nil, errors.New(errors.ErrDatabase, "查询推荐记录失败", err)
	}
	return event, nil
}

// ValidateCode 返回推荐码的权益，无效码 IsValid 为 false
func (s *ReferralService) ValidateCode(ctx context.Context, code string) (*CodeBenefits, error) {
	return s.codes.GetCodeBenefits(ctx, code)
}
