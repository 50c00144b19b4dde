package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码匹配，便于 errors.Is(err, ErrAlreadyReferred)
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 基础设施错误
var (
	ErrConfigLoad      = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect = "DATABASE_CONNECT_ERROR"
	ErrDatabase        = "DATABASE_ERROR"
	ErrRPConnect       = "RPC_CONNECT_ERROR"
	ErrRPCCall         = "RPC_CALL_ERROR"
	ErrBlockFetch      = "BLOCK_FETCH_ERROR"
	ErrEventParse      = "EVENT_PARSE_ERROR"
	ErrOracle          = "ORACLE_UNAVAILABLE"
	ErrPointsCalc      = "POINTS_CALCULATION_ERROR"
	ErrSnapshot        = "SNAPSHOT_ERROR"
	ErrCodeGeneration  = "CODE_GENERATION_ERROR"
)

// 业务校验错误，面向用户，不作为故障记录
const (
	ErrInvalidAddress   = "INVALID_ADDRESS"
	ErrUnknownCode      = "UNKNOWN_CODE"
	ErrAlreadyReferred  = "ALREADY_REFERRED"
	ErrSelfReferral     = "SELF_REFERRAL"
	ErrBelowMinimum     = "BELOW_MINIMUM"
	ErrNoRollsRemaining = "NO_ROLLS_REMAINING"
	ErrNoExistingCode   = "NO_EXISTING_CODE"
)

const (
	ErrNotConfigured         = "NOT_CONFIGURED"
	ErrLeaderboardCacheEmpty = "LEADERBOARD_CACHE_EMPTY"
)

var validationCodes = map[string]bool{
	ErrInvalidAddress:   true,
	ErrUnknownCode:      true,
	ErrAlreadyReferred:  true,
	ErrSelfReferral:     true,
	ErrBelowMinimum:     true,
	ErrNoRollsRemaining: true,
	ErrNoExistingCode:   true,
}

// 以下哨兵错误用于 errors.Is 比较
var (
	InvalidAddress   = &AppError{Code: ErrInvalidAddress, Message: "invalid address"}
	UnknownCode      = &AppError{Code: ErrUnknownCode, Message: "invalid referral code"}
	AlreadyReferred  = &AppError{Code: ErrAlreadyReferred, Message: "address already referred"}
	SelfReferral     = &AppError{Code: ErrSelfReferral, Message: "cannot use your own referral code"}
	BelowMinimum     = &AppError{Code: ErrBelowMinimum, Message: "swap amount below minimum"}
	NoRollsRemaining = &AppError{Code: ErrNoRollsRemaining, Message: "no rolls remaining"}
	NoExistingCode   = &AppError{Code: ErrNoExistingCode, Message: "no referral code found"}
	NotConfigured    = &AppError{Code: ErrNotConfigured, Message: "not configured"}
	CacheEmpty       = &AppError{Code: ErrLeaderboardCacheEmpty, Message: "leaderboard cache is empty"}
)

// Validation 构造业务校验错误
func Validation(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// CodeOf 返回错误链中第一个 AppError 的错误码
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsValidation(err error) bool {
	return validationCodes[CodeOf(err)]
}

func IsNotConfigured(err error) bool {
	return CodeOf(err) == ErrNotConfigured
}
