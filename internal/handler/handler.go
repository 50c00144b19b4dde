package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"referral-points-system/internal/service"
	"referral-points-system/pkg/errors"
	"referral-points-system/pkg/logger"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

var statusByCode = map[string]int{
	errors.ErrInvalidAddress:   http.StatusBadRequest,
	errors.ErrSelfReferral:     http.StatusBadRequest,
	errors.ErrBelowMinimum:     http.StatusBadRequest,
	errors.ErrUnknownCode:      http.StatusNotFound,
	errors.ErrNoExistingCode:   http.StatusNotFound,
	errors.ErrAlreadyReferred:  http.StatusConflict,
	errors.ErrNoRollsRemaining: http.StatusConflict,
	errors.ErrNotConfigured:    http.StatusServiceUnavailable,
}

// writeAppError 业务错误按错误码映射状态码，其余视为内部错误
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.CodeOf(err)
	if status, ok := statusByCode[code]; ok {
		message := err.Error()
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			message = appErr.Message
		}
		writeJSON(w, status, map[string]string{"error": message, "code": code})
		return
	}

	logger.WithFields(logger.Fields{
		"path":  r.URL.Path,
		"error": err,
	}).Error("Request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

type jobTrigger interface {
	TriggerSnapshot(ctx context.Context) (*service.SnapshotResult, bool, error)
	TriggerRefresh(ctx context.Context) (*service.RefreshResult, bool, error)
}

type ReferralHandler struct {
	codes     *service.CodeService
	referrals *service.ReferralService
	points    *service.PointsService
}

func NewReferralHandler(codes *service.CodeService, referrals *service.ReferralService, points *service.PointsService) *ReferralHandler {
	return &ReferralHandler{codes: codes, referrals: referrals, points: points}
}

// GetCode GET /api/referrals/{address}
func (h *ReferralHandler) GetCode(w http.ResponseWriter, r *http.Request) {
	info, err := h.codes.GetOrCreate(r.Context(), r.PathValue("address"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Regenerate POST /api/referrals/{address}/regenerate
func (h *ReferralHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	info, err := h.codes.Regenerate(r.Context(), r.PathValue("address"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// History GET /api/referrals/history/{address}
func (h *ReferralHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.codes.History(r.Context(), r.PathValue("address"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// CheckReferred GET /api/referrals/check/{address}
func (h *ReferralHandler) CheckReferred(w http.ResponseWriter, r *http.Request) {
	event, err := h.referrals.CheckReferred(r.Context(), r.PathValue("address"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := map[string]interface{}{"referred": event != nil}
	if event != nil {
		resp["referrer_address"] = event.ReferrerAddress
		resp["referral_code"] = event.ReferralCode
	}
	writeJSON(w, http.StatusOK, resp)
}

// ValidateCode GET /api/referrals/code/{code}
func (h *ReferralHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	benefits, err := h.referrals.ValidateCode(r.Context(), code)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":     code,
		"valid":    benefits.IsValid,
		"benefits": benefits,
	})
}

type useCodeRequest struct {
	Code            string  `json:"code"`
	ReferredAddress string  `json:"referred_address"`
	SwapAmount      float64 `json:"swap_amount"`
}

// UseCode POST /api/referrals/use
func (h *ReferralHandler) UseCode(w http.ResponseWriter, r *http.Request) {
	var req useCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Code == "" || req.ReferredAddress == "" {
		writeError(w, http.StatusBadRequest, "code and referred_address are required")
		return
	}

	res, err := h.referrals.UseCode(r.Context(), req.Code, req.ReferredAddress, req.SwapAmount)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Stats GET /api/referrals/stats/{address}
func (h *ReferralHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.points.GetReferrerStats(r.Context(), r.PathValue("address"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
	jobs        jobTrigger
}

func NewLeaderboardHandler(leaderboard *service.LeaderboardService, jobs jobTrigger) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard, jobs: jobs}
}

// Get GET /api/leaderboard?limit=N
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.leaderboard.Get(r.Context(), limit)
	if errors.CodeOf(err) == errors.ErrLeaderboardCacheEmpty {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"cache_empty":   true,
			"leaderboard":   []interface{}{},
			"total_entries": 0,
		})
		return
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache_empty":   false,
		"leaderboard":   page.Entries,
		"total_entries": page.TotalEntries,
		"refreshed_at":  page.RefreshedAt.Format(time.RFC3339),
	})
}

// Refresh POST /api/leaderboard/refresh
func (h *LeaderboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, ran, err := h.jobs.TriggerRefresh(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !ran {
		writeError(w, http.StatusConflict, "leaderboard refresh already running")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Snapshot POST /api/snapshots/daily
func (h *LeaderboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	res, ran, err := h.jobs.TriggerSnapshot(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !ran {
		writeError(w, http.StatusConflict, "daily snapshot already running")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type StatsHandler struct {
	snapshots *service.SnapshotService
	overview  *service.OverviewService
}

func NewStatsHandler(snapshots *service.SnapshotService, overview *service.OverviewService) *StatsHandler {
	return &StatsHandler{snapshots: snapshots, overview: overview}
}

// SnapshotHistory GET /api/snapshots/{address}?limit=N
func (h *StatsHandler) SnapshotHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := h.snapshots.History(r.Context(), r.PathValue("address"), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Overview GET /api/stats
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.overview.Get(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// HandleHealth GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// NewRouter 注册全部路由
func NewRouter(referrals *ReferralHandler, leaderboard *LeaderboardHandler, stats *StatsHandler) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /api/referrals/{address}", referrals.GetCode)
	router.HandleFunc("POST /api/referrals/{address}/regenerate", referrals.Regenerate)
	router.HandleFunc("GET /api/referrals/history/{address}", referrals.History)
	router.HandleFunc("GET /api/referrals/check/{address}", referrals.CheckReferred)
	router.HandleFunc("GET /api/referrals/code/{code}", referrals.ValidateCode)
	router.HandleFunc("POST /api/referrals/use", referrals.UseCode)
	router.HandleFunc("GET /api/referrals/stats/{address}", referrals.Stats)

	router.HandleFunc("GET /api/leaderboard", leaderboard.Get)
	router.HandleFunc("POST /api/leaderboard/refresh", leaderboard.Refresh)
	router.HandleFunc("POST /api/snapshots/daily", leaderboard.Snapshot)
	router.HandleFunc("GET /api/snapshots/{address}", stats.SnapshotHistory)
	router.HandleFunc("GET /api/stats", stats.Overview)

	router.HandleFunc("GET /health", HandleHealth)
	router.Handle("GET /metrics", promhttp.Handler())

	return router
}
