package handler

import (
	"net/http"

	"github.com/hitoshi/docgate/internal/session"
)

// SessionStatsProvider はセッションストアの診断スナップショットのインターフェース。
type SessionStatsProvider interface {
	Stats() session.Stats
}

// BucketCounter はレートリミッターのバケット数のインターフェース。
type BucketCounter interface {
	BucketCount() int
}

// AdminHandler は管理者専用の診断エンドポイントのHTTPハンドラー。
// 管理者ロールの強制はパイプラインの認可ステージが行う。
type AdminHandler struct {
	sessionStats SessionStatsProvider
	rateBuckets  BucketCounter
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(sessionStats SessionStatsProvider, rateBuckets BucketCounter) *AdminHandler {
	return &AdminHandler{
		sessionStats: sessionStats,
		rateBuckets:  rateBuckets,
	}
}

// statsResponse は診断スナップショットのレスポンス。
type statsResponse struct {
	Sessions         session.Stats `json:"sessions"`
	RateLimitBuckets int           `json:"rate_limit_buckets"`
}

// Stats はセッションストアとレートリミッターの診断スナップショットを返す。
// GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Sessions:         h.sessionStats.Stats(),
		RateLimitBuckets: h.rateBuckets.BucketCount(),
	})
}
