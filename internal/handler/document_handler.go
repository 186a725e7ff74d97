package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/docgate/internal/model"
	"github.com/hitoshi/docgate/internal/source"
)

// DocumentGenerator はドキュメント生成のインターフェース。
// document.Serviceを抽象化してテスタビリティを向上させる。
type DocumentGenerator interface {
	Generate(ctx context.Context, sourceURL, language string) (*model.Document, error)
}

// VideoInfoProvider は動画情報取得のインターフェース。
// source.Processorの部分集合として定義する。
type VideoInfoProvider interface {
	VideoInfo(ctx context.Context, rawURL string) (*model.VideoInfo, error)
	ListCaptionTracks(ctx context.Context, videoID string) ([]model.CaptionTrack, error)
}

// DocumentHandler はドキュメント生成関連のHTTPハンドラー。
type DocumentHandler struct {
	documents DocumentGenerator
	videos    VideoInfoProvider
}

// NewDocumentHandler はDocumentHandlerを生成する。
func NewDocumentHandler(documents DocumentGenerator, videos VideoInfoProvider) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		videos:    videos,
	}
}

// generateRequest はドキュメント生成リクエストのボディ。
type generateRequest struct {
	SourceURL string `json:"source_url"`
	Language  string `json:"language"`
}

// Generate はソースURLからドキュメントを生成する。
// POST /api/documents
func (h *DocumentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewInvalidURLError("リクエストボディを解釈できません"))
		return
	}
	if req.SourceURL == "" {
		writeError(w, model.NewInvalidURLError("source_urlが指定されていません"))
		return
	}

	doc, err := h.documents.Generate(r.Context(), req.SourceURL, req.Language)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// VideoInfo は動画の基本情報を返す。
// GET /api/videos/info?url=
func (h *DocumentHandler) VideoInfo(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, model.NewInvalidURLError("urlパラメータが指定されていません"))
		return
	}

	info, err := h.videos.VideoInfo(r.Context(), rawURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// CaptionTracks は動画で利用可能な字幕トラックの一覧を返す。
// GET /api/videos/captions?url=
func (h *DocumentHandler) CaptionTracks(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, model.NewInvalidURLError("urlパラメータが指定されていません"))
		return
	}

	videoID := source.ExtractVideoID(rawURL)
	if videoID == "" {
		writeError(w, model.NewInvalidURLError("YouTube動画のURLとして認識できません"))
		return
	}

	tracks, err := h.videos.ListCaptionTracks(r.Context(), videoID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tracks == nil {
		tracks = []model.CaptionTrack{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"video_id": videoID,
		"tracks":   tracks,
	})
}
