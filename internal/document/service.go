// Package document はソースURLからの整形済みドキュメント生成を提供する。
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/docgate/internal/model"
)

// SourceProcessor はドキュメントソースの取得のインターフェース。
// source.Processorを抽象化してテスタビリティを向上させる。
type SourceProcessor interface {
	VideoInfo(ctx context.Context, rawURL string) (*model.VideoInfo, error)
	Transcript(ctx context.Context, rawURL, lang string) (*model.Transcript, error)
}

// Service はドキュメント生成のビジネスロジックを提供する。
type Service struct {
	source SourceProcessor
	logger *slog.Logger

	// now はテストで時刻を注入するためのフック。
	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(source SourceProcessor, logger *slog.Logger) *Service {
	return &Service{
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Generate はソースURLからMarkdown形式のドキュメントを生成する。
// トランスクリプトが存在しない動画では、基本情報のみのドキュメントを生成する。
func (s *Service) Generate(ctx context.Context, sourceURL, language string) (*model.Document, error) {
	info, err := s.source.VideoInfo(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	transcript, err := s.source.Transcript(ctx, sourceURL, language)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTranscriptNotFound {
			return nil, err
		}
		// トランスクリプトなしは致命的ではない
		s.logger.Info("transcript not available, generating info-only document",
			slog.String("video_id", info.VideoID),
		)
		transcript = nil
	}

	doc := &model.Document{
		ID:          uuid.New().String(),
		Title:       info.Title,
		SourceURL:   sourceURL,
		Content:     renderMarkdown(info, transcript),
		GeneratedAt: s.now(),
	}

	s.logger.Info("document generated",
		slog.String("document_id", doc.ID),
		slog.String("video_id", info.VideoID),
		slog.Bool("has_transcript", transcript != nil),
	)

	return doc, nil
}

// renderMarkdown は動画情報とトランスクリプトからMarkdownドキュメントを構築する。
func renderMarkdown(info *model.VideoInfo, transcript *model.Transcript) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", info.Title)
	fmt.Fprintf(&b, "- ソース: %s\n", info.URL)
	if info.DurationSeconds > 0 {
		fmt.Fprintf(&b, "- 再生時間: %s\n", formatDuration(info.DurationSeconds))
	}
	fmt.Fprintf(&b, "- サムネイル: %s\n", info.ThumbnailURL)
	b.WriteString("\n")

	if info.Description != "" {
		b.WriteString("## 概要\n\n")
		b.WriteString(info.Description)
		b.WriteString("\n\n")
	}

	b.WriteString("## トランスクリプト\n\n")
	if transcript == nil || transcript.FullText == "" {
		b.WriteString("この動画にはトランスクリプトがありません。\n")
		return b.String()
	}

	for _, seg := range transcript.Segments {
		fmt.Fprintf(&b, "**[%s]** %s\n\n", formatTimestamp(seg.Start), seg.Text)
	}

	return b.String()
}

// formatDuration は秒数をH:MM:SSまたはM:SS形式に整形する。
func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatTimestamp はトランスクリプト区間の開始秒をM:SS形式に整形する。
func formatTimestamp(start float64) string {
	total := int(start)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
