package document

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/docgate/internal/model"
)

// --- モック定義 ---

type mockSourceProcessor struct {
	videoInfoFn  func(ctx context.Context, rawURL string) (*model.VideoInfo, error)
	transcriptFn func(ctx context.Context, rawURL, lang string) (*model.Transcript, error)
}

func (m *mockSourceProcessor) VideoInfo(ctx context.Context, rawURL string) (*model.VideoInfo, error) {
	return m.videoInfoFn(ctx, rawURL)
}

func (m *mockSourceProcessor) Transcript(ctx context.Context, rawURL, lang string) (*model.Transcript, error) {
	return m.transcriptFn(ctx, rawURL, lang)
}

// --- ヘルパー ---

func newTestService(source SourceProcessor) *Service {
	svc := NewService(source, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	svc.now = func() time.Time {
		return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func testVideoInfo() *model.VideoInfo {
	return &model.VideoInfo{
		VideoID:         "dQw4w9WgXcQ",
		Title:           "テスト動画",
		Description:     "説明文です。",
		DurationSeconds: 3725,
		URL:             "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		ThumbnailURL:    "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg",
	}
}

func testTranscript() *model.Transcript {
	return &model.Transcript{
		VideoID:  "dQw4w9WgXcQ",
		Language: "ja",
		Segments: []model.TranscriptSegment{
			{Start: 0, Duration: 2.5, Text: "こんにちは"},
			{Start: 75, Duration: 3.0, Text: "本編です"},
		},
		FullText: "こんにちは 本編です",
	}
}

// --- テスト ---

func TestGenerate_WithTranscript_RendersFullDocument(t *testing.T) {
	source := &mockSourceProcessor{
		videoInfoFn: func(ctx context.Context, rawURL string) (*model.VideoInfo, error) {
			return testVideoInfo(), nil
		},
		transcriptFn: func(ctx context.Context, rawURL, lang string) (*model.Transcript, error) {
			return testTranscript(), nil
		},
	}
	svc := newTestService(source)

	doc, err := svc.Generate(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "ja")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if doc.ID == "" {
		t.Error("ID should not be empty")
	}
	if doc.Title != "テスト動画" {
		t.Errorf("Title = %q, want %q", doc.Title, "テスト動画")
	}
	if doc.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set")
	}

	content := doc.Content
	if !strings.HasPrefix(content, "# テスト動画\n") {
		t.Errorf("content should start with the title heading, got %q", content[:min(len(content), 40)])
	}
	// 3725秒 = 1:02:05
	if !strings.Contains(content, "再生時間: 1:02:05") {
		t.Errorf("content should contain formatted duration, got:\n%s", content)
	}
	if !strings.Contains(content, "## 概要") {
		t.Error("content should contain the description section")
	}
	if !strings.Contains(content, "**[0:00]** こんにちは") {
		t.Errorf("content should contain the first timestamped segment, got:\n%s", content)
	}
	if !strings.Contains(content, "**[1:15]** 本編です") {
		t.Errorf("content should contain the second timestamped segment, got:\n%s", content)
	}
}

func TestGenerate_TranscriptNotFound_GeneratesInfoOnlyDocument(t *testing.T) {
	source := &mockSourceProcessor{
		videoInfoFn: func(ctx context.Context, rawURL string) (*model.VideoInfo, error) {
			return testVideoInfo(), nil
		},
		transcriptFn: func(ctx context.Context, rawURL, lang string) (*model.Transcript, error) {
			return nil, model.NewTranscriptNotFoundError("dQw4w9WgXcQ")
		},
	}
	svc := newTestService(source)

	doc, err := svc.Generate(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "ja")
	if err != nil {
		t.Fatalf("transcript absence should not fail generation, got %v", err)
	}
	if !strings.Contains(doc.Content, "この動画にはトランスクリプトがありません。") {
		t.Errorf("content should note the missing transcript, got:\n%s", doc.Content)
	}
}

func TestGenerate_VideoInfoFails_ReturnsError(t *testing.T) {
	source := &mockSourceProcessor{
		videoInfoFn: func(ctx context.Context, rawURL string) (*model.VideoInfo, error) {
			return nil, model.NewFetchFailedError("timeout")
		},
	}
	svc := newTestService(source)

	_, err := svc.Generate(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFetchFailed {
		t.Errorf("error = %v, want FETCH_FAILED", err)
	}
}

func TestGenerate_TranscriptFetchFails_ReturnsError(t *testing.T) {
	// トランスクリプト不在以外のエラーは伝播する
	source := &mockSourceProcessor{
		videoInfoFn: func(ctx context.Context, rawURL string) (*model.VideoInfo, error) {
			return testVideoInfo(), nil
		},
		transcriptFn: func(ctx context.Context, rawURL, lang string) (*model.Transcript, error) {
			return nil, model.NewSSRFBlockedError()
		},
	}
	svc := newTestService(source)

	_, err := svc.Generate(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSSRFBlocked {
		t.Errorf("error = %v, want SSRF_BLOCKED", err)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{45, "0:45"},
		{75, "1:15"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.seconds); got != tc.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
