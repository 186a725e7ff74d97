package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/docgate/internal/model"
)

const (
	watchURLFormat     = "https://www.youtube.com/watch?v=%s"
	timedTextURLFormat = "https://www.youtube.com/api/timedtext?lang=%s&v=%s"
	trackListURLFormat = "https://www.youtube.com/api/timedtext?type=list&v=%s"
	thumbnailURLFormat = "https://img.youtube.com/vi/%s/maxresdefault.jpg"

	// userAgent はフェッチ時のUser-Agent。
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// watchページのプレイヤーデータからメタデータを抽出する正規表現。
var (
	titlePattern       = regexp.MustCompile(`"title":"([^"]+)"`)
	descriptionPattern = regexp.MustCompile(`"shortDescription":"([^"]+)"`)
	durationPattern    = regexp.MustCompile(`"lengthSeconds":"(\d+)"`)
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Sanitizer はスクレイピングしたテキストのサニタイズのインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Processor はYouTube動画の情報取得とトランスクリプト取得を行う。
type Processor struct {
	ssrfGuard   SSRFValidator
	sanitizer   Sanitizer
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64

	// pacer は外部APIへのアクセス頻度を制御する。
	pacer *rate.Limiter

	// client はテストでHTTPクライアントを注入するためのフック。
	// nilの場合はSSRF防止付きクライアントを使用する。
	client *http.Client
}

// NewProcessor はProcessorの新しいインスタンスを生成する。
func NewProcessor(
	ssrfGuard SSRFValidator,
	sanitizer Sanitizer,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Processor {
	return &Processor{
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		// 1リクエストあたり200ms間隔、バースト3まで許容
		pacer: rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
	}
}

// VideoInfo は動画URLから基本情報を取得する。
// watchページをスクレイピングし、プレイヤーデータからタイトル・説明・
// 再生時間を抽出する。抽出に失敗した場合はOpen Graphメタデータに
// フォールバックする。
func (p *Processor) VideoInfo(ctx context.Context, rawURL string) (*model.VideoInfo, error) {
	videoID := ExtractVideoID(rawURL)
	if videoID == "" {
		return nil, model.NewInvalidURLError("YouTube動画のURLとして認識できません")
	}

	body, err := p.fetch(ctx, fmt.Sprintf(watchURLFormat, videoID))
	if err != nil {
		return nil, err
	}

	page := string(body)

	title := extractJSONField(page, titlePattern)
	description := extractJSONField(page, descriptionPattern)

	duration := 0
	if m := durationPattern.FindStringSubmatch(page); m != nil {
		duration, _ = strconv.Atoi(m[1])
	}

	// プレイヤーデータから取れなかった場合はOpen Graphメタデータを使用
	if title == "" || description == "" {
		meta := parsePageMeta(body)
		if title == "" {
			title = meta.Title
		}
		if description == "" {
			description = meta.Description
		}
	}
	if title == "" {
		title = "Unknown Title"
	}

	return &model.VideoInfo{
		VideoID:         videoID,
		Title:           p.sanitizer.Sanitize(title),
		Description:     p.sanitizer.Sanitize(description),
		DurationSeconds: duration,
		URL:             rawURL,
		ThumbnailURL:    fmt.Sprintf(thumbnailURLFormat, videoID),
	}, nil
}

// trackList は字幕トラック一覧XMLのドキュメント構造。
type trackList struct {
	Tracks []struct {
		LangCode string `xml:"lang_code,attr"`
		Name     string `xml:"name,attr"`
	} `xml:"track"`
}

// ListCaptionTracks は動画で利用可能な字幕トラックの一覧を取得する。
// 字幕が存在しない場合は空のスライスを返す。
func (p *Processor) ListCaptionTracks(ctx context.Context, videoID string) ([]model.CaptionTrack, error) {
	body, err := p.fetch(ctx, fmt.Sprintf(trackListURLFormat, videoID))
	if err != nil {
		return nil, err
	}

	var list trackList
	if err := xml.Unmarshal(body, &list); err != nil {
		p.logger.Warn("failed to parse caption track list",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	tracks := make([]model.CaptionTrack, 0, len(list.Tracks))
	for _, t := range list.Tracks {
		langCode := t.LangCode
		if langCode == "" {
			langCode = "en"
		}
		name := t.Name
		if name == "" {
			name = langCode
		}
		tracks = append(tracks, model.CaptionTrack{
			LangCode: langCode,
			Name:     name,
			URL:      fmt.Sprintf(timedTextURLFormat, langCode, videoID),
		})
	}
	return tracks, nil
}

// timedText はトランスクリプトXMLのドキュメント構造。
type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// Transcript は動画のトランスクリプトを取得する。
// 指定言語の字幕が存在しない場合はTRANSCRIPT_NOT_FOUNDエラーを返す。
func (p *Processor) Transcript(ctx context.Context, rawURL, lang string) (*model.Transcript, error) {
	videoID := ExtractVideoID(rawURL)
	if videoID == "" {
		return nil, model.NewInvalidURLError("YouTube動画のURLとして認識できません")
	}
	if lang == "" {
		lang = "en"
	}

	body, err := p.fetch(ctx, fmt.Sprintf(timedTextURLFormat, lang, videoID))
	if err != nil {
		return nil, err
	}

	// 字幕なしの動画ではAPIが空ボディを返す
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, model.NewTranscriptNotFoundError(videoID)
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, model.NewTranscriptNotFoundError(videoID)
	}
	if len(doc.Texts) == 0 {
		return nil, model.NewTranscriptNotFoundError(videoID)
	}

	segments := make([]model.TranscriptSegment, 0, len(doc.Texts))
	fullText := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := p.sanitizer.Sanitize(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		segments = append(segments, model.TranscriptSegment{
			Start:    t.Start,
			Duration: t.Dur,
			Text:     text,
		})
		fullText = append(fullText, text)
	}

	return &model.Transcript{
		VideoID:  videoID,
		Language: lang,
		Segments: segments,
		FullText: strings.Join(fullText, " "),
	}, nil
}

// fetch はSSRF検証付きでURLをGETし、ボディを返す。
// 外部サイトへの負荷を抑えるため、呼び出し間隔はpacerで制御される。
func (p *Processor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := p.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch cancelled: %w", err)
	}

	if err := p.ssrfGuard.ValidateURL(rawURL); err != nil {
		p.logger.Warn("SSRF検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSSRFBlockedError()
	}

	client := p.client
	if client == nil {
		client = p.ssrfGuard.NewSafeClient(p.timeout, p.maxBodySize)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		p.logger.Error("HTTPリクエストに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFetchFailedError("接続に失敗しました")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return nil, model.NewFetchFailedError("レスポンスの読み取りに失敗しました")
	}
	return body, nil
}

// extractJSONField はページ本文からJSON文字列フィールドを抽出し、
// エスケープシーケンス（\uXXXX、\n等）を復元して返す。
func extractJSONField(page string, pattern *regexp.Regexp) string {
	m := pattern.FindStringSubmatch(page)
	if m == nil {
		return ""
	}
	var decoded string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &decoded); err != nil {
		// 不正なエスケープを含む場合は生の値を使用
		return m[1]
	}
	return decoded
}
