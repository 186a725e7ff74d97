package model

import "time"

// VideoInfo は動画ソースから取得した基本情報を表す。
type VideoInfo struct {
	VideoID         string `json:"video_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds"`
	URL             string `json:"url"`
	ThumbnailURL    string `json:"thumbnail_url"`
}

// CaptionTrack は動画で利用可能な字幕トラックを表す。
type CaptionTrack struct {
	LangCode string `json:"lang_code"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

// TranscriptSegment はトランスクリプトの1区間を表す。
type TranscriptSegment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// Transcript は動画のトランスクリプト全体を表す。
type Transcript struct {
	VideoID  string              `json:"video_id"`
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
	FullText string              `json:"full_text"`
}

// Document はソースURLから生成された整形済みドキュメントを表す。
// オンデマンドで生成され、永続化されない。
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SourceURL   string    `json:"source_url"`
	Content     string    `json:"content"` // Markdown形式
	GeneratedAt time.Time `json:"generated_at"`
}
