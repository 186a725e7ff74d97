package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/docgate/internal/model"
)

// --- モック定義 ---

type mockSSRFValidator struct {
	validateURLFn func(rawURL string) error
}

func (m *mockSSRFValidator) ValidateURL(rawURL string) error {
	if m.validateURLFn != nil {
		return m.validateURLFn(rawURL)
	}
	return nil
}

func (m *mockSSRFValidator) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

// passthroughSanitizer はサニタイズをせず前後の空白のみ除去する。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(raw)
}

// cannedTransport はURLごとに固定レスポンスを返すRoundTripper。
type cannedTransport struct {
	responses map[string]cannedResponse
	requests  []string
}

type cannedResponse struct {
	status int
	body   string
}

func (c *cannedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.requests = append(c.requests, req.URL.String())
	canned, ok := c.responses[req.URL.String()]
	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     make(http.Header),
		}, nil
	}
	return &http.Response{
		StatusCode: canned.status,
		Body:       io.NopCloser(strings.NewReader(canned.body)),
		Header:     make(http.Header),
	}, nil
}

// --- ヘルパー ---

func newTestProcessor(transport *cannedTransport) *Processor {
	p := NewProcessor(
		&mockSSRFValidator{},
		passthroughSanitizer{},
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
		5*time.Second,
		1<<20,
	)
	if transport != nil {
		p.client = &http.Client{Transport: transport}
	}
	return p
}

func assertErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", wantCode)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, wantCode)
	}
}

const watchPageWithPlayerData = `<html><head><title>ignored</title></head><body>
var ytInitialPlayerResponse = {"videoDetails":{"title":"Learning Go & Testing","shortDescription":"First line.\nSecond line.","lengthSeconds":"754"}};
</body></html>`

const watchPageWithoutPlayerData = `<html><head>
<meta property="og:title" content="Fallback Title">
<meta property="og:description" content="Fallback description">
</head><body></body></html>`

// --- テスト ---

func TestVideoInfo_PlayerData_ExtractsMetadata(t *testing.T) {
	transport := &cannedTransport{responses: map[string]cannedResponse{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": {status: 200, body: watchPageWithPlayerData},
	}}
	p := newTestProcessor(transport)

	info, err := p.VideoInfo(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if info.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("VideoID = %q, want %q", info.VideoID, "dQw4w9WgXcQ")
	}
	// & はJSONエスケープ復元で & になる
	if info.Title != "Learning Go & Testing" {
		t.Errorf("Title = %q, want %q", info.Title, "Learning Go & Testing")
	}
	if !strings.Contains(info.Description, "First line.") {
		t.Errorf("Description = %q, want it to contain %q", info.Description, "First line.")
	}
	if info.DurationSeconds != 754 {
		t.Errorf("DurationSeconds = %d, want 754", info.DurationSeconds)
	}
	if info.ThumbnailURL != "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg" {
		t.Errorf("ThumbnailURL = %q", info.ThumbnailURL)
	}
}

func TestVideoInfo_NoPlayerData_FallsBackToMeta(t *testing.T) {
	transport := &cannedTransport{responses: map[string]cannedResponse{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": {status: 200, body: watchPageWithoutPlayerData},
	}}
	p := newTestProcessor(transport)

	info, err := p.VideoInfo(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if info.Title != "Fallback Title" {
		t.Errorf("Title = %q, want %q", info.Title, "Fallback Title")
	}
	if info.Description != "Fallback description" {
		t.Errorf("Description = %q, want %q", info.Description, "Fallback description")
	}
}

func TestVideoInfo_NoMetadataAtAll_UsesUnknownTitle(t *testing.T) {
	transport := &cannedTransport{responses: map[string]cannedResponse{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": {status: 200, body: "<html><head></head><body></body></html>"},
	}}
	p := newTestProcessor(transport)

	info, err := p.VideoInfo(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if info.Title != "Unknown Title" {
		t.Errorf("Title = %q, want %q", info.Title, "Unknown Title")
	}
}

func TestVideoInfo_UnrecognizedURL_ReturnsInvalidURL(t *testing.T) {
	p := newTestProcessor(nil)

	_, err := p.VideoInfo(context.Background(), "https://example.com/video")
	assertErrorCode(t, err, model.ErrCodeInvalidURL)
}

func TestVideoInfo_SSRFValidationFails_ReturnsSSRFBlocked(t *testing.T) {
	p := newTestProcessor(&cannedTransport{})
	p.ssrfGuard = &mockSSRFValidator{
		validateURLFn: func(rawURL string) error {
			return errors.New("private ip")
		},
	}

	_, err := p.VideoInfo(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assertErrorCode(t, err, model.ErrCodeSSRFBlocked)
}

func TestVideoInfo_Non200Response_ReturnsFetchFailed(t *testing.T) {
	transport := &cannedTransport{responses: map[string]cannedResponse{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": {status: 503, body: ""},
	}}
	p := newTestProcessor(transport)

	_, err := p.VideoInfo(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assertErrorCode(t, err, model.ErrCodeFetchFailed)
}

func TestListCaptionTracks_ParsesTrackList(t *testing.T) {
	trackListXML := `<?xml version="1.0" encoding="utf-8"?>
<transcript_list>
<track id="0" name="日本語" lang_code="ja"/>
<track id="1" name="" lang_code="en"/>
</transcript_list>`
	transport := &cannedTransport{responses: map[string]cannedResponse{
		"https://www.youtube.com/api/timedtext?type=list&v=dQw4w9WgXcQ": {status: 200, body: trackListXML},
	}}
	p := newTestProcessor(transport)

	tracks, err := p.ListCaptionTracks(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("len(tracks) = %d, want 2", len(tracks))
	}
	if tracks[0].LangCode != "ja" || tracks[0].Name != "日本語" {
		t.Errorf("tracks[0] = %+v", tracks[0])
	}
	// 名前が空の場合は言語コードを名前として使用
	if tracks[1].Name != "en" {
		t.Errorf("tracks[1].Name = %q, want %q", tracks[1].Name, "en")
	}
	if !strings.Contains(tracks[1].URL, "lang=en") {
		t.Errorf("tracks[1].URL = %q, want it to contain lang=en", tracks[1].URL)
	}
}

func TestListCaptionTracks_MalformedXML_ReturnsNil(t *testing.T) {
	transport := &cannedTransport{responses: map[string]cannedResponse{
		"https://www.youtube.com/api/timedtext?type=list&v=dQw4w9WgXcQ": {status: 200, body: "<not-closed"},
	}}
	p := newTestProcessor(transport)

	tracks, err := p.ListCaptionTracks(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tracks != nil {
		t.Errorf("tracks = %v, want nil", tracks)
	}
}

func TestTranscript_ParsesTimedText(t *testing.T) {
	timedTextXML := `<?xml version="1.0" encoding="utf-8"?>
<transcript>
<text start="0.0" dur="2.5">Hello &amp;amp; welcome</text>
<text start="2.5" dur="3.0">to the show</text>
<text start="5.5" dur="1.0">   </text>
</transcript>`
	transport := &cannedTransport{responses: map[string]cannedResponse{
		"https://www.youtube.com/api/timedtext?lang=en&v=dQw4w9WgXcQ": {status: 200, body: timedTextXML},
	}}
	p := newTestProcessor(transport)

	tr, err := p.Transcript(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "en")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tr.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("VideoID = %q", tr.VideoID)
	}
	if tr.Language != "en" {
		t.Errorf("Language = %q, want %q", tr.Language, "en")
	}
	// 空白のみのセグメントは除外される
	if len(tr.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(tr.Segments))
	}
	// XMLとHTMLの二重エスケープが復元される
	if tr.Segments[0].Text != "Hello & welcome" {
		t.Errorf("Segments[0].Text = %q, want %q", tr.Segments[0].Text, "Hello & welcome")
	}
	if tr.Segments[0].Start != 0.0 || tr.Segments[0].Duration != 2.5 {
		t.Errorf("Segments[0] timing = %+v", tr.Segments[0])
	}
	if tr.FullText != "Hello & welcome to the show" {
		t.Errorf("FullText = %q", tr.FullText)
	}
}

func TestTranscript_EmptyBody_ReturnsTranscriptNotFound(t *testing.T) {
	transport := &cannedTransport{responses: map[string]cannedResponse{
		"https://www.youtube.com/api/timedtext?lang=en&v=dQw4w9WgXcQ": {status: 200, body: "  "},
	}}
	p := newTestProcessor(transport)

	_, err := p.Transcript(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "")
	assertErrorCode(t, err, model.ErrCodeTranscriptNotFound)
}

func TestTranscript_NoTextElements_ReturnsTranscriptNotFound(t *testing.T) {
	transport := &cannedTransport{responses: map[string]cannedResponse{
		"https://www.youtube.com/api/timedtext?lang=en&v=dQw4w9WgXcQ": {status: 200, body: "<transcript></transcript>"},
	}}
	p := newTestProcessor(transport)

	_, err := p.Transcript(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "en")
	assertErrorCode(t, err, model.ErrCodeTranscriptNotFound)
}

func TestTranscript_DefaultsToEnglish(t *testing.T) {
	transport := &cannedTransport{responses: map[string]cannedResponse{}}
	p := newTestProcessor(transport)

	p.Transcript(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "")

	if len(transport.requests) != 1 {
		t.Fatalf("requests = %v, want 1 request", transport.requests)
	}
	if !strings.Contains(transport.requests[0], "lang=en") {
		t.Errorf("request URL = %q, want it to contain lang=en", transport.requests[0])
	}
}

func TestFetch_SetsUserAgent(t *testing.T) {
	var gotUA string
	transport := &cannedTransport{responses: map[string]cannedResponse{}}
	p := newTestProcessor(nil)
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotUA = req.Header.Get("User-Agent")
		return transport.RoundTrip(req)
	})}

	p.fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")

	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Errorf("User-Agent = %q, want a browser-like value", gotUA)
	}
}

// roundTripFunc は関数をRoundTripperとして使うためのアダプター。
type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
