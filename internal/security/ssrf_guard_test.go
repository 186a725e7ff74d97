package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_AppliesTimeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 5 * time.Second

	client := guard.NewSafeClient(timeout, 5*1024*1024)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != timeout {
		t.Errorf("Timeout = %v, want %v", client.Timeout, timeout)
	}
}

// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewSafeClient_UsesCustomTransport(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(5*time.Second, 5*1024*1024)
	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second, 5*1024*1024)

	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL_PublicURL_Passes(t *testing.T) {
	guard := NewSSRFGuard()

	publicURLs := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"http://example.com/video",
	}
	for _, u := range publicURLs {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
			}
		})
	}
}

func TestValidateURL_DangerousURL_Rejected(t *testing.T) {
	guard := NewSSRFGuard()

	cases := []struct {
		name   string
		rawURL string
	}{
		{"空URL", ""},
		{"スキームなし", "www.youtube.com/watch?v=abc"},
		{"fileスキーム", "file:///etc/passwd"},
		{"ftpスキーム", "ftp://example.com/file"},
		{"localhost", "http://localhost:8080/admin"},
		{"ループバックIP", "http://127.0.0.1/admin"},
		{"プライベートIP 10系", "http://10.0.0.5/internal"},
		{"プライベートIP 172系", "http://172.16.0.1/internal"},
		{"プライベートIP 192系", "http://192.168.1.1/router"},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"IPv6ループバック", "http://[::1]/admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := guard.ValidateURL(tc.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tc.rawURL)
			}
		})
	}
}
