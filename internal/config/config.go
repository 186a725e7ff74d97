// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// デプロイメントティアごとのセッション有効期間（秒）。
// 無料ティアはリソース制約があるため短い有効期間を採用する。
const (
	sessionTimeoutFreeTier     = 3600
	sessionTimeoutStandardTier = 86400
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Auth
	EnableAuth     bool
	AuthProvider   string
	AllowedUsers   []string
	AdminUsers     []string
	SessionTimeout int // セッション有効期間（秒）

	// Rate Limit
	RateLimitPerMin int

	// Transport
	RequireHTTPS bool

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// AUTH_PROVIDERがサポート外の値の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.EnableAuth = getEnvBool("ENABLE_AUTH", true)

	cfg.AuthProvider = getEnvString("AUTH_PROVIDER", "simple")
	if cfg.AuthProvider != "simple" {
		return nil, fmt.Errorf("unsupported AUTH_PROVIDER: %s (supported: simple)", cfg.AuthProvider)
	}

	cfg.AllowedUsers = parseEmailList(os.Getenv("ALLOWED_USERS"))
	cfg.AdminUsers = parseEmailList(os.Getenv("ADMIN_USERS"))

	// セッション有効期間: デプロイメントティアから導出し、SESSION_TIMEOUTで上書き可能
	tierDefault := sessionTimeoutStandardTier
	if strings.EqualFold(getEnvString("DEPLOYMENT_TIER", "standard"), "free") {
		tierDefault = sessionTimeoutFreeTier
	}
	cfg.SessionTimeout = getEnvInt("SESSION_TIMEOUT", tierDefault)
	if cfg.SessionTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_TIMEOUT must be positive: %d", cfg.SessionTimeout)
	}

	cfg.RateLimitPerMin = getEnvInt("RATE_LIMIT_PER_MIN", 60)
	if cfg.RateLimitPerMin <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MIN must be positive: %d", cfg.RateLimitPerMin)
	}

	cfg.RequireHTTPS = getEnvBool("REQUIRE_HTTPS", false)

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// parseEmailList はカンマ区切りのメールアドレスリストをパースする。
// 各要素は前後の空白を除去し、小文字に正規化する。空要素は除外する。
func parseEmailList(raw string) []string {
	if raw == "" {
		return nil
	}
	var emails []string
	for _, part := range strings.Split(raw, ",") {
		email := strings.ToLower(strings.TrimSpace(part))
		if email != "" {
			emails = append(emails, email)
		}
	}
	return emails
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
