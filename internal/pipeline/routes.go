// Package pipeline はリクエスト認可パイプラインを提供する。
//
// 1リクエストごとに トランスポート検査 → 認証 → 認可 → レート制限 →
// 下流ハンドラーへの委譲 → メトリクス送信 の固定順ステージを実行する。
// 各ステージは最終レスポンスを生成してパイプラインを打ち切ることができる
// （ショートサーキット）。全ステージを通過した場合のみ下流に到達する。
package pipeline

import "strings"

// Routes はパスの分類ルールを保持する。パイプラインの外部コラボレーターであり、
// どのパスが公開・管理者専用・静的かはパイプライン自身ではなく設定が決める。
type Routes struct {
	// PublicPaths は認証不要のパス（完全一致）。
	PublicPaths []string
	// PublicPrefixes は認証不要のパスプレフィックス。
	PublicPrefixes []string
	// AdminPrefixes は管理者ロールを必須とするパスプレフィックス。
	AdminPrefixes []string
	// StaticPrefixes はレート制限をバイパスする静的アセットのプレフィックス。
	StaticPrefixes []string
	// APIPrefixes はエラーをJSONで返すAPI形状のパスプレフィックス。
	APIPrefixes []string
	// LoginPath は未認証のページリクエストをリダイレクトするログインページ。
	LoginPath string
}

// DefaultRoutes はこのサービスの標準的なパス分類を返す。
func DefaultRoutes() Routes {
	return Routes{
		PublicPaths:    []string{"/", "/healthz", "/metrics", "/login"},
		PublicPrefixes: []string{"/auth/", "/static/"},
		AdminPrefixes:  []string{"/api/admin/"},
		StaticPrefixes: []string{"/static/"},
		APIPrefixes:    []string{"/api/", "/auth/"},
		LoginPath:      "/login",
	}
}

// IsPublic はパスが認証不要かを返す。
func (rt Routes) IsPublic(path string) bool {
	for _, p := range rt.PublicPaths {
		if path == p {
			return true
		}
	}
	return hasAnyPrefix(path, rt.PublicPrefixes)
}

// IsAdminOnly はパスが管理者専用かを返す。
func (rt Routes) IsAdminOnly(path string) bool {
	return hasAnyPrefix(path, rt.AdminPrefixes)
}

// IsStatic はパスが静的アセットかを返す。
func (rt Routes) IsStatic(path string) bool {
	return hasAnyPrefix(path, rt.StaticPrefixes)
}

// IsAPI はパスがAPI形状（エラーをJSONで返す）かを返す。
func (rt Routes) IsAPI(path string) bool {
	return hasAnyPrefix(path, rt.APIPrefixes)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
