package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/docgate/internal/pipeline"
)

// loginPageHTML は未認証のページリクエストがリダイレクトされる簡易ログインページ。
const loginPageHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Login - Document Generator</title></head>
<body>
<h1>Document Generator</h1>
<form id="login">
  <input type="email" name="email" placeholder="you@example.com" required>
  <button type="submit">Login</button>
</form>
<script>
document.getElementById("login").addEventListener("submit", async (e) => {
  e.preventDefault();
  const email = new FormData(e.target).get("email");
  const res = await fetch("/auth/login", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({email}),
  });
  if (res.ok) {
    const params = new URLSearchParams(location.search);
    location.href = params.get("redirect") || "/";
  } else {
    const body = await res.json();
    alert(body.message);
  }
});
</script>
</body>
</html>
`

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// パイプラインとミドルウェア
	Pipeline          *pipeline.Pipeline
	CORSAllowedOrigin string

	// 認証
	AuthPolicy Authenticator
	Sessions   SessionManager
	AuthConfig AuthHandlerConfig

	// ドキュメント生成
	Documents DocumentGenerator
	Videos    VideoInfoProvider

	// 診断
	SessionStats   SessionStatsProvider
	RateBuckets    BucketCounter
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングを構成し、
// 認可パイプラインとCORSで包んだハンドラーを返す。
//
// 実行順序: CORS → パイプライン（トランスポート → 認証 → 認可 → レート制限）→ ルーター
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	authHandler := NewAuthHandler(deps.AuthPolicy, deps.Sessions, deps.AuthConfig)
	docHandler := NewDocumentHandler(deps.Documents, deps.Videos)
	adminHandler := NewAdminHandler(deps.SessionStats, deps.RateBuckets)

	// 認証ルート（パイプラインの公開パス）
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/status", authHandler.Status)
	})

	// ドキュメント生成API（認証必須）
	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", docHandler.Generate)
		r.Get("/videos/info", docHandler.VideoInfo)
		r.Get("/videos/captions", docHandler.CaptionTracks)

		// 管理者専用（ロール強制はパイプラインの認可ステージ）
		r.Get("/admin/stats", adminHandler.Stats)
	})

	// 公開ルート
	r.Get("/healthz", handleHealthz)
	r.Get("/login", handleLoginPage)
	r.Get("/", handleIndex)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 全ルートをパイプラインで包み、CORSを最上位に適用する
	wrapped := deps.Pipeline.Wrap(r)
	return pipeline.CORS(deps.CORSAllowedOrigin)(wrapped)
}

// handleHealthz はヘルスチェックに応答する。
// GET /healthz
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLoginPage は簡易ログインページを返す。
// GET /login
func handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(loginPageHTML))
}

// handleIndex はルートパスをログインページにリダイレクトする。
// GET /
func handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}
