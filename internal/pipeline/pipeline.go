package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/docgate/internal/metrics"
	"github.com/hitoshi/docgate/internal/model"
	"github.com/hitoshi/docgate/internal/ratelimit"
)

// sessionCookieName はセッショントークンを運ぶCookieの名前。
const sessionCookieName = "session"

// Stage はパイプラインの処理ステージを表す。
type Stage int

const (
	// StageTransport はトランスポート検査ステージ。
	StageTransport Stage = iota
	// StageAuthn は認証ステージ。
	StageAuthn
	// StageAuthz は認可ステージ。
	StageAuthz
	// StageRateLimit はレート制限ステージ。
	StageRateLimit
	// StageDispatch は下流ハンドラーへの委譲ステージ。
	StageDispatch
)

// String はステージ名を返す。
func (s Stage) String() string {
	switch s {
	case StageTransport:
		return "transport"
	case StageAuthn:
		return "authn"
	case StageAuthz:
		return "authz"
	case StageRateLimit:
		return "ratelimit"
	case StageDispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

// SessionResolver は認証ステージが必要とするセッション操作のインターフェース。
// session.Storeの部分集合として定義する。
type SessionResolver interface {
	Validate(token string) *model.AuthSession
	Extend(token string) bool
}

// RoleChecker は認可ステージが必要とするロール判定のインターフェース。
type RoleChecker interface {
	IsAdmin(sess *model.AuthSession) bool
}

// Admitter はレート制限ステージが必要とする判定のインターフェース。
type Admitter interface {
	Admit(client string) ratelimit.Decision
}

// Config はパイプラインの設定。
type Config struct {
	Routes       Routes
	AuthEnabled  bool
	RequireHTTPS bool
}

// Pipeline はリクエストごとの認可ステージを固定順で実行する。
// ステージ順序は変更してはならない: 認証に失敗したリクエストが
// レート制限カウンターを消費することはなく、その逆もない。
type Pipeline struct {
	config   Config
	sessions SessionResolver
	roles    RoleChecker
	limiter  Admitter
	sink     metrics.Sink
	logger   *slog.Logger

	// observer は各ステージ到達時に呼ばれるフック。テスト計測用。nil可。
	observer func(Stage)
}

// New はPipelineを生成する。
func New(
	config Config,
	sessions SessionResolver,
	roles RoleChecker,
	limiter Admitter,
	sink metrics.Sink,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		config:   config,
		sessions: sessions,
		roles:    roles,
		limiter:  limiter,
		sink:     sink,
		logger:   logger,
	}
}

// SetStageObserver はステージ到達フックを設定する。テスト計測用。
func (p *Pipeline) SetStageObserver(fn func(Stage)) {
	p.observer = fn
}

// Wrap は下流ハンドラーをパイプラインで包んだhttp.Handlerを返す。
// ホスティング側のWebフレームワークからリクエストごとのフックとして消費される。
func (p *Pipeline) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		// ベースラインのセキュリティヘッダーはショートサーキットを含む
		// すべてのレスポンスに付与する
		applySecurityHeaders(rec.Header())

		var userID string

		defer func() {
			// ステージ内の未捕捉の障害はここで500に変換する。
			// 元の障害詳細はログとメトリクスのみに記録し、クライアントには返さない。
			if recov := recover(); recov != nil {
				stack := string(debug.Stack())
				p.logger.Error("panic recovered in request pipeline",
					slog.Any("panic", recov),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", stack),
				)
				p.sink.RecordError(fmt.Sprintf("%v", recov), stack, r.URL.Path)
				if !rec.written {
					WriteInternalServerError(rec)
				}
			}
			p.emit(r, rec.statusCode, time.Since(start), userID)
		}()

		path := r.URL.Path

		// ステージ1: トランスポート検査
		p.observe(StageTransport)
		if !isEncrypted(r) {
			if p.config.RequireHTTPS {
				target := "https://" + r.Host + r.URL.RequestURI()
				http.Redirect(rec, r, target, http.StatusPermanentRedirect)
				return
			}
			p.logger.Warn("unencrypted connection accepted",
				slog.String("path", path),
			)
		}

		// ステージ2: 認証 / ステージ3: 認可
		// 公開パスと認証無効モードでは両ステージをスキップする
		if p.config.AuthEnabled && !p.config.Routes.IsPublic(path) {
			p.observe(StageAuthn)

			sess := p.resolveSession(r)
			if sess == nil {
				p.shortCircuitUnauthenticated(rec, r)
				return
			}

			// アクティビティのあるセッションは有効期限を延長する
			p.sessions.Extend(sess.Token)

			userID = sess.UserID
			r = r.WithContext(ContextWithSession(r.Context(), sess))

			p.observe(StageAuthz)
			if p.config.Routes.IsAdminOnly(path) && !p.roles.IsAdmin(sess) {
				if p.config.Routes.IsAPI(path) {
					WriteErrorResponse(rec, http.StatusForbidden, model.NewAdminRequiredError())
				} else {
					http.Error(rec, "forbidden", http.StatusForbidden)
				}
				return
			}
		}

		// ステージ4: レート制限（静的アセットはバイパス）
		if !p.config.Routes.IsStatic(path) {
			p.observe(StageRateLimit)

			decision := p.limiter.Admit(clientIdentifier(r))
			rec.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			rec.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				retryAfterSec := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfterSec < 1 {
					retryAfterSec = 1
				}
				rec.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
				rec.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
				p.logger.Warn("rate limit exceeded",
					slog.String("client", clientIdentifier(r)),
					slog.String("path", path),
				)
				WriteErrorResponse(rec, http.StatusTooManyRequests, model.NewRateLimitExceededError())
				return
			}
		}

		// ステージ5: ディスパッチ
		p.observe(StageDispatch)
		next.ServeHTTP(rec, r)
	})
}

// resolveSession はリクエストのCookieからセッションを解決する。
func (p *Pipeline) resolveSession(r *http.Request) *model.AuthSession {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return p.sessions.Validate(cookie.Value)
}

// shortCircuitUnauthenticated は未認証リクエストへの最終レスポンスを書き込む。
// API形状のパスにはJSONの401を、ページ形状のパスにはログインページへの
// リダイレクト（元のパスを引き継ぐ）を返す。
func (p *Pipeline) shortCircuitUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if p.config.Routes.IsAPI(r.URL.Path) {
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	target := p.config.Routes.LoginPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

// emit はレスポンス確定後にメトリクス送信とリクエストログ出力を行う。
// メトリクス送信はレスポンス経路をブロックしないようgoroutineに委ねる。
func (p *Pipeline) emit(r *http.Request, status int, latency time.Duration, userID string) {
	method := r.Method
	path := r.URL.Path
	userAgent := r.UserAgent()

	go p.sink.RecordRequest(method, path, status, latency, userAgent, userID)

	durationMs := float64(latency.Nanoseconds()) / float64(time.Millisecond)

	args := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", durationMs),
	}
	if userID != "" {
		args = append(args, slog.String("user_id", userID))
	}

	// ステータスコードに応じてログレベルを変更
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	} else if status >= 400 {
		level = slog.LevelWarn
	}

	p.logger.Log(r.Context(), level, "http_request", args...)
}

// observe はステージ到達フックを呼び出す。
func (p *Pipeline) observe(stage Stage) {
	if p.observer != nil {
		p.observer(stage)
	}
}

// applySecurityHeaders はベースラインのセキュリティレスポンスヘッダーを付与する。
func applySecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
}

// isEncrypted はリクエストが暗号化されたトランスポートで到着したかを返す。
// TLS終端プロキシ配下ではX-Forwarded-Protoで判定する。
func isEncrypted(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// clientIdentifier はレート制限のキーとなるクライアント識別子を返す。
// プロキシ配下ではX-Forwarded-Forの先頭エントリを、直接続では接続元IPを使用する。
func clientIdentifier(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
