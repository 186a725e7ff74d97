package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/docgate/internal/model"
)

// sessionCookieName はセッショントークンを運ぶCookieの名前。
const sessionCookieName = "session"

// Authenticator は認証ハンドラーが必要とする認可ポリシーのインターフェース。
type Authenticator interface {
	Authenticate(emailClaim string) (*model.AuthUser, error)
}

// SessionManager は認証ハンドラーが必要とするセッション操作のインターフェース。
// session.Storeの部分集合として定義する。
type SessionManager interface {
	Create(user *model.AuthUser) (string, error)
	Validate(token string) *model.AuthSession
	Revoke(token string) bool
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	policy   Authenticator
	sessions SessionManager
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(policy Authenticator, sessions SessionManager, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		policy:   policy,
		sessions: sessions,
		config:   config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email string `json:"email"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Login はメールアドレスクレームを検証し、セッションを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewEmailRequiredError())
		return
	}

	user, err := h.policy.Authenticate(req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.sessions.Create(user)
	if err != nil {
		writeError(w, err)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Email: user.Email,
		Name:  user.DisplayName,
		Role:  string(user.Role),
	})
}

// Logout はセッションを破棄し、Cookieをクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		h.sessions.Revoke(cookie.Value)
	}

	// セッションの有無に関わらずCookieはクリアする
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// statusResponse は認証状態クエリのレスポンス。
type statusResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *loginResponse `json:"user,omitempty"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
}

// Status は現在のCookieから導出した認証状態を返す。
// GET /auth/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		token = cookie.Value
	}

	sess := h.sessions.Validate(token)
	if sess == nil {
		writeJSON(w, http.StatusOK, statusResponse{Authenticated: false})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Authenticated: true,
		User: &loginResponse{
			Email: sess.Email,
			Name:  displayName(sess.Email),
			Role:  string(sess.Role),
		},
		ExpiresAt: &sess.ExpiresAt,
	})
}

// displayName はメールアドレスのローカル部を表示名として返す。
func displayName(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
