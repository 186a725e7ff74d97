// Package policy は認証・認可のステートレスなルールを提供する。
//
// ルールはすべて設定と入力のみの純粋関数であり、内部状態を持たないため
// スレッドセーフかつ単体でテスト可能。
package policy

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/docgate/internal/model"
)

// Config は認可ポリシーの設定。起動時に1回構築され、以後変更されない。
type Config struct {
	Enabled      bool
	AllowedUsers []string // 空の場合は許可リスト制限なし（認証済みなら全員許可）
	AdminUsers   []string
}

// Policy はメールアドレスクレームからAuthUserを導出する認可ポリシー。
type Policy struct {
	enabled bool
	allowed map[string]struct{}
	admins  map[string]struct{}

	// now はテストで時刻を注入するためのフック。
	now func() time.Time
}

// New はPolicyを生成する。メールアドレスは小文字に正規化して保持する。
func New(config Config) *Policy {
	p := &Policy{
		enabled: config.Enabled,
		allowed: make(map[string]struct{}, len(config.AllowedUsers)),
		admins:  make(map[string]struct{}, len(config.AdminUsers)),
		now:     time.Now,
	}
	for _, email := range config.AllowedUsers {
		p.allowed[strings.ToLower(email)] = struct{}{}
	}
	for _, email := range config.AdminUsers {
		p.admins[strings.ToLower(email)] = struct{}{}
	}
	return p
}

// Authenticate はメールアドレスクレームからAuthUserを導出する。
//
// 失敗時は*model.APIErrorを返す:
//   - クレームが空: EMAIL_REQUIRED
//   - 構文的に不正なメールアドレス: INVALID_FORMAT
//   - 許可リストが設定済みで非メンバー: NOT_AUTHORIZED
//
// 認証が無効の場合はクレームに関わらず常に固定の匿名ユーザーで成功する。
func (p *Policy) Authenticate(emailClaim string) (*model.AuthUser, error) {
	now := p.now()

	if !p.enabled {
		return &model.AuthUser{
			ID:          model.AnonymousUserID,
			Email:       model.AnonymousEmail,
			DisplayName: "Anonymous",
			Role:        model.RoleUser,
			LastLoginAt: now,
		}, nil
	}

	email := strings.ToLower(strings.TrimSpace(emailClaim))
	if email == "" {
		return nil, model.NewEmailRequiredError()
	}

	if !isValidEmail(email) {
		return nil, model.NewInvalidFormatError(email)
	}

	if len(p.allowed) > 0 {
		if _, ok := p.allowed[email]; !ok {
			return nil, model.NewNotAuthorizedError()
		}
	}

	role := model.RoleUser
	if _, ok := p.admins[email]; ok {
		role = model.RoleAdmin
	}

	return &model.AuthUser{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayNameFromEmail(email),
		Role:        role,
		LastLoginAt: now,
	}, nil
}

// IsAdmin はセッションが管理者ロールを持つかを返す。
func (p *Policy) IsAdmin(sess *model.AuthSession) bool {
	return sess != nil && sess.Role == model.RoleAdmin
}

// isValidEmail はメールアドレスの構文を検証する。
// 表示名付き形式（"Name <a@b>"）はクレームとして不正とみなす。
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == email
}

// displayNameFromEmail はメールアドレスのローカル部を表示名として返す。
func displayNameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
