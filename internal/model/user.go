// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleAdmin は管理者ロール。管理専用エンドポイントにアクセスできる。
	RoleAdmin Role = "admin"
	// RoleUser は一般ユーザーロール。
	RoleUser Role = "user"
)

// 認証無効モードで使用される固定の匿名ユーザー識別子。
const (
	AnonymousUserID = "anonymous"
	AnonymousEmail  = "anonymous@local"
)

// AuthUser は認証によって解決されたユーザーを表す。
// 認証成功のたびに新規に構築され、構築後は変更されない。永続化されない。
type AuthUser struct {
	ID          string
	Email       string // 小文字に正規化済み
	DisplayName string
	Role        Role
	LastLoginAt time.Time
}

// AuthSession は不透明トークンに紐づくサーバー側セッションレコードを表す。
// SessionStoreが排他的に所有し、ExpiresAtの書き換え（延長）と削除のみが許される。
// now < ExpiresAt のとき、かつそのときに限りセッションは有効。
type AuthSession struct {
	Token     string
	UserID    string
	Email     string
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Live はセッションが指定時刻において有効かを返す。
func (s *AuthSession) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
