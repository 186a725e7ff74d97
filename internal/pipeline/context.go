package pipeline

import (
	"context"

	"github.com/hitoshi/docgate/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストに解決済みセッションを格納するためのキー。
var sessionContextKey = contextKey("auth_session")

// ContextWithSession はコンテキストに解決済みセッションを注入する。
// テストやパイプライン以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, sess *model.AuthSession) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionFromContext はリクエストコンテキストから解決済みセッションを取得する。
// 認証ステージを通過したリクエストでのみ有効。未解決の場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.AuthSession {
	sess, ok := ctx.Value(sessionContextKey).(*model.AuthSession)
	if !ok {
		return nil
	}
	return sess
}
