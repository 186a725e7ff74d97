// Package session はインメモリのセッションストアを提供する。
//
// セッショントークンと認証済みユーザーの紐付けを排他的に所有し、
// 発行・検証・延長・破棄と、放置セッションを回収する定期スイープを提供する。
// プロセス再起動をまたぐ永続化は行わない（シングルプロセス設計）。
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/docgate/internal/model"
)

// anonymousSessionTTL は認証無効モードで合成される匿名セッションの有効期間。
const anonymousSessionTTL = 24 * time.Hour

// Config はセッションストアの設定。
type Config struct {
	Enabled bool          // 認証が有効か。falseの場合Validateは常に匿名セッションを合成する
	Timeout time.Duration // セッション有効期間
}

// Store はトークン→セッションのインメモリマップを所有する。
// すべてのメソッドは複数goroutineから同時に呼び出して安全。
type Store struct {
	config Config

	mu       sync.RWMutex
	sessions map[string]*model.AuthSession

	// now はテストで時刻を注入するためのフック。
	now func() time.Time
}

// Stats はセッションストアの診断スナップショット。
type Stats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
}

// NewStore はStoreを生成する。
func NewStore(config Config) *Store {
	return &Store{
		config:   config,
		sessions: make(map[string]*model.AuthSession),
		now:      time.Now,
	}
}

// Create は新しいセッションを発行し、トークンを返す。
// トークンは暗号論的乱数から生成される。
func (s *Store) Create(user *model.AuthUser) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	sess := &model.AuthSession{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.Timeout),
	}

	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()

	return token, nil
}

// Validate はトークンに対応する有効なセッションを返す。
// 存在しない場合はnilを返す。存在しても期限切れの場合は、
// スイープを待たずにその場で削除してnilを返す（遅延失効）。
//
// 認証が無効の場合はストアを参照せず、常に有効期限24時間の
// 匿名セッションを合成して返す。これは認証を掛けないデプロイ向けの
// 意図的なバイパスモードであり、エラー経路ではない。
func (s *Store) Validate(token string) *model.AuthSession {
	now := s.now()

	if !s.config.Enabled {
		return anonymousSession(now)
	}

	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil
	}

	if !sess.Live(now) {
		s.mu.Lock()
		// 再検査: RLock解放後に別goroutineが延長している可能性がある
		if cur, ok := s.sessions[token]; ok && !cur.Live(now) {
			delete(s.sessions, token)
		}
		s.mu.Unlock()
		return nil
	}

	// マップ内レコードへの参照を外に出さないためコピーを返す
	copied := *sess
	return &copied
}

// Extend は有効なセッションの有効期限を現在時刻から再設定する。
// セッションが存在しない、または期限切れの場合は何もせずfalseを返す。
func (s *Store) Extend(token string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || !sess.Live(now) {
		return false
	}

	sess.ExpiresAt = now.Add(s.config.Timeout)
	return true
}

// Revoke はセッションを削除する。セッションが存在した場合にtrueを返す。
func (s *Store) Revoke(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// Sweep は期限切れセッションをすべて削除し、削除件数を返す。
// 二度と参照されない放置セッションでメモリが際限なく増えないよう、
// リクエストとは独立した一定間隔での実行を想定している。
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if !sess.Live(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Stats は診断用スナップショットを返す。副作用はない。
func (s *Store) Stats() Stats {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Total: len(s.sessions)}
	for _, sess := range s.sessions {
		if sess.Live(now) {
			stats.Active++
		} else {
			stats.Expired++
		}
	}
	return stats
}

// anonymousSession は認証無効モード用の固定匿名セッションを合成する。
func anonymousSession(now time.Time) *model.AuthSession {
	return &model.AuthSession{
		Token:     "",
		UserID:    model.AnonymousUserID,
		Email:     model.AnonymousEmail,
		Role:      model.RoleUser,
		CreatedAt: now,
		ExpiresAt: now.Add(anonymousSessionTTL),
	}
}

// generateToken は暗号論的に安全なセッショントークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
