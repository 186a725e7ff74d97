// Package ratelimit は固定ウィンドウ方式のレート制限を提供する。
//
// クライアント識別子ごとに離散的な時間ウィンドウ単位でリクエストを数える。
// ウィンドウ境界でのバーストは固定ウィンドウ方式の許容された近似であり、
// バグではない。
package ratelimit

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// defaultWindow はカウント対象の時間ウィンドウ幅。
	defaultWindow = 60 * time.Second
	// retentionWindows は過去バケットの保持ウィンドウ数。
	// これより古いバケットはスイープで削除される。
	retentionWindows = 5
	// sweepProbability はAdmit呼び出しごとにスイープを起動する確率。
	// 専用タイマーを持たず、クリーンアップコストを呼び出し全体に分散させる。
	sweepProbability = 0.01
)

// Decision はレート制限の判定結果とバジェットのメタデータ。
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time     // 次のウィンドウ境界
	RetryAfter time.Duration // 拒否時のみ非ゼロ
}

// bucketKey は(クライアント識別子, ウィンドウ番号)の組。
type bucketKey struct {
	client string
	window int64
}

// Limiter はクライアントごとのウィンドウ単位カウンターを所有する。
// カウンターの加算はアトミックで、同一瞬間に到着する複数リクエストの
// 競合下でもカウント漏れは発生しない。
type Limiter struct {
	limit  int
	window time.Duration

	// buckets はbucketKey → *int64 のマップ。
	buckets sync.Map

	// now / sweepRoll はテストで時刻と確率を注入するためのフック。
	now       func() time.Time
	sweepRoll func() float64

	sweeping atomic.Bool
}

// New はLimiterを生成する。limitはウィンドウあたりの許可リクエスト数。
func New(limit int) *Limiter {
	return &Limiter{
		limit:     limit,
		window:    defaultWindow,
		now:       time.Now,
		sweepRoll: rand.Float64,
	}
}

// Admit はクライアントからの1リクエストを判定する。
// 現在ウィンドウのカウンターを加算し、加算後のカウントがlimit以下であれば許可する。
// 呼び出しごとに小さい確率で過去ウィンドウのバケットをスイープする。
func (l *Limiter) Admit(client string) Decision {
	now := l.now()
	win := l.windowIndex(now)

	v, _ := l.buckets.LoadOrStore(bucketKey{client: client, window: win}, new(int64))
	count := atomic.AddInt64(v.(*int64), 1)

	allowed := count <= int64(l.limit)

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	resetAt := time.Unix(0, (win+1)*l.window.Nanoseconds())

	// 拒否時のRetry-Afterはウィンドウ幅そのもの。次ウィンドウ境界までの
	// 残り時間ではなくウィンドウ幅を案内する（保守的な案内）。
	var retryAfter time.Duration
	if !allowed {
		retryAfter = l.window
	}

	if l.sweepRoll() < sweepProbability {
		l.sweep(win)
	}

	return Decision{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}
}

// BucketCount は現在保持しているバケット数を返す。テストおよび診断用。
func (l *Limiter) BucketCount() int {
	count := 0
	l.buckets.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// windowIndex は時刻が属するウィンドウ番号を返す。
func (l *Limiter) windowIndex(t time.Time) int64 {
	return t.UnixNano() / l.window.Nanoseconds()
}

// sweep は保持ホライズンより古いウィンドウのバケットを削除する。
// 同時に複数のスイープが走らないよう、実行中は後続をスキップする。
func (l *Limiter) sweep(currentWindow int64) {
	if !l.sweeping.CompareAndSwap(false, true) {
		return
	}
	defer l.sweeping.Store(false)

	horizon := currentWindow - retentionWindows
	l.buckets.Range(func(key, _ any) bool {
		if key.(bucketKey).window < horizon {
			l.buckets.Delete(key)
		}
		return true
	})
}
