package session

import (
	"context"
	"log/slog"
	"time"
)

// defaultSweepInterval はセッションスイープの実行間隔。
const defaultSweepInterval = 5 * time.Minute

// Sweeper は期限切れセッションを定期的に回収するバックグラウンドタスク。
// プロセスのライフサイクルが所有し、起動時にStartし、
// シャットダウン時にコンテキストのキャンセルで停止する。
type Sweeper struct {
	store    *Store
	logger   *slog.Logger
	interval time.Duration
}

// NewSweeper はSweeperを生成する。デフォルトの実行間隔は5分。
func NewSweeper(store *Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		logger:   logger,
		interval: defaultSweepInterval,
	}
}

// Start はスイープループをブロッキングで実行する。
// ctxがキャンセルされると停止する。goroutineで起動することを想定している。
func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			removed := w.store.Sweep()
			if removed > 0 {
				w.logger.Info("expired sessions swept",
					slog.Int("removed", removed),
				)
			}
		}
	}
}
