// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink はリクエストパイプラインが消費するメトリクス送信先のインターフェース。
// 実装はレスポンス経路をブロックしてはならない。
type Sink interface {
	// RecordRequest は1リクエストの結果を記録する。
	// userAgentとuserIDは未取得の場合は空文字列。
	RecordRequest(method, path string, status int, latency time.Duration, userAgent, userID string)
	// RecordError はステージ内で捕捉された障害を記録する。
	RecordError(message, stack, path string)
}

// Collector はPrometheusメトリクスを収集するSinkの実装。
// userAgent/userIDはラベルカーディナリティの観点からメトリクスには含めない
// （リクエストログ側に記録される）。
type Collector struct {
	requests    *prometheus.CounterVec
	latency     prometheus.Histogram
	rateLimited prometheus.Counter
	errors      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docgate_http_requests_total",
			Help: "メソッド・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "status_code"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docgate_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docgate_rate_limited_total",
			Help: "レート制限により拒否されたリクエストの合計数",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docgate_errors_total",
			Help: "パイプライン内で捕捉された障害の合計数",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.rateLimited,
		c.errors,
	)

	return c
}

// RecordRequest はリクエスト結果を記録する。
func (c *Collector) RecordRequest(method, path string, status int, latency time.Duration, userAgent, userID string) {
	c.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.latency.Observe(latency.Seconds())
	if status == http.StatusTooManyRequests {
		c.rateLimited.Inc()
	}
}

// RecordError は捕捉された障害を記録する。
func (c *Collector) RecordError(message, stack, path string) {
	c.errors.Inc()
}

// NewHandler はPrometheusメトリクス公開用のHTTPハンドラーを返す。
func NewHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NopSink は何も記録しないSink。テストおよびメトリクス未設定時に使用する。
type NopSink struct{}

// RecordRequest は何もしない。
func (NopSink) RecordRequest(method, path string, status int, latency time.Duration, userAgent, userID string) {
}

// RecordError は何もしない。
func (NopSink) RecordError(message, stack, path string) {}
