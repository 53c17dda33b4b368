// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(success bool)
	RecordTokenRejected()
	RecordAccessDenied(path string)
	RecordAuditWrite(action string)
	RecordAuditFailure(action string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess   prometheus.Counter
	loginFail      prometheus.Counter
	tokenRejected  prometheus.Counter
	accessDenied   *prometheus.CounterVec
	auditWrites    *prometheus.CounterVec
	auditFailures  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serverinv_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serverinv_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		tokenRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serverinv_token_rejected_total",
			Help: "検証に失敗したベアラートークンの合計数",
		}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serverinv_access_denied_total",
			Help: "ロール不足で拒否されたリクエスト数",
		}, []string{"path"}),
		auditWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serverinv_audit_writes_total",
			Help: "アクション別の監査レコード書き込み数",
		}, []string{"action"}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serverinv_audit_failures_total",
			Help: "アクション別の監査レコード書き込み失敗数",
		}, []string{"action"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serverinv_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "serverinv_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.tokenRejected,
		c.accessDenied,
		c.auditWrites,
		c.auditFailures,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はログインの成否を記録する。
func (c *Collector) RecordLogin(success bool) {
	if success {
		c.loginSuccess.Inc()
		return
	}
	c.loginFail.Inc()
}

// RecordTokenRejected はトークン検証の失敗を記録する。
func (c *Collector) RecordTokenRejected() {
	c.tokenRejected.Inc()
}

// RecordAccessDenied はロール不足による拒否を記録する。
// pathにはルートパターンを渡し、IDを含む実パスは渡さない。
func (c *Collector) RecordAccessDenied(path string) {
	c.accessDenied.WithLabelValues(path).Inc()
}

// RecordAuditWrite は監査レコードの書き込みを記録する。
func (c *Collector) RecordAuditWrite(action string) {
	c.auditWrites.WithLabelValues(action).Inc()
}

// RecordAuditFailure は監査レコードの書き込み失敗を記録する。
func (c *Collector) RecordAuditFailure(action string) {
	c.auditFailures.WithLabelValues(action).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

var _ MetricsCollector = NopCollector{}

func (NopCollector) RecordLogin(bool)                   {}
func (NopCollector) RecordTokenRejected()               {}
func (NopCollector) RecordAccessDenied(string)          {}
func (NopCollector) RecordAuditWrite(string)            {}
func (NopCollector) RecordAuditFailure(string)          {}
func (NopCollector) RecordHTTPStatus(int)               {}
func (NopCollector) RecordRequestLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
