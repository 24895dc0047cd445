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
// サービス層とHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordRegistration()
	RecordVerification(success bool)
	RecordLogin(success bool)
	RecordCartOperation(op string)
	RecordCheckoutTransition(from, to string)
	RecordOrderPlaced(total float64)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations  prometheus.Counter
	verifications  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	cartOperations *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	ordersPlaced   prometheus.Counter
	orderTotal     prometheus.Histogram
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_registrations_total",
			Help: "アカウント登録の合計数",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_verifications_total",
			Help: "確認コード照合の結果別の合計数",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_logins_total",
			Help: "ログイン試行の結果別の合計数",
		}, []string{"result"}),
		cartOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_operations_total",
			Help: "カート操作の種類別の合計数",
		}, []string{"op"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_transitions_total",
			Help: "チェックアウト状態遷移の合計数",
		}, []string{"from", "to"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "確定した注文の合計数",
		}),
		orderTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_order_total_amount",
			Help:    "注文金額の分布",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.verifications,
		c.logins,
		c.cartOperations,
		c.transitions,
		c.ordersPlaced,
		c.orderTotal,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordRegistration は登録成功を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordVerification は確認コード照合の結果を記録する。
func (c *Collector) RecordVerification(success bool) {
	c.verifications.WithLabelValues(result(success)).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	c.logins.WithLabelValues(result(success)).Inc()
}

// RecordCartOperation はカート操作を記録する。
func (c *Collector) RecordCartOperation(op string) {
	c.cartOperations.WithLabelValues(op).Inc()
}

// RecordCheckoutTransition はチェックアウトの状態遷移を記録する。
func (c *Collector) RecordCheckoutTransition(from, to string) {
	c.transitions.WithLabelValues(from, to).Inc()
}

// RecordOrderPlaced は注文確定を記録する。
func (c *Collector) RecordOrderPlaced(total float64) {
	c.ordersPlaced.Inc()
	c.orderTotal.Observe(total)
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
