// Package metrics 提供基于Prometheus的指标收集框架
//
// 核心概念：
//   - Counter（计数器）：只增不减的累计值，如销售总数、错误总数
//   - Gauge（仪表盘）：可增可减的瞬时值，如处理中的请求数、熔断器状态
//   - Histogram（直方图）：观测值的分布，自动计算分位数（P50、P90、P99）
//
// 命名规范：Counter以_total结尾，Histogram以单位结尾（_seconds），
// 标签只用低基数维度（op/result/status），绝不用user_id这类高基数值。
//
// 使用方式：
//
//	metrics.InitMetrics()
//	http.Handle("/metrics", promhttp.Handler())
//	...
//	metrics.SalesCreatedTotal.Inc()
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// initialized 标记是否已初始化（防止重复注册）
	initialized bool

	// HTTP请求相关指标

	// HTTPRequestsTotal HTTP请求总数（Counter）
	// 标签：method（GET/POST）、path、status（200/500）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration HTTP请求耗时（Histogram）
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsInProgress 正在处理的HTTP请求数（Gauge）
	HTTPRequestsInProgress prometheus.Gauge

	// 销售业务指标

	// SalesCreatedTotal 销售单创建总数（Counter）
	SalesCreatedTotal prometheus.Counter

	// SalesFailedTotal 销售单创建失败总数（Counter）
	// 标签：reason（insufficient_stock/internal）
	SalesFailedTotal *prometheus.CounterVec

	// SaleCreationDuration 销售单创建耗时（Histogram）
	SaleCreationDuration prometheus.Histogram

	// 退款业务指标

	// RefundsCreatedTotal 退款单创建总数（Counter）
	RefundsCreatedTotal prometheus.Counter

	// RefundsFailedTotal 退款被拒总数（Counter）
	// 标签：reason（window_expired/already_refunded/amount_exceeded/amount_mismatch/internal）
	RefundsFailedTotal *prometheus.CounterVec

	// StockRestoreFailedTotal 退款后库存恢复失败总数（Counter）
	// 恢复是best-effort,失败进对账队列,这个计数是对账积压的直接信号
	StockRestoreFailedTotal prometheus.Counter

	// 库存台账指标

	// StockMutationsTotal 库存变动总数（Counter）
	// 标签：op（decrement/restore/transfer/bulk）、result（success/failure）
	StockMutationsTotal *prometheus.CounterVec

	// StockMutationDuration 库存变动耗时（Histogram）
	StockMutationDuration *prometheus.HistogramVec

	// 缓存指标

	// CacheRequestsTotal 缓存读请求总数（Counter）
	// 标签：result（hit/miss）
	CacheRequestsTotal *prometheus.CounterVec

	// CacheErrorsTotal 缓存操作失败总数（Counter）
	// 标签：op（get/set/invalidate）,失败被吞掉只在这里留痕
	CacheErrorsTotal *prometheus.CounterVec

	// 熔断器指标

	// CircuitBreakerState 熔断器状态（Gauge）
	// 0=CLOSED, 1=OPEN, 2=HALF_OPEN
	CircuitBreakerState *prometheus.GaugeVec

	// CircuitBreakerRequests 熔断器请求总数（Counter）
	// 标签：name（熔断器名称）、result（success/failure/rejected）
	CircuitBreakerRequests *prometheus.CounterVec

	// Saga指标

	// SagaExecutionsTotal Saga执行总数（Counter）
	// 标签：result（success/failure）
	SagaExecutionsTotal *prometheus.CounterVec

	// SagaExecutionDuration Saga执行耗时（Histogram）
	SagaExecutionDuration prometheus.Histogram

	// SagaCompensationsTotal Saga补偿执行总数（Counter）
	SagaCompensationsTotal prometheus.Counter

	// SagaCompensationFailuresTotal 重试用尽仍未完成的补偿总数（Counter）
	// 非零意味着库存已经不一致,必须人工对账
	SagaCompensationFailuresTotal prometheus.Counter

	// 消息队列指标

	// MessagesPublishedTotal 消息发布总数（Counter）
	// 标签：exchange（交换机）、routing_key（路由键）
	MessagesPublishedTotal *prometheus.CounterVec

	// MessagesConsumedTotal 消息消费总数（Counter）
	// 标签：queue（队列名称）、result（success/failure）
	MessagesConsumedTotal *prometheus.CounterVec

	// MessageProcessingDuration 消息处理耗时（Histogram）
	MessageProcessingDuration prometheus.Histogram
)

// InitMetrics 初始化所有Prometheus指标
//
// 必须在程序启动时调用一次，用于注册所有指标到全局Registry
//
// 设计要点：
// 1. 使用promauto.New*自动注册到默认Registry
// 2. Counter使用*Vec支持标签（多维度统计）
// 3. Histogram的Buckets根据业务场景定制
func InitMetrics() {
	// 防止重复初始化
	if initialized {
		return
	}
	initialized = true

	// HTTP请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP请求总数",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP请求耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "正在处理的HTTP请求数",
		},
	)

	// 销售业务指标
	SalesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sales_created_total",
			Help: "销售单创建总数",
		},
	)

	SalesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_failed_total",
			Help: "销售单创建失败总数",
		},
		[]string{"reason"},
	)

	SaleCreationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "sale_creation_duration_seconds",
			Help: "销售单创建耗时（秒）",
			// 创建涉及逐行扣库存+落库,比普通请求慢
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	// 退款业务指标
	RefundsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refunds_created_total",
			Help: "退款单创建总数",
		},
	)

	RefundsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_failed_total",
			Help: "退款被拒总数",
		},
		[]string{"reason"},
	)

	StockRestoreFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_restore_failed_total",
			Help: "退款后库存恢复失败总数（进入对账队列）",
		},
	)

	// 库存台账指标
	StockMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_mutations_total",
			Help: "库存变动总数",
		},
		[]string{"op", "result"},
	)

	StockMutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stock_mutation_duration_seconds",
			Help:    "库存变动耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"op"},
	)

	// 缓存指标
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "缓存读请求总数",
		},
		[]string{"result"},
	)

	CacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "缓存操作失败总数",
		},
		[]string{"op"},
	)

	// 熔断器指标
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "熔断器请求总数",
		},
		[]string{"name", "result"},
	)

	// Saga指标
	SagaExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_executions_total",
			Help: "Saga执行总数",
		},
		[]string{"result"},
	)

	SagaExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "saga_execution_duration_seconds",
			Help:    "Saga执行耗时（秒）",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
		},
	)

	SagaCompensationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Saga补偿执行总数",
		},
	)

	SagaCompensationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_compensation_failures_total",
			Help: "重试用尽仍未完成的补偿总数",
		},
	)

	// 消息队列指标
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_published_total",
			Help: "消息发布总数",
		},
		[]string{"exchange", "routing_key"},
	)

	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_consumed_total",
			Help: "消息消费总数",
		},
		[]string{"queue", "result"},
	)

	MessageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "消息处理耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)
}

// IncCounter 递增Counter（便捷函数）
func IncCounter(counter prometheus.Counter) {
	counter.Inc()
}

// IncCounterVec 递增CounterVec（带标签）
func IncCounterVec(counter *prometheus.CounterVec, labels map[string]string) {
	counter.With(labels).Inc()
}

// IncGauge 递增Gauge
func IncGauge(gauge prometheus.Gauge) {
	gauge.Inc()
}

// DecGauge 递减Gauge
func DecGauge(gauge prometheus.Gauge) {
	gauge.Dec()
}

// SetGauge 设置Gauge值
func SetGauge(gauge prometheus.Gauge, value float64) {
	gauge.Set(value)
}

// SetGaugeVec 设置GaugeVec值（带标签）
func SetGaugeVec(gauge *prometheus.GaugeVec, labels map[string]string, value float64) {
	gauge.With(labels).Set(value)
}

// ObserveHistogram 记录Histogram观测值
func ObserveHistogram(histogram prometheus.Histogram, value float64) {
	histogram.Observe(value)
}

// ObserveHistogramVec 记录HistogramVec观测值（带标签）
func ObserveHistogramVec(histogram *prometheus.HistogramVec, labels map[string]string, value float64) {
	histogram.With(labels).Observe(value)
}
