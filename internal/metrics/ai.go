package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumify",
			Subsystem: "ai",
			Name:      "attempts_total",
			Help:      "AI 补全请求的单次尝试结果。",
		},
		[]string{"outcome"},
	)

	aiFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumify",
			Subsystem: "ai",
			Name:      "fallbacks_total",
			Help:      "AI 不可用时使用本地兜底文本的次数。",
		},
		[]string{"kind"},
	)

	resumesGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumify",
			Subsystem: "resume",
			Name:      "generated_total",
			Help:      "生成的简历数量（按模板）。",
		},
		[]string{"template"},
	)

	purchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumify",
			Subsystem: "billing",
			Name:      "purchases_total",
			Help:      "记录到账本的购买次数。",
		},
		[]string{"description"},
	)
)

// ObserveAIAttempt 记录一次 AI 请求尝试，outcome 取 success/retry/backoff/terminal/cached。
func ObserveAIAttempt(outcome string) {
	aiAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAIFallback 记录兜底文本的使用。
func ObserveAIFallback(kind string) {
	aiFallbacksTotal.WithLabelValues(kind).Inc()
}

// ObserveResumeGenerated 记录一次成功的简历生成。
func ObserveResumeGenerated(template string) {
	resumesGeneratedTotal.WithLabelValues(template).Inc()
}

// ObservePurchase 记录一次购买。
func ObservePurchase(description string) {
	purchasesTotal.WithLabelValues(description).Inc()
}
