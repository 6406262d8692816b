package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 任务结果标签。
const (
	TaskSucceeded = "succeeded"
	TaskRetried   = "retried"
	TaskDropped   = "dropped"
)

var (
	taskOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumify",
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "按任务类型与结果统计的任务数；dropped 表示不会再重试。",
		},
		[]string{"task_type", "outcome"},
	)

	taskLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resumify",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "单次任务执行耗时（秒），包含 Chromium 渲染。",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		},
		[]string{"task_type"},
	)

	tasksRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "resumify",
			Subsystem: "worker",
			Name:      "tasks_running",
			Help:      "正在执行的任务数。",
		},
		[]string{"task_type"},
	)
)

// AsynqMetricsMiddleware 包装任务处理器，记录耗时与结果。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			kind := task.Type()
			running := tasksRunning.WithLabelValues(kind)
			running.Inc()
			begin := time.Now()

			err := next.ProcessTask(ctx, task)

			running.Dec()
			taskLatency.WithLabelValues(kind).Observe(time.Since(begin).Seconds())
			taskOutcomes.WithLabelValues(kind, TaskOutcome(ctx, err)).Inc()
			return err
		})
	}
}

// TaskOutcome 根据返回的错误与剩余重试次数归类任务结果。
func TaskOutcome(ctx context.Context, err error) string {
	if err == nil {
		return TaskSucceeded
	}
	if errors.Is(err, asynq.SkipRetry) {
		return TaskDropped
	}
	retried, ok1 := asynq.GetRetryCount(ctx)
	limit, ok2 := asynq.GetMaxRetry(ctx)
	if ok1 && ok2 && retried >= limit {
		return TaskDropped
	}
	return TaskRetried
}
