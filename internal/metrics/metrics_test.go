package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware())
	router.GET("/resume/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	before := testutil.CollectAndCount(httpLatency)
	for _, path := range []string{"/resume/1", "/resume/2", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	// 两个 id 合并到同一路由模板，外加一个 unmatched 序列。
	if got := testutil.CollectAndCount(httpLatency) - before; got != 2 {
		t.Fatalf("expected 2 new latency series, got %d", got)
	}
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Fatalf("in-flight gauge should return to 0, got %v", got)
	}
}

func TestAsynqMetricsMiddleware(t *testing.T) {
	handler := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(_ context.Context, task *asynq.Task) error {
		if string(task.Payload()) == "bad" {
			return fmt.Errorf("decode: %w", asynq.SkipRetry)
		}
		return nil
	}))

	const kind = "test:metrics"
	if err := handler.ProcessTask(context.Background(), asynq.NewTask(kind, []byte("ok"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := handler.ProcessTask(context.Background(), asynq.NewTask(kind, []byte("bad"))); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	if got := testutil.ToFloat64(taskOutcomes.WithLabelValues(kind, TaskSucceeded)); got != 1 {
		t.Fatalf("succeeded = %v", got)
	}
	if got := testutil.ToFloat64(taskOutcomes.WithLabelValues(kind, TaskDropped)); got != 1 {
		t.Fatalf("dropped = %v", got)
	}
	if got := testutil.ToFloat64(tasksRunning.WithLabelValues(kind)); got != 0 {
		t.Fatalf("running = %v", got)
	}
}

func TestTaskOutcomeWithoutRetryInfo(t *testing.T) {
	if got := TaskOutcome(context.Background(), errors.New("boom")); got != TaskRetried {
		t.Fatalf("got %q", got)
	}
}
