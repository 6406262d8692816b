// Package tasks 定义 API 与 Worker 之间的异步任务契约。
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeResumeExport 把一份简历渲染为 PDF 并存入对象存储。
const TypeResumeExport = "resume:export"

// ErrInvalidPayload 表示任务负载无法使用，重试也不会成功。
var ErrInvalidPayload = errors.New("invalid task payload")

// ResumeExportPayload 是导出任务的负载。Worker 会按 UserID 再次校验归属。
type ResumeExportPayload struct {
	ResumeID      uint   `json:"resume_id"`
	UserID        uint   `json:"user_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewResumeExportTask 构造导出任务；重试、超时与去重窗口由调用方通过 opts 指定。
func NewResumeExportTask(resumeID, userID uint, correlationID string, opts ...asynq.Option) (*asynq.Task, error) {
	p := ResumeExportPayload{ResumeID: resumeID, UserID: userID, CorrelationID: correlationID}
	if err := p.validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeResumeExport, raw, opts...), nil
}

// ParseResumeExportPayload 解码并校验导出任务负载。
func ParseResumeExportPayload(t *asynq.Task) (ResumeExportPayload, error) {
	var p ResumeExportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, p.validate()
}

func (p ResumeExportPayload) validate() error {
	if p.ResumeID == 0 || p.UserID == 0 {
		return fmt.Errorf("%w: resume and user ids are required", ErrInvalidPayload)
	}
	return nil
}
