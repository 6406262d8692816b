package errcode

// 错误码约定（用于导出通知）：
// - 0：无错误
// - 4xxx：可继续的告警（例如头像缺失，PDF 仍会生成）
// - 5xxx：系统错误（导出失败）
const (
	OK              = 0
	ResourceMissing = 4004
	SystemError     = 5000
	RenderFailed    = 5001
	StorageFailed   = 5002
)
