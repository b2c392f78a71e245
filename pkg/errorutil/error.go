package errorutil

import "fmt"

// Kind 错误类别（对应分析流程的故障分类）
type Kind string

const (
	// KindConfiguration 配置错误（模板/规则缺失），只影响当前批次
	KindConfiguration Kind = "CONFIGURATION"
	// KindData 数据错误（单条记录损坏），跳过该记录
	KindData Kind = "DATA"
	// KindPersistence 持久化错误（结果写入失败），终止当前批次
	KindPersistence Kind = "PERSISTENCE"
	// KindTransient 瞬时错误（队列/存储不可达），整个任务可重试
	KindTransient Kind = "TRANSIENT"
)

// Error 错误结构（包含可重试标记）
type Error struct {
	Code       int    `json:"code"`
	Kind       Kind   `json:"kind,omitempty"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	DevDetails string `json:"dev_details,omitempty"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return e.Message
}

// Configuration 创建配置错误（模板或规则缺失）
func Configuration(format string, args ...interface{}) *Error {
	return &Error{
		Code:      400,
		Kind:      KindConfiguration,
		Message:   fmt.Sprintf(format, args...),
		Retryable: false,
	}
}

// Data 创建数据错误（单条记录损坏，作为告警记录）
func Data(format string, args ...interface{}) *Error {
	return &Error{
		Code:      422,
		Kind:      KindData,
		Message:   fmt.Sprintf(format, args...),
		Retryable: false,
	}
}

// Persistence 创建持久化错误（批次级失败，兄弟批次不受影响）
func Persistence(message string, cause error) *Error {
	e := &Error{
		Code:      500,
		Kind:      KindPersistence,
		Message:   message,
		Retryable: false,
	}
	if cause != nil {
		e.DevDetails = cause.Error()
	}
	return e
}

// Transient 创建瞬时错误（网络抖动、存储不可达等，可重新投递）
func Transient(message string, cause error) *Error {
	e := &Error{
		Code:      500,
		Kind:      KindTransient,
		Message:   message,
		Retryable: true,
	}
	if cause != nil {
		e.DevDetails = cause.Error()
	}
	return e
}

// NonRetriable 创建不可重试错误（参数错误、业务规则错误等）
func NonRetriable(message string) *Error {
	return &Error{
		Code:      400,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// Wrap 包装错误（默认不可重试）
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}

	// 如果已经是 Error 类型，直接返回
	if e, ok := err.(*Error); ok {
		return e
	}

	return &Error{
		Code:       500,
		Message:    err.Error(),
		Retryable:  false,
		DevDetails: fmt.Sprintf("%+v", err),
	}
}

// UnWrapResponse 解包错误（用于 Response）
func UnWrapResponse(err error) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err)
}
