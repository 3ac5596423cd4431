package processor

import (
	"errors"
	"fmt"
)

// 流水线各阶段的基础错误类型
var (
	ErrExtractTextFailed     = errors.New("提取简历文本失败")
	ErrExtractFieldsFailed   = errors.New("结构化字段提取失败")
	ErrGenerateInferenceFail = errors.New("生成候选人推断失败")
	ErrUpsertInferenceFailed = errors.New("写入推断向量失败")
	ErrQueryInferenceFailed  = errors.New("检索推断记录失败")
)

// PipelineError 包含详细上下文的流水线错误
// 底层错误保留在错误链中，调用方可以继续用 errors.Is/As 匹配
type PipelineError struct {
	UploadUUID string
	Op         string
	BaseErr    error
	Cause      error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (操作:%s, UUID:%s): %v", e.BaseErr, e.Op, e.UploadUUID, e.Cause)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s)", e.BaseErr, e.Op, e.UploadUUID)
}

func (e *PipelineError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.BaseErr}
	}
	return []error{e.BaseErr, e.Cause}
}

// NewPipelineError 构造流水线错误
func NewPipelineError(uploadUUID, op string, baseErr error, cause error) error {
	return &PipelineError{
		UploadUUID: uploadUUID,
		Op:         op,
		BaseErr:    baseErr,
		Cause:      cause,
	}
}
