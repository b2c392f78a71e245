package response

import (
	"spbu/anomsync/internal/domains/common/job"
	"spbu/anomsync/pkg/errorutil"
)

// AnalysisResult 分析结果（实现 ResultI 接口）
type AnalysisResult struct {
	ExecutionID string           `json:"execution_id"`
	Status      string           `json:"status"`
	Error       *errorutil.Error `json:"error,omitempty"`
}

const (
	AnalysisStatusSuccess = "SUCCESS"
	AnalysisStatusFailed  = "FAILED"
)

// NewAnalysisResult 创建分析结果
func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{}
}

// Set 实现 ResultI 接口
func (r *AnalysisResult) Set(meta *job.Meta, err error) {
	r.ExecutionID = meta.ID
	if err != nil {
		r.Status = AnalysisStatusFailed
		r.Error = errorutil.Wrap(err)
	} else {
		r.Status = AnalysisStatusSuccess
	}
}

// GetStatus 实现 ResultI 接口
func (r *AnalysisResult) GetStatus() string {
	return r.Status
}
