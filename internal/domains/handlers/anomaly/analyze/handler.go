package analyze

import (
	"context"
	"encoding/json"
	"fmt"

	"spbu/anomsync/internal/business"
	"spbu/anomsync/internal/domains/common"
	"spbu/anomsync/internal/domains/common/job"
	"spbu/anomsync/internal/domains/common/response"
	"spbu/anomsync/internal/model"
)

// AnalyzeHandler 异常分析 Handler
type AnalyzeHandler struct {
	ctx     context.Context
	meta    *job.Meta
	jobData *model.AnalysisJobData
}

// NewAnalyzeHandler 创建分析 Handler
// 解析标准化 Job 消息的业务数据部分
func NewAnalyzeHandler(ctx context.Context, meta *job.Meta, payload interface{}) (common.HandlerServ, error) {
	// 解析 payload（业务数据）
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}

	var bizData model.AnalysisJobData
	if err := json.Unmarshal(payloadBytes, &bizData); err != nil {
		return nil, fmt.Errorf("unmarshal business data failed: %w", err)
	}

	// 校验必填字段（execution_id 优先取业务数据，缺省回落到 meta.ID）
	if bizData.ExecutionID == "" {
		bizData.ExecutionID = meta.ID
	}
	if bizData.ExecutionID == "" {
		return nil, fmt.Errorf("execution_id is required")
	}
	if len(bizData.SummaryIDs) == 0 {
		return nil, fmt.Errorf("summary_ids is required")
	}

	return &AnalyzeHandler{
		ctx:     ctx,
		meta:    meta,
		jobData: &bizData,
	}, nil
}

// GetProcess 处理分析请求
func (h *AnalyzeHandler) GetProcess() *response.Response {
	result := response.NewAnalysisResult()

	err := h.process()

	resp := &response.Response{}
	resp.WrapResponse(result, h.meta, err)

	return resp
}

// process 业务处理逻辑
func (h *AnalyzeHandler) process() error {
	// 从 Context 获取 AnalysisService
	analysisService, ok := h.ctx.Value("analysis_service").(*business.AnalysisService)
	if !ok || analysisService == nil {
		return fmt.Errorf("AnalysisService not found in context")
	}

	req := &business.AnalysisRequest{
		RequestID:              h.meta.RequestID,
		ExecutionID:            h.jobData.ExecutionID,
		TemplateID:             h.jobData.TemplateID,
		SummaryIDs:             h.jobData.SummaryIDs,
		TransactionCriteriaIDs: h.jobData.TransactionCriteriaIDs,
		SpecialCriteriaIDs:     h.jobData.SpecialCriteriaIDs,
		AccumulatedCriteriaIDs: h.jobData.AccumulatedCriteriaIDs,
	}

	return analysisService.RunExecution(h.ctx, req)
}
