package business

import (
	"context"
	"fmt"

	"spbu/anomsync/internal/entity"
	"spbu/anomsync/pkg/errorutil"
	"spbu/anomsync/pkg/logger"
)

// ExecutionStatus 执行状态视图（含批次汇总）
type ExecutionStatus struct {
	Execution      *entity.AnomalyExecution        `json:"execution"`
	Batches        []*entity.AnomalyExecutionBatch `json:"batches"`
	TotalAnomalies int                             `json:"total_anomalies"`
}

// QueryService 执行与结果的只读查询
type QueryService struct {
	executions ExecutionDAO
	results    ResultDAO
	logger     logger.Logger
}

// NewQueryService 创建查询服务
func NewQueryService(executions ExecutionDAO, results ResultDAO, log logger.Logger) *QueryService {
	return &QueryService{
		executions: executions,
		results:    results,
		logger:     log,
	}
}

// GetExecutionStatus 查询执行状态及批次明细
func (s *QueryService) GetExecutionStatus(ctx context.Context, executionID string) (*ExecutionStatus, error) {
	exec, err := s.executions.GetExecution(ctx, executionID)
	if err != nil {
		return nil, errorutil.Wrap(err)
	}
	if exec == nil {
		return nil, errorutil.NonRetriable(fmt.Sprintf("execution %s not found", executionID))
	}

	batches, err := s.executions.ListBatches(ctx, executionID)
	if err != nil {
		return nil, errorutil.Wrap(err)
	}

	total := 0
	for _, b := range batches {
		if b.BatchStatus == entity.BatchStatusCompleted {
			total += b.AnomaliesFound
		}
	}

	return &ExecutionStatus{
		Execution:      exec,
		Batches:        batches,
		TotalAnomalies: total,
	}, nil
}

// GetResults 查询一次执行的全部分析结果
func (s *QueryService) GetResults(ctx context.Context, executionID string) ([]*entity.AnomalyResult, error) {
	exec, err := s.executions.GetExecution(ctx, executionID)
	if err != nil {
		return nil, errorutil.Wrap(err)
	}
	if exec == nil {
		return nil, errorutil.NonRetriable(fmt.Sprintf("execution %s not found", executionID))
	}

	return s.results.ListByExecution(ctx, executionID)
}
