package business

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spbu/anomsync/internal/entity"
	"spbu/anomsync/pkg/logger"
)

func TestGetExecutionStatusAggregatesAnomalies(t *testing.T) {
	execs := newFakeExecutionDAO()
	execs.execs["EXEC-1"] = &entity.AnomalyExecution{
		ExecutionID: "EXEC-1",
		Status:      entity.ExecutionStatusCompleted,
	}
	execs.batches = []*entity.AnomalyExecutionBatch{
		{DetailID: 1, ExecutionID: "EXEC-1", SummaryID: 101, BatchStatus: entity.BatchStatusCompleted, AnomaliesFound: 3},
		{DetailID: 2, ExecutionID: "EXEC-1", SummaryID: 102, BatchStatus: entity.BatchStatusFailed, AnomaliesFound: 0},
		// 其他执行的批次不应统计进来
		{DetailID: 3, ExecutionID: "EXEC-2", SummaryID: 103, BatchStatus: entity.BatchStatusCompleted, AnomaliesFound: 9},
	}

	svc := NewQueryService(execs, newFakeResultDAO(), logger.NopLogger{})

	status, err := svc.GetExecutionStatus(context.Background(), "EXEC-1")
	require.NoError(t, err)

	assert.Equal(t, entity.ExecutionStatusCompleted, status.Execution.Status)
	assert.Len(t, status.Batches, 2)
	// 只累计 COMPLETED 批次
	assert.Equal(t, 3, status.TotalAnomalies)
}

func TestGetExecutionStatusNotFound(t *testing.T) {
	svc := NewQueryService(newFakeExecutionDAO(), newFakeResultDAO(), logger.NopLogger{})

	_, err := svc.GetExecutionStatus(context.Background(), "EXEC-404")
	assert.Error(t, err)
}

func TestGetResults(t *testing.T) {
	execs := newFakeExecutionDAO()
	execs.execs["EXEC-1"] = &entity.AnomalyExecution{
		ExecutionID: "EXEC-1",
		Status:      entity.ExecutionStatusCompleted,
	}

	results := newFakeResultDAO()
	results.store["EXEC-1|T1"] = &entity.AnomalyResult{ExecutionID: "EXEC-1", TransactionID: "T1", IsAnomalous: true}
	results.store["EXEC-2|T2"] = &entity.AnomalyResult{ExecutionID: "EXEC-2", TransactionID: "T2"}

	svc := NewQueryService(execs, results, logger.NopLogger{})

	rows, err := svc.GetResults(context.Background(), "EXEC-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "T1", rows[0].TransactionID)
}
