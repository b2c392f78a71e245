package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"spbu/anomsync/internal/entity"
)

// ExecutionDAO 执行/批次状态数据访问对象
type ExecutionDAO struct {
	db *gorm.DB
}

// NewExecutionDAO 创建 ExecutionDAO 实例
func NewExecutionDAO(db *gorm.DB) *ExecutionDAO {
	return &ExecutionDAO{db: db}
}

// GetExecution 按 ID 查询执行记录，不存在返回 nil
func (dao *ExecutionDAO) GetExecution(ctx context.Context, executionID string) (*entity.AnomalyExecution, error) {
	var exec entity.AnomalyExecution
	result := dao.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		First(&exec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get execution: %w", result.Error)
	}
	return &exec, nil
}

// MarkProcessing 执行转入 PROCESSING 并记录开始时间
func (dao *ExecutionDAO) MarkProcessing(ctx context.Context, executionID string, totalBatches int) error {
	now := time.Now()
	result := dao.db.WithContext(ctx).
		Model(&entity.AnomalyExecution{}).
		Where("execution_id = ?", executionID).
		Updates(map[string]interface{}{
			"status":        entity.ExecutionStatusProcessing,
			"total_batches": totalBatches,
			"started_at":    now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark execution processing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("execution not found: %s", executionID)
	}
	return nil
}

// MarkTerminal 执行转入终态并记录完成时间
// 状态过滤保证终态不被覆盖（并发重复投递时后到的更新空转）
func (dao *ExecutionDAO) MarkTerminal(ctx context.Context, executionID string, status string) error {
	now := time.Now()
	result := dao.db.WithContext(ctx).
		Model(&entity.AnomalyExecution{}).
		Where("execution_id = ? AND status NOT IN ?", executionID,
			[]string{entity.ExecutionStatusCompleted, entity.ExecutionStatusFailed}).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark execution terminal: %w", result.Error)
	}
	return nil
}

// SetRulesApplied 记录本次执行实际应用的规则代码
func (dao *ExecutionDAO) SetRulesApplied(ctx context.Context, executionID string, codes []string) error {
	codesJSON, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("failed to marshal rule codes: %w", err)
	}

	result := dao.db.WithContext(ctx).
		Model(&entity.AnomalyExecution{}).
		Where("execution_id = ?", executionID).
		Update("rules_applied", codesJSON)
	if result.Error != nil {
		return fmt.Errorf("failed to set rules_applied: %w", result.Error)
	}
	return nil
}

// ListBatches 查询执行下的全部批次，按提交顺序（detail_id 升序）
func (dao *ExecutionDAO) ListBatches(ctx context.Context, executionID string) ([]*entity.AnomalyExecutionBatch, error) {
	var batches []*entity.AnomalyExecutionBatch
	result := dao.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("detail_id ASC").
		Find(&batches)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list batches: %w", result.Error)
	}
	return batches, nil
}

// CreateBatch 创建批次记录（回填自增 detail_id）
func (dao *ExecutionDAO) CreateBatch(ctx context.Context, batch *entity.AnomalyExecutionBatch) error {
	if err := dao.db.WithContext(ctx).Create(batch).Error; err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

// UpdateBatch 更新批次状态
func (dao *ExecutionDAO) UpdateBatch(ctx context.Context, detailID int64, status string, anomaliesFound int, errorMessage string) error {
	result := dao.db.WithContext(ctx).
		Model(&entity.AnomalyExecutionBatch{}).
		Where("detail_id = ?", detailID).
		Updates(map[string]interface{}{
			"batch_status":    status,
			"anomalies_found": anomaliesFound,
			"error_message":   errorMessage,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update batch: %w", result.Error)
	}
	// RowsAffected 为 0 不算错误：崩溃恢复重跑时字段值可能与上次相同
	return nil
}
