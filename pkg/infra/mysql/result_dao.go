package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spbu/anomsync/internal/entity"
)

// ResultDAO 分析结果数据访问对象
type ResultDAO struct {
	db *gorm.DB
}

// NewResultDAO 创建 ResultDAO 实例
func NewResultDAO(db *gorm.DB) *ResultDAO {
	return &ResultDAO{db: db}
}

// UpsertResults 批量写入结果
// 主键 (execution_id, transaction_id_asersi) 冲突时覆盖可变列，
// 同一执行重复投递/批次重跑只更新，不产生重复行
func (dao *ResultDAO) UpsertResults(ctx context.Context, results []*entity.AnomalyResult) error {
	if len(results) == 0 {
		return nil
	}

	err := dao.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "execution_id"},
				{Name: "transaction_id_asersi"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"summary_id",
				"template_id",
				"is_anomalous",
				"anomaly_flags",
				"violation_details",
				"anomaly_datetime",
				"updated_at",
			}),
		}).
		Create(&results).Error
	if err != nil {
		return fmt.Errorf("failed to upsert results: %w", err)
	}
	return nil
}

// ListByExecution 查询一次执行的全部结果
func (dao *ResultDAO) ListByExecution(ctx context.Context, executionID string) ([]*entity.AnomalyResult, error) {
	var results []*entity.AnomalyResult
	err := dao.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("transaction_id_asersi ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}
