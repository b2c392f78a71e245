package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"spbu/anomsync/internal/entity"
)

// TransactionDAO 交易流水数据访问对象（引擎只读）
type TransactionDAO struct {
	db *gorm.DB
}

// NewTransactionDAO 创建 TransactionDAO 实例
func NewTransactionDAO(db *gorm.DB) *TransactionDAO {
	return &TransactionDAO{db: db}
}

// FetchBySummaryID 拉取一个批次的全部交易，按摄入顺序（自增 id 升序）
// 摄入顺序在规则评估里用来打破时间戳平局，保证重跑结果确定
func (dao *TransactionDAO) FetchBySummaryID(ctx context.Context, summaryID int64) ([]*entity.TransactionLog, error) {
	var logs []*entity.TransactionLog
	result := dao.db.WithContext(ctx).
		Where("daily_summary_id = ?", summaryID).
		Order("id ASC").
		Find(&logs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", result.Error)
	}
	return logs, nil
}
