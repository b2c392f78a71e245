package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AnomalyResult 单笔交易的分析结果
// 主键 (execution_id, transaction_id_asersi)：重复写入只覆盖，不新增
type AnomalyResult struct {
	ExecutionID   string `gorm:"column:execution_id;primaryKey;type:varchar(50)"`
	TransactionID string `gorm:"column:transaction_id_asersi;primaryKey;type:varchar(50)"`
	SummaryID     int64  `gorm:"column:summary_id;not null;index:idx_summary"`
	TemplateID    int64  `gorm:"column:template_id"`

	IsAnomalous      bool           `gorm:"column:is_anomalous;default:false"`
	AnomalyFlags     datatypes.JSON `gorm:"column:anomaly_flags;type:json"`     // 命中的规则代码列表
	ViolationDetails datatypes.JSON `gorm:"column:violation_details;type:json"` // 规则代码 → 证据

	AnomalyDatetime time.Time `gorm:"column:anomaly_datetime"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (AnomalyResult) TableName() string {
	return "anomaly_results"
}
