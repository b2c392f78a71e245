package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AnomalyExecution 一次异常分析执行（针对一组批次 + 一个模板）
type AnomalyExecution struct {
	ExecutionID  string         `gorm:"column:execution_id;primaryKey;type:varchar(50)"`
	TemplateID   int64          `gorm:"column:template_id;not null"`
	Status       string         `gorm:"column:status;type:varchar(20);not null;index:idx_status"`
	ExecutedBy   string         `gorm:"column:executed_by;type:varchar(50)"`
	RulesApplied datatypes.JSON `gorm:"column:rules_applied;type:json"` // 实际应用的规则代码列表（审计用）
	TotalBatches int            `gorm:"column:total_batches;default:0"`
	StartedAt    *time.Time     `gorm:"column:started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (AnomalyExecution) TableName() string {
	return "anomaly_executions"
}

// 执行状态常量
// 生命周期：PENDING → PROCESSING → COMPLETED | FAILED（终态不可变）
const (
	ExecutionStatusPending    = "PENDING"
	ExecutionStatusProcessing = "PROCESSING"
	ExecutionStatusCompleted  = "COMPLETED"
	ExecutionStatusFailed     = "FAILED"
)

// IsTerminal 判断执行是否已到终态
func (e *AnomalyExecution) IsTerminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

// AnomalyExecutionBatch 执行内的单个批次（每个 summary_id 一条）
// 批次之间相互独立：一个批次失败不影响兄弟批次
type AnomalyExecutionBatch struct {
	DetailID       int64  `gorm:"column:detail_id;primaryKey;autoIncrement"`
	ExecutionID    string `gorm:"column:execution_id;type:varchar(50);not null;index:idx_execution"`
	SummaryID      int64  `gorm:"column:summary_id;not null"`
	BatchStatus    string `gorm:"column:batch_status;type:varchar(20)"`
	AnomaliesFound int    `gorm:"column:anomalies_found;default:0"`
	ErrorMessage   string `gorm:"column:error_message;type:varchar(512)"`
}

// TableName 指定表名
func (AnomalyExecutionBatch) TableName() string {
	return "anomaly_execution_batches"
}

// 批次状态常量
const (
	BatchStatusQueued     = "QUEUED"
	BatchStatusProcessing = "PROCESSING"
	BatchStatusCompleted  = "COMPLETED"
	BatchStatusFailed     = "FAILED"
)
