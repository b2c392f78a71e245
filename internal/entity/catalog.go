package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AnomalyTemplate 规则模板（对引擎只读）
type AnomalyTemplate struct {
	TemplateID  int64  `gorm:"column:template_id;primaryKey;autoIncrement"`
	RoleName    string `gorm:"column:role_name;uniqueIndex;not null"`
	Description string `gorm:"column:description"`
	IsDefault   bool   `gorm:"column:is_default;default:false"`
	CreatedBy   string `gorm:"column:created_by"`

	CreatedAt time.Time `gorm:"column:created_datetime"`
	UpdatedAt time.Time `gorm:"column:last_modified"`
}

// TableName 指定表名
func (AnomalyTemplate) TableName() string {
	return "anomaly_template_master"
}

// TransactionCriteria 单笔交易阈值规则
type TransactionCriteria struct {
	CriteriaID     int64          `gorm:"column:criteria_id;primaryKey;autoIncrement"`
	AnomalyType    string         `gorm:"column:anomaly_type;not null"` // 规则代码，如 SINGLE_VOLUME_EXCEED
	MinVolumeLiter float64        `gorm:"column:min_volume_liter;not null"`
	PlateColor     datatypes.JSON `gorm:"column:plate_color;type:json"` // 命中的车牌颜色集合
	ConsumerType   string         `gorm:"column:consumer_type;not null"`
	Description    string         `gorm:"column:description"`
	IsActive       bool           `gorm:"column:is_active;default:true"`
}

// TableName 指定表名
func (TransactionCriteria) TableName() string {
	return "transaction_anomaly_criteria"
}

// SpecialCriteria 特殊谓词规则（缺失字段、红牌、重复、间隔过近）
type SpecialCriteria struct {
	SpecialCriteriaID int64  `gorm:"column:special_criteria_id;primaryKey;autoIncrement"`
	CriteriaCode      string `gorm:"column:criteria_code;uniqueIndex;not null"`
	CriteriaName      string `gorm:"column:criteria_name;not null"`
	Value             string `gorm:"column:value"` // 规则参数（如间隔秒数）
	Unit              string `gorm:"column:unit"`
	ViolationRule     string `gorm:"column:violation_rule;not null"`
	Description       string `gorm:"column:description"`
}

// TableName 指定表名
func (SpecialCriteria) TableName() string {
	return "special_anomaly_criteria"
}

// AccumulatedCriteria 时间窗累计规则
type AccumulatedCriteria struct {
	AccumulatedCriteriaID int64   `gorm:"column:accumulated_criteria_id;primaryKey;autoIncrement"`
	CriteriaCode          string  `gorm:"column:criteria_code;uniqueIndex;not null"`
	CriteriaName          string  `gorm:"column:criteria_name;not null"`
	ThresholdValue        float64 `gorm:"column:threshold_value;type:decimal(20,3);not null"`
	TimeWindowHours       int     `gorm:"column:time_window_hours;default:24"`
	GroupByField          string  `gorm:"column:group_by_field;not null"` // plat_nomor | nik
	Description           string  `gorm:"column:description"`
	IsActive              bool    `gorm:"column:is_active;default:true"`
}

// TableName 指定表名
func (AccumulatedCriteria) TableName() string {
	return "accumulated_anomaly_criteria"
}

// TemplateCriteriaVolume 模板 ↔ 阈值规则关联表
type TemplateCriteriaVolume struct {
	ID         int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TemplateID int64 `gorm:"column:template_id;index:idx_template_volume"`
	CriteriaID int64 `gorm:"column:criteria_id"`
}

// TableName 指定表名
func (TemplateCriteriaVolume) TableName() string {
	return "template_criteria_volume"
}

// TemplateCriteriaSpecial 模板 ↔ 特殊规则关联表
type TemplateCriteriaSpecial struct {
	ID                int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TemplateID        int64 `gorm:"column:template_id;index:idx_template_special"`
	SpecialCriteriaID int64 `gorm:"column:special_criteria_id"`
}

// TableName 指定表名
func (TemplateCriteriaSpecial) TableName() string {
	return "template_criteria_special"
}

// TemplateCriteriaAccumulated 模板 ↔ 累计规则关联表
type TemplateCriteriaAccumulated struct {
	ID                    int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TemplateID            int64 `gorm:"column:template_id;index:idx_template_accumulated"`
	AccumulatedCriteriaID int64 `gorm:"column:accumulated_criteria_id"`
}

// TableName 指定表名
func (TemplateCriteriaAccumulated) TableName() string {
	return "template_criteria_accumulated"
}
