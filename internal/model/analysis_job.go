package model

// AnalysisJobData 异常分析任务的业务数据（Job 消息 payload.data.data 部分）
// template_id 与三个规则 ID 列表至少提供其一：
// 给 template_id 用目录模板，给 ID 列表则合成一次性的 ad-hoc 模板
type AnalysisJobData struct {
	ExecutionID string  `json:"execution_id"`
	TemplateID  int64   `json:"template_id"`
	SummaryIDs  []int64 `json:"summary_ids"`
	ExecutedBy  string  `json:"executed_by"`

	TransactionCriteriaIDs []int64 `json:"transaction_criteria_ids,omitempty"`
	SpecialCriteriaIDs     []int64 `json:"special_criteria_ids,omitempty"`
	AccumulatedCriteriaIDs []int64 `json:"accumulated_criteria_ids,omitempty"`
}

// ActionTypeAnalyze 异常分析任务的路由键
const ActionTypeAnalyze = "anomaly_analyze"
