package model

// AnalysisCallback 分析完成回调消息（worker → 状态消费方）
type AnalysisCallback struct {
	RequestID      string `json:"request_id"`                // 对应请求的 request_id（链路追踪）
	ExecutionID    string `json:"execution_id"`              // 执行 ID
	Status         string `json:"status"`                    // COMPLETED / FAILED
	TotalAnomalies int    `json:"total_anomalies"`           // 全部批次命中的异常总数
	FailedBatches  int    `json:"failed_batches,omitempty"`  // 失败批次数
	Error          string `json:"error,omitempty"`           // 错误信息（失败时返回）
	ProcessedAt    int64  `json:"processed_at"`              // 处理完成时间戳（Unix）
}
