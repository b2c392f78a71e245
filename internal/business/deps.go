package business

import (
	"context"

	"spbu/anomsync/internal/business/engine"
	"spbu/anomsync/internal/entity"
)

// Template 已解析的规则模板（纯内存值）
// 模板的关联关系在执行开始时一次性解析为平铺的规则列表，
// 临时（ad-hoc）模板只存在于执行期间，不落规则目录
type Template struct {
	ID       int64
	Name     string
	Criteria []engine.Criterion
}

// RuleCodes 返回模板内全部规则代码（审计字段用）
func (t *Template) RuleCodes() []string {
	codes := make([]string, 0, len(t.Criteria))
	for _, c := range t.Criteria {
		codes = append(codes, c.RuleCode())
	}
	return codes
}

// ExecutionDAO 执行与批次状态存取（实现在 pkg/infra/mysql）
type ExecutionDAO interface {
	// GetExecution 按 ID 查询执行记录，不存在返回 nil
	GetExecution(ctx context.Context, executionID string) (*entity.AnomalyExecution, error)

	// MarkProcessing 执行转入 PROCESSING 并记录开始时间
	MarkProcessing(ctx context.Context, executionID string, totalBatches int) error

	// MarkTerminal 执行转入终态（COMPLETED/FAILED）并记录完成时间
	MarkTerminal(ctx context.Context, executionID string, status string) error

	// SetRulesApplied 记录本次执行实际应用的规则代码
	SetRulesApplied(ctx context.Context, executionID string, codes []string) error

	// ListBatches 查询执行下的全部批次，按提交顺序（detail_id 升序）
	ListBatches(ctx context.Context, executionID string) ([]*entity.AnomalyExecutionBatch, error)

	// CreateBatch 创建批次记录
	CreateBatch(ctx context.Context, batch *entity.AnomalyExecutionBatch) error

	// UpdateBatch 更新批次状态
	UpdateBatch(ctx context.Context, detailID int64, status string, anomaliesFound int, errorMessage string) error
}

// TransactionDAO 交易流水读取（引擎只读）
type TransactionDAO interface {
	// FetchBySummaryID 拉取一个批次的全部交易，按摄入顺序
	FetchBySummaryID(ctx context.Context, summaryID int64) ([]*entity.TransactionLog, error)
}

// TemplateDAO 规则目录读取（引擎只读）
type TemplateDAO interface {
	// ResolveTemplate 解析模板及其关联规则，未找到返回 nil
	ResolveTemplate(ctx context.Context, templateID int64) (*Template, error)

	// ResolveDefaultTemplate 解析默认模板（is_default），未找到返回 nil
	ResolveDefaultTemplate(ctx context.Context) (*Template, error)

	// ResolveCriteria 按 ID 列表解析规则（ad-hoc 模板用）
	ResolveCriteria(ctx context.Context, volumeIDs, specialIDs, accumulatedIDs []int64) ([]engine.Criterion, error)
}

// ResultDAO 分析结果的幂等写入与查询
type ResultDAO interface {
	// UpsertResults 批量写入结果：(execution_id, transaction_id) 已存在则覆盖
	UpsertResults(ctx context.Context, results []*entity.AnomalyResult) error

	// ListByExecution 查询一次执行的全部结果
	ListByExecution(ctx context.Context, executionID string) ([]*entity.AnomalyResult, error)
}

// ProgressCounters 进度计数器
type ProgressCounters struct {
	BatchIndex     int   `json:"batch_index"`
	TotalBatches   int   `json:"total_batches"`
	SummaryID      int64 `json:"summary_id"`
	Processed      int   `json:"processed"`
	Total          int   `json:"total"`
	AnomaliesFound int   `json:"anomalies_found"`
}

// ProgressSink 进度上报接口
// 旁路状态：外部轮询方只读展示，last-write-wins，不参与正确性判断
type ProgressSink interface {
	Report(ctx context.Context, executionID string, message string, counters ProgressCounters) error
}

// CallbackPublisher 回调消息发布接口（lmstfy 适配）
type CallbackPublisher interface {
	Publish(queue string, data []byte, ttl, delay uint32) error
}
