package business

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"spbu/anomsync/internal/business/engine"
	"spbu/anomsync/internal/entity"
	"spbu/anomsync/internal/model"
	"spbu/anomsync/pkg/errorutil"
	"spbu/anomsync/pkg/logger"
)

// 交易时间戳格式（tanggal + jam 拼接后解析）
const transactionTimeLayout = "2006-01-02 15:04:05"

// AnalysisRequest 一次分析执行的输入参数（来自队列消息）
type AnalysisRequest struct {
	RequestID   string  // 链路追踪 ID
	ExecutionID string  // 执行 ID（调用方生成的全局唯一幂等键）
	TemplateID  int64   // 模板 ID（0 表示未指定）
	SummaryIDs  []int64 // 请求分析的批次列表（提交顺序）

	// ad-hoc 模式：调用方直接给规则 ID 列表，合成执行期临时模板
	TransactionCriteriaIDs []int64
	SpecialCriteriaIDs     []int64
	AccumulatedCriteriaIDs []int64
}

// AnalysisServiceConfig 编排器配置
type AnalysisServiceConfig struct {
	CallbackQueue string // 完成回调队列（为空则不发回调）
	ChunkSize     int    // 结果写入分片大小
	ProgressEvery int    // 每写入 N 条上报一次进度
}

// AnalysisService 执行编排器
// 驱动一次执行从 PENDING 到终态：解析模板 → 逐批次拉取交易 →
// 调用评估引擎 → 分片幂等写入结果 → 更新批次/执行状态。
// 批次之间相互隔离：单个批次失败不影响兄弟批次。
type AnalysisService struct {
	executions   ExecutionDAO
	transactions TransactionDAO
	templates    TemplateDAO
	results      ResultDAO
	progress     ProgressSink      // 显式注入，不走全局任务上下文
	publisher    CallbackPublisher // 可为 nil（不发回调）

	callbackQueue string
	chunkSize     int
	progressEvery int
	logger        logger.Logger
}

// NewAnalysisService 创建执行编排器
func NewAnalysisService(
	executions ExecutionDAO,
	transactions TransactionDAO,
	templates TemplateDAO,
	results ResultDAO,
	progress ProgressSink,
	publisher CallbackPublisher,
	cfg AnalysisServiceConfig,
	log logger.Logger,
) *AnalysisService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = cfg.ChunkSize
	}

	return &AnalysisService{
		executions:    executions,
		transactions:  transactions,
		templates:     templates,
		results:       results,
		progress:      progress,
		publisher:     publisher,
		callbackQueue: cfg.CallbackQueue,
		chunkSize:     cfg.ChunkSize,
		progressEvery: cfg.ProgressEvery,
		logger:        log,
	}
}

// RunExecution 同步执行一次分析，批次粒度幂等：
// 崩溃后对同一 execution_id 重新投递即可恢复，已完成批次跳过，
// 未完成批次重新评估（结果写入按 (execution_id, transaction_id) 覆盖）。
func (s *AnalysisService) RunExecution(ctx context.Context, req *AnalysisRequest) error {
	ctx = context.WithValue(ctx, "execution_id", req.ExecutionID)

	// 1. 加载执行记录
	exec, err := s.executions.GetExecution(ctx, req.ExecutionID)
	if err != nil {
		// 任何写入发生之前的存储故障：保持可重试，不落终态
		return errorutil.Transient("load execution failed", err)
	}
	if exec == nil {
		// 调用方错误，重试无意义
		return errorutil.NonRetriable(fmt.Sprintf("execution %s not found", req.ExecutionID))
	}
	if exec.IsTerminal() {
		// 终态不可重入：at-least-once 投递下的重复消息直接确认
		s.logger.Warnf(ctx, "[AnalysisService] Execution %s already %s, skipping", exec.ExecutionID, exec.Status)
		return nil
	}

	// 2. 批次对齐：已有批次记录 + 请求中缺失的 summary_id 补建
	batches, err := s.ensureBatches(ctx, req)
	if err != nil {
		return errorutil.Transient("prepare batches failed", err)
	}

	// 3. 执行转入 PROCESSING
	if err := s.executions.MarkProcessing(ctx, req.ExecutionID, len(batches)); err != nil {
		return errorutil.Transient("mark processing failed", err)
	}

	s.logger.Infof(ctx, "[AnalysisService] Execution %s started: %d batches, template_id=%d",
		req.ExecutionID, len(batches), req.TemplateID)

	// 4. 解析模板
	// 模板缺失是配置错误，只影响批次粒度：不放弃整个执行，
	// 逐批次标记 FAILED，让状态对调用方可见
	template, cfgErr := s.resolveTemplate(ctx, req)
	if cfgErr == nil {
		if err := s.executions.SetRulesApplied(ctx, req.ExecutionID, template.RuleCodes()); err != nil {
			s.logger.Warnf(ctx, "[AnalysisService] Record rules_applied failed: %v", err)
		}
	} else {
		s.logger.Errorf(ctx, "[AnalysisService] Template resolution failed: %v", cfgErr)
	}

	// 5. 按提交顺序处理批次
	succeeded, failed := 0, 0
	totalAnomalies := 0
	for i, batch := range batches {
		if batch.BatchStatus == entity.BatchStatusCompleted {
			// 恢复场景：已完成批次不重算（重算也安全，结果写入幂等）
			succeeded++
			totalAnomalies += batch.AnomaliesFound
			continue
		}

		anomalies, batchErr := s.processBatch(ctx, exec, template, cfgErr, batch, i, len(batches))
		if batchErr != nil {
			s.logger.Errorf(ctx, "[AnalysisService] Batch summary_id=%d failed: %v", batch.SummaryID, batchErr)
			if err := s.executions.UpdateBatch(ctx, batch.DetailID, entity.BatchStatusFailed, 0, batchErr.Error()); err != nil {
				s.logger.Errorf(ctx, "[AnalysisService] Record batch failure failed: %v", err)
			}
			failed++
			continue
		}

		if err := s.executions.UpdateBatch(ctx, batch.DetailID, entity.BatchStatusCompleted, anomalies, ""); err != nil {
			s.logger.Errorf(ctx, "[AnalysisService] Record batch completion failed: %v", err)
			failed++
			continue
		}
		succeeded++
		totalAnomalies += anomalies
	}

	// 6. 执行终态：至少一个批次成功 → COMPLETED，全部失败 → FAILED
	status := entity.ExecutionStatusCompleted
	if len(batches) > 0 && succeeded == 0 {
		status = entity.ExecutionStatusFailed
	}
	if err := s.executions.MarkTerminal(ctx, req.ExecutionID, status); err != nil {
		return errorutil.Transient("mark terminal failed", err)
	}

	s.reportProgress(ctx, req.ExecutionID,
		fmt.Sprintf("execution %s: %d/%d batches succeeded, %d anomalies found", status, succeeded, len(batches), totalAnomalies),
		ProgressCounters{
			BatchIndex:     len(batches),
			TotalBatches:   len(batches),
			AnomaliesFound: totalAnomalies,
		})

	s.logger.Infof(ctx, "[AnalysisService] Execution %s finished: status=%s, anomalies=%d, failed_batches=%d",
		req.ExecutionID, status, totalAnomalies, failed)

	// 7. 发布完成回调
	s.publishCallback(ctx, req, status, totalAnomalies, failed, cfgErr)

	return nil
}

// ensureBatches 对齐批次记录：已存在的按 detail_id 顺序保留，
// 请求中缺失的 summary_id 按提交顺序补建
func (s *AnalysisService) ensureBatches(ctx context.Context, req *AnalysisRequest) ([]*entity.AnomalyExecutionBatch, error) {
	existing, err := s.executions.ListBatches(ctx, req.ExecutionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(existing))
	for _, b := range existing {
		seen[b.SummaryID] = true
	}

	batches := existing
	for _, summaryID := range req.SummaryIDs {
		if seen[summaryID] {
			continue
		}
		seen[summaryID] = true

		batch := &entity.AnomalyExecutionBatch{
			ExecutionID: req.ExecutionID,
			SummaryID:   summaryID,
			BatchStatus: entity.BatchStatusQueued,
		}
		if err := s.executions.CreateBatch(ctx, batch); err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

// resolveTemplate 解析本次执行使用的模板
// 优先级：显式 template_id > 规则 ID 列表（ad-hoc 临时模板）> 默认模板
func (s *AnalysisService) resolveTemplate(ctx context.Context, req *AnalysisRequest) (*Template, error) {
	switch {
	case req.TemplateID > 0:
		tpl, err := s.templates.ResolveTemplate(ctx, req.TemplateID)
		if err != nil {
			return nil, errorutil.Configuration("resolve template %d failed: %v", req.TemplateID, err)
		}
		if tpl == nil {
			return nil, errorutil.Configuration("template %d not found", req.TemplateID)
		}
		return tpl, nil

	case len(req.TransactionCriteriaIDs)+len(req.SpecialCriteriaIDs)+len(req.AccumulatedCriteriaIDs) > 0:
		criteria, err := s.templates.ResolveCriteria(ctx,
			req.TransactionCriteriaIDs, req.SpecialCriteriaIDs, req.AccumulatedCriteriaIDs)
		if err != nil {
			return nil, errorutil.Configuration("resolve ad-hoc criteria failed: %v", err)
		}
		if len(criteria) == 0 {
			return nil, errorutil.Configuration("no criteria resolved for ad-hoc template")
		}
		// 执行期临时模板：不写入规则目录，不跨执行复用
		return &Template{ID: req.TemplateID, Name: "ad-hoc", Criteria: criteria}, nil

	default:
		tpl, err := s.templates.ResolveDefaultTemplate(ctx)
		if err != nil {
			return nil, errorutil.Configuration("resolve default template failed: %v", err)
		}
		if tpl == nil {
			return nil, errorutil.Configuration("no default template configured")
		}
		return tpl, nil
	}
}

// processBatch 处理单个批次，返回命中异常的交易数
func (s *AnalysisService) processBatch(
	ctx context.Context,
	exec *entity.AnomalyExecution,
	template *Template,
	cfgErr error,
	batch *entity.AnomalyExecutionBatch,
	idx, total int,
) (int, error) {
	if err := s.executions.UpdateBatch(ctx, batch.DetailID, entity.BatchStatusProcessing, batch.AnomaliesFound, ""); err != nil {
		return 0, errorutil.Persistence("advance batch to PROCESSING failed", err)
	}

	// 配置错误隔离到本批次
	if cfgErr != nil {
		return 0, cfgErr
	}

	// 拉取批次交易（一次加载，内存中同步评估）
	logs, err := s.transactions.FetchBySummaryID(ctx, batch.SummaryID)
	if err != nil {
		return 0, errorutil.Persistence("fetch transactions failed", err)
	}

	s.reportProgress(ctx, exec.ExecutionID,
		fmt.Sprintf("batch %d/%d (summary %d): %d transactions loaded", idx+1, total, batch.SummaryID, len(logs)),
		ProgressCounters{
			BatchIndex:   idx + 1,
			TotalBatches: total,
			SummaryID:    batch.SummaryID,
			Total:        len(logs),
		})

	// 转换为引擎交易：损坏记录（时间戳不可解析）跳过并告警，不中断批次
	txs := make([]engine.Transaction, 0, len(logs))
	for seq, row := range logs {
		t, convErr := toEngineTransaction(row, seq)
		if convErr != nil {
			s.logger.Warnf(ctx, "[AnalysisService] Skipping transaction %s: %v", row.TransactionID, convErr)
			continue
		}
		txs = append(txs, t)
	}

	findings := engine.Evaluate(txs, template.Criteria)

	// 分片幂等写入：限制单次事务大小，同时让进度可被外部观察
	anomalies := 0
	now := time.Now()
	written := 0
	lastReported := 0
	pending := make([]*entity.AnomalyResult, 0, s.chunkSize)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := s.results.UpsertResults(ctx, pending); err != nil {
			return errorutil.Persistence("upsert results failed", err)
		}
		written += len(pending)
		pending = pending[:0]

		if written-lastReported >= s.progressEvery {
			lastReported = written
			s.reportProgress(ctx, exec.ExecutionID,
				fmt.Sprintf("batch %d/%d (summary %d): %d/%d results written", idx+1, total, batch.SummaryID, written, len(txs)),
				ProgressCounters{
					BatchIndex:     idx + 1,
					TotalBatches:   total,
					SummaryID:      batch.SummaryID,
					Processed:      written,
					Total:          len(txs),
					AnomaliesFound: anomalies,
				})
		}
		return nil
	}

	for i := range txs {
		f := findings[txs[i].ID]
		if f.IsAnomalous {
			anomalies++
		}

		row, buildErr := buildResult(exec, batch, &txs[i], f, now)
		if buildErr != nil {
			return 0, errorutil.Persistence("encode result failed", buildErr)
		}
		pending = append(pending, row)

		if len(pending) >= s.chunkSize {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}

	// 批次边界进度
	s.reportProgress(ctx, exec.ExecutionID,
		fmt.Sprintf("batch %d/%d (summary %d) done: %d anomalies in %d transactions", idx+1, total, batch.SummaryID, anomalies, written),
		ProgressCounters{
			BatchIndex:     idx + 1,
			TotalBatches:   total,
			SummaryID:      batch.SummaryID,
			Processed:      written,
			Total:          len(txs),
			AnomaliesFound: anomalies,
		})

	return anomalies, nil
}

// reportProgress 进度上报（旁路状态，失败只告警）
func (s *AnalysisService) reportProgress(ctx context.Context, executionID, message string, counters ProgressCounters) {
	if s.progress == nil {
		return
	}
	if err := s.progress.Report(ctx, executionID, message, counters); err != nil {
		s.logger.Warnf(ctx, "[AnalysisService] Progress report failed: %v", err)
	}
}

// publishCallback 发布完成回调（失败不影响已落库的终态）
func (s *AnalysisService) publishCallback(
	ctx context.Context,
	req *AnalysisRequest,
	status string,
	totalAnomalies, failedBatches int,
	cfgErr error,
) {
	if s.publisher == nil || s.callbackQueue == "" {
		return
	}

	callback := model.AnalysisCallback{
		RequestID:      req.RequestID,
		ExecutionID:    req.ExecutionID,
		Status:         status,
		TotalAnomalies: totalAnomalies,
		FailedBatches:  failedBatches,
		ProcessedAt:    time.Now().Unix(),
	}
	if status == entity.ExecutionStatusFailed && cfgErr != nil {
		callback.Error = cfgErr.Error()
	}

	data, err := json.Marshal(callback)
	if err != nil {
		s.logger.Errorf(ctx, "[AnalysisService] Marshal callback failed: %v", err)
		return
	}

	// ttl=0 表示永不过期, delay=0 表示立即可用
	if err := s.publisher.Publish(s.callbackQueue, data, 0, 0); err != nil {
		s.logger.Errorf(ctx, "[AnalysisService] Publish callback failed: %v", err)
	}
}

// toEngineTransaction 导入流水转引擎交易
func toEngineTransaction(row *entity.TransactionLog, seq int) (engine.Transaction, error) {
	raw := strings.TrimSpace(row.Tanggal) + " " + strings.TrimSpace(row.Jam)
	ts, err := time.Parse(transactionTimeLayout, raw)
	if err != nil {
		return engine.Transaction{}, errorutil.Data("invalid transaction time %q: %v", raw, err)
	}

	return engine.Transaction{
		ID:             row.TransactionID,
		SummaryID:      row.DailySummaryID,
		Seq:            seq,
		Time:           ts,
		Volume:         row.VolumeLiter,
		PlatNomor:      row.PlatNomor,
		NIK:            row.NIK,
		WarnaPlat:      row.WarnaPlat,
		ConsumerType:   row.JumlahRodaKendaraan,
		DuplicateCount: row.DuplicateCount,
	}, nil
}

// buildResult 构造结果行（无异常的交易也写显式条目，重跑可清除历史误报）
func buildResult(
	exec *entity.AnomalyExecution,
	batch *entity.AnomalyExecutionBatch,
	tx *engine.Transaction,
	f *engine.Finding,
	now time.Time,
) (*entity.AnomalyResult, error) {
	flags := f.Flags
	if flags == nil {
		flags = []string{}
	}
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return nil, err
	}
	detailsJSON, err := json.Marshal(f.ViolationDetails)
	if err != nil {
		return nil, err
	}

	return &entity.AnomalyResult{
		ExecutionID:      exec.ExecutionID,
		TransactionID:    tx.ID,
		SummaryID:        batch.SummaryID,
		TemplateID:       exec.TemplateID,
		IsAnomalous:      f.IsAnomalous,
		AnomalyFlags:     flagsJSON,
		ViolationDetails: detailsJSON,
		AnomalyDatetime:  now,
	}, nil
}
