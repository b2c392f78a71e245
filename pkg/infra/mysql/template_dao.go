package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"spbu/anomsync/internal/business"
	"spbu/anomsync/internal/business/engine"
	"spbu/anomsync/internal/entity"
)

// TemplateDAO 规则目录数据访问对象（引擎只读）
// 模板的关联规则在执行开始时一次性解析为平铺的 engine.Criterion 列表
type TemplateDAO struct {
	db *gorm.DB
}

// NewTemplateDAO 创建 TemplateDAO 实例
func NewTemplateDAO(db *gorm.DB) *TemplateDAO {
	return &TemplateDAO{db: db}
}

// ResolveTemplate 解析模板及其关联规则，未找到返回 nil
func (dao *TemplateDAO) ResolveTemplate(ctx context.Context, templateID int64) (*business.Template, error) {
	var tpl entity.AnomalyTemplate
	result := dao.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		First(&tpl)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template: %w", result.Error)
	}

	return dao.buildTemplate(ctx, &tpl)
}

// ResolveDefaultTemplate 解析默认模板（is_default），未找到返回 nil
func (dao *TemplateDAO) ResolveDefaultTemplate(ctx context.Context) (*business.Template, error) {
	var tpl entity.AnomalyTemplate
	result := dao.db.WithContext(ctx).
		Where("is_default = ?", true).
		Order("template_id ASC").
		First(&tpl)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get default template: %w", result.Error)
	}

	return dao.buildTemplate(ctx, &tpl)
}

// buildTemplate 按关联表展开模板的规则列表
func (dao *TemplateDAO) buildTemplate(ctx context.Context, tpl *entity.AnomalyTemplate) (*business.Template, error) {
	var volumeIDs, specialIDs, accumulatedIDs []int64

	if err := dao.db.WithContext(ctx).
		Model(&entity.TemplateCriteriaVolume{}).
		Where("template_id = ?", tpl.TemplateID).
		Pluck("criteria_id", &volumeIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list volume criteria links: %w", err)
	}

	if err := dao.db.WithContext(ctx).
		Model(&entity.TemplateCriteriaSpecial{}).
		Where("template_id = ?", tpl.TemplateID).
		Pluck("special_criteria_id", &specialIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list special criteria links: %w", err)
	}

	if err := dao.db.WithContext(ctx).
		Model(&entity.TemplateCriteriaAccumulated{}).
		Where("template_id = ?", tpl.TemplateID).
		Pluck("accumulated_criteria_id", &accumulatedIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list accumulated criteria links: %w", err)
	}

	criteria, err := dao.ResolveCriteria(ctx, volumeIDs, specialIDs, accumulatedIDs)
	if err != nil {
		return nil, err
	}

	return &business.Template{
		ID:       tpl.TemplateID,
		Name:     tpl.RoleName,
		Criteria: criteria,
	}, nil
}

// ResolveCriteria 按 ID 列表解析规则（模板展开和 ad-hoc 模板共用）
// 返回顺序固定：阈值规则 → 特殊规则 → 累计规则
func (dao *TemplateDAO) ResolveCriteria(ctx context.Context, volumeIDs, specialIDs, accumulatedIDs []int64) ([]engine.Criterion, error) {
	criteria := make([]engine.Criterion, 0, len(volumeIDs)+len(specialIDs)+len(accumulatedIDs))

	// 1. 单笔阈值规则（只取启用的）
	if len(volumeIDs) > 0 {
		var rows []*entity.TransactionCriteria
		if err := dao.db.WithContext(ctx).
			Where("criteria_id IN ? AND is_active = ?", volumeIDs, true).
			Order("criteria_id ASC").
			Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load transaction criteria: %w", err)
		}
		for _, row := range rows {
			c, err := toThresholdCriterion(row)
			if err != nil {
				return nil, err
			}
			criteria = append(criteria, c)
		}
	}

	// 2. 特殊谓词规则
	if len(specialIDs) > 0 {
		var rows []*entity.SpecialCriteria
		if err := dao.db.WithContext(ctx).
			Where("special_criteria_id IN ?", specialIDs).
			Order("special_criteria_id ASC").
			Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load special criteria: %w", err)
		}
		for _, row := range rows {
			criteria = append(criteria, toSpecialCriterion(row))
		}
	}

	// 3. 时间窗累计规则（只取启用的）
	if len(accumulatedIDs) > 0 {
		var rows []*entity.AccumulatedCriteria
		if err := dao.db.WithContext(ctx).
			Where("accumulated_criteria_id IN ? AND is_active = ?", accumulatedIDs, true).
			Order("accumulated_criteria_id ASC").
			Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load accumulated criteria: %w", err)
		}
		for _, row := range rows {
			criteria = append(criteria, toAccumulatedCriterion(row))
		}
	}

	return criteria, nil
}

// toThresholdCriterion 行转引擎规则（plate_color JSON 列转颜色集合）
func toThresholdCriterion(row *entity.TransactionCriteria) (engine.ThresholdCriterion, error) {
	var plateColors []string
	if len(row.PlateColor) > 0 {
		if err := json.Unmarshal(row.PlateColor, &plateColors); err != nil {
			return engine.ThresholdCriterion{}, fmt.Errorf("invalid plate_color for criteria %d: %w", row.CriteriaID, err)
		}
	}

	return engine.ThresholdCriterion{
		Code:           row.AnomalyType,
		MinVolumeLiter: row.MinVolumeLiter,
		PlateColors:    plateColors,
		ConsumerType:   row.ConsumerType,
		Description:    row.Description,
	}, nil
}

// toSpecialCriterion 行转引擎规则
// value 列按规则语义解释：间隔规则取秒数，解析失败按 0 处理（引擎会跳过该规则）
func toSpecialCriterion(row *entity.SpecialCriteria) engine.SpecialCriterion {
	c := engine.SpecialCriterion{
		Code:        row.CriteriaCode,
		Description: row.Description,
	}
	if row.CriteriaCode == engine.PredicateIntervalTooClose {
		if seconds, err := strconv.Atoi(row.Value); err == nil {
			c.IntervalSeconds = seconds
		}
	}
	return c
}

// toAccumulatedCriterion 行转引擎规则（分组字段缺省按车牌）
func toAccumulatedCriterion(row *entity.AccumulatedCriteria) engine.AccumulatedCriterion {
	groupBy := row.GroupByField
	if groupBy == "" {
		groupBy = engine.GroupByPlatNomor
	}

	return engine.AccumulatedCriterion{
		Code:            row.CriteriaCode,
		ThresholdValue:  row.ThresholdValue,
		TimeWindowHours: row.TimeWindowHours,
		GroupByField:    groupBy,
		Description:     row.Description,
	}
}
