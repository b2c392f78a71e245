package engine

import (
	"sort"
	"strings"
	"time"
)

// Evaluate 对一个批次的交易应用全部规则（纯内存计算，无 I/O）
// 返回每笔交易的评估结果，未命中任何规则的交易也有显式的"无异常"条目，
// 以便重跑时覆盖掉上一轮误报的结果。
func Evaluate(txs []Transaction, criteria []Criterion) map[string]*Finding {
	findings := make(map[string]*Finding, len(txs))
	for i := range txs {
		findings[txs[i].ID] = &Finding{
			ViolationDetails: make(map[string]interface{}),
		}
	}

	// 各规则独立评估，命中结果按交易合并（flags 累加）
	for _, c := range criteria {
		switch c := c.(type) {
		case ThresholdCriterion:
			evalThreshold(txs, c, findings)
		case SpecialCriterion:
			if c.Code == PredicateIntervalTooClose {
				evalInterval(txs, c, findings)
			} else {
				evalSpecial(txs, c, findings)
			}
		case AccumulatedCriterion:
			evalAccumulated(txs, c, findings)
		}
	}

	return findings
}

// evalThreshold 单笔阈值规则：volume 严格大于阈值 + 车牌颜色命中 + 消费者类型一致
func evalThreshold(txs []Transaction, c ThresholdCriterion, findings map[string]*Finding) {
	for i := range txs {
		t := &txs[i]
		if t.Volume == nil || *t.Volume <= c.MinVolumeLiter {
			continue
		}
		if !plateColorMatches(t.WarnaPlat, c.PlateColors) {
			continue
		}
		if c.ConsumerType == "" || t.ConsumerType != c.ConsumerType {
			continue
		}

		findings[t.ID].flag(c.Code, map[string]interface{}{
			"threshold":     c.MinVolumeLiter,
			"actual_volume": *t.Volume,
			"plate_color":   t.WarnaPlat,
			"consumer_type": t.ConsumerType,
		})
	}
}

// plateColorMatches 车牌颜色集合匹配（忽略大小写；空集合不命中）
func plateColorMatches(color string, allowed []string) bool {
	if color == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(color, a) {
			return true
		}
	}
	return false
}

// evalSpecial 特殊谓词规则（按规则代码分派）
func evalSpecial(txs []Transaction, c SpecialCriterion, findings map[string]*Finding) {
	for i := range txs {
		t := &txs[i]

		switch c.Code {
		case PredicateMissingPlate:
			if strings.TrimSpace(t.PlatNomor) == "" {
				findings[t.ID].flag(c.Code, map[string]interface{}{
					"message": c.Description,
				})
			}

		case PredicateMissingNIK:
			if strings.TrimSpace(t.NIK) == "" {
				findings[t.ID].flag(c.Code, map[string]interface{}{
					"message": c.Description,
				})
			}

		case PredicateDuplicate:
			// 直接信任导入阶段的重复计数，分析时不重算
			if t.DuplicateCount > 0 {
				findings[t.ID].flag(c.Code, map[string]interface{}{
					"message":         c.Description,
					"duplicate_count": t.DuplicateCount,
				})
			}

		case PredicateRedPlate:
			if strings.EqualFold(t.WarnaPlat, "merah") {
				findings[t.ID].flag(c.Code, map[string]interface{}{
					"message":     c.Description,
					"plate_color": t.WarnaPlat,
				})
			}
		}
	}
}

// evalInterval 间隔过近规则：同车牌按时间排序，与前一笔的间隔小于阈值秒数即异常
// 组内第一笔没有前驱，永不判为异常
func evalInterval(txs []Transaction, c SpecialCriterion, findings map[string]*Finding) {
	if c.IntervalSeconds <= 0 {
		return
	}

	for _, group := range groupSorted(txs, GroupByPlatNomor) {
		for i := 1; i < len(group); i++ {
			cur, prev := group[i], group[i-1]
			gap := cur.Time.Sub(prev.Time).Seconds()
			if gap < float64(c.IntervalSeconds) {
				findings[cur.ID].flag(c.Code, map[string]interface{}{
					"message":                    c.Description,
					"interval_threshold_seconds": c.IntervalSeconds,
					"actual_interval_seconds":    gap,
					"previous_transaction_id":    prev.ID,
				})
			}
		}
	}
}

// evalAccumulated 时间窗累计规则：组内按时间排序，
// 用双指针滑动窗口累计 (t−window, t] 内的体积，严格大于阈值即异常。
// 窗口随右端点单调推进，整组只扫一遍（O(n)）。
func evalAccumulated(txs []Transaction, c AccumulatedCriterion, findings map[string]*Finding) {
	if c.TimeWindowHours <= 0 {
		return
	}
	window := time.Duration(c.TimeWindowHours) * time.Hour

	for key, group := range groupSortedWithKey(txs, c.GroupByField) {
		sum := 0.0
		lo := 0
		for hi := 0; hi < len(group); hi++ {
			sum += group[hi].volumeOrZero()

			// 收缩窗口：剔除时间戳 ≤ t−window 的尾部交易
			cutoff := group[hi].Time.Add(-window)
			for lo < hi && !group[lo].Time.After(cutoff) {
				sum -= group[lo].volumeOrZero()
				lo++
			}

			if sum > c.ThresholdValue {
				findings[group[hi].ID].flag(c.Code, map[string]interface{}{
					"threshold":              c.ThresholdValue,
					"accumulated_volume":     sum,
					"window_hours":           c.TimeWindowHours,
					"group_by":               c.GroupByField,
					"group_key":              key,
					"transactions_in_window": hi - lo + 1,
				})
			}
		}
	}
}

// groupSorted 按分组字段聚合并排序，丢弃键为空的交易
func groupSorted(txs []Transaction, field string) [][]*Transaction {
	groups := groupSortedWithKey(txs, field)
	out := make([][]*Transaction, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}

// groupSortedWithKey 按分组字段聚合，组内按 (时间, 摄入顺序) 稳定排序
// 排序靠摄入顺序而不是交易 ID 打破平局，保证重跑结果确定
func groupSortedWithKey(txs []Transaction, field string) map[string][]*Transaction {
	groups := make(map[string][]*Transaction)
	for i := range txs {
		key := groupKey(&txs[i], field)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], &txs[i])
	}

	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Time.Equal(group[j].Time) {
				return group[i].Seq < group[j].Seq
			}
			return group[i].Time.Before(group[j].Time)
		})
	}

	return groups
}

// groupKey 取分组键
func groupKey(t *Transaction, field string) string {
	switch field {
	case GroupByNIK:
		return strings.TrimSpace(t.NIK)
	default:
		return strings.TrimSpace(t.PlatNomor)
	}
}
