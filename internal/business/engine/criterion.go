package engine

// 特殊规则谓词代码（与规则目录中的 criteria_code 一致）
const (
	PredicateMissingPlate     = "MISSING_PLAT_NOMOR"             // 车牌缺失
	PredicateMissingNIK       = "MISSING_NIK"                    // 身份证号缺失
	PredicateDuplicate        = "DUPLICATE_TRANSACTION"          // 导入阶段判定的重复交易
	PredicateRedPlate         = "RED_PLATE_VEHICLE"              // 红牌（政府）车辆
	PredicateIntervalTooClose = "TRANSACTION_INTERVAL_TOO_CLOSE" // 同车牌两笔交易间隔过近
)

// 累计规则分组字段
const (
	GroupByPlatNomor = "plat_nomor"
	GroupByNIK       = "nik"
)

// Criterion 规则（和类型：三种变体之一，由引擎按类型分派）
type Criterion interface {
	// RuleCode 规则代码，作为结果中的 anomaly_flag
	RuleCode() string
}

// ThresholdCriterion 单笔交易阈值规则
// 同时满足三个条件才算异常：volume 严格大于阈值、车牌颜色命中集合（忽略大小写）、消费者类型完全一致
type ThresholdCriterion struct {
	Code           string   // 规则代码（如 SINGLE_VOLUME_EXCEED）
	MinVolumeLiter float64  // 体积阈值（升）
	PlateColors    []string // 命中的车牌颜色集合
	ConsumerType   string   // 消费者类型（车轮数）
	Description    string
}

// RuleCode 实现 Criterion 接口
func (c ThresholdCriterion) RuleCode() string { return c.Code }

// SpecialCriterion 特殊谓词规则
type SpecialCriterion struct {
	Code            string // 规则代码，同时是分派键
	IntervalSeconds int    // TRANSACTION_INTERVAL_TOO_CLOSE 的间隔秒数
	Description     string
}

// RuleCode 实现 Criterion 接口
func (c SpecialCriterion) RuleCode() string { return c.Code }

// AccumulatedCriterion 时间窗累计规则
// 同组（按 GroupByField 分组）交易在 (t−window, t] 内的累计体积严格大于阈值时判定异常
type AccumulatedCriterion struct {
	Code            string
	ThresholdValue  float64 // 累计体积阈值（升）
	TimeWindowHours int     // 回看窗口（小时）
	GroupByField    string  // plat_nomor | nik
	Description     string
}

// RuleCode 实现 Criterion 接口
func (c AccumulatedCriterion) RuleCode() string { return c.Code }
