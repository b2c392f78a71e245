package engine

import "time"

// Transaction 引擎视角的交易（由编排层从导入流水转换而来，只读）
type Transaction struct {
	ID        string    // transaction_id_asersi
	SummaryID int64     // 所属批次
	Seq       int       // 摄入顺序（时间戳相同时的稳定排序依据）
	Time      time.Time // 交易时间（tanggal + jam 解析结果）

	Volume         *float64 // 加油体积（升），可能缺失
	PlatNomor      string   // 车牌号
	NIK            string   // 身份证号
	WarnaPlat      string   // 车牌颜色
	ConsumerType   string   // 车轮数（jumlah_roda_kendaraan）
	DuplicateCount int      // 导入阶段统计的重复次数
}

// volumeOrZero 缺失体积按 0 参与累计，但交易仍是分组成员
func (t *Transaction) volumeOrZero() float64 {
	if t.Volume == nil {
		return 0
	}
	return *t.Volume
}

// Finding 单笔交易的评估结果（命中规则 + 证据）
type Finding struct {
	IsAnomalous      bool
	Flags            []string               // 命中的规则代码（可多条）
	ViolationDetails map[string]interface{} // 规则代码 → 证据
}

// flag 记录一次规则命中（同一规则重复命中只保留首个证据）
func (f *Finding) flag(code string, detail interface{}) {
	if _, dup := f.ViolationDetails[code]; dup {
		return
	}
	f.IsAnomalous = true
	f.Flags = append(f.Flags, code)
	f.ViolationDetails[code] = detail
}
