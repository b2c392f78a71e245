package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", value)
	require.NoError(t, err)
	return ts
}

func vol(v float64) *float64 {
	return &v
}

func TestEvaluateThresholdBoundary(t *testing.T) {
	criteria := []Criterion{
		ThresholdCriterion{
			Code:           "SINGLE_VOLUME_EXCEED",
			MinVolumeLiter: 60,
			PlateColors:    []string{"kuning"},
			ConsumerType:   "6",
		},
	}

	base := mustTime(t, "2025-03-01 08:00:00")
	txs := []Transaction{
		{ID: "T1", Time: base, Volume: vol(60), PlatNomor: "B 1234 XYZ", WarnaPlat: "KUNING", ConsumerType: "6"},
		{ID: "T2", Time: base, Volume: vol(60.001), PlatNomor: "B 1235 XYZ", WarnaPlat: "kuning", ConsumerType: "6"},
		{ID: "T3", Time: base, Volume: vol(100), PlatNomor: "B 1236 XYZ", WarnaPlat: "hitam", ConsumerType: "6"},
		{ID: "T4", Time: base, Volume: vol(100), PlatNomor: "B 1237 XYZ", WarnaPlat: "kuning", ConsumerType: "4"},
		{ID: "T5", Time: base, Volume: nil, PlatNomor: "B 1238 XYZ", WarnaPlat: "kuning", ConsumerType: "6"},
	}

	findings := Evaluate(txs, criteria)

	// 等于阈值不算异常（严格大于）
	assert.False(t, findings["T1"].IsAnomalous)
	// 超出阈值 + 颜色忽略大小写命中
	assert.True(t, findings["T2"].IsAnomalous)
	assert.Equal(t, []string{"SINGLE_VOLUME_EXCEED"}, findings["T2"].Flags)
	// 颜色不在集合内
	assert.False(t, findings["T3"].IsAnomalous)
	// 消费者类型不一致
	assert.False(t, findings["T4"].IsAnomalous)
	// 体积缺失
	assert.False(t, findings["T5"].IsAnomalous)
}

func TestEvaluateThresholdEmptyColorSet(t *testing.T) {
	criteria := []Criterion{
		ThresholdCriterion{Code: "SINGLE_VOLUME_EXCEED", MinVolumeLiter: 10, ConsumerType: "6"},
	}
	txs := []Transaction{
		{ID: "T1", Time: mustTime(t, "2025-03-01 08:00:00"), Volume: vol(99), WarnaPlat: "kuning", ConsumerType: "6"},
	}

	findings := Evaluate(txs, criteria)

	// 空颜色集合任何交易都不命中
	assert.False(t, findings["T1"].IsAnomalous)
}

func TestEvaluateMissingFields(t *testing.T) {
	criteria := []Criterion{
		SpecialCriterion{Code: PredicateMissingPlate, Description: "plat nomor kosong"},
		SpecialCriterion{Code: PredicateMissingNIK, Description: "nik kosong"},
	}

	base := mustTime(t, "2025-03-01 08:00:00")
	txs := []Transaction{
		{ID: "T1", Time: base, PlatNomor: "", NIK: "317xxx"},
		{ID: "T2", Time: base, PlatNomor: "   ", NIK: "317xxx"},
		{ID: "T3", Time: base, PlatNomor: "B 1 A", NIK: ""},
		{ID: "T4", Time: base, PlatNomor: "B 1 A", NIK: "317xxx"},
	}

	findings := Evaluate(txs, criteria)

	assert.Equal(t, []string{PredicateMissingPlate}, findings["T1"].Flags)
	// 纯空白当作缺失
	assert.Equal(t, []string{PredicateMissingPlate}, findings["T2"].Flags)
	assert.Equal(t, []string{PredicateMissingNIK}, findings["T3"].Flags)
	assert.False(t, findings["T4"].IsAnomalous)
}

func TestEvaluateDuplicateTransaction(t *testing.T) {
	criteria := []Criterion{
		SpecialCriterion{Code: PredicateDuplicate, Description: "transaksi duplikat"},
	}

	base := mustTime(t, "2025-03-01 08:00:00")
	txs := []Transaction{
		{ID: "T1", Time: base, DuplicateCount: 2},
		{ID: "T2", Time: base, DuplicateCount: 0},
	}

	findings := Evaluate(txs, criteria)

	require.True(t, findings["T1"].IsAnomalous)
	detail := findings["T1"].ViolationDetails[PredicateDuplicate].(map[string]interface{})
	assert.Equal(t, 2, detail["duplicate_count"])
	assert.False(t, findings["T2"].IsAnomalous)
}

func TestEvaluateRedPlate(t *testing.T) {
	criteria := []Criterion{
		SpecialCriterion{Code: PredicateRedPlate, Description: "kendaraan plat merah"},
	}

	base := mustTime(t, "2025-03-01 08:00:00")
	txs := []Transaction{
		{ID: "T1", Time: base, WarnaPlat: "MERAH"},
		{ID: "T2", Time: base, WarnaPlat: "merah"},
		{ID: "T3", Time: base, WarnaPlat: "hitam"},
		{ID: "T4", Time: base, WarnaPlat: ""},
	}

	findings := Evaluate(txs, criteria)

	assert.True(t, findings["T1"].IsAnomalous)
	assert.True(t, findings["T2"].IsAnomalous)
	assert.False(t, findings["T3"].IsAnomalous)
	assert.False(t, findings["T4"].IsAnomalous)
}

func TestEvaluateIntervalTooClose(t *testing.T) {
	criteria := []Criterion{
		SpecialCriterion{Code: PredicateIntervalTooClose, IntervalSeconds: 120},
	}

	txs := []Transaction{
		{ID: "T1", Seq: 0, Time: mustTime(t, "2025-03-01 08:00:00"), PlatNomor: "B 1 A"},
		{ID: "T2", Seq: 1, Time: mustTime(t, "2025-03-01 08:01:30"), PlatNomor: "B 1 A"}, // 90s 后
		{ID: "T3", Seq: 2, Time: mustTime(t, "2025-03-01 08:04:00"), PlatNomor: "B 1 A"}, // 150s 后
		{ID: "T4", Seq: 3, Time: mustTime(t, "2025-03-01 08:00:30"), PlatNomor: "B 2 B"}, // 其他车牌
		{ID: "T5", Seq: 4, Time: mustTime(t, "2025-03-01 08:00:40"), PlatNomor: ""},      // 车牌缺失不参与
	}

	findings := Evaluate(txs, criteria)

	// 组内第一笔没有前驱，永不异常
	assert.False(t, findings["T1"].IsAnomalous)
	// 90s < 120s
	require.True(t, findings["T2"].IsAnomalous)
	detail := findings["T2"].ViolationDetails[PredicateIntervalTooClose].(map[string]interface{})
	assert.Equal(t, "T1", detail["previous_transaction_id"])
	assert.Equal(t, 90.0, detail["actual_interval_seconds"])
	// 150s >= 120s
	assert.False(t, findings["T3"].IsAnomalous)
	// 其他车牌单独分组
	assert.False(t, findings["T4"].IsAnomalous)
	assert.False(t, findings["T5"].IsAnomalous)
}

func TestEvaluateAccumulatedWindow(t *testing.T) {
	criteria := []Criterion{
		AccumulatedCriterion{
			Code:            "DAILY_ACCUM_EXCEED",
			ThresholdValue:  200,
			TimeWindowHours: 24,
			GroupByField:    GroupByPlatNomor,
		},
	}

	txs := []Transaction{
		{ID: "T1", Seq: 0, Time: mustTime(t, "2025-03-01 08:00:00"), Volume: vol(150), PlatNomor: "B 1 A"},
		{ID: "T2", Seq: 1, Time: mustTime(t, "2025-03-01 09:00:00"), Volume: vol(60), PlatNomor: "B 1 A"},
		// 距 T1 恰好 24h：窗口为左开区间，T1 已滑出（150+70 ≤ 200 不算，60+70 也不够）
		{ID: "T3", Seq: 2, Time: mustTime(t, "2025-03-02 09:00:00"), Volume: vol(70), PlatNomor: "B 1 A"},
		// 其他车牌不参与累计
		{ID: "T4", Seq: 3, Time: mustTime(t, "2025-03-01 09:30:00"), Volume: vol(500), PlatNomor: "B 2 B"},
	}

	findings := Evaluate(txs, criteria)

	assert.False(t, findings["T1"].IsAnomalous)

	// 150 + 60 = 210 > 200
	require.True(t, findings["T2"].IsAnomalous)
	detail := findings["T2"].ViolationDetails["DAILY_ACCUM_EXCEED"].(map[string]interface{})
	assert.Equal(t, 210.0, detail["accumulated_volume"])
	assert.Equal(t, "B 1 A", detail["group_key"])

	// T1/T2 都在 24h 窗口之外或边界上：T2 距 T3 恰好 24h 也滑出
	assert.False(t, findings["T3"].IsAnomalous)

	// 单笔 500 > 200，自成一组也命中
	assert.True(t, findings["T4"].IsAnomalous)
}

func TestEvaluateAccumulatedGroupByNIK(t *testing.T) {
	criteria := []Criterion{
		AccumulatedCriterion{
			Code:            "NIK_ACCUM_EXCEED",
			ThresholdValue:  100,
			TimeWindowHours: 24,
			GroupByField:    GroupByNIK,
		},
	}

	txs := []Transaction{
		// 车牌不同但 NIK 相同，按 NIK 分组要累计到一起
		{ID: "T1", Seq: 0, Time: mustTime(t, "2025-03-01 08:00:00"), Volume: vol(70), PlatNomor: "B 1 A", NIK: "317001"},
		{ID: "T2", Seq: 1, Time: mustTime(t, "2025-03-01 09:00:00"), Volume: vol(40), PlatNomor: "B 2 B", NIK: "317001"},
		{ID: "T3", Seq: 2, Time: mustTime(t, "2025-03-01 09:30:00"), Volume: vol(40), PlatNomor: "B 3 C", NIK: ""},
	}

	findings := Evaluate(txs, criteria)

	assert.False(t, findings["T1"].IsAnomalous)
	assert.True(t, findings["T2"].IsAnomalous)
	// NIK 缺失不参与分组
	assert.False(t, findings["T3"].IsAnomalous)
}

func TestEvaluateAccumulatedNilVolume(t *testing.T) {
	criteria := []Criterion{
		AccumulatedCriterion{
			Code:            "DAILY_ACCUM_EXCEED",
			ThresholdValue:  100,
			TimeWindowHours: 24,
			GroupByField:    GroupByPlatNomor,
		},
	}

	txs := []Transaction{
		{ID: "T1", Seq: 0, Time: mustTime(t, "2025-03-01 08:00:00"), Volume: vol(90), PlatNomor: "B 1 A"},
		// 体积缺失按 0 计，但仍是分组成员
		{ID: "T2", Seq: 1, Time: mustTime(t, "2025-03-01 08:30:00"), Volume: nil, PlatNomor: "B 1 A"},
		{ID: "T3", Seq: 2, Time: mustTime(t, "2025-03-01 09:00:00"), Volume: vol(20), PlatNomor: "B 1 A"},
	}

	findings := Evaluate(txs, criteria)

	assert.False(t, findings["T1"].IsAnomalous)
	assert.False(t, findings["T2"].IsAnomalous)
	// 90 + 0 + 20 = 110 > 100
	assert.True(t, findings["T3"].IsAnomalous)
}

func TestEvaluateFlagMerging(t *testing.T) {
	criteria := []Criterion{
		ThresholdCriterion{
			Code:           "SINGLE_VOLUME_EXCEED",
			MinVolumeLiter: 50,
			PlateColors:    []string{"merah"},
			ConsumerType:   "6",
		},
		SpecialCriterion{Code: PredicateRedPlate},
		SpecialCriterion{Code: PredicateMissingNIK},
	}

	txs := []Transaction{
		{ID: "T1", Time: mustTime(t, "2025-03-01 08:00:00"), Volume: vol(80), PlatNomor: "B 1 A", NIK: "", WarnaPlat: "merah", ConsumerType: "6"},
	}

	findings := Evaluate(txs, criteria)

	f := findings["T1"]
	require.True(t, f.IsAnomalous)
	assert.ElementsMatch(t, []string{"SINGLE_VOLUME_EXCEED", PredicateRedPlate, PredicateMissingNIK}, f.Flags)
	assert.Len(t, f.ViolationDetails, 3)
}

func TestEvaluateExplicitCleanEntries(t *testing.T) {
	criteria := []Criterion{
		SpecialCriterion{Code: PredicateRedPlate},
	}

	txs := []Transaction{
		{ID: "T1", Time: mustTime(t, "2025-03-01 08:00:00"), WarnaPlat: "hitam"},
	}

	findings := Evaluate(txs, criteria)

	// 干净交易也要有显式条目（重跑时覆盖历史误报）
	f, ok := findings["T1"]
	require.True(t, ok)
	assert.False(t, f.IsAnomalous)
	assert.Empty(t, f.Flags)
}

func TestEvaluateDeterministicTieBreak(t *testing.T) {
	criteria := []Criterion{
		AccumulatedCriterion{
			Code:            "DAILY_ACCUM_EXCEED",
			ThresholdValue:  100,
			TimeWindowHours: 24,
			GroupByField:    GroupByPlatNomor,
		},
	}

	same := mustTime(t, "2025-03-01 08:00:00")
	txs := []Transaction{
		{ID: "T-B", Seq: 0, Time: same, Volume: vol(60), PlatNomor: "B 1 A"},
		{ID: "T-A", Seq: 1, Time: same, Volume: vol(60), PlatNomor: "B 1 A"},
	}

	first := Evaluate(txs, criteria)
	for i := 0; i < 10; i++ {
		again := Evaluate(txs, criteria)
		for id, f := range first {
			assert.Equal(t, f.IsAnomalous, again[id].IsAnomalous, "run %d tx %s", i, id)
			assert.Equal(t, f.Flags, again[id].Flags, "run %d tx %s", i, id)
		}
	}

	// 时间戳相同按摄入顺序排序：Seq 较大的那笔看到完整累计
	assert.False(t, first["T-B"].IsAnomalous)
	assert.True(t, first["T-A"].IsAnomalous)
}

func TestEvaluateNoCriteria(t *testing.T) {
	txs := []Transaction{
		{ID: "T1", Time: mustTime(t, "2025-03-01 08:00:00"), Volume: vol(999), WarnaPlat: "merah"},
	}

	findings := Evaluate(txs, nil)

	require.Contains(t, findings, "T1")
	assert.False(t, findings["T1"].IsAnomalous)
}
