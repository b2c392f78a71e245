package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"spbu/anomsync/internal/business/engine"
	"spbu/anomsync/internal/entity"
)

func TestToThresholdCriterion(t *testing.T) {
	row := &entity.TransactionCriteria{
		CriteriaID:     1,
		AnomalyType:    "SINGLE_VOLUME_EXCEED",
		MinVolumeLiter: 60,
		PlateColor:     datatypes.JSON(`["kuning","hitam"]`),
		ConsumerType:   "6",
		Description:    "volume tunggal melebihi batas",
	}

	c, err := toThresholdCriterion(row)
	require.NoError(t, err)

	assert.Equal(t, "SINGLE_VOLUME_EXCEED", c.RuleCode())
	assert.Equal(t, 60.0, c.MinVolumeLiter)
	assert.Equal(t, []string{"kuning", "hitam"}, c.PlateColors)
	assert.Equal(t, "6", c.ConsumerType)
}

func TestToThresholdCriterionEmptyColors(t *testing.T) {
	row := &entity.TransactionCriteria{
		CriteriaID:     2,
		AnomalyType:    "SINGLE_VOLUME_EXCEED",
		MinVolumeLiter: 60,
	}

	c, err := toThresholdCriterion(row)
	require.NoError(t, err)
	assert.Empty(t, c.PlateColors)
}

func TestToThresholdCriterionInvalidColors(t *testing.T) {
	row := &entity.TransactionCriteria{
		CriteriaID: 3,
		PlateColor: datatypes.JSON(`{"oops":`),
	}

	_, err := toThresholdCriterion(row)
	assert.Error(t, err)
}

func TestToSpecialCriterionInterval(t *testing.T) {
	row := &entity.SpecialCriteria{
		CriteriaCode: engine.PredicateIntervalTooClose,
		Value:        "120",
		Unit:         "seconds",
	}

	c := toSpecialCriterion(row)
	assert.Equal(t, engine.PredicateIntervalTooClose, c.RuleCode())
	assert.Equal(t, 120, c.IntervalSeconds)
}

func TestToSpecialCriterionBadValueDisablesInterval(t *testing.T) {
	row := &entity.SpecialCriteria{
		CriteriaCode: engine.PredicateIntervalTooClose,
		Value:        "dua menit",
	}

	c := toSpecialCriterion(row)
	// 解析失败按 0 处理，引擎会跳过该规则
	assert.Equal(t, 0, c.IntervalSeconds)
}

func TestToSpecialCriterionPredicate(t *testing.T) {
	row := &entity.SpecialCriteria{
		CriteriaCode: engine.PredicateRedPlate,
		Value:        "merah",
	}

	c := toSpecialCriterion(row)
	assert.Equal(t, engine.PredicateRedPlate, c.RuleCode())
	assert.Equal(t, 0, c.IntervalSeconds)
}

func TestToAccumulatedCriterionDefaultsGroupBy(t *testing.T) {
	row := &entity.AccumulatedCriteria{
		CriteriaCode:    "DAILY_ACCUM_EXCEED",
		ThresholdValue:  200,
		TimeWindowHours: 24,
	}

	c := toAccumulatedCriterion(row)
	assert.Equal(t, "DAILY_ACCUM_EXCEED", c.RuleCode())
	assert.Equal(t, engine.GroupByPlatNomor, c.GroupByField)
	assert.Equal(t, 200.0, c.ThresholdValue)
	assert.Equal(t, 24, c.TimeWindowHours)
}

func TestToAccumulatedCriterionGroupByNIK(t *testing.T) {
	row := &entity.AccumulatedCriteria{
		CriteriaCode:    "NIK_ACCUM_EXCEED",
		ThresholdValue:  500,
		TimeWindowHours: 24,
		GroupByField:    engine.GroupByNIK,
	}

	c := toAccumulatedCriterion(row)
	assert.Equal(t, engine.GroupByNIK, c.GroupByField)
}
