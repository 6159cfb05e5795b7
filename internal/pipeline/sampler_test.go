package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
)

func TestNewPlanFrameCounts(t *testing.T) {
	tests := []struct {
		name         string
		durationMs   int64
		tier         entity.QualityTier
		wantInterval int64
		wantTotal    int
	}{
		{"medium 10s video", 10000, entity.QualityMedium, 2000, 5},
		{"high 10s video", 10000, entity.QualityHigh, 1000, 10},
		{"low 10s video", 10000, entity.QualityLow, 5000, 2},
		{"shorter than one interval", 1500, entity.QualityMedium, 2000, 1},
		{"zero duration", 0, entity.QualityMedium, 2000, 1},
		{"negative duration", -10, entity.QualityHigh, 1000, 1},
		{"truncates partial frame", 9999, entity.QualityMedium, 2000, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := NewPlan(tt.durationMs, tt.tier)
			assert.Equal(t, tt.wantInterval, plan.IntervalMs)
			assert.Equal(t, tt.wantTotal, plan.TotalFrames)
		})
	}
}

func TestPlanTimestampsStrictlyIncreasingFromZero(t *testing.T) {
	plan := NewPlan(10000, entity.QualityMedium)

	want := []int64{0, 2000, 4000, 6000, 8000}
	for i := 0; i < plan.TotalFrames; i++ {
		frame := plan.At(i)
		assert.Equal(t, i, frame.Index)
		assert.Equal(t, want[i], frame.TimestampMs)
	}
}

func TestPlanIsRestartable(t *testing.T) {
	plan := NewPlan(60000, entity.QualityHigh)

	first := make([]int64, plan.TotalFrames)
	for i := range first {
		first[i] = plan.At(i).TimestampMs
	}
	second := make([]int64, plan.TotalFrames)
	for i := range second {
		second[i] = plan.At(i).TimestampMs
	}
	assert.Equal(t, first, second)
}

func TestPlanUnknownTierFallsBackToMedium(t *testing.T) {
	plan := NewPlan(10000, entity.QualityTier("ultra"))
	assert.Equal(t, int64(2000), plan.IntervalMs)
	assert.Equal(t, 5, plan.TotalFrames)
}
