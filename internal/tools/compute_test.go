package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryStats(t *testing.T) {
	reg := NewRegistry()
	RegisterComputeTools(reg)

	result, err := reg.Invoke(context.Background(), "summary_stats", map[string]any{
		"values": []any{float64(60), float64(70), float64(80), float64(90), float64(100)},
	})
	require.NoError(t, err)
	require.False(t, result.IsError())
	assert.InDelta(t, 80.0, result["mean"], 0.001)
	assert.InDelta(t, 80.0, result["median"], 0.001)
	assert.Equal(t, 60.0, result["min"])
	assert.Equal(t, 100.0, result["max"])
}

func TestSummaryStatsRejectsEmpty(t *testing.T) {
	reg := NewRegistry()
	RegisterComputeTools(reg)

	result, err := reg.Invoke(context.Background(), "summary_stats", map[string]any{"values": []any{}})
	require.NoError(t, err)
	assert.True(t, result.IsError())
}

func TestBucketedDistribution(t *testing.T) {
	reg := NewRegistry()
	RegisterComputeTools(reg)

	result, err := reg.Invoke(context.Background(), "bucketed_distribution", map[string]any{
		"values":      []any{float64(5), float64(15), float64(25), float64(95)},
		"bucketWidth": float64(10),
	})
	require.NoError(t, err)
	buckets, ok := result["buckets"].([]bucket)
	require.True(t, ok)
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	assert.Equal(t, 4, total)
}

func TestComparePopulations(t *testing.T) {
	reg := NewRegistry()
	RegisterComputeTools(reg)

	result, err := reg.Invoke(context.Background(), "compare_populations", map[string]any{
		"baseline": map[string]any{"s1": float64(70), "s2": float64(80), "s3": float64(90)},
		"current":  map[string]any{"s1": float64(85), "s2": float64(80), "s3": float64(60)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result["improved"])
	assert.Equal(t, 1, result["declined"])
	assert.Equal(t, 1, result["unchanged"])
}

func TestComparePopulationsListShape(t *testing.T) {
	reg := NewRegistry()
	RegisterComputeTools(reg)

	result, err := reg.Invoke(context.Background(), "compare_populations", map[string]any{
		"baseline": []any{map[string]any{"studentId": "s1", "score": float64(70)}},
		"current":  []any{map[string]any{"studentId": "s1", "score": float64(90)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result["improved"])
	assert.InDelta(t, 20.0, result["deltaOfMeans"], 0.001)
}

func TestPercentileInterpolates(t *testing.T) {
	values := []float64{10, 20, 30, 40}
	assert.InDelta(t, 25.0, percentile(values, 50), 0.001)
}
