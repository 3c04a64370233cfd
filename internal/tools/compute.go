package tools

import (
	"context"
	"math"
)

// RegisterComputeTools wires the pure numeric functions of §4.2 into reg:
// summary statistics, a bucketed distribution, and a two-population
// comparison. Compute tools never
// touch the network and never fall back to mocks — there is nothing to fall
// back from.
func RegisterComputeTools(reg *Registry) {
	reg.Register(Definition{
		Name:        "summary_stats",
		Description: "Compute mean, median, stddev, min, max, and quartile percentiles over a list of numeric values.",
		Params:      []string{"values"},
		Call: func(_ context.Context, args map[string]any) (Result, error) {
			values, err := numericSlice(args["values"])
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			if len(values) == 0 {
				return ErrorResult("summary_stats: values must be non-empty"), nil
			}
			return Result{
				"mean":    mean(values),
				"median":  percentile(values, 50),
				"stddev":  stddev(values),
				"min":     minOf(values),
				"max":     maxOf(values),
				"p25":     percentile(values, 25),
				"p75":     percentile(values, 75),
			}, nil
		},
	})

	reg.Register(Definition{
		Name:        "bucketed_distribution",
		Description: "Bucket a list of numeric values into fixed-width ranges and count membership.",
		Params:      []string{"values", "bucketWidth"},
		Call: func(_ context.Context, args map[string]any) (Result, error) {
			values, err := numericSlice(args["values"])
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			width, _ := toFloat(args["bucketWidth"])
			if width <= 0 {
				width = 10
			}
			return Result{"buckets": bucketedDistribution(values, width)}, nil
		},
	})

	reg.Register(Definition{
		Name:        "compare_populations",
		Description: "Compare two populations of per-student scores: delta-of-means and improvement/decline counts.",
		Params:      []string{"baseline", "current"},
		Call: func(_ context.Context, args map[string]any) (Result, error) {
			baseline, err := studentScoreMap(args["baseline"])
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			current, err := studentScoreMap(args["current"])
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			return comparePopulations(baseline, current), nil
		},
	})
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// percentile computes the p-th percentile via linear interpolation between
// closest ranks, over a defensively sorted copy of values.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	insertionSortFloat64(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func insertionSortFloat64(values []float64) {
	for i := 1; i < len(values); i++ {
		v := values[i]
		j := i - 1
		for j >= 0 && values[j] > v {
			values[j+1] = values[j]
			j--
		}
		values[j+1] = v
	}
}

// bucket is one fixed-width range and its membership count.
type bucket struct {
	RangeStart float64 `json:"rangeStart"`
	RangeEnd   float64 `json:"rangeEnd"`
	Count      int     `json:"count"`
}

func bucketedDistribution(values []float64, width float64) []bucket {
	if len(values) == 0 {
		return nil
	}
	lo := math.Floor(minOf(values)/width) * width
	hi := math.Ceil(maxOf(values)/width) * width
	numBuckets := int(math.Round((hi - lo) / width))
	if numBuckets <= 0 {
		numBuckets = 1
	}
	buckets := make([]bucket, numBuckets)
	for i := range buckets {
		buckets[i] = bucket{RangeStart: lo + float64(i)*width, RangeEnd: lo + float64(i+1)*width}
	}
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= numBuckets {
			idx = numBuckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx].Count++
	}
	return buckets
}

func comparePopulations(baseline, current map[string]float64) Result {
	var baselineValues, currentValues []float64
	for _, v := range baseline {
		baselineValues = append(baselineValues, v)
	}
	for _, v := range current {
		currentValues = append(currentValues, v)
	}

	improved, declined, unchanged := 0, 0, 0
	for studentID, curScore := range current {
		baseScore, ok := baseline[studentID]
		if !ok {
			continue
		}
		switch {
		case curScore > baseScore:
			improved++
		case curScore < baseScore:
			declined++
		default:
			unchanged++
		}
	}

	var deltaOfMeans float64
	if len(baselineValues) > 0 && len(currentValues) > 0 {
		deltaOfMeans = mean(currentValues) - mean(baselineValues)
	}

	return Result{
		"deltaOfMeans": deltaOfMeans,
		"improved":     improved,
		"declined":     declined,
		"unchanged":    unchanged,
	}
}

func numericSlice(v any) ([]float64, error) {
	raw, ok := v.([]any)
	if !ok {
		if floats, ok := v.([]float64); ok {
			return floats, nil
		}
		return nil, errBadArg("values must be a list of numbers")
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		f, err := toFloat(item)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// studentScoreMap accepts either a map[string]any / map[string]float64 of
// studentId -> score, or a list of {studentId, score} objects, since both
// shapes appear naturally depending on which binding fed this node.
func studentScoreMap(v any) (map[string]float64, error) {
	switch t := v.(type) {
	case map[string]float64:
		return t, nil
	case map[string]any:
		out := make(map[string]float64, len(t))
		for k, raw := range t {
			f, err := toFloat(raw)
			if err != nil {
				return nil, err
			}
			out[k] = f
		}
		return out, nil
	case []any:
		out := make(map[string]float64, len(t))
		for _, item := range t {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, errBadArg("population entries must be objects")
			}
			studentID, _ := entry["studentId"].(string)
			score, err := toFloat(entry["score"])
			if err != nil {
				return nil, err
			}
			out[studentID] = score
		}
		return out, nil
	default:
		return nil, errBadArg("population must be a map or list of {studentId,score}")
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, errBadArg("expected a number")
	}
}

type argError string

func (e argError) Error() string { return string(e) }

func errBadArg(msg string) error { return argError(msg) }
