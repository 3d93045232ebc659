package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Speed-limit inference thresholds
const (
	MinTotalSamples     = 200
	MinBucketSamples    = 100
	MinEndpointDistance = 150.0 // meters from either strip endpoint
	MajorityShare       = 0.5
	MinShareMargin      = 0.2
)

// speedDividers are the half-open bucket edges in km/h; bucketLimits holds the
// limit each bucket stands for.
var (
	speedDividers = []float64{0, 20, 40, 60, 85, 110, math.Inf(1)}
	bucketLimits  = []int{10, 30, 50, 70, 100, 110}
)

// SpeedBuckets counts samples per speed bucket. Negative speeds count as 0,
// NaN values are dropped.
func SpeedBuckets(samples []float64) []float64 {
	x := make([]float64, 0, len(samples))
	for _, v := range samples {
		if math.IsNaN(v) {
			continue
		}
		x = append(x, math.Max(v, 0))
	}
	sort.Float64s(x)

	counts := make([]float64, len(bucketLimits))
	if len(x) == 0 {
		return counts
	}

	// Histogram needs every value strictly below the last divider
	for len(x) > 0 && math.IsInf(x[len(x)-1], 1) {
		counts[len(counts)-1]++
		x = x[:len(x)-1]
	}
	if len(x) == 0 {
		return counts
	}

	hist := stat.Histogram(nil, speedDividers, x, nil)
	for i := range counts {
		counts[i] += hist[i]
	}
	return counts
}

// InferSpeedLimit picks a speed limit from the observed speeds of one strip.
//
// Buckets under MinBucketSamples are ignored. A bucket holding more than
// MajorityShare of all samples wins; otherwise the slowest bucket whose share
// beats every other remaining bucket by MinShareMargin; otherwise the slowest
// remaining bucket. ok is false when there is too little data.
func InferSpeedLimit(samples []float64) (limit int, ok bool) {
	if len(samples) < MinTotalSamples {
		return 0, false
	}

	counts := SpeedBuckets(samples)
	var total float64
	for _, c := range counts {
		total += c
	}
	if total < MinTotalSamples {
		return 0, false
	}

	var kept []int
	for i, c := range counts {
		if c >= MinBucketSamples {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return 0, false
	}

	for _, i := range kept {
		if counts[i]/total > MajorityShare {
			return bucketLimits[i], true
		}
	}

	for _, i := range kept {
		dominant := true
		for _, j := range kept {
			if i != j && counts[i]/total < counts[j]/total+MinShareMargin {
				dominant = false
				break
			}
		}
		if dominant {
			return bucketLimits[i], true
		}
	}

	return bucketLimits[kept[0]], true
}
