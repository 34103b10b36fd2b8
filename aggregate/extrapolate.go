package aggregate

import (
	"sort"

	"partstats/stats"
)

// sample is one contributing partition (or merged run of partitions)
// positioned along the partition list. index is real-valued because a run
// sits at the mean of its members' ordinals.
type sample struct {
	key   string
	index float64
	low   stats.Value
	high  stats.Value
	nulls int64
	ndv   int64
}

// extrapolate reads the full-table statistics off the sparse samples by
// treating each statistic as linear in partition position: for every
// dimension it takes the two extreme samples by value and extends their
// line to the boundary of [0, numParts]. A heuristic, used only because
// sparse coverage offers no better signal.
func extrapolate(kind stats.Kind, numParts, numPartsWithStats int, samples []sample, densityAvg float64, useDensity bool) *stats.AggregateStats {
	rightBorder := float64(numParts)

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].low.Compare(samples[j].low) < 0
	})
	first, last := samples[0], samples[len(samples)-1]
	lowValue := lowBorderValue(
		first.low.Float(), first.index,
		last.low.Float(), last.index,
		rightBorder)

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].high.Compare(samples[j].high) < 0
	})
	first, last = samples[0], samples[len(samples)-1]
	highValue := highBorderValue(
		first.high.Float(), first.index,
		last.high.Float(), last.index,
		rightBorder)

	// Nulls scale up linearly with the number of unsampled partitions.
	var numNulls int64
	for _, s := range samples {
		numNulls += s.nulls
	}
	numNulls = numNulls * int64(numParts) / int64(numPartsWithStats)

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].ndv < samples[j].ndv
	})
	first, last = samples[0], samples[len(samples)-1]
	var ndv int64
	if useDensity && densityAvg != 0 {
		// Under the uniform-density assumption the merged range
		// determines the distinct count, bounded below by the largest
		// single sample and above by the no-overlap sum.
		lowerBound := last.ndv
		var higherBound int64
		for _, s := range samples {
			higherBound += s.ndv
		}
		ndv = clamp(int64((highValue-lowValue)/densityAvg), lowerBound, higherBound)
	} else {
		ndv = int64(highBorderValue(
			float64(first.ndv), first.index,
			float64(last.ndv), last.index,
			rightBorder))
	}

	return &stats.AggregateStats{
		Kind:      kind,
		Low:       stats.FromFloat(kind, lowValue),
		High:      stats.FromFloat(kind, highValue),
		NullCount: numNulls,
		NDV:       ndv,
	}
}

// lowBorderValue extends the line through the minimum- and maximum-valued
// samples to the border where the table-wide minimum must sit: position 0
// when the trend increases with position, the right border when it
// decreases. Equal positions collapse to the minimum itself.
func lowBorderValue(min, minInd, max, maxInd, rightBorder float64) float64 {
	switch {
	case minInd == maxInd:
		return min
	case minInd < maxInd:
		return max - (max-min)*maxInd/(maxInd-minInd)
	default:
		return max - (max-min)*(rightBorder-maxInd)/(minInd-maxInd)
	}
}

// highBorderValue mirrors lowBorderValue for the table-wide maximum: the
// right border on an increasing trend, position 0 on a decreasing one.
func highBorderValue(min, minInd, max, maxInd, rightBorder float64) float64 {
	switch {
	case minInd == maxInd:
		return min
	case minInd < maxInd:
		return min + (max-min)*(rightBorder-minInd)/(maxInd-minInd)
	default:
		return min + (max-min)*minInd/(minInd-maxInd)
	}
}
