package aggregate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"partstats/sketch"
	"partstats/stats"
)

func longStats(low, high, nulls, ndv int64, sketchBytes []byte) stats.ColumnStats {
	return stats.ColumnStats{
		Column:    "col",
		Kind:      stats.Long,
		Low:       stats.LongValue(low),
		High:      stats.LongValue(high),
		NullCount: nulls,
		NDV:       ndv,
		Sketch:    sketchBytes,
	}
}

func partition(name string, cs stats.ColumnStats) stats.PartitionStats {
	return stats.PartitionStats{
		Partition: name,
		Columns:   []stats.ColumnStats{cs},
	}
}

func partNames(parts []stats.PartitionStats) []string {
	names := make([]string, len(parts))
	for i := range parts {
		names[i] = parts[i].Partition
	}
	return names
}

func TestAggregate_FullCoverageMergesExactly(t *testing.T) {
	parts := []stats.PartitionStats{
		partition("p0", longStats(4, 90, 3, 40, nil)),
		partition("p1", longStats(-2, 55, 5, 25, nil)),
		partition("p2", longStats(10, 130, 0, 31, nil)),
	}
	agg := New(false)

	result, err := agg.Aggregate("col", partNames(parts), parts)

	assert.NoError(t, err)
	assert.Equal(t, "col", result.Column)
	assert.Equal(t, stats.Long, result.Kind)
	assert.Equal(t, stats.LongValue(-2), result.Low)
	assert.Equal(t, stats.LongValue(130), result.High)
	assert.Equal(t, int64(8), result.NullCount)
	// Without sketches or density estimation, NDV falls back to the
	// largest single-partition value.
	assert.Equal(t, int64(40), result.NDV)
}

func TestAggregate_SingleRecordIsIdempotent(t *testing.T) {
	record := longStats(7, 42, 11, 17, nil)
	parts := []stats.PartitionStats{partition("p0", record)}
	agg := New(true)

	result, err := agg.Aggregate("col", []string{"p0"}, parts)

	assert.NoError(t, err)
	assert.Equal(t, record.Low, result.Low)
	assert.Equal(t, record.High, result.High)
	assert.Equal(t, record.NullCount, result.NullCount)
	assert.Equal(t, record.NDV, result.NDV)
}

func TestAggregate_FewerThanTwoRecordsNeverExtrapolates(t *testing.T) {
	// One record over five partitions: coverage is partial but the
	// direct-merge path must still be taken.
	parts := []stats.PartitionStats{partition("p2", longStats(5, 50, 2, 9, nil))}
	agg := New(false)

	result, err := agg.Aggregate("col", []string{"p0", "p1", "p2", "p3", "p4"}, parts)

	assert.NoError(t, err)
	assert.Equal(t, stats.LongValue(5), result.Low)
	assert.Equal(t, stats.LongValue(50), result.High)
	assert.Equal(t, int64(2), result.NullCount)
	assert.Equal(t, int64(9), result.NDV)
}

func TestAggregate_ZeroPartitions(t *testing.T) {
	agg := New(true)

	result, err := agg.Aggregate("col", nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, "col", result.Column)
	assert.Equal(t, stats.Unknown, result.Kind)
	assert.Equal(t, int64(0), result.NDV)
}

func TestAggregate_MalformedInput(t *testing.T) {
	record := longStats(1, 2, 0, 1, nil)
	parts := []stats.PartitionStats{
		{Partition: "p0", Columns: []stats.ColumnStats{record, record}},
	}
	agg := New(false)

	_, err := agg.Aggregate("col", []string{"p0"}, parts)

	var malformed *MalformedInputError
	assert.True(t, errors.As(err, &malformed))
	assert.Equal(t, "p0", malformed.Partition)
	assert.Equal(t, 2, malformed.Count)
}

func TestAggregate_DensityEstimateWithinBounds(t *testing.T) {
	parts := []stats.PartitionStats{
		partition("p0", longStats(0, 60, 0, 10, nil)),
		partition("p1", longStats(40, 100, 0, 10, nil)),
	}
	agg := New(true)

	result, err := agg.Aggregate("col", partNames(parts), parts)

	assert.NoError(t, err)
	// densityAvg = ((60-0)/10 + (100-40)/10) / 2 = 6, span = 100,
	// estimate = 16, inside [max(10,10), 10+10].
	assert.Equal(t, int64(16), result.NDV)
}

func TestAggregate_DensityEstimateClamped(t *testing.T) {
	parts := []stats.PartitionStats{
		partition("p0", longStats(0, 100, 0, 10, nil)),
		partition("p1", longStats(0, 100, 0, 20, nil)),
	}
	agg := New(true)

	result, err := agg.Aggregate("col", partNames(parts), parts)

	assert.NoError(t, err)
	// densityAvg = (10 + 5) / 2 = 7.5, estimate = 100/7.5 = 13, below
	// the lower bound max(10, 20) = 20.
	assert.Equal(t, int64(20), result.NDV)
}

func TestAggregate_ZeroNDVPartitionContributesNoDensity(t *testing.T) {
	parts := []stats.PartitionStats{
		partition("p0", longStats(0, 60, 0, 10, nil)),
		partition("p1", longStats(40, 100, 0, 0, nil)),
	}
	agg := New(true)

	result, err := agg.Aggregate("col", partNames(parts), parts)

	// densityAvg = (6 + 0) / 2 = 3, span = 100, estimate = 33, clamped
	// to the higher bound 10+0.
	assert.NoError(t, err)
	assert.Equal(t, int64(10), result.NDV)
}

func sketchBytes(t *testing.T, values ...string) []byte {
	t.Helper()
	s := sketch.New(sketch.DefaultNumVectors)
	for _, value := range values {
		s.AddString(value)
	}
	buf, err := s.MarshalBinary()
	assert.NoError(t, err)
	return buf
}

func TestAggregate_SketchMergeDrivesNDV(t *testing.T) {
	union := sketch.New(sketch.DefaultNumVectors)
	for _, value := range []string{"a", "b", "c", "d", "e", "f"} {
		union.AddString(value)
	}

	parts := []stats.PartitionStats{
		partition("p0", longStats(0, 10, 1, 4, sketchBytes(t, "a", "b", "c", "d"))),
		partition("p1", longStats(5, 20, 2, 4, sketchBytes(t, "c", "d", "e", "f"))),
	}
	agg := New(false)

	result, err := agg.Aggregate("col", partNames(parts), parts)

	assert.NoError(t, err)
	assert.Equal(t, union.Estimate(), result.NDV)
	assert.Equal(t, stats.LongValue(0), result.Low)
	assert.Equal(t, stats.LongValue(20), result.High)
	assert.Equal(t, int64(3), result.NullCount)

	// Merging is a bitvector union: reordering the input partitions
	// must not change the estimate.
	reversed := []stats.PartitionStats{parts[1], parts[0]}
	reorderedResult, err := agg.Aggregate("col", []string{"p1", "p0"}, reversed)
	assert.NoError(t, err)
	assert.Equal(t, result.NDV, reorderedResult.NDV)
}

// spySketch records Estimate calls so tests can prove the engine never
// consults a sketch it is not allowed to trust.
type spySketch struct {
	mergeable     bool
	estimateCalls *int
}

func (s *spySketch) CanMerge(other sketch.Mergeable) bool { return s.mergeable }

func (s *spySketch) Merge(other sketch.Mergeable) error { return nil }

func (s *spySketch) Estimate() int64 {
	*s.estimateCalls++
	return 42
}

func (s *spySketch) Empty() sketch.Mergeable { return s }

func TestAggregate_MissingSketchDisablesEstimation(t *testing.T) {
	estimateCalls := 0
	agg := New(false)
	agg.Decode = func([]byte) (sketch.Mergeable, error) {
		return &spySketch{mergeable: true, estimateCalls: &estimateCalls}, nil
	}

	parts := []stats.PartitionStats{
		partition("p0", longStats(0, 10, 0, 4, []byte{1})),
		partition("p1", longStats(5, 20, 0, 6, nil)),
	}

	result, err := agg.Aggregate("col", partNames(parts), parts)

	assert.NoError(t, err)
	assert.Equal(t, 0, estimateCalls)
	assert.Equal(t, int64(6), result.NDV)
}

func TestAggregate_IncompatibleSketchesDisableEstimation(t *testing.T) {
	estimateCalls := 0
	agg := New(false)
	agg.Decode = func([]byte) (sketch.Mergeable, error) {
		return &spySketch{mergeable: false, estimateCalls: &estimateCalls}, nil
	}

	parts := []stats.PartitionStats{
		partition("p0", longStats(0, 10, 0, 4, []byte{1})),
		partition("p1", longStats(5, 20, 0, 6, []byte{2})),
	}

	result, err := agg.Aggregate("col", partNames(parts), parts)

	assert.NoError(t, err)
	assert.Equal(t, 0, estimateCalls)
	assert.Equal(t, int64(6), result.NDV)
}

func TestAggregate_PartialCoverageExtrapolates(t *testing.T) {
	// Four partitions, statistics only at positions 0 and 1.
	parts := []stats.PartitionStats{
		partition("p0", longStats(1, 9, 2, 5, nil)),
		partition("p1", longStats(3, 11, 4, 7, nil)),
	}
	agg := New(false)

	result, err := agg.Aggregate("col", []string{"p0", "p1", "p2", "p3"}, parts)

	assert.NoError(t, err)
	// low: min 1@0, max 3@1 -> 3 - 2*1/1 = 1
	assert.Equal(t, stats.LongValue(1), result.Low)
	// high: min 9@0, max 11@1 -> 9 + 2*(4-0)/1 = 17
	assert.Equal(t, stats.LongValue(17), result.High)
	// nulls: (2+4) * 4/2 = 12
	assert.Equal(t, int64(12), result.NullCount)
	// ndv: min 5@0, max 7@1 -> 5 + 2*(4-0)/1 = 13
	assert.Equal(t, int64(13), result.NDV)
}

func TestAggregate_TwoPointLowExtrapolation(t *testing.T) {
	// Contributors at position 1 (low=10) and position 3 (low=20) over
	// five partitions: the line through them hits position 0 at 5.
	parts := []stats.PartitionStats{
		partition("p1", longStats(10, 100, 0, 3, nil)),
		partition("p3", longStats(20, 200, 0, 5, nil)),
	}
	agg := New(false)

	result, err := agg.Aggregate("col", []string{"p0", "p1", "p2", "p3", "p4"}, parts)

	assert.NoError(t, err)
	assert.Equal(t, stats.LongValue(5), result.Low)
	// high: min 100@1, max 200@3 -> 100 + 100*(5-1)/2 = 300
	assert.Equal(t, stats.LongValue(300), result.High)
}

func TestAggregate_DecreasingTrendExtrapolatesFromOppositeBorder(t *testing.T) {
	// The minimum low sits at a later position than the maximum low, so
	// the table-wide minimum is read off the right border instead.
	parts := []stats.PartitionStats{
		partition("p1", longStats(20, 200, 0, 5, nil)),
		partition("p3", longStats(10, 100, 0, 3, nil)),
	}
	agg := New(false)

	result, err := agg.Aggregate("col", []string{"p0", "p1", "p2", "p3", "p4"}, parts)

	assert.NoError(t, err)
	// low: min 10@3, max 20@1 -> 20 - 10*(5-1)/(3-1) = 0
	assert.Equal(t, stats.LongValue(0), result.Low)
	// high: min 100@3, max 200@1 -> 100 + 100*3/(3-1) = 250
	assert.Equal(t, stats.LongValue(250), result.High)
}

func TestAggregate_AdjacentSketchesMergeIntoPseudoPartitions(t *testing.T) {
	// Partitions 0 and 1 are adjacent and merge into one pseudo
	// partition at position 0.5; partition 3 stays alone at 3.
	s0 := sketchBytes(t, "a", "b", "c")
	s1 := sketchBytes(t, "c", "d")
	s3 := sketchBytes(t, "x", "y", "z")

	parts := []stats.PartitionStats{
		partition("p0", longStats(0, 10, 1, 3, s0)),
		partition("p1", longStats(5, 25, 2, 2, s1)),
		partition("p3", longStats(50, 90, 3, 3, s3)),
	}
	partitions := []string{"p0", "p1", "p2", "p3", "p4"}

	run1 := sketch.New(sketch.DefaultNumVectors)
	for _, value := range []string{"a", "b", "c", "d"} {
		run1.AddString(value)
	}
	run2 := sketch.New(sketch.DefaultNumVectors)
	for _, value := range []string{"x", "y", "z"} {
		run2.AddString(value)
	}
	expected := extrapolate(stats.Long, 5, 3, []sample{
		{key: "p0p1", index: 0.5, low: stats.LongValue(0), high: stats.LongValue(25), nulls: 3, ndv: run1.Estimate()},
		{key: "p3", index: 3, low: stats.LongValue(50), high: stats.LongValue(90), nulls: 3, ndv: run2.Estimate()},
	}, 0, false)

	agg := New(false)
	result, err := agg.Aggregate("col", partitions, parts)

	assert.NoError(t, err)
	assert.Equal(t, expected.Low, result.Low)
	assert.Equal(t, expected.High, result.High)
	assert.Equal(t, expected.NullCount, result.NullCount)
	assert.Equal(t, expected.NDV, result.NDV)
}

func TestAggregate_DecimalKind(t *testing.T) {
	low0, high0 := stats.NewDecimalValue("1.25"), stats.NewDecimalValue("9.50")
	low1, high1 := stats.NewDecimalValue("0.75"), stats.NewDecimalValue("12.00")
	parts := []stats.PartitionStats{
		partition("p0", stats.ColumnStats{
			Column: "col", Kind: stats.Decimal,
			Low: low0, High: high0, NullCount: 1, NDV: 8,
		}),
		partition("p1", stats.ColumnStats{
			Column: "col", Kind: stats.Decimal,
			Low: low1, High: high1, NullCount: 2, NDV: 6,
		}),
	}
	agg := New(false)

	result, err := agg.Aggregate("col", partNames(parts), parts)

	assert.NoError(t, err)
	assert.Equal(t, stats.Decimal, result.Kind)
	assert.Equal(t, 0, result.Low.Compare(low1))
	assert.Equal(t, 0, result.High.Compare(high1))
	assert.Equal(t, int64(3), result.NullCount)
	assert.Equal(t, int64(8), result.NDV)
}
