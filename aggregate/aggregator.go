package aggregate

import (
	"strings"

	"partstats/sketch"
	"partstats/stats"
)

// Aggregator merges the per-partition statistics of one column into a
// single table-level record for the cost estimator. With full coverage it
// merges directly; with partial coverage it extrapolates the unsampled
// partitions from the reporting partitions' positions in the partition
// list. Each call is a pure function of its inputs.
type Aggregator struct {
	// UseDensity enables density-based NDV estimation wherever sketch
	// merging is not possible.
	UseDensity bool

	// Decode turns a serialized sketch into an estimator. Left nil, it
	// defaults to the FM sketch decoder.
	Decode func(buf []byte) (sketch.Mergeable, error)
}

func New(useDensity bool) *Aggregator {
	return &Aggregator{
		UseDensity: useDensity,
		Decode:     decodeSketch,
	}
}

func decodeSketch(buf []byte) (sketch.Mergeable, error) {
	return sketch.Decode(buf)
}

// Aggregate combines the records in parts, which cover some subset of
// partitions, into one record spanning all of partitions. Every element of
// parts must carry exactly one statistic for column.
func (a *Aggregator) Aggregate(column string, partitions []string, parts []stats.PartitionStats) (*stats.AggregateStats, error) {
	decode := a.Decode
	if decode == nil {
		decode = decodeSketch
	}

	// One pass over all records: validate the per-partition record
	// count, adopt the type tag from the first record, and decide
	// whether every partition carries a sketch mergeable with all the
	// others. Any gap or mismatch abandons sketch-based estimation for
	// the whole call; that is an expected condition, not an error.
	var kind stats.Kind
	var running sketch.Mergeable
	sketchAlive := true
	for i := range parts {
		part := &parts[i]
		if len(part.Columns) != 1 {
			return nil, &MalformedInputError{
				Partition: part.Partition,
				Count:     len(part.Columns),
			}
		}
		cs := &part.Columns[0]
		if i == 0 {
			kind = cs.Kind
		}
		if !sketchAlive {
			continue
		}
		if !cs.HasSketch() {
			sketchAlive = false
			running = nil
			continue
		}
		decoded, err := decode(cs.Sketch)
		if err != nil {
			sketchAlive = false
			running = nil
			continue
		}
		if running == nil {
			running = decoded
		} else if !running.CanMerge(decoded) {
			sketchAlive = false
			running = nil
		}
	}
	if running != nil {
		// The scan only validated mergeability; accumulate the real
		// union into a fresh estimator with the same parameters.
		running = running.Empty()
	}

	if len(parts) == 0 {
		return &stats.AggregateStats{Column: column}, nil
	}
	if len(parts) == len(partitions) || len(parts) < 2 {
		return a.mergeAll(column, kind, parts, running, decode)
	}
	return a.extrapolateAll(column, kind, partitions, parts, running, decode)
}

// mergeAll is the direct-merge path: every partition reported statistics,
// or there are too few records for positional extrapolation to say
// anything.
func (a *Aggregator) mergeAll(column string, kind stats.Kind, parts []stats.PartitionStats, est sketch.Mergeable, decode func([]byte) (sketch.Mergeable, error)) (*stats.AggregateStats, error) {
	var acc accumulator
	var lowerBound, higherBound int64
	densitySum := 0.0
	for i := range parts {
		cs := &parts[i].Columns[0]
		if a.UseDensity {
			if cs.NDV > lowerBound {
				lowerBound = cs.NDV
			}
			higherBound += cs.NDV
			densitySum += density(cs)
		}
		if est != nil {
			if decoded, err := decode(cs.Sketch); err == nil {
				_ = est.Merge(decoded)
			}
		}
		acc = acc.merge(cs)
	}

	switch {
	case est != nil:
		// A merged sketch is a direct cardinality estimate of the
		// union; prefer it over any distribution assumption.
		acc.ndv = est.Estimate()
	case a.UseDensity:
		densityAvg := densitySum / float64(len(parts))
		if densityAvg != 0 {
			estimate := int64(acc.span() / densityAvg)
			acc.ndv = clamp(estimate, lowerBound, higherBound)
		}
	default:
		// Max of the per-partition NDVs, already folded in.
	}

	return &stats.AggregateStats{
		Column:    column,
		Kind:      kind,
		Low:       acc.low,
		High:      acc.high,
		NullCount: acc.nulls,
		NDV:       acc.ndv,
	}, nil
}

// extrapolateAll prepares the sparse records for positional extrapolation.
// Without a usable sketch every record contributes its own sample at its
// partition's ordinal. With one, contiguous runs of partitions are first
// unioned into pseudo-partitions positioned at the run's mean ordinal,
// turning many weak samples into fewer strong ones.
func (a *Aggregator) extrapolateAll(column string, kind stats.Kind, partitions []string, parts []stats.PartitionStats, est sketch.Mergeable, decode func([]byte) (sketch.Mergeable, error)) (*stats.AggregateStats, error) {
	indexOf := make(map[string]int, len(partitions))
	for i, name := range partitions {
		indexOf[name] = i
	}

	samples := make([]sample, 0, len(parts))
	densitySum := 0.0

	if est == nil {
		for i := range parts {
			part := &parts[i]
			cs := &part.Columns[0]
			if a.UseDensity {
				densitySum += density(cs)
			}
			samples = append(samples, sample{
				key:   part.Partition,
				index: float64(indexOf[part.Partition]),
				low:   cs.Low,
				high:  cs.High,
				nulls: cs.NullCount,
				ndv:   cs.NDV,
			})
		}
	} else {
		var (
			runKey   strings.Builder
			indexSum float64
			length   int
			acc      accumulator
		)
		flush := func() {
			if length == 0 {
				return
			}
			acc.ndv = est.Estimate()
			if a.UseDensity && acc.ndv > 0 {
				densitySum += acc.span() / float64(acc.ndv)
			}
			samples = append(samples, sample{
				key:   runKey.String(),
				index: indexSum / float64(length),
				low:   acc.low,
				high:  acc.high,
				nulls: acc.nulls,
				ndv:   acc.ndv,
			})
			runKey.Reset()
			indexSum = 0
			length = 0
			est = est.Empty()
			acc = accumulator{}
		}

		next := -1
		for i := range parts {
			part := &parts[i]
			cs := &part.Columns[0]
			ordinal := indexOf[part.Partition]
			if ordinal != next {
				// Sketch present but not adjacent to the
				// current run; close the run out.
				flush()
			}
			runKey.WriteString(part.Partition)
			indexSum += float64(ordinal)
			length++
			next = ordinal + 1
			acc = acc.merge(cs)
			if decoded, err := decode(cs.Sketch); err == nil {
				_ = est.Merge(decoded)
			}
		}
		flush()
	}

	densityAvg := densitySum / float64(len(samples))
	result := extrapolate(kind, len(partitions), len(parts), samples, densityAvg, a.UseDensity)
	result.Column = column
	return result, nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
