package aggregate

import "partstats/stats"

// accumulator folds partition records into a running aggregate. merge
// returns a fresh value each step so no record temporary ever aliases the
// running state.
type accumulator struct {
	low   stats.Value
	high  stats.Value
	nulls int64
	ndv   int64
}

func (acc accumulator) empty() bool {
	return acc.low == nil && acc.high == nil && acc.nulls == 0 && acc.ndv == 0
}

func (acc accumulator) merge(cs *stats.ColumnStats) accumulator {
	if acc.empty() {
		return accumulator{
			low:   cs.Low,
			high:  cs.High,
			nulls: cs.NullCount,
			ndv:   cs.NDV,
		}
	}
	next := acc
	if next.low == nil || (cs.Low != nil && cs.Low.Compare(next.low) < 0) {
		next.low = cs.Low
	}
	if next.high == nil || (cs.High != nil && cs.High.Compare(next.high) > 0) {
		next.high = cs.High
	}
	next.nulls += cs.NullCount
	if cs.NDV > next.ndv {
		next.ndv = cs.NDV
	}
	return next
}

// span is the projected width of the accumulated value range.
func (acc accumulator) span() float64 {
	if acc.low == nil || acc.high == nil {
		return 0
	}
	return acc.high.Float() - acc.low.Float()
}

// density is the per-record density contribution (high-low)/ndv. A record
// with zero NDV contributes nothing; dividing by it is undefined.
func density(cs *stats.ColumnStats) float64 {
	if cs.NDV <= 0 || cs.Low == nil || cs.High == nil {
		return 0
	}
	return (cs.High.Float() - cs.Low.Float()) / float64(cs.NDV)
}
