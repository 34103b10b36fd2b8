package sketch

import (
	"errors"
)

var (
	ErrIncompatible = errors.New("sketch: incompatible estimators")
	ErrCorrupt      = errors.New("sketch: corrupt serialized estimator")
)

// Mergeable is the capability the aggregation engine needs from a
// distinct-value estimator. Mergeability is a pairwise property: two
// estimators merge only when they were built with the same parameters.
type Mergeable interface {
	// CanMerge reports whether other was built with the same parameters.
	CanMerge(other Mergeable) bool

	// Merge unions other into the receiver. Fails with ErrIncompatible
	// when CanMerge is false.
	Merge(other Mergeable) error

	// Estimate returns the current distinct-value estimate.
	Estimate() int64

	// Empty returns a new estimator with the same parameters and no
	// content.
	Empty() Mergeable
}
