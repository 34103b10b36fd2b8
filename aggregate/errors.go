package aggregate

import "fmt"

// MalformedInputError reports a partition whose statistics record does not
// contain exactly one column entry. The input is structurally wrong, so the
// call fails immediately and is never retried.
type MalformedInputError struct {
	Partition string
	Count     int
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf(
		"aggregate: partition %q should carry exactly one column statistic, found %d",
		e.Partition, e.Count)
}
