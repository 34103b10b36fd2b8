package stats

// ColumnStats holds the statistics collected for one column of one
// partition: value bounds, null count, a distinct-value estimate and,
// optionally, the serialized sketch the estimate came from. An absent or
// empty sketch means the partition was scanned without one.
type ColumnStats struct {
	Column    string
	Kind      Kind
	Low       Value
	High      Value
	NullCount int64
	NDV       int64
	Sketch    []byte
}

func (cs *ColumnStats) HasSketch() bool {
	return len(cs.Sketch) > 0
}

// PartitionStats is the statistics record one partition reports. When
// handed to the aggregator it must carry exactly one column entry.
type PartitionStats struct {
	Partition string
	Columns   []ColumnStats
}

// AggregateStats is the table-level view of one column across a set of
// partitions.
type AggregateStats struct {
	Column    string
	Kind      Kind
	Low       Value
	High      Value
	NullCount int64
	NDV       int64
}
