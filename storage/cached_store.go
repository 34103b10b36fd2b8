package storage

import (
	"errors"

	"github.com/dgraph-io/ristretto"

	"partstats/stats"
)

// CachedStore is the typed view over a Backend: it encodes records on the
// way in, decodes on the way out, and keeps decoded records in a ristretto
// read cache. It only assembles the aggregation engine's input; the engine
// itself never touches storage.
type CachedStore struct {
	backend      Backend
	cacheEnabled bool
	recordCache  *ristretto.Cache
}

func NewCachedStore(backend Backend, cacheEnabled bool) *CachedStore {
	recordCache, _ := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 26,
		BufferItems: 64,
	})

	return &CachedStore{
		backend:      backend,
		cacheEnabled: cacheEnabled,
		recordCache:  recordCache,
	}
}

func (store *CachedStore) Get(table, column, partition string) (*stats.ColumnStats, error) {
	key := GetKey(table, column, partition)
	if store.cacheEnabled {
		record, found := store.recordCache.Get(key)
		if found {
			return record.(*stats.ColumnStats), nil
		}
	}
	buf, err := store.backend.Get(table, column, partition)
	if err != nil {
		return nil, err
	}
	record, err := DecodeColumnStats(buf)
	if err != nil {
		return nil, err
	}
	if store.cacheEnabled {
		store.recordCache.Set(key, record, 1)
	}
	return record, nil
}

func (store *CachedStore) Put(table, column, partition string, record *stats.ColumnStats) error {
	if store.cacheEnabled {
		store.recordCache.Set(GetKey(table, column, partition), record, 1)
	}
	return store.backend.Put(table, column, partition, EncodeColumnStats(record))
}

func (store *CachedStore) Delete(table, column, partition string) error {
	if store.cacheEnabled {
		store.recordCache.Del(GetKey(table, column, partition))
	}
	return store.backend.Delete(table, column, partition)
}

// GetPartitions collects the records available for the given partitions,
// in partition-list order, skipping partitions without one. The result is
// exactly the perPartitionStats input the aggregator expects.
func (store *CachedStore) GetPartitions(table, column string, partitions []string) ([]stats.PartitionStats, error) {
	parts := make([]stats.PartitionStats, 0, len(partitions))
	for _, partition := range partitions {
		record, err := store.Get(table, column, partition)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, stats.PartitionStats{
			Partition: partition,
			Columns:   []stats.ColumnStats{*record},
		})
	}
	return parts, nil
}

func (store *CachedStore) Close() error {
	return store.backend.Close()
}
