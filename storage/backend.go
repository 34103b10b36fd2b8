package storage

import (
	"encoding/binary"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("storage: stats record not found")

// GetKeyPrefix encodes the (table, column) portion of a record key. Every
// key for the same table and column shares this prefix, which is what the
// partition iteration relies on.
func GetKeyPrefix(table, column string) []byte {
	buf := make([]byte, 0, len(table)+len(column)+2*binary.MaxVarintLen64)
	buf = appendString(buf, table)
	buf = appendString(buf, column)
	return buf
}

// GetKey encodes a (table, column, partition) record key.
func GetKey(table, column, partition string) []byte {
	return appendString(GetKeyPrefix(table, column), partition)
}

// GetPartitionFromKey recovers the partition name from a key with the
// given (table, column) prefix.
func GetPartitionFromKey(prefix, key []byte) string {
	part, _ := readString(key[len(prefix):])
	return part
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func readString(buf []byte) (string, []byte) {
	length, n := binary.Uvarint(buf)
	if n <= 0 || int(length) > len(buf)-n {
		return "", nil
	}
	return string(buf[n : n+int(length)]), buf[n+int(length):]
}

// Backend stores one encoded column-statistics record per (table, column,
// partition) triple.
type Backend interface {
	Get(table, column, partition string) ([]byte, error)
	Put(table, column, partition string, buf []byte) error
	Delete(table, column, partition string) error

	// IteratePartitions calls lambda with the name of every partition
	// holding a record for (table, column).
	IteratePartitions(table, column string, lambda func(partition string)) error

	Close() error
}

type InMemoryBackend struct {
	records map[string][]byte
	mutex   sync.Mutex
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		records: make(map[string][]byte),
	}
}

func (backend *InMemoryBackend) Get(table, column, partition string) ([]byte, error) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	buf, ok := backend.records[string(GetKey(table, column, partition))]
	if !ok {
		return nil, ErrNotFound
	}
	return buf, nil
}

func (backend *InMemoryBackend) Put(table, column, partition string, buf []byte) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	backend.records[string(GetKey(table, column, partition))] = buf
	return nil
}

func (backend *InMemoryBackend) Delete(table, column, partition string) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	delete(backend.records, string(GetKey(table, column, partition)))
	return nil
}

func (backend *InMemoryBackend) IteratePartitions(table, column string, lambda func(string)) error {
	prefix := GetKeyPrefix(table, column)
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	for k := range backend.records {
		key := []byte(k)
		if len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
			continue
		}
		lambda(GetPartitionFromKey(prefix, key))
	}
	return nil
}

func (backend *InMemoryBackend) Close() error {
	backend.records = nil
	return nil
}
