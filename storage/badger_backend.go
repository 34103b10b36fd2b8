package storage

import (
	"errors"

	"github.com/dgraph-io/badger/v2"
)

func TestBadgerDB() *badger.DB {
	option := badger.DefaultOptions("").WithInMemory(true)
	db, err := badger.Open(option)
	if err != nil {
		panic(err)
	}
	return db
}

type BadgerBackend struct {
	db *badger.DB
}

func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func (backend *BadgerBackend) Close() error {
	return backend.db.Close()
}

func (backend *BadgerBackend) txnGet(key []byte) ([]byte, error) {
	var recordBytes []byte
	err := backend.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		recordBytes, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return recordBytes, err
}

func (backend *BadgerBackend) txnPut(key, buf []byte) error {
	return backend.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

func (backend *BadgerBackend) txnDelete(key []byte) error {
	return backend.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (backend *BadgerBackend) Get(table, column, partition string) ([]byte, error) {
	return backend.txnGet(GetKey(table, column, partition))
}

func (backend *BadgerBackend) Put(table, column, partition string, buf []byte) error {
	return backend.txnPut(GetKey(table, column, partition), buf)
}

func (backend *BadgerBackend) Delete(table, column, partition string) error {
	return backend.txnDelete(GetKey(table, column, partition))
}

func (backend *BadgerBackend) IteratePartitions(table, column string, lambda func(string)) error {
	prefix := GetKeyPrefix(table, column)
	return backend.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			lambda(GetPartitionFromKey(prefix, it.Item().Key()))
		}
		return nil
	})
}
