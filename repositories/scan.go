package repositories

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Record is a raw key with its decoded fields, for inspection tools.
type Record struct {
	Key    string
	Size   int
	Fields map[string]any
	Err    error
}

// Scan walks every record whose key starts with prefix, in key order.
// Undecodable values are reported through Record.Err instead of stopping the scan.
func Scan(db *badger.DB, prefix string, fn func(record Record) error) error {
	return db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			record := Record{Key: string(item.KeyCopy(nil)), Size: int(item.ValueSize())}
			err := item.Value(func(val []byte) error {
				record.Fields, record.Err = decodeRecord(val)
				return nil
			})
			if err != nil {
				return fmt.Errorf("read %s: %w", record.Key, err)
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	})
}
