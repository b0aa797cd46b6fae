// Package badgerstore provides optional BadgerDB-backed durability for the
// versioned heap and the commit log, so a VM's state survives a process
// restart instead of living only in memory.
//
// Key Structure:
//   - Heap layer: 0x01 + layer index (big-endian uint32) -> JSON([]treect.KV)
//   - Commit record: 0x02 + commit index (big-endian uint32) -> raw commit dump
package badgerstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/dgvm-project/dgvm/pkg/treect"
)

const (
	prefixHeapLayer    = byte(0x01)
	prefixCommitRecord = byte(0x02)
)

// Options configures the BadgerDB-backed store.
type Options struct {
	// DataDir is the directory for storing data files. Required unless
	// InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode. Useful for testing.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower, but survives a
	// hard crash without losing the last commit.
	SyncWrites bool
}

// Store is a BadgerDB-backed persistence layer for heap layers and commit
// records.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a BadgerDB-backed store under
// opts.DataDir.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: opening badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a Store backed by an in-memory BadgerDB, for tests
// that want persistence semantics without touching disk.
func OpenInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

// Close releases the underlying BadgerDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func heapLayerKey(index int) []byte {
	key := make([]byte, 5)
	key[0] = prefixHeapLayer
	binary.BigEndian.PutUint32(key[1:], uint32(index))
	return key
}

func commitRecordKey(index int) []byte {
	key := make([]byte, 5)
	key[0] = prefixCommitRecord
	binary.BigEndian.PutUint32(key[1:], uint32(index))
	return key
}

// SaveLayer persists a single heap layer's flattened entries at the given
// layer index, overwriting any previously saved layer at that index.
func (s *Store) SaveLayer(index int, layer *treect.Treect) error {
	data, err := json.Marshal(layer.AllItems())
	if err != nil {
		return fmt.Errorf("badgerstore: encoding layer %d: %w", index, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(heapLayerKey(index), data)
	})
}

// LoadLayers reconstructs every persisted heap layer, in ascending index
// order, as Treects ready to hand to heap.New's caller.
func (s *Store) LoadLayers() ([]*treect.Treect, error) {
	var layers []*treect.Treect
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte{prefixHeapLayer}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var kvs []treect.KV
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &kvs)
			})
			if err != nil {
				return fmt.Errorf("badgerstore: decoding layer: %w", err)
			}
			layer := treect.New()
			for _, kv := range kvs {
				layer.Set(kv.Path, kv.Value)
			}
			layers = append(layers, layer)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return layers, nil
}

// AppendCommitRecord persists the raw dump of a closed commit (see
// package commit's Dumps) at the given commit index.
func (s *Store) AppendCommitRecord(index int, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(commitRecordKey(index), append([]byte(nil), data...))
	})
}

// LoadCommitRecords returns every persisted commit dump in ascending
// commit-index order.
func (s *Store) LoadCommitRecords() ([][]byte, error) {
	var records [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte{prefixCommitRecord}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("badgerstore: reading commit record: %w", err)
			}
			records = append(records, val)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
