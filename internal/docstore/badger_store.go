// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package docstore

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/dgraph-io/badger/v4"
)

// envelope is the on-disk shape of every primary-key document: the
// caller's value plus the version counter the gateway maintains.
type envelope struct {
	Version int64           `json:"__version"`
	Value   jsonRawOrStruct `json:"value"`
}

// jsonRawOrStruct lets envelope marshal/unmarshal an arbitrary caller
// value without a second allocation pass; it is just a type alias over
// json.RawMessage used to keep the struct tag readable.
type jsonRawOrStruct = []byte

func primaryKey(kind, id string) []byte {
	return []byte(fmt.Sprintf("doc:%s:%s", kind, id))
}

func indexKey(kind, index string, key any, id string) []byte {
	return []byte(fmt.Sprintf("idx:%s:%s:%v:%s", kind, index, key, id))
}

func indexPrefix(kind, index string, key any) []byte {
	return []byte(fmt.Sprintf("idx:%s:%s:%v:", kind, index, key))
}

// reverseIndexKey stores the set of index keys currently maintained for one
// document, so a later Save that changes or drops an Index can retract the
// stale entries instead of leaking them permanently.
func reverseIndexKey(kind, id string) []byte {
	return []byte(fmt.Sprintf("ridx:%s:%s", kind, id))
}

// BadgerStore implements Store over a BadgerDB handle.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a BadgerDB database at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("docstore: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreFromDB wraps an already-open handle, used by tests that
// want an in-memory database (badger.DefaultOptions("").WithInMemory(true)).
func NewBadgerStoreFromDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Load(_ context.Context, kind, id string, out any) (int64, error) {
	var env envelope
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(primaryKey(kind, id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if err != nil {
		return 0, err
	}
	if len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, out); err != nil {
			return 0, fmt.Errorf("docstore: decode %s/%s: %w", kind, id, err)
		}
	}
	return env.Version, nil
}

func (s *BadgerStore) Save(_ context.Context, ops ...WriteOp) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			if op.Delete {
				if err := deleteOp(txn, op); err != nil {
					return err
				}
				continue
			}
			if err := writeOp(txn, op); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeOp(txn *badger.Txn, op WriteOp) error {
	pk := primaryKey(op.Kind, op.ID)
	var current envelope
	item, err := txn.Get(pk)
	switch {
	case err == nil:
		if verr := item.Value(func(val []byte) error { return json.Unmarshal(val, &current) }); verr != nil {
			return verr
		}
		if current.Version != op.ExpectedVersion {
			return &ErrConflict{Kind: op.Kind, ID: op.ID, Expected: op.ExpectedVersion, Actual: current.Version}
		}
	case err == badger.ErrKeyNotFound:
		if op.ExpectedVersion != 0 {
			return &ErrConflict{Kind: op.Kind, ID: op.ID, Expected: op.ExpectedVersion, Actual: 0}
		}
	default:
		return err
	}

	raw, err := json.Marshal(op.Value)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", op.Kind, op.ID, err)
	}
	next := envelope{Version: op.ExpectedVersion + 1, Value: raw}
	encoded, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := txn.Set(pk, encoded); err != nil {
		return err
	}

	return reindex(txn, op.Kind, op.ID, op.Indexes)
}

// reindex retracts any index entries this document previously held (read
// from its reverse-index record) that are absent from next, then lays down
// next, and updates the reverse-index record to match. This keeps an index
// scan (used by, e.g., the outbox processor and the lifecycle purge sweep)
// from returning documents whose indexed value has since moved on or been
// cleared entirely.
func reindex(txn *badger.Txn, kind, id string, next []Index) error {
	rik := reverseIndexKey(kind, id)
	var previous []Index
	if item, err := txn.Get(rik); err == nil {
		if verr := item.Value(func(val []byte) error { return json.Unmarshal(val, &previous) }); verr != nil {
			return verr
		}
	} else if err != badger.ErrKeyNotFound {
		return err
	}

	keep := make(map[string]bool, len(next))
	for _, idx := range next {
		keep[string(indexKey(kind, idx.Name, idx.Key, id))] = true
	}
	for _, idx := range previous {
		k := indexKey(kind, idx.Name, idx.Key, id)
		if !keep[string(k)] {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
	}

	for _, idx := range next {
		if err := txn.Set(indexKey(kind, idx.Name, idx.Key, id), []byte{}); err != nil {
			return err
		}
	}

	if len(next) == 0 {
		return txn.Delete(rik)
	}
	encoded, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return txn.Set(rik, encoded)
}

func deleteOp(txn *badger.Txn, op WriteOp) error {
	pk := primaryKey(op.Kind, op.ID)
	item, err := txn.Get(pk)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	}
	var current envelope
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &current) }); err != nil {
		return err
	}
	if current.Version != op.ExpectedVersion {
		return &ErrConflict{Kind: op.Kind, ID: op.ID, Expected: op.ExpectedVersion, Actual: current.Version}
	}
	if err := reindex(txn, op.Kind, op.ID, nil); err != nil {
		return err
	}
	return txn.Delete(pk)
}

func (s *BadgerStore) Delete(ctx context.Context, kind, id string, expectedVersion int64) error {
	return s.Save(ctx, WriteOp{Kind: kind, ID: id, ExpectedVersion: expectedVersion, Delete: true})
}

func (s *BadgerStore) Query(_ context.Context, kind, index string, key any, opts QueryOptions, outSlice any) (QueryResult, error) {
	if opts.Limit <= 0 || opts.Limit > MaxQueryLimit {
		return QueryResult{}, fmt.Errorf("docstore: query limit must be in (0,%d], got %d", MaxQueryLimit, opts.Limit)
	}

	ids, nextCursor, err := s.scanIndex(kind, index, key, opts)
	if err != nil {
		return QueryResult{}, err
	}

	results, err := s.loadMany(kind, ids)
	if err != nil {
		return QueryResult{}, err
	}
	if err := decodeSlice(results, outSlice); err != nil {
		return QueryResult{}, err
	}
	return QueryResult{NextCursor: nextCursor}, nil
}

func (s *BadgerStore) scanIndex(kind, index string, key any, opts QueryOptions) (ids []string, nextCursor string, err error) {
	prefix := indexPrefix(kind, index, key)
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		started := opts.Cursor == ""
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := string(it.Item().Key())
			id := k[len(prefix):]
			if !started {
				if id == opts.Cursor {
					started = true
				}
				continue
			}
			if len(ids) == opts.Limit {
				nextCursor = id
				return nil
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, nextCursor, err
}

func (s *BadgerStore) loadMany(kind string, ids []string) ([][]byte, error) {
	out := make([][]byte, 0, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(primaryKey(kind, id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			var env envelope
			if verr := item.Value(func(val []byte) error { return json.Unmarshal(val, &env) }); verr != nil {
				return verr
			}
			out = append(out, env.Value)
		}
		return nil
	})
	return out, err
}
