// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"context"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/docstore"
)

// fakeStore is an in-memory docstore.Store for handler tests. It
// implements the same version/index semantics as the Badger-backed
// gateway, minus persistence across restarts.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]fakeDoc
	indexes map[string]map[string][]string // "kind:index" -> key -> []id
}

type fakeDoc struct {
	version int64
	raw     []byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:    make(map[string]fakeDoc),
		indexes: make(map[string]map[string][]string),
	}
}

func (s *fakeStore) Load(_ context.Context, kind, id string, out any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[kind+":"+id]
	if !ok {
		return 0, docstore.ErrNotFound
	}
	if err := json.Unmarshal(doc.raw, out); err != nil {
		return 0, err
	}
	return doc.version, nil
}

func (s *fakeStore) Save(_ context.Context, ops ...docstore.WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		key := op.Kind + ":" + op.ID
		existing, exists := s.docs[key]
		if exists && existing.version != op.ExpectedVersion {
			return &docstore.ErrConflict{Kind: op.Kind, ID: op.ID, Expected: op.ExpectedVersion, Actual: existing.version}
		}
		if !exists && op.ExpectedVersion != 0 {
			return &docstore.ErrConflict{Kind: op.Kind, ID: op.ID, Expected: op.ExpectedVersion, Actual: 0}
		}
		raw, err := json.Marshal(op.Value)
		if err != nil {
			return err
		}
		s.docs[key] = fakeDoc{version: existing.version + 1, raw: raw}
		for _, idx := range op.Indexes {
			bucket := op.Kind + ":" + idx.Name
			if s.indexes[bucket] == nil {
				s.indexes[bucket] = make(map[string][]string)
			}
			ids := s.indexes[bucket][idx.Key]
			found := false
			for _, id := range ids {
				if id == op.ID {
					found = true
					break
				}
			}
			if !found {
				s.indexes[bucket][idx.Key] = append(ids, op.ID)
			}
		}
	}
	return nil
}

func (s *fakeStore) Delete(_ context.Context, kind, id string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := kind + ":" + id
	existing, ok := s.docs[key]
	if !ok {
		return docstore.ErrNotFound
	}
	if existing.version != expectedVersion {
		return &docstore.ErrConflict{Kind: kind, ID: id, Expected: expectedVersion, Actual: existing.version}
	}
	delete(s.docs, key)
	return nil
}

func (s *fakeStore) Query(_ context.Context, kind, index string, key any, opts docstore.QueryOptions, outSlice any) (docstore.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := kind + ":" + index
	keyStr, _ := key.(string)
	ids := append([]string(nil), s.indexes[bucket][keyStr]...)
	sort.Strings(ids)

	limit := opts.Limit
	if limit <= 0 || limit > docstore.MaxQueryLimit {
		limit = docstore.MaxQueryLimit
	}

	var raws []json.RawMessage
	for _, id := range ids {
		if len(raws) >= limit {
			break
		}
		doc, ok := s.docs[kind+":"+id]
		if !ok {
			continue
		}
		raws = append(raws, doc.raw)
	}

	combined, err := json.Marshal(raws)
	if err != nil {
		return docstore.QueryResult{}, err
	}
	if err := json.Unmarshal(combined, outSlice); err != nil {
		return docstore.QueryResult{}, err
	}
	return docstore.QueryResult{}, nil
}

func (s *fakeStore) Close() error { return nil }
