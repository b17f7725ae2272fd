// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package docstore_test

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/docstore"
)

type testTrack struct {
	Title string `json:"title"`
}

func newTestStore(t *testing.T) *docstore.BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return docstore.NewBadgerStoreFromDB(db)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Save(ctx, docstore.WriteOp{Kind: "track", ID: "t1", ExpectedVersion: 0, Value: testTrack{Title: "one"}})
	require.NoError(t, err)

	var got testTrack
	version, err := s.Load(ctx, "track", "t1", &got)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
	require.Equal(t, "one", got.Title)
}

func TestSaveConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Save(ctx, docstore.WriteOp{Kind: "track", ID: "t1", ExpectedVersion: 0, Value: testTrack{Title: "one"}}))

	err := s.Save(ctx, docstore.WriteOp{Kind: "track", ID: "t1", ExpectedVersion: 0, Value: testTrack{Title: "two"}})
	require.Error(t, err)
	var conflict *docstore.ErrConflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, int64(0), conflict.Expected)
	require.Equal(t, int64(1), conflict.Actual)
}

func TestLoadNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var got testTrack
	_, err := s.Load(ctx, "track", "missing", &got)
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestQueryIndexAndCursor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, id := range []string{"t1", "t2", "t3"} {
		err := s.Save(ctx, docstore.WriteOp{
			Kind: "track", ID: id, ExpectedVersion: 0,
			Value:   testTrack{Title: id},
			Indexes: []docstore.Index{{Name: "by_user", Key: "user-1"}},
		})
		require.NoError(t, err)
		_ = i
	}

	var page []testTrack
	res, err := s.Query(ctx, "track", "by_user", "user-1", docstore.QueryOptions{Limit: 2}, &page)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotEmpty(t, res.NextCursor)

	var rest []testTrack
	res2, err := s.Query(ctx, "track", "by_user", "user-1", docstore.QueryOptions{Limit: 2, Cursor: res.NextCursor}, &rest)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Empty(t, res2.NextCursor)
}

func TestSaveRetractsStaleIndexEntryOnKeyChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Save(ctx, docstore.WriteOp{
		Kind: "track", ID: "t1", ExpectedVersion: 0,
		Value:   testTrack{Title: "one"},
		Indexes: []docstore.Index{{Name: "by_status", Key: "pending"}},
	}))

	var pending []testTrack
	_, err := s.Query(ctx, "track", "by_status", "pending", docstore.QueryOptions{Limit: 10}, &pending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.Save(ctx, docstore.WriteOp{
		Kind: "track", ID: "t1", ExpectedVersion: 1,
		Value:   testTrack{Title: "one"},
		Indexes: []docstore.Index{{Name: "by_status", Key: "done"}},
	}))

	pending = nil
	_, err = s.Query(ctx, "track", "by_status", "pending", docstore.QueryOptions{Limit: 10}, &pending)
	require.NoError(t, err)
	require.Empty(t, pending, "stale index entry under the old key must be retracted")

	var done []testTrack
	_, err = s.Query(ctx, "track", "by_status", "done", docstore.QueryOptions{Limit: 10}, &done)
	require.NoError(t, err)
	require.Len(t, done, 1)
}

func TestSaveClearsIndexesWhenOmitted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Save(ctx, docstore.WriteOp{
		Kind: "track", ID: "t1", ExpectedVersion: 0,
		Value:   testTrack{Title: "one"},
		Indexes: []docstore.Index{{Name: "by_status", Key: "pending"}},
	}))
	require.NoError(t, s.Save(ctx, docstore.WriteOp{
		Kind: "track", ID: "t1", ExpectedVersion: 1,
		Value: testTrack{Title: "one"},
	}))

	var pending []testTrack
	_, err := s.Query(ctx, "track", "by_status", "pending", docstore.QueryOptions{Limit: 10}, &pending)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDeleteConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Save(ctx, docstore.WriteOp{Kind: "track", ID: "t1", ExpectedVersion: 0, Value: testTrack{Title: "one"}}))
	err := s.Delete(ctx, "track", "t1", 0)
	require.Error(t, err)
	require.NoError(t, s.Delete(ctx, "track", "t1", 1))

	var got testTrack
	_, err = s.Load(ctx, "track", "t1", &got)
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestDeleteRetractsIndexEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Save(ctx, docstore.WriteOp{
		Kind: "track", ID: "t1", ExpectedVersion: 0,
		Value:   testTrack{Title: "one"},
		Indexes: []docstore.Index{{Name: "by_status", Key: "pending"}},
	}))
	require.NoError(t, s.Delete(ctx, "track", "t1", 1))

	var pending []testTrack
	_, err := s.Query(ctx, "track", "by_status", "pending", docstore.QueryOptions{Limit: 10}, &pending)
	require.NoError(t, err)
	require.Empty(t, pending)
}
