//go:build testutil
// +build testutil

package pgstore_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/remote"
	"github.com/Spok95/ada-portal/internal/remote/pgstore"
	"github.com/Spok95/ada-portal/internal/testutil/testdb"
)

func field(t *testing.T, name string, v any) remote.Document {
	t.Helper()
	doc, err := remote.Field(name, v)
	require.NoError(t, err)
	return doc
}

func TestStore_GetPutMerge(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	st, err := pgstore.Open(ctx, h.URI, "ada_portal")
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Probe(ctx))

	_, ok, err := st.Get(ctx, "progress_ann@corp_com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Put(ctx, "progress_ann@corp_com", field(t, "map", map[string]bool{"a": true, "b": false}), true))
	require.NoError(t, st.Put(ctx, "progress_ann@corp_com", field(t, "map", map[string]bool{"b": true, "c": true}), true))

	doc, ok, err := st.Get(ctx, "progress_ann@corp_com")
	require.NoError(t, err)
	require.True(t, ok)
	var m map[string]bool
	found, err := doc.Decode("map", &m)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, m)

	// другой namespace не видит документ
	other, err := pgstore.Open(ctx, h.URI, "other")
	require.NoError(t, err)
	defer other.Close()
	_, ok, err = other.Get(ctx, "progress_ann@corp_com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ConcurrentMerge(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	st, err := pgstore.Open(ctx, h.URI, "ada_portal")
	require.NoError(t, err)
	defer st.Close()

	// строка должна существовать: FOR UPDATE сериализует только существующие
	require.NoError(t, st.Put(ctx, "progress_x", field(t, "map", map[string]bool{}), false))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			assert.NoError(t, st.Put(ctx, "progress_x", field(t, "map", map[string]bool{key: true}), true))
		}(i)
	}
	wg.Wait()

	doc, ok, err := st.Get(ctx, "progress_x")
	require.NoError(t, err)
	require.True(t, ok)
	var m map[string]json.RawMessage
	_, err = doc.Decode("map", &m)
	require.NoError(t, err)
	assert.Len(t, m, 20)
}

func TestStore_MissingTableClassified(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	st, err := pgstore.Open(ctx, h.URI, "ada_portal")
	require.NoError(t, err)
	defer st.Close()

	err = st.Probe(ctx)
	require.Error(t, err)
	assert.Equal(t, connectivity.KindMissingStore, connectivity.Classify(err))
}
