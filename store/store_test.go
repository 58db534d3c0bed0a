package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flinch.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRemove(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, s.Put(DocumentPrefix+"p1", []byte(`{"a":1}`)))
	v, ok, err := s.Get(DocumentPrefix + "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(v))

	require.NoError(t, s.Remove(DocumentPrefix+"p1"))
	_, ok, err = s.Get(DocumentPrefix + "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutAnyGetAny(t *testing.T) {
	s := openTemp(t)

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, s.PutAny(CollectionPrefix+"c1", payload{Name: "widgets"}))

	var out payload
	ok, err := s.GetAny(CollectionPrefix+"c1", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "widgets", out.Name)
}

func TestPrefixOrderedScan(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, s.Put(DocumentPrefix+"b", []byte("2")))
	require.NoError(t, s.Put(DocumentPrefix+"a", []byte("1")))
	require.NoError(t, s.Put(TTLPrefix+"x", []byte("ignored")))

	got, err := s.Prefix(DocumentPrefix)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, DocumentPrefix+"a", got[0].Key)
	assert.Equal(t, DocumentPrefix+"b", got[1].Key)
}

func TestGetMissingKey(t *testing.T) {
	s := openTemp(t)
	_, ok, err := s.Get(DocumentPrefix + "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollectionBucketsAreIsolated(t *testing.T) {
	s := openTemp(t)

	widgets, err := s.Collection("widgets")
	require.NoError(t, err)
	gadgets, err := s.Collection("gadgets")
	require.NoError(t, err)

	require.NoError(t, widgets.Put(DocumentPrefix+"p1", []byte("widget")))
	require.NoError(t, gadgets.Put(DocumentPrefix+"p1", []byte("gadget")))

	v, ok, err := widgets.Get(DocumentPrefix + "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "widget", string(v))

	v, ok, err = gadgets.Get(DocumentPrefix + "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gadget", string(v))

	_, ok, err = s.Get(DocumentPrefix + "p1")
	require.NoError(t, err)
	assert.False(t, ok, "root bucket must not see per-collection keys")
}

func TestDropCollectionRemovesEverything(t *testing.T) {
	s := openTemp(t)

	widgets, err := s.Collection("widgets")
	require.NoError(t, err)
	require.NoError(t, widgets.Put(DocumentPrefix+"p1", []byte("widget")))

	require.NoError(t, s.DropCollection("widgets"))

	widgets2, err := s.Collection("widgets")
	require.NoError(t, err)
	_, ok, err := widgets2.Get(DocumentPrefix + "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDropCollectionMissingIsNoop(t *testing.T) {
	s := openTemp(t)
	assert.NoError(t, s.DropCollection("never-existed"))
}
