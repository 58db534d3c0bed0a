package flinchdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flinch/document"
)

func openTemp(t *testing.T) *Database {
	t.Helper()
	db, errs := Open(filepath.Join(t.TempDir(), "db.bolt"))
	require.Empty(t, errs)
	t.Cleanup(db.Close)
	return db
}

func TestAddUsingDrop(t *testing.T) {
	db := openTemp(t)

	_, err := db.Add(&document.Options{Name: "widgets"})
	require.NoError(t, err)

	c, err := db.Using("widgets")
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.ElementsMatch(t, []string{"widgets"}, db.Ls())

	require.NoError(t, db.Drop("widgets"))
	_, err = db.Using("widgets")
	assert.ErrorIs(t, err, ErrNoSuchCollection)
}

func TestAddDuplicateRejected(t *testing.T) {
	db := openTemp(t)

	_, err := db.Add(&document.Options{Name: "widgets"})
	require.NoError(t, err)

	_, err = db.Add(&document.Options{Name: "widgets"})
	assert.ErrorIs(t, err, ErrDuplicateCollection)
}

func TestBootReloadsPersistedCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.bolt")

	db1, errs := Open(path)
	require.Empty(t, errs)
	c, err := db1.Add(&document.Options{Name: "widgets", IndexOpts: []string{"k"}})
	require.NoError(t, err)
	_, err = c.Put("p1", []byte(`{"k":"v"}`))
	require.NoError(t, err)
	db1.Close()

	db2, errs := Open(path)
	require.Empty(t, errs)
	defer db2.Close()

	assert.ElementsMatch(t, []string{"widgets"}, db2.Ls())
	c2, err := db2.Using("widgets")
	require.NoError(t, err)
	obj, ok := c2.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "v", obj["k"])
}

// TestBootReloadsMultipleCollectionsIndependently guards against a
// collection's boot ingesting another collection's documents: each
// collection lives in its own bbolt bucket, so a database with several
// collections must reload each one with only its own pointers.
func TestBootReloadsMultipleCollectionsIndependently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.bolt")

	db1, errs := Open(path)
	require.Empty(t, errs)

	widgets, err := db1.Add(&document.Options{Name: "widgets"})
	require.NoError(t, err)
	_, err = widgets.Put("w1", []byte(`{"kind":"widget"}`))
	require.NoError(t, err)
	_, err = widgets.Put("w2", []byte(`{"kind":"widget"}`))
	require.NoError(t, err)

	gadgets, err := db1.Add(&document.Options{Name: "gadgets"})
	require.NoError(t, err)
	_, err = gadgets.Put("g1", []byte(`{"kind":"gadget"}`))
	require.NoError(t, err)
	require.NoError(t, gadgets.PutTTL("g1", 4102444800)) // 2100-01-01, never fires during the test
	db1.Close()

	db2, errs := Open(path)
	require.Empty(t, errs)
	defer db2.Close()

	assert.ElementsMatch(t, []string{"widgets", "gadgets"}, db2.Ls())

	w2, err := db2.Using("widgets")
	require.NoError(t, err)
	assert.Equal(t, 2, w2.Len())
	_, ok := w2.Get("g1")
	assert.False(t, ok, "widgets must not have re-ingested gadgets' documents")

	g2, err := db2.Using("gadgets")
	require.NoError(t, err)
	assert.Equal(t, 1, g2.Len())
	_, ok = g2.Get("w1")
	assert.False(t, ok, "gadgets must not have re-ingested widgets' documents")
}
