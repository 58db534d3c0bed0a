package hashindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flinch/document"
)

func doc(t *testing.T, key string) *document.Document {
	t.Helper()
	d, err := document.New([]byte(`{"k":"`+key+`"}`), &document.Options{IndexOpts: []string{"k"}})
	require.NoError(t, err)
	return d
}

func TestPutGetDelete(t *testing.T) {
	idx := New()
	d := doc(t, "K")
	require.NoError(t, idx.Put("p1", d))

	got, ok := idx.Get("K")
	require.True(t, ok)
	assert.Equal(t, "p1", got)

	idx.Delete(d)
	_, ok = idx.Get("K")
	assert.False(t, ok)
}

func TestPutDuplicateLeavesIndexUnchanged(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Put("p1", doc(t, "K")))

	err := idx.Put("p2", doc(t, "K"))
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "K", dup.Key)

	got, _ := idx.Get("K")
	assert.Equal(t, "p1", got)
}

func TestPutPartialConflictLeavesAllKeysUntouched(t *testing.T) {
	idx := New()
	multi, err := document.New([]byte(`{"a":"A","b":"B"}`), &document.Options{IndexOpts: []string{"a", "b"}})
	require.NoError(t, err)
	require.NoError(t, idx.Put("p1", multi))

	conflict, err := document.New([]byte(`{"a":"X","b":"B"}`), &document.Options{IndexOpts: []string{"a", "b"}})
	require.NoError(t, err)
	err = idx.Put("p2", conflict)
	require.Error(t, err)

	_, ok := idx.Get("X")
	assert.False(t, ok, "no partial insertion on conflict")
}
