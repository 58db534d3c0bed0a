package invertedindex

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeNormalizer(t *testing.T) {
	got := Tokenize("  Hello-World_Foo(Bar)+Baz/Qux[a]  ")
	assert.Equal(t, []string{"hello", "world", "foo", "bar", "baz", "qux", "a"}, got)
}

func TestFindExactMatch(t *testing.T) {
	idx := New()
	idx.Put("d1", "Alpha Beta")
	idx.Put("d2", "beta gamma")

	assert.ElementsMatch(t, []string{"d1", "d2"}, idx.Find([]string{"beta"}))
	assert.ElementsMatch(t, []string{"d1"}, idx.Find([]string{"alpha"}))
}

func TestWFindSubstringMatch(t *testing.T) {
	idx := New()
	idx.Put("d1", "abcdef")
	idx.Put("d2", "zzz")

	got := idx.WFind([]string{"ab", "cd"})
	sort.Strings(got)
	assert.Equal(t, []string{"d1"}, got)
}

func TestDeleteRemovesPointerKeepsEmptySet(t *testing.T) {
	idx := New()
	idx.Put("d1", "solo")
	idx.Delete("d1", "solo")

	assert.Empty(t, idx.Find([]string{"solo"}))
	set, kept := idx.kv.Get("solo")
	assert.True(t, kept)
	assert.Empty(t, set)
}
