package rangeindex

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeInclusiveBounds(t *testing.T) {
	idx := New()
	for i := 1; i <= 10; i++ {
		v := fmt.Sprintf("%02d", i)
		idx.PutField("age", v, "p"+v)
	}

	got := idx.Range("age", "03", "07")
	assert.ElementsMatch(t, []string{"p03", "p04", "p05", "p06", "p07"}, got)
}

func TestRangeSingleValueBoundary(t *testing.T) {
	idx := New()
	idx.PutField("f", "a", "p1")
	idx.PutField("f", "b", "p2")

	assert.Equal(t, []string{"p1"}, idx.Range("f", "a", "a"))
}

func TestDeleteRemovesPointer(t *testing.T) {
	idx := New()
	idx.PutField("f", "a", "p1")
	idx.DeleteField("f", "a", "p1")
	assert.Empty(t, idx.Range("f", "a", "a"))
}
