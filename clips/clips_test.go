package clips

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTagged struct{ tokens []string }

func (f fakeTagged) Tokens() []string { return f.tokens }

func TestPutGetDeleteClip(t *testing.T) {
	c := New()
	d := fakeTagged{tokens: []string{"blue", "large"}}
	c.Put("p1", d)

	assert.ElementsMatch(t, []string{"p1"}, c.Get("blue"))
	assert.ElementsMatch(t, []string{"p1"}, c.Get("large"))

	c.Delete("p1", d)
	assert.Empty(t, c.Get("blue"))
}

func TestViewDoesNotCollideWithUserTag(t *testing.T) {
	c := New()
	c.Put("p1", fakeTagged{tokens: []string{"ADULT"}})
	c.PutView("ADULT", "p2")

	assert.ElementsMatch(t, []string{"p1"}, c.Get("ADULT"))
	assert.ElementsMatch(t, []string{"p2"}, c.GetView("ADULT"))
}

func TestDeleteClipRemovesWholeSet(t *testing.T) {
	c := New()
	c.Put("p1", fakeTagged{tokens: []string{"tag"}})
	c.DeleteClip("tag")
	assert.Empty(t, c.Get("tag"))
}
