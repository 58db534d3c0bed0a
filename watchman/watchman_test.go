package watchman

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegDeliversSubscribedFirst(t *testing.T) {
	h := New()
	sub, err := h.Reg("s1")
	require.NoError(t, err)

	msg := <-sub.C()
	assert.Equal(t, Subscribed, msg.Kind)
	assert.Equal(t, "s1", msg.Sender)
}

func TestDuplicateSenderRejected(t *testing.T) {
	h := New()
	_, err := h.Reg("s1")
	require.NoError(t, err)

	_, err = h.Reg("s1")
	assert.ErrorIs(t, err, ErrDuplicateSender)
	assert.Equal(t, 1, h.Len())
}

func TestNotifyFansOutToAllSubscribers(t *testing.T) {
	h := New()
	a, err := h.Reg("a")
	require.NoError(t, err)
	b, err := h.Reg("b")
	require.NoError(t, err)

	<-a.C()
	<-b.C()

	h.Notify(Message{Kind: Insert, Pointer: "p1"})

	for _, sub := range []*Subscriber{a, b} {
		select {
		case msg := <-sub.C():
			assert.Equal(t, Insert, msg.Kind)
			assert.Equal(t, "p1", msg.Pointer)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for notify")
		}
	}
}

func TestUnregClosesChannel(t *testing.T) {
	h := New()
	sub, err := h.Reg("s1")
	require.NoError(t, err)
	<-sub.C()

	h.Unreg("s1")
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
}
