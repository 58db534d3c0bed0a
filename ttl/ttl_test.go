package ttl

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushAndExpire(t *testing.T) {
	var mu sync.Mutex
	var got []string
	listener := func(payload ...interface{}) {
		e, ok := payload[0].(Entry)
		require.True(t, ok)
		mu.Lock()
		got = append(got, e.Pointer)
		mu.Unlock()
	}
	Emitter.On(ExpiredEvent, listener)

	s := New()
	s.Start()
	defer s.Stop()

	s.Push(time.Now().Add(-1*time.Second).Unix(), "p1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range got {
			if p == "p1" {
				return true
			}
		}
		return false
	}, 2*time.Second, 50*time.Millisecond)

	assert.Equal(t, 0, s.Len())
}

func TestRemoveBeforeExpiryPreventsEvent(t *testing.T) {
	s := New()
	s.Push(time.Now().Add(time.Hour).Unix(), "p2")
	require.Equal(t, 1, s.Len())

	s.Remove("p2")
	assert.Equal(t, 0, s.Len())
}

func TestNeverSchedulesFarFuture(t *testing.T) {
	s := New()
	ts := s.Never("p3")
	assert.Greater(t, ts, time.Now().Add(29*365*24*time.Hour).Unix())
	assert.Equal(t, 1, s.Len())
}
