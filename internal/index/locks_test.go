package index

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocksExcludeWritersPerKey(t *testing.T) {
	l := NewLocks()
	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("k")
			defer unlock()
			n := inside.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, 0, l.size())
}

func TestLocksIndependentKeys(t *testing.T) {
	l := NewLocks()
	unlockA := l.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := l.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
}

func TestReadersShare(t *testing.T) {
	l := NewLocks()
	r1 := l.RLock("k")
	r2 := l.RLock("k")
	assert.Equal(t, 1, l.size())
	r1()
	r2()
	assert.Equal(t, 0, l.size())
}
