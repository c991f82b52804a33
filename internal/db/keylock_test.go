package db

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLockSerializesPerKey(t *testing.T) {
	locks := NewKeyedLock()

	var mu sync.Mutex
	counters := map[uint]int{}
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		for _, key := range []uint{1, 2} {
			wg.Add(1)
			go func(key uint) {
				defer wg.Done()
				locks.Lock(key)
				defer locks.Unlock(key)

				mu.Lock()
				counters[key]++
				mu.Unlock()
			}(key)
		}
	}
	wg.Wait()

	assert.Equal(t, 50, counters[1])
	assert.Equal(t, 50, counters[2])
}

func TestKeyedLockIndependentKeys(t *testing.T) {
	locks := NewKeyedLock()

	locks.Lock(1)
	done := make(chan struct{})
	go func() {
		// A different key must not block
		locks.Lock(2)
		locks.Unlock(2)
		close(done)
	}()
	<-done
	locks.Unlock(1)
}
