package syncutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRunsUnderLock(t *testing.T) {
	var mu sync.Mutex
	ran := false
	With(&mu, func() { ran = true })
	assert.True(t, ran)

	// With must have unlocked mu on return.
	locked := mu.TryLock()
	assert.True(t, locked)
	if locked {
		mu.Unlock()
	}
}

func TestWithoutReleasesAndRelocks(t *testing.T) {
	var mu sync.Mutex
	mu.Lock()
	defer mu.Unlock()

	unlockedDuringCall := false
	Without(&mu, func() {
		unlockedDuringCall = mu.TryLock()
		if unlockedDuringCall {
			mu.Unlock()
		}
	})
	assert.True(t, unlockedDuringCall)

	// Without must have relocked mu before returning.
	relocked := mu.TryLock()
	assert.False(t, relocked, "mu should already be held after Without returns")
}

func TestRWithRunsUnderReadLock(t *testing.T) {
	var mu sync.RWMutex
	ran := false
	RWith(&mu, func() { ran = true })
	assert.True(t, ran)

	locked := mu.TryLock()
	assert.True(t, locked, "RWith must release the read lock on return")
	if locked {
		mu.Unlock()
	}
}
