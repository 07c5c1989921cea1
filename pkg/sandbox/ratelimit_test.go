package sandbox

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterQuota(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("u1"), "request %d within quota", i)
	}
	assert.False(t, rl.Allow("u1"))
	assert.Equal(t, 0, rl.Remaining("u1"))
}

func TestRateLimiterPerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"), "quotas are per user")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(2, 30*time.Millisecond)

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))

	time.Sleep(40 * time.Millisecond)

	assert.True(t, rl.Allow("u1"), "old stamps pruned after the window passes")
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)

	for i := 0; i < DefaultRateQuota; i++ {
		assert.True(t, rl.Allow("u1"))
	}
	assert.False(t, rl.Allow("u1"))
}

func TestRateLimiterConcurrentUsers(t *testing.T) {
	rl := NewRateLimiter(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rl.Allow("shared")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, rl.Remaining("shared"))
	assert.False(t, rl.Allow("shared"))
}
