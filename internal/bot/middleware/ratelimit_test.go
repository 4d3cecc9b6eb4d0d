package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, 100*time.Millisecond)
	defer rl.Close()

	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))

	// Лимит на другого пользователя независим
	assert.True(t, rl.Allow(2))

	// После окна запросы снова проходят
	time.Sleep(120 * time.Millisecond)
	assert.True(t, rl.Allow(1))
}
