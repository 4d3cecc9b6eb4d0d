package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserLock(t *testing.T) {
	l := NewUserLock()

	// Второй параллельный захват того же пользователя отбрасывается
	assert.True(t, l.TryAcquire(1))
	assert.False(t, l.TryAcquire(1))

	// Другой пользователь не блокируется
	assert.True(t, l.TryAcquire(2))

	l.Release(1)
	assert.True(t, l.TryAcquire(1))

	t.Run("Release без захвата безопасен", func(t *testing.T) {
		l.Release(42)
		assert.True(t, l.TryAcquire(42))
	})
}
