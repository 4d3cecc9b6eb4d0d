package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedup(t *testing.T) {
	d := NewDedup(3)

	assert.False(t, d.Seen(1))
	assert.False(t, d.Seen(2))
	assert.True(t, d.Seen(1))

	// Переполнение вытесняет самый старый id
	assert.False(t, d.Seen(3))
	assert.False(t, d.Seen(4)) // вытесняет 1
	assert.False(t, d.Seen(1))
	assert.True(t, d.Seen(4))

	t.Run("некорректный размер", func(t *testing.T) {
		d := NewDedup(0)
		assert.False(t, d.Seen(7))
		assert.True(t, d.Seen(7))
	})
}
