package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationPolicyModelFor(t *testing.T) {
	p := GenerationPolicy{
		MaxAttempts:   3,
		PrimaryModel:  "gpt-4o-mini",
		FallbackModel: "gpt-4o",
	}

	// Первые попытки — основная модель, последняя — запасная
	assert.Equal(t, "gpt-4o-mini", p.ModelFor(0))
	assert.Equal(t, "gpt-4o-mini", p.ModelFor(1))
	assert.Equal(t, "gpt-4o", p.ModelFor(2))

	t.Run("без запасной модели", func(t *testing.T) {
		p := GenerationPolicy{MaxAttempts: 3, PrimaryModel: "gpt-4o-mini"}
		assert.Equal(t, "gpt-4o-mini", p.ModelFor(2))
	})

	t.Run("одна попытка сразу уходит на запасную", func(t *testing.T) {
		p := GenerationPolicy{MaxAttempts: 1, PrimaryModel: "a", FallbackModel: "b"}
		assert.Equal(t, "b", p.ModelFor(0))
	})
}
