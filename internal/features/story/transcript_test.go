package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iamamir.ir/mystery-bot/internal/llm"
)

func TestTranscript(t *testing.T) {
	sections := []*Section{
		{ID: 1, IsSystem: true, Text: "инструкция рассказчика"},
		{ID: 2, IsSystem: false, Text: "توصیف سناریو اولیه:\nیک شب بارانی..."},
		{ID: 3, IsSystem: true, Text: `{"title": "..."}`},
		{ID: 4, IsSystem: false, Text: "2"},
		{ID: 5, IsSystem: true, Text: `{"title": "..."}`},
	}

	messages := Transcript(sections)
	require.Len(t, messages, 5)

	// Первая системная секция — system, последующие системные — assistant
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, llm.RoleUser, messages[1].Role)
	assert.Equal(t, llm.RoleAssistant, messages[2].Role)
	assert.Equal(t, llm.RoleUser, messages[3].Role)
	assert.Equal(t, llm.RoleAssistant, messages[4].Role)

	assert.Equal(t, "2", messages[3].Content)

	t.Run("повторный вызов даёт тот же результат", func(t *testing.T) {
		assert.Equal(t, messages, Transcript(sections))
	})

	t.Run("пустая история", func(t *testing.T) {
		assert.Empty(t, Transcript(nil))
	})
}
