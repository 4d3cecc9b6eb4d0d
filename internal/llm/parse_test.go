package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStoryResponse(t *testing.T) {
	t.Run("валидный ответ в код-блоке", func(t *testing.T) {
		raw := "```json\n{\"title\": \"شب بارانی\", \"story\": \"در یک شب بارانی...\", " +
			"\"options\": {\"2\": \"فرار کن\", \"1\": \"در را باز کن\", \"3\": \"پلیس را خبر کن\"}, " +
			"\"is_end\": false}\n```"

		resp := ParseStoryResponse(raw)
		require.NotNil(t, resp)
		assert.Equal(t, "شب بارانی", resp.Title)
		assert.Equal(t, "در یک شب بارانی...", resp.Story)
		assert.False(t, resp.IsEnd)
		// Исходный текст сохраняется как есть, вместе с маркерами
		assert.Equal(t, raw, resp.RawData)

		// Варианты отсортированы по числовому ключу
		require.Len(t, resp.Options, 3)
		assert.Equal(t, 1, resp.Options[0].ID)
		assert.Equal(t, "در را باز کن", resp.Options[0].Text)
		assert.Equal(t, 2, resp.Options[1].ID)
		assert.Equal(t, 3, resp.Options[2].ID)
	})

	t.Run("финал истории без вариантов", func(t *testing.T) {
		resp := ParseStoryResponse(`{"title": "پایان", "story": "راز فاش شد.", "options": {}, "is_end": true}`)
		require.NotNil(t, resp)
		assert.True(t, resp.IsEnd)
		assert.Empty(t, resp.Options)
	})

	t.Run("битый JSON — nil", func(t *testing.T) {
		assert.Nil(t, ParseStoryResponse("داستان جذابی بود ولی JSON نیست"))
	})

	t.Run("отсутствует обязательный ключ — nil", func(t *testing.T) {
		assert.Nil(t, ParseStoryResponse(`{"title": "بدون متن", "options": {"1": "..."}, "is_end": false}`))
	})

	t.Run("нечисловой ключ варианта — nil", func(t *testing.T) {
		assert.Nil(t, ParseStoryResponse(`{"title": "t", "story": "s", "options": {"اول": "..."}, "is_end": false}`))
	})
}

func TestParseChatResponse(t *testing.T) {
	t.Run("обычная реплика", func(t *testing.T) {
		resp := ParseChatResponse("```json\n{\"COMMAND\": \"CHAT\", \"TEXT\": \"سلام! چطور می‌تونم کمکت کنم؟\"}\n```")
		require.NotNil(t, resp)
		assert.Equal(t, CommandChat, resp.Command)
		assert.Equal(t, "سلام! چطور می‌تونم کمکت کنم؟", resp.Text)
	})

	t.Run("команды управления историей", func(t *testing.T) {
		for _, cmd := range []string{"SHOW_SCENARIOS", "START_STORY", "END_STORY"} {
			resp := ParseChatResponse(`{"COMMAND": "` + cmd + `", "TEXT": "باشه!"}`)
			require.NotNil(t, resp, cmd)
			assert.Equal(t, ChatCommand(cmd), resp.Command)
		}
	})

	t.Run("неизвестная команда — nil", func(t *testing.T) {
		assert.Nil(t, ParseChatResponse(`{"COMMAND": "DANCE", "TEXT": "..."}`))
	})

	t.Run("нет текста — nil", func(t *testing.T) {
		assert.Nil(t, ParseChatResponse(`{"COMMAND": "CHAT"}`))
	})

	t.Run("битый JSON — nil", func(t *testing.T) {
		assert.Nil(t, ParseChatResponse("CHAT: سلام"))
	})
}
