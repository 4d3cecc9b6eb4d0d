package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Секции хранятся парами — отчёт делит их на витки ровно один раз.
func TestWriteReportHalvesSectionsOnce(t *testing.T) {
	var buf bytes.Buffer
	writeReport(&buf, 3, 5, 10, 7, 42)

	out := buf.String()
	assert.Contains(t, out, "👤 Users:           3\n")
	assert.Contains(t, out, "📖 Stories:         5\n")
	assert.Contains(t, out, "🎭 Story Scenarios: 7\n")
	assert.Contains(t, out, "📑 Sections:        5\n")
	assert.Contains(t, out, "🧠 LLM History:     42\n")

	t.Run("нечётное число секций округляется вниз", func(t *testing.T) {
		var odd bytes.Buffer
		writeReport(&odd, 0, 0, 3, 0, 0)
		assert.Contains(t, odd.String(), "📑 Sections:        1\n")
	})
}
