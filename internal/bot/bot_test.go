package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		cmd  string
		args string
	}{
		{"/start", "start", ""},
		{"/new", "new", ""},
		{"/new یک کارآگاه خصوصی در یک شب بارانی", "new", "یک کارآگاه خصوصی در یک شب بارانی"},
		{"/NEW  سناریو ", "new", "سناریو"},
		{"/login", "login", ""},
		{"سلام", "", "سلام"},
	}
	for _, tc := range cases {
		cmd, args := parseCommand(tc.in)
		assert.Equal(t, tc.cmd, cmd, tc.in)
		assert.Equal(t, tc.args, args, tc.in)
	}
}

func TestParseCallbackData(t *testing.T) {
	kind, parts := parseCallbackData("OPTION:15:2")
	assert.Equal(t, "OPTION", kind)
	assert.Equal(t, []string{"15", "2"}, parts)

	kind, parts = parseCallbackData("AI_SCENARIOS:7")
	assert.Equal(t, "AI_SCENARIOS", kind)
	assert.Equal(t, []string{"7"}, parts)

	kind, parts = parseCallbackData("RATE:3:5")
	assert.Equal(t, "RATE", kind)
	assert.Equal(t, []string{"3", "5"}, parts)

	t.Run("мусор без разделителя", func(t *testing.T) {
		kind, parts := parseCallbackData("garbage")
		assert.Empty(t, kind)
		assert.Nil(t, parts)
	})
}
