package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCharge(t *testing.T) {
	assert.Equal(t, "0.0000$", FormatCharge(0))
	assert.Equal(t, "1.2500$", FormatCharge(1.25))
	assert.Equal(t, "-0.0420$", FormatCharge(-0.042))
}

func TestDayAgo(t *testing.T) {
	ago := DayAgo()
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), ago, time.Second)
}

func TestCorrelationID(t *testing.T) {
	id := CorrelationID()
	assert.Len(t, id, 8)
	// Два вызова почти наверняка дают разные значения
	assert.NotEqual(t, id, CorrelationID())
}
