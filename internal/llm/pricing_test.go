package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricingCost(t *testing.T) {
	p := Pricing{InputPerMillion: 0.15, OutputPerMillion: 0.60}

	assert.Equal(t, 0.0, p.Cost(0, 0))
	// Миллион входных токенов стоит ровно цену за миллион
	assert.InDelta(t, 0.15, p.Cost(1_000_000, 0), 1e-12)
	assert.InDelta(t, 0.60, p.Cost(0, 1_000_000), 1e-12)
	assert.InDelta(t, 0.75, p.Cost(1_000_000, 1_000_000), 1e-12)

	// Типичный виток: сотни токенов — доли цента
	cost := p.Cost(1200, 450)
	assert.InDelta(t, 1200*0.15/1e6+450*0.60/1e6, cost, 1e-12)
	assert.Less(t, cost, 0.01)
}
