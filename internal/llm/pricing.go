// Package llm — pricing.go переводит токены в деньги.
package llm

// Pricing — цены за миллион токенов и фиксированная цена обложки.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
	ImagePrice       float64
}

// Cost считает стоимость одного вызова модели.
// Чистая функция, без округления — округляем только при отображении.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	inputCost := float64(inputTokens) * p.InputPerMillion / 1_000_000.0
	outputCost := float64(outputTokens) * p.OutputPerMillion / 1_000_000.0
	return inputCost + outputCost
}
