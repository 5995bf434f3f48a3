package domain

import (
	"context"
	"errors"
)

const tokensToPerK = 1000.0

// StandardCostCalculator implements standard token-based cost calculation.
type StandardCostCalculator struct {
	pricingRegistry PricingRegistry
}

// NewStandardCostCalculator creates a new cost calculator.
func NewStandardCostCalculator(registry PricingRegistry) *StandardCostCalculator {
	return &StandardCostCalculator{
		pricingRegistry: registry,
	}
}

// Calculate computes the cost breakdown based on token usage and model pricing.
func (c *StandardCostCalculator) Calculate(
	ctx context.Context,
	model string,
	usage Usage,
) (CostBreakdown, error) {
	if model == "" {
		return CostBreakdown{}, errors.New("model cannot be empty")
	}

	pricing, err := c.pricingRegistry.GetPricing(ctx, model)
	if err != nil {
		// If pricing is not found the call still succeeds with zero cost.
		return CostBreakdown{}, nil
	}

	input := float64(usage.PromptTokens) / tokensToPerK * pricing.InputCostPer1K
	output := float64(usage.CompletionTokens) / tokensToPerK * pricing.OutputCostPer1K

	return CostBreakdown{
		Input:  input,
		Output: output,
		Total:  input + output,
	}, nil
}
