package service

import (
	"github.com/set-night/chatgate/internal/domain"
	"github.com/shopspring/decimal"
)

var perMillion = decimal.NewFromInt(1_000_000)

// CalculateCost prices a run's token usage. Prices are per 1M tokens.
func CalculateCost(usage domain.Usage, promptPrice, completionPrice decimal.Decimal) decimal.Decimal {
	promptCost := decimal.NewFromInt(int64(usage.PromptTokens)).Mul(promptPrice).Div(perMillion)
	completionCost := decimal.NewFromInt(int64(usage.CompletionTokens)).Mul(completionPrice).Div(perMillion)
	return promptCost.Add(completionCost)
}
