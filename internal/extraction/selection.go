package extraction

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// discrepancyTolerance is the relative difference below which two amount
// sources are considered to agree.
var discrepancyTolerance = decimal.NewFromFloat(0.005)

// selectAmount chooses between the rule-based amount and a model answer.
// The rule-based amount wins whenever both agree or the policy keeps the
// first labeled value; the largest policy takes the larger one.
func selectAmount(ruleAmount decimal.NullDecimal, modelAmount decimal.Decimal, policy AmountPolicy, log zerolog.Logger) decimal.NullDecimal {
	if !ruleAmount.Valid {
		log.Debug().
			Str("amount", modelAmount.String()).
			Str("source", "model_only").
			Msg("Using model amount (only source)")
		return decimal.NewNullDecimal(modelAmount)
	}

	rule := ruleAmount.Decimal
	discrepancy := relativeDiscrepancy(rule, modelAmount)
	if discrepancy.LessThanOrEqual(discrepancyTolerance) {
		return ruleAmount
	}

	chosen := rule
	source := "rules"
	if policy == AmountPolicyLargest && modelAmount.GreaterThan(rule) {
		chosen = modelAmount
		source = "model"
	}

	log.Warn().
		Str("rules", rule.String()).
		Str("model", modelAmount.String()).
		Str("discrepancy", discrepancy.StringFixed(4)).
		Str("policy", string(policy)).
		Str("chosen", source).
		Msg("Amount sources disagree")

	return decimal.NewNullDecimal(chosen)
}

// relativeDiscrepancy returns |a-b| / max(|a|,|b|), or 1 when exactly one is zero.
func relativeDiscrepancy(a, b decimal.Decimal) decimal.Decimal {
	if a.IsZero() && b.IsZero() {
		return decimal.Zero
	}
	larger := decimal.Max(a.Abs(), b.Abs())
	return a.Sub(b).Abs().Div(larger)
}
