package voice

import (
	"strings"
	"unicode/utf8"
)

const (
	baseConfidence = 0.8
	minConfidence  = 0.1
	maxConfidence  = 1.0

	knownItemBoost   = 0.15
	shortEntityCost  = 0.2
	amountBoost      = 0.1
	shortEntityRunes = 3
)

// Score rates how likely cmd was understood correctly given the current run.
// Unknown commands always score 0.
func Score(cmd Command, cctx Context) float64 {
	if cmd.Intent == IntentUnknown {
		return 0
	}

	c := baseConfidence
	if cmd.Entity != "" {
		needle := strings.ToLower(cmd.Entity)
		for _, it := range cctx.items() {
			if strings.Contains(strings.ToLower(it.Name), needle) {
				c += knownItemBoost
				break
			}
		}
		if utf8.RuneCountInString(cmd.Entity) < shortEntityRunes {
			c -= shortEntityCost
		}
	}
	if cmd.Amount != nil && *cmd.Amount > 0 {
		c += amountBoost
	}

	return max(minConfidence, min(maxConfidence, c))
}
