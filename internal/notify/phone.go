package notify

import (
	"fmt"
	"strings"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

// NormalizeE164 converts a user-entered US/Canada phone number to E.164.
// Accepts bare ten-digit numbers, numbers with a leading 1, and formatted
// input with punctuation.
func NormalizeE164(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: phone number is empty", domain.ErrValidation)
	}

	hadPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	normalized := digits.String()

	switch {
	case hadPlus && len(normalized) >= 11 && len(normalized) <= 15:
		return "+" + normalized, nil
	case len(normalized) == 10:
		return "+1" + normalized, nil
	case len(normalized) == 11 && strings.HasPrefix(normalized, "1"):
		return "+" + normalized, nil
	}

	return "", fmt.Errorf("%w: cannot normalize phone number %q", domain.ErrValidation, raw)
}
