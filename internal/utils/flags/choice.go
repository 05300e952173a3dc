package flags

import (
	"fmt"
	"strings"
)

const (
	choiceSeparatorLiteralConstant   = "|"
	choicePlaceholderPatternConstant = "`<%s>`"
	unsupportedChoicePatternConstant = "unsupported value %q (expected one of %s)"
)

// FormatChoiceUsage renders "`<a|B|c>` description" with the default choice upper-cased.
// Blank and repeated choices are dropped.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	normalizedDefault := normalizeChoice(defaultChoice)

	rendered := make([]string, 0, len(choices))
	for _, choice := range uniqueChoices(choices) {
		if len(normalizedDefault) > 0 && normalizeChoice(choice) == normalizedDefault {
			choice = strings.ToUpper(choice)
		}
		rendered = append(rendered, choice)
	}

	placeholder := fmt.Sprintf(choicePlaceholderPatternConstant, strings.Join(rendered, choiceSeparatorLiteralConstant))
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return placeholder
	}
	return placeholder + " " + trimmedDescription
}

// ParseChoice matches value against choices ignoring case and surrounding space.
func ParseChoice(value string, choices []string) (string, error) {
	normalizedValue := normalizeChoice(value)
	candidates := uniqueChoices(choices)
	for _, choice := range candidates {
		if normalizeChoice(choice) == normalizedValue {
			return choice, nil
		}
	}
	return "", fmt.Errorf(unsupportedChoicePatternConstant, value, strings.Join(candidates, ", "))
}

func uniqueChoices(choices []string) []string {
	unique := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		trimmedChoice := strings.TrimSpace(choice)
		normalized := strings.ToLower(trimmedChoice)
		if len(normalized) == 0 {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		unique = append(unique, trimmedChoice)
	}
	return unique
}

func normalizeChoice(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
