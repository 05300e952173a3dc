package commits

import (
	"bufio"
	"strings"
)

const (
	// ChangeIDTrailerKey names the logical change identifier trailer.
	ChangeIDTrailerKey = "Change-Id"
	// ReviewedOnTrailerKey names the code review link trailer.
	ReviewedOnTrailerKey = "Reviewed-on"

	trailerSeparatorConstant = ":"
)

// TrailerExtractor finds the first `Key: value` line whose key matches one of Keys, ignoring case.
type TrailerExtractor struct {
	Keys []string
}

// NewTrailerExtractor constructs an extractor; blank keys are ignored.
func NewTrailerExtractor(keys ...string) TrailerExtractor {
	normalized := make([]string, 0, len(keys))
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if len(trimmed) > 0 {
			normalized = append(normalized, trimmed)
		}
	}
	return TrailerExtractor{Keys: normalized}
}

// Extract returns the value of the first matching trailer line, or an empty string.
// The value is the first whitespace-delimited token after the separator.
func (extractor TrailerExtractor) Extract(message string) string {
	if len(extractor.Keys) == 0 {
		return ""
	}
	lineScanner := bufio.NewScanner(strings.NewReader(message))
	lineScanner.Buffer(make([]byte, 0, 4096), len(message)+1)
	for lineScanner.Scan() {
		line := strings.TrimSpace(lineScanner.Text())
		key, value, found := strings.Cut(line, trailerSeparatorConstant)
		if !found {
			continue
		}
		if !extractor.matches(strings.TrimSpace(key)) {
			continue
		}
		valueFields := strings.Fields(value)
		if len(valueFields) == 0 {
			continue
		}
		return valueFields[0]
	}
	return ""
}

func (extractor TrailerExtractor) matches(key string) bool {
	for _, candidate := range extractor.Keys {
		if strings.EqualFold(candidate, key) {
			return true
		}
	}
	return false
}
