// Package sanitizer normalizes free-text fields (cities, company names,
// product types) before validation and storage.
package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims the string and collapses internal whitespace runs
// to a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeCity(city string) string {
	return TrimAndNormalize(city)
}

func NormalizeCompanyName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeTruckType uppercases so "flatbed" and "FLATBED" key the same
// capacity row.
func NormalizeTruckType(truckType string) string {
	return strings.ToUpper(TrimAndNormalize(truckType))
}
