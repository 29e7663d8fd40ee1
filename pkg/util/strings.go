package util

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// NormalizeSymbol trims and upper-cases a symbol, dropping broker suffixes
// such as "XAUUSDc", "XAUUSDm" or "XAUUSD.pro".
func NormalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".-_"); i > 0 {
		s = s[:i]
	}
	// lowercase tail after an uppercase body is an account-type marker
	end := len(s)
	for end > 0 && unicode.IsLower(rune(s[end-1])) {
		end--
	}
	if end > 0 && end < len(s) {
		s = s[:end]
	}
	return strings.ToUpper(s)
}

// IsSymbol reports whether s is a normalized instrument symbol: 2 to 20
// upper-case letters or digits.
func IsSymbol(s string) bool {
	if len(s) < 2 || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
