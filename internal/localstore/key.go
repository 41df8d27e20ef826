package localstore

import (
	"strings"
	"unicode"
)

// KeyFor derives the cache key of an entity type: the Title-case type name
// converted to snake_case and pluralized, e.g. "ContactMessage" becomes
// "contact_messages" and "Category" becomes "categories".
func KeyFor(typeName string) string {
	return pluralize(snakeCase(typeName))
}

func snakeCase(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var b strings.Builder
	for i, r := range runes {
		if r == ' ' || r == '-' {
			r = '_'
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prev != '_' && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func pluralize(s string) string {
	if s == "" {
		return s
	}
	for _, suffix := range []string{"s", "x", "z", "ch", "sh"} {
		if strings.HasSuffix(s, suffix) {
			return s + "es"
		}
	}
	if strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])) {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}
