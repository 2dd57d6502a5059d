package auth

import "strings"

// PathExempt reports whether a request path bypasses authentication.
// Patterns ending in "/*" match the base path and anything below it;
// all other patterns are exact matches. Exemption is checked before any
// decode attempt so public paths never produce auth errors.
func PathExempt(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/*") {
			base := strings.TrimSuffix(pattern, "/*")
			if path == base || strings.HasPrefix(path, base+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
