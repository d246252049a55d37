package discount

import "strings"

// NormalizeCode canonicalises a discount code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
