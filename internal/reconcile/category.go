package reconcile

import "strings"

// IsOutOfOffice reports whether a reply category marks an auto-responder
// rather than a real reply. The check is a case-insensitive containment test;
// every other category value, including empty, counts as real. Total-reply
// counts ignore this split entirely.
func IsOutOfOffice(category string) bool {
	c := strings.ToLower(category)
	return strings.Contains(c, "out of office") || strings.Contains(c, "ooo")
}
