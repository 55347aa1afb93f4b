// Package badge answers role questions over delimited badge lists of the
// form "moderator/1,subscriber/24" that several platforms attach to chat
// events.
package badge

import "strings"

// Has reports whether token appears in the comma-separated badge list. Each
// entry is token/version; the match is on the exact token before the slash.
// An empty list matches nothing.
func Has(list, token string) bool {
	if list == "" || token == "" {
		return false
	}
	for _, entry := range strings.Split(list, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(entry), "/")
		if name == token {
			return true
		}
	}
	return false
}
