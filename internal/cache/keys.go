package cache

import "strings"

// KeyPrefix scopes every session key written by this package.
const KeyPrefix = "cartkit:session:"

// SessionKey returns the fully qualified key of key within session id.
func SessionKey(sessionID, key string) string {
	return KeyPrefix + strings.TrimSpace(sessionID) + ":" + key
}

// ValidSessionID reports whether id can scope session keys without reaching
// into another session: it must be non-blank and free of the key separator and
// of glob metacharacters.
func ValidSessionID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && !strings.ContainsAny(id, ":*?[]\\")
}

// escapeGlob quotes the metacharacters of a SCAN MATCH pattern so s matches literally.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
