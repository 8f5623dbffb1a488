package validators

import (
	"net/http"
	"strings"
)

const (
	// SessionHeader carries the guest cart session id.
	SessionHeader = "X-Session-Id"

	maxSessionIDLen = 128
)

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// SessionID returns the guest session id header, trimmed and bounded.
func SessionID(r *http.Request) string {
	return SanitizeString(r.Header.Get(SessionHeader), maxSessionIDLen)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
