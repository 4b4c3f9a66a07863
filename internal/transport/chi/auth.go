package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireAPIKey admits requests carrying one of keys as a bearer token.
// Blank keys are ignored. With no usable key the API is open.
func requireAPIKey(keys []string) func(http.Handler) http.Handler {
	var accepted [][]byte
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			accepted = append(accepted, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, reason := bearerToken(r.Header.Get("Authorization"))
			if reason != "" {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, reason)
				return
			}
			if !matchesAny(accepted, token) {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credentials of a Bearer authorization header. The
// scheme is matched case-insensitively. A non-empty reason means rejection.
func bearerToken(header string) (token []byte, reason string) {
	if header == "" {
		return nil, "missing authorization header"
	}
	scheme, cred, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, "authorization header must use Bearer scheme"
	}
	cred = strings.TrimSpace(cred)
	if cred == "" {
		return nil, "empty bearer token"
	}
	return []byte(cred), ""
}

// matchesAny compares against every key in constant time.
func matchesAny(keys [][]byte, token []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, token)
	}
	return found == 1
}
