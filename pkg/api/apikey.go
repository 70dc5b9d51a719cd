// API key gate for the /test endpoint.

package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/contractd/contractd/pkg/httputil"
)

// APIKeyHeader is the header callers put the API key in. Header lookup is
// case-insensitive.
const APIKeyHeader = "x-api-key"

// Client-facing messages for rejected keys.
const (
	MsgMissingAPIKey = "Missing API key. Use Header 'x-api-key' to provide the API key."
	MsgWrongAPIKey   = "The provided API key is not correct."
)

// AuthDecision is the outcome of CheckAPIKey.
type AuthDecision int

// Gate decisions.
const (
	AuthAllow AuthDecision = iota
	AuthUnauthenticated
	AuthForbidden
)

func (d AuthDecision) String() string {
	switch d {
	case AuthAllow:
		return "allow"
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// CheckAPIKey decides whether a caller supplying supplied may proceed when
// the server expects expected. An empty expected key disables the check.
func CheckAPIKey(expected, supplied string) AuthDecision {
	if expected == "" {
		return AuthAllow
	}
	if supplied == "" {
		return AuthUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) != 1 {
		return AuthForbidden
	}
	return AuthAllow
}

// requireAPIKey runs the gate before next. It never reads the body.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.DebugContext(r.Context(), "no API key configured, skipping check")
			next(w, r)
			return
		}

		decision := CheckAPIKey(s.apiKey, r.Header.Get(APIKeyHeader))
		s.metrics.AuthDecision(decision.String())

		switch decision {
		case AuthUnauthenticated:
			s.log.InfoContext(r.Context(), "rejected request without API key", "path", r.URL.Path)
			httputil.WriteDetail(w, http.StatusUnauthorized, MsgMissingAPIKey)
		case AuthForbidden:
			s.log.InfoContext(r.Context(), "rejected request with wrong API key", "path", r.URL.Path)
			httputil.WriteDetail(w, http.StatusForbidden, MsgWrongAPIKey)
		default:
			s.log.DebugContext(r.Context(), "API key accepted")
			next(w, r)
		}
	}
}
