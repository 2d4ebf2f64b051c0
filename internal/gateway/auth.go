package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthResult is the outcome of an admin authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Status int    `json:"-"`
	Reason string `json:"reason,omitempty"`
}

// Authorize checks an Authorization header against the configured admin
// token. Without a configured token the admin routes are disabled.
func Authorize(token, header string) AuthResult {
	if token == "" {
		return AuthResult{Status: http.StatusForbidden, Reason: "admin routes disabled"}
	}
	presented, ok := bearerToken(header)
	if !ok {
		return AuthResult{Status: http.StatusUnauthorized, Reason: "token required"}
	}
	if !safeEqual(presented, token) {
		return AuthResult{Status: http.StatusUnauthorized, Reason: "token_mismatch"}
	}
	return AuthResult{OK: true, Status: http.StatusOK}
}

func bearerToken(header string) (string, bool) {
	scheme, value, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// requireAdmin guards next behind Authorize.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := Authorize(s.cfg.Auth.Token, r.Header.Get("Authorization"))
		if !res.OK {
			s.log.Warn().
				Str("remote", r.RemoteAddr).
				Str("path", r.URL.Path).
				Str("reason", res.Reason).
				Msg("admin request refused")
			writeJSON(w, res.Status, statusResponse{Status: "error", Message: res.Reason})
			return
		}
		next(w, r)
	}
}

// safeEqual performs a constant-time string comparison.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
