package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// AuthCookie is the cookie issued by the login handler.
const AuthCookie = "authenticated"

const sessionMessage = "pillscout-session"

// SessionToken is the cookie value for a logged-in browser. It is an
// HMAC-SHA256 keyed by the password, so changing the password logs everyone out.
func SessionToken(password string) string {
	mac := hmac.New(sha256.New, []byte(password))
	mac.Write([]byte(sessionMessage))
	return hex.EncodeToString(mac.Sum(nil))
}

// AuthMiddleware checks that the user is logged in (carries a valid session cookie).
// With an empty password the gate is disabled and every request passes.
func AuthMiddleware(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}

		token := []byte(SessionToken(password))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The login page, the login endpoint, static assets and the health probe stay public
			if r.URL.Path == "/login" ||
				r.URL.Path == "/auth/login" ||
				r.URL.Path == "/health" ||
				strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(AuthCookie)
			if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), token) != 1 {
				if strings.HasPrefix(r.URL.Path, "/api/") ||
					strings.HasPrefix(r.URL.Path, "/logs/") ||
					r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
