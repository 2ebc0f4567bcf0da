// internal/app/system/auth/middleware.go
package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/stratamembers/internal/app/system/normalize"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// LoadSessionUser injects the signed-in operator into the request context.
// With a UserFetcher configured the operator is reloaded on every request,
// and a session whose operator was disabled or deleted is cleared.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.store.Get(r, sm.name)
		if err != nil {
			sm.logSessionError(r, err)
		}

		isAuth, _ := sess.Values[isAuthKey].(bool)
		userID := getString(sess, userIDKey)
		if !isAuth || userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := getString(sess, sessionTokenKey)
		if sm.userFetcher == nil {
			r = withUser(r, &SessionUser{
				ID:    userID,
				Role:  getString(sess, userRoleKey),
				Token: token,
			})
			next.ServeHTTP(w, r)
			return
		}

		if u := sm.userFetcher.FetchUser(r.Context(), userID); u != nil {
			u.Token = token
			r = withUser(r, u)
		} else {
			sm.logger.Info("session invalidated: user not found or disabled",
				zap.String("user_id", userID),
				zap.String("path", r.URL.Path))
			sess.Values[isAuthKey] = false
			delete(sess.Values, userIDKey)
			_ = sess.Save(r, w)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn sends anonymous requests to the login page.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth is an alias for RequireSignedIn.
func (sm *SessionManager) RequireAuth(next http.Handler) http.Handler {
	return sm.RequireSignedIn(next)
}

// RequireRole allows signed-in operators holding one of the allowed roles.
// Anonymous requests get the login redirect; wrong roles get /forbidden.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[normalize.Role(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				unauthorized(w, r)
				return
			}
			if _, has := set[normalize.Role(u.Role)]; !has {
				deny(w, r, "/forbidden", "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	target := "/login?return=" + url.QueryEscape(r.URL.RequestURI())
	deny(w, r, target, "unauthorized", http.StatusUnauthorized)
}

// deny answers HTMX with a client redirect, browsers with a 303 and
// everything else with a plain status.
func deny(w http.ResponseWriter, r *http.Request, target, msg string, code int) {
	switch {
	case r.Header.Get("HX-Request") == "true":
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(code)
	case wantsHTML(r):
		http.Redirect(w, r, target, http.StatusSeeOther)
	default:
		http.Error(w, msg, code)
	}
}

func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// Session error classification for logging.
type sessionErrorType int

const (
	sessionErrUnknown   sessionErrorType = iota
	sessionErrExpired                    // timestamp expired
	sessionErrTampered                   // MAC invalid
	sessionErrCorrupted                  // decode/decrypt failed, often a rotated key
	sessionErrBackend                    // store failure
)

func (sm *SessionManager) logSessionError(r *http.Request, err error) {
	kind, category := classifySessionError(err)
	fields := []zap.Field{zap.String("category", category), zap.String("path", r.URL.Path)}
	switch kind {
	case sessionErrExpired:
		sm.logger.Debug("session expired, starting fresh session", fields...)
	case sessionErrTampered:
		sm.logger.Warn("session MAC validation failed (possible tampering)",
			append(fields, zap.String("remote_addr", r.RemoteAddr))...)
	case sessionErrCorrupted:
		sm.logger.Info("session decode failed, starting fresh session", fields...)
	default:
		sm.logger.Error("session store error, starting fresh session", append(fields, zap.Error(err))...)
	}
}

func classifySessionError(err error) (sessionErrorType, string) {
	if err == nil {
		return sessionErrUnknown, "none"
	}

	scErr, ok := err.(securecookie.Error)
	if !ok {
		return sessionErrBackend, "unknown"
	}
	if !scErr.IsDecode() {
		return sessionErrBackend, "backend"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired timestamp"):
		return sessionErrExpired, "expired"
	case strings.Contains(msg, "mac") || strings.Contains(msg, "hash"):
		return sessionErrTampered, "mac_invalid"
	case strings.Contains(msg, "decrypt"):
		return sessionErrCorrupted, "decrypt_failed"
	case strings.Contains(msg, "base64") || strings.Contains(msg, "decode"):
		return sessionErrCorrupted, "decode_failed"
	default:
		return sessionErrCorrupted, "decode_other"
	}
}
