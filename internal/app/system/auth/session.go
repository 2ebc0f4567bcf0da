// internal/app/system/auth/session.go
package auth

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies an operator
//   - LoginID / loginID / login_id: The human-readable string operators type to log in

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultSessionName is the cookie name used when none is configured.
const DefaultSessionName = "stratamembers-session"

const (
	isAuthKey       = "is_authenticated"
	userIDKey       = "user_id"
	userRoleKey     = "user_role"
	sessionTokenKey = "session_token"
)

// SessionManager owns the cookie store and the middleware built on it.
type SessionManager struct {
	store       *sessions.CookieStore
	logger      *zap.Logger
	name        string
	userFetcher UserFetcher
}

// SessionConfigError is returned when session configuration is invalid.
type SessionConfigError struct {
	Message string
}

func (e *SessionConfigError) Error() string {
	return e.Message
}

// NewSessionManager builds a cookie-backed session manager.
//
// A weak key (under 32 chars, or one that looks like a placeholder) is
// rejected when secure is true and only warned about otherwise.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, &SessionConfigError{Message: "session key is empty; provide ≥32 random chars"}
	}

	weak := len(sessionKey) < 32 || isDefaultKey(sessionKey)
	switch {
	case weak && secure:
		return nil, &SessionConfigError{
			Message: "session key is too weak for production; provide ≥32 random chars (not the default dev key)",
		}
	case weak:
		logger.Warn("session key is weak; 32+ random chars required in production",
			zap.Int("length", len(sessionKey)),
			zap.Bool("is_default", isDefaultKey(sessionKey)))
	}

	if name == "" {
		name = DefaultSessionName
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("name", name),
		zap.String("domain", domain))

	return &SessionManager{store: store, logger: logger, name: name}, nil
}

// SessionName returns the configured session cookie name.
func (sm *SessionManager) SessionName() string {
	return sm.name
}

// SetUserFetcher sets the UserFetcher used by LoadSessionUser. Call it after
// the database is connected.
func (sm *SessionManager) SetUserFetcher(uf UserFetcher) {
	sm.userFetcher = uf
}

// UserFetcher loads the current state of a signed-in operator.
type UserFetcher interface {
	// FetchUser returns nil when the operator is missing or disabled.
	FetchUser(ctx context.Context, userID string) *SessionUser
}

// SessionUser is the signed-in operator carried in the request context.
type SessionUser struct {
	ID      string
	Name    string
	LoginID string
	Role    string
	Token   string
}

// UserID returns the operator's ID as an ObjectID, or NilObjectID if the
// stored ID is malformed.
func (u *SessionUser) UserID() primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the operator in the request context, if any.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// WithTestUser injects a SessionUser into the request context for testing.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// CreateSession marks the session as signed in for userID. An empty token
// gets a freshly generated one.
func (sm *SessionManager) CreateSession(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, role, token string) error {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		sess, _ = sm.store.New(r, sm.name)
	}

	if token == "" {
		if token, err = GenerateSessionToken(); err != nil {
			return err
		}
	}

	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = userID.Hex()
	sess.Values[userRoleKey] = role
	sess.Values[sessionTokenKey] = token
	return sess.Save(r, w)
}

// DestroySession clears the session and expires the cookie.
func (sm *SessionManager) DestroySession(w http.ResponseWriter, r *http.Request) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return
	}
	sess.Values[isAuthKey] = false
	delete(sess.Values, userIDKey)
	delete(sess.Values, userRoleKey)
	delete(sess.Values, sessionTokenKey)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
}

// GenerateSessionToken returns a random URL-safe token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

var placeholderKeyPatterns = []string{
	"dev-only", "change-me", "placeholder", "default", "example",
	"insecure", "test-key", "secret123", "password",
}

// isDefaultKey reports whether key looks like a placeholder copied from a
// sample config.
func isDefaultKey(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range placeholderKeyPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
