// Package session tracks logged-in users. A signed cookie carries an opaque
// token and a Store maps the token to a username with a sliding expiry.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

const tokenKey = "token"

// ErrNoSession is returned when a request carries no valid session.
var ErrNoSession = errors.NewStd("not logged in")

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the session package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("session")
	})
	return serviceLogger
}

// Store maps session tokens to usernames. Lookup extends the expiry of a live session.
type Store interface {
	Create(ctx context.Context, token, username string, ttl time.Duration) error
	Lookup(ctx context.Context, token string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, token string) error
	// Sweep removes expired sessions and reports how many were removed
	Sweep(ctx context.Context) (int64, error)
}

// Config configures the session cookie.
type Config struct {
	CookieName string
	Secret     string
	MaxAge     time.Duration
	Secure     bool
}

// Manager issues and resolves session cookies.
type Manager struct {
	store   Store
	cookies *sessions.CookieStore
	name    string
	maxAge  time.Duration
}

// NewManager creates a manager backed by store.
func NewManager(cfg Config, store Store) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.Newf("session secret must be at least 32 bytes").
			Component("session").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "krishisahay_session"
	}

	cookies := sessions.NewCookieStore([]byte(cfg.Secret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{store: store, cookies: cookies, name: cfg.CookieName, maxAge: cfg.MaxAge}, nil
}

// Login starts a session for username and writes the cookie. A session
// already attached to r is ended first.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, username string) error {
	sess := m.cookie(r)
	if previous, _ := sess.Values[tokenKey].(string); previous != "" {
		if err := m.store.Delete(r.Context(), previous); err != nil {
			GetLogger().Warn("failed to remove previous session", logger.Error(err))
		}
	}

	token := uuid.NewString()
	if err := m.store.Create(r.Context(), token, username, m.maxAge); err != nil {
		return sessionError(err, "create")
	}

	sess.Values[tokenKey] = token
	sess.Options.MaxAge = int(m.maxAge.Seconds())
	if err := sess.Save(r, w); err != nil {
		return sessionError(err, "save_cookie")
	}
	return nil
}

// Current returns the username of the session on r and refreshes the cookie.
// It returns ErrNoSession when there is none.
func (m *Manager) Current(w http.ResponseWriter, r *http.Request) (string, error) {
	sess := m.cookie(r)
	token, _ := sess.Values[tokenKey].(string)
	if token == "" {
		return "", noSession()
	}

	username, err := m.store.Lookup(r.Context(), token, m.maxAge)
	if err != nil {
		return "", err
	}

	if err := sess.Save(r, w); err != nil {
		GetLogger().Debug("failed to refresh session cookie", logger.Error(err))
	}
	return username, nil
}

// Logout ends the session on r, if any, and expires the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess := m.cookie(r)
	if token, _ := sess.Values[tokenKey].(string); token != "" {
		if err := m.store.Delete(r.Context(), token); err != nil {
			return sessionError(err, "delete")
		}
	}
	delete(sess.Values, tokenKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return sessionError(err, "save_cookie")
	}
	return nil
}

// Sweep removes expired sessions from the store.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	removed, err := m.store.Sweep(ctx)
	if err != nil {
		return 0, sessionError(err, "sweep")
	}
	if removed > 0 {
		GetLogger().Info("expired sessions removed", logger.Int64("count", removed))
	}
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				GetLogger().Warn("session sweep failed", logger.Error(err))
			}
		}
	}
}

// cookie returns the decoded session, or a fresh one when the cookie is
// missing or fails verification.
func (m *Manager) cookie(r *http.Request) *sessions.Session {
	sess, err := m.cookies.Get(r, m.name)
	if err != nil {
		GetLogger().Debug("discarding invalid session cookie", logger.Error(err))
		sess = sessions.NewSession(m.cookies, m.name)
		opts := *m.cookies.Options
		sess.Options = &opts
		sess.IsNew = true
	}
	return sess
}

func noSession() error {
	return errors.New(ErrNoSession).
		Component("session").
		Category(errors.CategoryAuthentication).
		Priority(errors.PriorityLow).
		Build()
}

func sessionError(err error, operation string) error {
	if errors.Is(err, ErrNoSession) {
		return err
	}
	return errors.New(err).
		Component("session").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
