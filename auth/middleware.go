package auth

import (
	"context"
	"net"
	"net/http"
	"net/url"

	"github.com/alexedwards/scs/v2"
	"go.uber.org/zap"
)

type contextKey int

const userKey contextKey = 0

// FromContext returns the authenticated user, nil for anonymous
// requests.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

const sessionUserKey = "auth_user"

// Manager wires the authenticator, the session store and the
// permission configuration into middleware.
type Manager struct {
	auth           Authenticator
	sessions       *scs.SessionManager
	internalUser   string
	internalIPs    map[string]bool
	anonymousPerms map[string]bool
	loginURL       string
	logger         *zap.Logger
}

func NewManager(a Authenticator, sessions *scs.SessionManager, logger *zap.Logger) *Manager {
	return &Manager{
		auth:           a,
		sessions:       sessions,
		internalIPs:    make(map[string]bool),
		anonymousPerms: make(map[string]bool),
		loginURL:       "/login/",
		logger:         logger,
	}
}

// SetInternal enables auto login for requests from the given IPs.
func (m *Manager) SetInternal(user string, ips []string) {
	m.internalUser = user
	for _, ip := range ips {
		m.internalIPs[ip] = true
	}
}

// SetAnonymousPerms allows the given codenames without a user.
func (m *Manager) SetAnonymousPerms(codenames []string) {
	for _, cn := range codenames {
		m.anonymousPerms[cn] = true
	}
}

func (m *Manager) SetLoginURL(url string) {
	if url != "" {
		m.loginURL = url
	}
}

func (m *Manager) LoginURL() string {
	return m.loginURL
}

// Login authenticates and stores the user in the session.
func (m *Manager) Login(ctx context.Context, username, password string) (*User, error) {
	u, err := m.auth.Authenticate(username, password)
	if err != nil {
		return nil, err
	}
	if err := m.sessions.RenewToken(ctx); err != nil {
		return nil, err
	}
	m.sessions.Put(ctx, sessionUserKey, u.Name)
	return u, nil
}

func (m *Manager) Logout(ctx context.Context) error {
	m.sessions.Remove(ctx, sessionUserKey)
	return m.sessions.RenewToken(ctx)
}

// LoadUser resolves the session user and puts it into the request
// context.
func (m *Manager) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := m.sessions.GetString(r.Context(), sessionUserKey)
		if name != "" {
			if u, ok := m.auth.UserByName(name); ok {
				r = r.WithContext(WithUser(r.Context(), u))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// AutoLogin authenticates requests from internal addresses as the
// internal user. The capture and conversion servers call back into
// the application without credentials.
func (m *Manager) AutoLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil && m.internalUser != "" {
			ip := remoteIP(r)
			if m.internalIPs[ip] {
				r = r.WithContext(WithUser(r.Context(), InternalUser(m.internalUser)))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequirePermission gates a view on a permission codename. Anonymous
// requests are redirected to loginURL, authenticated requests without
// the permission get a 403. An empty loginURL falls back to the
// configured login page.
func (m *Manager) RequirePermission(codename, loginURL string) func(http.Handler) http.Handler {
	return m.RequirePermissionFunc(codename, func(*http.Request) string { return loginURL })
}

// Allowed reports whether the user may dispatch views gated by the
// codename, counting the anonymous allowlist.
func (m *Manager) Allowed(u *User, codename string) bool {
	return m.anonymousPerms[codename] || u.HasPerm(codename)
}

// RequirePermissionFunc is RequirePermission with a per request login
// URL, for views that send anonymous users to the record detail page.
func (m *Manager) RequirePermissionFunc(codename string, loginURL func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := FromContext(r.Context())
			if m.Allowed(user, codename) {
				next.ServeHTTP(w, r)
				return
			}
			if user.IsAnonymous() {
				to := loginURL(r)
				if to == "" {
					to = m.loginURL
				}
				to += "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, to, http.StatusFound)
				return
			}
			m.logger.Warn("permission denied",
				zap.String("user", user.Name),
				zap.String("codename", codename),
				zap.String("path", r.URL.Path))
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}
