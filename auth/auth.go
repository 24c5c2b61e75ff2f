// Package auth provides users, permission checks and the request
// middleware gating entity views.
package auth

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// User carries the permission codenames granted to an account.
// Superusers hold every permission, internal users (capture and
// conversion servers) every read and export permission.
type User struct {
	Name      string
	Perms     map[string]bool
	Superuser bool
	Internal  bool
}

func (u *User) IsAnonymous() bool {
	return u == nil || u.Name == ""
}

func (u *User) HasPerm(codename string) bool {
	if u == nil {
		return false
	}
	if u.Superuser {
		return true
	}
	if u.Internal {
		if strings.HasPrefix(codename, "read_") || strings.HasPrefix(codename, "export_") {
			return true
		}
	}
	return u.Perms[codename]
}

// InternalUser builds the pseudo user the capture and conversion
// servers authenticate as.
func InternalUser(name string) *User {
	return &User{Name: name, Internal: true}
}

var ErrInvalidCredentials = errors.New("invalid credentials")

type Authenticator interface {
	Authenticate(username, password string) (*User, error)
	UserByName(name string) (*User, bool)
}

// MemoryAuth keeps users and permissions in memory, loaded from
// configuration or set up by tests.
type MemoryAuth struct {
	mu        sync.RWMutex
	users     map[string]*User
	passwords map[string]string
}

func NewMemoryAuth() *MemoryAuth {
	return &MemoryAuth{
		users:     make(map[string]*User),
		passwords: make(map[string]string),
	}
}

func (a *MemoryAuth) AddUser(name, password string) *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := &User{Name: name, Perms: make(map[string]bool)}
	a.users[name] = u
	a.passwords[name] = password
	return u
}

func (a *MemoryAuth) Grant(name string, codenames ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[name]
	if !ok {
		return
	}
	for _, cn := range codenames {
		u.Perms[cn] = true
	}
}

func (a *MemoryAuth) Authenticate(username, password string) (*User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pw, ok := a.passwords[username]
	if !ok || pw != password {
		return nil, ErrInvalidCredentials
	}
	return a.users[username], nil
}

func (a *MemoryAuth) UserByName(name string) (*User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.users[name]
	return u, ok
}
