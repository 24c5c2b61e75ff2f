// Package sessions persists scs sessions in the shared cache
// database.
package sessions

import (
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/omniscale/mapent/cache"
)

const keyPrefix = "session_"

// Store implements scs.Store on the cache database. Entries carry the
// session lifetime as TTL, expired sessions vanish on their own.
type Store struct {
	cache *cache.Cache
}

var _ scs.Store = &Store{}

func NewStore(c *cache.Cache) *Store {
	return &Store{cache: c}
}

func (s *Store) Find(token string) ([]byte, bool, error) {
	b, err := s.cache.Get([]byte(keyPrefix + token))
	if err != nil {
		return nil, false, err
	}
	if b == nil {
		return nil, false, nil
	}
	return b, true, nil
}

func (s *Store) Commit(token string, b []byte, expiry time.Time) error {
	return s.cache.PutTTL([]byte(keyPrefix+token), b, time.Until(expiry))
}

func (s *Store) Delete(token string) error {
	return s.cache.Delete([]byte(keyPrefix + token))
}

// Manager returns a session manager backed by the cache database.
func Manager(c *cache.Cache, lifetime time.Duration) *scs.SessionManager {
	sm := scs.New()
	sm.Store = NewStore(c)
	sm.Lifetime = lifetime
	return sm
}
