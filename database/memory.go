package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/omniscale/mapent/mapping"
)

// MemoryStore implements Store and LogStore with in-memory maps.
// Intended for demos and testing, no PostGIS required.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]map[int64]*Record
	nextID    map[string]int64
	log       []*LogEntry
	nextLogID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[int64]*Record),
		nextID:  make(map[string]int64),
	}
}

func (s *MemoryStore) Init(e *mapping.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[e.Name]; !ok {
		s.records[e.Name] = make(map[int64]*Record)
	}
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, e *mapping.Entity, r *Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[e.Name]; !ok {
		s.records[e.Name] = make(map[int64]*Record)
	}
	s.nextID[e.Name]++
	id := s.nextID[e.Name]
	stored := copyRecord(r)
	stored.ID = id
	if stored.Updated.IsZero() {
		stored.Updated = time.Now()
	}
	s.records[e.Name][id] = stored
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, e *mapping.Entity, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[e.Name][r.ID]; !ok {
		return ErrNotFound
	}
	stored := copyRecord(r)
	if stored.Updated.IsZero() {
		stored.Updated = time.Now()
	}
	s.records[e.Name][r.ID] = stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, e *mapping.Entity, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[e.Name][id]; !ok {
		return ErrNotFound
	}
	delete(s.records[e.Name], id)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, e *mapping.Entity, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[e.Name][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(r), nil
}

func (s *MemoryStore) List(_ context.Context, e *mapping.Entity, f Filter) ([]*Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Record
	for _, r := range s.records[e.Name] {
		if !matches(r, f) {
			continue
		}
		matched = append(matched, copyRecord(r))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[f.Offset:]
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func matches(r *Record, f Filter) bool {
	for field, substr := range f.FieldContains {
		v, ok := r.Fields[field]
		if !ok || v == nil {
			return false
		}
		s := fmt.Sprintf("%v", v)
		if !strings.Contains(strings.ToLower(s), strings.ToLower(substr)) {
			return false
		}
	}
	if f.Bbox != nil {
		if r.Geom == nil {
			return false
		}
		if !r.Geom.Bound().Intersects(*f.Bbox) {
			return false
		}
	}
	return true
}

func (s *MemoryStore) LatestUpdated(_ context.Context, e *mapping.Entity) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest time.Time
	found := false
	for _, r := range s.records[e.Name] {
		if r.Updated.After(latest) {
			latest = r.Updated
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) AddLogEntry(_ context.Context, entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLogID++
	stored := *entry
	stored.ID = s.nextLogID
	if stored.Time.IsZero() {
		stored.Time = time.Now()
	}
	s.log = append(s.log, &stored)
	return nil
}

func (s *MemoryStore) RecentLogEntries(_ context.Context, entity string, objectID int64, limit int) ([]*LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*LogEntry
	for _, e := range s.log {
		if e.Entity != entity || e.ObjectID != objectID {
			continue
		}
		entry := *e
		matched = append(matched, &entry)
	}
	// most recent first
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID > matched[j].ID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func copyRecord(r *Record) *Record {
	fields := make(map[string]interface{}, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return &Record{
		ID:      r.ID,
		Fields:  fields,
		Geom:    r.Geom,
		Updated: r.Updated,
	}
}

func NewMemoryStoreFromConfig(conf Config, m *mapping.Mapping) (Store, error) {
	return NewMemoryStore(), nil
}

func init() {
	Register("memory", NewMemoryStoreFromConfig)
}
