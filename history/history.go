// Package history keeps the per-session navigation history shown in
// the entity pages, bounded to the configured number of items.
package history

import (
	"context"
	"encoding/json"

	"github.com/alexedwards/scs/v2"
)

const sessionKey = "navigation_history"
const lastListKey = "last_list"

// Entry is one visited detail page.
type Entry struct {
	Title string `json:"title"`
	Path  string `json:"path"`
	Model string `json:"model"`
}

// Save records a visit. An existing entry with the same path moves to
// the front instead of duplicating, the oldest entry is dropped when
// the history exceeds max.
func Save(ctx context.Context, sm *scs.SessionManager, entry Entry, max int) {
	entries := List(ctx, sm)
	kept := make([]Entry, 0, len(entries)+1)
	kept = append(kept, entry)
	for _, e := range entries {
		if e.Path != entry.Path {
			kept = append(kept, e)
		}
	}
	if len(kept) > max {
		kept = kept[:len(kept)-1]
	}
	put(ctx, sm, kept)
}

// List returns the history, most recent first.
func List(ctx context.Context, sm *scs.SessionManager) []Entry {
	raw := sm.GetString(ctx, sessionKey)
	if raw == "" {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// drop unreadable history
		sm.Remove(ctx, sessionKey)
		return nil
	}
	return entries
}

// DeletePath removes all entries with the given path.
func DeletePath(ctx context.Context, sm *scs.SessionManager, path string) {
	entries := List(ctx, sm)
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Path != path {
			kept = append(kept, e)
		}
	}
	put(ctx, sm, kept)
}

func put(ctx context.Context, sm *scs.SessionManager, entries []Entry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	sm.Put(ctx, sessionKey, string(raw))
}

// SaveLastList remembers the most recent list URL. Delete views
// redirect there and the pages link back to it.
func SaveLastList(ctx context.Context, sm *scs.SessionManager, path string) {
	sm.Put(ctx, lastListKey, path)
}

func LastList(ctx context.Context, sm *scs.SessionManager) string {
	return sm.GetString(ctx, lastListKey)
}
