package render

import (
	"context"

	"github.com/alexedwards/scs/v2"
)

const (
	flashKey     = "flash"
	flashTypeKey = "flash_type"
)

// SetFlash stores a one-shot notification in the session. kind is a
// CSS hint (success, error).
func SetFlash(ctx context.Context, sm *scs.SessionManager, kind, message string) {
	sm.Put(ctx, flashKey, message)
	sm.Put(ctx, flashTypeKey, kind)
}

// PopFlash returns and clears the pending notification.
func PopFlash(ctx context.Context, sm *scs.SessionManager) (message, kind string) {
	return sm.PopString(ctx, flashKey), sm.PopString(ctx, flashTypeKey)
}
