package session

import (
	"context"
	"time"

	"storefront-auth/internal/profile"
)

// Session pairs the current user's profile with the opaque token issued at
// login. At most one is active per process.
type Session struct {
	Profile   profile.Profile
	Token     string
	ExpiresAt time.Time // zero means no local expiry
}

// Expired reports whether the session is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store persists the active session across process restarts. Profile and
// token are written and cleared as one unit; Load never returns one without
// the other and treats malformed content as no session.
type Store interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}
