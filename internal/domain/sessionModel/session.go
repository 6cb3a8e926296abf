package sessionModel

import (
	"context"
	"time"
)

// SessionStore maps opaque tokens to user ids with a time bound.
type SessionStore interface {
	Get(ctx context.Context, token string) (int64, bool)
	Set(ctx context.Context, token string, userID int64, ttl time.Duration) error
	Expire(ctx context.Context, token string) error
}
