// Package session stands in for an identity provider: it hands out opaque
// tokens for a user id and resolves them back on each request.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/docchat/internal/domain/sessionModel"
	"github.com/akolanti/docchat/pkg/logger_i"
	"github.com/google/uuid"
)

var ErrInvalidUser = errors.New("user id must be positive")

type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

type Service struct {
	store  sessionModel.SessionStore
	ttl    time.Duration
	now    func() time.Time
	logger *logger_i.Logger
}

func NewService(store sessionModel.SessionStore, ttl time.Duration) *Service {
	return &Service{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger_i.NewLogger("Session Service"),
	}
}

func (s *Service) Issue(ctx context.Context, userID int64) (Session, error) {
	if userID <= 0 {
		return Session{}, ErrInvalidUser
	}
	token := uuid.NewString()
	if err := s.store.Set(ctx, token, userID, s.ttl); err != nil {
		s.logger.WithTrace(ctx).Error("Failed to store session", "userId", userID, "error", err)
		return Session{}, err
	}
	s.logger.WithTrace(ctx).Debug("Session issued", "userId", userID)
	return Session{Token: token, UserID: userID, ExpiresAt: s.now().Add(s.ttl).UTC()}, nil
}

func (s *Service) Resolve(ctx context.Context, token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	return s.store.Get(ctx, token)
}

func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.store.Expire(ctx, token)
}
