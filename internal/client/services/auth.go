// Package services implements the application-level operations of the
// framefeed client on top of the backend interfaces and the livesync
// machinery. Each service receives its collaborators explicitly; there is
// no ambient global session.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// SessionSource hands the current session to services that act on behalf of
// the signed-in user. A nil result means signed out.
type SessionSource interface {
	Current() *backend.Session
}

// AuthService wraps the auth platform and enriches its sessions with the
// user's profile row: the platform only knows id and email, the users table
// holds username and avatar. The profile fetch is asynchronous; listeners
// fire once with the bare session and again when the profile is merged.
type AuthService struct {
	auth    backend.Auth
	gateway backend.Gateway
	log     logging.Logger

	mu        sync.Mutex
	session   *backend.Session
	nextID    int
	listeners map[int]func(*backend.Session)

	cancelUpstream func()
}

func NewAuthService(ctx context.Context, auth backend.Auth, gateway backend.Gateway, log logging.Logger) *AuthService {
	if log == nil {
		log = logging.Discard()
	}
	s := &AuthService{
		auth:      auth,
		gateway:   gateway,
		log:       log,
		listeners: map[int]func(*backend.Session){},
	}
	s.cancelUpstream = auth.OnSessionChange(func(sess *backend.Session) {
		s.apply(ctx, sess)
	})
	return s
}

// Current returns the session as last observed, profile merged if already
// fetched. Nil when signed out.
func (s *AuthService) Current() *backend.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	copied := *s.session
	return &copied
}

// OnChange registers a listener fired on sign-in, sign-out, token refresh,
// and profile merge. The returned cancel func unregisters it.
func (s *AuthService) OnChange(fn func(*backend.Session)) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) error {
	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	// The upstream listener normally applies the session too; applying
	// here as well keeps Current consistent for backends that only report
	// through the return value. apply is idempotent.
	s.apply(ctx, sess)
	return nil
}

func (s *AuthService) SignUp(ctx context.Context, email, password string) error {
	sess, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	s.apply(ctx, sess)
	return nil
}

func (s *AuthService) SignOut(ctx context.Context) error {
	if err := s.auth.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.apply(ctx, nil)
	return nil
}

// RefreshProfile refetches the profile row and merges it into the current
// session, e.g. after an avatar upload.
func (s *AuthService) RefreshProfile(ctx context.Context) error {
	sess := s.Current()
	if sess == nil {
		return common.ErrUnauthorized
	}
	return s.mergeProfile(ctx, sess.User.ID)
}

// Close unregisters from the auth platform.
func (s *AuthService) Close() {
	if s.cancelUpstream != nil {
		s.cancelUpstream()
	}
}

func (s *AuthService) apply(ctx context.Context, sess *backend.Session) {
	s.mu.Lock()
	if sess == nil && s.session == nil {
		// Sign-out reported twice (direct call + upstream listener).
		s.mu.Unlock()
		return
	}
	if sess != nil && s.session != nil && s.session.AccessToken == sess.AccessToken {
		// Same session reported twice (direct call + upstream listener).
		s.mu.Unlock()
		return
	}
	s.session = sess
	s.mu.Unlock()

	s.notify(sess)

	if sess != nil {
		// Profile data arrives asynchronously, like the UI expects: the
		// bare auth identity is usable immediately.
		go func() {
			if err := s.mergeProfile(ctx, sess.User.ID); err != nil {
				s.log.Warn(ctx, "profile fetch failed", "user_id", sess.User.ID, "error", err)
			}
		}()
	}
}

func (s *AuthService) mergeProfile(ctx context.Context, userID string) error {
	var users []models.User
	if err := s.gateway.Select(ctx, common.TableUsers, backend.Filter{"id": userID}, backend.Order{}, &users); err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	profile := users[0]

	s.mu.Lock()
	if s.session == nil || s.session.User.ID != userID {
		// Signed out (or switched user) while the fetch was in flight.
		s.mu.Unlock()
		return nil
	}
	s.session.User.Username = profile.Username
	s.session.User.AvatarURL = profile.AvatarURL
	s.session.User.CreatedAt = profile.CreatedAt
	copied := *s.session
	s.mu.Unlock()

	s.notify(&copied)
	return nil
}

func (s *AuthService) notify(sess *backend.Session) {
	s.mu.Lock()
	listeners := make([]func(*backend.Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
}
