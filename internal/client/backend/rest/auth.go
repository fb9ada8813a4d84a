package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
)

// authResponse is the token endpoint's answer for both the password and
// refresh-token grants.
type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	sess, err := c.tokenGrant(ctx, "password", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	c.setSession(sess)
	return sess, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	resp, err := c.attempt(ctx, http.MethodPost, c.baseURL+"/auth/v1/signup", body, "application/json", "")
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity, http.StatusConflict:
		return nil, fmt.Errorf("sign up: account exists: %w", common.ErrConflict)
	case http.StatusBadRequest:
		return nil, fmt.Errorf("sign up: %w", common.ErrValidation)
	default:
		return nil, fmt.Errorf("sign up: %w", statusError(resp))
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, err
	}
	sess := c.sessionFrom(ar)
	c.setSession(sess)

	// The platform only stores the auth identity; the profile row is the
	// client's to create. Best-effort: a failure here leaves a profile
	// that the fallback lookup reconstructs from authored content.
	username := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		username = email[:i]
	}
	profile := models.User{ID: sess.User.ID, Email: sess.User.Email, Username: username}
	if err := c.Insert(ctx, common.TableUsers, profile, nil); err != nil {
		c.log.Warn(ctx, "profile row insert failed", "user_id", sess.User.ID, "error", err)
	}
	return sess, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil, "")
	if err == nil {
		drain(resp)
	}
	// the local session is gone regardless of what the server said
	c.setSession(nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (c *Client) OnSessionChange(fn func(*backend.Session)) func() {
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) refreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.RefreshToken
}

func (c *Client) refreshSession(ctx context.Context) error {
	token := c.refreshToken()
	if token == "" {
		return common.ErrUnauthorized
	}
	sess, err := c.tokenGrant(ctx, "refresh_token", map[string]string{"refresh_token": token})
	if err != nil {
		return err
	}
	c.setSession(sess)
	return nil
}

func (c *Client) tokenGrant(ctx context.Context, grant string, payload map[string]string) (*backend.Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.attempt(ctx, http.MethodPost, c.baseURL+"/auth/v1/token?grant_type="+grant, body, "application/json", "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("invalid credentials: %w", common.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, err
	}
	return c.sessionFrom(ar), nil
}

func (c *Client) sessionFrom(ar authResponse) *backend.Session {
	sess := &backend.Session{
		AccessToken:  ar.AccessToken,
		RefreshToken: ar.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(ar.ExpiresIn) * time.Second),
		User:         models.User{ID: ar.User.ID, Email: ar.User.Email},
	}

	// The token itself is authoritative for expiry and identity; the
	// signature is the server's concern, not ours.
	if claims := parseClaims(ar.AccessToken); claims != nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			sess.ExpiresAt = exp.Time
		}
		if sess.User.ID == "" {
			if sub, err := claims.GetSubject(); err == nil {
				sess.User.ID = sub
			}
		}
	}
	return sess
}

func parseClaims(token string) jwt.Claims {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	return parsed.Claims
}

func (c *Client) setSession(sess *backend.Session) {
	c.mu.Lock()
	c.session = sess
	listeners := make([]func(*backend.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
}
