package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/troubleshooter/internal/convert"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
)

// getSessionMargin makes GetSession refresh tokens that are about to expire.
const getSessionMargin = 10 * time.Second

// SignInWithPassword exchanges credentials for a session and publishes SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	var rec convert.SessionRecord
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &rec)
	if err != nil {
		return nil, err
	}
	s, err := c.sessionFromRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(ctx, s); err != nil {
		return nil, err
	}
	c.events.Publish(model.AuthEvent{Type: model.EventSignedIn, Session: copySession(s)})
	return copySession(s), nil
}

// signUpResponse is either a session (auto-confirm) or a bare user (confirmation pending).
type signUpResponse struct {
	convert.SessionRecord
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// SignUp registers an account. When the backend returns a session it becomes the current one.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*model.AuthResult, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	var resp signUpResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/signup", body: body}, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		usr, err := convert.UserFromRecord(convert.UserRecord{ID: resp.ID, Email: resp.Email, UserMetadata: resp.UserMetadata})
		if err != nil {
			return nil, err
		}
		return &model.AuthResult{User: usr}, nil
	}

	s, err := c.sessionFromRecord(resp.SessionRecord)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(ctx, s); err != nil {
		return nil, err
	}
	c.events.Publish(model.AuthEvent{Type: model.EventSignedIn, Session: copySession(s)})
	return &model.AuthResult{User: s.User, Session: copySession(s)}, nil
}

// SignOut clears the local session and publishes SIGNED_OUT before revoking the token remotely.
func (c *Client) SignOut(ctx context.Context) error {
	prev, err := c.current(ctx)
	if err != nil {
		c.logger.Warn("load session before sign-out", zap.Error(err))
	}
	if err := c.setSession(ctx, nil); err != nil {
		c.logger.Warn("clear stored session", zap.Error(err))
	}
	c.events.Publish(model.AuthEvent{Type: model.EventSignedOut})

	if prev == nil {
		return nil
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		token:  prev.AccessToken,
	}, nil)
}

// GetSession returns the current session, refreshing it first when it is about to expire.
func (c *Client) GetSession(ctx context.Context) (*model.Session, error) {
	s, err := c.current(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.Expired(c.now(), getSessionMargin) {
		return s, nil
	}
	if s.RefreshToken == "" {
		return nil, c.expire(ctx, "expired session without refresh token")
	}
	fresh, err := c.refresh(ctx, s.RefreshToken)
	if err != nil {
		if isRejected(err) {
			_ = c.expire(ctx, "refresh rejected")
		}
		return nil, err
	}
	return fresh, nil
}

// Subscribe returns the auth event stream.
func (c *Client) Subscribe() (<-chan model.AuthEvent, func()) { return c.events.Subscribe() }

// ResetPasswordForEmail asks the backend to send a recovery link.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		query:  q,
		body:   map[string]string{"email": email},
	}, nil)
}

// SessionFromURL consumes the tokens carried in a recovery or magic link.
// Recovery links publish PASSWORD_RECOVERY, others SIGNED_IN.
func (c *Client) SessionFromURL(ctx context.Context, link string) (*model.Session, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parse link: %w", err)
	}
	params, err := url.ParseQuery(u.Fragment)
	if err != nil || params.Get("access_token") == "" && params.Get("error_description") == "" {
		params = u.Query()
	}
	if d := params.Get("error_description"); d != "" {
		return nil, &errs.BackendError{Code: firstNonEmpty(params.Get("error_code"), params.Get("error")), Message: d}
	}
	access := params.Get("access_token")
	if access == "" {
		return nil, errs.Invalid("link", "has no access token")
	}

	var usr convert.UserRecord
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: access}, &usr); err != nil {
		return nil, err
	}
	rec := convert.SessionRecord{
		AccessToken:  access,
		RefreshToken: params.Get("refresh_token"),
		TokenType:    params.Get("token_type"),
		User:         usr,
	}
	rec.ExpiresAt, _ = strconv.ParseInt(params.Get("expires_at"), 10, 64)
	rec.ExpiresIn, _ = strconv.ParseInt(params.Get("expires_in"), 10, 64)

	s, err := c.sessionFromRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(ctx, s); err != nil {
		return nil, err
	}
	ev := model.EventSignedIn
	if params.Get("type") == "recovery" {
		ev = model.EventPasswordRecovery
	}
	c.events.Publish(model.AuthEvent{Type: ev, Session: copySession(s)})
	return copySession(s), nil
}

// UpdateUser patches the signed-in user and publishes USER_UPDATED.
func (c *Client) UpdateUser(ctx context.Context, upd model.UserUpdate) (*model.User, error) {
	s, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errs.ErrUnauthorized
	}
	body := map[string]any{}
	if upd.Password != "" {
		body["password"] = upd.Password
	}
	if len(upd.Data) > 0 {
		body["data"] = upd.Data
	}
	var rec convert.UserRecord
	if err := c.do(ctx, request{method: http.MethodPut, path: "/auth/v1/user", body: body, token: s.AccessToken}, &rec); err != nil {
		return nil, err
	}
	usr, err := convert.UserFromRecord(rec)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	current := c.session != nil && c.session.User.ID == usr.ID
	if current {
		c.session.User = usr
		s = copySession(c.session)
	}
	c.mu.Unlock()
	if current {
		if err := c.store.Save(ctx, s); err != nil {
			c.logger.Warn("persist updated user", zap.Error(err))
		}
		c.events.Publish(model.AuthEvent{Type: model.EventUserUpdated, Session: copySession(s)})
	}
	return &usr, nil
}

// refresh exchanges a refresh token and publishes TOKEN_REFRESHED.
func (c *Client) refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	var rec convert.SessionRecord
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &rec)
	if err != nil {
		return nil, err
	}
	s, err := c.sessionFromRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(ctx, s); err != nil {
		return nil, err
	}
	c.events.Publish(model.AuthEvent{Type: model.EventTokenRefreshed, Session: copySession(s)})
	return copySession(s), nil
}

// expire drops a session that can no longer be used and publishes SIGNED_OUT.
func (c *Client) expire(ctx context.Context, reason string) error {
	c.logger.Info("session expired", zap.String("reason", reason))
	if err := c.setSession(ctx, nil); err != nil {
		return err
	}
	c.events.Publish(model.AuthEvent{Type: model.EventSignedOut})
	return nil
}

func (c *Client) sessionFromRecord(rec convert.SessionRecord) (*model.Session, error) {
	s, err := convert.SessionFromRecord(rec, c.now())
	if err != nil {
		return nil, err
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = tokenExpiry(s.AccessToken)
	}
	return s, nil
}

// current returns a copy of the session, loading it from the store on first use.
func (c *Client) current(ctx context.Context) (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		s, err := c.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		c.session = s
		c.loaded = true
	}
	return copySession(c.session), nil
}

// setSession replaces the in-memory session and persists it (nil clears).
func (c *Client) setSession(ctx context.Context, s *model.Session) error {
	c.mu.Lock()
	c.session = copySession(s)
	c.loaded = true
	c.mu.Unlock()
	if s == nil {
		return c.store.Clear(ctx)
	}
	return c.store.Save(ctx, s)
}

// accessToken returns the bearer for data calls, or "" to use the anon key.
func (c *Client) accessToken(ctx context.Context) string {
	s, err := c.current(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("load session for request", zap.Error(err))
	}
	if s == nil {
		return ""
	}
	return s.AccessToken
}

func copySession(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
