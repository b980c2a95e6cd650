package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCookieInvalid indicates the platform rejected the cookie outright.
	ErrCookieInvalid = errors.New("platform cookie is invalid or expired")
	// ErrNoAuthenticatedUser indicates the identity response held no user id.
	ErrNoAuthenticatedUser = errors.New("identity response missing user id")
)

// authenticatedUserResponse is the identity endpoint reply.
type authenticatedUserResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ResolveAuthenticatedUser fetches the identity behind the session cookie and
// caches its user id in the shared session. It is called once at startup; the
// cached id names the asset creator on every upload.
func (c *Client) ResolveAuthenticatedUser(ctx context.Context) (int64, error) {
	err := c.session.RequireAuth(false)
	if err != nil {
		return 0, err
	}

	resp, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.usersURL+apiAuthenticatedUser,
			http.NoBody,
		)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch authenticated user: %w", err)
	}

	if resp.status == http.StatusUnauthorized {
		return 0, ErrCookieInvalid
	}

	if resp.status != http.StatusOK {
		return 0, fmt.Errorf(
			"identity endpoint returned status %d: %s",
			resp.status,
			string(resp.body),
		)
	}

	var user authenticatedUserResponse

	err = json.Unmarshal(resp.body, &user)
	if err != nil {
		return 0, fmt.Errorf("failed to decode identity response: %w", err)
	}

	if user.ID == 0 {
		return 0, ErrNoAuthenticatedUser
	}

	c.session.SetUserID(user.ID)
	c.log.Info("Authenticated platform user: %s (%d)", user.Name, user.ID)

	return user.ID, nil
}
