// Package platform provides the authenticated REST client for the remote
// asset platform: asset creation, operation polling, moderation resolution
// and asset-use permission grants.
//
// Every call carries the session cookie; mutating calls additionally carry
// the rotating CSRF token. A 403 response holding a fresh token rotates the
// shared session token and the call is replayed exactly once.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-publisher/internal/session"
)

// API paths on the platform hosts.
const (
	apiAuthenticatedUser   = "/v1/users/authenticated"
	apiCreateAsset         = "/assets/user-auth/v1/assets"
	apiOperationFormat     = "/assets/user-auth/v1/operations/%s"
	apiAssetPermissionsFmt = "/asset-permissions-api/v1/assets/%d/permissions"
	apiUniversePermsFormat = "/v1/universes/multiget/permissions?ids=%d"
)

// HTTP headers.
const (
	headerCSRFToken   = "x-csrf-token"
	headerCookie      = "Cookie"
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerOrigin      = "Origin"
	headerReferer     = "Referer"

	contentTypeJSON = "application/json"

	originCreate  = "https://create.roblox.com"
	refererCreate = "https://create.roblox.com/"
)

var (
	// ErrCSRFRejected indicates two consecutive 403 responses; the rotated
	// token was not accepted either.
	ErrCSRFRejected = errors.New("request rejected after CSRF token rotation")
)

// response is one fully-read platform reply.
type response struct {
	status int
	header http.Header
	body   []byte
}

// requestBuilder constructs a fresh outbound request. It is invoked again
// when a call is replayed, so consumed bodies are rebuilt rather than reused.
type requestBuilder func(ctx context.Context) (*http.Request, error)

// Client is the authenticated asset-platform client shared by every request.
type Client struct {
	httpClient *http.Client
	session    *session.Session
	usersURL   string
	apisURL    string
	developURL string
	log        *logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a platform client. usersURL hosts the identity endpoint,
// apisURL the asset and permission endpoints, developURL the universe
// permission probe.
func New(
	usersURL, apisURL, developURL string,
	sess *session.Session,
	timeout time.Duration,
	log *logger.Logger,
) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		session:    sess,
		usersURL:   usersURL,
		apisURL:    apisURL,
		developURL: developURL,
		log:        log,
		sleep:      sleepContext,
	}
}

// NewWithSleep creates a platform client whose backoff and polling pauses go
// through the provided sleep function. Tests use it to simulate attempt
// exhaustion without real elapsed time.
func NewWithSleep(
	usersURL, apisURL, developURL string,
	sess *session.Session,
	timeout time.Duration,
	log *logger.Logger,
	sleep func(ctx context.Context, d time.Duration) error,
) *Client {
	client := New(usersURL, apisURL, developURL, sess, timeout, log)
	client.sleep = sleep

	return client
}

// Session exposes the shared session, primarily for startup wiring.
func (c *Client) Session() *session.Session {
	return c.session
}

// setAuthHeaders applies the shared cookie and, when present, the current
// CSRF token to an outbound request.
func (c *Client) setAuthHeaders(httpReq *http.Request) {
	httpReq.Header.Set(headerCookie, c.session.Cookie())
	httpReq.Header.Set(headerAccept, contentTypeJSON)
	httpReq.Header.Set(headerOrigin, originCreate)
	httpReq.Header.Set(headerReferer, refererCreate)

	token := c.session.CSRF()
	if token != "" {
		httpReq.Header.Set(headerCSRFToken, token)
	}
}

// do issues one authenticated call built by build. A 403 response carrying a
// fresh CSRF token rotates the session token and replays the call exactly
// once; a second 403 is surfaced, never retried again.
func (c *Client) do(ctx context.Context, build requestBuilder) (response, error) {
	resp, err := c.doOnce(ctx, build)
	if err != nil {
		return response{}, err
	}

	if resp.status != http.StatusForbidden {
		return resp, nil
	}

	freshToken := resp.header.Get(headerCSRFToken)
	if freshToken == "" {
		return resp, nil
	}

	c.session.SetCSRF(freshToken)
	c.log.Info("CSRF token rotated by platform, replaying request once")

	retried, err := c.doOnce(ctx, build)
	if err != nil {
		return response{}, err
	}

	if retried.status == http.StatusForbidden {
		return retried, fmt.Errorf("%w: status %d", ErrCSRFRejected, retried.status)
	}

	return retried, nil
}

// doOnce builds and issues a single request and reads the full reply.
func (c *Client) doOnce(ctx context.Context, build requestBuilder) (response, error) {
	httpReq, err := build(ctx)
	if err != nil {
		return response{}, fmt.Errorf("failed to build platform request: %w", err)
	}

	c.setAuthHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return response{}, fmt.Errorf("platform request to %s failed: %w", httpReq.URL, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return response{}, fmt.Errorf("failed to read platform response body: %w", err)
	}

	return response{
		status: httpResp.StatusCode,
		header: httpResp.Header,
		body:   body,
	}, nil
}

// sleepContext pauses for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
