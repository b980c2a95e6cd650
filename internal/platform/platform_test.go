// Package platform_test tests the authenticated asset-platform client: CSRF
// rotation, upload submission, operation polling, moderation resolution and
// permission grants.
package platform_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-publisher/internal/platform"
	"github.com/book-expert/tts-publisher/internal/session"
)

const (
	testCookie = ".SECURITY=test-cookie"
	testUserID = int64(99)
)

// sleepRecorder captures polling and backoff pauses instead of sleeping, so
// attempt exhaustion can be simulated without elapsed time.
type sleepRecorder struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.durations = append(r.durations, duration)

	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Duration(nil), r.durations...)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "platform-test.log")
	require.NoError(t, err)

	return log
}

// newTestClient builds a platform client pointed at the given handler for
// all three platform hosts, with an authenticated session and recorded
// sleeps.
func newTestClient(
	t *testing.T,
	handler http.Handler,
) (*platform.Client, *session.Session, *sleepRecorder) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sess := session.New(testCookie)
	sess.SetUserID(testUserID)

	recorder := &sleepRecorder{}

	client := platform.NewWithSleep(
		server.URL,
		server.URL,
		server.URL,
		sess,
		5*time.Second,
		newTestLogger(t),
		recorder.sleep,
	)

	require.Same(t, sess, client.Session())

	return client, client.Session(), recorder
}
