package platform_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-publisher/internal/core"
	"github.com/book-expert/tts-publisher/internal/platform"
	"github.com/book-expert/tts-publisher/internal/session"
)

func testUpload() core.UploadRequest {
	return core.UploadRequest{
		FileBytes:   []byte("fake-wav-data"),
		Filename:    "clip.wav",
		ContentType: "audio/wav",
		DisplayName: "Hello",
	}
}

func TestCreateAudioAsset_Success(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/assets/user-auth/v1/assets", request.URL.Path)

		err := request.ParseMultipartForm(1 << 20)
		require.NoError(t, err)

		file, header, err := request.FormFile("FileContent")
		require.NoError(t, err)

		defer file.Close()

		assert.Equal(t, "clip.wav", header.Filename)
		assert.Equal(t, "audio/wav", header.Header.Get("Content-Type"))

		var metadata struct {
			DisplayName     string `json:"displayName"`
			AssetType       string `json:"assetType"`
			CreationContext struct {
				Creator struct {
					UserID int64 `json:"userId"`
				} `json:"creator"`
			} `json:"creationContext"`
		}

		err = json.Unmarshal([]byte(request.FormValue("request")), &metadata)
		require.NoError(t, err)
		assert.Equal(t, "Hello", metadata.DisplayName)
		assert.Equal(t, "Audio", metadata.AssetType)
		assert.Equal(t, testUserID, metadata.CreationContext.Creator.UserID)

		fmt.Fprint(responseWriter, `{"operationId":"op-123"}`)
	})

	client, _, recorder := newTestClient(t, handler)

	operationID, err := client.CreateAudioAsset(context.Background(), testUpload())
	require.NoError(t, err)
	assert.Equal(t, "op-123", operationID)
	assert.Empty(t, recorder.recorded())
}

func TestCreateAudioAsset_OperationIDFromPath(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(responseWriter, `{"path":"operations/op-456"}`)
	})

	client, _, _ := newTestClient(t, handler)

	operationID, err := client.CreateAudioAsset(context.Background(), testUpload())
	require.NoError(t, err)
	assert.Equal(t, "op-456", operationID)
}

func TestCreateAudioAsset_MissingOperationID(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(responseWriter, `{}`)
	})

	client, _, _ := newTestClient(t, handler)

	_, err := client.CreateAudioAsset(context.Background(), testUpload())
	require.ErrorIs(t, err, platform.ErrNoOperationID)
}

func TestCreateAudioAsset_RateLimitedRetriesOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	handler := http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			responseWriter.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(responseWriter, `{"errors":[{"message":"too many requests"}]}`)

			return
		}

		fmt.Fprint(responseWriter, `{"operationId":"op-789"}`)
	})

	client, _, recorder := newTestClient(t, handler)

	operationID, err := client.CreateAudioAsset(context.Background(), testUpload())
	require.NoError(t, err)
	assert.Equal(t, "op-789", operationID)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, []time.Duration{10 * time.Second}, recorder.recorded())
}

func TestCreateAudioAsset_ResourceExhaustedNeverRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	handler := http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		responseWriter.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(responseWriter, `{"code":"RESOURCE_EXHAUSTED","message":"upload quota reached"}`)
	})

	client, _, recorder := newTestClient(t, handler)

	_, err := client.CreateAudioAsset(context.Background(), testUpload())
	require.ErrorIs(t, err, platform.ErrQuotaExhausted)
	assert.Equal(t, int64(1), calls.Load())
	assert.Empty(t, recorder.recorded())
}

func TestCreateAudioAsset_CSRFRotationResubmitsPayload(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	handler := http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if calls.Add(1) == 1 {
			responseWriter.Header().Set("x-csrf-token", "rotated")
			responseWriter.WriteHeader(http.StatusForbidden)

			return
		}

		assert.Equal(t, "rotated", request.Header.Get("x-csrf-token"))

		// The replay must carry a full, readable multipart body.
		err := request.ParseMultipartForm(1 << 20)
		require.NoError(t, err)

		file, _, err := request.FormFile("FileContent")
		require.NoError(t, err)

		defer file.Close()

		fmt.Fprint(responseWriter, `{"operationId":"op-retry"}`)
	})

	client, _, _ := newTestClient(t, handler)

	operationID, err := client.CreateAudioAsset(context.Background(), testUpload())
	require.NoError(t, err)
	assert.Equal(t, "op-retry", operationID)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCreateAudioAsset_MissingUserIDFailsFast(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	handler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	})

	client, sess, _ := newTestClient(t, handler)
	sess.SetUserID(0)

	_, err := client.CreateAudioAsset(context.Background(), testUpload())
	require.ErrorIs(t, err, session.ErrNoUserID)
	assert.Equal(t, int64(0), calls.Load())
}
