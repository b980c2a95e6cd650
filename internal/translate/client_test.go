// Package translate_test tests the translation service client.
package translate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-publisher/internal/translate"
)

const testTimeout = 5 * time.Second

func newTranslationServer(t *testing.T, translated string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodPost, request.Method)

			var req translate.Request

			err := json.NewDecoder(request.Body).Decode(&req)
			require.NoError(t, err)
			assert.Equal(t, "ja", req.To)

			responseWriter.Header().Set("Content-Type", "application/json")

			results := []translate.Result{
				{
					Translations: []struct {
						Text string `json:"text"`
					}{
						{Text: translated},
					},
				},
			}

			err = json.NewEncoder(responseWriter).Encode(results)
			require.NoError(t, err)
		},
	))
}

func TestTranslate_Success(t *testing.T) {
	t.Parallel()

	server := newTranslationServer(t, "こんにちは")
	defer server.Close()

	client := translate.New(server.URL, "ja", testTimeout)

	translated, err := client.Translate(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "こんにちは", translated)
}

func TestTranslate_EmptyResult(t *testing.T) {
	t.Parallel()

	server := newTranslationServer(t, "")
	defer server.Close()

	client := translate.New(server.URL, "ja", testTimeout)

	_, err := client.Translate(context.Background(), "Hello")
	require.ErrorIs(t, err, translate.ErrEmptyTranslation)
}

func TestTranslate_EmptyText(t *testing.T) {
	t.Parallel()

	client := translate.New("http://127.0.0.1:1", "ja", testTimeout)

	_, err := client.Translate(context.Background(), "")
	require.ErrorIs(t, err, translate.ErrTextEmpty)
}

func TestTranslate_ServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			http.Error(responseWriter, "upstream unavailable", http.StatusBadGateway)
		},
	))
	defer server.Close()

	client := translate.New(server.URL, "ja", testTimeout)

	_, err := client.Translate(context.Background(), "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
