// Package synth provides the HTTP client for the remote speech-synthesis
// collaborator, which exposes a predict endpoint returning a retrievable
// audio URL.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/tts-publisher/internal/core"
)

// API endpoints and paths.
const (
	apiPredict = "/run/tts"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Audio content types and the file extensions assigned to them.
const (
	contentTypeWAV  = "audio/wav"
	extensionWAV    = ".wav"
	extensionMP3    = ".mp3"
	extensionOGG    = ".ogg"
	contentTypeMPEG = "mpeg"
	contentTypeOGG  = "ogg"
)

var (
	// ErrTextEmpty indicates an empty synthesis input.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrNoAudioURL indicates the synthesis response carried no audio URL.
	ErrNoAudioURL = errors.New("synthesis response missing audio URL")
	// ErrEmptyAudio indicates the retrieved audio resource had no bytes.
	ErrEmptyAudio = errors.New("retrieved audio resource is empty")
)

// Request is the JSON payload for the synthesis predict endpoint. The data
// slots are positional: text, speaker voice, playback speed.
type Request struct {
	Data []any `json:"data"`
}

// Response is the predict endpoint reply. Output slots are positional and
// heterogeneous, so they are decoded lazily.
type Response struct {
	Data []json.RawMessage `json:"data"`
}

// audioOutput is the file-reference slot of a predict response.
type audioOutput struct {
	URL string `json:"url"`
}

// Client is an HTTP client for the speech-synthesis service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	speed      float64
}

// New creates a synthesis client for the service at baseURL. The timeout
// applies to both prediction and audio retrieval.
func New(baseURL string, speed float64, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		speed:   speed,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize asks the service to generate speech for text with the given
// voice and returns the resource reference under which the audio can be
// retrieved. The audio URL lives in the second output slot; a response
// without it is a terminal error for the request.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (core.AudioResource, error) {
	if text == "" {
		return core.AudioResource{}, ErrTextEmpty
	}

	requestBody, err := json.Marshal(Request{
		Data: []any{text, voice, c.speed},
	})
	if err != nil {
		return core.AudioResource{}, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiPredict,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return core.AudioResource{}, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.AudioResource{}, fmt.Errorf(
			"failed to call synthesis service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return core.AudioResource{}, fmt.Errorf(
			"synthesis service returned non-OK status: %s, body: %s",
			resp.Status,
			string(body),
		)
	}

	var prediction Response

	err = json.NewDecoder(resp.Body).Decode(&prediction)
	if err != nil {
		return core.AudioResource{}, fmt.Errorf("failed to decode synthesis response: %w", err)
	}

	const audioSlot = 1

	if len(prediction.Data) <= audioSlot {
		return core.AudioResource{}, ErrNoAudioURL
	}

	var output audioOutput

	err = json.Unmarshal(prediction.Data[audioSlot], &output)
	if err != nil || output.URL == "" {
		return core.AudioResource{}, ErrNoAudioURL
	}

	return core.AudioResource{URL: output.URL}, nil
}

// Fetch downloads the synthesized audio bytes from the resource reference.
func (c *Client) Fetch(ctx context.Context, resource core.AudioResource) (core.AudioClip, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, resource.URL, http.NoBody)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("failed to create audio fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("failed to fetch audio from %s: %w", resource.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.AudioClip{}, fmt.Errorf(
			"audio fetch returned non-OK status: %s",
			resp.Status,
		)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(data) == 0 {
		return core.AudioClip{}, ErrEmptyAudio
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType == "" {
		contentType = contentTypeWAV
	}

	return core.AudioClip{
		Data:        data,
		ContentType: contentType,
	}, nil
}

// ExtensionFor maps an audio content type to the file extension used for the
// uploaded asset filename.
func ExtensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, contentTypeMPEG):
		return extensionMP3
	case strings.Contains(contentType, contentTypeOGG):
		return extensionOGG
	default:
		return extensionWAV
	}
}
