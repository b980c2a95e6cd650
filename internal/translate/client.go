// Package translate provides the HTTP client for the remote translation
// collaborator.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

var (
	// ErrTextEmpty indicates an empty input text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrEmptyTranslation indicates the service answered without a translation.
	ErrEmptyTranslation = errors.New("translation service returned no text")
)

// Request is the JSON payload sent to the translation service.
type Request struct {
	Text string `json:"text"`
	To   string `json:"to"`
}

// Result is one translated alternative in the service response.
type Result struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// Client is an HTTP client for the translation service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	targetLang string
}

// New creates a translation client for the service at baseURL, translating
// into targetLang. The timeout applies to every request.
func New(baseURL, targetLang string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		targetLang: targetLang,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Translate sends text to the translation service and returns the first
// translated alternative. An empty translation is an error: downstream
// synthesis has nothing to speak.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", ErrTextEmpty
	}

	requestBody, err := json.Marshal(Request{
		Text: text,
		To:   c.targetLang,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal translation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create translation request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call translation service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return "", fmt.Errorf(
			"translation service returned non-OK status: %s, body: %s",
			resp.Status,
			string(body),
		)
	}

	var results []Result

	err = json.NewDecoder(resp.Body).Decode(&results)
	if err != nil {
		return "", fmt.Errorf("failed to decode translation response: %w", err)
	}

	if len(results) == 0 || len(results[0].Translations) == 0 ||
		results[0].Translations[0].Text == "" {
		return "", ErrEmptyTranslation
	}

	return results[0].Translations[0].Text, nil
}
