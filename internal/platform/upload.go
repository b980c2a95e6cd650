package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/book-expert/tts-publisher/internal/core"
)

// Multipart form field names.
const (
	formFieldFileContent = "FileContent"
	formFieldRequest     = "request"
)

// Asset metadata constants.
const (
	assetTypeAudio   = "Audio"
	assetDescription = "Audio created via automated TTS service"
)

// Rate-limit recovery policy: one retry after a fixed backoff. A response
// coded RESOURCE_EXHAUSTED is an account-level quota, not throttling, and is
// never retried.
const (
	rateLimitBackoff      = 10 * time.Second
	codeResourceExhausted = "RESOURCE_EXHAUSTED"
)

var (
	// ErrQuotaExhausted indicates the account-level upload quota is spent.
	ErrQuotaExhausted = errors.New("upload quota exhausted")
	// ErrNoOperationID indicates a successful creation response without an
	// operation identifier.
	ErrNoOperationID = errors.New("asset creation response missing operation id")
)

// assetCreator names the authenticated user as the asset creator.
type assetCreator struct {
	UserID int64 `json:"userId"`
}

// assetCreationContext is the creation-context block of the asset metadata.
type assetCreationContext struct {
	Creator       assetCreator `json:"creator"`
	ExpectedPrice int          `json:"expectedPrice"`
}

// assetMetadata is the JSON metadata part of the multipart submission.
type assetMetadata struct {
	DisplayName     string               `json:"displayName"`
	Description     string               `json:"description"`
	AssetType       string               `json:"assetType"`
	CreationContext assetCreationContext `json:"creationContext"`
}

// createAssetResponse is the successful creation reply. Some responses carry
// the operation id only as the trailing segment of a path.
type createAssetResponse struct {
	OperationID string `json:"operationId"`
	Path        string `json:"path"`
}

// platformError is the error envelope of a failed platform call.
type platformError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// CreateAudioAsset submits one audio payload to the asset-creation endpoint
// and returns the operation id of the asynchronous creation job.
//
// Missing cookie or unresolved user id fail fast without a network call. A
// plain 429 is retried exactly once after the fixed backoff; a
// RESOURCE_EXHAUSTED-coded reply fails permanently. The CSRF rotation rule
// applies through the shared do wrapper.
func (c *Client) CreateAudioAsset(ctx context.Context, upload core.UploadRequest) (string, error) {
	err := c.session.RequireAuth(true)
	if err != nil {
		return "", err
	}

	userID, _ := c.session.UserID()
	build := c.buildCreateAssetRequest(upload, userID)

	resp, err := c.do(ctx, build)
	if err != nil {
		return "", err
	}

	if isResourceExhausted(resp.body) {
		return "", fmt.Errorf("%w: %s", ErrQuotaExhausted, platformErrorMessage(resp))
	}

	if resp.status == http.StatusTooManyRequests {
		c.log.Warn("Asset creation rate limited, retrying once after %s", rateLimitBackoff)

		sleepErr := c.sleep(ctx, rateLimitBackoff)
		if sleepErr != nil {
			return "", sleepErr
		}

		resp, err = c.do(ctx, build)
		if err != nil {
			return "", err
		}
	}

	return parseCreateAssetResponse(resp)
}

// buildCreateAssetRequest returns a builder that assembles the multipart
// submission from scratch on every invocation, so a replayed call carries a
// fully rebuilt body.
func (c *Client) buildCreateAssetRequest(
	upload core.UploadRequest,
	userID int64,
) requestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		metadata, err := json.Marshal(assetMetadata{
			DisplayName: upload.DisplayName,
			Description: assetDescription,
			AssetType:   assetTypeAudio,
			CreationContext: assetCreationContext{
				Creator: assetCreator{
					UserID: userID,
				},
				ExpectedPrice: 0,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal asset metadata: %w", err)
		}

		var body bytes.Buffer

		writer := multipart.NewWriter(&body)

		partHeader := textproto.MIMEHeader{}
		partHeader.Set(
			"Content-Disposition",
			fmt.Sprintf(
				`form-data; name=%q; filename=%q`,
				formFieldFileContent,
				upload.Filename,
			),
		)
		partHeader.Set(headerContentType, upload.ContentType)

		part, err := writer.CreatePart(partHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create file part: %w", err)
		}

		_, err = part.Write(upload.FileBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to write file part: %w", err)
		}

		err = writer.WriteField(formFieldRequest, string(metadata))
		if err != nil {
			return nil, fmt.Errorf("failed to write request field: %w", err)
		}

		err = writer.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to close multipart writer: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			c.apisURL+apiCreateAsset,
			bytes.NewReader(body.Bytes()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create asset request: %w", err)
		}

		httpReq.Header.Set(headerContentType, writer.FormDataContentType())

		return httpReq, nil
	}
}

// parseCreateAssetResponse extracts the operation id from a creation reply.
func parseCreateAssetResponse(resp response) (string, error) {
	if isResourceExhausted(resp.body) {
		return "", fmt.Errorf("%w: %s", ErrQuotaExhausted, platformErrorMessage(resp))
	}

	if resp.status < http.StatusOK || resp.status >= http.StatusMultipleChoices {
		return "", fmt.Errorf(
			"asset creation failed with status %d: %s",
			resp.status,
			platformErrorMessage(resp),
		)
	}

	var created createAssetResponse

	err := json.Unmarshal(resp.body, &created)
	if err != nil {
		return "", fmt.Errorf("failed to decode asset creation response: %w", err)
	}

	operationID := created.OperationID
	if operationID == "" && created.Path != "" {
		segments := strings.Split(created.Path, "/")
		operationID = segments[len(segments)-1]
	}

	if operationID == "" {
		return "", ErrNoOperationID
	}

	return operationID, nil
}

// isResourceExhausted reports whether a reply is coded as account-level
// quota exhaustion.
func isResourceExhausted(body []byte) bool {
	var perr platformError

	err := json.Unmarshal(body, &perr)
	if err != nil {
		return false
	}

	return strings.Contains(perr.Code, codeResourceExhausted)
}

// platformErrorMessage extracts the most specific error message available
// from a failed reply, falling back to the raw body.
func platformErrorMessage(resp response) string {
	var perr platformError

	err := json.Unmarshal(resp.body, &perr)
	if err == nil {
		if len(perr.Errors) > 0 && perr.Errors[0].Message != "" {
			return perr.Errors[0].Message
		}

		if perr.Message != "" {
			return perr.Message
		}
	}

	return string(resp.body)
}
