package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/tts-publisher/internal/core"
)

// Polling budgets. The completion phase waits for the creation job to report
// done with an asset id; the moderation phase waits for a terminal
// moderation verdict on an already-completed job.
const (
	completionAttempts = 25
	completionInterval = 2 * time.Second
	moderationAttempts = 70
	moderationInterval = 5 * time.Second
)

var (
	// ErrOperationEmpty indicates a poll was requested without an operation id.
	ErrOperationEmpty = errors.New("operation id cannot be empty")
	// ErrCompletionTimeout indicates the completion budget was exhausted
	// before the job reported an asset id. The operation's fate is
	// undetermined, which is distinct from a rejection.
	ErrCompletionTimeout = errors.New("could not obtain asset id from operation")
	// ErrAssetIDMismatch indicates the platform associated one operation id
	// with two different asset ids across polls.
	ErrAssetIDMismatch = errors.New("operation reported inconsistent asset ids")
)

// operationResponse is the operation-status endpoint reply. The inner
// response block is only present once the job is done.
type operationResponse struct {
	Done     bool `json:"done"`
	Response *struct {
		AssetID          json.Number `json:"assetId"`
		ModerationResult *struct {
			ModerationState string `json:"moderationState"`
		} `json:"moderationResult"`
	} `json:"response"`
}

// OperationStatus issues one status query for the given operation. Errors at
// this level are per-poll observations; the polling loops treat them as
// "not ready yet" and keep going within their budgets.
func (c *Client) OperationStatus(ctx context.Context, operationID string) (core.OperationStatus, error) {
	if operationID == "" {
		return core.OperationStatus{}, ErrOperationEmpty
	}

	err := c.session.RequireAuth(false)
	if err != nil {
		return core.OperationStatus{}, err
	}

	resp, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.apisURL+fmt.Sprintf(apiOperationFormat, operationID),
			http.NoBody,
		)
	})
	if err != nil {
		return core.OperationStatus{}, err
	}

	if resp.status != http.StatusOK {
		return core.OperationStatus{}, fmt.Errorf(
			"operation status for %s returned status %d: %s",
			operationID,
			resp.status,
			platformErrorMessage(resp),
		)
	}

	var operation operationResponse

	err = json.Unmarshal(resp.body, &operation)
	if err != nil {
		return core.OperationStatus{}, fmt.Errorf(
			"failed to decode operation status for %s: %w",
			operationID,
			err,
		)
	}

	return flattenOperation(operation), nil
}

// flattenOperation maps the nested wire shape onto the internal status.
func flattenOperation(operation operationResponse) core.OperationStatus {
	status := core.OperationStatus{
		Done:       operation.Done,
		AssetID:    0,
		Moderation: "",
	}

	if operation.Response == nil {
		return status
	}

	assetID, err := operation.Response.AssetID.Int64()
	if err == nil {
		status.AssetID = assetID
	}

	if operation.Response.ModerationResult != nil {
		status.Moderation = core.ModerationState(
			operation.Response.ModerationResult.ModerationState,
		)
	}

	return status
}

// AwaitCompletion polls the operation until it reports done with an asset
// id, up to the completion budget. Budget exhaustion returns
// ErrCompletionTimeout: the upload is not known to have failed, its fate
// could not be determined in time.
func (c *Client) AwaitCompletion(ctx context.Context, operationID string) (core.OperationStatus, error) {
	for attempt := 1; attempt <= completionAttempts; attempt++ {
		status, err := c.OperationStatus(ctx, operationID)
		if err != nil {
			c.log.Warn(
				"Completion poll %d/%d for operation %s failed: %v",
				attempt,
				completionAttempts,
				operationID,
				err,
			)
		} else if status.Done && status.AssetID != 0 {
			c.log.Info(
				"Operation %s completed with asset %d (moderation: %s)",
				operationID,
				status.AssetID,
				status.Moderation,
			)

			return status, nil
		}

		if attempt < completionAttempts {
			sleepErr := c.sleep(ctx, completionInterval)
			if sleepErr != nil {
				return core.OperationStatus{}, sleepErr
			}
		}
	}

	return core.OperationStatus{}, fmt.Errorf("%w: %s", ErrCompletionTimeout, operationID)
}

// AwaitModeration polls an already-completed operation until its moderation
// state turns terminal, up to the moderation budget. It returns the last
// observed status when the budget runs out; the caller decides what a
// still-reviewing asset means.
//
// A poll that reports a different asset id than first observed is a contract
// violation on the platform side and aborts with ErrAssetIDMismatch rather
// than silently adopting the new id.
func (c *Client) AwaitModeration(
	ctx context.Context,
	operationID string,
	initial core.OperationStatus,
) (core.OperationStatus, error) {
	last := initial

	for attempt := 1; attempt <= moderationAttempts; attempt++ {
		status, err := c.OperationStatus(ctx, operationID)

		switch {
		case err != nil:
			c.log.Warn(
				"Moderation poll %d/%d for operation %s failed: %v",
				attempt,
				moderationAttempts,
				operationID,
				err,
			)
		case status.Done && status.AssetID != 0 && status.AssetID != initial.AssetID:
			return core.OperationStatus{}, fmt.Errorf(
				"%w: operation %s reported %d then %d",
				ErrAssetIDMismatch,
				operationID,
				initial.AssetID,
				status.AssetID,
			)
		case status.Done && status.AssetID == initial.AssetID:
			last = status
			c.log.Info(
				"Asset %d moderation state: %s (poll %d/%d)",
				last.AssetID,
				last.Moderation,
				attempt,
				moderationAttempts,
			)

			if last.Moderation.Terminal() {
				return last, nil
			}
		}

		if attempt < moderationAttempts {
			sleepErr := c.sleep(ctx, moderationInterval)
			if sleepErr != nil {
				return core.OperationStatus{}, sleepErr
			}
		}
	}

	return last, nil
}
