package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Grant request constants.
const (
	subjectTypeUniverse  = "Universe"
	permissionActionUse  = "Use"
	contentTypeJSONPatch = "application/json-patch+json"
)

var (
	// ErrNoManagePermission indicates the authenticated user cannot manage
	// the target universe, so nothing is granted.
	ErrNoManagePermission = errors.New("no manage permission for universe")
	// ErrPermissionsUnknown indicates the permission probe reply was not
	// interpretable.
	ErrPermissionsUnknown = errors.New("could not determine universe permissions")
)

// universePermissionsResponse is the manage-rights probe reply.
type universePermissionsResponse struct {
	Data []struct {
		CanManage bool `json:"canManage"`
	} `json:"data"`
}

// grantRequest is the permission-grant payload naming the universe as
// permitted to use the asset.
type grantRequest struct {
	Requests              []grantSubject `json:"requests"`
	GrantToDependencies   bool           `json:"grantToDependencies"`
	EnableDeepAccessCheck bool           `json:"enableDeepAccessCheck"`
}

type grantSubject struct {
	SubjectType string `json:"subjectType"`
	SubjectID   string `json:"subjectId"`
	Action      string `json:"action"`
}

// CanManageUniverse checks whether the authenticated identity has management
// rights over the universe.
func (c *Client) CanManageUniverse(ctx context.Context, universeID int64) (bool, error) {
	err := c.session.RequireAuth(false)
	if err != nil {
		return false, err
	}

	resp, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.developURL+fmt.Sprintf(apiUniversePermsFormat, universeID),
			http.NoBody,
		)
	})
	if err != nil {
		return false, err
	}

	if resp.status != http.StatusOK {
		return false, fmt.Errorf(
			"universe permission check for %d returned status %d: %s",
			universeID,
			resp.status,
			platformErrorMessage(resp),
		)
	}

	var permissions universePermissionsResponse

	err = json.Unmarshal(resp.body, &permissions)
	if err != nil {
		return false, fmt.Errorf("failed to decode universe permissions: %w", err)
	}

	if len(permissions.Data) == 0 {
		return false, fmt.Errorf("%w: %d", ErrPermissionsUnknown, universeID)
	}

	return permissions.Data[0].CanManage, nil
}

// GrantAssetPermissions authorizes the universe to use the asset. The grant
// endpoint is only called once the manage-rights probe passes. Failures here
// never fail the surrounding upload; callers log and move on.
func (c *Client) GrantAssetPermissions(ctx context.Context, assetID, universeID int64) error {
	canManage, err := c.CanManageUniverse(ctx, universeID)
	if err != nil {
		return fmt.Errorf("failed to check universe permissions: %w", err)
	}

	if !canManage {
		return fmt.Errorf("%w: universe %d", ErrNoManagePermission, universeID)
	}

	payload, err := json.Marshal(grantRequest{
		Requests: []grantSubject{
			{
				SubjectType: subjectTypeUniverse,
				SubjectID:   strconv.FormatInt(universeID, 10),
				Action:      permissionActionUse,
			},
		},
		GrantToDependencies:   false,
		EnableDeepAccessCheck: false,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal grant request: %w", err)
	}

	resp, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		httpReq, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPatch,
			c.apisURL+fmt.Sprintf(apiAssetPermissionsFmt, assetID),
			bytes.NewReader(payload),
		)
		if reqErr != nil {
			return nil, fmt.Errorf("failed to create grant request: %w", reqErr)
		}

		httpReq.Header.Set(headerContentType, contentTypeJSONPatch)

		return httpReq, nil
	})
	if err != nil {
		return err
	}

	if resp.status < http.StatusOK || resp.status >= http.StatusMultipleChoices {
		return fmt.Errorf(
			"permission grant for asset %d returned status %d: %s",
			assetID,
			resp.status,
			platformErrorMessage(resp),
		)
	}

	c.log.Info("Granted asset %d 'Use' permission to universe %d", assetID, universeID)

	return nil
}
