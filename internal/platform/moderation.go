package platform

import (
	"errors"
	"fmt"

	"github.com/book-expert/tts-publisher/internal/core"
)

// Moderation outcome notes.
const (
	noteApproved     = "Asset Approved."
	noteBypassed     = "Asset is 'Reviewing'. Moderation wait bypassed."
	noteModeratedFmt = "Asset %s."
	noteFinalFmt     = "Asset moderation: %s"
)

var (
	// ErrAssetModerated indicates an explicit Rejected or Failed verdict.
	ErrAssetModerated = errors.New("asset failed moderation")
	// ErrAssetNotApproved indicates the moderation budget ran out without an
	// Approved verdict.
	ErrAssetNotApproved = errors.New("asset not approved")
)

// Decision is the outcome of interpreting one moderation observation.
// When Wait is set the asset is still under review and the moderation phase
// must keep polling; Success, Note and Err are then unset.
type Decision struct {
	Wait    bool
	Success bool
	Note    string
	Err     error
}

// ResolveModeration interprets a moderation state together with the bypass
// flag. Approved, Rejected and Failed are terminal regardless of bypass.
// Bypass only short-circuits the exact Reviewing state; unrecognized states
// keep polling even with bypass enabled, since nothing is known about them.
func ResolveModeration(state core.ModerationState, bypass bool) Decision {
	switch state {
	case core.ModerationApproved:
		return Decision{
			Wait:    false,
			Success: true,
			Note:    noteApproved,
			Err:     nil,
		}
	case core.ModerationRejected, core.ModerationFailed:
		return Decision{
			Wait:    false,
			Success: false,
			Note:    fmt.Sprintf(noteModeratedFmt, state),
			Err:     fmt.Errorf("%w: Asset %s", ErrAssetModerated, state),
		}
	case core.ModerationReviewing:
		if bypass {
			return Decision{
				Wait:    false,
				Success: true,
				Note:    noteBypassed,
				Err:     nil,
			}
		}
	case core.ModerationUnknown:
	}

	return Decision{
		Wait:    true,
		Success: false,
		Note:    "",
		Err:     nil,
	}
}

// FinalizeModeration interprets the last state observed once the moderation
// budget is exhausted or a terminal state arrived. A phase that never
// produced a terminal read reports the literal status Unknown.
func FinalizeModeration(state core.ModerationState) Decision {
	if state == "" {
		state = core.ModerationUnknown
	}

	if state == core.ModerationApproved {
		return Decision{
			Wait:    false,
			Success: true,
			Note:    noteApproved,
			Err:     nil,
		}
	}

	return Decision{
		Wait:    false,
		Success: false,
		Note:    fmt.Sprintf(noteFinalFmt, state),
		Err:     fmt.Errorf("%w: final status: %s", ErrAssetNotApproved, state),
	}
}
