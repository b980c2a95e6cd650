// Package pipeline sequences one inbound request end to end: translation,
// speech synthesis, audio retrieval, archival, asset upload and moderation
// resolution, with the optional permission grant running alongside the
// moderation phase.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/tts-publisher/internal/core"
	"github.com/book-expert/tts-publisher/internal/platform"
	"github.com/book-expert/tts-publisher/internal/session"
	"github.com/book-expert/tts-publisher/internal/synth"
)

// Display-name truncation for uploaded assets.
const (
	displayNameLimit    = 47
	displayNameEllipsis = "..."
)

// AssetPlatform is the slice of the platform client the pipeline drives.
type AssetPlatform interface {
	ResolveAuthenticatedUser(ctx context.Context) (int64, error)
	CreateAudioAsset(ctx context.Context, upload core.UploadRequest) (string, error)
	AwaitCompletion(ctx context.Context, operationID string) (core.OperationStatus, error)
	AwaitModeration(
		ctx context.Context,
		operationID string,
		initial core.OperationStatus,
	) (core.OperationStatus, error)
	GrantAssetPermissions(ctx context.Context, assetID, universeID int64) error
}

// Options carries the moderation and permission policy for every request.
type Options struct {
	UniverseID           int64
	GrantPermissions     bool
	BypassModerationWait bool
}

// Pipeline orchestrates one request at a time; instances are safe for
// concurrent use, all mutable state lives in the shared session.
type Pipeline struct {
	translator  core.Translator
	synthesizer core.Synthesizer
	archive     core.Archive
	assets      AssetPlatform
	session     *session.Session
	options     Options
	log         *logger.Logger
}

// New creates a Pipeline. The archive may be nil when archival is disabled.
func New(
	translator core.Translator,
	synthesizer core.Synthesizer,
	archive core.Archive,
	assets AssetPlatform,
	sess *session.Session,
	options Options,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		translator:  translator,
		synthesizer: synthesizer,
		archive:     archive,
		assets:      assets,
		session:     sess,
		options:     options,
		log:         log,
	}
}

// Process runs the full state machine for one inbound text and returns the
// terminal outcome. Failures are structured values, never panics; every
// outcome carries the operation and asset ids known at the point of failure.
func (p *Pipeline) Process(ctx context.Context, text, voice string) core.UploadOutcome {
	err := p.ensureAuthenticated(ctx)
	if err != nil {
		return failure("", 0, "", fmt.Errorf("failed to authenticate platform user: %w", err))
	}

	upload, err := p.prepareUpload(ctx, text, voice)
	if err != nil {
		return failure("", 0, "", err)
	}

	operationID, err := p.assets.CreateAudioAsset(ctx, upload)
	if err != nil {
		return failure("", 0, "", err)
	}

	p.log.Info("Upload initiated, operation %s", operationID)

	completed, err := p.assets.AwaitCompletion(ctx, operationID)
	if err != nil {
		return failure(operationID, 0, "", err)
	}

	grantDone := p.maybeGrantPermissions(ctx, completed.AssetID)
	outcome := p.resolveModeration(ctx, operationID, completed)

	grantDone.Wait()

	return outcome
}

// ensureAuthenticated lazily resolves the authenticated user id when startup
// could not.
func (p *Pipeline) ensureAuthenticated(ctx context.Context) error {
	_, ok := p.session.UserID()
	if ok {
		return nil
	}

	_, err := p.assets.ResolveAuthenticatedUser(ctx)
	if err != nil {
		return err
	}

	return nil
}

// prepareUpload translates the text, synthesizes and retrieves the audio,
// archives it, and assembles the immutable upload request.
func (p *Pipeline) prepareUpload(
	ctx context.Context,
	text, voice string,
) (core.UploadRequest, error) {
	translated, err := p.translator.Translate(ctx, text)
	if err != nil {
		return core.UploadRequest{}, fmt.Errorf("translation service error: %w", err)
	}

	p.log.Info("Translated %q to %q", text, translated)

	resource, err := p.synthesizer.Synthesize(ctx, translated, voice)
	if err != nil {
		return core.UploadRequest{}, fmt.Errorf("synthesis service error: %w", err)
	}

	clip, err := p.synthesizer.Fetch(ctx, resource)
	if err != nil {
		return core.UploadRequest{}, fmt.Errorf("failed to retrieve synthesized audio: %w", err)
	}

	filename := uuid.NewString() + synth.ExtensionFor(clip.ContentType)

	p.archiveClip(ctx, filename, clip)

	return core.UploadRequest{
		FileBytes:   clip.Data,
		Filename:    filename,
		ContentType: clip.ContentType,
		DisplayName: displayNameFor(text),
	}, nil
}

// archiveClip stores the clip locally before publishing. Archive failures
// are logged, never fatal to the request.
func (p *Pipeline) archiveClip(ctx context.Context, key string, clip core.AudioClip) {
	if p.archive == nil {
		return
	}

	err := p.archive.Put(ctx, key, clip)
	if err != nil {
		p.log.Warn("Failed to archive clip '%s': %v", key, err)

		return
	}

	p.log.Info("Archived clip '%s' (%d bytes)", key, len(clip.Data))
}

// maybeGrantPermissions starts the permission grant alongside moderation
// resolution. The grant runs as soon as an asset id exists, regardless of
// the asset's moderation state, and its failure never fails the upload.
func (p *Pipeline) maybeGrantPermissions(ctx context.Context, assetID int64) *sync.WaitGroup {
	var waitGroup sync.WaitGroup

	if !p.options.GrantPermissions || p.options.UniverseID == 0 || assetID == 0 {
		return &waitGroup
	}

	waitGroup.Add(1)

	go func() {
		defer waitGroup.Done()

		err := p.assets.GrantAssetPermissions(ctx, assetID, p.options.UniverseID)
		if err != nil {
			p.log.Warn(
				"Failed to grant asset %d to universe %d: %v",
				assetID,
				p.options.UniverseID,
				err,
			)
		}
	}()

	return &waitGroup
}

// resolveModeration interprets the completed operation's moderation state
// and, when necessary, drives the moderation polling phase to a decision.
func (p *Pipeline) resolveModeration(
	ctx context.Context,
	operationID string,
	completed core.OperationStatus,
) core.UploadOutcome {
	decision := platform.ResolveModeration(completed.Moderation, p.options.BypassModerationWait)
	if !decision.Wait {
		return outcomeFromDecision(operationID, completed.AssetID, decision)
	}

	p.log.Info(
		"Asset %d is '%s', polling for final moderation",
		completed.AssetID,
		completed.Moderation,
	)

	final, err := p.assets.AwaitModeration(ctx, operationID, completed)
	if err != nil {
		// Consistency violations surface without an asset id: neither
		// observed value can be trusted.
		return failure(operationID, 0, "", err)
	}

	decision = platform.FinalizeModeration(final.Moderation)

	return outcomeFromDecision(operationID, completed.AssetID, decision)
}

// outcomeFromDecision maps a moderation decision onto the terminal outcome.
func outcomeFromDecision(operationID string, assetID int64, decision platform.Decision) core.UploadOutcome {
	if decision.Success {
		return core.UploadOutcome{
			Success:     true,
			AssetID:     assetID,
			OperationID: operationID,
			Note:        decision.Note,
			Err:         nil,
		}
	}

	return failure(operationID, assetID, decision.Note, decision.Err)
}

func failure(operationID string, assetID int64, note string, err error) core.UploadOutcome {
	return core.UploadOutcome{
		Success:     false,
		AssetID:     assetID,
		OperationID: operationID,
		Note:        note,
		Err:         err,
	}
}

// displayNameFor truncates the original text into the asset display name.
// Truncation counts runes, not bytes, so multibyte text is never cut mid
// character.
func displayNameFor(text string) string {
	runes := []rune(text)
	if len(runes) > displayNameLimit {
		return string(runes[:displayNameLimit]) + displayNameEllipsis
	}

	return text
}
