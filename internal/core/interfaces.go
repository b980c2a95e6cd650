// Package core defines the core business logic and interfaces for the tts-publisher.
package core

import "context"

// Translator defines the interface for the remote translation collaborator.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// AudioResource identifies a synthesized clip that can be retrieved from the
// synthesis service.
type AudioResource struct {
	URL string
}

// AudioClip holds the retrieved audio bytes together with the content type the
// synthesis service reported for them.
type AudioClip struct {
	Data        []byte
	ContentType string
}

// Synthesizer defines the interface for the remote speech-synthesis collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (AudioResource, error)
	Fetch(ctx context.Context, resource AudioResource) (AudioClip, error)
}

// Archive defines the interface for the local blob store that keeps a copy of
// every synthesized clip before it is published. Clips are retrievable under
// their upload filename with the content type they were stored with, so a
// rejected or timed-out publish can be replayed without re-synthesizing.
type Archive interface {
	Put(ctx context.Context, key string, clip AudioClip) error
	Get(ctx context.Context, key string) (AudioClip, error)
}
