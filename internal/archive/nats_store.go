// Package archive provides a NATS JetStream object-store archive for
// synthesized audio. Every clip is stored under its upload filename before
// being published, together with its content type, and can be retrieved
// later to replay a rejected or timed-out publish.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/tts-publisher/internal/core"
)

// headerContentType carries the clip's content type as object metadata, so a
// retrieved clip can be served with the type it was synthesized as.
const headerContentType = "Content-Type"

// NatsArchive implements the core.Archive interface using NATS JetStream.
type NatsArchive struct {
	bucket string
	store  nats.ObjectStore
}

// New creates a NatsArchive over the named bucket, creating the bucket when
// it does not exist yet and binding to it when it does.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsArchive, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Synthesized audio archive for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create archive bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing archive bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsArchive{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Put saves a synthesized clip to the archive under its upload filename,
// recording the content type in the object headers.
func (n *NatsArchive) Put(_ context.Context, key string, clip core.AudioClip) error {
	meta := &nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers: nats.Header{
			headerContentType: []string{clip.ContentType},
		},
		Metadata: nil,
		Opts:     nil,
	}

	_, err := n.store.Put(meta, bytes.NewReader(clip.Data))
	if err != nil {
		return fmt.Errorf("failed to put clip '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// Get retrieves an archived clip together with its stored content type.
func (n *NatsArchive) Get(_ context.Context, key string) (core.AudioClip, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf(
			"failed to get clip '%s' from bucket '%s': %w",
			key,
			n.bucket,
			err,
		)
	}

	contentType := ""

	info, infoErr := obj.Info()
	if infoErr == nil && info.Headers != nil {
		contentType = info.Headers.Get(headerContentType)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return core.AudioClip{}, fmt.Errorf("failed to read clip '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return core.AudioClip{}, fmt.Errorf("failed to close clip '%s': %w", key, closeErr)
	}

	return core.AudioClip{
		Data:        data,
		ContentType: contentType,
	}, nil
}
