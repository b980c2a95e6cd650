// Package archive_test tests the NATS audio archive implementation.
package archive_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-publisher/internal/archive"
	"github.com/book-expert/tts-publisher/internal/core"
)

// newArchiveContext starts an in-memory NATS server with JetStream enabled
// and returns a JetStream context connected to it.
func newArchiveContext(t *testing.T) nats.JetStreamContext {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()

	natsServer := test.RunServer(&opts)
	t.Cleanup(natsServer.Shutdown)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	return jetstreamContext
}

func TestNatsArchive_PutGet(t *testing.T) {
	t.Parallel()

	jetstreamContext := newArchiveContext(t)

	store, err := archive.New(jetstreamContext, "test-audio-archive")
	require.NoError(t, err)

	clip := core.AudioClip{
		Data:        []byte("fake-wav-data"),
		ContentType: "audio/wav",
	}

	err = store.Put(context.Background(), "clip-0001.wav", clip)
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), "clip-0001.wav")
	require.NoError(t, err)
	assert.Equal(t, clip.Data, stored.Data)
	assert.Equal(t, "audio/wav", stored.ContentType, "content type survives the roundtrip")
}

func TestNatsArchive_GetMissingClip(t *testing.T) {
	t.Parallel()

	jetstreamContext := newArchiveContext(t)

	store, err := archive.New(jetstreamContext, "test-audio-archive-missing")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "absent.wav")
	require.Error(t, err)
}

func TestNatsArchive_BindExistingBucket(t *testing.T) {
	t.Parallel()

	jetstreamContext := newArchiveContext(t)

	bucketName := "test-audio-archive-rebind"

	first, err := archive.New(jetstreamContext, bucketName)
	require.NoError(t, err)

	clip := core.AudioClip{
		Data:        []byte("data"),
		ContentType: "audio/ogg",
	}

	err = first.Put(context.Background(), "clip.ogg", clip)
	require.NoError(t, err)

	// A second archive over the same bucket binds instead of failing.
	second, err := archive.New(jetstreamContext, bucketName)
	require.NoError(t, err)

	stored, err := second.Get(context.Background(), "clip.ogg")
	require.NoError(t, err)
	assert.Equal(t, clip.Data, stored.Data)
	assert.Equal(t, "audio/ogg", stored.ContentType)
}
