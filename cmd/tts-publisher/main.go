// main package for the tts-publisher.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/tts-publisher/internal/archive"
	"github.com/book-expert/tts-publisher/internal/config"
	"github.com/book-expert/tts-publisher/internal/core"
	"github.com/book-expert/tts-publisher/internal/pipeline"
	"github.com/book-expert/tts-publisher/internal/platform"
	"github.com/book-expert/tts-publisher/internal/server"
	"github.com/book-expert/tts-publisher/internal/session"
	"github.com/book-expert/tts-publisher/internal/synth"
	"github.com/book-expert/tts-publisher/internal/translate"
)

const startupIdentityTimeout = 15 * time.Second

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "tts-publisher.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func loadSession(cfg *config.Config, log *logger.Logger) *session.Session {
	cookie, err := session.LoadCookieFile(cfg.Platform.CookieFile)
	if err != nil {
		log.Warn("Failed to load platform cookie: %v. Authenticated operations will fail.", err)

		return session.New("")
	}

	log.Info("Loaded platform cookie from %s", cfg.Platform.CookieFile)

	return session.New(cookie)
}

func setupArchive(cfg *config.Config, log *logger.Logger) (core.Archive, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}

	natsConnection, err := nats.Connect(cfg.Archive.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Archive.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := archive.New(jetstreamContext, cfg.Archive.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio archive: %w", err)
	}

	log.Info("Audio archive enabled, bucket '%s'", cfg.Archive.Bucket)

	return store, nil
}

func logPolicyWarnings(cfg *config.Config, log *logger.Logger) {
	if cfg.Platform.BypassModerationWait {
		log.Warn("Moderation wait bypass is enabled; 'Reviewing' assets are treated as published.")
	}

	if cfg.Platform.GrantAssetPermission {
		log.Info("Asset permissions will be granted to universe %d.", cfg.Platform.UniverseID)
	}
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	logPolicyWarnings(cfg, log)

	// 4. Wire the session and collaborators
	sess := loadSession(cfg, log)

	assets := platform.New(
		cfg.Platform.UsersURL,
		cfg.Platform.AssetsURL,
		cfg.Platform.DevelopURL,
		sess,
		time.Duration(cfg.Platform.TimeoutSeconds)*time.Second,
		log,
	)

	resolveStartupIdentity(assets, log)

	translator := translate.New(
		cfg.Translator.URL,
		cfg.Translator.TargetLanguage,
		time.Duration(cfg.Translator.TimeoutSeconds)*time.Second,
	)

	synthesizer := synth.New(
		cfg.Synthesizer.URL,
		cfg.Synthesizer.Speed,
		time.Duration(cfg.Synthesizer.TimeoutSeconds)*time.Second,
	)

	audioArchive, err := setupArchive(cfg, log)
	if err != nil {
		log.Error("Failed to set up audio archive: %v", err)

		return err
	}

	// 5. Assemble the pipeline and serve
	publishPipeline := pipeline.New(
		translator,
		synthesizer,
		audioArchive,
		assets,
		sess,
		pipeline.Options{
			UniverseID:           cfg.Platform.UniverseID,
			GrantPermissions:     cfg.Platform.GrantAssetPermission,
			BypassModerationWait: cfg.Platform.BypassModerationWait,
		},
		log,
	)

	httpServer := server.New(publishPipeline, audioArchive, cfg.Synthesizer.DefaultVoice, log)

	address := fmt.Sprintf(":%d", cfg.Server.Port)
	log.System("tts-publisher listening on %s", address)

	err = httpServer.Router().Run(address)
	if err != nil {
		return fmt.Errorf("http server exited: %w", err)
	}

	return nil
}

// resolveStartupIdentity caches the authenticated user id once at startup.
// Failure is not fatal; the pipeline retries lazily on the first request.
func resolveStartupIdentity(assets *platform.Client, log *logger.Logger) {
	if assets.Session().Cookie() == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupIdentityTimeout)
	defer cancel()

	_, err := assets.ResolveAuthenticatedUser(ctx)
	if err != nil {
		log.Warn("Could not resolve authenticated user at startup: %v", err)
	}
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
