// Package server exposes the inbound HTTP surface: the /tts endpoint that
// drives the publishing pipeline, and a health probe.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"

	"github.com/book-expert/tts-publisher/internal/core"
)

// Route paths and query parameters.
const (
	routeTTS    = "/tts"
	routeClip   = "/clips/:name"
	routeHealth = "/healthz"

	queryText  = "text"
	queryVoice = "voice"
	paramClip  = "name"
)

// contentTypeBinary is served for archived clips stored without a content type.
const contentTypeBinary = "application/octet-stream"

// assetURLFormat is the public library URL of a published asset.
const assetURLFormat = "https://www.roblox.com/library/%d"

// Processor runs one publish request to a terminal outcome.
type Processor interface {
	Process(ctx context.Context, text, voice string) core.UploadOutcome
}

// successResponse is the JSON body of a successful publish.
type successResponse struct {
	Message     string `json:"message"`
	AssetID     int64  `json:"assetId"`
	AssetURL    string `json:"assetUrl"`
	OperationID string `json:"operationId"`
	StatusNote  string `json:"statusNote"`
}

// errorResponse is the JSON body of any failure. The HTTP surface always
// answers JSON, never a bare failure.
type errorResponse struct {
	Error       string `json:"error"`
	AssetID     int64  `json:"assetId,omitempty"`
	OperationID string `json:"operationId,omitempty"`
	StatusNote  string `json:"statusNote,omitempty"`
}

// Server wires the pipeline behind the HTTP routes.
type Server struct {
	processor    Processor
	clips        core.Archive
	defaultVoice string
	log          *logger.Logger
}

// New creates a Server serving the given processor. clips may be nil when
// the audio archive is disabled; the clip route then answers 404.
func New(processor Processor, clips core.Archive, defaultVoice string, log *logger.Logger) *Server {
	return &Server{
		processor:    processor,
		clips:        clips,
		defaultVoice: defaultVoice,
		log:          log,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET(routeTTS, s.handleTTS)
	router.POST(routeTTS, s.handleTTS)
	router.GET(routeClip, s.handleClip)
	router.GET(routeHealth, s.handleHealth)

	return router
}

// handleTTS accepts a text parameter and an optional voice selector, runs
// the pipeline and renders the terminal outcome.
func (s *Server) handleTTS(ginCtx *gin.Context) {
	text := ginCtx.Query(queryText)
	if text == "" {
		ginCtx.JSON(http.StatusBadRequest, errorResponse{
			Error:       "no text provided",
			AssetID:     0,
			OperationID: "",
			StatusNote:  "",
		})

		return
	}

	voice := ginCtx.Query(queryVoice)
	if voice == "" {
		voice = s.defaultVoice
	}

	// Once an orchestration begins it runs to a terminal state; there is no
	// cancellation beyond the phase-specific attempt caps.
	outcome := s.processor.Process(context.Background(), text, voice)

	if outcome.Success {
		ginCtx.JSON(http.StatusOK, successResponse{
			Message:     "Successfully published asset.",
			AssetID:     outcome.AssetID,
			AssetURL:    fmt.Sprintf(assetURLFormat, outcome.AssetID),
			OperationID: outcome.OperationID,
			StatusNote:  outcome.Note,
		})

		return
	}

	message := "failed to publish asset"
	if outcome.Err != nil {
		message = outcome.Err.Error()
	}

	s.log.Error("Publish failed for text %q: %s", text, message)

	ginCtx.JSON(http.StatusInternalServerError, errorResponse{
		Error:       message,
		AssetID:     outcome.AssetID,
		OperationID: outcome.OperationID,
		StatusNote:  outcome.Note,
	})
}

// handleClip serves an archived clip under its upload filename, with the
// content type it was synthesized as. Archived audio outlives the publish
// attempt, so a rejected or timed-out asset can still be retrieved.
func (s *Server) handleClip(ginCtx *gin.Context) {
	name := ginCtx.Param(paramClip)

	if s.clips == nil {
		ginCtx.JSON(http.StatusNotFound, errorResponse{
			Error:       "audio archive is disabled",
			AssetID:     0,
			OperationID: "",
			StatusNote:  "",
		})

		return
	}

	clip, err := s.clips.Get(ginCtx.Request.Context(), name)
	if err != nil {
		s.log.Warn("Archived clip '%s' not retrievable: %v", name, err)

		ginCtx.JSON(http.StatusNotFound, errorResponse{
			Error:       fmt.Sprintf("clip '%s' not found", name),
			AssetID:     0,
			OperationID: "",
			StatusNote:  "",
		})

		return
	}

	contentType := clip.ContentType
	if contentType == "" {
		contentType = contentTypeBinary
	}

	ginCtx.Data(http.StatusOK, contentType, clip.Data)
}

func (s *Server) handleHealth(ginCtx *gin.Context) {
	ginCtx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger logs one line per request through the service logger.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(ginCtx *gin.Context) {
		start := time.Now()

		ginCtx.Next()

		s.log.Info(
			"%s %s -> %d (%s)",
			ginCtx.Request.Method,
			ginCtx.Request.URL.Path,
			ginCtx.Writer.Status(),
			time.Since(start),
		)
	}
}
