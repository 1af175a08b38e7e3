// Package server provides the local JSON view over the document tracker and the chat controller.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/pdfbuddy/internal/chat"
	"github.com/hyperjump/pdfbuddy/internal/config"
	"github.com/hyperjump/pdfbuddy/internal/models"
	"github.com/hyperjump/pdfbuddy/internal/notify"
	"github.com/hyperjump/pdfbuddy/internal/tracker"
	"go.uber.org/zap"
)

// Files is the document tracker as the server uses it.
type Files interface {
	Documents() []models.Document
	Document(id string) (models.Document, bool)
	Busy() bool
	Start(ctx context.Context, upload *models.Upload) (*tracker.Submission, error)
}

// Chat is the chat controller as the server uses it.
type Chat interface {
	Send(ctx context.Context, text string) (*chat.Exchange, error)
	Turns() []models.ChatTurn
	ReferencesFor(turnID string) []models.Reference
	ShowReferences()
	HideReferences()
	ReferencesVisible() bool
	Pending() bool
}

// Previewer streams an indexed document from the backend.
type Previewer interface {
	FetchPreview(ctx context.Context, remoteID string) (io.ReadCloser, string, error)
}

// WatchService manages watched directories (e.g. *watcher.Watcher).
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Option configures a Server.
type Option func(*Server)

// WithWatch enables the watch directory endpoints. When configPath is set, directory changes are
// saved to it.
func WithWatch(watch WatchService, configPath string, cfg *config.Config) Option {
	return func(s *Server) {
		s.watch = watch
		s.configPath = configPath
		s.fullConfig = cfg
	}
}

// Server is the HTTP server for the local view.
type Server struct {
	files    Files
	chat     Chat
	previews Previewer
	notes    *notify.Recorder
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server

	watch      WatchService
	configPath string
	fullConfig *config.Config
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies. notes may be nil.
func NewServer(files Files, chatCtl Chat, previews Previewer, notes *notify.Recorder, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if notes == nil {
		notes = notify.NewRecorder(0)
	}
	s := &Server{
		files:    files,
		chat:     chatCtl,
		previews: previews,
		notes:    notes,
		config:   cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Uploads and chat sends wait on the backend with no client-side timeout.
	r.Post("/api/v1/files", s.handleUpload)
	r.Post("/api/v1/chat", s.handleSend)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/health", s.handleHealth)
		r.Get("/api/v1/files", s.handleListFiles)
		r.Get("/api/v1/files/{id}", s.handleGetFile)
		r.Get("/api/v1/files/{id}/preview", s.handlePreview)
		r.Get("/api/v1/chat", s.handleGetChat)
		r.Post("/api/v1/chat/references/show", s.handleShowReferences)
		r.Post("/api/v1/chat/references/hide", s.handleHideReferences)
		r.Get("/api/v1/notifications", s.handleNotifications)
		r.Get("/api/v1/disclaimer", s.handleDisclaimer)
		r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
