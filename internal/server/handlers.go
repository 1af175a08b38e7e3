package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/pdfbuddy/internal/api"
	"github.com/hyperjump/pdfbuddy/internal/chat"
	"github.com/hyperjump/pdfbuddy/internal/cli"
	"github.com/hyperjump/pdfbuddy/internal/config"
	"github.com/hyperjump/pdfbuddy/internal/inspect"
	"github.com/hyperjump/pdfbuddy/internal/models"
	"github.com/hyperjump/pdfbuddy/internal/tracker"
	"go.uber.org/zap"
)

const maxUploadBytes = 64 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	docs := s.files.Documents()
	indexed := 0
	for _, d := range docs {
		if d.Status == models.StatusIndexed {
			indexed++
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"files":   docs,
		"indexed": indexed,
		"busy":    s.files.Busy(),
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.files.Document(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Early out before reading the body; Start makes the final call.
	if s.files.Busy() {
		s.respondError(w, http.StatusConflict, tracker.ErrBusy.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	pageRange, err := parsePageRange(r.FormValue("start_page"), r.FormValue("end_page"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var upload *models.Upload
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		upload = nil
	case err != nil:
		s.respondError(w, http.StatusBadRequest, "invalid file part")
		return
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "failed to read file")
			return
		}
		upload = inspect.FromBytes(header.Filename, data, pageRange)
		// The type the picker declared wins over sniffing, as a browser upload would.
		if declared := header.Header.Get("Content-Type"); declared != "" && declared != "application/octet-stream" {
			upload.ContentType = declared
		}
	}

	s.logger.Debug("upload request", zap.Bool("has_file", upload != nil))
	// The upload outlives this request.
	sub, err := s.files.Start(context.Background(), upload)
	if err != nil {
		var ve *tracker.ValidationError
		switch {
		case errors.As(err, &ve):
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Title, "detail": ve.Detail})
		case errors.Is(err, tracker.ErrBusy):
			s.respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, tracker.ErrClosed):
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusAccepted, sub.Document())
}

func parsePageRange(start, end string) (*models.PageRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errors.New("start_page and end_page must be given together")
	}
	s, err := strconv.Atoi(start)
	if err != nil {
		return nil, errors.New("start_page must be a number")
	}
	e, err := strconv.Atoi(end)
	if err != nil {
		return nil, errors.New("end_page must be a number")
	}
	return &models.PageRange{Start: s, End: e}, nil
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.files.Document(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if doc.Status != models.StatusIndexed || doc.RemoteID == "" {
		s.respondError(w, http.StatusConflict, "document is not indexed")
		return
	}
	body, contentType, err := s.previews.FetchPreview(r.Context(), doc.RemoteID)
	if err != nil {
		if api.IsNotFound(err) {
			s.respondError(w, http.StatusNotFound, "preview not available")
			return
		}
		s.logger.Warn("preview failed", zap.String("id", doc.ID), zap.Error(err))
		s.respondError(w, http.StatusBadGateway, api.Detail(err, "preview failed"))
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = inspect.PDFContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline; filename="+strconv.Quote(doc.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Debug("preview stream interrupted", zap.Error(err))
	}
}

type turnView struct {
	models.ChatTurn
	References []models.Reference `json:"references,omitempty"`
}

func (s *Server) chatState() map[string]interface{} {
	turns := s.chat.Turns()
	visible := s.chat.ReferencesVisible()
	views := make([]turnView, len(turns))
	for i, t := range turns {
		views[i] = turnView{ChatTurn: t}
		if visible && t.Role == models.RoleAssistant {
			views[i].References = s.chat.ReferencesFor(t.ID)
		}
	}
	return map[string]interface{}{
		"turns":              views,
		"references_visible": visible,
		"pending":            s.chat.Pending(),
	}
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.chatState())
}

type sendRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("chat request", zap.Int("length", len(req.Text)))
	ex, err := s.chat.Send(context.WithoutCancel(r.Context()), req.Text)
	if err != nil {
		var ve *chat.ValidationError
		status := http.StatusBadRequest
		if errors.Is(err, chat.ErrPending) {
			status = http.StatusConflict
		}
		if errors.As(err, &ve) {
			s.respondJSON(w, status, map[string]string{"error": ve.Title, "detail": ve.Detail})
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"user":       ex.User,
		"reply":      ex.Reply,
		"references": ex.References,
	}
	if ex.Err != nil {
		resp["error"] = api.Detail(ex.Err, "Failed to generate response")
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleShowReferences(w http.ResponseWriter, r *http.Request) {
	s.chat.ShowReferences()
	s.respondJSON(w, http.StatusOK, s.chatState())
}

func (s *Server) handleHideReferences(w http.ResponseWriter, r *http.Request) {
	s.chat.HideReferences()
	s.respondJSON(w, http.StatusOK, s.chatState())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": s.notes.All()})
}

func (s *Server) handleDisclaimer(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, cli.Disclaimer)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatch()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatch()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatch() {
	if s.configPath == "" || s.fullConfig == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	dirs := s.watch.Directories()
	s.fullConfig.Watch.Directories = dirs
	if err := config.SaveWatchDirectories(s.configPath, dirs); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
