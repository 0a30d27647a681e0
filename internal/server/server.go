// Package server exposes the assistant over HTTP: workspace CRUD, the chat
// pipeline, preview control, and a WebSocket push channel for the UI.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/user/scriptforge/internal/conversation"
	"github.com/user/scriptforge/internal/executor"
	"github.com/user/scriptforge/internal/preview"
	"github.com/user/scriptforge/internal/protocol"
	"github.com/user/scriptforge/internal/session"
	"github.com/user/scriptforge/internal/types"
	"github.com/user/scriptforge/internal/workspace"
)

// Server wires the pipeline components behind an HTTP API.
type Server struct {
	store   types.WorkspaceStore
	session *session.State
	adapter *conversation.Adapter
	exec    *executor.Executor
	preview *preview.Manager
	hub     *Hub
	mux     *http.ServeMux

	// chatMu serializes chat passes: one user turn is fully decoded and
	// executed before the next begins.
	chatMu sync.Mutex
}

// NewServer creates the HTTP surface over the given components.
func NewServer(store types.WorkspaceStore, sess *session.State, adapter *conversation.Adapter, exec *executor.Executor, pv *preview.Manager, hub *Hub) *Server {
	s := &Server{
		store:   store,
		session: sess,
		adapter: adapter,
		exec:    exec,
		preview: pv,
		hub:     hub,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/files", s.handleListFiles)
	s.mux.HandleFunc("GET /api/files/", s.handleReadFile)
	s.mux.HandleFunc("PUT /api/files/", s.handleWriteFile)
	s.mux.HandleFunc("DELETE /api/files/", s.handleDeleteFile)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("GET /api/preview", s.handleGetPreview)
	s.mux.HandleFunc("POST /api/preview", s.handleStartPreview)
	s.mux.HandleFunc("DELETE /api/preview", s.handleStopPreview)
	if hub != nil {
		s.mux.HandleFunc("GET /ws", hub.HandleWS)
	}
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OnWorkspaceChange is the watcher callback: it pushes the refreshed
// listing to connected clients.
func (s *Server) OnWorkspaceChange(files []string) {
	if s.hub != nil {
		s.hub.Broadcast(EventFilesChanged, files)
	}
}

func (s *Server) broadcast(eventType string, payload any) {
	if s.hub != nil {
		s.hub.Broadcast(eventType, payload)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files := s.store.List()
	if files == nil {
		files = []string{}
	}
	writeJSON(w, map[string][]string{"files": files})
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/files/")
	content, err := s.store.Read(name)
	if err != nil {
		switch {
		case errors.Is(err, workspace.ErrNotFound):
			http.Error(w, `{"error":"file not found"}`, http.StatusNotFound)
		case errors.Is(err, workspace.ErrInvalidName):
			http.Error(w, `{"error":"invalid filename"}`, http.StatusBadRequest)
		default:
			slog.Error("read file failed", "filename", name, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, map[string]string{"filename": name, "content": content})
}

type writeFileRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/files/")

	var req writeFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	if err := s.store.Write(name, req.Content); err != nil {
		switch {
		case errors.Is(err, workspace.ErrInvalidName), errors.Is(err, workspace.ErrInvalidExtension):
			http.Error(w, `{"error":"invalid filename"}`, http.StatusBadRequest)
		default:
			slog.Error("write file failed", "filename", name, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		}
		return
	}

	s.session.RefreshEditor(name, req.Content)
	s.broadcast(EventFilesChanged, s.store.List())
	writeJSON(w, map[string]string{"filename": name, "status": "saved"})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/files/")

	if err := s.store.Delete(name); err != nil {
		switch {
		case errors.Is(err, workspace.ErrInvalidName):
			http.Error(w, `{"error":"invalid filename"}`, http.StatusBadRequest)
		default:
			slog.Error("delete file failed", "filename", name, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		}
		return
	}

	// Same coupling the executor enforces for model deletes.
	if s.preview != nil && s.preview.Filename() == name {
		s.preview.Stop()
		s.broadcast(EventPreview, nil)
	}
	s.session.ClearEditor(name)
	s.broadcast(EventFilesChanged, s.store.List())
	writeJSON(w, map[string]string{"filename": name, "status": "deleted"})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Entry types.Entry `json:"entry"`
	Files []string    `json:"files"`
}

// handleChat runs one full pipeline pass: append the user turn, ask the
// model, decode, execute, append the outcome turn. Passes are serialized so
// concurrent chat requests cannot interleave their file operations.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	s.session.SetThinking(true)
	s.broadcast(EventThinking, true)
	defer func() {
		s.session.SetThinking(false)
		s.broadcast(EventThinking, false)
	}()

	userEntry := s.session.AppendUser(req.Message)
	s.broadcast(EventEntryAppended, userEntry)

	reply := s.adapter.Ask(r.Context(), s.session.History(), s.store.List())

	var outcomes []types.CommandOutcome
	commands, err := protocol.Decode(reply)
	if err != nil {
		outcomes = s.exec.FailBatch(err)
	} else {
		outcomes = s.exec.Execute(commands)
	}

	entry := s.session.AppendOutcomes(outcomes)
	s.broadcast(EventEntryAppended, entry)
	s.broadcast(EventFilesChanged, s.store.List())

	files := s.store.List()
	if files == nil {
		files = []string{}
	}
	writeJSON(w, chatResponse{Entry: entry, Files: files})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.session.History()
	if history == nil {
		history = []types.Entry{}
	}
	writeJSON(w, map[string]any{
		"session_id": s.session.ID(),
		"entries":    history,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	if s.preview != nil {
		s.preview.Stop()
		s.broadcast(EventPreview, nil)
	}
	s.session.Reset()
	s.broadcast(EventEntryAppended, nil)
	writeJSON(w, map[string]string{"status": "reset"})
}

func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil || !s.preview.Alive() {
		writeJSON(w, map[string]any{"running": false})
		return
	}
	info, ok := s.preview.Snapshot()
	if !ok {
		writeJSON(w, map[string]any{"running": false})
		return
	}
	writeJSON(w, map[string]any{"running": true, "preview": info})
}

type startPreviewRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleStartPreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil {
		http.Error(w, `{"error":"preview not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var req startPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		http.Error(w, `{"error":"filename is required"}`, http.StatusBadRequest)
		return
	}

	info, err := s.preview.Start(req.Filename)
	if err != nil {
		switch {
		case errors.Is(err, preview.ErrInvalidTarget):
			http.Error(w, `{"error":"not a previewable file"}`, http.StatusBadRequest)
		case errors.Is(err, preview.ErrNoPortAvailable):
			http.Error(w, `{"error":"no available port"}`, http.StatusServiceUnavailable)
		default:
			slog.Error("preview start failed", "filename", req.Filename, "error", err)
			http.Error(w, `{"error":"preview failed to start"}`, http.StatusInternalServerError)
		}
		return
	}

	s.broadcast(EventPreview, info)
	writeJSON(w, map[string]any{"running": true, "preview": info})
}

func (s *Server) handleStopPreview(w http.ResponseWriter, r *http.Request) {
	if s.preview != nil {
		s.preview.Stop()
		s.broadcast(EventPreview, nil)
	}
	writeJSON(w, map[string]string{"status": "stopped"})
}
