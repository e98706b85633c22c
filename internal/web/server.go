// Package web is the browser front-end: it serves the widget page and
// exposes the upload and chat widgets as JSON endpoints.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"Retrievo/internal/api"
	"Retrievo/internal/chat"
	"Retrievo/internal/session"
	"Retrievo/internal/upload"
)

//go:embed static
var staticFiles embed.FS

// maxFormMemory bounds the multipart form kept in memory; larger parts spill to disk.
const maxFormMemory = 8 << 20

// maxRequestBody caps any request body so oversized uploads still reach
// validation without unbounded reads.
const maxRequestBody = 64 << 20

// AnswerChecker grades quiz answers.
type AnswerChecker interface {
	CheckAnswer(ctx context.Context, question, userAnswer, correctAnswer string) (api.AnswerFeedback, error)
}

// Server routes browser requests to the widgets.
type Server struct {
	base    context.Context
	page    fs.FS
	chat    *chat.Widget
	upload  *upload.Widget
	checker AnswerChecker
	hub     *Hub
	logger  *slog.Logger
}

// New creates a server. Widget calls outlive the request that started them
// and end only when ctx is done. checker may be nil, which disables quiz
// checking.
func New(ctx context.Context, chatWidget *chat.Widget, uploadWidget *upload.Widget, checker AnswerChecker, hub *Hub, logger *slog.Logger) (*Server, error) {
	if chatWidget == nil || uploadWidget == nil {
		return nil, errors.New("web: chat and upload widgets are required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	page, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("web: load page: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Server{
		base:    ctx,
		page:    page,
		chat:    chatWidget,
		upload:  uploadWidget,
		checker: checker,
		hub:     hub,
		logger:  logger,
	}, nil
}

// Router wires the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/*", http.FileServer(http.FS(s.page)))

	r.Route("/api", func(sub chi.Router) {
		sub.Get("/health", s.handleHealth)
		sub.Get("/status", s.handleStatus)
		sub.Get("/messages", s.handleMessages)
		sub.Get("/events", s.hub.ServeHTTP)
		sub.Post("/upload", s.handleUpload)
		sub.Post("/url", s.handleURL)
		sub.Post("/chat", s.handleChat)
		sub.Post("/quiz/check", s.handleCheck)
	})

	return r
}

type statusResponse struct {
	FileBusy    bool `json:"fileBusy"`
	URLBusy     bool `json:"urlBusy"`
	ChatPending bool `json:"chatPending"`
	Messages    int  `json:"messages"`
	Listeners   int  `json:"listeners"`
}

type uploadResult struct {
	Message string `json:"message"`
}

type chatResult struct {
	Messages []session.Message `json:"messages"`
	Error    string            `json:"error,omitempty"`
}

// detach returns a context that ignores the request going away but still
// ends with the server's base context.
func (s *Server) detach(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	stop := context.AfterFunc(s.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statusResponse{
		FileBusy:    s.upload.FileBusy(),
		URLBusy:     s.upload.URLBusy(),
		ChatPending: s.chat.Pending(),
		Messages:    len(s.chat.Messages()),
		Listeners:   s.hub.Clients(),
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, chatResult{Messages: s.chat.Messages()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var file upload.File
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, http.StatusRequestEntityTooLarge, (&upload.ValidationError{Reason: upload.ReasonTooLarge}).Message())
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			respondError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
		if part, header, err := r.FormFile("file"); err == nil {
			defer part.Close()
			file = upload.File{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        part,
			}
		}
	}

	ctx, cancel := s.detach(r)
	defer cancel()

	resp, err := s.upload.UploadFile(ctx, file)
	if err != nil {
		respondError(w, statusFor(err), userText(err, "Upload failed"))
		return
	}
	respondJSON(w, http.StatusOK, uploadResult{Message: orDefault(resp.Message, "File uploaded successfully")})
}

func (s *Server) handleURL(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := s.detach(r)
	defer cancel()

	resp, err := s.upload.ProcessURL(ctx, payload.URL)
	if err != nil {
		respondError(w, statusFor(err), userText(err, "Failed to process URL"))
		return
	}
	respondJSON(w, http.StatusOK, uploadResult{Message: orDefault(resp.Message, "URL processed successfully")})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := s.detach(r)
	defer cancel()

	if err := s.chat.Send(ctx, payload.Text); err != nil {
		respondJSON(w, statusFor(err), chatResult{
			Messages: s.chat.Messages(),
			Error:    userText(err, chat.ErrorText),
		})
		return
	}
	respondJSON(w, http.StatusOK, chatResult{Messages: s.chat.Messages()})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		respondError(w, http.StatusServiceUnavailable, "quiz checking unavailable")
		return
	}

	var payload struct {
		Question      string `json:"question"`
		UserAnswer    string `json:"user_answer"`
		CorrectAnswer string `json:"correct_answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.UserAnswer) == "" {
		respondError(w, http.StatusBadRequest, "user_answer is required")
		return
	}

	ctx, cancel := s.detach(r)
	defer cancel()

	fb, err := s.checker.CheckAnswer(ctx, payload.Question, payload.UserAnswer, payload.CorrectAnswer)
	if err != nil {
		s.logger.Error("answer check failed", "error", err)
		respondError(w, http.StatusBadGateway, "Failed to check answer")
		return
	}
	respondJSON(w, http.StatusOK, fb)
}

// statusFor maps widget errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *upload.ValidationError
	switch {
	case errors.As(err, &verr):
		if verr.Reason == upload.ReasonTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, upload.ErrBusy), errors.Is(err, chat.ErrPending):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func userText(err error, fallback string) string {
	var verr *upload.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message()
	case errors.Is(err, chat.ErrEmptyMessage):
		return "Enter a message"
	case errors.Is(err, upload.ErrBusy):
		return "Already in progress"
	case errors.Is(err, chat.ErrPending):
		return "Still waiting for the previous answer"
	default:
		return fallback
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
