package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jonwraymond/toolify/adapter"
	"github.com/jonwraymond/toolify/auth"
	"github.com/jonwraymond/toolify/gemini"
	"github.com/jonwraymond/toolify/observe"
	"github.com/jonwraymond/toolify/resilience"
	"github.com/jonwraymond/toolify/session"
)

// multipartOverhead is allowed on top of provider.max_upload_bytes for
// multipart boundaries and headers.
const multipartOverhead = 64 << 10

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

var (
	errBadRequest = errors.New("invalid request body")
	errTooLarge   = errors.New("upload exceeds the size limit")
	errNoTool     = errors.New("no tool recognized in the image")
)

func (s *Server) mountAPI(r chi.Router) {
	r.Post("/chat", s.handleChat)
	r.Post("/recognize-tool", s.handleRecognize)
	r.Post("/transcribe", s.handleTranscribe)
	r.Post("/generate-manual", s.handleManual)
	r.Post("/generate-safety-guide", s.handleSafetyGuide)
	r.Post("/generate-quick-summary", s.handleSummary)
}

func requireAuth(authn *auth.JWTAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authn.Authenticate(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	reply, err := s.app.Chat.Send(r.Context(), sessionKey(r, req.SessionID), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Content:   reply.Text,
		Language:  reply.Language,
		SessionID: req.SessionID,
		Timestamp: time.Now().UTC(),
	})
}

// sessionKey scopes a session ID to the authenticated caller, so two users
// picking the same ID never share history.
func sessionKey(r *http.Request, id string) string {
	if who := auth.IdentityFromContext(r.Context()); who != nil {
		return who.Subject + "/" + id
	}
	return id
}

type recognizeResponse struct {
	ToolNames []string  `json:"tool_names"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	data, mimeType, _, err := s.readFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	names, err := s.app.Vision.Identify(r.Context(), data, mimeType)
	if err == nil && len(names) == 0 {
		err = errNoTool
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recognizeResponse{ToolNames: names, Timestamp: time.Now().UTC()})
}

type transcribeResponse struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	data, mimeType, filename, err := s.readFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if mimeType == "" {
		mimeType = filename
	}
	text, err := s.app.Transcriber.Transcribe(r.Context(), data, mimeType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Text: text, Timestamp: time.Now().UTC()})
}

type manualResponse struct {
	ToolName    string    `json:"tool_name"`
	Manual      string    `json:"manual,omitempty"`
	SafetyGuide string    `json:"safety_guide,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// handleManual writes the full manual, then a summary of the same research.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	var req adapter.ManualRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	manual, err := s.app.Manual.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.app.Manual.Summary(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, manualResponse{
		ToolName:  req.ToolName,
		Manual:    manual,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleSafetyGuide(w http.ResponseWriter, r *http.Request) {
	var req adapter.ManualRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	guide, err := s.app.Manual.SafetyGuide(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, manualResponse{ToolName: req.ToolName, SafetyGuide: guide, Timestamp: time.Now().UTC()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req adapter.ManualRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.app.Manual.Summary(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, manualResponse{ToolName: req.ToolName, Summary: summary, Timestamp: time.Now().UTC()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errTooLarge
		}
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// readFile reads the multipart "file" field and returns its content, media
// type and file name. The media type comes from the part header, then the
// file extension; it is empty when neither says.
func (s *Server) readFile(w http.ResponseWriter, r *http.Request) (data []byte, mimeType, filename string, err error) {
	limit := s.app.Config.Provider.MaxUploadBytes
	if r.ContentLength > limit+multipartOverhead {
		return nil, "", "", errTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	f, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", "", errTooLarge
		}
		return nil, "", "", fmt.Errorf("%w: %w", errBadRequest, err)
	}
	defer f.Close() // nolint:errcheck // read-only

	if header.Size > limit {
		return nil, "", "", errTooLarge
	}
	data, err = io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, "", "", err
	}
	if int64(len(data)) > limit {
		return nil, "", "", errTooLarge
	}

	mimeType = header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	return data, mimeType, header.Filename, nil
}

type errorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// writeError maps adapter and pool errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}
	var code int
	var provider *gemini.ProviderError

	if wait, ok := resilience.RetryAfter(err); ok {
		code = http.StatusTooManyRequests
		resp.RetryAfter = int(math.Ceil(wait.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
	} else {
		switch {
		case errors.Is(err, resilience.ErrRetriesExhausted):
			code = http.StatusServiceUnavailable
		case errors.Is(err, errTooLarge):
			code = http.StatusRequestEntityTooLarge
		case errors.Is(err, errNoTool):
			code = http.StatusNotFound
		case errors.Is(err, errBadRequest),
			errors.Is(err, adapter.ErrEmptyInput),
			errors.Is(err, adapter.ErrUnsupportedMIME),
			errors.Is(err, session.ErrInvalidID),
			errors.Is(err, session.ErrIDTooLong):
			code = http.StatusBadRequest
		case errors.As(err, &provider), errors.Is(err, gemini.ErrEmptyResponse):
			code = http.StatusBadGateway
		default:
			code = http.StatusInternalServerError
		}
	}

	if code >= http.StatusInternalServerError || code == http.StatusTooManyRequests {
		s.app.Logger().Warn(r.Context(), "api request failed",
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "status", Value: code},
			observe.Field{Key: "error", Value: err.Error()},
			observe.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())},
		)
	}
	writeJSON(w, code, resp)
}
