package api

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const (
	WelcomeMessage = "Welcome to the LoanAssist API! Go to /docs to interact."

	defaultRequestTimeout = 60 * time.Second
	maxBodyBytes          = 1 << 20
)

//go:embed openapi.yaml
var openAPISpec []byte

// Answerer is the part of the pipeline the handler needs.
type Answerer interface {
	Answer(ctx context.Context, q string) (string, error)
}

type ChatRequest struct {
	Query string `json:"query"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type WelcomeResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Options configures NewHandler
type Options struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
	Logger         zerolog.Logger
}

type server struct {
	svc     Answerer
	timeout time.Duration
}

// NewHandler returns the HTTP surface over svc. The caller builds svc first,
// so the handler never serves against a half-built index.
func NewHandler(svc Answerer, opts Options) http.Handler {
	s := &server{svc: svc, timeout: opts.RequestTimeout}
	if s.timeout <= 0 {
		s.timeout = defaultRequestTimeout
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.welcome)
	mux.HandleFunc("POST /chat", s.chat)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /docs", s.docs)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return hlog.NewHandler(opts.Logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			hlog.FromRequest(r).Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(
			hlog.RequestIDHandler("req_id", "X-Request-Id")(c.Handler(mux)),
		),
	)
}

func (s *server) welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, WelcomeResponse{Message: WelcomeMessage})
}

func (s *server) docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(openAPISpec); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to write openapi document")
	}
}

func (s *server) chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, status, detail := parseChat(w, r)
	if status != 0 {
		writeJSON(w, r, status, ErrorResponse{Detail: detail})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	answer, err := s.svc.Answer(ctx, q)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("path", "/chat").Dur("dur", time.Since(start)).Msg("failed to answer")
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Detail: "failed to generate response"})
		return
	}

	writeJSON(w, r, http.StatusOK, ChatResponse{Response: answer})
	hlog.FromRequest(r).Info().Str("path", "/chat").Int("query_len", len(q)).Dur("dur", time.Since(start)).Msg("served")
}

// parseChat validates the request body. A non-zero status means the request
// was rejected before any embedding or generation call.
func parseChat(w http.ResponseWriter, r *http.Request) (string, int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	var body map[string]json.RawMessage
	if err := dec.Decode(&body); err != nil {
		status, detail := decodeStatus(err)
		return "", status, detail
	}
	if body == nil {
		return "", http.StatusBadRequest, "request body must be a JSON object"
	}
	// exactly one JSON value
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		if status, detail := decodeStatus(err); status == http.StatusRequestEntityTooLarge {
			return "", status, detail
		}
		return "", http.StatusBadRequest, "request body must be a single JSON object"
	}

	raw, ok := body["query"]
	if !ok {
		return "", http.StatusUnprocessableEntity, "field required: query"
	}
	var q string
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) || json.Unmarshal(raw, &q) != nil {
		return "", http.StatusUnprocessableEntity, "query must be a string"
	}
	if strings.TrimSpace(q) == "" {
		return "", http.StatusUnprocessableEntity, "query must not be empty"
	}
	return q, 0, ""
}

func decodeStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}
	return http.StatusBadRequest, "request body must be a JSON object"
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}
