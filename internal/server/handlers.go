package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/lectern-ai/page-reader/internal/config"
	"github.com/lectern-ai/page-reader/internal/credentials"
	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/observability"
)

// CredentialWriter stores provider credentials.
type CredentialWriter interface {
	Set(u credentials.Update) error
}

// DocumentParser extracts text from uploaded PDF bytes.
type DocumentParser interface {
	ParseDocument(ctx context.Context, pdfBytes []byte, useLLMParsing bool) (string, error)
}

// ExplanationStreamer streams an explanation of the extracted text.
type ExplanationStreamer interface {
	StreamExplanation(ctx context.Context, prompt, extractedText string, followUp bool) (<-chan domain.Fragment, error)
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	logger   *observability.Logger
	cfg      *config.Config
	creds    CredentialWriter
	resolver domain.ModelResolver
	parser   DocumentParser
	streamer ExplanationStreamer
	allowed  map[string]struct{}
}

// NewHandler creates the API handler set.
func NewHandler(logger *observability.Logger, cfg *config.Config, creds CredentialWriter,
	resolver domain.ModelResolver, parser DocumentParser, streamer ExplanationStreamer) *Handler {

	allowed := make(map[string]struct{}, len(cfg.LLM.AllowedProviders))
	for _, p := range cfg.LLM.AllowedProviders {
		allowed[p] = struct{}{}
	}

	return &Handler{
		logger:   logger,
		cfg:      cfg,
		creds:    creds,
		resolver: resolver,
		parser:   parser,
		streamer: streamer,
		allowed:  allowed,
	}
}

// addLLMKeysRequest is the request body for POST /add-llm-keys. Nil model
// fields leave stored values untouched; empty strings clear them.
type addLLMKeysRequest struct {
	Provider     string  `json:"provider"`
	APIKey       string  `json:"api_key"`
	ExpertModel  *string `json:"expert_model"`
	ParsingModel *string `json:"parsing_model"`
}

// AddLLMKeys handles POST /add-llm-keys.
func (h *Handler) AddLLMKeys(w http.ResponseWriter, r *http.Request) {
	var req addLLMKeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Provider == "" || req.APIKey == "" {
		h.writeDetail(w, http.StatusBadRequest, "provider and api_key are required")
		return
	}
	if _, ok := h.allowed[req.Provider]; !ok {
		h.writeDetail(w, http.StatusBadRequest, "provider must be one of: "+strings.Join(h.cfg.LLM.AllowedProviders, ", "))
		return
	}
	if req.ExpertModel == nil || *req.ExpertModel == "" {
		h.writeDetail(w, http.StatusBadRequest, "expert_model is required")
		return
	}

	if err := h.creds.Set(credentials.Update{
		Provider:     req.Provider,
		APIKey:       req.APIKey,
		ExpertModel:  req.ExpertModel,
		ParsingModel: req.ParsingModel,
	}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to store credentials")
		h.writeDetail(w, http.StatusBadRequest, "failed to store credentials")
		return
	}

	// Validate what was just stored by resolving the expert model once.
	if _, err := h.resolver.Resolve(r.Context(), domain.RoleExpert, h.cfg.LLM.MaxTokens); err != nil {
		h.logger.Error().Err(err).Str("provider", req.Provider).Msg("Credential validation failed")
		h.writeDetail(w, http.StatusBadRequest, sanitizeError(err))
		return
	}

	h.logger.Info().Str("provider", req.Provider).Msg("Stored LLM credentials")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExplainPage handles POST /explain-page. The response is a server-sent event
// stream of the model's explanation fragments.
func (h *Handler) ExplainPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := uuid.NewString()
	logger := h.logger.With().Str("request_id", requestID).Logger()

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxBytes)
	if err := r.ParseMultipartForm(h.cfg.Upload.MaxBytes); err != nil {
		h.writeDetail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("pdf_bytes")
	if err != nil {
		h.writeDetail(w, http.StatusBadRequest, "pdf_bytes file is required")
		return
	}
	defer file.Close()

	pdfData, err := io.ReadAll(file)
	if err != nil {
		h.writeDetail(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	prompt := r.FormValue("prompt")
	if prompt == "" {
		prompt = h.cfg.LLM.DefaultPrompt
	}
	parseWithLLM := formBool(r.FormValue("parse_with_llm"))
	followUp := formBool(r.FormValue("follow_up"))

	logger.Debug().
		Int("pdf_bytes", len(pdfData)).
		Bool("parse_with_llm", parseWithLLM).
		Bool("follow_up", followUp).
		Msg("Received page upload")

	extracted, err := h.parser.ParseDocument(ctx, pdfData, parseWithLLM)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse PDF page")
		h.writeDetail(w, http.StatusBadRequest, sanitizeError(err))
		return
	}
	logger.Debug().Int("extracted_chars", len(extracted)).Msg("Extracted page text")

	fragments, err := h.streamer.StreamExplanation(ctx, prompt, extracted, followUp)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start explanation stream")
		h.writeDetail(w, http.StatusBadRequest, sanitizeError(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeDetail(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusCreated)

	for fragment := range fragments {
		if fragment.Err != nil {
			logger.Error().Err(fragment.Err).Msg("Explanation stream failed mid-response")
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", sanitizeError(fragment.Err))
			flusher.Flush()
			continue
		}

		for _, line := range strings.Split(fragment.Text, "\n") {
			fmt.Fprintf(w, "data: %s\n", line)
		}
		fmt.Fprint(w, "\n")
		flusher.Flush()
	}

	fmt.Fprint(w, "event: done\ndata: [DONE]\n\n")
	flusher.Flush()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeDetail(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, map[string]string{"detail": detail})
}

// sanitizeError returns the message that may cross the transport boundary.
// Full detail stays in the logs; wrapped causes are stripped.
func sanitizeError(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

func formBool(value string) bool {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return b
}
