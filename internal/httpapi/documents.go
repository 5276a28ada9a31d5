// Package httpapi exposes the document ingestion and health endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/shinhan-ai/kb-chatbot/internal/indexer"
	"github.com/shinhan-ai/kb-chatbot/internal/upstream"
	"github.com/shinhan-ai/kb-chatbot/internal/vectorstore"
)

// IndexRequest is the document ingestion payload. Content is extracted
// text; file-format parsing happens upstream of this API.
type IndexRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// IndexResponse reports a successful ingestion.
type IndexResponse struct {
	Message    string `json:"message"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunkCount"`
}

// CountResponse carries the stored chunk count.
type CountResponse struct {
	Count uint64 `json:"count"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// DocumentsHandler serves POST / (index a document) and GET /count.
type DocumentsHandler struct {
	pipeline *indexer.Pipeline
	store    vectorstore.Store
	logger   zerolog.Logger
}

// NewDocumentsHandler creates the documents API handler.
func NewDocumentsHandler(pipeline *indexer.Pipeline, store vectorstore.Store, logger zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		pipeline: pipeline,
		store:    store,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}
}

// Register mounts the document routes on mux.
func (h *DocumentsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.index)
	mux.HandleFunc("GET /api/v1/documents/count", h.count)
}

func (h *DocumentsHandler) index(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "filename is required"})
		return
	}

	result, err := h.pipeline.IndexDocument(r.Context(), req.Filename, req.Content)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", req.Filename).Msg("indexing failed")
		status := http.StatusBadGateway
		if errors.Is(err, upstream.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{
			Error:  "failed to index document",
			Detail: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, IndexResponse{
		Message:    "Document indexed successfully",
		Filename:   result.Filename,
		ChunkCount: result.ChunkCount,
	})
}

func (h *DocumentsHandler) count(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CountResponse{Count: h.store.Count(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
