package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"naskahlokal/internal/document/catalog"
	"naskahlokal/internal/document/gateway"
	"naskahlokal/internal/document/model"
	"naskahlokal/internal/document/repository"
	"naskahlokal/internal/document/service"
	"naskahlokal/pkg/logger"
)

// maxImportSize bounds uploaded JSON files and banner payloads.
const maxImportSize = 32 << 20

type DocumentHandler struct {
	Service *service.SessionService
	Catalog *catalog.Catalog
}

func NewDocumentHandler(service *service.SessionService, cat *catalog.Catalog) *DocumentHandler {
	return &DocumentHandler{Service: service, Catalog: cat}
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docs, err := h.Catalog.Listing(r.Context())
	if err != nil {
		logger.Sugar.Errorf("Error fetching documents: %v", err)
		http.Error(w, "Could not load documents", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, docs)
}

func (h *DocumentHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, ok := h.Service.Current()
	if !ok {
		http.Error(w, service.ErrNoDocument.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.NewDocRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxImportSize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.Service.NewDocument(r.Context(), req.Meta, req.Banner)
	if err != nil {
		h.fail(w, "create document", err)
		return
	}
	writeJSON(w, rec)
}

func (h *DocumentHandler) OpenDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slug := r.URL.Query().Get("slug")
	if slug == "" {
		http.Error(w, "Missing slug parameter", http.StatusBadRequest)
		return
	}

	rec, err := h.Service.OpenSlug(r.Context(), slug)
	if err != nil {
		h.failLoad(w, "open document "+slug, err)
		return
	}
	writeJSON(w, rec)
}

func (h *DocumentHandler) LoadRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, err := h.Service.LoadMostRecent(r.Context())
	if err != nil {
		h.failLoad(w, "load most recent document", err)
		return
	}
	writeJSON(w, rec)
}

func (h *DocumentHandler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, err := h.Service.Save(r.Context())
	if err != nil {
		h.fail(w, "save document", err)
		return
	}
	writeJSON(w, model.SaveDocResponse{Slug: rec.Slug, DateModified: rec.DateModified})
}

func (h *DocumentHandler) CloseDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.Service.Close(r.Context()); err != nil {
		h.fail(w, "close document", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document closed"))
}

func (h *DocumentHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.InfoRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxImportSize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.Service.EditInfo(r.Context(), req)
	if err != nil {
		h.fail(w, "update document info", err)
		return
	}
	writeJSON(w, rec)
}

func (h *DocumentHandler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	f, err := h.Service.Export(r.Context())
	if err != nil {
		h.fail(w, "export document", err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.Write(f.Data)
}

func (h *DocumentHandler) ImportDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.Service.Import(r.Context(), data)
	if err != nil {
		h.fail(w, "import document", err)
		return
	}
	writeJSON(w, rec)
}

// failLoad reports storage failures while loading a document the same way a
// failed listing is reported. The open session is left as it was.
func (h *DocumentHandler) failLoad(w http.ResponseWriter, what string, err error) {
	if repository.IsStoreError(err) {
		logger.Sugar.Errorf("Handler: Failed to %s: %v", what, err)
		http.Error(w, "Could not load documents", http.StatusServiceUnavailable)
		return
	}
	h.fail(w, what, err)
}

// fail maps session errors to status codes.
func (h *DocumentHandler) fail(w http.ResponseWriter, what string, err error) {
	var fe *gateway.FormatError
	switch {
	case errors.As(err, &fe):
		http.Error(w, "Invalid file: "+fe.Reason, http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidSlug):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrNoDocuments):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrNoDocument), errors.Is(err, service.ErrSlugTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case repository.IsStoreError(err):
		logger.Sugar.Errorf("Handler: Failed to %s: %v", what, err)
		http.Error(w, "Failed to "+what+": storage unavailable", http.StatusInternalServerError)
	default:
		logger.Sugar.Errorf("Handler: Failed to %s: %v", what, err)
		http.Error(w, "Failed to "+what+": "+err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Failed to encode response: %v", err)
	}
}
