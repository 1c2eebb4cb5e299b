package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
)

// ownedDocument loads a document and verifies it belongs to the caller.
func (s *Server) ownedDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.app.DocumentService.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != common.ResolveUserID(ctx) {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, documentID)
	}
	return doc, nil
}

// handleDocuments handles /api/documents (GET list, POST multipart upload).
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := models.ParsingStatus(r.URL.Query().Get("status"))
		docs, err := s.app.DocumentService.ListByUser(r.Context(), common.ResolveUserID(r.Context()), status)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, docs)

	case http.MethodPost:
		s.handleDocumentUpload(w, r)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleDocumentUpload reads a multipart form with fields file, account_id
// and type, and stores the PDF in PENDING state.
func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	maxBytes := s.app.Config.Server.MaxPDFBytes

	// Multipart overhead on top of the PDF itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "Upload too large or malformed multipart form")
		return
	}

	accountID := r.FormValue("account_id")
	docType := models.DocumentType(strings.ToUpper(strings.TrimSpace(r.FormValue("type"))))
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id form field is required")
		return
	}
	if _, err := s.ownedAccount(ctx, accountID); err != nil {
		WriteServiceError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "file form field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	doc, err := s.app.DocumentService.Upload(ctx, common.ResolveUserID(ctx), accountID, docType, header.Filename, data)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, doc)
}

// routeDocuments dispatches /api/documents/{id} and its actions.
func (s *Server) routeDocuments(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	documentID, action, _ := strings.Cut(rest, "/")
	if documentID == "" {
		WriteError(w, http.StatusBadRequest, "Document id is required in path")
		return
	}

	ctx := r.Context()
	if _, err := s.ownedDocument(ctx, documentID); err != nil {
		WriteServiceError(w, err)
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			doc, err := s.app.DocumentService.Get(ctx, documentID)
			if err != nil {
				WriteServiceError(w, err)
				return
			}
			WriteJSON(w, http.StatusOK, doc)
		case http.MethodDelete:
			if err := s.app.DocumentService.Delete(ctx, documentID); err != nil {
				WriteServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			RequireMethod(w, r, http.MethodGet, http.MethodDelete)
		}

	case "parse":
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}
		doc, err := s.app.DocumentService.Parse(ctx, documentID)
		if err != nil {
			// The document carries the failure detail; return both.
			WriteJSON(w, statusFor(err), map[string]any{
				"error":    err.Error(),
				"document": doc,
			})
			return
		}
		WriteJSON(w, http.StatusOK, doc)

	case "commit":
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}
		result, err := s.app.DocumentService.Commit(ctx, documentID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)

	default:
		WriteError(w, http.StatusNotFound, "Unknown document action")
	}
}
