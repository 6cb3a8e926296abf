package handlers

import (
	"errors"
	"net/http"

	"github.com/akolanti/docchat/internal/adapter"
	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/documents"
)

// UploadDocument godoc
// @Summary      Upload a document for ingestion
// @Description  Stores the file, creates the document in processing state and queues ingestion. Poll GET /documents/{id} for the outcome.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Text, HTML, PDF, DOC, DOCX, RTF or ODT file"
// @Success      201  {object}  api.Document       "Document created in processing state"
// @Failure      400  {object}  api.ErrorResponse  "Missing file or file too large"
// @Failure      415  {object}  api.ErrorResponse  "Unsupported file type"
// @Failure      500  {object}  api.ErrorResponse  "Storage error"
// @Failure      503  {object}  api.ErrorResponse  "Ingestion queue is full"
// @Router       /documents [post]
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeBadRequest(w, r, "File too large")
			return
		}
		writeBadRequest(w, r, "Expected a multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logRH().WithTrace(r.Context()).Warn("Couldn't remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, r, "file is required")
		return
	}
	defer file.Close()

	doc, err := h.documents.Upload(r.Context(), documents.UploadRequest{
		File:         file,
		Filename:     header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		UploadedBy:   caller(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusCreated, adapter.ToDocument(doc))
}

// ListDocuments godoc
// @Summary      List documents
// @Description  Returns the caller's documents. Anonymous callers see anonymous uploads.
// @Tags         Documents
// @Produce      json
// @Success      200  {object}  api.DocumentList
// @Router       /documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentList(h.documents.List(r.Context(), caller(r))))
}

// GetDocument godoc
// @Summary      Get a document
// @Description  Returns the document with its status. Failed ingestions carry metadata.error.
// @Tags         Documents
// @Produce      json
// @Param        id   path      int  true  "Document ID"
// @Success      200  {object}  api.Document
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, r, "invalid document id")
		return
	}
	doc, err := h.documents.Get(r.Context(), id, caller(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocument(doc))
}

// DeleteDocument godoc
// @Summary      Delete a document
// @Tags         Documents
// @Param        id   path      int  true  "Document ID"
// @Success      204
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /documents/{id} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, r, "invalid document id")
		return
	}
	if err := h.documents.Delete(r.Context(), id, caller(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
