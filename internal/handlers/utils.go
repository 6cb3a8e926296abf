package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/akolanti/docchat/internal/adapter"
	"github.com/akolanti/docchat/internal/adapter/utils"
	"github.com/akolanti/docchat/internal/chat"
	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/documents"
	"github.com/akolanti/docchat/internal/job"
	"github.com/akolanti/docchat/internal/domain/chatModel"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/rag/extract"
	"github.com/akolanti/docchat/internal/session"
	"github.com/akolanti/docchat/pkg/logger_i"
)

var logRH = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("RequestHandler") })

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH().Error("Error encoding response", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, traceID string, message string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(traceID, message, httpCode))
}

// writeServiceError maps a service error onto its status code. Another
// user's resource is reported as missing.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, extract.ErrUnsupportedType):
		code, message = http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, documents.ErrEmptyFile),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, session.ErrInvalidUser):
		code, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, docModel.ErrNotFound):
		code, message = http.StatusNotFound, "Document not found"
	case errors.Is(err, chatModel.ErrNotFound), errors.Is(err, chatModel.ErrForbidden):
		code, message = http.StatusNotFound, "Conversation not found"
	case errors.Is(err, job.ErrQueueFull):
		code, message = http.StatusServiceUnavailable, "Ingestion queue is full, retry later"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code, message = http.StatusServiceUnavailable, "Request cancelled"
	}
	if code >= http.StatusInternalServerError {
		logRH().WithTrace(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
	}
	WriteErrorResponse(w, code, config.TraceID(r.Context()), message)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorResponse(w, http.StatusBadRequest, config.TraceID(r.Context()), message)
}

// caller returns the authenticated user, or nil for an anonymous request.
func caller(r *http.Request) *int64 {
	if id, ok := config.UserID(r.Context()); ok {
		return &id
	}
	return nil
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(utils.GetChiURLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
