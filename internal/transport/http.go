package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"codebase-context-server/internal/errors"
	"codebase-context-server/internal/models"
	"codebase-context-server/internal/service"
)

const (
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = 60 * time.Second
	maxRequestSizeMB    = 50
)

// HTTPHandler exposes each engine operation as one POST endpoint.
type HTTPHandler struct {
	engine     service.Engine
	maxReqSize int64
	Server     *http.Server
}

// NewHTTPHandler creates an HTTPHandler.
func NewHTTPHandler(engine service.Engine) *HTTPHandler {
	return &HTTPHandler{
		engine:     engine,
		maxReqSize: int64(maxRequestSizeMB) * 1024 * 1024,
		Server:     &http.Server{},
	}
}

// RegisterRoutes sets up the HTTP routes for the handler.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/analyze_directory", handlePost(h, func(req models.AnalyzeDirectoryRequest) (interface{}, *models.ErrorDetail) {
		return asInterface(h.engine.AnalyzeDirectory(req))
	}))
	mux.HandleFunc("/read_files", handlePost(h, func(req models.ReadFilesRequest) (interface{}, *models.ErrorDetail) {
		return asInterface(h.engine.ReadFiles(req))
	}))
	mux.HandleFunc("/write_file", handlePost(h, func(req models.WriteFileRequest) (interface{}, *models.ErrorDetail) {
		return asInterface(h.engine.WriteFile(req))
	}))
	mux.HandleFunc("/edit_file", handlePost(h, func(req models.EditFileRequest) (interface{}, *models.ErrorDetail) {
		return asInterface(h.engine.EditFile(req))
	}))
	mux.HandleFunc("/health", h.handleHealthCheck)
}

func asInterface[T any](resp *T, errDetail *models.ErrorDetail) (interface{}, *models.ErrorDetail) {
	if errDetail != nil {
		return nil, errDetail
	}
	return resp, nil
}

// handlePost decodes a JSON body into the request type, invokes the
// operation, and writes the JSON result or a mapped error response.
func handlePost[T any](h *HTTPHandler, op func(T) (interface{}, *models.ErrorDetail)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSONError(w, http.StatusMethodNotAllowed,
				errors.NewInvalidRequestError("method not allowed; use POST"))
			return
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			writeJSONError(w, http.StatusBadRequest,
				errors.NewInvalidRequestError("Content-Type must be application/json"))
			return
		}
		var req T
		r.Body = http.MaxBytesReader(w, r.Body, h.maxReqSize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest,
				errors.NewParseError(fmt.Sprintf("invalid JSON body: %v", err)))
			return
		}
		result, errDetail := op(req)
		if errDetail != nil {
			writeJSONError(w, errors.MapErrorToHTTPStatus(errDetail.Code, errDetail), errDetail)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *HTTPHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logrus.WithError(err).Error("encoding JSON response")
		}
	}
}

func writeJSONError(w http.ResponseWriter, statusCode int, errDetail *models.ErrorDetail) {
	writeJSON(w, statusCode, errors.ToErrorResponse(errDetail))
}

// StartServer starts the HTTP server on the given port and blocks until
// the server stops. The server instance is exposed on the handler for
// graceful shutdown.
func (h *HTTPHandler) StartServer(port int) error {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	h.Server.Addr = fmt.Sprintf(":%d", port)
	h.Server.Handler = mux
	h.Server.ReadTimeout = defaultReadTimeout
	h.Server.WriteTimeout = defaultWriteTimeout

	logrus.Infof("HTTP server listening on %s", h.Server.Addr)
	return h.Server.ListenAndServe()
}
