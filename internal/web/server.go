// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pii-redact/internal/detector"
	"pii-redact/internal/formatters"
	"pii-redact/internal/formatters/shared"
	"pii-redact/internal/observability"
	"pii-redact/internal/redactors"
	"pii-redact/internal/session"
	"pii-redact/internal/surface"
	"pii-redact/internal/version"

	// Import formatters to register them
	_ "pii-redact/internal/formatters/csv"
	_ "pii-redact/internal/formatters/json"
	_ "pii-redact/internal/formatters/text"
	_ "pii-redact/internal/formatters/yaml"
)

const (
	webComponent = "web"

	// maxBodyBytes caps request bodies; a compose box never gets near it
	maxBodyBytes = 10 << 20
)

// ServerConfig configures the local API
type ServerConfig struct {
	ListenAddr    string
	AllowedOrigin string
	// Persist is called after every operation that changes the store
	Persist func() error
}

// WebServer exposes one redaction session over HTTP to a host such as a
// browser extension. The session's surface is the text the host last sent.
type WebServer struct {
	config   ServerConfig
	session  *session.Session
	surface  surface.Surface
	detector detector.Detector
	observer *observability.StandardObserver
	logger   *zap.Logger
	server   *http.Server
}

// textRequest is the body of /scan, /redact and /revert
type textRequest struct {
	Text *string `json:"text"`
}

// idRequest is the body of /accept and /reject
type idRequest struct {
	ID string `json:"id"`
}

// APIResponse wraps every JSON reply
type APIResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	*shared.Response
}

// NewWebServer creates a server for sess. surf must be the surface sess was
// created with.
func NewWebServer(config ServerConfig, sess *session.Session, surf surface.Surface, det detector.Detector, observer *observability.StandardObserver) *WebServer {
	if config.ListenAddr == "" {
		config.ListenAddr = "127.0.0.1:8080"
	}
	if config.AllowedOrigin == "" {
		config.AllowedOrigin = "*"
	}
	ws := &WebServer{
		config:   config,
		session:  sess,
		surface:  surf,
		detector: det,
		observer: observer,
		logger:   observer.Logger(webComponent),
	}
	ws.server = ws.createSecureServer(config.ListenAddr)
	return ws
}

// Handler returns the routed handler with CORS applied
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/scan", ws.handleScan)
	mux.HandleFunc("/annotations", ws.handleAnnotations)
	mux.HandleFunc("/accept", ws.handleAccept)
	mux.HandleFunc("/reject", ws.handleReject)
	mux.HandleFunc("/redact", ws.handleRedact)
	mux.HandleFunc("/fill", ws.handleFill)
	mux.HandleFunc("/revert", ws.handleRevert)
	mux.HandleFunc("/records", ws.handleRecords)
	mux.HandleFunc("/export", ws.handleExport)
	mux.HandleFunc("/clear", ws.handleClear)
	mux.HandleFunc("/send", ws.handleSend)
	return ws.withCORS(mux)
}

// Start serves until Shutdown is called
func (ws *WebServer) Start() error {
	ws.logger.Info("listening", zap.String("addr", ws.config.ListenAddr), zap.String("session", ws.session.ID()))
	fmt.Printf("pii-redact API listening on http://%s\n", ws.config.ListenAddr)

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w\n"+
			"Troubleshooting: check that no other service is using the address, or set %s",
			ws.config.ListenAddr, err, "PII_LISTEN_ADDR")
	}
	return nil
}

// Shutdown stops the server gracefully
func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// createSecureServer creates an HTTP server with timeouts against slow clients
func (ws *WebServer) createSecureServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// withCORS answers preflight requests and lets extension pages on other
// origins, including private-network requests from public pages, call the API
func (ws *WebServer) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", ws.config.AllowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Private-Network", "true")
		h.Set("Cache-Control", "no-store")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth reports version information and, when the detector supports
// it, the detection service status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	versionInfo := version.Full()
	healthData := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "pii-redact",
		"version":    versionInfo["version"],
		"session_id": ws.session.ID(),
		"build_info": map[string]interface{}{
			"version":    versionInfo["version"],
			"commit":     versionInfo["commit"],
			"build_date": versionInfo["buildDate"],
			"go_version": versionInfo["goVersion"],
			"platform":   versionInfo["platform"],
		},
	}

	if ws.detector != nil {
		det := map[string]interface{}{"name": ws.detector.Name()}
		if hc, ok := ws.detector.(interface {
			Health(context.Context) (detector.HealthStatus, error)
		}); ok {
			status, err := hc.Health(r.Context())
			if err != nil {
				det["status"] = "unreachable"
				det["error"] = err.Error()
				healthData["status"] = "degraded"
			} else {
				det["status"] = status.Status
				det["presidio_initialized"] = status.PresidioInitialized
				if !status.Healthy() {
					healthData["status"] = "degraded"
				}
			}
		}
		healthData["detector"] = det
	}

	writeJSON(w, http.StatusOK, healthData)
}

// handleScan replaces the surface text when one is posted, then scans it
func (ws *WebServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	req, ok := ws.decodeText(w, r, false)
	if !ok {
		return
	}
	if !ws.replaceText(w, "scan", req.Text) {
		return
	}

	report, err := ws.session.Scan(r.Context())
	if err != nil {
		ws.sendRedactionError(w, "scan", err)
		return
	}
	ws.sendReport(w, formatters.Report{
		Operation:   "scan",
		Annotations: ws.session.Pending(),
		Batch:       &report,
	}, true)
}

func (ws *WebServer) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ws.sendReport(w, formatters.Report{Operation: "annotations", Annotations: ws.session.Pending()}, true)
}

func (ws *WebServer) handleAccept(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req idRequest
	if !ws.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		ws.sendErrorWithStatus(w, "id is required", http.StatusBadRequest)
		return
	}

	text, err := ws.session.Accept(req.ID)
	if err != nil {
		ws.sendRedactionError(w, "accept", err)
		return
	}
	ws.persist()
	ws.sendReport(w, formatters.Report{
		Operation:   "accept",
		Text:        text,
		Annotations: ws.session.Pending(),
	}, true)
}

func (ws *WebServer) handleReject(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req idRequest
	if !ws.decode(w, r, &req) {
		return
	}
	if err := ws.session.Reject(req.ID); err != nil {
		ws.sendRedactionError(w, "reject", err)
		return
	}
	ws.sendReport(w, formatters.Report{Operation: "reject", Annotations: ws.session.Pending()}, true)
}

// handleRedact is scan plus accept-all in one call
func (ws *WebServer) handleRedact(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	req, ok := ws.decodeText(w, r, false)
	if !ok {
		return
	}
	if req.Text != nil {
		if !ws.replaceText(w, "redact", req.Text) {
			return
		}
		if _, err := ws.session.Scan(r.Context()); err != nil {
			ws.sendRedactionError(w, "redact", err)
			return
		}
	}

	text, report, err := ws.session.AcceptAll()
	if err != nil {
		ws.sendRedactionError(w, "redact", err)
		return
	}
	ws.persist()
	ws.sendReport(w, formatters.Report{Operation: "redact", Text: text, Batch: &report}, true)
}

func (ws *WebServer) handleFill(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	req, ok := ws.decodeText(w, r, false)
	if !ok {
		return
	}
	if !ws.replaceText(w, "fill", req.Text) {
		return
	}

	text, report, err := ws.session.Fill()
	if err != nil {
		ws.sendRedactionError(w, "fill", err)
		return
	}
	ws.persist()
	ws.sendReport(w, formatters.Report{Operation: "fill", Text: text, Batch: &report}, true)
}

// handleRevert restores originals in a downstream response; the surface is
// left alone
func (ws *WebServer) handleRevert(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	req, ok := ws.decodeText(w, r, true)
	if !ok {
		return
	}

	text, report := ws.session.Revert(*req.Text)
	ws.sendReport(w, formatters.Report{Operation: "revert", Text: text, Batch: &report}, true)
}

func (ws *WebServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	show, _ := strconv.ParseBool(r.URL.Query().Get("show_originals"))
	ws.sendReport(w, formatters.Report{Operation: "records", Records: ws.session.Store().Records()}, show)
}

// handleExport renders the pending annotations and records with a named formatter
func (ws *WebServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	info := formatters.GetFormatInfo(format)
	if info.Name == "" {
		ws.sendErrorWithStatus(w, fmt.Sprintf("unsupported format %q, available: %s", sanitizeUserInput(format, 20), strings.Join(formatters.List(), ", ")), http.StatusBadRequest)
		return
	}

	show, _ := strconv.ParseBool(r.URL.Query().Get("show_originals"))
	content, err := formatters.Export(format, formatters.Report{
		Operation:   "export",
		SessionID:   ws.session.ID(),
		Annotations: ws.session.Pending(),
		Records:     ws.session.Store().Records(),
	}, formatters.FormatterOptions{NoColor: true, ShowOriginals: show, Verbose: true})
	if err != nil {
		ws.sendErrorWithStatus(w, "export failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", info.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"pii-redact-session%s\"", info.Extension))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

func (ws *WebServer) handleClear(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ws.session.Clear()
	ws.persist()
	ws.sendReport(w, formatters.Report{Operation: "clear"}, false)
}

// handleSend marks the host text as sent, ending the session
func (ws *WebServer) handleSend(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ws.session.Send()
	ws.persist()
	ws.sendReport(w, formatters.Report{Operation: "send"}, false)
}

func (ws *WebServer) persist() {
	if ws.config.Persist == nil {
		return
	}
	if err := ws.config.Persist(); err != nil {
		ws.logger.Warn("persisting session failed", zap.Error(err))
	}
}

// decode reads a JSON body. An empty body leaves v untouched.
func (ws *WebServer) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		ws.sendErrorWithStatus(w, "Failed to parse request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (ws *WebServer) decodeText(w http.ResponseWriter, r *http.Request, required bool) (textRequest, bool) {
	var req textRequest
	if !ws.decode(w, r, &req) {
		return req, false
	}
	if required && req.Text == nil {
		ws.sendErrorWithStatus(w, "text is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// sendReport writes a successful response. Annotation values are the host's
// own text; record originals are shown only when showOriginals is set.
func (ws *WebServer) sendReport(w http.ResponseWriter, report formatters.Report, showOriginals bool) {
	report.SessionID = ws.session.ID()
	resp := shared.ConvertReport(report, formatters.FormatterOptions{ShowOriginals: showOriginals})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Response: &resp})
}

// replaceText puts posted host text on the surface. A nil text keeps the
// current one.
func (ws *WebServer) replaceText(w http.ResponseWriter, operation string, text *string) bool {
	if text == nil {
		return true
	}
	if err := ws.surface.SetCurrentText(*text); err != nil {
		ws.sendRedactionError(w, operation, redactors.NewRedactionError(redactors.ErrorSurface,
			"could not update the host text", webComponent, err))
		return false
	}
	return true
}

// sendRedactionError maps the error taxonomy onto HTTP status codes
func (ws *WebServer) sendRedactionError(w http.ResponseWriter, operation string, err error) {
	status := http.StatusInternalServerError
	var re *redactors.RedactionError
	if errors.As(err, &re) {
		switch re.Type {
		case redactors.ErrorNotFound, redactors.ErrorProvenanceMiss:
			status = http.StatusNotFound
		case redactors.ErrorInvalidSpan, redactors.ErrorConfiguration:
			status = http.StatusBadRequest
		case redactors.ErrorDetector:
			status = http.StatusBadGateway
		}
	}
	ws.logger.Warn("operation failed", zap.String("operation", operation), zap.Int("status", status), zap.Error(err))
	ws.sendErrorWithStatus(w, fmt.Sprintf("%s failed: %v", operation, err), status)
}

// sendErrorWithStatus sends an error response with a specific HTTP status code
func (ws *WebServer) sendErrorWithStatus(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   enhanceErrorMessage(message, statusCode),
	})
}

// enhanceErrorMessage adds troubleshooting information to error messages
func enhanceErrorMessage(message string, statusCode int) string {
	switch {
	case strings.Contains(message, "Failed to parse request body"):
		return message + "\nTroubleshooting: send a JSON object such as {\"text\": \"...\"} or {\"id\": \"...\"}"
	case statusCode == http.StatusBadGateway:
		return message + "\nTroubleshooting: check that the detection service is running and PII_DETECTOR_URL points at it"
	case statusCode == http.StatusNotFound:
		return message + "\nTroubleshooting: the annotation or label may have been removed by an edit; scan again"
	case statusCode == http.StatusInternalServerError:
		return message + "\nTroubleshooting: Check server logs for detailed error information"
	default:
		return message
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method+", OPTIONS")
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sanitizeUserInput removes control and markup characters from user input
// before it is echoed back
func sanitizeUserInput(input string, maxLength int) string {
	sanitized := strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		switch r {
		case '<', '>', '"', '\'', '&':
			return -1
		}
		return r
	}, input)

	if r := []rune(sanitized); len(r) > maxLength {
		sanitized = string(r[:maxLength]) + "..."
	}
	return sanitized
}
