// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-redact/internal/detector"
	"pii-redact/internal/provenance"
	"pii-redact/internal/redactors"
	"pii-redact/internal/resilience"
	"pii-redact/internal/session"
	"pii-redact/internal/surface"
)

// fixedGenerator hands out fakes in order
type fixedGenerator struct {
	fakes []string
	n     int
}

func (g *fixedGenerator) Generate(t redactors.PIIType) string { return g.GenerateLike(t, "") }

func (g *fixedGenerator) GenerateLike(redactors.PIIType, string) string {
	v := g.fakes[g.n%len(g.fakes)]
	g.n++
	return v
}

type testServer struct {
	*httptest.Server
	persisted int
}

func newTestServer(t *testing.T, det detector.Detector) *testServer {
	t.Helper()
	surf := surface.NewMemorySurface("")
	store := provenance.NewStore(&fixedGenerator{fakes: []string{"Zendric", "Quillon"}}, nil)
	sess := session.New(det, surf, store, session.Options{Algorithm: redactors.AlgorithmAscending}, nil)

	ts := &testServer{}
	ws := NewWebServer(ServerConfig{Persist: func() error { ts.persisted++; return nil }}, sess, surf, det, nil)
	ts.Server = httptest.NewServer(ws.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func staticDetector() detector.Detector {
	return detector.NewStaticDetector([]detector.Entity{
		{Type: "PERSON", Value: "Ann", Confidence: 0.95},
		{Type: "PERSON", Value: "Bob", Confidence: 0.85},
	}, detector.DefaultConfidenceThreshold)
}

func call(t *testing.T, ts *testServer, method, path string, body interface{}) (int, APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestServer_ScanAcceptFillRevert(t *testing.T) {
	ts := newTestServer(t, staticDetector())

	status, resp := call(t, ts, http.MethodPost, "/scan", map[string]string{"text": "Ann met Bob"})
	require.Equal(t, http.StatusOK, status)
	require.True(t, resp.Success)
	require.Len(t, resp.Annotations, 2)
	assert.Equal(t, "Ann", resp.Annotations[0].Value)
	assert.Equal(t, "HIGH", resp.Annotations[0].ConfidenceLevel)
	assert.Equal(t, "scan: 2 of 2 processed", resp.Report.String())

	status, resp = call(t, ts, http.MethodPost, "/accept", map[string]string{"id": resp.Annotations[0].ID})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.Text)
	assert.Equal(t, "[NAME] met Bob", *resp.Text)
	require.Len(t, resp.Annotations, 1)
	assert.Equal(t, 11, resp.Annotations[0].Start)

	status, resp = call(t, ts, http.MethodPost, "/redact", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[NAME] met [NAME]", *resp.Text)

	status, resp = call(t, ts, http.MethodPost, "/fill", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Zendric met Quillon", *resp.Text)
	assert.Equal(t, "fill: 2 of 2 processed", resp.Report.String())

	status, resp = call(t, ts, http.MethodPost, "/revert", map[string]string{"text": "Quillon says hi to Zendric"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bob says hi to Ann", *resp.Text)

	assert.Equal(t, 3, ts.persisted)
}

func TestServer_RecordsMaskOriginals(t *testing.T) {
	ts := newTestServer(t, staticDetector())
	_, _ = call(t, ts, http.MethodPost, "/redact", map[string]string{"text": "Ann met Bob"})

	_, resp := call(t, ts, http.MethodGet, "/records", nil)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "[HIDDEN]", resp.Records[0].Original)
	assert.Equal(t, "[NAME]", resp.Records[0].Masked)

	_, resp = call(t, ts, http.MethodGet, "/records?show_originals=true", nil)
	assert.Equal(t, "Ann", resp.Records[0].Original)
}

func TestServer_RejectAndClear(t *testing.T) {
	ts := newTestServer(t, staticDetector())
	_, resp := call(t, ts, http.MethodPost, "/scan", map[string]string{"text": "Ann met Bob"})
	require.Len(t, resp.Annotations, 2)

	status, resp := call(t, ts, http.MethodPost, "/reject", map[string]string{"id": resp.Annotations[0].ID})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Annotations, 1)
	assert.Equal(t, "Bob", resp.Annotations[0].Value)

	_, _ = call(t, ts, http.MethodPost, "/redact", nil)
	status, _ = call(t, ts, http.MethodPost, "/clear", nil)
	require.Equal(t, http.StatusOK, status)

	_, resp = call(t, ts, http.MethodGet, "/records", nil)
	assert.Empty(t, resp.Records)

	_, resp = call(t, ts, http.MethodGet, "/annotations", nil)
	assert.Empty(t, resp.Annotations)
}

func TestServer_Errors(t *testing.T) {
	ts := newTestServer(t, staticDetector())

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"unknown annotation", http.MethodPost, "/accept", map[string]string{"id": "missing"}, http.StatusNotFound},
		{"missing id", http.MethodPost, "/accept", map[string]string{}, http.StatusBadRequest},
		{"revert without text", http.MethodPost, "/revert", map[string]string{}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/scan", map[string]string{"body": "x"}, http.StatusBadRequest},
		{"bad export format", http.MethodGet, "/export?format=xml", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := call(t, ts, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}

	resp, err := ts.Client().Get(ts.URL + "/scan")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// lockedSurface refuses every write
type lockedSurface struct {
	*surface.MemorySurface
}

func (lockedSurface) SetCurrentText(string) error { return errors.New("document is read-only") }

func TestServer_SurfaceWriteFailure(t *testing.T) {
	surf := lockedSurface{surface.NewMemorySurface("Ann wrote")}
	sess := session.New(staticDetector(), surf, nil, session.Options{}, nil)
	ts := &testServer{}
	ts.Server = httptest.NewServer(NewWebServer(ServerConfig{}, sess, surf, nil, nil).Handler())
	t.Cleanup(ts.Close)

	for _, path := range []string{"/scan", "/redact", "/fill"} {
		t.Run(path, func(t *testing.T) {
			status, resp := call(t, ts, http.MethodPost, path, map[string]string{"text": "Ann wrote again"})
			assert.Equal(t, http.StatusInternalServerError, status)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, "document is read-only")
		})
	}
	assert.Empty(t, sess.Pending())
}

func TestServer_DetectorFailureIsBadGateway(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer down.Close()

	cfg := detector.DefaultHTTPConfig()
	cfg.BaseURL = down.URL
	cfg.Retry = resilience.RetryConfig{MaxRetries: 0, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
	ts := newTestServer(t, detector.NewHTTPDetector(cfg, nil))

	status, resp := call(t, ts, http.MethodPost, "/scan", map[string]string{"text": "Ann"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, resp.Error, "PII_DETECTOR_URL")
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t, staticDetector())

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/scan", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://chat.example.com")
	req.Header.Set("Access-Control-Request-Private-Network", "true")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Private-Network"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestServer_Health(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","presidio_initialized":true}`))
	}))
	defer svc.Close()
	cfg := detector.DefaultHTTPConfig()
	cfg.BaseURL = svc.URL
	ts := newTestServer(t, detector.NewHTTPDetector(cfg, nil))

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "pii-redact", body["service"])
	det, ok := body["detector"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, det["presidio_initialized"])
}

func TestServer_Export(t *testing.T) {
	ts := newTestServer(t, staticDetector())
	_, _ = call(t, ts, http.MethodPost, "/redact", map[string]string{"text": "Ann met Bob"})

	resp, err := ts.Client().Get(ts.URL + "/export?format=csv")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "pii-redact-session.csv")
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(strings.TrimSpace(buf.String()), "\n")+1)
	assert.NotContains(t, buf.String(), "Ann")
}

func TestSanitizeUserInput(t *testing.T) {
	assert.Equal(t, "script", sanitizeUserInput("<script>", 20))
	assert.Equal(t, "abc...", sanitizeUserInput("abcdef", 3))
}
