// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-redact/internal/redactors"
	"pii-redact/internal/resilience"
)

func testConfig(url string) HTTPConfig {
	cfg := DefaultHTTPConfig()
	cfg.BaseURL = url + "/"
	cfg.Timeout = 2 * time.Second
	cfg.Retry = resilience.RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
	return cfg
}

func TestCandidates(t *testing.T) {
	entities := []Entity{
		{Type: "PERSON", Start: 8, End: 18, Value: "Dr. Saygın", Confidence: 0.9},
		{Type: "EMAIL_ADDRESS", Start: 22, End: 29, Value: "a@b.com", Confidence: 0.6},
		{Type: "PHONE_NUMBER", Value: "555-0100", Confidence: 0.59},
		{Type: "LOCATION", Value: "  ", Confidence: 1},
		{Type: "crypto", Start: 5, End: 5, Value: "bc1q", Confidence: 0.8},
	}

	got := Candidates(entities, DefaultConfidenceThreshold)
	require.Len(t, got, 3)

	assert.Equal(t, redactors.TypePerson, got[0].Type)
	assert.Equal(t, &redactors.Hint{Start: 8, End: 18}, got[0].Hint)
	assert.Equal(t, redactors.TypeEmail, got[1].Type)
	assert.Equal(t, redactors.PIIType("CRYPTO"), got[2].Type)
	assert.Nil(t, got[2].Hint)
}

func TestHTTPDetector_Detect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/detect-pii", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req DetectRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Email me at a@b.com please", req.Text)
		assert.Equal(t, "en", req.Language)
		assert.Equal(t, "presidio", req.Model)

		_ = json.NewEncoder(w).Encode(DetectResponse{
			HasPII: true,
			DetectedEntities: []Entity{
				{Type: "EMAIL_ADDRESS", Start: 12, End: 19, Value: "a@b.com", Confidence: 1},
				{Type: "PERSON", Start: 0, End: 5, Value: "Email", Confidence: 0.3},
			},
			TotalEntities:       2,
			ModelUsed:           "presidio",
			ConfidenceThreshold: 0.6,
		})
	}))
	defer server.Close()

	d := NewHTTPDetector(testConfig(server.URL), nil)
	got, err := d.Detect(context.Background(), "Email me at a@b.com please")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, redactors.TypeEmail, got[0].Type)
	assert.Equal(t, "a@b.com", got[0].Value)
	assert.Equal(t, "http:"+server.URL, d.Name())
}

func TestHTTPDetector_EmptyTextSkipsCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	got, err := NewHTTPDetector(testConfig(server.URL), nil).Detect(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestHTTPDetector_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(DetectResponse{
			DetectedEntities: []Entity{{Type: "PERSON", Start: 0, End: 3, Value: "Ann", Confidence: 0.9}},
		})
	}))
	defer server.Close()

	got, err := NewHTTPDetector(testConfig(server.URL), nil).Detect(context.Background(), "Ann met Bob")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPDetector_BadRequestIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"No JSON data provided"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewHTTPDetector(testConfig(server.URL), nil).Detect(context.Background(), "Ann")
	require.Error(t, err)
	assert.True(t, redactors.IsErrorType(err, redactors.ErrorDetector))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, err.Error(), "No JSON data provided")
}

func TestHTTPDetector_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewHTTPDetector(testConfig(server.URL), nil).Detect(context.Background(), "Ann")
	assert.True(t, redactors.IsErrorType(err, redactors.ErrorDetector))
}

func TestHTTPDetector_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","presidio_initialized":true}`))
	}))
	defer server.Close()

	status, err := NewHTTPDetector(testConfig(server.URL), nil).Health(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy())
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	content := `threshold: 0.5
entities:
  - type: PERSON
    value: Ann
  - type: EMAIL_ADDRESS
    value: a@b.com
    confidence: 0.4
  - type: LOCATION
    value: Paris
    confidence: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	d, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, "static", d.Name())

	got, err := d.Detect(context.Background(), "ann mailed a@b.com from Rome")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ann", got[0].Value)
	assert.Equal(t, 1.0, got[0].Confidence)
}

func TestLoadFixture_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFixture(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("entities:\n  - type: PERSON\n"), 0600))
	_, err = LoadFixture(bad)
	assert.Error(t, err)
}
