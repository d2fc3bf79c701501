// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"pii-redact/internal/observability"
	"pii-redact/internal/redactors"
	"pii-redact/internal/resilience"
)

const httpComponent = "detector_http"

// HTTPConfig configures the detection service client
type HTTPConfig struct {
	BaseURL   string
	Language  string
	Model     string
	Timeout   time.Duration
	Threshold float64
	Retry     resilience.RetryConfig
}

// DefaultHTTPConfig returns settings for a detection service on the local host
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL:   "http://127.0.0.1:5000",
		Language:  "en",
		Model:     "presidio",
		Timeout:   10 * time.Second,
		Threshold: DefaultConfidenceThreshold,
		Retry:     resilience.DefaultRetryConfig(),
	}
}

// HTTPDetector calls a detection service over HTTP. It is safe for
// concurrent use.
type HTTPDetector struct {
	config   HTTPConfig
	client   *http.Client
	breaker  *resilience.CircuitBreaker
	observer *observability.StandardObserver
}

// NewHTTPDetector creates a client for the service at config.BaseURL
func NewHTTPDetector(config HTTPConfig, observer *observability.StandardObserver) *HTTPDetector {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	logger := observer.Logger(httpComponent)
	cbConfig := resilience.DefaultCircuitBreakerConfig(httpComponent)
	cbConfig.OnStateChange = func(name string, from, to resilience.CircuitBreakerState) {
		logger.Warn("detector circuit state change",
			zap.String("from", from.String()), zap.String("to", to.String()))
	}
	config.Retry.OnRetry = func(attempt int, err error) {
		logger.Info("retrying detector call", zap.Int("attempt", attempt), zap.Error(err))
	}

	return &HTTPDetector{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		breaker:  resilience.NewCircuitBreaker(cbConfig),
		observer: observer,
	}
}

// Name identifies the detector in reports
func (d *HTTPDetector) Name() string {
	return "http:" + d.config.BaseURL
}

// Detect posts text to the service and returns the entities at or above the
// configured threshold as candidates
func (d *HTTPDetector) Detect(ctx context.Context, text string) ([]redactors.Candidate, error) {
	finishTiming := d.observer.StartTiming(httpComponent, "detect", d.config.BaseURL)

	if strings.TrimSpace(text) == "" {
		finishTiming(true, map[string]interface{}{"entities": 0})
		return nil, nil
	}

	var resp DetectResponse
	err := resilience.RetryWithCircuitBreaker(ctx, d.config.Retry, d.breaker, func(ctx context.Context) error {
		var err error
		resp, err = d.detectOnce(ctx, text)
		return err
	})
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, redactors.NewRedactionError(redactors.ErrorDetector,
			"detection service request failed", httpComponent, err)
	}

	candidates := Candidates(resp.DetectedEntities, d.config.Threshold)
	finishTiming(true, map[string]interface{}{
		"entities":   len(resp.DetectedEntities),
		"candidates": len(candidates),
		"model":      resp.ModelUsed,
	})
	return candidates, nil
}

func (d *HTTPDetector) detectOnce(ctx context.Context, text string) (DetectResponse, error) {
	body, err := json.Marshal(DetectRequest{Text: text, Language: d.config.Language, Model: d.config.Model})
	if err != nil {
		return DetectResponse{}, resilience.NewPermanentError("encode detect request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.BaseURL+"/detect-pii", bytes.NewReader(body))
	if err != nil {
		return DetectResponse{}, resilience.NewPermanentError("build detect request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result DetectResponse
	if err := d.do(req, &result); err != nil {
		return DetectResponse{}, err
	}
	return result, nil
}

// Health queries GET /health. No retries; a health probe should answer fast.
func (d *HTTPDetector) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.config.BaseURL+"/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	var status HealthStatus
	if err := d.do(req, &status); err != nil {
		return HealthStatus{}, redactors.NewRedactionError(redactors.ErrorDetector,
			"detection service health check failed", httpComponent, err)
	}
	return status, nil
}

func (d *HTTPDetector) do(req *http.Request, out interface{}) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return resilience.ClassifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resilience.ClassifyHTTPStatus(resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &resilience.ClassifiedError{
			Original: err,
			Type:     resilience.ErrorTypeInvalidInput,
			Message:  fmt.Sprintf("decode %s response: %v", req.URL.Path, err),
		}
	}
	return nil
}
