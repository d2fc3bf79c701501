// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"io"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StandardObserver implements observability for all components. A nil
// *StandardObserver is valid and discards everything.
type StandardObserver struct {
	level         ObservabilityLevel
	logger        *zap.Logger
	DebugObserver *DebugObserver // Reference to debug observer when in debug mode
}

type ObservabilityLevel int

const (
	ObservabilityOff     ObservabilityLevel = 0
	ObservabilityMetrics ObservabilityLevel = 1
	ObservabilityDebug   ObservabilityLevel = 2
)

// String returns the configuration name of the level
func (l ObservabilityLevel) String() string {
	switch l {
	case ObservabilityMetrics:
		return "metrics"
	case ObservabilityDebug:
		return "debug"
	default:
		return "off"
	}
}

// ParseLevel converts a configuration string to a level. Unknown values are off.
func ParseLevel(s string) ObservabilityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metrics", "info":
		return ObservabilityMetrics
	case "debug":
		return ObservabilityDebug
	default:
		return ObservabilityOff
	}
}

var requestCounter atomic.Uint64

// NewStandardObserver creates an observer that writes JSON lines to writer
func NewStandardObserver(level ObservabilityLevel, writer io.Writer) *StandardObserver {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(writer), zapcore.DebugLevel)
	return NewStandardObserverWithLogger(level, zap.New(core))
}

// NewStandardObserverWithLogger wraps an existing zap logger
func NewStandardObserverWithLogger(level ObservabilityLevel, logger *zap.Logger) *StandardObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StandardObserver{
		level:  level,
		logger: logger,
	}
}

// Level returns the configured level
func (o *StandardObserver) Level() ObservabilityLevel {
	if o == nil {
		return ObservabilityOff
	}
	return o.level
}

// Logger returns a component-scoped logger
func (o *StandardObserver) Logger(component string) *zap.Logger {
	if o == nil || o.level == ObservabilityOff {
		return zap.NewNop()
	}
	return o.logger.With(zap.String("component", component))
}

// StartTiming returns a function to complete timing
func (o *StandardObserver) StartTiming(component, operation, target string) func(success bool, metadata map[string]interface{}) {
	if o == nil {
		return func(bool, map[string]interface{}) {}
	}
	start := time.Now()

	return func(success bool, metadata map[string]interface{}) {
		o.LogOperation(StandardObservabilityData{
			Component:  component,
			Operation:  operation,
			Target:     target,
			DurationMs: time.Since(start).Milliseconds(),
			Success:    success,
			Metadata:   metadata,
		})
	}
}

// LogOperation logs operation data. Metadata is only emitted in debug mode.
func (o *StandardObserver) LogOperation(data StandardObservabilityData) {
	if o == nil || o.level == ObservabilityOff {
		return
	}

	if data.RequestID == "" {
		data.RequestID = "req-" + time.Now().Format("20060102-150405")
	}
	fields := []zap.Field{
		zap.String("component", data.Component),
		zap.String("operation", data.Operation),
		zap.String("request_id", data.RequestID),
		zap.Uint64("seq", requestCounter.Add(1)),
		zap.Int64("duration_ms", data.DurationMs),
		zap.Bool("success", data.Success),
	}
	if data.Target != "" {
		fields = append(fields, zap.String("target", data.Target))
	}
	if data.Error != "" {
		fields = append(fields, zap.String("error", data.Error))
	}
	if o.level == ObservabilityDebug && len(data.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", data.Metadata))
	}

	if data.Success {
		o.logger.Info("operation", fields...)
	} else {
		o.logger.Warn("operation", fields...)
	}
}

// Sync flushes buffered log entries
func (o *StandardObserver) Sync() {
	if o != nil {
		_ = o.logger.Sync()
	}
}

// StandardObservabilityData for all components
type StandardObservabilityData struct {
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	RequestID  string                 `json:"request_id"`
	Target     string                 `json:"target,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
