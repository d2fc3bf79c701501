// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package session runs the redaction workflow against one host surface:
// scan for candidates, accept or reject them, fill labels with fake values,
// revert fakes in downstream text and clear everything at the boundary.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pii-redact/internal/detector"
	"pii-redact/internal/observability"
	"pii-redact/internal/provenance"
	"pii-redact/internal/redactors"
	"pii-redact/internal/redactors/plaintext"
	"pii-redact/internal/redactors/position"
	"pii-redact/internal/redactors/revert"
	"pii-redact/internal/surface"
	"pii-redact/internal/version"
)

const component = "session"

// Annotation is a located candidate waiting to be accepted or rejected
type Annotation struct {
	ID         string         `json:"id"`
	Span       redactors.Span `json:"span"`
	Confidence float64        `json:"confidence,omitempty"`
}

// Filter keeps candidates out of a scan
type Filter interface {
	Suppresses(c redactors.Candidate) bool
}

// Options tune a session
type Options struct {
	Algorithm   redactors.Algorithm
	ScanTimeout time.Duration
	LabelFor    redactors.LabelFunc
	// Filter, when set, drops allowed values before they are located
	Filter Filter
}

// trackedLabel remembers which record produced a label at a position
type trackedLabel struct {
	recordID string
	span     redactors.Span
}

// Session is safe for concurrent use; operations are serialised.
type Session struct {
	mu sync.Mutex

	id          string
	detector    detector.Detector
	surface     surface.Surface
	store       *provenance.Store
	resolver    *position.Resolver
	engine      *plaintext.PlainTextRedactor
	matcher     *revert.Matcher
	audit       *redactors.RedactionAuditLog
	observer    *observability.StandardObserver
	labelFor    redactors.LabelFunc
	algorithm   redactors.Algorithm
	scanTimeout time.Duration
	filter      Filter

	pending []Annotation
	tracked []trackedLabel
	// written is the last text the session put on the surface
	written string
}

// New creates a session. The store is shared by reference so a caller can
// persist it between runs.
func New(det detector.Detector, surf surface.Surface, store *provenance.Store, opts Options, observer *observability.StandardObserver) *Session {
	if store == nil {
		store = provenance.NewStore(nil, observer)
	}
	if opts.LabelFor == nil {
		opts.LabelFor = redactors.LabelFor
	}
	id := uuid.NewString()
	return &Session{
		id:          id,
		detector:    det,
		surface:     surf,
		store:       store,
		resolver:    position.NewResolver(observer),
		engine:      plaintext.NewPlainTextRedactor(opts.Algorithm, observer),
		matcher:     revert.NewMatcher(observer),
		audit:       redactors.NewRedactionAuditLog(id, version.Short()),
		observer:    observer,
		labelFor:    opts.LabelFor,
		algorithm:   opts.Algorithm,
		scanTimeout: opts.ScanTimeout,
		filter:      opts.Filter,
	}
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Store returns the provenance store
func (s *Session) Store() *provenance.Store { return s.store }

// AuditLog returns the session's audit log
func (s *Session) AuditLog() *redactors.RedactionAuditLog { return s.audit }

// Scan detects candidates in the current surface text and replaces the
// pending annotations with the located, non-overlapping spans. The report
// counts candidates located out of candidates above threshold.
func (s *Session) Scan(ctx context.Context) (redactors.BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := redactors.BatchReport{Operation: "scan"}
	finishTiming := s.observer.StartTiming(component, "scan", s.detector.Name())

	text, err := s.surface.CurrentText()
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return report, err
	}

	if s.scanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.scanTimeout)
		defer cancel()
	}
	candidates, err := s.detector.Detect(ctx, text)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return report, err
	}

	var allowed []string
	if s.filter != nil {
		kept := make([]redactors.Candidate, 0, len(candidates))
		for _, c := range candidates {
			if s.filter.Suppresses(c) {
				allowed = append(allowed, string(c.Type)+" allowed")
				continue
			}
			kept = append(kept, c)
		}
		candidates = kept
	}

	confidence := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		key := annotationKey(c.Type, c.Value)
		confidence[key] = max(confidence[key], c.Confidence)
	}

	spans, resolved := s.resolver.ResolveAll(text, candidates)
	kept, dropped := position.ReduceWithDropped(spans)
	logger := s.observer.Logger(component)
	for _, d := range dropped {
		logger.Debug("overlapping span dropped",
			zap.String("type", string(d.Type)), zap.Int("start", d.Start), zap.Int("end", d.End))
	}

	s.pending = make([]Annotation, 0, len(kept))
	for _, sp := range kept {
		s.pending = append(s.pending, Annotation{
			ID:         uuid.NewString(),
			Span:       sp,
			Confidence: confidence[annotationKey(sp.Type, sp.Value)],
		})
	}

	report.Processed = resolved.Processed
	report.Total = resolved.Total + len(allowed)
	report.Skipped = append(resolved.Skipped, allowed...)
	finishTiming(true, map[string]interface{}{
		"candidates": len(candidates),
		"allowed":    len(allowed),
		"located":    resolved.Processed,
		"pending":    len(s.pending),
		"dropped":    len(dropped),
	})
	return report, nil
}

// Pending returns a copy of the pending annotations in text order
func (s *Session) Pending() []Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Annotation, len(s.pending))
	copy(out, s.pending)
	return out
}

// Accept redacts one pending annotation and returns the new surface text.
// When the surface changed since the scan the annotation is located again
// near its old position; if it is gone it is dropped with a NotFound error.
func (s *Session) Accept(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return "", redactors.NewRedactionError(redactors.ErrorNotFound,
			fmt.Sprintf("no pending annotation %s", id), component, nil)
	}
	ann := s.pending[idx]

	text, err := s.surface.CurrentText()
	if err != nil {
		return "", err
	}

	sp, ok := s.locate(text, ann.Span)
	if !ok {
		s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
		return "", redactors.NewRedactionError(redactors.ErrorNotFound,
			fmt.Sprintf("%s value is no longer in the text", ann.Span.Type), component, nil)
	}

	req := redactors.RedactionRequest{
		Text:  text,
		Edits: []redactors.Edit{{Span: sp, Replacement: s.labelFor(sp.Type)}},
	}
	result, err := s.engine.Apply(req)
	if err != nil {
		return "", err
	}
	if err := s.write(result.Text); err != nil {
		return "", err
	}

	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	recordID := s.store.Record(sp.Value, req.Edits[0].Replacement, sp.Type, sp.Start)
	s.reindex(req, result)
	s.tracked = append(s.tracked, trackedLabel{recordID: recordID, span: result.Spans[0]})
	s.audit.RecordResult(redactors.AuditRedact, s.algorithm, req)

	return result.Text, nil
}

// Reject drops one pending annotation
func (s *Session) Reject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return redactors.NewRedactionError(redactors.ErrorNotFound,
			fmt.Sprintf("no pending annotation %s", id), component, nil)
	}
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	return nil
}

// AcceptAll redacts every pending annotation in one pass
func (s *Session) AcceptAll() (string, redactors.BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := redactors.BatchReport{Operation: "redact", Total: len(s.pending)}
	finishTiming := s.observer.StartTiming(component, "accept_all", "")

	text, err := s.surface.CurrentText()
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return "", report, err
	}

	spans := make([]redactors.Span, 0, len(s.pending))
	for _, ann := range s.pending {
		sp, ok := s.locate(text, ann.Span)
		if !ok {
			report.Skip(string(ann.Span.Type) + " no longer in the text")
			continue
		}
		spans = append(spans, sp)
	}
	kept, dropped := position.ReduceWithDropped(spans)
	for _, d := range dropped {
		report.Skip(string(d.Type) + " overlaps another span")
	}

	s.pending = nil
	if len(kept) == 0 {
		finishTiming(true, map[string]interface{}{"redacted": 0})
		return text, report, nil
	}

	req := redactors.RedactionRequest{Text: text, Edits: make([]redactors.Edit, len(kept))}
	for i, sp := range kept {
		req.Edits[i] = redactors.Edit{Span: sp, Replacement: s.labelFor(sp.Type)}
	}
	result, err := s.engine.Apply(req)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return "", report, err
	}
	if err := s.write(result.Text); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return "", report, err
	}

	s.reindex(req, result)
	for i, e := range req.Edits {
		recordID := s.store.Record(e.Span.Value, e.Replacement, e.Span.Type, e.Span.Start)
		s.tracked = append(s.tracked, trackedLabel{recordID: recordID, span: result.Spans[i]})
	}
	s.audit.RecordResult(redactors.AuditRedact, s.algorithm, req)

	report.Processed = len(kept)
	finishTiming(true, map[string]interface{}{"redacted": report.Processed, "skipped": len(report.Skipped)})
	return result.Text, report, nil
}

// Fill replaces every label in the surface text with a fake value. Labels
// this session produced are filled from their own record; others take the
// first unfilled record for their label, or a fresh one.
func (s *Session) Fill() (string, redactors.BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := redactors.BatchReport{Operation: "fill"}
	finishTiming := s.observer.StartTiming(component, "fill", "")

	text, err := s.surface.CurrentText()
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return "", report, err
	}

	labels := redactors.FindLabels(text)
	report.Total = len(labels)
	if len(labels) == 0 {
		finishTiming(true, map[string]interface{}{"labels": 0})
		return text, report, nil
	}

	// label positions are only known for text this session wrote
	if text != s.written {
		s.tracked = nil
	}

	// known labels first so FIFO fills cannot take a record another label owns
	records := make([]*provenance.MappingRecord, len(labels))
	for i, l := range labels {
		recordID := s.trackedAt(l)
		if recordID == "" {
			continue
		}
		if r, ok := s.store.Get(recordID); !ok || r.Masked != l.Value || (l.Type != "" && r.Type != l.Type) {
			continue
		}
		r, err := s.store.FillByID(recordID)
		if err != nil {
			continue
		}
		records[i] = &r
	}
	for i, l := range labels {
		if records[i] != nil {
			continue
		}
		r := s.store.FillOrCreate(l.Type, l.Value, l.Start)
		records[i] = &r
	}

	req := redactors.RedactionRequest{Text: text, Edits: make([]redactors.Edit, len(labels))}
	for i, l := range labels {
		l.Type = records[i].Type
		req.Edits[i] = redactors.Edit{Span: l, Replacement: records[i].Fake}
	}
	result, err := s.engine.Apply(req)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return "", report, err
	}
	if err := s.write(result.Text); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return "", report, err
	}

	s.reindex(req, result)
	s.audit.RecordResult(redactors.AuditFill, s.algorithm, req)

	report.Processed = len(req.Edits)
	finishTiming(true, map[string]interface{}{"labels": len(labels), "filled": report.Processed})
	return result.Text, report, nil
}

// Revert restores originals in downstream text that quotes filled fakes.
// The surface is not touched.
func (s *Session) Revert(text string) (string, redactors.BatchReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.matcher.RevertDetailed(text, s.store.EntriesWithFake())
	if r.Substitutions > 0 {
		s.audit.RecordResult(redactors.AuditRevert, s.algorithm, r.Request)
	}
	return r.Text, r.Report
}

// Clear ends the session's redaction state: every record is dropped and
// pending annotations are discarded
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked("clear")
}

// Send marks the surface text as sent, which ends the session like Clear
func (s *Session) Send() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked("send")
}

func (s *Session) clearLocked(reason string) {
	records := s.store.Len()
	s.store.Clear()
	s.pending = nil
	s.tracked = nil
	s.written = ""
	s.observer.Logger(component).Info("session boundary",
		zap.String("reason", reason), zap.Int("records_dropped", records))
}

func (s *Session) indexOf(id string) int {
	for i, a := range s.pending {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// locate returns span if it still holds its value in text, otherwise the
// occurrence of the value nearest to its old start
func (s *Session) locate(text string, span redactors.Span) (redactors.Span, bool) {
	runes := []rune(text)
	if position.ValidateSpan(runes, span) == nil && position.NewGuard(text).Allows(span.Start, span.End) {
		return span, true
	}

	found := s.resolver.Resolve(text, redactors.Candidate{
		Value: span.Value,
		Type:  span.Type,
		Hint:  &redactors.Hint{Start: span.Start, End: span.End},
	})
	if len(found) == 0 {
		return redactors.Span{}, false
	}
	best := found[0]
	for _, f := range found[1:] {
		if abs(f.Start-span.Start) < abs(best.Start-span.Start) {
			best = f
		}
	}
	return best, true
}

// reindex moves pending annotations and tracked labels to their position in
// the rewritten text. Anything that overlapped an edit is dropped.
func (s *Session) reindex(req redactors.RedactionRequest, result redactors.RedactionResult) {
	pending := s.pending[:0]
	for _, a := range s.pending {
		if sp, ok := remapSpan(a.Span, req, result); ok {
			a.Span = sp
			pending = append(pending, a)
		}
	}
	s.pending = pending

	tracked := s.tracked[:0]
	for _, t := range s.tracked {
		if sp, ok := remapSpan(t.span, req, result); ok {
			t.span = sp
			tracked = append(tracked, t)
		}
	}
	s.tracked = tracked
}

func (s *Session) write(text string) error {
	if err := s.surface.SetCurrentText(text); err != nil {
		return err
	}
	s.written = text
	return nil
}

// trackedAt returns the record that produced the label at this exact range
func (s *Session) trackedAt(label redactors.Span) string {
	for _, t := range s.tracked {
		if t.span.Start == label.Start && t.span.End == label.End && t.span.Value == label.Value {
			return t.recordID
		}
	}
	return ""
}

// remapSpan shifts sp by the length change of every edit that ends at or
// before it. ok is false when sp overlaps an edit.
func remapSpan(sp redactors.Span, req redactors.RedactionRequest, result redactors.RedactionResult) (redactors.Span, bool) {
	delta := 0
	for i, e := range req.Edits {
		if e.Span.Overlaps(sp) {
			return redactors.Span{}, false
		}
		if e.Span.End <= sp.Start {
			delta += result.Spans[i].Len() - e.Span.Len()
		}
	}
	sp.Start += delta
	sp.End += delta
	return sp, true
}

func annotationKey(t redactors.PIIType, value string) string {
	return string(t) + "\x00" + strings.ToLower(value)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
