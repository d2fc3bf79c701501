// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-redact/internal/detector"
	"pii-redact/internal/provenance"
	"pii-redact/internal/redactors"
	"pii-redact/internal/surface"
)

type stubDetector struct {
	candidates []redactors.Candidate
	err        error
}

func (d stubDetector) Detect(ctx context.Context, text string) ([]redactors.Candidate, error) {
	return d.candidates, d.err
}

func (d stubDetector) Name() string { return "stub" }

// listGenerator hands out fakes in order
type listGenerator struct {
	fakes []string
	n     int
}

func (g *listGenerator) Generate(t redactors.PIIType) string { return g.GenerateLike(t, "") }

func (g *listGenerator) GenerateLike(t redactors.PIIType, _ string) string {
	v := g.fakes[g.n%len(g.fakes)]
	g.n++
	return v
}

func person(v string) redactors.Candidate {
	return redactors.Candidate{Value: v, Type: redactors.TypePerson, Confidence: 0.9}
}

func newSession(t *testing.T, text string, det detector.Detector, algorithm redactors.Algorithm) (*Session, *surface.MemorySurface) {
	t.Helper()
	surf := surface.NewMemorySurface(text)
	store := provenance.NewStore(&listGenerator{fakes: []string{"Zendric", "Quillon", "Orsolya"}}, nil)
	return New(det, surf, store, Options{Algorithm: algorithm}, nil), surf
}

func current(t *testing.T, s surface.Surface) string {
	t.Helper()
	text, err := s.CurrentText()
	require.NoError(t, err)
	return text
}

func TestSession_ScanAndAcceptAll(t *testing.T) {
	for _, alg := range []redactors.Algorithm{redactors.AlgorithmAscending, redactors.AlgorithmDescending} {
		t.Run(alg.String(), func(t *testing.T) {
			s, surf := newSession(t, "Ann met Bob", stubDetector{candidates: []redactors.Candidate{person("Ann"), person("Bob")}}, alg)

			report, err := s.Scan(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "scan: 2 of 2 processed", report.String())
			require.Len(t, s.Pending(), 2)
			assert.Equal(t, 0.9, s.Pending()[0].Confidence)

			text, report, err := s.AcceptAll()
			require.NoError(t, err)
			assert.Equal(t, "[NAME] met [NAME]", text)
			assert.Equal(t, "[NAME] met [NAME]", current(t, surf))
			assert.Equal(t, "redact: 2 of 2 processed", report.String())
			assert.Empty(t, s.Pending())
			assert.Equal(t, 2, s.Store().Len())
			assert.Equal(t, 2, s.AuditLog().Summary.TotalRedactions)
		})
	}
}

func TestSession_ScanReportsUnlocatedCandidates(t *testing.T) {
	det := stubDetector{candidates: []redactors.Candidate{
		person("Dr. Saygın"),
		{Value: "nobody@example.com", Type: redactors.TypeEmail},
	}}
	s, _ := newSession(t, "Contact Dr. Saygın at office.", det, redactors.AlgorithmAscending)

	report, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Total)
	assert.Len(t, report.Skipped, 1)

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 8, pending[0].Span.Start)
	assert.Equal(t, 18, pending[0].Span.End)

	text, err := s.Accept(pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Contact [NAME] at office.", text)
}

func TestSession_ScanDropsOverlaps(t *testing.T) {
	det := stubDetector{candidates: []redactors.Candidate{
		person("Ann Lee"),
		{Value: "Lee Street", Type: redactors.TypeLocation},
	}}
	s, _ := newSession(t, "Ann Lee Street", det, redactors.AlgorithmAscending)

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "Ann Lee", pending[0].Span.Value)
}

func TestSession_AcceptShiftsRemainingAnnotations(t *testing.T) {
	s, surf := newSession(t, "Ann met Bob", stubDetector{candidates: []redactors.Candidate{person("Ann"), person("Bob")}}, redactors.AlgorithmAscending)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	pending := s.Pending()
	_, err = s.Accept(pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "[NAME] met Bob", current(t, surf))

	rest := s.Pending()
	require.Len(t, rest, 1)
	assert.Equal(t, redactors.Span{Start: 11, End: 14, Type: redactors.TypePerson, Value: "Bob"}, rest[0].Span)

	text, err := s.Accept(rest[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "[NAME] met [NAME]", text)
}

func TestSession_AcceptRelocatesAfterHostEdit(t *testing.T) {
	s, surf := newSession(t, "Ann met Bob", stubDetector{candidates: []redactors.Candidate{person("Bob")}}, redactors.AlgorithmAscending)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.NoError(t, surf.SetCurrentText("Hello! Ann met Bob"))
	text, err := s.Accept(s.Pending()[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello! Ann met [NAME]", text)
}

func TestSession_AcceptMissingValue(t *testing.T) {
	s, surf := newSession(t, "Ann met Bob", stubDetector{candidates: []redactors.Candidate{person("Bob")}}, redactors.AlgorithmAscending)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.NoError(t, surf.SetCurrentText("Ann left"))
	_, err = s.Accept(s.Pending()[0].ID)
	assert.True(t, redactors.IsErrorType(err, redactors.ErrorNotFound))
	assert.Empty(t, s.Pending())
	assert.Equal(t, "Ann left", current(t, surf))

	_, err = s.Accept("unknown")
	assert.True(t, redactors.IsErrorType(err, redactors.ErrorNotFound))
}

func TestSession_Reject(t *testing.T) {
	s, _ := newSession(t, "Ann met Bob", stubDetector{candidates: []redactors.Candidate{person("Ann"), person("Bob")}}, redactors.AlgorithmAscending)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Reject(s.Pending()[0].ID))
	require.Len(t, s.Pending(), 1)
	assert.Equal(t, "Bob", s.Pending()[0].Span.Value)
	assert.Error(t, s.Reject("unknown"))

	text, report, err := s.AcceptAll()
	require.NoError(t, err)
	assert.Equal(t, "Ann met [NAME]", text)
	assert.Equal(t, 1, report.Total)
}

func TestSession_FillRevertRoundTrip(t *testing.T) {
	s, surf := newSession(t, "Ann met Bob", stubDetector{candidates: []redactors.Candidate{person("Ann"), person("Bob")}}, redactors.AlgorithmAscending)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	_, _, err = s.AcceptAll()
	require.NoError(t, err)

	text, report, err := s.Fill()
	require.NoError(t, err)
	assert.Equal(t, "Zendric met Quillon", text)
	assert.Equal(t, "Zendric met Quillon", current(t, surf))
	assert.Equal(t, "fill: 2 of 2 processed", report.String())

	reverted, report := s.Revert("Sure, Quillon and Zendric can meet.")
	assert.Equal(t, "Sure, Bob and Ann can meet.", reverted)
	assert.Equal(t, "revert: 2 of 2 processed", report.String())
	assert.Equal(t, 2, s.AuditLog().Summary.TotalFills)
	assert.Equal(t, 2, s.AuditLog().Summary.TotalReverts)
}

func TestSession_FillUsesOwnRecordAfterReorder(t *testing.T) {
	s, surf := newSession(t, "Ann met Bob", stubDetector{candidates: []redactors.Candidate{person("Ann"), person("Bob")}}, redactors.AlgorithmAscending)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	// Bob is redacted first, so FIFO order alone would pair his label with Ann
	pending := s.Pending()
	_, err = s.Accept(pending[1].ID)
	require.NoError(t, err)
	_, err = s.Accept(s.Pending()[0].ID)
	require.NoError(t, err)

	_, _, err = s.Fill()
	require.NoError(t, err)

	reverted, _ := s.Revert(current(t, surf))
	assert.Equal(t, "Ann met Bob", reverted)
}

func TestSession_FillIgnoresStaleLabelAfterHostEdit(t *testing.T) {
	email := redactors.Candidate{Value: "a@b.io", Type: redactors.TypeEmail, Confidence: 0.9}
	s, surf := newSession(t, "Mail a@b.io now", stubDetector{candidates: []redactors.Candidate{email}}, redactors.AlgorithmAscending)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	text, err := s.Accept(s.Pending()[0].ID)
	require.NoError(t, err)
	require.Equal(t, "Mail [EMAIL] now", text)

	// same range, different label
	require.NoError(t, surf.SetCurrentText("Mail [PHONE] now"))
	text, report, err := s.Fill()
	require.NoError(t, err)
	assert.Equal(t, "Mail Zendric now", text)
	assert.Equal(t, "fill: 1 of 1 processed", report.String())

	records := s.Store().Records()
	require.Len(t, records, 2)
	assert.Equal(t, redactors.TypeEmail, records[0].Type)
	assert.False(t, records[0].IsFilled(), "the email record must not fill a phone label")
	assert.Equal(t, redactors.TypePhone, records[1].Type)
	assert.Equal(t, "[PHONE]", records[1].Original)
}

func TestSession_FillUnknownLabelCreatesRecord(t *testing.T) {
	s, _ := newSession(t, "Write to [EMAIL] or [REDACTED]", stubDetector{}, redactors.AlgorithmAscending)

	text, report, err := s.Fill()
	require.NoError(t, err)
	assert.Equal(t, "Write to Zendric or Quillon", text)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, s.Store().Len())

	filled := s.Store().EntriesWithFake()
	require.Len(t, filled, 2)
	assert.Equal(t, "[EMAIL]", filled[0].Original)
	assert.Equal(t, redactors.TypeEmail, filled[0].Type)
}

func TestSession_FillWithoutLabels(t *testing.T) {
	s, _ := newSession(t, "nothing here", stubDetector{}, redactors.AlgorithmAscending)
	text, report, err := s.Fill()
	require.NoError(t, err)
	assert.Equal(t, "nothing here", text)
	assert.Equal(t, "fill: 0 of 0 processed", report.String())
}

func TestSession_ClearAndSend(t *testing.T) {
	s, _ := newSession(t, "Ann met Bob", stubDetector{candidates: []redactors.Candidate{person("Ann"), person("Bob")}}, redactors.AlgorithmAscending)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	pending := s.Pending()
	_, err = s.Accept(pending[0].ID)
	require.NoError(t, err)
	require.Equal(t, 1, s.Store().Len())

	s.Clear()
	assert.Equal(t, 0, s.Store().Len())
	assert.Empty(t, s.Pending())

	_, err = s.Scan(context.Background())
	require.NoError(t, err)
	s.Send()
	assert.Empty(t, s.Pending())
}

func TestSession_DetectorFailure(t *testing.T) {
	boom := redactors.NewRedactionError(redactors.ErrorDetector, "down", "test", errors.New("refused"))
	s, _ := newSession(t, "Ann", stubDetector{err: boom}, redactors.AlgorithmAscending)

	report, err := s.Scan(context.Background())
	assert.True(t, redactors.IsErrorType(err, redactors.ErrorDetector))
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, s.Pending())
}

func TestSession_ScanWithStaticDetector(t *testing.T) {
	det := detector.NewStaticDetector([]detector.Entity{
		{Type: "EMAIL_ADDRESS", Value: "a@b.com", Confidence: 0.95},
		{Type: "PERSON", Value: "Carol", Confidence: 0.95},
	}, detector.DefaultConfidenceThreshold)
	s, _ := newSession(t, "Email me at a@b.com please", det, redactors.AlgorithmAscending)

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	text, _, err := s.AcceptAll()
	require.NoError(t, err)
	assert.Equal(t, "Email me at [EMAIL] please", text)
	assert.False(t, strings.Contains(text, "a@b.com"))
}

type allowValues map[string]bool

func (a allowValues) Suppresses(c redactors.Candidate) bool { return a[c.Value] }

func TestSession_ScanSkipsAllowedValues(t *testing.T) {
	surf := surface.NewMemorySurface("Ann met Bob")
	det := stubDetector{candidates: []redactors.Candidate{person("Ann"), person("Bob")}}
	s := New(det, surf, nil, Options{Filter: allowValues{"Bob": true}}, nil)

	report, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scan: 1 of 2 processed", report.String())
	assert.Equal(t, []string{"PERSON allowed"}, report.Skipped)
	require.Len(t, s.Pending(), 1)
	assert.Equal(t, "Ann", s.Pending()[0].Span.Value)

	text, _, err := s.AcceptAll()
	require.NoError(t, err)
	assert.Equal(t, "[NAME] met Bob", text)
	assert.Len(t, det.candidates, 2)
}
