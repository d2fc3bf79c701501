// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package provenance keeps the link between an original value, the label that
// replaced it and any fake value later substituted for that label.
package provenance

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pii-redact/internal/observability"
	"pii-redact/internal/redactors"
	"pii-redact/internal/redactors/strategies"
	"pii-redact/internal/security"
)

const storeComponent = "provenance_store"

// maxFakeRedraws bounds how often a colliding name fake is drawn again
const maxFakeRedraws = 32

// MappingRecord is a copy of one store entry. Fake is meaningful only when
// FilledAt is set.
type MappingRecord struct {
	Seq       uint64            `json:"seq"`
	ID        string            `json:"id"`
	Original  string            `json:"original"`
	Masked    string            `json:"masked"`
	Fake      string            `json:"fake,omitempty"`
	Type      redactors.PIIType `json:"type"`
	Position  int               `json:"position"`
	CreatedAt time.Time         `json:"created_at"`
	FilledAt  *time.Time        `json:"filled_at,omitempty"`
}

// IsFilled reports whether a fake value has been assigned
func (r MappingRecord) IsFilled() bool {
	return r.FilledAt != nil
}

type entry struct {
	seq       uint64
	id        string
	original  *security.SecureString
	masked    string
	fake      string
	piiType   redactors.PIIType
	position  int
	createdAt time.Time
	filledAt  *time.Time
}

func (e *entry) record() MappingRecord {
	r := MappingRecord{
		Seq:       e.seq,
		ID:        e.id,
		Original:  e.original.Reveal(),
		Masked:    e.masked,
		Fake:      e.fake,
		Type:      e.piiType,
		Position:  e.position,
		CreatedAt: e.createdAt,
	}
	if e.filledAt != nil {
		t := *e.filledAt
		r.FilledAt = &t
	}
	return r
}

// Store owns every MappingRecord of a session. All methods are safe for
// concurrent use; one mutex guards the whole store.
type Store struct {
	mu        sync.Mutex
	entries   []*entry
	byID      map[string]*entry
	nextSeq   uint64
	generator strategies.Generator
	observer  *observability.StandardObserver
	now       func() time.Time
}

// NewStore creates an empty store that fills labels with generator
func NewStore(generator strategies.Generator, observer *observability.StandardObserver) *Store {
	if generator == nil {
		generator = strategies.NewSyntheticGenerator()
	}
	return &Store{
		byID:      make(map[string]*entry),
		nextSeq:   1,
		generator: generator,
		observer:  observer,
		now:       func() time.Time { return time.Now().UTC().Round(0) },
	}
}

// Record appends an unfilled record and returns its id
func (s *Store) Record(original, masked string, t redactors.PIIType, position int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(original, masked, t, position)
}

func (s *Store) recordLocked(original, masked string, t redactors.PIIType, position int) string {
	e := &entry{
		seq:       s.nextSeq,
		id:        uuid.NewString(),
		original:  security.NewSecureString(original),
		masked:    masked,
		piiType:   t,
		position:  position,
		createdAt: s.now(),
	}
	s.nextSeq++
	s.entries = append(s.entries, e)
	s.byID[e.id] = e
	return e.id
}

// Fill assigns a fake value to the first-created unfilled record matching
// (masked, t) and returns its id. An empty t matches any type, which is how
// the shared [REDACTED] label is filled. ok is false on a miss.
func (s *Store) Fill(t redactors.PIIType, masked string) (id string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.filledAt != nil || e.masked != masked {
			continue
		}
		if t != "" && e.piiType != t {
			continue
		}
		s.fillLocked(e)
		return e.id, true
	}

	s.observer.Logger(storeComponent).Debug("fill miss",
		zap.String("type", string(t)), zap.String("masked", masked))
	return "", false
}

// FillByID assigns a fake value to a specific record. Filling an already
// filled record is a no-op that returns the existing value.
func (s *Store) FillByID(id string) (MappingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return MappingRecord{}, redactors.NewRedactionError(redactors.ErrorProvenanceMiss,
			fmt.Sprintf("no record with id %s", id), storeComponent, nil)
	}
	if e.filledAt == nil {
		s.fillLocked(e)
	}
	return e.record(), nil
}

// FillOrCreate fills the first matching record, or records and fills a fresh
// one whose original is the label itself, so a fill never leaves a label
// without a record.
func (s *Store) FillOrCreate(t redactors.PIIType, masked string, position int) MappingRecord {
	if id, ok := s.Fill(t, masked); ok {
		r, _ := s.Get(id)
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	recordType := t
	if recordType == "" {
		recordType = redactors.PIIType("UNKNOWN")
	}
	id := s.recordLocked(masked, masked, recordType, position)
	e := s.byID[id]
	s.fillLocked(e)
	return e.record()
}

// fillLocked assigns a fake. A multi-token fake is drawn again while it shares
// a name with another filled fake of the same type, so a bare name quoted back
// later still points at one record.
func (s *Store) fillLocked(e *entry) {
	e.fake = s.generator.GenerateLike(e.piiType, e.original.Reveal())
	if redactors.IsMultiToken(e.piiType) {
		taken := s.takenNamesLocked(e)
		for attempt := 0; attempt < maxFakeRedraws && sharesName(e.fake, taken); attempt++ {
			e.fake = s.generator.GenerateLike(e.piiType, e.original.Reveal())
		}
	}
	filled := s.now()
	e.filledAt = &filled
}

// takenNamesLocked returns the case-folded names used by other filled fakes
// of e's type
func (s *Store) takenNamesLocked(e *entry) map[string]bool {
	taken := map[string]bool{}
	for _, other := range s.entries {
		if other == e || other.filledAt == nil || other.piiType != e.piiType {
			continue
		}
		_, parts := strategies.SplitTitle(other.fake)
		for _, p := range parts {
			taken[strings.ToLower(p)] = true
		}
	}
	return taken
}

func sharesName(fake string, taken map[string]bool) bool {
	_, parts := strategies.SplitTitle(fake)
	for _, p := range parts {
		if taken[strings.ToLower(p)] {
			return true
		}
	}
	return false
}

// Get returns a copy of one record
func (s *Store) Get(id string) (MappingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return MappingRecord{}, false
	}
	return e.record(), true
}

// EntriesWithFake returns every filled record in creation order
func (s *Store) EntriesWithFake() []MappingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MappingRecord
	for _, e := range s.entries {
		if e.filledAt != nil {
			out = append(out, e.record())
		}
	}
	return out
}

// Records returns every record in creation order
func (s *Store) Records() []MappingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MappingRecord, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.record())
	}
	return out
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear drops every record and scrubs the held originals
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Store) clearLocked() {
	for _, e := range s.entries {
		e.original.Clear()
	}
	s.entries = nil
	s.byID = make(map[string]*entry)
}

// Restore replaces the contents of the store with records, keeping their
// ids and order. Used to resume a persisted session.
func (s *Store) Restore(records []MappingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()

	s.nextSeq = 1
	for _, r := range records {
		e := &entry{
			seq:       r.Seq,
			id:        r.ID,
			original:  security.NewSecureString(r.Original),
			masked:    r.Masked,
			fake:      r.Fake,
			piiType:   r.Type,
			position:  r.Position,
			createdAt: r.CreatedAt,
		}
		if r.FilledAt != nil {
			t := *r.FilledAt
			e.filledAt = &t
		}
		if e.id == "" {
			e.id = uuid.NewString()
		}
		if e.seq == 0 || e.seq < s.nextSeq {
			e.seq = s.nextSeq
		}
		s.nextSeq = e.seq + 1
		s.entries = append(s.entries, e)
		s.byID[e.id] = e
	}
}
