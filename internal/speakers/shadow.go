package speakers

import (
	"errors"
	"sync"

	"github.com/abhisek-1221/korai-sub001/internal/models"
)

// ErrNoPending is returned by Commit and Rollback with nothing applied.
var ErrNoPending = errors.New("speakers: no pending mapping")

// Shadow is a local copy of a transcription's segments that shows a mapping
// before the server confirms it. Apply stages a mapping over the last
// confirmed segments; Commit makes it the confirmed state and Rollback
// discards it.
type Shadow struct {
	mu        sync.Mutex
	confirmed []models.TranscriptionSegment
	pending   []models.TranscriptionSegment
}

// NewShadow creates a shadow over the server's segments.
func NewShadow(segments []models.TranscriptionSegment) *Shadow {
	return &Shadow{confirmed: ApplyMapping(segments, nil)}
}

// Apply stages mapping and returns the segments as they should be shown.
// Applying again before Commit or Rollback stacks onto the staged copy.
func (s *Shadow) Apply(mapping map[string]string) []models.TranscriptionSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.confirmed
	if s.pending != nil {
		base = s.pending
	}
	s.pending = ApplyMapping(base, mapping)
	return ApplyMapping(s.pending, nil)
}

// Commit accepts the staged copy as confirmed.
func (s *Shadow) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return ErrNoPending
	}
	s.confirmed, s.pending = s.pending, nil
	return nil
}

// Rollback discards the staged copy and returns the confirmed segments.
func (s *Shadow) Rollback() ([]models.TranscriptionSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, ErrNoPending
	}
	s.pending = nil
	return ApplyMapping(s.confirmed, nil), nil
}

// Reconcile replaces the confirmed segments with a fresh server read and
// drops anything staged.
func (s *Shadow) Reconcile(segments []models.TranscriptionSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = ApplyMapping(segments, nil)
	s.pending = nil
}

// Segments returns what should be shown: the staged copy if any, else the
// confirmed one.
func (s *Shadow) Segments() []models.TranscriptionSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return ApplyMapping(s.pending, nil)
	}
	return ApplyMapping(s.confirmed, nil)
}

// Pending reports whether a mapping is staged.
func (s *Shadow) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}
