// Package speakers maps diarization labels to display names across the
// segments of a transcription.
package speakers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/models"
)

// MaxNameLength bounds a display name.
const MaxNameLength = 100

// ErrValidation is returned for an unusable mapping.
var ErrValidation = errors.New("speakers: invalid mapping")

// Store applies a whole mapping in one transaction and reports how many
// segments changed. It returns store.ErrNotFound when the transcription does
// not belong to userID.
type Store interface {
	ApplySpeakerMappings(ctx context.Context, transcriptionID uuid.UUID, userID string, mapping map[string]string) (int64, error)
}

// Service validates and persists speaker mappings.
type Service struct {
	store Store
	log   logrus.FieldLogger
}

// NewService creates a service over store.
func NewService(store Store, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log}
}

// Normalize trims labels and names and rejects an empty mapping, a blank
// label or name, and names longer than MaxNameLength.
func Normalize(mapping map[string]string) (map[string]string, error) {
	if len(mapping) == 0 {
		return nil, fmt.Errorf("%w: no speakers given", ErrValidation)
	}
	out := make(map[string]string, len(mapping))
	for label, name := range mapping {
		l, n := strings.TrimSpace(label), strings.TrimSpace(name)
		if l == "" {
			return nil, fmt.Errorf("%w: blank speaker label", ErrValidation)
		}
		if n == "" {
			return nil, fmt.Errorf("%w: blank name for %s", ErrValidation, l)
		}
		if len([]rune(n)) > MaxNameLength {
			return nil, fmt.Errorf("%w: name for %s exceeds %d characters", ErrValidation, l, MaxNameLength)
		}
		if _, dup := out[l]; dup {
			return nil, fmt.Errorf("%w: speaker %s given twice", ErrValidation, l)
		}
		out[l] = n
	}
	return out, nil
}

// ApplyMappings persists mapping for a transcription owned by userID. Either
// every label is applied or, on error, none is.
func (s *Service) ApplyMappings(ctx context.Context, transcriptionID uuid.UUID, userID string, mapping map[string]string) (int64, error) {
	m, err := Normalize(mapping)
	if err != nil {
		return 0, err
	}
	n, err := s.store.ApplySpeakerMappings(ctx, transcriptionID, userID, m)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{
		"transcription_id": transcriptionID,
		"user_id":          userID,
		"speakers":         len(m),
		"segments":         n,
	}).Info("Speaker mappings applied")
	return n, nil
}

// ApplyMapping returns a copy of segments with mapping applied. Segments
// whose label is not in mapping keep their current name.
func ApplyMapping(segments []models.TranscriptionSegment, mapping map[string]string) []models.TranscriptionSegment {
	out := make([]models.TranscriptionSegment, len(segments))
	for i, seg := range segments {
		if name, ok := mapping[seg.Speaker]; ok {
			n := name
			seg.SpeakerName = &n
		} else if seg.SpeakerName != nil {
			n := *seg.SpeakerName
			seg.SpeakerName = &n
		}
		out[i] = seg
	}
	return out
}

// Mappings reports the display name currently assigned to each label.
func Mappings(segments []models.TranscriptionSegment) map[string]string {
	out := make(map[string]string)
	for _, seg := range segments {
		if seg.SpeakerName != nil {
			out[seg.Speaker] = *seg.SpeakerName
		}
	}
	return out
}
