// Package export defines the contract between the orchestrator and the
// rendering backend that turns selected ranges into clip artifacts.
package export

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/abhisek-1221/korai-sub001/internal/models"
)

// AspectRatio is the output frame shape.
type AspectRatio string

const (
	AspectPortrait  AspectRatio = "9:16"
	AspectLandscape AspectRatio = "16:9"
	AspectSquare    AspectRatio = "1:1"
)

// Range is a selected [Start, End) span of the source, in seconds.
type Range = models.Range

var (
	ErrAspectRatio = errors.New("unsupported aspect ratio")
	ErrLanguage    = errors.New("unsupported target language")
	ErrRange       = errors.New("invalid range")
	ErrEmpty       = errors.New("selection is empty")
	// ErrArtifacts is returned when a render result does not cover its batch.
	ErrArtifacts = errors.New("artifact set does not match batch")
)

// ParseAspectRatio accepts exactly the supported ratios.
func ParseAspectRatio(s string) (AspectRatio, error) {
	switch a := AspectRatio(strings.TrimSpace(s)); a {
	case AspectPortrait, AspectLandscape, AspectSquare:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrAspectRatio, s)
}

var languageTag = regexp.MustCompile(`^[a-z]{2,3}$`)

// NormalizeLanguage maps "", "none" and "null" to no translation and
// otherwise returns the lowercase primary language tag.
func NormalizeLanguage(s string) (*string, error) {
	tag := strings.ToLower(strings.TrimSpace(s))
	switch tag {
	case "", "none", "null":
		return nil, nil
	}
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if !languageTag.MatchString(tag) {
		return nil, fmt.Errorf("%w: %q", ErrLanguage, s)
	}
	return &tag, nil
}

// ValidRange reports whether r is a finite, non-empty span starting at or after zero.
func ValidRange(r Range) bool {
	if math.IsNaN(r.Start) || math.IsNaN(r.End) || math.IsInf(r.Start, 0) || math.IsInf(r.End, 0) {
		return false
	}
	return r.Start >= 0 && r.Start < r.End
}

// Request is one render batch.
type Request struct {
	VideoID        uuid.UUID   `json:"video_id"`
	BatchID        uuid.UUID   `json:"batch_id"`
	SourceKey      string      `json:"source_key"`
	YoutubeURL     string      `json:"youtube_url,omitempty"`
	Selection      []Range     `json:"selection"`
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	TargetLanguage *string     `json:"target_language,omitempty"`
	Subtitles      bool        `json:"subtitles"`
}

// Validate checks the request shape without looking at the video.
func (r Request) Validate() error {
	if _, err := ParseAspectRatio(string(r.AspectRatio)); err != nil {
		return err
	}
	if len(r.Selection) == 0 {
		return ErrEmpty
	}
	for i, rg := range r.Selection {
		if !ValidRange(rg) {
			return fmt.Errorf("%w: selection[%d] [%g, %g]", ErrRange, i, rg.Start, rg.End)
		}
	}
	return nil
}

// Artifact is one rendered clip.
type Artifact struct {
	Range
	StorageKey     string      `json:"storage_key"`
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	TargetLanguage *string     `json:"target_language,omitempty"`
}

// Renderer renders a batch. Implementations are invoked at most once per
// batch and never retried internally.
type Renderer interface {
	Render(ctx context.Context, req Request) ([]Artifact, error)
}

// MatchArtifacts checks that artifacts hold exactly one keyed artifact per
// selected range.
func MatchArtifacts(selection []Range, artifacts []Artifact) error {
	if len(artifacts) == 0 {
		return fmt.Errorf("%w: no artifacts", ErrArtifacts)
	}
	if len(artifacts) != len(selection) {
		return fmt.Errorf("%w: %d artifacts for %d ranges", ErrArtifacts, len(artifacts), len(selection))
	}
	want := make(map[Range]int, len(selection))
	for _, r := range selection {
		want[r]++
	}
	for _, a := range artifacts {
		if strings.TrimSpace(a.StorageKey) == "" {
			return fmt.Errorf("%w: artifact [%g, %g] has no storage key", ErrArtifacts, a.Start, a.End)
		}
		if want[a.Range] == 0 {
			return fmt.Errorf("%w: unexpected artifact [%g, %g]", ErrArtifacts, a.Start, a.End)
		}
		want[a.Range]--
	}
	return nil
}
