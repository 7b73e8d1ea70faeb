package clipapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Number decodes JSON values the worker APIs send either as numbers or as
// numeric strings.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("clipapi: %q is not a number", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Text decodes JSON values sent either as strings or as numbers into a string.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

// IdentifyRequest asks the identification service for candidate clips.
type IdentifyRequest struct {
	YoutubeURL string `json:"youtube_url"`
	S3KeyYT    string `json:"s3_key_yt"`
	Prompt     string `json:"prompt"`
}

// IdentifiedClip is one candidate returned by identification.
type IdentifiedClip struct {
	Start         Number   `json:"start"`
	End           Number   `json:"end"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	ViralityScore Number   `json:"virality_score"`
	RelatedTopics []string `json:"related_topics"`
	Transcript    string   `json:"transcript"`
}

// IdentifyResponse is the identification service reply.
type IdentifyResponse struct {
	IdentifiedClips  []IdentifiedClip `json:"identified_clips"`
	TotalClips       Number           `json:"total_clips"`
	VideoDuration    Text             `json:"video_duration"`
	DetectedLanguage Text             `json:"detected_language"`
	S3Path           Text             `json:"s3_path"`
}

// ProcessClip is one range to render.
type ProcessClip struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ProcessRequest asks the rendering service for a batch of clips.
type ProcessRequest struct {
	S3Key          string        `json:"s3_key"`
	YoutubeURL     string        `json:"youtube_url,omitempty"`
	S3KeyYT        string        `json:"s3_key_yt,omitempty"`
	Clips          []ProcessClip `json:"clips"`
	TargetLanguage *string       `json:"target_language"`
	AspectRatio    string        `json:"aspect_ratio"`
	Subtitles      bool          `json:"subtitles"`
}

// ProcessedClip is one rendered artifact.
type ProcessedClip struct {
	Start Number `json:"start"`
	End   Number `json:"end"`
	S3Key string `json:"s3_key"`
}

// ProcessResponse is the rendering service reply.
type ProcessResponse struct {
	ProcessedClips []ProcessedClip `json:"processed_clips"`
}

// TranscribeRequest asks for a speaker-labelled transcript.
type TranscribeRequest struct {
	YoutubeURL string `json:"youtube_url"`
}

// TranscribedSegment is one utterance.
type TranscribedSegment struct {
	Start   Number `json:"start"`
	End     Number `json:"end"`
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
}

// TranscribeResponse is the transcription service reply.
type TranscribeResponse struct {
	Transcription []TranscribedSegment `json:"transcription"`
}
