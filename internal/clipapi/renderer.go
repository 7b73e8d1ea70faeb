package clipapi

import (
	"context"
	"fmt"

	"github.com/abhisek-1221/korai-sub001/internal/export"
)

// Renderer renders export batches through the process endpoint.
type Renderer struct {
	client *Client
}

// NewRenderer wraps a client as an export.Renderer.
func NewRenderer(c *Client) *Renderer {
	return &Renderer{client: c}
}

var _ export.Renderer = (*Renderer)(nil)

// Render implements export.Renderer.
func (r *Renderer) Render(ctx context.Context, req export.Request) ([]export.Artifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	clips := make([]ProcessClip, len(req.Selection))
	for i, rg := range req.Selection {
		clips[i] = ProcessClip{Start: rg.Start, End: rg.End}
	}

	resp, err := r.client.ProcessClips(ctx, ProcessRequest{
		S3Key:          req.SourceKey,
		YoutubeURL:     req.YoutubeURL,
		S3KeyYT:        req.SourceKey,
		Clips:          clips,
		TargetLanguage: req.TargetLanguage,
		AspectRatio:    string(req.AspectRatio),
		Subtitles:      req.Subtitles,
	})
	if err != nil {
		return nil, fmt.Errorf("render batch %s: %w", req.BatchID, err)
	}

	artifacts := make([]export.Artifact, 0, len(resp.ProcessedClips))
	for _, pc := range resp.ProcessedClips {
		artifacts = append(artifacts, export.Artifact{
			Range:          export.Range{Start: float64(pc.Start), End: float64(pc.End)},
			StorageKey:     pc.S3Key,
			AspectRatio:    req.AspectRatio,
			TargetLanguage: req.TargetLanguage,
		})
	}
	return artifacts, nil
}
