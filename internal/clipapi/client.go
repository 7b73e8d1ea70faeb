// Package clipapi is the HTTP client for the external identification,
// rendering and transcription services.
package clipapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 2048

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("clip api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("clip api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Config holds the service endpoints and client limits.
type Config struct {
	IdentifyURL       string
	ProcessURL        string
	TranscribeURL     string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             RetryConfig
}

// Client calls the worker-side services.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// New creates a client. Zero limits mean no throttling.
func New(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = DefaultRetryConfig
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: limiter,
		log:     log,
	}
}

// Identify requests candidate clips for a video. Transient failures are retried.
func (c *Client) Identify(ctx context.Context, req IdentifyRequest) (*IdentifyResponse, error) {
	return retryDo(ctx, c.cfg.Retry, c.log, func() (*IdentifyResponse, error) {
		var out IdentifyResponse
		if err := c.post(ctx, c.cfg.IdentifyURL, req, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// ProcessClips renders a batch. It is sent once and never retried, so a
// batch is rendered at most once.
func (c *Client) ProcessClips(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	var out ProcessResponse
	if err := c.post(ctx, c.cfg.ProcessURL, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcribe requests a speaker-labelled transcript. Transient failures are retried.
func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResponse, error) {
	return retryDo(ctx, c.cfg.Retry, c.log, func() (*TranscribeResponse, error) {
		var out TranscribeResponse
		if err := c.post(ctx, c.cfg.TranscribeURL, req, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func (c *Client) post(ctx context.Context, url string, in, out any) error {
	if url == "" {
		return errors.New("clip api: endpoint not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("clip api: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("clip api: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	entry := c.log.WithFields(logrus.Fields{
		"url":         url,
		"status_code": resp.StatusCode,
		"latency_ms":  time.Since(start).Milliseconds(),
	})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		entry.Warn("Clip API call failed")
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	entry.Debug("Clip API call completed")

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("clip api: decode response: %w", err)
	}
	return nil
}
