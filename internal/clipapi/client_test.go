package clipapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek-1221/korai-sub001/internal/export"
)

func testClient(srv *httptest.Server) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(Config{
		IdentifyURL:   srv.URL + "/identify",
		ProcessURL:    srv.URL + "/process",
		TranscribeURL: srv.URL + "/transcribe",
		Token:         "secret",
		Timeout:       5 * time.Second,
		Retry:         RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2},
	}, log)
}

func TestIdentifyDecodesMixedNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/identify", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req IdentifyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "youtube-videos/v1/yt", req.S3KeyYT)

		_, _ = io.WriteString(w, `{
			"identified_clips": [
				{"start": "12.5", "end": 40, "title": "Hook", "summary": "strong open", "virality_score": "0.92", "related_topics": ["ai"], "transcript": "hello"}
			],
			"total_clips": "1",
			"video_duration": 754,
			"detected_language": "en",
			"s3_path": "youtube-videos/v1/yt"
		}`)
	}))
	defer srv.Close()

	resp, err := testClient(srv).Identify(context.Background(), IdentifyRequest{
		YoutubeURL: "https://youtu.be/dQw4w9WgXcQ",
		S3KeyYT:    "youtube-videos/v1/yt",
	})
	require.NoError(t, err)
	require.Len(t, resp.IdentifiedClips, 1)
	c := resp.IdentifiedClips[0]
	assert.Equal(t, 12.5, float64(c.Start))
	assert.Equal(t, 40.0, float64(c.End))
	assert.Equal(t, 0.92, float64(c.ViralityScore))
	assert.Equal(t, 1.0, float64(resp.TotalClips))
	assert.Equal(t, Text("754"), resp.VideoDuration)
}

func TestIdentifyRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"identified_clips": []}`)
	}))
	defer srv.Close()

	_, err := testClient(srv).Identify(context.Background(), IdentifyRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestIdentifyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad youtube url", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv).Identify(context.Background(), IdentifyRequest{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "bad youtube url")
	assert.Equal(t, int32(1), calls.Load())
}

func TestProcessIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv).ProcessClips(context.Background(), ProcessRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRendererMapsArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ProcessRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "9:16", req.AspectRatio)
		if assert.NotNil(t, req.TargetLanguage) {
			assert.Equal(t, "es", *req.TargetLanguage)
		}
		assert.Len(t, req.Clips, 2)

		_, _ = io.WriteString(w, `{"processed_clips": [
			{"start": 0, "end": 10, "s3_key": "processed/0.mp4"},
			{"start": "20", "end": "30", "s3_key": "processed/1.mp4"}
		]}`)
	}))
	defer srv.Close()

	lang := "es"
	req := export.Request{
		SourceKey:      "youtube-videos/v1/yt",
		Selection:      []export.Range{{Start: 0, End: 10}, {Start: 20, End: 30}},
		AspectRatio:    export.AspectPortrait,
		TargetLanguage: &lang,
	}
	artifacts, err := NewRenderer(testClient(srv)).Render(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "processed/1.mp4", artifacts[1].StorageKey)
	assert.Equal(t, export.AspectPortrait, artifacts[1].AspectRatio)
	assert.NoError(t, export.MatchArtifacts(req.Selection, artifacts))
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcribe", r.URL.Path)
		_, _ = io.WriteString(w, `{"transcription": [{"start": 0, "end": 2.5, "text": "hi", "speaker": "SPEAKER_00"}]}`)
	}))
	defer srv.Close()

	resp, err := testClient(srv).Transcribe(context.Background(), TranscribeRequest{YoutubeURL: "https://youtu.be/x"})
	require.NoError(t, err)
	require.Len(t, resp.Transcription, 1)
	assert.Equal(t, "SPEAKER_00", resp.Transcription[0].Speaker)
	assert.Equal(t, 2.5, float64(resp.Transcription[0].End))
}
