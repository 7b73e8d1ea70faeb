// Package youtube validates YouTube video URLs.
package youtube

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidURL  = errors.New("not a valid YouTube video URL")
	ErrPlaylistURL = errors.New("playlist URLs are not supported, link a single video")
)

var videoID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var hosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
	"www.youtu.be":      true,
}

// VideoID extracts the video id from a watch, short, embed,
// shorts or live URL.
func VideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}
	host := strings.ToLower(u.Hostname())
	if !hosts[host] {
		return "", ErrInvalidURL
	}

	var id string
	path := strings.Trim(u.Path, "/")
	switch {
	case strings.HasSuffix(host, "youtu.be"):
		id = firstSegment(path)
	case path == "watch":
		id = u.Query().Get("v")
	case path == "playlist":
		return "", ErrPlaylistURL
	default:
		for _, prefix := range []string{"embed/", "v/", "shorts/", "live/"} {
			if strings.HasPrefix(path, prefix) {
				id = firstSegment(strings.TrimPrefix(path, prefix))
				break
			}
		}
	}

	if !videoID.MatchString(id) {
		if id == "" && u.Query().Get("list") != "" {
			return "", ErrPlaylistURL
		}
		return "", ErrInvalidURL
	}
	return id, nil
}

// Validate reports whether raw links a single YouTube video.
func Validate(raw string) error {
	_, err := VideoID(raw)
	return err
}

func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
