package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
		err  error
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", want: "dQw4w9WgXcQ"},
		{url: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://youtu.be/dQw4w9WgXcQ?si=abc", want: "dQw4w9WgXcQ"},
		{url: "youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/shorts/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/playlist?list=PL123", err: ErrPlaylistURL},
		{url: "https://www.youtube.com/watch?list=PL123", err: ErrPlaylistURL},
		{url: "https://vimeo.com/12345", err: ErrInvalidURL},
		{url: "https://youtu.be/abc123", want: "abc123"},
		{url: "https://www.youtube.com/watch?v=short", want: "short"},
		{url: "https://youtu.be/", err: ErrInvalidURL},
		{url: "https://www.youtube.com/watch?v=a%2Fb", err: ErrInvalidURL},
		{url: "ftp://youtube.com/watch?v=dQw4w9WgXcQ", err: ErrInvalidURL},
		{url: "", err: ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := VideoID(tt.url)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
