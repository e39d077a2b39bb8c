package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTarget(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc", "https://www.youtube.com/watch?v=abc"},
		{"youtu.be/abc", "youtu.be/abc"},
		{"soundcloud.com/artist/track", "soundcloud.com/artist/track"},
		{"HTTPS://Example.com/Track", "HTTPS://Example.com/Track"},
		{"YouTube.com/watch?v=abc", "YouTube.com/watch?v=abc"},
		{"check youtu.be/abc", "check youtu.be/abc"},
		{"never gonna give you up", "ytsearch1:never gonna give you up"},
		{"  daft punk  ", "ytsearch1:daft punk"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, Target(tt.ref))
		})
	}
}

func TestIsPlaylist(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"https://www.youtube.com/playlist?list=PL123", true},
		{"https://www.youtube.com/watch?v=abc&list=PL123", false},
		{"https://music.youtube.com/watch?list=PL123", true},
		{"https://soundcloud.com/artist/sets/mix", true},
		{"https://artist.bandcamp.com/album/record", true},
		{"https://www.youtube.com/watch?v=abc", false},
		{"HTTPS://WWW.YOUTUBE.COM/playlist?list=PL123", true},
		{"lofi playlist", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaylist(tt.ref))
		})
	}
}

func TestIsYouTube(t *testing.T) {
	assert.True(t, IsYouTube("https://www.youtube.com/watch?v=abc"))
	assert.True(t, IsYouTube("youtu.be/abc"))
	assert.True(t, IsYouTube("https://music.youtube.com/playlist?list=x"))
	assert.False(t, IsYouTube("https://vimeo.com/1"))
	assert.False(t, IsYouTube("https://notyoutube.com/x"))
}
