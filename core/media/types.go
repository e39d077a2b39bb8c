// Package media talks to the external media resolver (yt-dlp), with an
// in-process YouTube fallback, and prepares thumbnails for queue items.
package media

// Metadata 单曲元数据
type Metadata struct {
	Title     string `json:"title"`
	Duration  int64  `json:"duration"` // 秒，未知为 0
	Thumbnail string `json:"thumbnail,omitempty"`
}

// PlaylistEntry 展开后的歌单条目
type PlaylistEntry struct {
	Ref      string `json:"ref"`
	Title    string `json:"title"`
	Duration int64  `json:"duration"`
}
