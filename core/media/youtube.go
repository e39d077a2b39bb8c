package media

import (
	"context"
	"fmt"

	"github.com/kkdai/youtube/v2"
)

// YouTube 进程内的 YouTube 元数据解析，yt-dlp 失败时兜底
type YouTube struct {
	client youtube.Client
}

// NewYouTube 创建 YouTube 客户端
func NewYouTube() *YouTube {
	return &YouTube{}
}

// Metadata 读取视频标题、时长和最大的封面
func (y *YouTube) Metadata(ctx context.Context, ref string) (*Metadata, error) {
	video, err := y.client.GetVideoContext(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("youtube metadata failed: %w", err)
	}
	md := &Metadata{
		Title:    video.Title,
		Duration: int64(video.Duration.Seconds()),
	}
	var best uint
	for _, thumb := range video.Thumbnails {
		if thumb.Width >= best {
			best = thumb.Width
			md.Thumbnail = thumb.URL
		}
	}
	return md, nil
}

// Playlist 展开 YouTube 歌单
func (y *YouTube) Playlist(ctx context.Context, ref string) ([]PlaylistEntry, error) {
	playlist, err := y.client.GetPlaylistContext(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("youtube playlist failed: %w", err)
	}
	entries := make([]PlaylistEntry, 0, len(playlist.Videos))
	for _, v := range playlist.Videos {
		if v == nil || v.ID == "" {
			continue
		}
		entries = append(entries, PlaylistEntry{
			Ref:      "https://www.youtube.com/watch?v=" + v.ID,
			Title:    v.Title,
			Duration: int64(v.Duration.Seconds()),
		})
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	return entries, nil
}
