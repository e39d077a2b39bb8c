package media

import (
	"context"
	"encoding/json"
	"errors"

	"StuffChat/logger"
)

const (
	metadataKeyPrefix = "ytmeta:"
	playlistKeyPrefix = "ytlist:"
)

// Source 能解析元数据和歌单的后端
type Source interface {
	Metadata(ctx context.Context, target string) (*Metadata, error)
	Playlist(ctx context.Context, target string) ([]PlaylistEntry, error)
}

// Downloader 把媒体下载到条目目录
type Downloader interface {
	Download(ctx context.Context, target, dir, itemID string) (string, error)
}

// Cache 解析结果缓存，任何错误都按未命中处理
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Resolver 组合 yt-dlp、YouTube 兜底和缓存
type Resolver struct {
	primary    Source
	downloader Downloader
	fallback   Source
	cache      Cache
}

// ResolverOption 配置 Resolver
type ResolverOption func(*Resolver)

// WithFallback YouTube 链接在主解析失败时使用的后端
func WithFallback(src Source) ResolverOption {
	return func(r *Resolver) { r.fallback = src }
}

// WithCache 设置解析结果缓存
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// NewResolver 创建解析器
func NewResolver(primary Source, downloader Downloader, opts ...ResolverOption) *Resolver {
	r := &Resolver{primary: primary, downloader: downloader}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metadata 解析单曲元数据
func (r *Resolver) Metadata(ctx context.Context, target string) (*Metadata, error) {
	var md Metadata
	if r.cached(ctx, metadataKeyPrefix+target, &md) {
		return &md, nil
	}

	res, err := r.primary.Metadata(ctx, target)
	if err != nil && r.fallback != nil && IsYouTube(target) {
		logger.Warn("primary metadata resolver failed, trying fallback",
			logger.String("target", target),
			logger.ErrorField(err))
		res, err = r.fallback.Metadata(ctx, target)
	}
	if err != nil {
		return nil, err
	}
	r.store(ctx, metadataKeyPrefix+target, res)
	return res, nil
}

// Playlist 展开歌单
func (r *Resolver) Playlist(ctx context.Context, target string) ([]PlaylistEntry, error) {
	var entries []PlaylistEntry
	if r.cached(ctx, playlistKeyPrefix+target, &entries) && len(entries) > 0 {
		return entries, nil
	}

	res, err := r.primary.Playlist(ctx, target)
	if err != nil && r.fallback != nil && IsYouTube(target) {
		logger.Warn("primary playlist resolver failed, trying fallback",
			logger.String("target", target),
			logger.ErrorField(err))
		res, err = r.fallback.Playlist(ctx, target)
	}
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNoEntries
	}
	r.store(ctx, playlistKeyPrefix+target, res)
	return res, nil
}

// Download 下载媒体文件
func (r *Resolver) Download(ctx context.Context, target, dir, itemID string) (string, error) {
	if r.downloader == nil {
		return "", errors.New("no downloader configured")
	}
	return r.downloader.Download(ctx, target, dir, itemID)
}

func (r *Resolver) cached(ctx context.Context, key string, out interface{}) bool {
	if r.cache == nil {
		return false
	}
	data, err := r.cache.Get(ctx, key)
	if err != nil || len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Debug("discarding unreadable cache entry", logger.String("key", key), logger.ErrorField(err))
		return false
	}
	return true
}

func (r *Resolver) store(ctx context.Context, key string, v interface{}) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data); err != nil {
		logger.Warn("failed to cache resolver result", logger.String("key", key), logger.ErrorField(err))
	}
}
