// Package download runs acquisition jobs for queue items off the hub loop.
// Each job resolves a reference, fetches its thumbnail and media, and reports
// every step back through a Reporter; it never touches room state directly.
package download

import (
	"context"
	"math"
	"sync"
	"time"

	"StuffChat/core/media"
	"StuffChat/core/shareplay"
	"StuffChat/logger"
)

// Resolver 外部媒体解析器
type Resolver interface {
	Metadata(ctx context.Context, target string) (*media.Metadata, error)
	Playlist(ctx context.Context, target string) ([]media.PlaylistEntry, error)
	Download(ctx context.Context, target, dir, itemID string) (string, error)
}

// Thumbnailer 生成条目封面
type Thumbnailer interface {
	Make(ctx context.Context, url, dir, itemID string) (string, error)
}

// DurationProber 元数据缺少时长时探测下载文件
type DurationProber interface {
	Duration(ctx context.Context, file string) (float64, error)
}

// Reporter 接收任务结果，实现方负责把结果送回 hub 的命令队列
type Reporter interface {
	ReportMetadata(MetadataResult)
	ReportPlaylist(PlaylistResult)
	ReportDownload(DownloadResult)
}

// MetadataResult 元数据步骤结果
type MetadataResult struct {
	RoomID    string
	ItemID    string
	Success   bool
	Title     string
	Duration  int64
	Thumbnail string
	Error     string
}

// PlaylistResult 歌单展开结果
type PlaylistResult struct {
	RoomID        string
	PlaceholderID string
	Entries       []shareplay.Entry
}

// DownloadResult 下载步骤结果
type DownloadResult struct {
	RoomID    string
	ItemID    string
	Success   bool
	Title     string
	File      string
	Thumbnail string
	Duration  int64
	Error     string
}

// Config 调度参数
type Config struct {
	WorkDir    string
	Workers    int           // 全局同时运行的任务数
	JobTimeout time.Duration // 单个任务的总超时
}

// Orchestrator 每个任务一个 goroutine，用信号量限制全局并发
type Orchestrator struct {
	cfg      Config
	resolver Resolver
	thumbs   Thumbnailer
	prober   DurationProber

	sem chan struct{}
	wg  sync.WaitGroup
}

// Option 配置 Orchestrator
type Option func(*Orchestrator)

// WithThumbnailer 设置封面处理器
func WithThumbnailer(t Thumbnailer) Option {
	return func(o *Orchestrator) { o.thumbs = t }
}

// WithProber 设置时长探测器
func WithProber(p DurationProber) Option {
	return func(o *Orchestrator) { o.prober = p }
}

// New 创建下载调度器
func New(cfg Config, resolver Resolver, opts ...Option) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 15 * time.Minute
	}
	o := &Orchestrator{
		cfg:      cfg,
		resolver: resolver,
		sem:      make(chan struct{}, cfg.Workers),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch 立即返回，不会阻塞调用方
func (o *Orchestrator) Dispatch(r Reporter, roomID string, jobs []shareplay.Acquisition) {
	for _, job := range jobs {
		o.wg.Add(1)
		go func(job shareplay.Acquisition) {
			defer o.wg.Done()
			o.sem <- struct{}{}
			defer func() { <-o.sem }()
			o.run(r, roomID, job)
		}(job)
	}
}

// Wait 等待所有已派发的任务结束
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(r Reporter, roomID string, job shareplay.Acquisition) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.JobTimeout)
	defer cancel()

	target := media.Target(job.Ref)

	if media.IsPlaylist(job.Ref) {
		entries, err := o.resolver.Playlist(ctx, target)
		if err == nil && len(entries) > 0 {
			r.ReportPlaylist(PlaylistResult{
				RoomID:        roomID,
				PlaceholderID: job.ItemID,
				Entries:       toEntries(entries),
			})
			logger.Info("playlist expanded",
				logger.String("room", roomID),
				logger.String("item", job.ItemID),
				logger.Int("entries", len(entries)))
			return
		}
		logger.Warn("playlist resolution failed, treating as single item",
			logger.String("room", roomID),
			logger.String("item", job.ItemID),
			logger.ErrorField(err))
	}

	md, err := o.resolver.Metadata(ctx, target)
	if err != nil {
		logger.Warn("metadata resolution failed",
			logger.String("room", roomID),
			logger.String("item", job.ItemID),
			logger.ErrorField(err))
		r.ReportMetadata(MetadataResult{RoomID: roomID, ItemID: job.ItemID, Error: err.Error()})
		return
	}

	title := md.Title
	if title == "" {
		title = shareplay.UnknownTitle
	}

	// 先上报元数据让条目进入 Downloading，封面随下载结果一起带回
	r.ReportMetadata(MetadataResult{
		RoomID:   roomID,
		ItemID:   job.ItemID,
		Success:  true,
		Title:    title,
		Duration: md.Duration,
	})

	dir := shareplay.ItemDir(o.cfg.WorkDir, job.ItemID)
	thumb := o.thumbnail(ctx, md.Thumbnail, dir, roomID, job.ItemID)

	file, err := o.resolver.Download(ctx, target, dir, job.ItemID)
	if err != nil {
		logger.Warn("media download failed",
			logger.String("room", roomID),
			logger.String("item", job.ItemID),
			logger.ErrorField(err))
		r.ReportDownload(DownloadResult{
			RoomID:    roomID,
			ItemID:    job.ItemID,
			Title:     title,
			Thumbnail: thumb,
			Duration:  md.Duration,
			Error:     err.Error(),
		})
		return
	}

	duration := md.Duration
	if duration == 0 && o.prober != nil {
		if secs, err := o.prober.Duration(ctx, file); err == nil {
			duration = int64(math.Round(secs))
		} else {
			logger.Debug("duration probe failed", logger.String("file", file), logger.ErrorField(err))
		}
	}

	r.ReportDownload(DownloadResult{
		RoomID:    roomID,
		ItemID:    job.ItemID,
		Success:   true,
		Title:     title,
		File:      file,
		Thumbnail: thumb,
		Duration:  duration,
	})
	logger.Info("media downloaded",
		logger.String("room", roomID),
		logger.String("item", job.ItemID),
		logger.String("file", file))
}

// thumbnail 失败只降级为无封面
func (o *Orchestrator) thumbnail(ctx context.Context, url, dir, roomID, itemID string) string {
	if o.thumbs == nil || url == "" {
		return ""
	}
	path, err := o.thumbs.Make(ctx, url, dir, itemID)
	if err != nil {
		logger.Debug("thumbnail unavailable",
			logger.String("room", roomID),
			logger.String("item", itemID),
			logger.ErrorField(err))
		return ""
	}
	return path
}

func toEntries(in []media.PlaylistEntry) []shareplay.Entry {
	out := make([]shareplay.Entry, 0, len(in))
	for _, e := range in {
		out = append(out, shareplay.Entry{Ref: e.Ref, Title: e.Title, Duration: e.Duration})
	}
	return out
}
