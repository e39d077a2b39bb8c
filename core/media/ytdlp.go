package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"StuffChat/logger"

	"github.com/lrstanley/go-ytdlp"
)

// YtDlpConfig yt-dlp 调用参数
type YtDlpConfig struct {
	Binary        string
	CookieBrowser string
	Proxy         string
	AudioFormat   string
}

// YtDlp 通过 yt-dlp 命令行解析和下载
type YtDlp struct {
	cfg YtDlpConfig
}

// NewYtDlp 创建 yt-dlp 解析器
func NewYtDlp(cfg YtDlpConfig) *YtDlp {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "opus"
	}
	return &YtDlp{cfg: cfg}
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New().
		SetExecutable(y.cfg.Binary).
		Quiet().
		NoWarnings().
		IgnoreConfig()
	if y.cfg.Proxy != "" {
		cmd.Proxy(y.cfg.Proxy)
	}
	if y.cfg.CookieBrowser != "" {
		cmd.CookiesFromBrowser(y.cfg.CookieBrowser)
	}
	return cmd
}

// Metadata 只模拟不下载，读取标题、时长和封面地址
func (y *YtDlp) Metadata(ctx context.Context, target string) (*Metadata, error) {
	res, err := y.command().NoPlaylist().DumpJSON().Run(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata failed: %w", err)
	}
	return parseMetadataOutput(res.Stdout)
}

// Playlist 平铺歌单，不解析每一项的详情
func (y *YtDlp) Playlist(ctx context.Context, target string) ([]PlaylistEntry, error) {
	res, err := y.command().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(duration)s").
		Run(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp playlist failed: %w", err)
	}
	entries := parsePlaylistOutput(res.Stdout)
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	return entries, nil
}

// Download 提取音频到 dir/<itemID>.<ext>，返回最终文件路径
func (y *YtDlp) Download(ctx context.Context, target, dir, itemID string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create item dir: %w", err)
	}

	watcher, err := watchOutputs(dir, itemID)
	if err != nil {
		logger.Debug("output watcher unavailable, falling back to scan",
			logger.String("dir", dir),
			logger.ErrorField(err))
	}

	_, runErr := y.command().
		NoPlaylist().
		ExtractAudio().
		AudioFormat(y.cfg.AudioFormat).
		AudioQuality("0").
		Output(filepath.Join(dir, itemID+".%(ext)s")).
		Run(ctx, target)

	var seen []string
	if watcher != nil {
		seen = watcher.Stop()
	}
	if runErr != nil {
		return "", fmt.Errorf("yt-dlp download failed: %w", runErr)
	}
	return resolveOutput(dir, itemID, seen)
}

type ytdlpInfo struct {
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration"`
	Thumbnail string   `json:"thumbnail"`
}

// parseMetadataOutput 取最后一个非空行作为 JSON
func parseMetadataOutput(stdout string) (*Metadata, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var info ytdlpInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			return nil, fmt.Errorf("failed to parse yt-dlp json: %w", err)
		}
		md := &Metadata{Title: info.Title, Thumbnail: info.Thumbnail}
		if info.Duration != nil && *info.Duration > 0 {
			md.Duration = int64(math.Round(*info.Duration))
		}
		return md, nil
	}
	return nil, ErrNoMetadata
}

// parsePlaylistOutput 每行 url\ttitle\tduration
func parsePlaylistOutput(stdout string) []PlaylistEntry {
	var entries []PlaylistEntry
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		ref := strings.TrimSpace(parts[0])
		if ref == "" || ref == "NA" {
			continue
		}
		entry := PlaylistEntry{Ref: ref}
		if len(parts) > 1 && parts[1] != "NA" {
			entry.Title = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			if d, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil && d > 0 {
				entry.Duration = int64(math.Round(d))
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
