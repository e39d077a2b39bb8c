package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"StuffChat/config"
	"StuffChat/core/media"

	"github.com/spf13/cobra"
)

var resolveTimeout time.Duration

var resolveCmd = &cobra.Command{
	Use:   "resolve <url|搜索词>",
	Short: "解析媒体元数据",
	Long:  `用与服务端相同的解析链（yt-dlp，失败时回退到内置 YouTube 客户端）解析单曲或歌单，输出 JSON。`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		ref := strings.Join(args, " ")

		ytdlp := media.NewYtDlp(media.YtDlpConfig{
			Binary:        cfg.YtDlpPath,
			CookieBrowser: cfg.YtDlpCookieBrowser,
			Proxy:         cfg.YtDlpProxy,
			AudioFormat:   cfg.AudioFormat,
		})
		resolver := media.NewResolver(ytdlp, ytdlp, media.WithFallback(media.NewYouTube()))

		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		var out interface{}
		if media.IsPlaylist(ref) {
			entries, err := resolver.Playlist(ctx, ref)
			if err != nil {
				log.Fatalf("歌单解析失败: %v", err)
			}
			out = entries
		} else {
			meta, err := resolver.Metadata(ctx, media.Target(ref))
			if err != nil {
				log.Fatalf("元数据解析失败: %v", err)
			}
			out = meta
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	},
}

func init() {
	resolveCmd.Flags().DurationVarP(&resolveTimeout, "timeout", "t", 60*time.Second, "解析超时")
	rootCmd.AddCommand(resolveCmd)
}
