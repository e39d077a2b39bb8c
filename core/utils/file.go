package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// MaxDownloadBytes 单个辅助文件（封面等）的大小上限
const MaxDownloadBytes = 10 << 20

// DownloadFile 下载文件到指定路径
func DownloadFile(ctx context.Context, client *http.Client, url, filepath string) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("下载文件失败: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("下载文件失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载文件失败，状态码: %d", resp.StatusCode)
	}

	out, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return fmt.Errorf("保存文件失败: %w", err)
	}
	if n > MaxDownloadBytes {
		return fmt.Errorf("文件超过大小上限 %d 字节", MaxDownloadBytes)
	}

	return nil
}
