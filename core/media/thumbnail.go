package media

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"StuffChat/core/utils"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Thumbnailer 下载封面，裁剪为正方形并缩放
type Thumbnailer struct {
	Size   int
	client *http.Client
}

// NewThumbnailer 创建封面处理器
func NewThumbnailer(size int, client *http.Client) *Thumbnailer {
	if size <= 0 {
		size = 320
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Thumbnailer{Size: size, client: client}
}

// Make 生成 dir/<itemID>_thumb.jpg 并返回路径
func (t *Thumbnailer) Make(ctx context.Context, url, dir, itemID string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create item dir: %w", err)
	}

	src := filepath.Join(dir, itemID+"_thumb.src")
	defer os.Remove(src)
	if err := utils.DownloadFile(ctx, t.client, url, src); err != nil {
		return "", err
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open thumbnail: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("failed to decode thumbnail: %w", err)
	}

	dest := filepath.Join(dir, itemID+ThumbnailSuffix)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create thumbnail: %w", err)
	}
	if err := writeJPEG(out, SquareThumbnail(img, t.Size)); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// writeJPEG 编码并关闭文件，两步的错误都会返回
func writeJPEG(out io.WriteCloser, img image.Image) error {
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 85}); err != nil {
		out.Close()
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return nil
}

// SquareThumbnail 居中裁剪为正方形后缩放到 size x size
func SquareThumbnail(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	return dst
}
