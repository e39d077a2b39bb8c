package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// banded 生成左右两侧蓝色、中间红色的宽图
func banded(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x < w/4 || x >= w-w/4 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSquareThumbnailCropsCenter(t *testing.T) {
	out := SquareThumbnail(banded(200, 100), 64)

	assert.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())
	r, g, b, _ := out.At(32, 32).RGBA()
	assert.Greater(t, r, uint32(0xf000))
	assert.Less(t, g, uint32(0x1000))
	assert.Less(t, b, uint32(0x1000))
}

func TestThumbnailerMake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.Write([]byte("not an image"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, banded(120, 90))
	}))
	defer srv.Close()

	dir := t.TempDir()
	th := NewThumbnailer(32, srv.Client())

	path, err := th.Make(context.Background(), srv.URL+"/cover.png", dir, "item")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "item"+ThumbnailSuffix), path)
	assert.NoFileExists(t, filepath.Join(dir, "item_thumb.src"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())

	_, err = th.Make(context.Background(), srv.URL+"/broken", dir, "other")
	assert.Error(t, err)
}

type failingFile struct {
	writeErr error
	closeErr error
	closed   int
}

func (f *failingFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return len(p), nil
}

func (f *failingFile) Close() error {
	f.closed++
	return f.closeErr
}

func TestWriteJPEGReportsCloseAndWriteErrors(t *testing.T) {
	img := banded(8, 8)

	ok := &failingFile{}
	require.NoError(t, writeJPEG(ok, img))
	assert.Equal(t, 1, ok.closed)

	closeFails := &failingFile{closeErr: errors.New("disk full")}
	err := writeJPEG(closeFails, img)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, closeFails.closed)

	writeFails := &failingFile{writeErr: errors.New("io error")}
	err = writeJPEG(writeFails, img)
	assert.ErrorContains(t, err, "failed to encode thumbnail")
	assert.Equal(t, 1, writeFails.closed)
}
