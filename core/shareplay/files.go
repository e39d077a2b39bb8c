package shareplay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"StuffChat/logger"
)

// ItemDir 条目专属的下载目录
func ItemDir(base, itemID string) string {
	return filepath.Join(base, itemID)
}

// DirRemover 在临时目录中删除条目文件。
// 先删登记过的路径，再按 ID 前缀扫描目录，因为解析器产出的扩展名无法预知。
type DirRemover struct {
	Base string
}

// NewDirRemover 创建基于目录的文件清理器
func NewDirRemover(base string) *DirRemover {
	return &DirRemover{Base: base}
}

// RemoveItemFiles 删除失败只记日志
func (r *DirRemover) RemoveItemFiles(itemID string, paths ...string) {
	for _, p := range paths {
		removeLogged(itemID, p)
	}
	if itemID == "" || r.Base == "" {
		return
	}

	entries, err := os.ReadDir(r.Base)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to scan temp dir",
				logger.String("dir", r.Base),
				logger.ErrorField(err))
		}
		return
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), itemID) {
			removeLogged(itemID, filepath.Join(r.Base, entry.Name()))
		}
	}
}

func removeLogged(itemID, path string) {
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove item file",
			logger.String("item", itemID),
			logger.String("path", path),
			logger.ErrorField(err))
	}
}

// PrepareWorkDir 清空并重建临时目录，启动时调用
func PrepareWorkDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean temp dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create temp dir %s: %w", dir, err)
	}
	return nil
}
