package media

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ThumbnailSuffix 条目封面文件名后缀
const ThumbnailSuffix = "_thumb.jpg"

var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp", ".frag"}

// outputWatcher 记录下载期间在条目目录里新建的文件
type outputWatcher struct {
	watcher *fsnotify.Watcher
	prefix  string

	mu      sync.Mutex
	created []string
	done    chan struct{}
}

func watchOutputs(dir, prefix string) (*outputWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	o := &outputWatcher{watcher: w, prefix: prefix, done: make(chan struct{})}
	go o.loop()
	return o, nil
}

func (o *outputWatcher) loop() {
	defer close(o.done)
	for {
		select {
		case ev, ok := <-o.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Write) {
				if isCandidate(filepath.Base(ev.Name), o.prefix) {
					o.mu.Lock()
					o.created = append(o.created, ev.Name)
					o.mu.Unlock()
				}
			}
		case _, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Stop 停止监听并返回按出现顺序记录的文件
func (o *outputWatcher) Stop() []string {
	o.watcher.Close()
	<-o.done
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.created...)
}

func isCandidate(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ThumbnailSuffix) {
		return false
	}
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

// resolveOutput 优先使用监听到的最后一个仍存在的文件，否则按前缀扫描目录
func resolveOutput(dir, prefix string, seen []string) (string, error) {
	for i := len(seen) - 1; i >= 0; i-- {
		if info, err := os.Stat(seen[i]); err == nil && !info.IsDir() {
			return seen[i], nil
		}
	}
	return FindOutput(dir, prefix)
}

// FindOutput 按 ID 前缀查找下载产物，多个候选时取最新的
func FindOutput(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", ErrOutputNotFound
	}

	type candidate struct {
		path  string
		mtime int64
	}
	var found []candidate
	for _, entry := range entries {
		if entry.IsDir() || !isCandidate(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{path: filepath.Join(dir, entry.Name()), mtime: info.ModTime().UnixNano()})
	}
	if len(found) == 0 {
		return "", ErrOutputNotFound
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mtime > found[j].mtime })
	return found[0].path, nil
}
