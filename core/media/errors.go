package media

import "errors"

var (
	// ErrNoEntries 歌单解析成功但没有任何条目
	ErrNoEntries = errors.New("playlist has no entries")
	// ErrOutputNotFound 下载结束后找不到产出文件
	ErrOutputNotFound = errors.New("downloaded file not found")
	// ErrNoMetadata 解析器输出中没有可用的元数据
	ErrNoMetadata = errors.New("no metadata in resolver output")
)
