package shareplay

// ItemStatus 队列条目的获取状态
type ItemStatus string

const (
	ItemPending     ItemStatus = "pending"
	ItemGrabbing    ItemStatus = "grabbing"
	ItemDownloading ItemStatus = "downloading"
	ItemReady       ItemStatus = "ready"
	ItemError       ItemStatus = "error"
)

const (
	PlaceholderTitle = "Grabbing..."
	UnknownTitle     = "Unknown Title"
	ErrorTitle       = "Error loading song"
)

// QueueItem 播放队列中的一首歌
type QueueItem struct {
	ID            string
	Ref           string // URL 或搜索词
	Title         string
	Duration      int64 // 秒，未知时为 0
	FilePath      string
	ThumbnailPath string
	Error         string
	Status        ItemStatus
}

// Active 是否占用下载槽位
func (it *QueueItem) Active() bool {
	return it.Status == ItemGrabbing || it.Status == ItemDownloading
}

// Paths 返回条目在磁盘上登记过的文件
func (it *QueueItem) Paths() []string {
	var paths []string
	if it.FilePath != "" {
		paths = append(paths, it.FilePath)
	}
	if it.ThumbnailPath != "" {
		paths = append(paths, it.ThumbnailPath)
	}
	return paths
}

// Entry 歌单展开后的一项
type Entry struct {
	Ref      string
	Title    string
	Duration int64
}

// Acquisition 一次被调度出去的获取任务
type Acquisition struct {
	ItemID string
	Ref    string
}
