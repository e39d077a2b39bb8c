package shareplay

// ========== 下载调度 ==========

// ActiveDownloads 正在占用下载槽位的条目数
func (s *State) ActiveDownloads() int {
	n := 0
	for _, it := range s.queue {
		if it.Active() {
			n++
		}
	}
	return n
}

// Schedule 按队列顺序挑选待获取条目填满空闲槽位。
// 被选中的条目立即标记为 Grabbing，避免重复调度。
func (s *State) Schedule() []Acquisition {
	free := MaxActiveDownloads - s.ActiveDownloads()
	if free <= 0 {
		return nil
	}
	var jobs []Acquisition
	for _, it := range s.queue {
		if free == 0 {
			break
		}
		if it.Status != ItemPending {
			continue
		}
		it.Status = ItemGrabbing
		jobs = append(jobs, Acquisition{ItemID: it.ID, Ref: it.Ref})
		free--
	}
	return jobs
}

// ========== 获取结果 ==========

// ApplyMetadata 元数据解析成功：Grabbing -> Downloading
func (s *State) ApplyMetadata(id, title string, duration int64, thumbnail string) bool {
	item, _ := s.Item(id)
	if item == nil || (item.Status != ItemGrabbing && item.Status != ItemPending) {
		return false
	}
	item.Title = titleOrUnknown(title)
	if duration > 0 {
		item.Duration = duration
	}
	if thumbnail != "" {
		item.ThumbnailPath = thumbnail
	}
	item.Error = ""
	item.Status = ItemDownloading
	return true
}

// FailItem 获取失败，记录错误并释放槽位
func (s *State) FailItem(id, message string) bool {
	item, _ := s.Item(id)
	if item == nil || item.Status == ItemReady || item.Status == ItemError {
		return false
	}
	if item.Title == PlaceholderTitle || item.Title == "" {
		item.Title = ErrorTitle
	}
	item.Error = message
	item.Status = ItemError
	return true
}

// CompleteDownload 下载完成：-> Ready
func (s *State) CompleteDownload(id, title, file, thumbnail string, duration int64) bool {
	item, _ := s.Item(id)
	if item == nil || item.Status == ItemReady || item.Status == ItemError {
		return false
	}
	if title != "" {
		item.Title = title
	} else if item.Title == PlaceholderTitle {
		item.Title = UnknownTitle
	}
	if duration > 0 {
		item.Duration = duration
	}
	if thumbnail != "" {
		item.ThumbnailPath = thumbnail
	}
	item.FilePath = file
	item.Error = ""
	item.Status = ItemReady
	return true
}

// ExpandPlaylist 用歌单条目替换占位条目，占位 ID 被丢弃
func (s *State) ExpandPlaylist(placeholderID string, entries []Entry) bool {
	if len(entries) == 0 {
		return false
	}
	_, at := s.Item(placeholderID)
	if at < 0 {
		return false
	}

	expanded := make([]*QueueItem, 0, len(entries))
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = PlaceholderTitle
		}
		expanded = append(expanded, &QueueItem{
			ID:       s.newID(),
			Ref:      e.Ref,
			Title:    title,
			Duration: e.Duration,
			Status:   ItemPending,
		})
	}

	queue := make([]*QueueItem, 0, len(s.queue)-1+len(expanded))
	queue = append(queue, s.queue[:at]...)
	queue = append(queue, expanded...)
	queue = append(queue, s.queue[at+1:]...)
	s.queue = queue

	if s.current > at {
		s.current += len(expanded) - 1
	}
	return true
}

// Location 返回已就绪条目的媒体文件路径
func (s *State) Location(id string) (string, bool) {
	item, _ := s.Item(id)
	if item == nil || item.Status != ItemReady || item.FilePath == "" {
		return "", false
	}
	return item.FilePath, true
}

// ThumbnailLocation 返回条目的封面路径
func (s *State) ThumbnailLocation(id string) (string, bool) {
	item, _ := s.Item(id)
	if item == nil || item.ThumbnailPath == "" {
		return "", false
	}
	return item.ThumbnailPath, true
}

func titleOrUnknown(title string) string {
	if title == "" {
		return UnknownTitle
	}
	return title
}
