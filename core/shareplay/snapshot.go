package shareplay

// ItemView 条目的对外表示
type ItemView struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	DurationSeconds int64      `json:"durationSeconds"`
	Status          ItemStatus `json:"status"`
	Error           string     `json:"error,omitempty"`
	HasThumbnail    bool       `json:"hasThumbnail"`
}

// Snapshot 广播给客户端的完整播放状态
type Snapshot struct {
	Queue        []ItemView `json:"queue"`
	CurrentIndex *int       `json:"currentIndex"`
	Status       Status     `json:"status"`
	RepeatMode   RepeatMode `json:"repeatMode"`
	Position     float64    `json:"position"`
	ServerTime   int64      `json:"serverTime"` // 毫秒，客户端据此外推播放位置
}

// Snapshot 生成当前状态的快照
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Queue:      make([]ItemView, 0, len(s.queue)),
		Status:     s.status,
		RepeatMode: s.repeat,
		Position:   s.EffectivePosition(),
		ServerTime: s.now().UnixMilli(),
	}
	if idx, ok := s.CurrentIndex(); ok {
		snap.CurrentIndex = &idx
	}
	for _, it := range s.queue {
		snap.Queue = append(snap.Queue, ItemView{
			ID:              it.ID,
			URL:             it.Ref,
			Title:           it.Title,
			DurationSeconds: it.Duration,
			Status:          it.Status,
			Error:           it.Error,
			HasThumbnail:    it.ThumbnailPath != "",
		})
	}
	return snap
}
