// Package shareplay implements the per-room "listen together" playback state
// machine: the queue, the playback clock, the repeat policy and the rules that
// decide which queue items get a download slot.
//
// A State is not safe for concurrent use. It is owned by the room hub loop.
package shareplay

import (
	"math"
	"time"

	"StuffChat/logger"

	"github.com/google/uuid"
)

// Status 播放状态
type Status string

const (
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// RepeatMode 循环模式
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

const (
	// MaxActiveDownloads 每个房间同时处于 Grabbing/Downloading 的条目上限
	MaxActiveDownloads = 2
	// AutoAdvanceDebounce 两次 next 之间的最小间隔
	AutoAdvanceDebounce = time.Second
	// RestartThreshold prev 在播放超过该秒数时回到开头而不是上一首
	RestartThreshold = 3.0
)

const noTrack = -1

// FileRemover 删除条目在磁盘上的文件
type FileRemover interface {
	RemoveItemFiles(itemID string, paths ...string)
}

type nopRemover struct{}

func (nopRemover) RemoveItemFiles(string, ...string) {}

// State 一个房间的共享播放状态
type State struct {
	queue       []*QueueItem
	current     int
	status      Status
	anchor      time.Time // 仅在 Playing 时有效
	position    float64   // 暂停、跳转、切歌时的累计位置（秒）
	repeat      RepeatMode
	lastAdvance time.Time

	now   func() time.Time
	files FileRemover
	newID func() string
}

// Option 配置 State
type Option func(*State)

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithFileRemover 设置文件清理器
func WithFileRemover(r FileRemover) Option {
	return func(s *State) { s.files = r }
}

// WithIDGenerator 替换条目 ID 生成器
func WithIDGenerator(gen func() string) Option {
	return func(s *State) { s.newID = gen }
}

// NewState 创建空的播放状态
func NewState(opts ...Option) *State {
	s := &State{
		current: noTrack,
		status:  StatusPaused,
		repeat:  RepeatOff,
		now:     time.Now,
		files:   nopRemover{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ========== 查询 ==========

// Len 队列长度
func (s *State) Len() int { return len(s.queue) }

// Status 当前播放状态
func (s *State) Status() Status { return s.status }

// Repeat 当前循环模式
func (s *State) Repeat() RepeatMode { return s.repeat }

// CurrentIndex 当前选中的下标，没有时返回 false
func (s *State) CurrentIndex() (int, bool) {
	if s.current == noTrack {
		return 0, false
	}
	return s.current, true
}

// Current 当前选中的条目
func (s *State) Current() *QueueItem {
	if s.current < 0 || s.current >= len(s.queue) {
		return nil
	}
	return s.queue[s.current]
}

// Items 队列中的全部条目（只读）
func (s *State) Items() []*QueueItem { return s.queue }

// Item 按 ID 查找条目
func (s *State) Item(id string) (*QueueItem, int) {
	for i, it := range s.queue {
		if it.ID == id {
			return it, i
		}
	}
	return nil, -1
}

// EffectivePosition 当前播放位置（秒）
func (s *State) EffectivePosition() float64 {
	if s.status != StatusPlaying {
		return s.position
	}
	return s.position + s.now().Sub(s.anchor).Seconds()
}

// ========== 播放控制 ==========

// Add 追加一个待获取条目并返回其 ID
func (s *State) Add(ref string) string {
	item := &QueueItem{
		ID:     s.newID(),
		Ref:    ref,
		Title:  PlaceholderTitle,
		Status: ItemPending,
	}
	s.queue = append(s.queue, item)
	if s.current == noTrack {
		s.current = 0
	}
	return item.ID
}

// Play 开始播放
func (s *State) Play() bool {
	if s.status == StatusPlaying {
		return false
	}
	s.status = StatusPlaying
	s.anchor = s.now()
	return true
}

// Pause 暂停并把已播放时长累加到位置上
func (s *State) Pause() bool {
	if s.status == StatusPaused {
		return false
	}
	s.position += s.now().Sub(s.anchor).Seconds()
	s.status = StatusPaused
	s.anchor = time.Time{}
	return true
}

// Seek 跳转到 t 秒
func (s *State) Seek(t float64) bool {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return false
	}
	if t < 0 {
		t = 0
	}
	s.position = t
	if s.status == StatusPlaying {
		s.anchor = s.now()
	}
	return true
}

// SetTrack 选中第 i 首并从头播放
func (s *State) SetTrack(i int) bool {
	if i < 0 || i >= len(s.queue) {
		return false
	}
	s.current = i
	s.position = 0
	s.status = StatusPlaying
	s.anchor = s.now()
	return true
}

// Next 下一首，1 秒内的重复调用被忽略
func (s *State) Next() bool {
	now := s.now()
	if !s.lastAdvance.IsZero() && now.Sub(s.lastAdvance) < AutoAdvanceDebounce {
		return false
	}
	s.lastAdvance = now

	if len(s.queue) == 0 || s.current == noTrack {
		return false
	}

	switch s.repeat {
	case RepeatOne:
		s.position = 0
		if s.status == StatusPlaying {
			s.anchor = now
		}
		return true
	case RepeatAll:
		return s.SetTrack((s.current + 1) % len(s.queue))
	default:
		if s.current+1 < len(s.queue) {
			return s.SetTrack(s.current + 1)
		}
		// 播完最后一首：停下并回到第一首
		s.status = StatusPaused
		s.anchor = time.Time{}
		s.position = 0
		s.current = 0
		return true
	}
}

// Prev 上一首；已播放超过 3 秒时回到当前歌曲开头
func (s *State) Prev() bool {
	if len(s.queue) == 0 || s.current == noTrack {
		return false
	}
	if s.EffectivePosition() > RestartThreshold {
		return s.Seek(0)
	}
	if s.current > 0 {
		return s.SetTrack(s.current - 1)
	}
	if s.repeat == RepeatAll {
		return s.SetTrack(len(s.queue) - 1)
	}
	return s.Seek(0)
}

// ToggleRepeat Off -> All -> One -> Off
func (s *State) ToggleRepeat() RepeatMode {
	switch s.repeat {
	case RepeatOff:
		s.repeat = RepeatAll
	case RepeatAll:
		s.repeat = RepeatOne
	default:
		s.repeat = RepeatOff
	}
	return s.repeat
}

// Remove 删除第 i 个条目及其文件
func (s *State) Remove(i int) bool {
	if i < 0 || i >= len(s.queue) {
		return false
	}
	item := s.queue[i]
	s.files.RemoveItemFiles(item.ID, item.Paths()...)
	s.queue = append(s.queue[:i], s.queue[i+1:]...)

	switch {
	case len(s.queue) == 0:
		s.current = noTrack
		s.status = StatusPaused
		s.anchor = time.Time{}
		s.position = 0
	case i == s.current:
		if s.current >= len(s.queue) {
			s.current = len(s.queue) - 1
		}
		s.position = 0
		if s.status == StatusPlaying {
			s.anchor = s.now()
		}
	case i < s.current:
		s.current--
	}
	return true
}

// Clear 删除所有条目的文件，房间语音为空时调用
func (s *State) Clear() []string {
	ids := make([]string, 0, len(s.queue))
	for _, item := range s.queue {
		s.files.RemoveItemFiles(item.ID, item.Paths()...)
		ids = append(ids, item.ID)
	}
	s.queue = nil
	s.current = noTrack
	s.status = StatusPaused
	s.anchor = time.Time{}
	s.position = 0
	logger.Debug("shareplay state cleared", logger.Int("items", len(ids)))
	return ids
}
