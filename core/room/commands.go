package room

import (
	"encoding/json"

	"StuffChat/core/download"
)

// Command 进入 hub 收件箱的命令，只在 hub 的事件循环中执行
type Command interface {
	apply(h *Hub)
}

// Connect 注册一个已认证的连接
type Connect struct {
	UserID    string
	SessionID string
	Conn      Conn
}

// Disconnect 注销连接。Conn 非空时只有仍是当前连接才生效，避免误删重连后的会话
type Disconnect struct {
	UserID    string
	SessionID string
	Conn      Conn
}

// JoinRoom 订阅房间的实时消息，调用方已完成鉴权
type JoinRoom struct {
	RoomID    string
	UserID    string
	SessionID string
}

// LeaveRoom 取消订阅，同时退出该房间的语音
type LeaveRoom struct {
	RoomID    string
	UserID    string
	SessionID string
}

// Broadcast 向房间内所有连接投递
type Broadcast struct {
	RoomID  string
	Payload []byte
}

// JoinVoice 进入语音
type JoinVoice struct {
	RoomID    string
	UserID    string
	SessionID string
}

// LeaveVoice 离开语音
type LeaveVoice struct {
	RoomID    string
	UserID    string
	SessionID string
}

// DirectSignal 点对点投递，ToSessionID 为空时发给用户的全部会话
type DirectSignal struct {
	ToUserID    string
	ToSessionID string
	Payload     []byte
}

// NotifyUsers 发给一组用户的全部会话；SkipRoom 非空时跳过已订阅该房间的会话
type NotifyUsers struct {
	UserIDs  []string
	Payload  []byte
	SkipRoom string
}

// PlaybackAction 一起听操作
type PlaybackAction struct {
	RoomID string
	UserID string
	Action string
	Data   json.RawMessage
}

// 支持的播放操作
const (
	ActionAdd          = "add"
	ActionPlay         = "play"
	ActionPause        = "pause"
	ActionNext         = "next"
	ActionPrev         = "prev"
	ActionSeek         = "seek"
	ActionTrack        = "track"
	ActionToggleRepeat = "toggle_repeat"
	ActionRemove       = "remove"
)

// AcquisitionMetadataResult 下载任务的元数据结果
type AcquisitionMetadataResult struct {
	download.MetadataResult
}

// AcquisitionPlaylistResult 下载任务的歌单展开结果
type AcquisitionPlaylistResult struct {
	download.PlaylistResult
}

// AcquisitionDownloadResult 下载任务的最终结果
type AcquisitionDownloadResult struct {
	download.DownloadResult
}

// Lookup 查询结果。查询命令的 Reply 通道必须带缓冲，hub 不会等待接收方
type Lookup struct {
	Value string
	Found bool
}

// QuerySongLocation 查询已就绪条目的媒体文件路径
type QuerySongLocation struct {
	ItemID string
	Reply  chan<- Lookup
}

// QueryThumbnailLocation 查询条目封面路径
type QueryThumbnailLocation struct {
	ItemID string
	Reply  chan<- Lookup
}

// QueryCurrentTrack 查询房间当前条目 ID
type QueryCurrentTrack struct {
	RoomID string
	Reply  chan<- Lookup
}

// Stats hub 运行概况
type Stats struct {
	Users      int `json:"users"`
	Sessions   int `json:"sessions"`
	VoiceRooms int `json:"voiceRooms"`
	Playbacks  int `json:"playbacks"`
}

// QueryStats 查询运行概况
type QueryStats struct {
	Reply chan<- Stats
}

// inspect 在事件循环内执行任意函数，测试用
type inspect struct {
	fn   func(h *Hub)
	done chan struct{}
}

func (c Connect) apply(h *Hub)                   { h.connect(c) }
func (c Disconnect) apply(h *Hub)                { h.disconnect(c) }
func (c JoinRoom) apply(h *Hub)                  { h.joinRoom(c) }
func (c LeaveRoom) apply(h *Hub)                 { h.leaveRoom(c) }
func (c Broadcast) apply(h *Hub)                 { h.rooms.Broadcast(c.RoomID, c.Payload) }
func (c JoinVoice) apply(h *Hub)                 { h.joinVoice(c.RoomID, c.UserID, c.SessionID) }
func (c LeaveVoice) apply(h *Hub)                { h.leaveVoice(c.RoomID, c.UserID, c.SessionID) }
func (c DirectSignal) apply(h *Hub)              { h.directSignal(c) }
func (c NotifyUsers) apply(h *Hub)               { h.notifyUsers(c) }
func (c PlaybackAction) apply(h *Hub)            { h.playback(c) }
func (c AcquisitionMetadataResult) apply(h *Hub) { h.metadataResult(c.MetadataResult) }
func (c AcquisitionPlaylistResult) apply(h *Hub) { h.playlistResult(c.PlaylistResult) }
func (c AcquisitionDownloadResult) apply(h *Hub) { h.downloadResult(c.DownloadResult) }

func (c QuerySongLocation) apply(h *Hub) {
	c.Reply <- h.songLocation(c.ItemID)
}

func (c QueryThumbnailLocation) apply(h *Hub) {
	c.Reply <- h.thumbnailLocation(c.ItemID)
}

func (c QueryCurrentTrack) apply(h *Hub) {
	c.Reply <- h.currentTrack(c.RoomID)
}

func (c QueryStats) apply(h *Hub) {
	c.Reply <- Stats{
		Users:      h.registry.UserCount(),
		Sessions:   h.registry.SessionCount(),
		VoiceRooms: len(h.voice.rooms),
		Playbacks:  len(h.plays),
	}
}

func (c inspect) apply(h *Hub) {
	c.fn(h)
	close(c.done)
}
