// Package room is the real-time core: a single goroutine owns the connection
// registry, room subscriptions, voice presence and every room's shareplay
// state. Connections, handlers and download workers talk to it only by
// submitting commands.
package room

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"StuffChat/core/download"
	"StuffChat/core/shareplay"
	"StuffChat/logger"
)

const inboxSize = 1024

// Acquirer 接收调度出来的下载任务，不得阻塞
type Acquirer interface {
	Dispatch(r download.Reporter, roomID string, jobs []shareplay.Acquisition)
}

// Hub 房间事件循环
type Hub struct {
	inbox    chan Command
	done     chan struct{}
	stopOnce sync.Once

	// 以下字段只在事件循环中访问
	registry *Registry
	rooms    *Broadcaster
	voice    *VoicePresence
	plays    map[string]*shareplay.State

	acquirer  Acquirer
	remover   shareplay.FileRemover
	stateOpts []shareplay.Option
}

// HubOption 配置 Hub
type HubOption func(*Hub)

// WithAcquirer 设置下载调度器
func WithAcquirer(a Acquirer) HubOption {
	return func(h *Hub) { h.acquirer = a }
}

// WithFileRemover 设置条目文件清理器，同时用于播放状态和迟到结果的清理
func WithFileRemover(r shareplay.FileRemover) HubOption {
	return func(h *Hub) { h.remover = r }
}

// WithStateOptions 创建播放状态时附加的选项
func WithStateOptions(opts ...shareplay.Option) HubOption {
	return func(h *Hub) { h.stateOpts = append(h.stateOpts, opts...) }
}

// NewHub 创建 Hub，需要调用 Run 启动
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		inbox:    make(chan Command, inboxSize),
		done:     make(chan struct{}),
		registry: NewRegistry(),
		rooms:    NewBroadcaster(),
		voice:    NewVoicePresence(),
		plays:    make(map[string]*shareplay.State),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.remover != nil {
		h.stateOpts = append([]shareplay.Option{shareplay.WithFileRemover(h.remover)}, h.stateOpts...)
	}
	return h
}

// Run 启动事件循环，ctx 取消或 Stop 后返回
func (h *Hub) Run(ctx context.Context) {
	logger.Info("room hub started")
	defer h.shutdown()

	for {
		select {
		case cmd := <-h.inbox:
			h.handle(cmd)
		case <-ctx.Done():
			return
		case <-h.done:
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Submit 投递命令，收件箱满时等待
func (h *Hub) Submit(cmd Command) error {
	return h.submit(context.Background(), cmd)
}

func (h *Hub) submit(ctx context.Context, cmd Command) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.inbox <- cmd:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handle 单条命令的异常不影响事件循环
func (h *Hub) handle(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("room hub command panicked", logger.Any("panic", r))
		}
	}()
	cmd.apply(h)
}

// shutdown 关闭所有连接并清理播放状态
func (h *Hub) shutdown() {
	h.Stop()
	for roomID, st := range h.plays {
		st.Clear()
		delete(h.plays, roomID)
	}
	for _, sessions := range h.registry.users {
		for _, s := range sessions {
			if s.conn != nil {
				s.conn.Close()
			}
		}
	}
	h.registry = NewRegistry()
	h.rooms = NewBroadcaster()
	h.voice = NewVoicePresence()
	logger.Info("room hub stopped")
}

// ========== 查询 ==========

// SongLocation 已就绪条目的媒体文件路径
func (h *Hub) SongLocation(ctx context.Context, itemID string) (string, bool) {
	reply := make(chan Lookup, 1)
	return h.query(ctx, QuerySongLocation{ItemID: itemID, Reply: reply}, reply)
}

// ThumbnailLocation 条目封面路径
func (h *Hub) ThumbnailLocation(ctx context.Context, itemID string) (string, bool) {
	reply := make(chan Lookup, 1)
	return h.query(ctx, QueryThumbnailLocation{ItemID: itemID, Reply: reply}, reply)
}

// CurrentTrack 房间当前条目 ID
func (h *Hub) CurrentTrack(ctx context.Context, roomID string) (string, bool) {
	reply := make(chan Lookup, 1)
	return h.query(ctx, QueryCurrentTrack{RoomID: roomID, Reply: reply}, reply)
}

// Stats 运行概况
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := h.submit(ctx, QueryStats{Reply: reply}); err != nil {
		return Stats{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-h.done:
		return Stats{}, ErrHubClosed
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (h *Hub) query(ctx context.Context, cmd Command, reply <-chan Lookup) (string, bool) {
	if err := h.submit(ctx, cmd); err != nil {
		return "", false
	}
	select {
	case res := <-reply:
		return res.Value, res.Found
	case <-h.done:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

// ========== download.Reporter ==========

// ReportMetadata 由下载任务调用，把结果送回事件循环
func (h *Hub) ReportMetadata(res download.MetadataResult) {
	h.report(AcquisitionMetadataResult{res}, res.RoomID, res.ItemID)
}

// ReportPlaylist 由下载任务调用
func (h *Hub) ReportPlaylist(res download.PlaylistResult) {
	h.report(AcquisitionPlaylistResult{res}, res.RoomID, res.PlaceholderID)
}

// ReportDownload 由下载任务调用
func (h *Hub) ReportDownload(res download.DownloadResult) {
	h.report(AcquisitionDownloadResult{res}, res.RoomID, res.ItemID)
}

func (h *Hub) report(cmd Command, roomID, itemID string) {
	if err := h.Submit(cmd); err != nil {
		logger.Debug("dropping acquisition result",
			logger.String("room", roomID),
			logger.String("item", itemID),
			logger.ErrorField(err))
	}
}

// ========== 连接 ==========

func (h *Hub) connect(c Connect) {
	s := newSession(c.UserID, c.SessionID, c.Conn)
	if old := h.registry.Register(s); old != nil && old != s {
		// 同一会话重连：旧连接退出所有房间后关闭
		h.detach(old)
		if old.conn != nil && old.conn != c.Conn {
			old.conn.Close()
		}
	}
	s.send(encode(MsgTypeConnectionMetadata, "", c.UserID, c.SessionID,
		ConnectionMetadataData{SessionID: c.SessionID}))

	logger.Info("client connected",
		logger.String("user", c.UserID),
		logger.String("session", c.SessionID))
}

func (h *Hub) disconnect(c Disconnect) {
	s := h.registry.Lookup(c.UserID, c.SessionID)
	if s == nil {
		return
	}
	if c.Conn != nil && s.conn != c.Conn {
		return
	}
	h.detach(s)
	h.registry.Unregister(c.UserID, c.SessionID)
	if s.conn != nil {
		s.conn.Close()
	}

	logger.Info("client disconnected",
		logger.String("user", c.UserID),
		logger.String("session", c.SessionID))
}

// detach 会话退出所有房间和语音
func (h *Hub) detach(s *session) {
	rooms := make([]string, 0, len(s.rooms))
	for roomID := range s.rooms {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	for _, roomID := range rooms {
		h.rooms.Leave(roomID, s)
	}
	for _, roomID := range h.voice.RoomsOf(s.userID, s.sessionID) {
		h.leaveVoice(roomID, s.userID, s.sessionID)
	}
}

// ========== 房间 ==========

func (h *Hub) joinRoom(c JoinRoom) {
	s := h.registry.Lookup(c.UserID, c.SessionID)
	if s == nil {
		return
	}
	h.rooms.Join(c.RoomID, s)

	s.send(encode(MsgTypeRoomState, c.RoomID, "", "",
		RoomStateData{VoiceUsers: h.voice.Roster(c.RoomID)}))
	if st := h.plays[c.RoomID]; st != nil {
		s.send(encode(MsgTypeSharePlayState, c.RoomID, "", "", st.Snapshot()))
	}
}

func (h *Hub) leaveRoom(c LeaveRoom) {
	if h.voice.Has(c.RoomID, c.UserID, c.SessionID) {
		h.leaveVoice(c.RoomID, c.UserID, c.SessionID)
	}
	if s := h.registry.Lookup(c.UserID, c.SessionID); s != nil {
		h.rooms.Leave(c.RoomID, s)
	}
}

// ========== 语音与信令 ==========

func (h *Hub) joinVoice(roomID, userID, sessionID string) {
	added, first := h.voice.Join(roomID, userID, sessionID)
	if !added {
		return
	}
	if first {
		h.rooms.Broadcast(roomID, encode(MsgTypeVoiceJoined, roomID, userID, sessionID, nil))
	}
	logger.Debug("voice joined",
		logger.String("room", roomID),
		logger.String("user", userID),
		logger.String("session", sessionID))
}

func (h *Hub) leaveVoice(roomID, userID, sessionID string) {
	removed, last, empty := h.voice.Leave(roomID, userID, sessionID)
	if !removed {
		return
	}
	if last {
		h.rooms.Broadcast(roomID, encode(MsgTypeVoiceLeft, roomID, userID, sessionID, nil))
	}
	if empty {
		h.teardown(roomID)
	}
}

// teardown 语音为空时销毁房间的播放状态
func (h *Hub) teardown(roomID string) {
	st := h.plays[roomID]
	if st == nil {
		return
	}
	ids := st.Clear()
	delete(h.plays, roomID)
	h.rooms.Broadcast(roomID, encode(MsgTypeSharePlayCleared, roomID, "", "", nil))

	logger.Info("shareplay torn down",
		logger.String("room", roomID),
		logger.Int("items", len(ids)))
}

func (h *Hub) directSignal(c DirectSignal) {
	if c.ToSessionID != "" {
		if s := h.registry.Lookup(c.ToUserID, c.ToSessionID); s != nil {
			s.send(c.Payload)
		}
		return
	}
	for _, s := range h.registry.Sessions(c.ToUserID) {
		s.send(c.Payload)
	}
}

func (h *Hub) notifyUsers(c NotifyUsers) {
	for _, userID := range c.UserIDs {
		for _, s := range h.registry.Sessions(userID) {
			if c.SkipRoom != "" {
				if _, ok := s.rooms[c.SkipRoom]; ok {
					continue
				}
			}
			s.send(c.Payload)
		}
	}
}

// ========== 一起听 ==========

func (h *Hub) playback(c PlaybackAction) {
	if !h.voice.InCall(c.RoomID, c.UserID) {
		logger.Warn("authorization denied: shareplay action outside call",
			logger.String("room", c.RoomID),
			logger.String("user", c.UserID),
			logger.String("action", c.Action))
		return
	}

	st := h.plays[c.RoomID]
	if st == nil {
		st = shareplay.NewState(h.stateOpts...)
		h.plays[c.RoomID] = st
	}

	changed := applyAction(st, c.Action, c.Data)
	h.publish(c.RoomID, st, changed)
}

// applyAction 执行一次播放操作，返回状态是否改变
func applyAction(st *shareplay.State, action string, data json.RawMessage) bool {
	switch action {
	case ActionAdd:
		var p addPayload
		if !decodePayload(data, &p) {
			return false
		}
		ref := strings.TrimSpace(p.URL)
		if ref == "" {
			return false
		}
		st.Add(ref)
		return true
	case ActionPlay:
		return st.Play()
	case ActionPause:
		return st.Pause()
	case ActionNext:
		return st.Next()
	case ActionPrev:
		return st.Prev()
	case ActionSeek:
		var p seekPayload
		if !decodePayload(data, &p) {
			return false
		}
		return st.Seek(p.Position)
	case ActionTrack:
		var p indexPayload
		if !decodePayload(data, &p) {
			return false
		}
		return st.SetTrack(p.Index)
	case ActionToggleRepeat:
		st.ToggleRepeat()
		return true
	case ActionRemove:
		var p indexPayload
		if !decodePayload(data, &p) {
			return false
		}
		return st.Remove(p.Index)
	default:
		logger.Debug("unknown shareplay action", logger.String("action", action))
		return false
	}
}

func decodePayload(data json.RawMessage, v interface{}) bool {
	if len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Debug("malformed shareplay payload", logger.ErrorField(err))
		return false
	}
	return true
}

// publish 填满下载槽位，有变化时广播一次最新状态，再派发任务
func (h *Hub) publish(roomID string, st *shareplay.State, changed bool) {
	jobs := st.Schedule()
	if !changed && len(jobs) == 0 {
		return
	}
	h.rooms.Broadcast(roomID, encode(MsgTypeSharePlayUpdate, roomID, "", "", st.Snapshot()))
	if len(jobs) > 0 && h.acquirer != nil {
		h.acquirer.Dispatch(h, roomID, jobs)
	}
}

// ========== 获取结果 ==========

func (h *Hub) metadataResult(res download.MetadataResult) {
	st, ok := h.liveItem(res.RoomID, res.ItemID)
	if !ok {
		h.discard(res.RoomID, res.ItemID, res.Thumbnail)
		return
	}
	var changed bool
	if res.Success {
		changed = st.ApplyMetadata(res.ItemID, res.Title, res.Duration, res.Thumbnail)
	} else {
		changed = st.FailItem(res.ItemID, res.Error)
	}
	h.publish(res.RoomID, st, changed)
}

func (h *Hub) playlistResult(res download.PlaylistResult) {
	st, ok := h.liveItem(res.RoomID, res.PlaceholderID)
	if !ok {
		h.discard(res.RoomID, res.PlaceholderID)
		return
	}
	changed := st.ExpandPlaylist(res.PlaceholderID, res.Entries)
	h.publish(res.RoomID, st, changed)
}

func (h *Hub) downloadResult(res download.DownloadResult) {
	st, ok := h.liveItem(res.RoomID, res.ItemID)
	if !ok {
		h.discard(res.RoomID, res.ItemID, res.File, res.Thumbnail)
		return
	}
	var changed bool
	if res.Success {
		changed = st.CompleteDownload(res.ItemID, res.Title, res.File, res.Thumbnail, res.Duration)
	} else {
		changed = st.FailItem(res.ItemID, res.Error)
	}
	h.publish(res.RoomID, st, changed)
}

func (h *Hub) liveItem(roomID, itemID string) (*shareplay.State, bool) {
	st := h.plays[roomID]
	if st == nil {
		return nil, false
	}
	if item, _ := st.Item(itemID); item == nil {
		return nil, false
	}
	return st, true
}

// discard 条目已被删除或房间已销毁，清掉迟到结果产生的文件
func (h *Hub) discard(roomID, itemID string, paths ...string) {
	logger.Debug("discarding late acquisition result",
		logger.String("room", roomID),
		logger.String("item", itemID))
	if h.remover != nil {
		h.remover.RemoveItemFiles(itemID, nonEmpty(paths)...)
	}
}

func nonEmpty(paths []string) []string {
	out := paths[:0:0]
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *Hub) songLocation(itemID string) Lookup {
	for _, st := range h.plays {
		if path, ok := st.Location(itemID); ok {
			return Lookup{Value: path, Found: true}
		}
	}
	return Lookup{}
}

func (h *Hub) thumbnailLocation(itemID string) Lookup {
	for _, st := range h.plays {
		if path, ok := st.ThumbnailLocation(itemID); ok {
			return Lookup{Value: path, Found: true}
		}
	}
	return Lookup{}
}

func (h *Hub) currentTrack(roomID string) Lookup {
	st := h.plays[roomID]
	if st == nil {
		return Lookup{}
	}
	if item := st.Current(); item != nil {
		return Lookup{Value: item.ID, Found: true}
	}
	return Lookup{}
}
