package room

import "sort"

// Conn 一个会话的出站通道，Send 不得阻塞
type Conn interface {
	Send(data []byte) bool
	Close()
}

// session 一个已认证的设备连接
type session struct {
	userID    string
	sessionID string
	conn      Conn
	rooms     map[string]struct{} // 已订阅的房间
}

func newSession(userID, sessionID string, conn Conn) *session {
	return &session{
		userID:    userID,
		sessionID: sessionID,
		conn:      conn,
		rooms:     make(map[string]struct{}),
	}
}

func (s *session) send(data []byte) {
	if data == nil || s.conn == nil {
		return
	}
	s.conn.Send(data)
}

// ========== 连接注册表 ==========

// Registry user -> session -> 连接
type Registry struct {
	users map[string]map[string]*session
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]*session)}
}

// Register 登记会话，返回被替换的旧会话
func (r *Registry) Register(s *session) *session {
	sessions := r.users[s.userID]
	if sessions == nil {
		sessions = make(map[string]*session)
		r.users[s.userID] = sessions
	}
	old := sessions[s.sessionID]
	sessions[s.sessionID] = s
	return old
}

// Unregister 移除会话，用户没有会话时删除用户键
func (r *Registry) Unregister(userID, sessionID string) *session {
	sessions := r.users[userID]
	if sessions == nil {
		return nil
	}
	s := sessions[sessionID]
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.users, userID)
	}
	return s
}

// Lookup 查找单个会话
func (r *Registry) Lookup(userID, sessionID string) *session {
	return r.users[userID][sessionID]
}

// Sessions 用户的全部会话，按 sessionID 排序
func (r *Registry) Sessions(userID string) []*session {
	sessions := r.users[userID]
	out := make([]*session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sessionID < out[j].sessionID })
	return out
}

// UserCount 在线用户数
func (r *Registry) UserCount() int { return len(r.users) }

// SessionCount 在线会话数
func (r *Registry) SessionCount() int {
	n := 0
	for _, sessions := range r.users {
		n += len(sessions)
	}
	return n
}

// ========== 房间广播 ==========

// Broadcaster room -> 订阅的会话集合，只决定投递，不涉及数据权限
type Broadcaster struct {
	rooms map[string]map[*session]struct{}
}

// NewBroadcaster 创建广播表
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{rooms: make(map[string]map[*session]struct{})}
}

// Join 幂等加入
func (b *Broadcaster) Join(roomID string, s *session) {
	members := b.rooms[roomID]
	if members == nil {
		members = make(map[*session]struct{})
		b.rooms[roomID] = members
	}
	members[s] = struct{}{}
	s.rooms[roomID] = struct{}{}
}

// Leave 幂等离开，房间空了就删除
func (b *Broadcaster) Leave(roomID string, s *session) {
	delete(s.rooms, roomID)
	members := b.rooms[roomID]
	if members == nil {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(b.rooms, roomID)
	}
}

// Broadcast 尽力投递给房间内所有会话，返回投递数
func (b *Broadcaster) Broadcast(roomID string, payload []byte) int {
	if payload == nil {
		return 0
	}
	n := 0
	for s := range b.rooms[roomID] {
		s.send(payload)
		n++
	}
	return n
}

// MemberCount 房间订阅数
func (b *Broadcaster) MemberCount(roomID string) int {
	return len(b.rooms[roomID])
}
