package room

import "sort"

// VoicePresence room -> user -> 在语音中的 session 集合
type VoicePresence struct {
	rooms map[string]map[string]map[string]struct{}
}

// NewVoicePresence 创建语音在线表
func NewVoicePresence() *VoicePresence {
	return &VoicePresence{rooms: make(map[string]map[string]map[string]struct{})}
}

// Join 加入语音。added 为 false 表示重复加入；first 表示这是该用户第一个在语音中的会话
func (v *VoicePresence) Join(roomID, userID, sessionID string) (added, first bool) {
	users := v.rooms[roomID]
	if users == nil {
		users = make(map[string]map[string]struct{})
		v.rooms[roomID] = users
	}
	sessions := users[userID]
	if sessions == nil {
		sessions = make(map[string]struct{})
		users[userID] = sessions
	}
	if _, ok := sessions[sessionID]; ok {
		return false, false
	}
	sessions[sessionID] = struct{}{}
	return true, len(sessions) == 1
}

// Leave 离开语音。last 表示该用户已没有会话在语音中；empty 表示房间语音已空
func (v *VoicePresence) Leave(roomID, userID, sessionID string) (removed, last, empty bool) {
	users := v.rooms[roomID]
	sessions := users[userID]
	if _, ok := sessions[sessionID]; !ok {
		return false, false, false
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(users, userID)
		last = true
	}
	if len(users) == 0 {
		delete(v.rooms, roomID)
		empty = true
	}
	return true, last, empty
}

// Has 会话是否在房间语音中
func (v *VoicePresence) Has(roomID, userID, sessionID string) bool {
	_, ok := v.rooms[roomID][userID][sessionID]
	return ok
}

// InCall 用户任一会话在房间语音中
func (v *VoicePresence) InCall(roomID, userID string) bool {
	return len(v.rooms[roomID][userID]) > 0
}

// RoomsOf 会话所在的语音房间
func (v *VoicePresence) RoomsOf(userID, sessionID string) []string {
	var out []string
	for roomID, users := range v.rooms {
		if _, ok := users[userID][sessionID]; ok {
			out = append(out, roomID)
		}
	}
	sort.Strings(out)
	return out
}

// Roster 房间语音名单，按 user、session 排序
func (v *VoicePresence) Roster(roomID string) [][2]string {
	roster := make([][2]string, 0)
	for userID, sessions := range v.rooms[roomID] {
		for sessionID := range sessions {
			roster = append(roster, [2]string{userID, sessionID})
		}
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i][0] != roster[j][0] {
			return roster[i][0] < roster[j][0]
		}
		return roster[i][1] < roster[j][1]
	})
	return roster
}

// Empty 房间语音是否为空
func (v *VoicePresence) Empty(roomID string) bool {
	return len(v.rooms[roomID]) == 0
}
