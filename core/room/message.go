package room

import (
	"encoding/json"
	"time"
)

// MessageType 消息类型
type MessageType string

const (
	// 客户端 -> 服务端
	MsgTypeJoin            MessageType = "join"             // 订阅房间
	MsgTypeLeave           MessageType = "leave"            // 取消订阅
	MsgTypeJoinCall        MessageType = "join_call"        // 进入语音
	MsgTypeLeaveCall       MessageType = "leave_call"       // 离开语音
	MsgTypePing            MessageType = "ping"             // 心跳
	MsgTypeSharePlayAction MessageType = "shareplay_action" // 一起听操作

	// 双向
	MsgTypeChat   MessageType = "chat_message"
	MsgTypeTyping MessageType = "typing"
	MsgTypeSignal MessageType = "webrtc_signal"

	// 服务端 -> 客户端
	MsgTypePong               MessageType = "pong"
	MsgTypeConnectionMetadata MessageType = "connection_metadata"
	MsgTypeRoomState          MessageType = "room_state"
	MsgTypeVoiceJoined        MessageType = "voice_joined"
	MsgTypeVoiceLeft          MessageType = "voice_left"
	MsgTypeSharePlayState     MessageType = "shareplay_state"
	MsgTypeSharePlayUpdate    MessageType = "shareplay_update"
	MsgTypeSharePlayCleared   MessageType = "shareplay_cleared"
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ConnectionMetadataData 连接建立后下发的会话信息
type ConnectionMetadataData struct {
	SessionID string `json:"sessionId"`
}

// RoomStateData 加入房间时下发的语音名单，每项为 [userId, sessionId]
type RoomStateData struct {
	VoiceUsers [][2]string `json:"voiceUsers"`
}

// SignalData webrtc_signal 的数据部分
type SignalData struct {
	ToUserID    string          `json:"toUserId"`
	ToSessionID string          `json:"toSessionId,omitempty"`
	Signal      json.RawMessage `json:"signal"`
}

// SharePlayActionData shareplay_action 的数据部分
type SharePlayActionData struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// 播放操作的参数
type addPayload struct {
	URL string `json:"url"`
}

type seekPayload struct {
	Position float64 `json:"position"`
}

type indexPayload struct {
	Index int `json:"index"`
}

// encode 序列化出站消息，data 为 nil 时省略
func encode(msgType MessageType, roomID, userID, sessionID string, data interface{}) []byte {
	msg := WSMessage{
		Type:      msgType,
		RoomID:    roomID,
		UserID:    userID,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		msg.Data = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		msg.Data = raw
	}
	out, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return out
}
