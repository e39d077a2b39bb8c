package room

import (
	"context"
	"encoding/json"

	"StuffChat/logger"
)

// Peer 发出消息的连接
type Peer interface {
	UserID() string
	SessionID() string
	Send(data []byte) bool
}

// Authorizer 判断用户能否访问房间（频道）
type Authorizer interface {
	CanAccess(ctx context.Context, roomID, userID string) (bool, error)
}

// MemberLister 列出房间成员，用于聊天通知
type MemberLister interface {
	ListMemberIDs(ctx context.Context, roomID string) ([]string, error)
}

// PresenceTracker 在线心跳
type PresenceTracker interface {
	Touch(ctx context.Context, userID, sessionID string) error
}

type allowAll struct{}

func (allowAll) CanAccess(context.Context, string, string) (bool, error) { return true, nil }

// Dispatcher 把客户端意图翻译成 hub 命令。鉴权等阻塞操作在读协程中完成，不进入事件循环
type Dispatcher struct {
	hub      *Hub
	auth     Authorizer
	members  MemberLister
	presence PresenceTracker
}

// DispatcherOption 配置 Dispatcher
type DispatcherOption func(*Dispatcher)

// WithAuthorizer 设置房间鉴权
func WithAuthorizer(a Authorizer) DispatcherOption {
	return func(d *Dispatcher) { d.auth = a }
}

// WithMemberLister 设置成员列表来源
func WithMemberLister(m MemberLister) DispatcherOption {
	return func(d *Dispatcher) { d.members = m }
}

// WithPresence 设置在线心跳
func WithPresence(p PresenceTracker) DispatcherOption {
	return func(d *Dispatcher) { d.presence = p }
}

// NewDispatcher 创建消息分发器，默认放行所有房间
func NewDispatcher(hub *Hub, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{hub: hub, auth: allowAll{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle 适配 Client.ReadPump
func (d *Dispatcher) Handle(ctx context.Context, c *Client, msg *WSMessage) {
	d.HandleMessage(ctx, c, msg)
}

// HandleMessage 处理一条客户端消息
func (d *Dispatcher) HandleMessage(ctx context.Context, p Peer, msg *WSMessage) {
	userID, sessionID := p.UserID(), p.SessionID()

	switch msg.Type {
	case MsgTypePing:
		d.touch(ctx, userID, sessionID)
		p.Send(encode(MsgTypePong, "", "", "", nil))

	case MsgTypeJoin:
		if d.authorized(ctx, msg, userID) {
			d.submit(JoinRoom{RoomID: msg.RoomID, UserID: userID, SessionID: sessionID})
		}

	case MsgTypeLeave:
		if msg.RoomID != "" {
			d.submit(LeaveRoom{RoomID: msg.RoomID, UserID: userID, SessionID: sessionID})
		}

	case MsgTypeChat:
		if !d.authorized(ctx, msg, userID) {
			return
		}
		payload := encode(MsgTypeChat, msg.RoomID, userID, sessionID, msg.Data)
		d.submit(Broadcast{RoomID: msg.RoomID, Payload: payload})
		d.notifyMembers(ctx, msg.RoomID, userID, payload)

	case MsgTypeTyping:
		if d.authorized(ctx, msg, userID) {
			d.submit(Broadcast{
				RoomID:  msg.RoomID,
				Payload: encode(MsgTypeTyping, msg.RoomID, userID, sessionID, nil),
			})
		}

	case MsgTypeSignal:
		d.relaySignal(msg, userID, sessionID)

	case MsgTypeJoinCall:
		if d.authorized(ctx, msg, userID) {
			d.submit(JoinVoice{RoomID: msg.RoomID, UserID: userID, SessionID: sessionID})
		}

	case MsgTypeLeaveCall:
		if msg.RoomID != "" {
			d.submit(LeaveVoice{RoomID: msg.RoomID, UserID: userID, SessionID: sessionID})
		}

	case MsgTypeSharePlayAction:
		var data SharePlayActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Action == "" {
			logger.Debug("malformed shareplay action", logger.String("user", userID))
			return
		}
		if d.authorized(ctx, msg, userID) {
			d.submit(PlaybackAction{
				RoomID: msg.RoomID,
				UserID: userID,
				Action: data.Action,
				Data:   data.Payload,
			})
		}

	default:
		logger.Debug("unknown message type",
			logger.String("type", string(msg.Type)),
			logger.String("user", userID))
	}
}

// authorized 频道权限检查，失败只记日志
func (d *Dispatcher) authorized(ctx context.Context, msg *WSMessage, userID string) bool {
	if msg.RoomID == "" {
		return false
	}
	ok, err := d.auth.CanAccess(ctx, msg.RoomID, userID)
	if err != nil {
		logger.Warn("failed to check room access",
			logger.String("room", msg.RoomID),
			logger.String("user", userID),
			logger.ErrorField(err))
		return false
	}
	if !ok {
		logger.Warn("authorization denied",
			logger.String("room", msg.RoomID),
			logger.String("user", userID),
			logger.String("type", string(msg.Type)))
	}
	return ok
}

func (d *Dispatcher) relaySignal(msg *WSMessage, userID, sessionID string) {
	var data SignalData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.ToUserID == "" {
		logger.Debug("malformed webrtc signal", logger.String("user", userID))
		return
	}
	kind, err := ValidateSignal(data.Signal)
	if err != nil {
		logger.Debug("dropping webrtc signal",
			logger.String("user", userID),
			logger.ErrorField(err))
		return
	}
	logger.Debug("relaying webrtc signal",
		logger.String("from", userID),
		logger.String("to", data.ToUserID),
		logger.String("kind", string(kind)))
	d.submit(DirectSignal{
		ToUserID:    data.ToUserID,
		ToSessionID: data.ToSessionID,
		Payload:     encode(MsgTypeSignal, msg.RoomID, userID, sessionID, data),
	})
}

// notifyMembers 通知未打开该房间的成员
func (d *Dispatcher) notifyMembers(ctx context.Context, roomID, senderID string, payload []byte) {
	if d.members == nil {
		return
	}
	ids, err := d.members.ListMemberIDs(ctx, roomID)
	if err != nil {
		logger.Warn("failed to list room members",
			logger.String("room", roomID),
			logger.ErrorField(err))
		return
	}
	targets := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != senderID {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return
	}
	d.submit(NotifyUsers{UserIDs: targets, Payload: payload, SkipRoom: roomID})
}

func (d *Dispatcher) touch(ctx context.Context, userID, sessionID string) {
	if d.presence == nil {
		return
	}
	if err := d.presence.Touch(ctx, userID, sessionID); err != nil {
		logger.Warn("failed to update user presence",
			logger.String("user", userID),
			logger.ErrorField(err))
	}
}

func (d *Dispatcher) submit(cmd Command) {
	if err := d.hub.Submit(cmd); err != nil {
		logger.Debug("room hub rejected command", logger.ErrorField(err))
	}
}
