package room

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// SignalKind 信令类别，仅用于日志，转发内容不做改写
type SignalKind string

const (
	SignalDescription SignalKind = "description" // offer / answer / pranswer / rollback
	SignalCandidate   SignalKind = "candidate"
	SignalControl     SignalKind = "control" // 其他客户端自定义消息
)

type signalEnvelope struct {
	Type      string          `json:"type,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ValidateSignal 只拒绝不是 JSON 对象的负载。
// 客户端可能对 SDP 做过改写，这里不解析 SDP 正文。
func ValidateSignal(raw json.RawMessage) (SignalKind, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", ErrInvalidSignal
	}
	var env signalEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}

	switch {
	case len(env.SDP) > 0 && isDescription(env.Type, env.SDP):
		return SignalDescription, nil
	case len(env.Candidate) > 0 && !bytes.Equal(env.Candidate, []byte("null")):
		return SignalCandidate, nil
	case webrtc.NewSDPType(env.Type) == webrtc.SDPTypeRollback:
		return SignalDescription, nil
	}
	return SignalControl, nil
}

// isDescription 兼容 {sdp: {type, sdp}} 与 {type, sdp} 两种写法
func isDescription(flatType string, sdp json.RawMessage) bool {
	if sdp[0] == '{' {
		var desc webrtc.SessionDescription
		return json.Unmarshal(sdp, &desc) == nil && desc.Type != webrtc.SDPTypeUnknown
	}
	var body string
	if err := json.Unmarshal(sdp, &body); err != nil || body == "" {
		return false
	}
	return webrtc.NewSDPType(flatType) != webrtc.SDPTypeUnknown
}
