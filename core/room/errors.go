package room

import "errors"

var (
	// ErrHubClosed hub 已停止，命令被拒绝
	ErrHubClosed = errors.New("room hub closed")
	// ErrInvalidSignal 无法识别的 WebRTC 信令
	ErrInvalidSignal = errors.New("invalid webrtc signal")
)
