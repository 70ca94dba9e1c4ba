package push

import "time"

// Kind 推送事件类别。
type Kind int

const (
	KindUnknown Kind = iota
	KindNotification
	KindPrivateMessage
)

func (k Kind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindPrivateMessage:
		return "private_message"
	default:
		return "unknown"
	}
}

// Event 解码后的推送事件，只读，路由一次后丢弃。
type Event struct {
	Kind       Kind
	Payload    map[string]any
	ReceivedAt time.Time
}
