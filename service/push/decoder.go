package push

import (
	"encoding/json"
	"time"
)

// 服务端推送 envelope：{"type":"notification"|"private_message","data":{...}}
type envelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Decode 把原始帧解析成 Event。任何形状不对的帧都归类为 KindUnknown，
// 绝不向调用方抛错 —— 一个坏帧不能影响连接继续跑。
func Decode(raw []byte, now time.Time) Event {
	ev := Event{Kind: KindUnknown, ReceivedAt: now}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ev
	}
	if env.Data == nil {
		return ev
	}
	switch env.Type {
	case "notification":
		ev.Kind = KindNotification
	case "private_message":
		ev.Kind = KindPrivateMessage
	default:
		return ev
	}
	ev.Payload = env.Data
	return ev
}
