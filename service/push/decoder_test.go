package push

import (
	"testing"
	"time"
)

func TestDecodeNotificationEnvelope(t *testing.T) {
	raw := []byte(`{"type":"notification","data":{"notificationId":7,"title":"hi","isRead":0}}`)
	ev := Decode(raw, time.Now())
	if ev.Kind != KindNotification {
		t.Fatalf("expected notification kind, got %v", ev.Kind)
	}
	if ev.Payload["title"] != "hi" {
		t.Fatalf("payload lost: %v", ev.Payload)
	}
}

func TestDecodePrivateMessageEnvelope(t *testing.T) {
	raw := []byte(`{"type":"private_message","data":{"messageId":1,"content":"你好"}}`)
	ev := Decode(raw, time.Now())
	if ev.Kind != KindPrivateMessage {
		t.Fatalf("expected private message kind, got %v", ev.Kind)
	}
}

func TestDecodeMalformedFrames(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type":"notification"}`),             // 没有 data
		[]byte(`{"type":"presence","data":{"x":1}}`),  // 未知类别
		[]byte(`{"data":{"x":1}}`),                    // 没有 type
		[]byte(`[]`),
		nil,
	}
	for _, raw := range cases {
		ev := Decode(raw, time.Now())
		if ev.Kind != KindUnknown {
			t.Fatalf("frame %q should decode to unknown, got %v", raw, ev.Kind)
		}
	}
}
