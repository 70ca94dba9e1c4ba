package push

import (
	"errors"
	"testing"
	"time"
)

type recordingHandler struct {
	kind   Kind
	events []Event
	err    error
}

func (h *recordingHandler) Kind() Kind { return h.kind }
func (h *recordingHandler) Handle(ev Event) error {
	h.events = append(h.events, ev)
	return h.err
}

func TestDispatchByKind(t *testing.T) {
	r := NewRouter()
	nh := &recordingHandler{kind: KindNotification}
	mh := &recordingHandler{kind: KindPrivateMessage}
	r.Register(nh)
	r.Register(mh)

	r.Dispatch(Event{Kind: KindNotification, ReceivedAt: time.Now()})
	r.Dispatch(Event{Kind: KindPrivateMessage, ReceivedAt: time.Now()})
	r.Dispatch(Event{Kind: KindPrivateMessage, ReceivedAt: time.Now()})

	if len(nh.events) != 1 {
		t.Fatalf("notification handler got %d events, want 1", len(nh.events))
	}
	if len(mh.events) != 2 {
		t.Fatalf("message handler got %d events, want 2", len(mh.events))
	}
}

func TestDispatchDropsUnknown(t *testing.T) {
	r := NewRouter()
	nh := &recordingHandler{kind: KindNotification}
	r.Register(nh)

	r.Dispatch(Event{Kind: KindUnknown})
	if len(nh.events) != 0 {
		t.Fatal("unknown event must not reach any handler")
	}
}

func TestHandlerErrorDoesNotPropagate(t *testing.T) {
	r := NewRouter()
	nh := &recordingHandler{kind: KindNotification, err: errors.New("merge failed")}
	r.Register(nh)

	// 不 panic、不向外抛，事件照常只投一次
	r.Dispatch(Event{Kind: KindNotification})
	if len(nh.events) != 1 {
		t.Fatalf("handler got %d events, want 1", len(nh.events))
	}
}
