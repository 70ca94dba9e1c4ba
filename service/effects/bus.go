package effects

import "sync"

// 合并逻辑里不直接做提示音、桌面通知这类副作用，
// reconciler 在归并完成后往总线上发一条 Effect，由订阅方自行消费。

type Kind string

const (
	NewNotification Kind = "new_notification" // payload: *notify.Notification
	NewMessage      Kind = "new_message"      // payload: *chat.PrivateMessage
	SessionTouched  Kind = "session_touched"  // payload: friendUserId int64
)

type Effect struct {
	Kind    Kind
	Payload any
}

type Bus struct {
	mu   sync.RWMutex
	subs []func(Effect)
}

func NewBus() *Bus { return &Bus{} }

// Subscribe 注册订阅者。回调在 Emit 的调用协程里同步执行，
// 订阅方不要在回调里做阻塞操作。
func (b *Bus) Subscribe(fn func(Effect)) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

func (b *Bus) Emit(e Effect) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
