package push

import (
	"GProject/logger"
)

// Handler 某一类推送事件的归属方（对应的 domain reconciler）。
type Handler interface {
	Kind() Kind
	Handle(ev Event) error
}

// Router 按 Kind 把事件派发给唯一的 handler。
// 派发是同步的，严格按到达顺序执行；每个事件实例至多投递一次。
type Router struct {
	handlers map[Kind]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[Kind]Handler)}
}

func (r *Router) Register(h Handler) { r.handlers[h.Kind()] = h }

// Dispatch 路由一条事件。未知类别与 handler 报错都只记日志，
// 推送路径上的错误永远不向上传播。
func (r *Router) Dispatch(ev Event) {
	if ev.Kind == KindUnknown {
		logger.Debug("drop unknown push frame")
		return
	}
	h, ok := r.handlers[ev.Kind]
	if !ok {
		logger.Warnf("no handler for push kind=%s", ev.Kind)
		return
	}
	if err := h.Handle(ev); err != nil {
		logger.Errorf("push handler kind=%s err=%v", ev.Kind, err)
	}
}
