package errs

import "errors"

// 客户端侧错误分类。REST 业务错误走 CodeError，这里是引擎自身的哨兵。
var (
	// ErrAuthRequired 未登录就尝试建立长连接 / 调接口。
	ErrAuthRequired = errors.New("auth required")

	// ErrTransport 连接断开、握手失败、心跳超时等传输层故障。
	ErrTransport = errors.New("transport failure")

	// ErrStaleResponse 响应到达时已被更新的请求取代，调用方应当丢弃。
	ErrStaleResponse = errors.New("stale response")

	// ErrSendInFlight 同一会话上已有一条消息在发送中。
	ErrSendInFlight = errors.New("send already in flight")

	// ErrNoActiveSession 没有选中会话时调用了会话级操作。
	ErrNoActiveSession = errors.New("no active chat session")

	// ErrEmptyMessage 发送了空白内容。
	ErrEmptyMessage = errors.New("empty message content")
)
