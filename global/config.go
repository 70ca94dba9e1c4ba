package global

import "time"

// ===== 引擎配置 =====

// Config 同步引擎的全部可调参数。零值字段由 Norm 填默认值。
type Config struct {
	BaseURL string // REST 根地址，如 http://localhost:8081
	WSURL   string // 长连接地址，如 ws://localhost:8081/ws-notifications

	HeartbeatInterval time.Duration // 出向 ping 周期
	PongWait          time.Duration // 超过该窗口没有入向心跳按传输故障处理
	ReconnectDelay    time.Duration // 重连初始间隔
	ReconnectMaxDelay time.Duration // 指数退避上限
	WriteTimeout      time.Duration // 单次写帧超时

	RequestTimeout time.Duration // REST 请求超时
	PageSize       int           // 列表分页大小

	Clock func() time.Time // 可注入时钟（单测用）；nil => time.Now
}

func (c *Config) Norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 75 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 20 * time.Second
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
}
