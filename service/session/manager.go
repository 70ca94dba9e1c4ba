package session

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"GProject/global"
	"GProject/logger"
	"GProject/service/push"
	"GProject/tools/errs"
	"GProject/tools/security"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	pkgerr "github.com/pkg/errors"
)

// LivenessTopic 公共在线广播通道，所有客户端都会订阅。
const LivenessTopic = "/topic/connected"

// ControlFrame 连接建立后发给网关的控制帧。
type ControlFrame struct {
	Event  string `json:"event"`
	UserID int64  `json:"userId,omitempty"`
	Topic  string `json:"topic,omitempty"`
	ConnID string `json:"connId,omitempty"`
}

// Manager 独占持有唯一的长连接。
// reconciler 永远不碰传输层，只消费路由过来的事件流。
type Manager struct {
	cfg      global.Config
	identity security.Provider
	router   *push.Router

	state atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	connID string
	gen    uint64 // 每次建连/断开都递增，旧协程据此失效
	topics map[string]struct{}
	lastHB time.Time

	onState func(State)
}

func NewManager(cfg global.Config, id security.Provider, router *push.Router) *Manager {
	cfg.Norm()
	return &Manager{
		cfg:      cfg,
		identity: id,
		router:   router,
		topics:   make(map[string]struct{}),
	}
}

func (m *Manager) State() State { return State(m.state.Load()) }

// OnStateChange 注册状态回调。回调要快，且不得再调 Connect/Disconnect。
func (m *Manager) OnStateChange(fn func(State)) { m.onState = fn }

// LastHeartbeat 最近一次入向心跳时间。
func (m *Manager) LastHeartbeat() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHB
}

// Topics 当前已订阅的主题集合。
func (m *Manager) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.topics))
	for t := range m.topics {
		out = append(out, t)
	}
	return out
}

// Connect 建立长连接。未登录直接失败，不重试。
// 已在连接中/已连接时是 no-op。
func (m *Manager) Connect() error {
	id, ok := m.identity.Current()
	if !ok {
		return errs.ErrAuthRequired
	}

	m.mu.Lock()
	if s := m.State(); s == StateConnected || s == StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.setStateLocked(StateConnecting)
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	conn, err := m.dial()
	if err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.setStateLocked(StateDisconnected)
		}
		m.mu.Unlock()
		return pkgerr.Wrapf(errs.ErrTransport, "dial %s: %v", m.cfg.WSURL, err)
	}
	if err := m.attach(gen, conn, id); err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.setStateLocked(StateDisconnected)
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// Disconnect 同步置为 Disconnected，幂等，永远成功。
// 正在睡眠的重连协程会在下一次检查时发现代际变了而退出。
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	closeQuiet(m.conn)
	m.conn = nil
	m.topics = make(map[string]struct{})
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
}

// ===== 内部：建连 / 读循环 / 心跳 / 重连 =====

func (m *Manager) dial() (*websocket.Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: m.cfg.WriteTimeout}
	conn, _, err := d.Dial(m.cfg.WSURL, nil)
	return conn, err
}

// attach 把一条握手成功的连接挂到 manager 上并启动读/心跳协程。
// 首连和重连共用；代际不匹配说明期间发生了 Disconnect，直接丢弃连接。
func (m *Manager) attach(gen uint64, conn *websocket.Conn, id security.Identity) error {
	private := fmt.Sprintf("/user/%d/notifications", id.UserID)
	connID := uuid.NewString()

	frames := []ControlFrame{
		{Event: "connect", UserID: id.UserID, ConnID: connID},
		{Event: "subscribe", Topic: private, ConnID: connID},
		{Event: "subscribe", Topic: LivenessTopic, ConnID: connID},
	}
	// 握手失败只还连接不动状态机：首连由 Connect 收尾，
	// 重连场景由 reconnectLoop 继续下一轮退避。
	for _, f := range frames {
		if err := writeJSON(conn, f, m.cfg.WriteTimeout); err != nil {
			closeQuiet(conn)
			return pkgerr.Wrapf(errs.ErrTransport, "handshake frame %q: %v", f.Event, err)
		}
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		closeQuiet(conn)
		return errs.ErrStaleResponse
	}
	m.conn = conn
	m.connID = connID
	m.lastHB = m.cfg.Clock()
	m.topics = map[string]struct{}{private: {}, LivenessTopic: {}}
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	go m.readLoop(gen, conn)
	go m.pingLoop(gen, conn)
	return nil
}

// readLoop 只读不写。所有推送都在这一个协程里按到达顺序解码、派发，
// 出错即认定传输故障，走重连。
func (m *Manager) readLoop(gen uint64, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(m.cfg.Clock().Add(m.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(m.cfg.Clock().Add(m.cfg.PongWait))
		m.touchHeartbeat()
		return nil
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[session] peer closed conn=%s err=%v", m.connID, err)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// 心跳窗口内没有任何入向数据，按传输故障处理
				logger.Warnf("[session] heartbeat timeout conn=%s err=%v", m.connID, err)
			} else {
				logger.Warnf("[session] read err conn=%s err=%v", m.connID, err)
			}
			m.handleFailure(gen)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		_ = conn.SetReadDeadline(m.cfg.Clock().Add(m.cfg.PongWait))
		m.touchHeartbeat()

		ev := push.Decode(data, m.cfg.Clock())
		m.router.Dispatch(ev)
	}
}

func (m *Manager) pingLoop(gen uint64, conn *websocket.Conn) {
	t := time.NewTicker(m.cfg.HeartbeatInterval)
	defer t.Stop()
	for range t.C {
		m.mu.Lock()
		stale := m.gen != gen
		m.mu.Unlock()
		if stale {
			return
		}
		deadline := m.cfg.Clock().Add(m.cfg.WriteTimeout)
		if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
			logger.Warnf("[session] ping write err conn=%s err=%v", m.connID, err)
			// 写失败读循环很快也会失败，由它触发重连
			return
		}
	}
}

func (m *Manager) touchHeartbeat() {
	m.mu.Lock()
	m.lastHB = m.cfg.Clock()
	m.mu.Unlock()
}

// handleFailure 传输层故障入口。显式断开后的残留协程在这里被甄别掉。
func (m *Manager) handleFailure(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.State() == StateDisconnected {
		m.mu.Unlock()
		return
	}
	closeQuiet(m.conn)
	m.conn = nil
	m.setStateLocked(StateReconnecting)
	m.gen++
	next := m.gen
	m.mu.Unlock()

	go m.reconnectLoop(next)
}

// reconnectLoop 指数退避重连，直到成功或被 Disconnect 打断。
func (m *Manager) reconnectLoop(gen uint64) {
	delay := m.cfg.ReconnectDelay
	for {
		time.Sleep(delay)

		m.mu.Lock()
		alive := m.gen == gen && m.State() == StateReconnecting
		m.mu.Unlock()
		if !alive {
			return
		}

		id, ok := m.identity.Current()
		if !ok {
			// 重连期间登出了
			m.Disconnect()
			return
		}

		conn, err := m.dial()
		if err == nil {
			if aerr := m.attach(gen, conn, id); aerr == nil {
				logger.Infof("[session] reconnected conn=%s", m.connID)
				return
			}
		} else {
			logger.Warnf("[session] reconnect dial err=%v next=%s", err, delay)
		}

		delay *= 2
		if delay > m.cfg.ReconnectMaxDelay {
			delay = m.cfg.ReconnectMaxDelay
		}
	}
}

// 持锁调用。状态回调在锁内同步执行，回调方只准读原子状态。
func (m *Manager) setStateLocked(s State) {
	old := State(m.state.Swap(int32(s)))
	if old != s && m.onState != nil {
		m.onState(s)
	}
}

// ===== 工具函数 =====

func writeJSON(conn *websocket.Conn, v any, timeout time.Duration) error {
	if conn == nil {
		return pkgerr.New("nil conn")
	}
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
