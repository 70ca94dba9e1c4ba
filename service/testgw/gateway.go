package testgw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 进程内 mock 网关：一个 gin 实例同时伺服 REST fixture 和
// /ws-notifications 长连接。单测和 demo 共用，不依赖任何外部服务。

var upgraded = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Gateway struct {
	engine *gin.Engine
	srv    *httptest.Server

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	frames []map[string]any // 收到的控制帧（connect/subscribe）
}

func New() *Gateway {
	gin.SetMode(gin.TestMode)
	g := &Gateway{
		engine: gin.New(),
		conns:  make(map[*websocket.Conn]struct{}),
	}
	g.engine.GET("/ws-notifications", g.handleWS)
	g.srv = httptest.NewServer(g.engine)
	return g
}

func (g *Gateway) Close() {
	g.mu.Lock()
	for c := range g.conns {
		_ = c.Close()
	}
	g.conns = make(map[*websocket.Conn]struct{})
	g.mu.Unlock()
	g.srv.Close()
}

func (g *Gateway) URL() string { return g.srv.URL }

func (g *Gateway) WSURL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/ws-notifications"
}

// Handle 挂一个 REST fixture。
func (g *Gateway) Handle(method, path string, fn gin.HandlerFunc) {
	g.engine.Handle(method, path, fn)
}

// OK 按服务端统一 envelope 回包。
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": data})
}

// Fail 按 envelope 回业务错误。
func Fail(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, gin.H{"code": code, "message": message, "data": nil})
}

func (g *Gateway) handleWS(c *gin.Context) {
	conn, err := upgraded.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	g.mu.Lock()
	g.conns[conn] = struct{}{}
	g.mu.Unlock()

	// 读循环：记录控制帧；gorilla 默认 ping handler 会自动回 pong
	go func() {
		defer func() {
			g.mu.Lock()
			delete(g.conns, conn)
			g.mu.Unlock()
			_ = conn.Close()
		}()
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			g.mu.Lock()
			g.frames = append(g.frames, frame)
			g.mu.Unlock()
		}
	}()
}

// Push 把一条推送 envelope 广播给所有在线连接。
func (g *Gateway) Push(envelope any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for conn := range g.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = conn.WriteJSON(envelope)
	}
}

// PushRaw 按原样发一帧（坏帧测试用）。
func (g *Gateway) PushRaw(raw []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for conn := range g.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = conn.WriteMessage(websocket.TextMessage, raw)
	}
}

// DropAll 粗暴掐掉所有连接，模拟传输层故障。
func (g *Gateway) DropAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.conns {
		_ = c.Close()
		delete(g.conns, c)
	}
}

// ConnCount 当前在线连接数。
func (g *Gateway) ConnCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Frames 收到过的控制帧快照。
func (g *Gateway) Frames() []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]map[string]any, len(g.frames))
	copy(out, g.frames)
	return out
}
