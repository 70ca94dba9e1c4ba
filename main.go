package main

import (
	"context"
	"time"

	"GProject/global"
	"GProject/logger"
	"GProject/module/chat"
	"GProject/module/friend"
	"GProject/module/notify"
	"GProject/service/effects"
	"GProject/service/push"
	"GProject/service/rest"
	"GProject/service/session"
	"GProject/service/testgw"

	"GProject/tools/security"

	"github.com/gin-gonic/gin"
)

// 演示入口：起一个进程内 mock 网关，把整条链路跑一遍。
func main() {
	gw := testgw.New()
	defer gw.Close()

	// 最小 REST fixture
	gw.Handle("GET", "/notification/list", func(c *gin.Context) { testgw.OK(c, []any{}) })
	gw.Handle("GET", "/friend/list", func(c *gin.Context) { testgw.OK(c, []any{}) })

	// 登录态
	opts := security.DefaultOptions([]byte("demo-secret"))
	token, _, err := security.Generate(opts, 1001)
	if err != nil {
		logger.Errorf("generate token: %v", err)
		return
	}
	id, err := security.ParseIdentity(opts, token)
	if err != nil {
		logger.Errorf("parse identity: %v", err)
		return
	}
	provider := security.NewStaticProvider()
	provider.SetIdentity(id)

	cfg := global.Config{
		BaseURL:           gw.URL(),
		WSURL:             gw.WSURL(),
		HeartbeatInterval: 5 * time.Second,
		PongWait:          15 * time.Second,
		ReconnectDelay:    time.Second,
	}

	rc := rest.NewClient(cfg, provider)
	bus := effects.NewBus()
	bus.Subscribe(func(e effects.Effect) {
		logger.Infof("[effect] kind=%s payload=%v", e.Kind, e.Payload)
	})

	notifyStore := notify.NewStore(rc, bus, cfg)
	chatStore := chat.NewStore(rc, provider, bus, cfg)
	friendStore := friend.NewStore(rc)

	router := push.NewRouter()
	router.Register(notifyStore)
	router.Register(chatStore)

	mgr := session.NewManager(cfg, provider, router)
	mgr.OnStateChange(func(s session.State) {
		logger.Infof("[session] state=%s", s)
	})
	if err := mgr.Connect(); err != nil {
		logger.Errorf("connect: %v", err)
		return
	}

	// 推一条通知和一条私信
	gw.Push(map[string]any{
		"type": "notification",
		"data": map[string]any{
			"notificationId": 1, "receiverId": 1001, "type": notify.TypeSystem,
			"title": "欢迎加入星系", "isRead": 0,
			"createTime": time.Now().Format(time.RFC3339),
		},
	})
	gw.Push(map[string]any{
		"type": "private_message",
		"data": map[string]any{
			"messageId": 1, "senderId": 2002, "receiverId": 1001,
			"content": "你好", "createTime": time.Now().Format(time.RFC3339),
		},
	})

	time.Sleep(500 * time.Millisecond)

	if err := friendStore.FetchList(context.Background()); err != nil {
		logger.Warnf("fetch friends: %v", err)
	}
	chatStore.SeedSessions(friendStore.Friends())

	logger.Infof("unread notifications: %d", notifyStore.Unread().Total)
	logger.Infof("chat sessions: %d, total unread: %d", len(chatStore.Sessions()), chatStore.TotalUnread())

	mgr.Disconnect()
}
