package notify

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"GProject/global"
	"GProject/service/effects"
	"GProject/service/push"
	"GProject/service/rest"
	"GProject/service/testgw"
	"GProject/tools/security"
)

// notifyFixture 内存里的服务端：list / read / count / delete 共享同一份数据，
// 这样对账接口返回的计数和列表是自洽的。
type notifyFixture struct {
	mu      sync.Mutex
	items   []Notification
	readSet map[int64]bool // 已读但 list 仍返回旧 isRead（模拟列表滞后）
	lagRead bool
}

func newNotifyFixture(t *testing.T, items []Notification) (*notifyFixture, *Store, *testgw.Gateway) {
	t.Helper()
	f := &notifyFixture{items: items, readSet: make(map[int64]bool)}

	gw := testgw.New()
	t.Cleanup(gw.Close)

	gw.Handle("GET", "/notification/list", func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
		f.mu.Lock()
		defer f.mu.Unlock()
		start := (page - 1) * size
		if start > len(f.items) {
			start = len(f.items)
		}
		end := start + size
		if end > len(f.items) {
			end = len(f.items)
		}
		out := make([]Notification, end-start)
		copy(out, f.items[start:end])
		testgw.OK(c, out)
	})
	gw.Handle("PUT", "/notification/read/:id", func(c *gin.Context) {
		id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
		f.mu.Lock()
		f.readSet[id] = true
		if !f.lagRead {
			for i := range f.items {
				if f.items[i].NotificationID == id {
					f.items[i].IsRead = 1
				}
			}
		}
		f.mu.Unlock()
		testgw.OK(c, nil)
	})
	gw.Handle("GET", "/notification/unread/count", func(c *gin.Context) {
		f.mu.Lock()
		u := UnreadCount{ByType: make(map[int]int)}
		for _, n := range f.items {
			if n.IsRead == 0 && !f.readSet[n.NotificationID] {
				u.Total++
				u.ByType[n.Type]++
			}
		}
		f.mu.Unlock()
		testgw.OK(c, u)
	})
	gw.Handle("DELETE", "/notification/delete/:id", func(c *gin.Context) {
		id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
		f.mu.Lock()
		for i := range f.items {
			if f.items[i].NotificationID == id {
				f.items = append(f.items[:i], f.items[i+1:]...)
				break
			}
		}
		f.mu.Unlock()
		testgw.OK(c, nil)
	})

	provider := security.NewStaticProvider()
	provider.SetIdentity(security.Identity{UserID: 1001, Token: "tok"})
	cfg := global.Config{BaseURL: gw.URL(), PageSize: 2}
	store := NewStore(rest.NewClient(cfg, provider), effects.NewBus(), cfg)
	return f, store, gw
}

func TestIngestPushIdempotent(t *testing.T) {
	bus := effects.NewBus()
	var emitted int
	bus.Subscribe(func(effects.Effect) { emitted++ })
	store := NewStore(nil, bus, global.Config{})

	ev := push.Event{
		Kind:       push.KindNotification,
		Payload:    map[string]any{"notificationId": float64(7), "type": float64(TypeSystem), "title": "升级公告", "isRead": float64(0)},
		ReceivedAt: time.Now(),
	}
	if err := store.Handle(ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	// 至少一次投递：重复帧必须整条丢弃
	if err := store.Handle(ev); err != nil {
		t.Fatalf("handle dup: %v", err)
	}

	if got := store.Notifications(); len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	u := store.Unread()
	if u.Total != 1 || u.ByType[TypeSystem] != 1 {
		t.Fatalf("unread after dup push: %+v", u)
	}
	if emitted != 1 {
		t.Fatalf("expected 1 effect, got %d", emitted)
	}
}

func TestCounterInvariantAcrossFetchReadDelete(t *testing.T) {
	_, store, _ := newNotifyFixture(t, []Notification{
		{NotificationID: 1, Type: TypeGalaxyCommentReply, IsRead: 0, Title: "回复"},
		{NotificationID: 2, Type: TypeGalaxyCommentReply, IsRead: 1, Title: "旧的"},
	})
	ctx := context.Background()

	if err := store.FetchPage(ctx, 1); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	u := store.Unread()
	if u.Total != 1 || u.ByType[TypeGalaxyCommentReply] != 1 {
		t.Fatalf("unread after fetch: %+v", u)
	}

	if err := store.MarkRead(ctx, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	u = store.Unread()
	if u.Total != 0 || u.ByType[TypeGalaxyCommentReply] != 0 {
		t.Fatalf("unread after mark read: %+v", u)
	}
	// 重复标记已读不得把计数扣成负数
	if err := store.MarkRead(ctx, 1); err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if u = store.Unread(); u.Total != 0 {
		t.Fatalf("unread went negative: %+v", u)
	}
}

func TestDeleteUnreadDecrementsCounter(t *testing.T) {
	_, store, _ := newNotifyFixture(t, []Notification{
		{NotificationID: 1, Type: TypeSystem, IsRead: 0},
		{NotificationID: 2, Type: TypeSystem, IsRead: 0},
	})
	ctx := context.Background()
	if err := store.FetchPage(ctx, 1); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got := store.Notifications()
	if len(got) != 1 || got[0].NotificationID != 2 {
		t.Fatalf("collection after delete: %+v", got)
	}
	u := store.Unread()
	if u.Total != 1 || u.ByType[TypeSystem] != 1 {
		t.Fatalf("unread after delete: %+v", u)
	}
}

func TestReadStateMonotonicAcrossRefetch(t *testing.T) {
	f, store, _ := newNotifyFixture(t, []Notification{
		{NotificationID: 1, Type: TypeSystem, IsRead: 0},
	})
	f.lagRead = true // 列表接口滞后，刷新仍返回 isRead=0
	ctx := context.Background()

	if err := store.FetchPage(ctx, 1); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := store.MarkRead(ctx, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := store.FetchPage(ctx, 1); err != nil {
		t.Fatalf("refetch: %v", err)
	}

	got := store.Notifications()
	if len(got) != 1 || got[0].IsRead != 1 {
		t.Fatalf("read state regressed on refetch: %+v", got)
	}
	if u := store.Unread(); u.Total != 0 {
		t.Fatalf("unread after lagged refetch: %+v", u)
	}
}

func TestPaginationHasMore(t *testing.T) {
	_, store, _ := newNotifyFixture(t, []Notification{
		{NotificationID: 1, Type: TypeSystem, IsRead: 0},
		{NotificationID: 2, Type: TypeSystem, IsRead: 0},
		{NotificationID: 3, Type: TypeSystem, IsRead: 0},
	})
	ctx := context.Background()

	if err := store.FetchPage(ctx, 1); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if !store.HasMore() {
		t.Fatal("expected more pages after a full page")
	}
	if err := store.LoadMore(ctx); err != nil {
		t.Fatalf("load more: %v", err)
	}
	got := store.Notifications()
	if len(got) != 3 {
		t.Fatalf("expected 3 notifications after load more, got %d", len(got))
	}
	if store.HasMore() {
		t.Fatal("short page must clear hasMore")
	}
	if u := store.Unread(); u.Total != 3 {
		t.Fatalf("unread after pagination: %+v", u)
	}
}
