package comment

import (
	"context"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"GProject/global"
	"GProject/service/rest"
	"GProject/service/testgw"
	"GProject/tools/security"
)

func newCommentClient(t *testing.T) (*rest.Client, *testgw.Gateway) {
	t.Helper()
	gw := testgw.New()
	t.Cleanup(gw.Close)
	provider := security.NewStaticProvider()
	provider.SetIdentity(security.Identity{UserID: 1001, Token: "tok"})
	return rest.NewClient(global.Config{BaseURL: gw.URL()}, provider), gw
}

func TestPlanetListBuildsForest(t *testing.T) {
	rc, gw := newCommentClient(t)
	gw.Handle("GET", "/comment/listByPlanet", func(c *gin.Context) {
		if c.Query("planetId") != "p-1" {
			testgw.Fail(c, 400, "missing planetId")
			return
		}
		testgw.OK(c, pagedList{Total: 3, List: []*Comment{
			cmt(1, 0, "2024-01-01T00:00:10Z"),
			cmt(2, 1, "2024-01-01T00:00:20Z"),
			cmt(3, 0, "2024-01-01T00:00:30Z"),
		}})
	})

	store := NewPlanetStore(rc, global.Config{})
	if err := store.ListByParent(context.Background(), "p-1", 1, 20); err != nil {
		t.Fatalf("list: %v", err)
	}

	top := store.TopLevel()
	if len(top) != 2 || top[0].CommentID != 3 || top[1].CommentID != 1 {
		t.Fatalf("top order: %+v", top)
	}
	if store.Total() != 3 {
		t.Fatalf("total: %d", store.Total())
	}
}

func TestGalaxyListIncrementalPages(t *testing.T) {
	rc, gw := newCommentClient(t)
	gw.Handle("GET", "/galaxy/comment/list/:id", func(c *gin.Context) {
		switch c.Query("page") {
		case "2":
			// 第二页带着第一页已有的父级的回复
			testgw.OK(c, []*Comment{cmt(2, 1, "2024-01-01T00:00:20Z")})
		default:
			testgw.OK(c, []*Comment{cmt(1, 0, "2024-01-01T00:00:10Z")})
		}
	})

	store := NewGalaxyStore(rc, global.Config{})
	ctx := context.Background()
	if err := store.ListByParent(ctx, "9", 1, 20); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if err := store.ListByParent(ctx, "9", 2, 20); err != nil {
		t.Fatalf("page 2: %v", err)
	}

	root, ok := store.Find(1)
	if !ok {
		t.Fatal("root missing after page 2")
	}
	if len(root.Replies) != 1 || root.Replies[0].CommentID != 2 {
		t.Fatalf("page-2 reply not merged: %+v", root.Replies)
	}
}

func TestToggleLikeFloorsAtZero(t *testing.T) {
	rc, gw := newCommentClient(t)
	liked := true // 服务端视角已点赞，第一次 toggle 返回取消
	gw.Handle("POST", "/galaxy/comment/like", func(c *gin.Context) {
		liked = !liked
		testgw.OK(c, liked)
	})

	store := NewGalaxyStore(rc, global.Config{})
	store.AddLocally(cmt(1, 0, "2024-01-01T00:00:10Z")) // 本地计数 0，与服务端脱节
	ctx := context.Background()

	// 本地计数 0 时收到取消点赞：不走负
	got, err := store.ToggleLike(ctx, 1, 1001)
	if err != nil || got {
		t.Fatalf("unlike: %v %v", got, err)
	}
	c, _ := store.Find(1)
	if c.LikeCount != 0 || c.IsLiked {
		t.Fatalf("count went negative: %+v", c)
	}

	if got, err = store.ToggleLike(ctx, 1, 1001); err != nil || !got {
		t.Fatalf("like: %v %v", got, err)
	}
	if c, _ = store.Find(1); c.LikeCount != 1 || !c.IsLiked {
		t.Fatalf("after like: %+v", c)
	}
}

func TestPlanetPublishOptimisticInsert(t *testing.T) {
	rc, gw := newCommentClient(t)
	gw.Handle("POST", "/comment/create", func(c *gin.Context) {
		testgw.OK(c, int64(42))
	})

	store := NewPlanetStore(rc, global.Config{})
	created, err := store.Publish(context.Background(), &Comment{
		PlanetID: "p-1",
		UserID:   1001,
		Content:  "nice planet",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if created.CommentID != 42 || created.CreateTime == "" {
		t.Fatalf("created: %+v", created)
	}
	if _, ok := store.Find(42); !ok {
		t.Fatal("published comment not inserted locally")
	}
	if store.Total() != 1 {
		t.Fatalf("total: %d", store.Total())
	}
}

func TestAddLocallyDuplicateKeepsTotal(t *testing.T) {
	store := NewGalaxyStore(nil, global.Config{})
	store.AddLocally(cmt(1, 0, "2024-01-01T00:00:10Z"))
	// 同 id 重复乐观插入：不入树，计数也不动
	store.AddLocally(cmt(1, 0, "2024-01-01T00:00:10Z"))

	if store.Total() != 1 {
		t.Fatalf("total drifted from forest: %d", store.Total())
	}
	if got := store.TopLevel(); len(got) != 1 {
		t.Fatalf("top level: %+v", got)
	}
}

func TestGalaxyDeleteRemovesNode(t *testing.T) {
	rc, gw := newCommentClient(t)
	gw.Handle("GET", "/galaxy/comment/list/:id", func(c *gin.Context) {
		testgw.OK(c, []*Comment{
			cmt(1, 0, "2024-01-01T00:00:10Z"),
			cmt(2, 1, "2024-01-01T00:00:20Z"),
		})
	})
	gw.Handle("DELETE", "/galaxy/comment/delete/:id", func(c *gin.Context) {
		if _, err := strconv.ParseInt(c.Param("id"), 10, 64); err != nil {
			testgw.Fail(c, 400, "bad id")
			return
		}
		testgw.OK(c, nil)
	})

	store := NewGalaxyStore(rc, global.Config{})
	ctx := context.Background()
	if err := store.ListByParent(ctx, "9", 1, 20); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := store.Delete(ctx, 1, 1001); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, ok := store.Find(1); ok {
		t.Fatal("deleted comment still present")
	}
	// 子回复不级联删除
	if _, ok := store.Find(2); !ok {
		t.Fatal("reply was cascaded away")
	}
	if store.Total() != 1 {
		t.Fatalf("total: %d", store.Total())
	}
}
