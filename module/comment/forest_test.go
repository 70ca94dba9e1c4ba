package comment

import "testing"

func cmt(id, parentID int64, createTime string) *Comment {
	return &Comment{CommentID: id, ParentID: parentID, Content: "c", CreateTime: createTime}
}

func TestResetBuildsTree(t *testing.T) {
	f := NewForest()
	f.Reset([]*Comment{
		cmt(1, 0, "2024-01-01T00:00:10Z"),
		cmt(2, 1, "2024-01-01T00:00:20Z"),
		cmt(3, 0, "2024-01-01T00:00:30Z"),
	})

	top := f.Top()
	if len(top) != 2 {
		t.Fatalf("expected 2 top-level comments, got %d", len(top))
	}
	// 顶层按时间降序
	if top[0].CommentID != 3 || top[1].CommentID != 1 {
		t.Fatalf("top order: [%d %d]", top[0].CommentID, top[1].CommentID)
	}
	if len(top[1].Replies) != 1 || top[1].Replies[0].CommentID != 2 {
		t.Fatalf("reply not attached: %+v", top[1].Replies)
	}
	if f.Len() != 3 {
		t.Fatalf("len: %d", f.Len())
	}
}

func TestRepliesSortedAscending(t *testing.T) {
	f := NewForest()
	f.Reset([]*Comment{
		cmt(1, 0, "2024-01-01T00:00:10Z"),
		cmt(3, 1, "2024-01-01T00:00:30Z"),
		cmt(2, 1, "2024-01-01T00:00:20Z"),
	})
	root, _ := f.Get(1)
	if len(root.Replies) != 2 || root.Replies[0].CommentID != 2 || root.Replies[1].CommentID != 3 {
		t.Fatalf("replies order: %+v", root.Replies)
	}
}

func TestOrphanParkedThenReparented(t *testing.T) {
	f := NewForest()
	// 父级还没加载的回复先暂挂顶层
	f.Add(cmt(2, 1, "2024-01-01T00:00:20Z"))

	top := f.Top()
	if len(top) != 1 || top[0].CommentID != 2 || !top[0].NeedsReparent {
		t.Fatalf("orphan not parked: %+v", top)
	}

	// 父级出现后收编为回复，重挂标记清掉
	f.Add(cmt(1, 0, "2024-01-01T00:00:10Z"))
	top = f.Top()
	if len(top) != 1 || top[0].CommentID != 1 {
		t.Fatalf("top after adoption: %+v", top)
	}
	if len(top[0].Replies) != 1 || top[0].Replies[0].CommentID != 2 || top[0].Replies[0].NeedsReparent {
		t.Fatalf("orphan not adopted: %+v", top[0].Replies)
	}
}

func TestAddDuplicateIgnored(t *testing.T) {
	f := NewForest()
	if !f.Add(cmt(1, 0, "2024-01-01T00:00:10Z")) {
		t.Fatal("first insert reported as duplicate")
	}
	if f.Add(cmt(1, 0, "2024-01-01T00:00:10Z")) {
		t.Fatal("duplicate insert reported as inserted")
	}
	if f.Len() != 1 || len(f.Top()) != 1 {
		t.Fatalf("duplicate not ignored: len=%d top=%d", f.Len(), len(f.Top()))
	}
}

func TestRemoveDoesNotCascade(t *testing.T) {
	f := NewForest()
	f.Reset([]*Comment{
		cmt(1, 0, "2024-01-01T00:00:10Z"),
		cmt(2, 1, "2024-01-01T00:00:20Z"),
		cmt(3, 1, "2024-01-01T00:00:30Z"),
	})

	f.Remove(1)

	if _, ok := f.Get(1); ok {
		t.Fatal("removed node still present")
	}
	// 子回复不跟着删，回到顶层等重挂
	top := f.Top()
	if len(top) != 2 {
		t.Fatalf("children lost on remove: %+v", top)
	}
	for _, c := range top {
		if !c.NeedsReparent {
			t.Fatalf("child missing reparent mark: %+v", c)
		}
	}

	// 父级重新出现（比如刷新补回）时再次收编
	f.Add(cmt(1, 0, "2024-01-01T00:00:10Z"))
	root, _ := f.Get(1)
	if len(root.Replies) != 2 {
		t.Fatalf("children not re-adopted: %+v", root.Replies)
	}
}

func TestRemoveLeaf(t *testing.T) {
	f := NewForest()
	f.Reset([]*Comment{
		cmt(1, 0, "2024-01-01T00:00:10Z"),
		cmt(2, 1, "2024-01-01T00:00:20Z"),
	})
	f.Remove(2)
	root, _ := f.Get(1)
	if len(root.Replies) != 0 {
		t.Fatalf("leaf still attached: %+v", root.Replies)
	}
	if f.Len() != 1 {
		t.Fatalf("len: %d", f.Len())
	}
}
