package comment

import (
	"sort"

	"GProject/tools"
)

// Forest 增量维护的评论森林：id 索引 + 顶层列表，
// 不做整树重建。每次变更之后都保持：
//   - 顶层按 createTime 降序
//   - 每个节点的 Replies 按 createTime 升序
//   - 任一评论在森林里只出现一处
type Forest struct {
	nodes map[int64]*Comment
	top   []*Comment // 顶级评论 + 暂挂的孤儿回复
}

func NewForest() *Forest {
	return &Forest{nodes: make(map[int64]*Comment)}
}

func (f *Forest) Len() int { return len(f.nodes) }

func (f *Forest) Get(id int64) (*Comment, bool) {
	c, ok := f.nodes[id]
	return c, ok
}

// Top 顶层列表（含孤儿）。调用方只读。
func (f *Forest) Top() []*Comment {
	out := make([]*Comment, len(f.top))
	copy(out, f.top)
	return out
}

// Reset 用服务端扁平列表重建森林。先全部登记再逐个挂载，
// 同页内引用的父级不会被误判成孤儿。
func (f *Forest) Reset(flat []*Comment) {
	f.nodes = make(map[int64]*Comment, len(flat))
	f.top = f.top[:0]
	for _, c := range flat {
		if _, dup := f.nodes[c.CommentID]; dup {
			continue
		}
		c.Replies = nil
		c.NeedsReparent = false
		f.nodes[c.CommentID] = c
	}
	for _, c := range flat {
		if f.nodes[c.CommentID] != c {
			continue // 重复条目
		}
		f.attach(c)
	}
	f.sortTop()
}

// Add 增量插入一条评论（推送、乐观写、追加页共用）。
// 同 id 已存在时丢弃并返回 false，调用方据此决定要不要动计数。
func (f *Forest) Add(c *Comment) bool {
	if _, dup := f.nodes[c.CommentID]; dup {
		return false
	}
	c.Replies = nil
	c.NeedsReparent = false
	f.nodes[c.CommentID] = c
	f.adoptOrphans(c)
	f.attach(c)
	f.sortTop()
	return true
}

// Remove 摘除一个节点，不级联。它名下的回复按孤儿策略回到顶层
// 并带上重挂标记（服务端没承诺级联语义，客户端不自己发明）。
func (f *Forest) Remove(id int64) {
	c, ok := f.nodes[id]
	if !ok {
		return
	}
	delete(f.nodes, id)
	f.detach(c)

	for _, child := range c.Replies {
		child.NeedsReparent = true
		f.top = append(f.top, child)
	}
	c.Replies = nil
	f.sortTop()
}

// ===== 内部 =====

// attach 节点挂载。父级不在本地时不丢弃，挂顶层并标记待重挂。
func (f *Forest) attach(c *Comment) {
	if c.ParentID == 0 {
		f.top = append(f.top, c)
		return
	}
	parent, ok := f.nodes[c.ParentID]
	if !ok {
		c.NeedsReparent = true
		f.top = append(f.top, c)
		return
	}
	parent.Replies = append(parent.Replies, c)
	sortReplies(parent.Replies)
}

// detach 把节点从它当前所在的位置摘掉。
func (f *Forest) detach(c *Comment) {
	if c.ParentID != 0 && !c.NeedsReparent {
		if parent, ok := f.nodes[c.ParentID]; ok {
			for i, r := range parent.Replies {
				if r == c {
					parent.Replies = append(parent.Replies[:i], parent.Replies[i+1:]...)
					return
				}
			}
		}
	}
	for i, t := range f.top {
		if t == c {
			f.top = append(f.top[:i], f.top[i+1:]...)
			return
		}
	}
}

// adoptOrphans 新节点出现后，把等着它的孤儿从顶层收编为回复。
func (f *Forest) adoptOrphans(parent *Comment) {
	kept := f.top[:0]
	for _, t := range f.top {
		if t.NeedsReparent && t.ParentID == parent.CommentID {
			t.NeedsReparent = false
			parent.Replies = append(parent.Replies, t)
			continue
		}
		kept = append(kept, t)
	}
	f.top = kept
	sortReplies(parent.Replies)
}

func (f *Forest) sortTop() {
	sort.SliceStable(f.top, func(i, j int) bool {
		return tools.ParseTime(f.top[i].CreateTime).After(tools.ParseTime(f.top[j].CreateTime))
	})
}

func sortReplies(rs []*Comment) {
	sort.SliceStable(rs, func(i, j int) bool {
		return tools.ParseTime(rs[i].CreateTime).Before(tools.ParseTime(rs[j].CreateTime))
	})
}
