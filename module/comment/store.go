package comment

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"GProject/global"
	"GProject/service/rest"
	"GProject/tools"
)

// Scope 区分星球评论和星系评论。两者实体结构一致，REST 面不同。
type Scope int

const (
	ScopePlanet Scope = iota
	ScopeGalaxy
)

// 星球评论列表响应：{total, list}。星系接口直接返回数组。
type pagedList struct {
	Total int        `json:"total"`
	List  []*Comment `json:"list"`
}

// Store 评论 reconciler。一个实例对应一个 scope（星球或星系），
// 森林和详情缓存都归它独占。
type Store struct {
	rc    *rest.Client
	scope Scope
	clock func() time.Time

	mu      sync.Mutex
	scopeID string
	forest  *Forest
	total   int
	details map[int64]*Comment

	page     int
	pageSize int
}

func NewPlanetStore(rc *rest.Client, cfg global.Config) *Store {
	return newStore(rc, ScopePlanet, cfg)
}

func NewGalaxyStore(rc *rest.Client, cfg global.Config) *Store {
	return newStore(rc, ScopeGalaxy, cfg)
}

func newStore(rc *rest.Client, scope Scope, cfg global.Config) *Store {
	cfg.Norm()
	return &Store{
		rc:       rc,
		scope:    scope,
		clock:    cfg.Clock,
		forest:   NewForest(),
		details:  make(map[int64]*Comment),
		page:     1,
		pageSize: cfg.PageSize,
	}
}

// ===== 列表 =====

// ListByParent 拉取 scopeID（星球 id 或星系 id）下的扁平评论列表并
// 按 parentId 归并进森林。第 1 页重建，后续页增量并入。
func (s *Store) ListByParent(ctx context.Context, scopeID string, page, size int) error {
	if size <= 0 {
		size = s.pageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var flat []*Comment
	var total int
	switch s.scope {
	case ScopePlanet:
		q.Set("planetId", scopeID)
		var resp pagedList
		if err := s.rc.Get(ctx, "/comment/listByPlanet", q, &resp); err != nil {
			return err
		}
		flat, total = resp.List, resp.Total
	default:
		var list []*Comment
		if err := s.rc.Get(ctx, "/galaxy/comment/list/"+scopeID, q, &list); err != nil {
			return err
		}
		flat, total = list, len(list)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopeID = scopeID
	if page <= 1 {
		s.forest.Reset(flat)
	} else {
		for _, c := range flat {
			s.forest.Add(c)
		}
	}
	s.page = page
	s.total = total
	return nil
}

// ===== 发布 =====

// Publish 发布评论。星系接口直接回整条 DTO；星球接口只回 id，
// 本地用提交内容补全后乐观插入。
func (s *Store) Publish(ctx context.Context, c *Comment) (*Comment, error) {
	switch s.scope {
	case ScopePlanet:
		body := map[string]any{
			"planetId": c.PlanetID,
			"userId":   c.UserID,
			"content":  c.Content,
			"parentId": c.ParentID,
		}
		var id int64
		if err := s.rc.Post(ctx, "/comment/create", nil, body, &id); err != nil {
			return nil, err
		}
		created := *c
		created.CommentID = id
		created.CreateTime = tools.FormatTime(s.clock())
		s.AddLocally(&created)
		return &created, nil
	default:
		body := map[string]any{
			"galaxyId": c.GalaxyID,
			"userId":   c.UserID,
			"content":  c.Content,
			"parentId": c.ParentID,
		}
		var created Comment
		if err := s.rc.Post(ctx, "/galaxy/comment/publish", nil, body, &created); err != nil {
			return nil, err
		}
		s.AddLocally(&created)
		return &created, nil
	}
}

// AddLocally 乐观插入：回复挂到父级下（父级没加载就顶层暂挂），
// 顶级评论按时间降序进顶层。重复 id 不入树也不计数。
func (s *Store) AddLocally(c *Comment) {
	s.mu.Lock()
	if s.forest.Add(c) {
		s.total++
	}
	s.mu.Unlock()
}

// RemoveLocally 本地摘除，不级联。
func (s *Store) RemoveLocally(id int64) {
	s.mu.Lock()
	if _, ok := s.forest.Get(id); ok {
		s.forest.Remove(id)
		s.total--
	}
	s.mu.Unlock()
}

// ===== 点赞 =====

// ToggleLike 点赞/取消点赞（星系面）。服务端 bool 表示点赞后的状态，
// 本地按它加减一，计数不允许为负。
func (s *Store) ToggleLike(ctx context.Context, commentID, userID int64) (bool, error) {
	q := url.Values{}
	q.Set("commentId", strconv.FormatInt(commentID, 10))
	q.Set("userId", strconv.FormatInt(userID, 10))

	var liked bool
	if err := s.rc.Post(ctx, "/galaxy/comment/like", q, nil, &liked); err != nil {
		return false, err
	}

	s.mu.Lock()
	if c, ok := s.forest.Get(commentID); ok {
		if liked {
			c.LikeCount++
		} else if c.LikeCount > 0 {
			c.LikeCount--
		}
		c.IsLiked = liked
	}
	s.mu.Unlock()
	return liked, nil
}

// UpdateLikeCount 星球面的点赞计数上报，服务端确认后采用上报值。
func (s *Store) UpdateLikeCount(ctx context.Context, commentID int64, likeCount int) error {
	if likeCount < 0 {
		likeCount = 0
	}
	body := map[string]any{"commentId": commentID, "likeCount": likeCount}
	if err := s.rc.Put(ctx, "/comment/updateLikeCount", nil, body, nil); err != nil {
		return err
	}
	s.mu.Lock()
	if c, ok := s.forest.Get(commentID); ok {
		c.LikeCount = likeCount
	}
	s.mu.Unlock()
	return nil
}

// ===== 状态 / 删除 =====

func (s *Store) UpdateStatus(ctx context.Context, commentID int64, status int) error {
	body := map[string]any{"commentId": commentID, "status": status}
	if err := s.rc.Put(ctx, "/comment/updateStatus", nil, body, nil); err != nil {
		return err
	}
	s.mu.Lock()
	if c, ok := s.forest.Get(commentID); ok {
		c.Status = status
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(ctx context.Context, commentID, userID int64) error {
	switch s.scope {
	case ScopePlanet:
		body := map[string]any{"commentId": commentID}
		if err := s.rc.Delete(ctx, "/comment/delete", nil, body, nil); err != nil {
			return err
		}
	default:
		q := url.Values{}
		q.Set("userId", strconv.FormatInt(userID, 10))
		if err := s.rc.Delete(ctx, fmt.Sprintf("/galaxy/comment/delete/%d", commentID), q, nil, nil); err != nil {
			return err
		}
	}
	s.mu.Lock()
	if _, ok := s.forest.Get(commentID); ok {
		s.forest.Remove(commentID)
		s.total--
	}
	delete(s.details, commentID)
	s.mu.Unlock()
	return nil
}

// DeleteByPlanet 清空整个星球的评论。
func (s *Store) DeleteByPlanet(ctx context.Context, planetID string) error {
	if err := s.rc.Delete(ctx, "/comment/deleteByPlanetId/"+planetID, nil, nil, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.forest = NewForest()
	s.total = 0
	s.details = make(map[int64]*Comment)
	s.mu.Unlock()
	return nil
}

// ===== 详情 =====

// FetchDetail 拉取单条详情并缓存。
func (s *Store) FetchDetail(ctx context.Context, commentID, userID int64) (*Comment, error) {
	var out Comment
	switch s.scope {
	case ScopePlanet:
		q := url.Values{}
		q.Set("commentId", strconv.FormatInt(commentID, 10))
		if err := s.rc.Get(ctx, "/comment/commentinfo", q, &out); err != nil {
			return nil, err
		}
	default:
		q := url.Values{}
		q.Set("userId", strconv.FormatInt(userID, 10))
		if err := s.rc.Get(ctx, fmt.Sprintf("/galaxy/comment/detail/%d", commentID), q, &out); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	s.details[commentID] = &out
	s.mu.Unlock()
	return &out, nil
}

// ===== 只读访问 =====

// TopLevel 顶层评论（降序），含暂挂孤儿。
func (s *Store) TopLevel() []*Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest.Top()
}

func (s *Store) Find(commentID int64) (*Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest.Get(commentID)
}

func (s *Store) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
