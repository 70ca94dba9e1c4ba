package notify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"GProject/global"
	"GProject/logger"
	"GProject/service/effects"
	"GProject/service/push"
	"GProject/service/rest"
	"GProject/tools"
	"GProject/tools/decode"
)

// Store 通知 reconciler。独占持有通知集合与未读计数，
// 分页拉取、推送、本地已读/删除三路输入都在这里归并。
type Store struct {
	rc    *rest.Client
	bus   *effects.Bus
	clock func() time.Time

	mu            sync.Mutex
	notifications []*Notification
	index         map[int64]*Notification
	unread        UnreadCount

	page     int
	pageSize int
	hasMore  bool
	loading  bool

	filterType *int
	unreadOnly bool
}

func NewStore(rc *rest.Client, bus *effects.Bus, cfg global.Config) *Store {
	cfg.Norm()
	return &Store{
		rc:       rc,
		bus:      bus,
		clock:    cfg.Clock,
		index:    make(map[int64]*Notification),
		unread:   UnreadCount{ByType: make(map[int]int)},
		page:     1,
		pageSize: cfg.PageSize,
		hasMore:  true,
	}
}

// ===== push 路由接入 =====

func (s *Store) Kind() push.Kind { return push.KindNotification }

func (s *Store) Handle(ev push.Event) error {
	n, err := decode.DecodeMap[Notification](ev.Payload)
	if err != nil {
		return fmt.Errorf("notification payload: %w", err)
	}
	s.ingest(n)
	return nil
}

// ingest 推送进集合：头插（最新在前）。服务端按至少一次投递，
// 同 id 已存在时整条跳过，计数也不能重复加。
func (s *Store) ingest(n *Notification) {
	s.mu.Lock()
	if _, dup := s.index[n.NotificationID]; dup {
		s.mu.Unlock()
		return
	}
	s.notifications = append([]*Notification{n}, s.notifications...)
	s.index[n.NotificationID] = n
	if n.IsRead == 0 {
		s.unread.Total++
		s.unread.ByType[n.Type]++
	}
	s.mu.Unlock()

	s.bus.Emit(effects.Effect{Kind: effects.NewNotification, Payload: n})
}

// ===== 分页拉取 =====

// FetchPage 拉第 page 页。第 1 页替换集合，后续页追加。
// hasMore 按「返回条数 == 页大小」判断。
func (s *Store) FetchPage(ctx context.Context, page int) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	filterType, unreadOnly := s.filterType, s.unreadOnly
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(s.pageSize))
	if filterType != nil {
		q.Set("type", strconv.Itoa(*filterType))
	}
	if unreadOnly {
		q.Set("isRead", "0")
	}

	var fetched []*Notification
	if err := s.rc.Get(ctx, "/notification/list", q, &fetched); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if page == 1 {
		s.replaceLocked(fetched)
	} else {
		s.appendLocked(fetched)
	}
	s.page = page
	s.hasMore = len(fetched) == s.pageSize
	s.recountLocked()
	return nil
}

func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasMore || s.loading {
		s.mu.Unlock()
		return nil
	}
	next := s.page + 1
	s.mu.Unlock()
	return s.FetchPage(ctx, next)
}

// SetFilterType 切换类型筛选并重拉第一页。nil 表示不筛选。
func (s *Store) SetFilterType(ctx context.Context, t *int) error {
	s.mu.Lock()
	s.filterType = t
	s.mu.Unlock()
	return s.FetchPage(ctx, 1)
}

func (s *Store) ToggleUnreadOnly(ctx context.Context) error {
	s.mu.Lock()
	s.unreadOnly = !s.unreadOnly
	s.mu.Unlock()
	return s.FetchPage(ctx, 1)
}

// replaceLocked 第一页替换。已读状态只进不退：
// 本地已标记为已读的通知即使服务端还回 isRead=0 也保持已读。
func (s *Store) replaceLocked(fetched []*Notification) {
	for _, n := range fetched {
		if old, ok := s.index[n.NotificationID]; ok && old.IsRead == 1 && n.IsRead == 0 {
			n.IsRead = 1
			n.ReadTime = old.ReadTime
		}
	}
	s.notifications = s.notifications[:0]
	s.index = make(map[int64]*Notification, len(fetched))
	for _, n := range fetched {
		if _, dup := s.index[n.NotificationID]; dup {
			continue
		}
		s.notifications = append(s.notifications, n)
		s.index[n.NotificationID] = n
	}
}

func (s *Store) appendLocked(fetched []*Notification) {
	for _, n := range fetched {
		if old, ok := s.index[n.NotificationID]; ok {
			// 推送先到、分页后到：保留本地条目，只补已读单调性
			if old.IsRead == 0 && n.IsRead == 1 {
				old.IsRead = 1
				old.ReadTime = n.ReadTime
			}
			continue
		}
		s.notifications = append(s.notifications, n)
		s.index[n.NotificationID] = n
	}
}

// recountLocked 以本地集合为准重算未读计数。
func (s *Store) recountLocked() {
	u := UnreadCount{ByType: make(map[int]int)}
	for _, n := range s.notifications {
		if n.IsRead == 0 {
			u.Total++
			u.ByType[n.Type]++
		}
	}
	s.unread = u
}

// ===== 已读 =====

func (s *Store) MarkRead(ctx context.Context, id int64) error {
	if err := s.rc.Put(ctx, fmt.Sprintf("/notification/read/%d", id), nil, nil, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.markReadLocked(id)
	s.mu.Unlock()
	s.reconcileUnread(ctx)
	return nil
}

func (s *Store) MarkReadBatch(ctx context.Context, ids []int64) error {
	body := map[string]any{"notificationIds": ids}
	if err := s.rc.Put(ctx, "/notification/read/batch", nil, body, nil); err != nil {
		return err
	}
	s.mu.Lock()
	for _, id := range ids {
		s.markReadLocked(id)
	}
	s.mu.Unlock()
	s.reconcileUnread(ctx)
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context) error {
	if err := s.rc.Put(ctx, "/notification/read/all", nil, nil, nil); err != nil {
		return err
	}
	s.mu.Lock()
	now := tools.FormatTime(s.clock())
	for _, n := range s.notifications {
		if n.IsRead == 0 {
			n.IsRead = 1
			n.ReadTime = now
		}
	}
	s.unread = UnreadCount{ByType: make(map[int]int)}
	s.mu.Unlock()
	return nil
}

// 持锁调用。幂等：已读条目不重复扣计数。
func (s *Store) markReadLocked(id int64) {
	n, ok := s.index[id]
	if !ok || n.IsRead == 1 {
		return
	}
	n.IsRead = 1
	n.ReadTime = tools.FormatTime(s.clock())
	if s.unread.Total > 0 {
		s.unread.Total--
	}
	if s.unread.ByType[n.Type] > 0 {
		s.unread.ByType[n.Type]--
	}
}

// reconcileUnread 标记完成后向服务端对账，服务端值覆盖本地。
// 对账失败只记日志，本地推算值继续用。
func (s *Store) reconcileUnread(ctx context.Context) {
	var server UnreadCount
	if err := s.rc.Get(ctx, "/notification/unread/count", nil, &server); err != nil {
		logger.Warnf("[notify] unread reconcile err=%v", err)
		return
	}
	if server.ByType == nil {
		server.ByType = make(map[int]int)
	}
	s.mu.Lock()
	s.unread = server
	s.mu.Unlock()
}

// FetchUnreadCount 直接取服务端未读统计。
func (s *Store) FetchUnreadCount(ctx context.Context) error {
	var server UnreadCount
	if err := s.rc.Get(ctx, "/notification/unread/count", nil, &server); err != nil {
		return err
	}
	if server.ByType == nil {
		server.ByType = make(map[int]int)
	}
	s.mu.Lock()
	s.unread = server
	s.mu.Unlock()
	return nil
}

// ===== 删除 =====

func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.rc.Delete(ctx, fmt.Sprintf("/notification/delete/%d", id), nil, nil, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, ids []int64) error {
	body := map[string]any{"notificationIds": ids}
	if err := s.rc.Delete(ctx, "/notification/batch", nil, body, nil); err != nil {
		return err
	}
	s.mu.Lock()
	for _, id := range ids {
		s.removeLocked(id)
	}
	s.mu.Unlock()
	return nil
}

// 持锁调用。删掉未读条目时计数同步扣减，否则 Total 和集合会脱节。
func (s *Store) removeLocked(id int64) {
	n, ok := s.index[id]
	if !ok {
		return
	}
	if n.IsRead == 0 {
		if s.unread.Total > 0 {
			s.unread.Total--
		}
		if s.unread.ByType[n.Type] > 0 {
			s.unread.ByType[n.Type]--
		}
	}
	delete(s.index, id)
	for i, cur := range s.notifications {
		if cur.NotificationID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			break
		}
	}
}

// ===== 只读访问 =====

func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.notifications))
	for i, n := range s.notifications {
		out[i] = *n
	}
	return out
}

func (s *Store) Unread() UnreadCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread.clone()
}

func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}
