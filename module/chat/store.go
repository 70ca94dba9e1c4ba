package chat

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"GProject/global"
	"GProject/logger"
	"GProject/module/friend"
	"GProject/service/effects"
	"GProject/service/push"
	"GProject/service/rest"
	"GProject/tools"
	"GProject/tools/decode"
	"GProject/tools/errs"
	"GProject/tools/security"
)

// Store 私信 reconciler。独占持有会话列表和当前会话的消息集合。
// 分页历史、发送回执、推送三路输入在这里归并成一个按时间升序的视图。
type Store struct {
	rc       *rest.Client
	identity security.Provider
	bus      *effects.Bus
	clock    func() time.Time
	pageSize int

	mu       sync.Mutex
	sessions []*Session
	active   *Session

	messages []*PrivateMessage
	msgIndex map[int64]*PrivateMessage
	seen     map[int64]struct{} // 推送见过的 messageId，至少一次投递下去重
	recalled map[int64]struct{} // 已撤回的 messageId，任何再投递都换占位

	page       int
	hasMore    bool
	loading    bool
	sending    bool
	fetchToken uint64 // 切会话即递增；迟到的响应对不上就丢弃

	totalUnread int
}

func NewStore(rc *rest.Client, id security.Provider, bus *effects.Bus, cfg global.Config) *Store {
	cfg.Norm()
	return &Store{
		rc:       rc,
		identity: id,
		bus:      bus,
		clock:    cfg.Clock,
		pageSize: cfg.PageSize,
		msgIndex: make(map[int64]*PrivateMessage),
		seen:     make(map[int64]struct{}),
		recalled: make(map[int64]struct{}),
		page:     1,
		hasMore:  true,
	}
}

// ===== 会话切换 =====

// SetActiveSession 切换焦点会话：重置游标、拉第一页，
// 如果第一页里有对端发来的未读消息则顺手标记已读。
func (s *Store) SetActiveSession(ctx context.Context, friendUserID int64) error {
	s.mu.Lock()
	sess := s.findSessionLocked(friendUserID)
	if sess == nil {
		sess = &Session{FriendUserID: friendUserID}
		s.sessions = append([]*Session{sess}, s.sessions...)
	}
	s.active = sess
	s.messages = nil
	s.msgIndex = make(map[int64]*PrivateMessage)
	s.page = 1
	s.hasMore = true
	s.fetchToken++
	token := s.fetchToken
	s.mu.Unlock()

	return s.loadPage(ctx, token, false)
}

func (s *Store) ClearActiveSession() {
	s.mu.Lock()
	s.active = nil
	s.messages = nil
	s.msgIndex = make(map[int64]*PrivateMessage)
	s.page = 1
	s.hasMore = true
	s.fetchToken++
	s.mu.Unlock()
}

// ===== 历史分页 =====

// LoadMessages 拉取当前会话历史。loadMore=false 替换，true 在顶部补更旧的一页。
func (s *Store) LoadMessages(ctx context.Context, loadMore bool) error {
	s.mu.Lock()
	token := s.fetchToken
	s.mu.Unlock()
	return s.loadPage(ctx, token, loadMore)
}

func (s *Store) loadPage(ctx context.Context, token uint64, loadMore bool) error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return errs.ErrNoActiveSession
	}
	// 第一页加载永远放行：新的会话切换要能压过在途的旧请求，
	// 旧响应由 token 对不上来丢弃。追加页才用 loading 防重入。
	if loadMore && (s.loading || !s.hasMore) {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	friendID := s.active.FriendUserID
	page := 1
	if loadMore {
		page = s.page + 1
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(s.pageSize))

	var fetched []*PrivateMessage
	if err := s.rc.Get(ctx, fmt.Sprintf("/message/history/%d", friendID), q, &fetched); err != nil {
		return err
	}

	s.mu.Lock()
	if token != s.fetchToken {
		// 响应回来之前会话已经切走了，整页丢弃（不算错误）
		s.mu.Unlock()
		logger.Debug("[chat] stale history page discarded")
		return nil
	}

	// 服务端按最新在前分页，翻转成显示用的升序
	reverse(fetched)

	if loadMore {
		older := make([]*PrivateMessage, 0, len(fetched))
		for _, m := range fetched {
			if s.adoptLocked(m) {
				older = append(older, m)
			}
		}
		s.messages = append(older, s.messages...)
		s.page = page
	} else {
		s.messages = s.messages[:0]
		s.msgIndex = make(map[int64]*PrivateMessage, len(fetched))
		for _, m := range fetched {
			if s.adoptLocked(m) {
				s.messages = append(s.messages, m)
			}
		}
		s.page = 1
	}
	s.hasMore = len(fetched) == s.pageSize
	s.sortLocked()

	needMark := false
	for _, m := range fetched {
		if m.SenderID == friendID && m.IsRead == 0 {
			needMark = true
			break
		}
	}
	s.mu.Unlock()

	if needMark {
		if err := s.markReadFor(ctx, friendID); err != nil {
			logger.Warnf("[chat] mark read after load err=%v", err)
		}
	}
	return nil
}

// adoptLocked 把一条消息纳入当前会话集合。
// 返回 false 表示同 id 已存在（撤回态的旧条目绝不被新内容覆盖）。
func (s *Store) adoptLocked(m *PrivateMessage) bool {
	if old, dup := s.msgIndex[m.MessageID]; dup {
		if old.IsRead == 0 && m.IsRead == 1 {
			old.IsRead = 1
			old.ReadTime = m.ReadTime
		}
		return false
	}
	if m.Status == StatusRecalled {
		s.recalled[m.MessageID] = struct{}{}
	} else if _, ok := s.recalled[m.MessageID]; ok {
		// 撤回过的消息换页后带着原文重新下发，换成占位
		m.Status = StatusRecalled
		m.Content = RecallPlaceholder
	}
	s.msgIndex[m.MessageID] = m
	return true
}

// sortLocked 显示顺序是 createTime 的严格函数；时间相同按插入顺序稳定。
func (s *Store) sortLocked() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return tools.ParseTime(s.messages[i].CreateTime).Before(tools.ParseTime(s.messages[j].CreateTime))
	})
}

// ===== 发送 =====

// SendMessage 串行发送：同会话上一条没发完时直接拒绝，避免乱序。
// 服务端同步分配 id，本地不做临时消息。
func (s *Store) SendMessage(ctx context.Context, content string, messageType int, attachmentURL string) (*PrivateMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errs.ErrEmptyMessage
	}
	me, ok := s.identity.Current()
	if !ok {
		return nil, errs.ErrAuthRequired
	}

	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil, errs.ErrNoActiveSession
	}
	if s.sending {
		s.mu.Unlock()
		return nil, errs.ErrSendInFlight
	}
	s.sending = true
	friendID := s.active.FriendUserID
	token := s.fetchToken
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	body := &PrivateMessage{
		SenderID:      me.UserID,
		ReceiverID:    friendID,
		Content:       content,
		MessageType:   messageType,
		AttachmentURL: attachmentURL,
	}
	var confirmed PrivateMessage
	if err := s.rc.Post(ctx, "/message/send", nil, body, &confirmed); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if token == s.fetchToken {
		if s.adoptLocked(&confirmed) {
			s.messages = append(s.messages, &confirmed)
			s.sortLocked()
		}
	}
	s.touchSessionLocked(friendID, &confirmed, false)
	s.mu.Unlock()

	s.bus.Emit(effects.Effect{Kind: effects.SessionTouched, Payload: friendID})
	return &confirmed, nil
}

// ===== 撤回 =====

// RecallMessage 撤回后本地置 status=2 并换占位文案。
// 之后同 id 的任何再投递都不会把原文带回来（见 adoptLocked / Handle 去重）。
func (s *Store) RecallMessage(ctx context.Context, messageID int64) error {
	if err := s.rc.Put(ctx, fmt.Sprintf("/message/recall/%d", messageID), nil, nil, nil); err != nil {
		return err
	}
	s.mu.Lock()
	if m, ok := s.msgIndex[messageID]; ok {
		m.Status = StatusRecalled
		m.Content = RecallPlaceholder
	}
	s.recalled[messageID] = struct{}{}
	s.mu.Unlock()
	return nil
}

// ===== push 路由接入 =====

func (s *Store) Kind() push.Kind { return push.KindPrivateMessage }

func (s *Store) Handle(ev push.Event) error {
	m, err := decode.DecodeMap[PrivateMessage](ev.Payload)
	if err != nil {
		return fmt.Errorf("private message payload: %w", err)
	}
	me, ok := s.identity.Current()
	if !ok {
		return nil // 已登出，无法判断归属，丢弃
	}
	s.receive(me.UserID, m)
	return nil
}

// receive 推送归并。属于当前会话就进消息列表；
// 无论属不属于，都更新（或懒建）归属会话并把它挪到列表最前。
func (s *Store) receive(me int64, m *PrivateMessage) {
	friendID := m.Counterpart(me)

	s.mu.Lock()
	if _, dup := s.seen[m.MessageID]; dup {
		// 重复投递：集合、未读都不得重复记
		s.mu.Unlock()
		return
	}
	s.seen[m.MessageID] = struct{}{}
	if m.Status == StatusRecalled {
		s.recalled[m.MessageID] = struct{}{}
	}

	belongsToActive := s.active != nil && s.active.FriendUserID == friendID
	fromCounterpart := m.SenderID != me

	if belongsToActive {
		// 分页可能已经把同一条带进来了，adoptLocked 负责去重和撤回占位
		if s.adoptLocked(m) {
			s.messages = append(s.messages, m)
			s.sortLocked()
			if fromCounterpart {
				m.IsRead = 1
				m.ReadTime = tools.FormatTime(s.clock())
			}
		}
	}

	incrUnread := fromCounterpart && !belongsToActive
	s.touchSessionLocked(friendID, m, incrUnread)
	if incrUnread {
		s.totalUnread++
	}
	s.mu.Unlock()

	if belongsToActive && fromCounterpart {
		// 推送处理不能阻塞，REST 确认异步补发；会话随后切走也只清这条线程
		go func() {
			if err := s.markReadFor(context.Background(), friendID); err != nil {
				logger.Warnf("[chat] mark read after push err=%v", err)
			}
		}()
	}

	s.bus.Emit(effects.Effect{Kind: effects.NewMessage, Payload: m})
	s.bus.Emit(effects.Effect{Kind: effects.SessionTouched, Payload: friendID})
}

// touchSessionLocked 更新归属会话的快照并挪到最前。没有就懒建。
func (s *Store) touchSessionLocked(friendID int64, m *PrivateMessage, incrUnread bool) {
	sess := s.findSessionLocked(friendID)
	if sess == nil {
		sess = &Session{FriendUserID: friendID, FriendName: m.SenderName, FriendAvatar: m.SenderAvatar}
		s.sessions = append([]*Session{sess}, s.sessions...)
	} else {
		for i, cur := range s.sessions {
			if cur == sess && i > 0 {
				s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
				s.sessions = append([]*Session{sess}, s.sessions...)
				break
			}
		}
	}
	sess.LastMessage = m.Content
	sess.LastMessageTime = m.CreateTime
	if incrUnread {
		sess.UnreadCount++
	}
}

func (s *Store) findSessionLocked(friendUserID int64) *Session {
	for _, sess := range s.sessions {
		if sess.FriendUserID == friendUserID {
			return sess
		}
	}
	return nil
}

// ===== 已读 =====

// MarkActiveRead 把当前会话里对端发来的未读消息全部标记为已读。
func (s *Store) MarkActiveRead(ctx context.Context) error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return errs.ErrNoActiveSession
	}
	friendID := s.active.FriendUserID
	s.mu.Unlock()
	return s.markReadFor(ctx, friendID)
}

// markReadFor 标记与指定好友的会话已读。异步路径必须在决策时把
// friendID 固定下来再调这里，期间切了会话也不能清错线程。
func (s *Store) markReadFor(ctx context.Context, friendID int64) error {
	if err := s.rc.Put(ctx, fmt.Sprintf("/message/read/%d", friendID), nil, nil, nil); err != nil {
		return err
	}

	s.mu.Lock()
	now := tools.FormatTime(s.clock())
	for _, m := range s.messages {
		if m.SenderID == friendID && m.IsRead == 0 {
			m.IsRead = 1
			m.ReadTime = now
		}
	}
	if sess := s.findSessionLocked(friendID); sess != nil {
		if s.totalUnread >= sess.UnreadCount {
			s.totalUnread -= sess.UnreadCount
		} else {
			s.totalUnread = 0
		}
		sess.UnreadCount = 0
	}
	s.mu.Unlock()
	return nil
}

// FetchUnreadTotal 拉服务端未读总数，服务端值覆盖本地。
func (s *Store) FetchUnreadTotal(ctx context.Context) error {
	var total int
	if err := s.rc.Get(ctx, "/message/unread/count", nil, &total); err != nil {
		return err
	}
	s.mu.Lock()
	s.totalUnread = total
	s.mu.Unlock()
	return nil
}

// ===== 会话列表 =====

// SeedSessions 用好友列表构建初始会话列表（服务端暂无会话接口）。
func (s *Store) SeedSessions(friends []friend.Friend) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[int64]*Session, len(s.sessions))
	for _, sess := range s.sessions {
		existing[sess.FriendUserID] = sess
	}

	out := make([]*Session, 0, len(friends))
	for _, f := range friends {
		if sess, ok := existing[f.FriendUserID]; ok {
			sess.FriendID = f.FriendID
			sess.FriendName = f.FriendNickname
			sess.FriendAvatar = f.FriendAvatar
			sess.IsOnline = f.IsOnline
			out = append(out, sess)
			continue
		}
		out = append(out, &Session{
			FriendID:        f.FriendID,
			FriendUserID:    f.FriendUserID,
			FriendName:      f.FriendNickname,
			FriendAvatar:    f.FriendAvatar,
			LastMessageTime: f.LastChatTime,
			UnreadCount:     f.UnreadCount,
			IsOnline:        f.IsOnline,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return tools.ParseTime(out[i].LastMessageTime).After(tools.ParseTime(out[j].LastMessageTime))
	})
	s.sessions = out
	if s.active != nil {
		if sess := s.findSessionLocked(s.active.FriendUserID); sess != nil {
			s.active = sess
		}
	}
}

// ===== 只读访问 =====

func (s *Store) Messages() []PrivateMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PrivateMessage, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// VisibleMessages 展示用列表：剔除已删除的，撤回的保留占位条目。
func (s *Store) VisibleMessages() []PrivateMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PrivateMessage, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Status == StatusDeleted {
			continue
		}
		out = append(out, *m)
	}
	return out
}

func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = *sess
	}
	return out
}

func (s *Store) ActiveSession() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Session{}, false
	}
	return *s.active, true
}

func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalUnread
}

func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func reverse(ms []*PrivateMessage) {
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
}
