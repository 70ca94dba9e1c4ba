package friend

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"GProject/service/rest"
)

// Friend 好友 DTO。status: 0-待确认 1-已接受 2-已拒绝。
type Friend struct {
	FriendID     int64  `json:"friendId,omitempty"`
	UserID       int64  `json:"userId"`
	FriendUserID int64  `json:"friendUserId"`

	FriendNickname string `json:"friendNickname,omitempty"`
	FriendAvatar   string `json:"friendAvatar,omitempty"`
	FriendBio      string `json:"friendBio,omitempty"`

	Status     int    `json:"status"`
	StatusDesc string `json:"statusDesc,omitempty"`

	IsOnline     bool   `json:"isOnline,omitempty"`
	LastChatTime string `json:"lastChatTime,omitempty"`
	UnreadCount  int    `json:"unreadCount,omitempty"`
}

// SearchResult 用户搜索结果。
type SearchResult struct {
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
	IsFriend bool   `json:"isFriend,omitempty"`
}

// Store 好友列表与待处理请求。聊天会话列表的初始数据来自这里。
type Store struct {
	rc *rest.Client

	mu      sync.Mutex
	friends []*Friend
	pending []*Friend
}

func NewStore(rc *rest.Client) *Store {
	return &Store{rc: rc}
}

func (s *Store) FetchList(ctx context.Context) error {
	var list []*Friend
	if err := s.rc.Get(ctx, "/friend/list", nil, &list); err != nil {
		return err
	}
	s.mu.Lock()
	s.friends = list
	s.mu.Unlock()
	return nil
}

func (s *Store) FetchPending(ctx context.Context) error {
	var list []*Friend
	if err := s.rc.Get(ctx, "/friend/pending", nil, &list); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending = list
	s.mu.Unlock()
	return nil
}

// SendRequest 发送好友请求。source: 来源场景（星系成员、搜索等）。
func (s *Store) SendRequest(ctx context.Context, friendUserID int64, source int, message string) error {
	body := map[string]any{
		"friendUserId":   friendUserID,
		"source":         source,
		"requestMessage": message,
	}
	return s.rc.Post(ctx, "/friend/request", nil, body, nil)
}

// Accept 接受请求；本地从待处理挪进好友列表。
func (s *Store) Accept(ctx context.Context, friendID int64) error {
	if err := s.rc.Put(ctx, fmt.Sprintf("/friend/accept/%d", friendID), nil, nil, nil); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.pending {
		if r.FriendID == friendID {
			r.Status = 1
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.friends = append(s.friends, r)
			break
		}
	}
	return nil
}

func (s *Store) Reject(ctx context.Context, friendID int64) error {
	if err := s.rc.Put(ctx, fmt.Sprintf("/friend/reject/%d", friendID), nil, nil, nil); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.pending {
		if r.FriendID == friendID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, friendUserID int64) error {
	if err := s.rc.Delete(ctx, fmt.Sprintf("/friend/delete/%d", friendUserID), nil, nil, nil); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.friends {
		if f.FriendUserID == friendUserID {
			s.friends = append(s.friends[:i], s.friends[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, keyword string) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("keyword", keyword)
	var out []SearchResult
	if err := s.rc.Get(ctx, "/friend/search", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GalaxyMembers(ctx context.Context, galaxyID int64) ([]SearchResult, error) {
	var out []SearchResult
	if err := s.rc.Get(ctx, fmt.Sprintf("/friend/galaxy/%d/members", galaxyID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Friends() []Friend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Friend, len(s.friends))
	for i, f := range s.friends {
		out[i] = *f
	}
	return out
}

func (s *Store) Pending() []Friend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Friend, len(s.pending))
	for i, f := range s.pending {
		out[i] = *f
	}
	return out
}
