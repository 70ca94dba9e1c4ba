package chat

// 消息类型。
const (
	MsgText  = 0
	MsgImage = 1
	MsgFile  = 2
)

// 消息状态。
const (
	StatusNormal   = 0
	StatusDeleted  = 1
	StatusRecalled = 2
)

// RecallPlaceholder 撤回后替换正文的占位内容。
const RecallPlaceholder = "该消息已撤回"

// PrivateMessage 私信 DTO。身份键是 MessageID，
// 归属会话由「对端 userId」决定（sender/receiver 里非本人的那个）。
type PrivateMessage struct {
	MessageID int64 `json:"messageId"`

	SenderID     int64  `json:"senderId"`
	SenderName   string `json:"senderName,omitempty"`
	SenderAvatar string `json:"senderAvatar,omitempty"`

	ReceiverID     int64  `json:"receiverId"`
	ReceiverName   string `json:"receiverName,omitempty"`
	ReceiverAvatar string `json:"receiverAvatar,omitempty"`

	Content       string `json:"content"`
	MessageType   int    `json:"messageType,omitempty"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`

	IsRead int `json:"isRead,omitempty"` // 0-未读 1-已读
	Status int `json:"status,omitempty"` // 0-正常 1-已删除 2-已撤回

	CreateTime string `json:"createTime,omitempty"`
	ReadTime   string `json:"readTime,omitempty"`
}

// Counterpart 这条消息的对端（非 me 的一方）。
func (m *PrivateMessage) Counterpart(me int64) int64 {
	if m.SenderID == me {
		return m.ReceiverID
	}
	return m.SenderID
}

// Session 与某个好友的聊天会话。会话列表按最近活跃降序。
type Session struct {
	FriendID     int64  `json:"friendId,omitempty"`
	FriendUserID int64  `json:"friendUserId"`
	FriendName   string `json:"friendName,omitempty"`
	FriendAvatar string `json:"friendAvatar,omitempty"`

	LastMessage     string `json:"lastMessage,omitempty"`
	LastMessageTime string `json:"lastMessageTime,omitempty"`

	UnreadCount int  `json:"unreadCount"`
	IsOnline    bool `json:"isOnline,omitempty"`
}
