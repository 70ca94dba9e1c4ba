package notify

// 通知类型（type 字段取值）。
const (
	TypeGalaxyCommentReply = 1
	TypeGalaxyCommentLike  = 2
	TypeGalaxyNewComment   = 3
	TypePlanetCommentReply = 4
	TypePlanetCommentLike  = 5
	TypePlanetNewComment   = 6
	TypeSystem             = 7
)

// 关联目标类型（targetType 字段取值）。
const (
	TargetGalaxyComment = 1
	TargetGalaxy        = 2
	TargetPlanetComment = 3
	TargetPlanet        = 4
	TargetOther         = 5
)

// Notification 服务端下发的通知 DTO。身份键是 NotificationID。
type Notification struct {
	NotificationID int64 `json:"notificationId"`

	ReceiverID   int64  `json:"receiverId"`
	ReceiverName string `json:"receiverName,omitempty"`

	SenderID     int64  `json:"senderId,omitempty"`
	SenderName   string `json:"senderName,omitempty"`
	SenderAvatar string `json:"senderAvatar,omitempty"`

	Type     int    `json:"type"`
	TypeDesc string `json:"typeDesc,omitempty"`

	Title   string `json:"title"`
	Content string `json:"content,omitempty"`

	TargetType  int    `json:"targetType,omitempty"`
	TargetID    string `json:"targetId,omitempty"`
	TargetTitle string `json:"targetTitle,omitempty"`

	IsRead int `json:"isRead"` // 0-未读 1-已读
	Status int `json:"status,omitempty"`

	CreateTime string `json:"createTime,omitempty"`
	ReadTime   string `json:"readTime,omitempty"`

	JumpURL string `json:"jumpUrl,omitempty"`
}

// UnreadCount 未读统计。任何修改路径之后都必须满足
// Total == sum(ByType) == 集合里 isRead==0 的条数。
type UnreadCount struct {
	Total  int         `json:"total"`
	ByType map[int]int `json:"byType"`
}

func (u UnreadCount) clone() UnreadCount {
	out := UnreadCount{Total: u.Total, ByType: make(map[int]int, len(u.ByType))}
	for k, v := range u.ByType {
		out.ByType[k] = v
	}
	return out
}
