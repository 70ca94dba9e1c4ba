package comment

// 评论状态。
const (
	StatusNormal = 0
	StatusHidden = 1
	StatusDeleted = 2
)

// Comment 评论 DTO。星球评论和星系评论结构一致，likes/likeCount
// 两种字段名在解码层都归到 LikeCount。ParentID==0 为顶级评论。
type Comment struct {
	CommentID int64  `json:"commentId"`
	PlanetID  string `json:"planetId,omitempty"`
	GalaxyID  int64  `json:"galaxyId,omitempty"`
	UserID    int64  `json:"userId"`

	Content  string `json:"content"`
	ParentID int64  `json:"parentId"`
	Level    int    `json:"level,omitempty"`

	LikeCount int  `json:"likeCount"`
	IsLiked   bool `json:"isLiked,omitempty"`

	Status int `json:"status"`

	CreateTime string `json:"createTime"`
	UpdateTime string `json:"updateTime,omitempty"`

	// Replies 只由 reconciler 维护，服务端的扁平列表从不直接进来。
	// 升序排列。
	Replies []*Comment `json:"replies,omitempty"`

	// NeedsReparent 父级还没加载时挂在顶层的孤儿回复标记，
	// 父级一旦出现就会被收编。
	NeedsReparent bool `json:"-"`
}
