package tools

import (
	"strings"
	"time"
)

// 服务端的 createTime 有 ISO8601 和 "2006-01-02 15:04:05" 两种形态。
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTime 宽容解析服务端时间字符串，解析失败返回零值。
// 排序场景里零值会落到最旧（升序最前）。
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatTime 统一输出 ISO8601。
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
