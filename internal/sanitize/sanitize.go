package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// 与客户端约定的字段长度上限。
const (
	MaxUsernameLen = 20
	MaxRoomNameLen = 30
	MaxPasswordLen = 50
	MaxMessageLen  = 500
	MaxEmojiLen    = 10
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	roomNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)
)

// Clean 规范化不可信输入：去除首尾空白、按 maxLen 截断，并把 < > 转义成
// HTML 实体，防止客户端渲染时被注入标签。截断按 rune 计数，多字节字符
// 不会被切成无效的半个 UTF-8 序列。注意转义发生在截断之后，转义后的
// 字符串可能超过 maxLen，这是沿用的协议行为。
func Clean(input string, maxLen int) string {
	s := strings.TrimSpace(input)
	if utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
	}
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// ValidUsername 校验用户名：3-20 个字符，只允许字母、数字、下划线、连字符。
func ValidUsername(s string) bool {
	if len(s) < 3 || len(s) > MaxUsernameLen {
		return false
	}
	return usernamePattern.MatchString(s)
}

// ValidRoomName 校验房间名：3-30 个字符，额外允许空格。
func ValidRoomName(s string) bool {
	if len(s) < 3 || len(s) > MaxRoomNameLen {
		return false
	}
	return roomNamePattern.MatchString(s)
}
