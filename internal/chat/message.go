package chat

import (
	"chatserver/internal/protocol"

	"github.com/samber/lo"
)

// Message 房间日志里的一条消息。除 Reactions 外不可变；发送者用户名在
// 发送时刻固化，之后不随注册表变化。
type Message struct {
	ID        string
	Text      string
	Sender    string
	Reactions map[string][]string
}

func NewMessage(id, text, sender string) *Message {
	return &Message{ID: id, Text: text, Sender: sender, Reactions: make(map[string][]string)}
}

// AddReaction 把用户名加入 emoji 的反应集合，重复添加是幂等的。
func (m *Message) AddReaction(emoji, username string) {
	if !lo.Contains(m.Reactions[emoji], username) {
		m.Reactions[emoji] = append(m.Reactions[emoji], username)
	}
}

// RemoveReaction 把用户名移出 emoji 的反应集合，集合清空时删除整个
// emoji 键。返回该 emoji 是否存在过；不存在时调用方不应广播。
func (m *Message) RemoveReaction(emoji, username string) bool {
	set, ok := m.Reactions[emoji]
	if !ok {
		return false
	}
	set = lo.Without(set, username)
	if len(set) == 0 {
		delete(m.Reactions, emoji)
	} else {
		m.Reactions[emoji] = set
	}
	return true
}

// DTO 转成对外输出的消息结构。
func (m *Message) DTO() protocol.MessageDTO {
	return protocol.MessageDTO{ID: m.ID, Message: m.Text, Sender: m.Sender, Reactions: m.Reactions}
}
