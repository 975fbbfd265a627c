package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IDGenerator 产生全局唯一、按构造时间有序的消息 id。作为依赖注入
// Service，测试可替换成确定性实现。
type IDGenerator interface {
	NextID() string
}

// TimestampIDs 默认实现：毫秒时间戳加 uuid 片段。时间戳保证排序，
// 随机片段让并发发送的碰撞概率可以忽略。
type TimestampIDs struct{}

func (TimestampIDs) NextID() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
