package chat

import (
	"errors"
	"fmt"
)

// 业务层哨兵错误。分发层据此生成面向用户的 error_message 事件，
// 错误一律只通知发起方，且不产生任何部分状态变更。
var (
	ErrUserNotRegistered = errors.New("user not registered")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrUsernameTaken     = errors.New("username taken")
	ErrInvalidRoomName   = errors.New("invalid room name")
	ErrRoomExists        = errors.New("room exists")
	ErrRoomNotFound      = errors.New("room not found")
	ErrWrongPassword     = errors.New("wrong password")
	ErrBanned            = errors.New("banned from room")
	ErrAlreadyMember     = errors.New("already in room")
	ErrNotInRoom         = errors.New("not in a room")
	ErrNotCreator        = errors.New("not room creator")
	ErrTargetNotInRoom   = errors.New("target not in room")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrDifferentRoom     = errors.New("recipient in different room")
	ErrEmptyMessage      = errors.New("empty message")
)

// 踢人和封禁的越权提示文案不同，但归类上都是 ErrNotCreator。
var (
	ErrNotCreatorKick = fmt.Errorf("%w: kick", ErrNotCreator)
	ErrNotCreatorBan  = fmt.Errorf("%w: ban", ErrNotCreator)
)

// 房主不能把自己作为踢出/封禁目标，否则房间会留下不在成员列表里的
// 房主甚至零成员的房间。自我移除走显式离开。
var (
	ErrSelfTarget = errors.New("cannot target yourself")
	ErrSelfKick   = fmt.Errorf("%w: kick", ErrSelfTarget)
	ErrSelfBan    = fmt.Errorf("%w: ban", ErrSelfTarget)
)

// userMessage 把哨兵错误映射成客户端展示用的提示文案。
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrUserNotRegistered):
		return "User not registered!"
	case errors.Is(err, ErrInvalidUsername):
		return "Invalid username! Use 3-20 characters (letters, numbers, hyphens, underscores)."
	case errors.Is(err, ErrUsernameTaken):
		return "Username already taken!"
	case errors.Is(err, ErrInvalidRoomName):
		return "Invalid room name! Use 3-30 characters (letters, numbers, spaces, hyphens, underscores)."
	case errors.Is(err, ErrRoomExists):
		return "Room already exists!"
	case errors.Is(err, ErrRoomNotFound):
		return "Room does not exist!"
	case errors.Is(err, ErrWrongPassword):
		return "Incorrect password!"
	case errors.Is(err, ErrBanned):
		return "You are banned from this room!"
	case errors.Is(err, ErrAlreadyMember):
		return "You are already in this room!"
	case errors.Is(err, ErrNotInRoom):
		return "You are not in a room!"
	case errors.Is(err, ErrNotCreatorKick):
		return "Only the room creator can kick users!"
	case errors.Is(err, ErrNotCreatorBan):
		return "Only the room creator can ban users!"
	case errors.Is(err, ErrSelfKick):
		return "You cannot kick yourself!"
	case errors.Is(err, ErrSelfBan):
		return "You cannot ban yourself!"
	case errors.Is(err, ErrTargetNotInRoom):
		return "User not found in the room!"
	case errors.Is(err, ErrRecipientNotFound):
		return "Recipient not found!"
	case errors.Is(err, ErrDifferentRoom):
		return "Recipient is not in the same room!"
	case errors.Is(err, ErrEmptyMessage):
		return "Cannot send empty message!"
	default:
		return "Something went wrong!"
	}
}
