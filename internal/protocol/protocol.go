// Package protocol 定义 WebSocket 双向事件的固定 schema：入站事件在边界处
// 解码成带标签的变体，出站事件统一为 type + data 信封。
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// 入站事件类型。
const (
	InRegisterUser       = "register_user"
	InCreateRoom         = "create_room"
	InJoinRoom           = "join_room"
	InLeaveRoom          = "leave_room"
	InKickUser           = "kick_user"
	InBanUser            = "ban_user"
	InSendMessage        = "send_message"
	InSendPrivateMessage = "send_private_message"
	InAddReaction        = "add_reaction"
	InRemoveReaction     = "remove_reaction"
)

// 出站事件类型。
const (
	OutErrorMessage           = "error_message"
	OutRegistrationSuccessful = "registration_successful"
	OutUpdateRoomList         = "update_room_list"
	OutRoomCreated            = "room_created"
	OutRoomJoined             = "room_joined"
	OutUpdateUserList         = "update_user_list"
	OutUserJoinedRoom         = "user_joined_room"
	OutUserLeftRoom           = "user_left_room"
	OutYouAreNowCreator       = "you_are_now_creator"
	OutCreatorChanged         = "creator_changed"
	OutUserKickedFromRoom     = "user_kicked_from_room"
	OutKickedFromRoom         = "kicked_from_room"
	OutUserBannedFromRoom     = "user_banned_from_room"
	OutBannedFromRoom         = "banned_from_room"
	OutMessageToClient        = "message_to_client"
	OutPrivateMessage         = "private_message_to_client"
	OutReactionUpdated        = "reaction_updated"
	OutLeftRoom               = "left_room"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// 各入站事件的载荷。字段缺失按空串处理，由核心层的清洗校验兜底；
// 只有反应事件要求 messageId 必填，缺失时在边界直接丢弃。
type RegisterUser struct {
	Username string `json:"username"`
}

type CreateRoom struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type JoinRoom struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type KickUser struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

type BanUser struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

type SendMessage struct {
	Message string `json:"message"`
}

type SendPrivateMessage struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type AddReaction struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji"`
}

type RemoveReaction struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji"`
}

// Inbound 是解码后的入站事件，Type 决定哪个变体字段非空。
type Inbound struct {
	Type           string
	Register       *RegisterUser
	Create         *CreateRoom
	Join           *JoinRoom
	Kick           *KickUser
	Ban            *BanUser
	Send           *SendMessage
	SendPrivate    *SendPrivateMessage
	AddReaction    *AddReaction
	RemoveReaction *RemoveReaction
}

var validate = validator.New()

// Decode 解析入站信封并按事件类型解码载荷。未知事件类型和非法载荷
// 返回错误，由传输层决定丢弃。
func Decode(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("decode envelope: %w", err)
	}

	in := Inbound{Type: env.Type}
	data := env.Data
	if data == nil {
		data = json.RawMessage("{}")
	}

	var payload any
	switch env.Type {
	case InRegisterUser:
		in.Register = &RegisterUser{}
		payload = in.Register
	case InCreateRoom:
		in.Create = &CreateRoom{}
		payload = in.Create
	case InJoinRoom:
		in.Join = &JoinRoom{}
		payload = in.Join
	case InLeaveRoom:
		return in, nil
	case InKickUser:
		in.Kick = &KickUser{}
		payload = in.Kick
	case InBanUser:
		in.Ban = &BanUser{}
		payload = in.Ban
	case InSendMessage:
		in.Send = &SendMessage{}
		payload = in.Send
	case InSendPrivateMessage:
		in.SendPrivate = &SendPrivateMessage{}
		payload = in.SendPrivate
	case InAddReaction:
		in.AddReaction = &AddReaction{}
		payload = in.AddReaction
	case InRemoveReaction:
		in.RemoveReaction = &RemoveReaction{}
		payload = in.RemoveReaction
	default:
		return Inbound{}, fmt.Errorf("unknown event type %q", env.Type)
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return Inbound{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	if err := validate.Struct(payload); err != nil {
		return Inbound{}, fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return in, nil
}

// Event 是出站事件的统一信封。
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// UserDTO 对外输出的用户信息；CurrentRoom 为 nil 表示不在任何房间。
type UserDTO struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	CurrentRoom *string `json:"currentRoom"`
}

// RoomListEntry 房间列表条目，只暴露是否设有密码。
type RoomListEntry struct {
	Name        string `json:"name"`
	HasPassword bool   `json:"hasPassword"`
}

// MessageDTO 对外输出的聊天消息。
type MessageDTO struct {
	ID        string              `json:"id"`
	Message   string              `json:"message"`
	Sender    string              `json:"sender"`
	Reactions map[string][]string `json:"reactions"`
}

// RoomSnapshot 创建房间时回发给创建者的完整快照。成员以用户名呈现，
// 不泄露连接标识和密码本身。
type RoomSnapshot struct {
	Name        string       `json:"name"`
	HasPassword bool         `json:"hasPassword"`
	Users       []string     `json:"users"`
	Creator     string       `json:"creator"`
	Messages    []MessageDTO `json:"messages"`
}

func ErrorMessage(msg string) Event {
	return Event{Type: OutErrorMessage, Data: map[string]string{"message": msg}}
}

func RegistrationSuccessful(u UserDTO) Event {
	return Event{Type: OutRegistrationSuccessful, Data: map[string]UserDTO{"user": u}}
}

func UpdateRoomList(list []RoomListEntry) Event {
	return Event{Type: OutUpdateRoomList, Data: list}
}

func RoomCreated(snap RoomSnapshot) Event {
	return Event{Type: OutRoomCreated, Data: map[string]any{"room": snap, "isCreator": true}}
}

func RoomJoined(room string, isCreator bool) Event {
	return Event{Type: OutRoomJoined, Data: map[string]any{"room": room, "isCreator": isCreator}}
}

func UpdateUserList(usernames []string) Event {
	return Event{Type: OutUpdateUserList, Data: usernames}
}

func UserJoinedRoom(username string) Event {
	return Event{Type: OutUserJoinedRoom, Data: map[string]string{"username": username}}
}

func UserLeftRoom(username string) Event {
	return Event{Type: OutUserLeftRoom, Data: map[string]string{"username": username}}
}

func YouAreNowCreator(room string) Event {
	return Event{Type: OutYouAreNowCreator, Data: map[string]string{"room": room}}
}

func CreatorChanged(newCreator string) Event {
	return Event{Type: OutCreatorChanged, Data: map[string]string{"newCreator": newCreator}}
}

func UserKickedFromRoom(username, kickedBy string) Event {
	return Event{Type: OutUserKickedFromRoom, Data: map[string]string{"username": username, "kickedBy": kickedBy}}
}

func KickedFromRoom(room string) Event {
	return Event{Type: OutKickedFromRoom, Data: map[string]string{"room": room}}
}

func UserBannedFromRoom(username, bannedBy string) Event {
	return Event{Type: OutUserBannedFromRoom, Data: map[string]string{"username": username, "bannedBy": bannedBy}}
}

func BannedFromRoom(room string) Event {
	return Event{Type: OutBannedFromRoom, Data: map[string]string{"room": room}}
}

func MessageToClient(m MessageDTO) Event {
	return Event{Type: OutMessageToClient, Data: m}
}

func PrivateMessage(message, sender, recipient string, isReceived bool) Event {
	return Event{Type: OutPrivateMessage, Data: map[string]any{
		"message":    message,
		"sender":     sender,
		"recipient":  recipient,
		"isReceived": isReceived,
	}}
}

func ReactionUpdated(messageID string, reactions map[string][]string) Event {
	return Event{Type: OutReactionUpdated, Data: map[string]any{"messageId": messageID, "reactions": reactions}}
}

func LeftRoom(room string) Event {
	return Event{Type: OutLeftRoom, Data: map[string]string{"room": room}}
}
