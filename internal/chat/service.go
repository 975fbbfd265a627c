// Package chat 实现房间/成员状态机与广播编排：谁能进哪个房间、房主如何
// 转移、消息和反应如何存储重放，以及每次状态迁移对应哪些通知事件。
package chat

import (
	"sync"

	"chatserver/internal/metrics"
	"chatserver/internal/protocol"
	"chatserver/internal/sanitize"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Sender 传输层端口。Join/Leave 让广播通道成员与房间成员保持 1:1 镜像，
// ToConn/ToRoom/ToAll 分别面向单连接、房间通道和全部连接投递事件。
type Sender interface {
	Join(connID, room string)
	Leave(connID, room string)
	ToConn(connID string, evt protocol.Event)
	ToRoom(room string, evt protocol.Event)
	ToAll(evt protocol.Event)
}

// Service 聚合两个注册表并编排所有状态迁移。单把互斥锁把每个入站事件
// 处理成不可分割的单元：迁移计算、状态写入、广播集合的组装期间，其他
// 事件观察不到中间状态。所有操作都是纯内存的，不存在阻塞 I/O。
type Service struct {
	mu    sync.Mutex
	users *UserRegistry
	rooms *RoomRegistry
	out   Sender
	ids   IDGenerator
	log   zerolog.Logger
}

func NewService(out Sender, ids IDGenerator, log zerolog.Logger) *Service {
	return &Service{
		users: NewUserRegistry(),
		rooms: NewRoomRegistry(),
		out:   out,
		ids:   ids,
		log:   log,
	}
}

// Dispatch 处理一个解码后的入站事件。业务错误转成 error_message 事件
// 回给发起方，共享状态保持未变；反应类事件按约定静默降级，不回错误。
func (s *Service) Dispatch(connID string, in protocol.Inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.EventsTotal.WithLabelValues(in.Type).Inc()

	var err error
	switch in.Type {
	case protocol.InRegisterUser:
		err = s.register(connID, in.Register.Username)
	case protocol.InCreateRoom:
		err = s.createRoom(connID, in.Create.Name, in.Create.Password)
	case protocol.InJoinRoom:
		err = s.joinRoom(connID, in.Join.Name, in.Join.Password)
	case protocol.InLeaveRoom:
		err = s.leaveRoom(connID)
	case protocol.InKickUser:
		err = s.kick(connID, in.Kick.Username, in.Kick.Room)
	case protocol.InBanUser:
		err = s.ban(connID, in.Ban.Username, in.Ban.Room)
	case protocol.InSendMessage:
		err = s.sendMessage(connID, in.Send.Message)
	case protocol.InSendPrivateMessage:
		err = s.sendPrivate(connID, in.SendPrivate.Recipient, in.SendPrivate.Message)
	case protocol.InAddReaction:
		s.addReaction(connID, in.AddReaction.MessageID, in.AddReaction.Emoji)
	case protocol.InRemoveReaction:
		s.removeReaction(connID, in.RemoveReaction.MessageID, in.RemoveReaction.Emoji)
	default:
		s.log.Warn().Str("type", in.Type).Msg("unhandled inbound event")
	}

	if err != nil {
		s.log.Debug().Err(err).Str("conn", connID).Str("type", in.Type).Msg("event rejected")
		s.out.ToConn(connID, protocol.ErrorMessage(userMessage(err)))
	}
}

// Disconnect 连接断开时的收尾：先走完整的离开迁移，再无条件删除用户。
// 这里永远不向外抛错，断开清理是尽力而为的。
func (s *Service) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users.Lookup(connID)
	if u == nil {
		return
	}
	s.forceLeave(u)
	s.users.Remove(connID)
	s.log.Info().Str("conn", connID).Str("username", u.Username).Msg("user disconnected")
}

// RoomList 返回当前房间列表快照，供只读 HTTP 接口复用。
func (s *Service) RoomList() []protocol.RoomListEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.List()
}

func (s *Service) register(connID, rawUsername string) error {
	username := sanitize.Clean(rawUsername, sanitize.MaxUsernameLen)
	if !sanitize.ValidUsername(username) {
		return ErrInvalidUsername
	}
	if s.users.UsernameTaken(username) {
		return ErrUsernameTaken
	}

	// 已注册连接重新注册：先完成离开迁移，保证成员列表与 CurrentRoom
	// 不会脱节，然后替换档案。
	if existing := s.users.Lookup(connID); existing != nil {
		s.forceLeave(existing)
		s.users.Remove(connID)
	}

	u := &User{ID: connID, Username: username}
	s.users.Add(u)
	s.log.Info().Str("conn", connID).Str("username", username).Msg("user registered")

	s.out.ToConn(connID, protocol.RegistrationSuccessful(u.DTO()))
	s.out.ToConn(connID, protocol.UpdateRoomList(s.rooms.List()))
	return nil
}

func (s *Service) createRoom(connID, rawName, rawPassword string) error {
	u := s.users.Lookup(connID)
	if u == nil {
		return ErrUserNotRegistered
	}
	name := sanitize.Clean(rawName, sanitize.MaxRoomNameLen)
	if !sanitize.ValidRoomName(name) {
		return ErrInvalidRoomName
	}
	if s.rooms.Exists(name) {
		return ErrRoomExists
	}
	password := sanitize.Clean(rawPassword, sanitize.MaxPasswordLen)

	s.forceLeave(u)

	room := s.rooms.Create(name, password, connID)
	s.out.Join(connID, name)
	u.CurrentRoom = name
	s.log.Info().Str("room", name).Str("creator", u.Username).Bool("protected", room.HasPassword()).Msg("room created")

	s.out.ToConn(connID, protocol.RoomCreated(s.snapshot(room)))
	s.out.ToRoom(name, protocol.UpdateUserList(s.users.Usernames(room.Members)))
	s.out.ToAll(protocol.UpdateRoomList(s.rooms.List()))
	return nil
}

func (s *Service) joinRoom(connID, rawName, rawPassword string) error {
	u := s.users.Lookup(connID)
	if u == nil {
		return ErrUserNotRegistered
	}
	name := sanitize.Clean(rawName, sanitize.MaxRoomNameLen)

	// 检查顺序是协议的一部分：存在 → 密码 → 封禁 → 重复加入。
	room := s.rooms.Get(name)
	if room == nil {
		return ErrRoomNotFound
	}
	password := sanitize.Clean(rawPassword, sanitize.MaxPasswordLen)
	if room.HasPassword() && room.Password != password {
		return ErrWrongPassword
	}
	if room.IsBanned(connID) {
		return ErrBanned
	}
	if room.HasMember(connID) {
		return ErrAlreadyMember
	}

	s.forceLeave(u)

	room.Members = append(room.Members, connID)
	s.out.Join(connID, name)
	u.CurrentRoom = name
	s.log.Info().Str("room", name).Str("username", u.Username).Msg("user joined room")

	s.out.ToConn(connID, protocol.RoomJoined(name, room.Creator == connID))
	s.out.ToRoom(name, protocol.UpdateUserList(s.users.Usernames(room.Members)))
	s.out.ToAll(protocol.UpdateRoomList(s.rooms.List()))
	s.roomExcept(room, connID, protocol.UserJoinedRoom(u.Username))
	return nil
}

func (s *Service) leaveRoom(connID string) error {
	u := s.users.Lookup(connID)
	if u == nil {
		return ErrUserNotRegistered
	}
	if u.CurrentRoom == "" {
		return ErrNotInRoom
	}
	name := u.CurrentRoom
	if room := s.rooms.Get(name); room != nil {
		s.leaveTransition(u, room)
	}
	u.CurrentRoom = ""
	s.out.ToConn(connID, protocol.LeftRoom(name))
	return nil
}

func (s *Service) kick(actorID, rawTarget, rawRoom string) error {
	target, room, err := s.moderationTarget(actorID, rawTarget, rawRoom, ErrNotCreatorKick, ErrSelfKick)
	if err != nil {
		return err
	}
	actor := s.users.Lookup(actorID)

	s.expel(target, room)
	s.log.Info().Str("room", room.Name).Str("target", target.Username).Str("by", actor.Username).Msg("user kicked")

	s.out.ToRoom(room.Name, protocol.UpdateUserList(s.users.Usernames(room.Members)))
	s.out.ToRoom(room.Name, protocol.UserKickedFromRoom(target.Username, actor.Username))
	s.out.ToConn(target.ID, protocol.KickedFromRoom(room.Name))
	return nil
}

func (s *Service) ban(actorID, rawTarget, rawRoom string) error {
	target, room, err := s.moderationTarget(actorID, rawTarget, rawRoom, ErrNotCreatorBan, ErrSelfBan)
	if err != nil {
		return err
	}
	actor := s.users.Lookup(actorID)

	s.expel(target, room)
	room.BanMember(target.ID)
	s.log.Info().Str("room", room.Name).Str("target", target.Username).Str("by", actor.Username).Msg("user banned")

	s.out.ToRoom(room.Name, protocol.UpdateUserList(s.users.Usernames(room.Members)))
	s.out.ToRoom(room.Name, protocol.UserBannedFromRoom(target.Username, actor.Username))
	s.out.ToConn(target.ID, protocol.BannedFromRoom(room.Name))
	return nil
}

func (s *Service) sendMessage(connID, rawText string) error {
	u := s.users.Lookup(connID)
	if u == nil {
		return ErrUserNotRegistered
	}
	if u.CurrentRoom == "" {
		return ErrNotInRoom
	}
	text := sanitize.Clean(rawText, sanitize.MaxMessageLen)
	if text == "" {
		return ErrEmptyMessage
	}
	room := s.rooms.Get(u.CurrentRoom)
	if room == nil {
		return ErrNotInRoom
	}

	msg := NewMessage(s.ids.NextID(), text, u.Username)
	room.Messages = append(room.Messages, msg)
	metrics.MessagesTotal.Inc()

	s.out.ToRoom(room.Name, protocol.MessageToClient(msg.DTO()))
	return nil
}

func (s *Service) sendPrivate(connID, rawRecipient, rawText string) error {
	u := s.users.Lookup(connID)
	if u == nil {
		return ErrUserNotRegistered
	}
	recipientName := sanitize.Clean(rawRecipient, sanitize.MaxUsernameLen)
	text := sanitize.Clean(rawText, sanitize.MaxMessageLen)

	recipient := s.users.FindByUsername(recipientName)
	if recipient == nil {
		return ErrRecipientNotFound
	}
	if recipient.CurrentRoom != u.CurrentRoom {
		return ErrDifferentRoom
	}
	if text == "" {
		return ErrEmptyMessage
	}

	// 私聊不进房间日志，两端各收到一个方向标记不同的事件。
	s.out.ToConn(recipient.ID, protocol.PrivateMessage(text, u.Username, recipientName, true))
	s.out.ToConn(connID, protocol.PrivateMessage(text, u.Username, recipientName, false))
	return nil
}

// addReaction 反应是尽力而为的 UI 点缀，守卫不满足时静默返回。
func (s *Service) addReaction(connID, messageID, rawEmoji string) {
	u, msg, room := s.reactionTarget(connID, messageID)
	if msg == nil {
		return
	}
	emoji := sanitize.Clean(rawEmoji, sanitize.MaxEmojiLen)
	msg.AddReaction(emoji, u.Username)
	s.out.ToRoom(room.Name, protocol.ReactionUpdated(msg.ID, msg.Reactions))
}

func (s *Service) removeReaction(connID, messageID, rawEmoji string) {
	u, msg, room := s.reactionTarget(connID, messageID)
	if msg == nil {
		return
	}
	emoji := sanitize.Clean(rawEmoji, sanitize.MaxEmojiLen)
	if !msg.RemoveReaction(emoji, u.Username) {
		return
	}
	s.out.ToRoom(room.Name, protocol.ReactionUpdated(msg.ID, msg.Reactions))
}

// leaveTransition 离开房间的共享迁移，由显式离开、切换房间和断开连接
// 复用（踢出/封禁走 expel，事件名不同且不触发房主转移）。对非成员调用
// 是安全的空操作。
func (s *Service) leaveTransition(u *User, room *Room) {
	if !room.HasMember(u.ID) {
		return
	}

	// 离开者是房主且还有其他成员时，按加入顺序把房主转给最早的
	// 剩余成员；离开者不接收任何转移通知。
	if room.Creator == u.ID && len(room.Members) > 1 {
		newCreator := room.FirstMemberExcept(u.ID)
		room.Creator = newCreator
		s.out.ToConn(newCreator, protocol.YouAreNowCreator(room.Name))
		if nc := s.users.Lookup(newCreator); nc != nil {
			for _, id := range room.Members {
				if id != newCreator && id != u.ID {
					s.out.ToConn(id, protocol.CreatorChanged(nc.Username))
				}
			}
			s.log.Info().Str("room", room.Name).Str("creator", nc.Username).Msg("room ownership transferred")
		}
	}

	room.RemoveMember(u.ID)
	s.out.Leave(u.ID, room.Name)

	s.out.ToRoom(room.Name, protocol.UpdateUserList(s.users.Usernames(room.Members)))
	s.out.ToRoom(room.Name, protocol.UserLeftRoom(u.Username))

	// 空房间在同一次迁移内删除，名字立即可复用。
	if len(room.Members) == 0 {
		s.rooms.Delete(room.Name)
		s.log.Info().Str("room", room.Name).Msg("empty room deleted")
		s.out.ToAll(protocol.UpdateRoomList(s.rooms.List()))
	}
}

// forceLeave 若用户在房间中则走离开迁移并清空回引；不在房间时为空操作。
func (s *Service) forceLeave(u *User) {
	if u.CurrentRoom == "" {
		return
	}
	if room := s.rooms.Get(u.CurrentRoom); room != nil {
		s.leaveTransition(u, room)
	}
	u.CurrentRoom = ""
}

// moderationTarget 踢人/封禁共用的前置检查：房间存在 → 操作者是现任
// 房主（每次调用都重新校验）→ 目标按用户名解析且确实在房间里 → 目标
// 不是操作者本人。expel 依赖最后一条：房主始终留在房间里，移除目标后
// 房间不可能变空，也不需要房主转移。
func (s *Service) moderationTarget(actorID, rawTarget, rawRoom string, authErr, selfErr error) (*User, *Room, error) {
	targetName := sanitize.Clean(rawTarget, sanitize.MaxUsernameLen)
	name := sanitize.Clean(rawRoom, sanitize.MaxRoomNameLen)

	room := s.rooms.Get(name)
	if room == nil {
		return nil, nil, ErrRoomNotFound
	}
	if room.Creator != actorID {
		return nil, nil, authErr
	}
	target := s.users.FindByUsername(targetName)
	if target == nil || !room.HasMember(target.ID) {
		return nil, nil, ErrTargetNotInRoom
	}
	if target.ID == actorID {
		return nil, nil, selfErr
	}
	return target, room, nil
}

// expel 把目标移出成员列表和广播通道并清空回引。操作者作为房主仍在
// 房间里，所以这里不需要房主转移，房间也不可能因此变空。
func (s *Service) expel(target *User, room *Room) {
	room.RemoveMember(target.ID)
	target.CurrentRoom = ""
	s.out.Leave(target.ID, room.Name)
}

// reactionTarget 反应操作的共同守卫：未注册、不在房间、房间或消息
// 不存在都返回 nil，调用方静默放弃。
func (s *Service) reactionTarget(connID, messageID string) (*User, *Message, *Room) {
	u := s.users.Lookup(connID)
	if u == nil || u.CurrentRoom == "" {
		return nil, nil, nil
	}
	room := s.rooms.Get(u.CurrentRoom)
	if room == nil {
		return nil, nil, nil
	}
	msg := room.FindMessage(messageID)
	if msg == nil {
		return nil, nil, nil
	}
	return u, msg, room
}

// roomExcept 向房间内除 exclude 外的所有成员逐个投递。
func (s *Service) roomExcept(room *Room, exclude string, evt protocol.Event) {
	for _, id := range lo.Without(room.Members, exclude) {
		s.out.ToConn(id, evt)
	}
}

func (s *Service) snapshot(room *Room) protocol.RoomSnapshot {
	return protocol.RoomSnapshot{
		Name:        room.Name,
		HasPassword: room.HasPassword(),
		Users:       s.users.Usernames(room.Members),
		Creator:     s.creatorName(room),
		Messages:    lo.Map(room.Messages, func(m *Message, _ int) protocol.MessageDTO { return m.DTO() }),
	}
}

func (s *Service) creatorName(room *Room) string {
	if u := s.users.Lookup(room.Creator); u != nil {
		return u.Username
	}
	return ""
}
