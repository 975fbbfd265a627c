package chat

import (
	"chatserver/internal/metrics"
	"chatserver/internal/protocol"

	"github.com/samber/lo"
)

// Room 房间状态。成员列表保持加入顺序，创建者转移时取最早加入的
// 剩余成员。封禁集合按连接标识记录，与成员关系无关，房间存续期间
// 不会自动清除。
type Room struct {
	Name     string
	Password string
	Members  []string
	Banned   map[string]struct{}
	Creator  string
	Messages []*Message
}

// HasMember 判断连接是否是房间成员。
func (r *Room) HasMember(connID string) bool {
	return lo.Contains(r.Members, connID)
}

// RemoveMember 把连接移出成员列表，保持其余成员的相对顺序。
func (r *Room) RemoveMember(connID string) {
	r.Members = lo.Without(r.Members, connID)
}

// FirstMemberExcept 返回除 connID 外最早加入的成员，没有则返回空串。
func (r *Room) FirstMemberExcept(connID string) string {
	for _, id := range r.Members {
		if id != connID {
			return id
		}
	}
	return ""
}

// BanMember 把连接加入封禁集合。没有解禁操作，封禁随房间生命周期存在。
func (r *Room) BanMember(connID string) {
	r.Banned[connID] = struct{}{}
}

// IsBanned 判断连接是否被该房间封禁。
func (r *Room) IsBanned(connID string) bool {
	_, ok := r.Banned[connID]
	return ok
}

// FindMessage 在房间日志中按消息 id 查找。
func (r *Room) FindMessage(id string) *Message {
	for _, m := range r.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// HasPassword 房间是否设有密码。密码为空串即无密码。
func (r *Room) HasPassword() bool {
	return r.Password != ""
}

// RoomRegistry 维护房间名到房间状态的映射，独占房间和消息的生命周期。
// order 记录创建顺序，房间列表按它输出。与 UserRegistry 一样不加内部锁，
// 由 Service 串行化保护。
type RoomRegistry struct {
	rooms map[string]*Room
	order []string
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*Room)}
}

// Get 按房间名查找，不存在返回 nil。
func (r *RoomRegistry) Get(name string) *Room {
	return r.rooms[name]
}

func (r *RoomRegistry) Exists(name string) bool {
	return r.rooms[name] != nil
}

// Create 以 creator 为唯一成员创建房间。房间从不以空成员状态存在。
func (r *RoomRegistry) Create(name, password, creator string) *Room {
	room := &Room{
		Name:     name,
		Password: password,
		Members:  []string{creator},
		Banned:   make(map[string]struct{}),
		Creator:  creator,
		Messages: nil,
	}
	r.rooms[name] = room
	r.order = append(r.order, name)
	metrics.RoomsActive.Inc()
	return room
}

// Delete 删除房间，名字立即可被复用。
func (r *RoomRegistry) Delete(name string) {
	if _, ok := r.rooms[name]; ok {
		delete(r.rooms, name)
		r.order = lo.Without(r.order, name)
		metrics.RoomsActive.Dec()
	}
}

// List 生成按创建顺序排列的房间列表，只携带是否设密码的标记。
func (r *RoomRegistry) List() []protocol.RoomListEntry {
	return lo.Map(r.order, func(name string, _ int) protocol.RoomListEntry {
		return protocol.RoomListEntry{Name: name, HasPassword: r.rooms[name].HasPassword()}
	})
}
