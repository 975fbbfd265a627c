package chat

import (
	"chatserver/internal/protocol"

	"github.com/samber/lo"
)

// User 一条活跃连接对应的注册档案。连接标识是主键，用户名在注册时
// 保证唯一。CurrentRoom 为空串表示不在任何房间，它只是指向房间注册表
// 的名字引用，由每一次成员变更迁移负责同步。
type User struct {
	ID          string
	Username    string
	CurrentRoom string
}

// DTO 转成对外输出的用户信息。
func (u *User) DTO() protocol.UserDTO {
	dto := protocol.UserDTO{ID: u.ID, Username: u.Username}
	if u.CurrentRoom != "" {
		room := u.CurrentRoom
		dto.CurrentRoom = &room
	}
	return dto
}

// UserRegistry 维护连接标识到用户档案的映射。注册表本身不加锁，
// 所有访问都经由 Service 的事件串行化保护。
type UserRegistry struct {
	users map[string]*User
}

func NewUserRegistry() *UserRegistry {
	return &UserRegistry{users: make(map[string]*User)}
}

// Lookup 按连接标识查找用户，未注册返回 nil。
func (r *UserRegistry) Lookup(connID string) *User {
	return r.users[connID]
}

// FindByUsername 按用户名精确匹配（区分大小写）。
func (r *UserRegistry) FindByUsername(username string) *User {
	for _, u := range r.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

// UsernameTaken 判断用户名是否已被任一活跃用户占用。
func (r *UserRegistry) UsernameTaken(username string) bool {
	return r.FindByUsername(username) != nil
}

func (r *UserRegistry) Add(u *User) {
	r.users[u.ID] = u
}

func (r *UserRegistry) Remove(connID string) {
	delete(r.users, connID)
}

func (r *UserRegistry) Count() int {
	return len(r.users)
}

// Usernames 把一组连接标识投影成用户名列表，跳过已失效的标识。
func (r *UserRegistry) Usernames(connIDs []string) []string {
	return lo.FilterMap(connIDs, func(id string, _ int) (string, bool) {
		u := r.users[id]
		if u == nil {
			return "", false
		}
		return u.Username, true
	})
}
