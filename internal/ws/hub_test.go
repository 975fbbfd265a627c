package ws

import (
	"encoding/json"
	"testing"

	"chatserver/internal/protocol"

	"github.com/rs/zerolog"
)

func newTestClient(id string, buf int) *Client {
	return &Client{id: id, send: make(chan []byte, buf)}
}

// drain 取出客户端已收到的全部事件类型。
func drain(t *testing.T, c *Client) []string {
	t.Helper()
	var types []string
	for {
		select {
		case payload := <-c.send:
			var evt protocol.Event
			if err := json.Unmarshal(payload, &evt); err != nil {
				t.Fatalf("unmarshal pushed payload: %v", err)
			}
			types = append(types, evt.Type)
		default:
			return types
		}
	}
}

func TestHub_BindUnbind(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newTestClient("c1", 4)

	h.Bind(c)
	if h.Online() != 1 {
		t.Fatalf("Online() = %d, want 1", h.Online())
	}

	h.Unbind("c1")
	if h.Online() != 0 {
		t.Fatalf("Online() = %d after Unbind, want 0", h.Online())
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after Unbind")
	}

	// 未知连接的 Unbind 是空操作
	h.Unbind("ghost")
}

func TestHub_ToConn(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c1 := newTestClient("c1", 4)
	c2 := newTestClient("c2", 4)
	h.Bind(c1)
	h.Bind(c2)

	h.ToConn("c1", protocol.LeftRoom("lobby"))

	if got := drain(t, c1); len(got) != 1 || got[0] != protocol.OutLeftRoom {
		t.Errorf("c1 received %v, want [left_room]", got)
	}
	if got := drain(t, c2); len(got) != 0 {
		t.Errorf("c2 received %v, want nothing", got)
	}

	// 未知连接不 panic 也不投递
	h.ToConn("ghost", protocol.LeftRoom("lobby"))
}

func TestHub_RoomChannel(t *testing.T) {
	h := NewHub(zerolog.Nop())
	member := newTestClient("c1", 4)
	outsider := newTestClient("c2", 4)
	h.Bind(member)
	h.Bind(outsider)
	h.Join("c1", "lobby")

	h.ToRoom("lobby", protocol.UserJoinedRoom("alice"))

	if got := drain(t, member); len(got) != 1 {
		t.Errorf("member received %v, want one event", got)
	}
	if got := drain(t, outsider); len(got) != 0 {
		t.Errorf("outsider received %v, want nothing", got)
	}

	h.Leave("c1", "lobby")
	h.ToRoom("lobby", protocol.UserJoinedRoom("bob"))
	if got := drain(t, member); len(got) != 0 {
		t.Errorf("member received %v after Leave, want nothing", got)
	}

	// 空通道随最后一个订阅者回收
	h.mu.RLock()
	_, ok := h.rooms["lobby"]
	h.mu.RUnlock()
	if ok {
		t.Error("empty room channel should be removed")
	}
}

func TestHub_JoinUnknownConnIsNoop(t *testing.T) {
	h := NewHub(zerolog.Nop())

	h.Join("ghost", "lobby")

	h.mu.RLock()
	_, ok := h.rooms["lobby"]
	h.mu.RUnlock()
	if ok {
		t.Error("Join for an unbound conn should not create a channel")
	}
}

func TestHub_ToAll(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c1 := newTestClient("c1", 4)
	c2 := newTestClient("c2", 4)
	h.Bind(c1)
	h.Bind(c2)

	h.ToAll(protocol.UpdateRoomList(nil))

	for _, c := range []*Client{c1, c2} {
		if got := drain(t, c); len(got) != 1 || got[0] != protocol.OutUpdateRoomList {
			t.Errorf("%s received %v, want [update_room_list]", c.id, got)
		}
	}
}

func TestHub_UnbindRemovesFromRooms(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c1 := newTestClient("c1", 4)
	c2 := newTestClient("c2", 4)
	h.Bind(c1)
	h.Bind(c2)
	h.Join("c1", "lobby")
	h.Join("c2", "lobby")

	h.Unbind("c1")

	h.ToRoom("lobby", protocol.UserLeftRoom("alice"))
	if got := drain(t, c2); len(got) != 1 {
		t.Errorf("remaining member received %v, want one event", got)
	}
}

func TestHub_SlowConsumerDropsEvent(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newTestClient("c1", 1)
	h.Bind(c)

	// 缓冲 1，第二条投递必须丢弃而不是阻塞
	h.ToConn("c1", protocol.LeftRoom("one"))
	h.ToConn("c1", protocol.LeftRoom("two"))

	if got := drain(t, c); len(got) != 1 {
		t.Errorf("received %d events, want exactly 1 (second dropped)", len(got))
	}
}
