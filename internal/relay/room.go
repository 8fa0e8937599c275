package relay

import "github.com/BioHazard786/liveclass/internal/wire"

// Room is the relay's routing state for one classroom. Media members and
// side-channel (chat) members are tracked separately since a participant can
// be in the chat without a media session.
type Room struct {
	ID string

	// members in join order.
	members []*Client

	// chat holds the side-channel members in chat-join order.
	chat []*Client
}

func newRoom(id string) *Room {
	return &Room{ID: id}
}

func (r *Room) addMember(c *Client) bool {
	if r.member(c.ID) != nil {
		return false
	}
	r.members = append(r.members, c)
	return true
}

func (r *Room) removeMember(c *Client) bool {
	var ok bool
	r.members, ok = without(r.members, c)
	return ok
}

func (r *Room) member(id string) *Client {
	for _, m := range r.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *Room) addChat(c *Client) {
	for _, m := range r.chat {
		if m == c {
			return
		}
	}
	r.chat = append(r.chat, c)
}

func (r *Room) removeChat(c *Client) bool {
	var ok bool
	r.chat, ok = without(r.chat, c)
	return ok
}

func (r *Room) inChat(c *Client) bool {
	for _, m := range r.chat {
		if m == c {
			return true
		}
	}
	return false
}

// memberIDs lists media members in join order, leaving out except.
func (r *Room) memberIDs(except string) []string {
	ids := make([]string, 0, len(r.members))
	for _, m := range r.members {
		if m.ID != except {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (r *Room) roster() wire.Roster {
	roster := make(wire.Roster, 0, len(r.members))
	for _, m := range r.members {
		roster = append(roster, wire.PeerInfo{ID: m.ID, User: m.User, Role: m.Role})
	}
	return roster
}

// audience is every client that should see room-wide presence signals:
// media members first, then chat-only members.
func (r *Room) audience() []*Client {
	out := make([]*Client, 0, len(r.members)+len(r.chat))
	out = append(out, r.members...)
	for _, c := range r.chat {
		if r.member(c.ID) == nil {
			out = append(out, c)
		}
	}
	return out
}

func (r *Room) empty() bool {
	return len(r.members) == 0 && len(r.chat) == 0
}

func without(list []*Client, c *Client) ([]*Client, bool) {
	for i, m := range list {
		if m == c {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}

// RoomInfo is the occupancy report served on /rooms.
type RoomInfo struct {
	ID      string          `json:"id"`
	Members []wire.PeerInfo `json:"members"`
	Chat    int             `json:"chat"`
}
