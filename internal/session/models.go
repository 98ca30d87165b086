package session

import (
	"sort"
	"time"

	"github.com/matt0x6f/cascade-core/internal/status"
)

// Presence is a user's availability as last observed
type Presence string

const (
	PresenceOnline    Presence = "online"
	PresenceIdle      Presence = "idle"
	PresenceDND       Presence = "dnd"
	PresenceInvisible Presence = "invisible"
	PresenceOffline   Presence = "offline"
)

// MessageKind classifies a channel message
type MessageKind string

const (
	KindMessage MessageKind = "message"
	KindSystem  MessageKind = "system"
	KindError   MessageKind = "error"
	KindJoin    MessageKind = "join"
	KindLeave   MessageKind = "leave"
	KindNick    MessageKind = "nick"
)

// User is a nick observed on a server. Channels refer to users by ID.
type User struct {
	ID       string   `json:"id"`
	ServerID string   `json:"server_id"`
	Username string   `json:"username"`
	Avatar   string   `json:"avatar,omitempty"`
	IsOnline bool     `json:"is_online"`
	Presence Presence `json:"presence"`
}

// Message is an immutable entry in a channel's history
type Message struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	UserID    string      `json:"user_id,omitempty"`
	Author    string      `json:"author"`
	ChannelID string      `json:"channel_id"`
	ServerID  string      `json:"server_id"`
	Kind      MessageKind `json:"kind"`
	Mentions  []string    `json:"mentions,omitempty"`
	IsAction  bool        `json:"is_action,omitempty"` // CTCP ACTION (/me)
}

// Mentioned reports whether nick is in the message's mention set
func (m Message) Mentioned(nick string) bool {
	for _, mention := range m.Mentions {
		if foldEqual(mention, nick) {
			return true
		}
	}
	return false
}

// Channel is a public channel or a private conversation on one server
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Topic       string `json:"topic,omitempty"`
	IsPrivate   bool   `json:"is_private"`
	ServerID    string `json:"server_id"`
	UnreadCount int    `json:"unread_count"`
	IsMentioned bool   `json:"is_mentioned"`
	IsRead      bool   `json:"is_read"`

	messages []Message
	members  map[string]string // user ID -> membership status
}

// Messages returns a copy of the channel history in insertion order
func (c *Channel) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// MessageCount returns the number of messages in the channel
func (c *Channel) MessageCount() int {
	return len(c.messages)
}

// HasMember reports whether a user is joined to the channel
func (c *Channel) HasMember(userID string) bool {
	_, ok := c.members[userID]
	return ok
}

// Status returns a member's status string ("" for none or non-members)
func (c *Channel) Status(userID string) string {
	return c.members[userID]
}

// MemberIDs returns member IDs ordered by rank, then by ID
func (c *Channel) MemberIDs() []string {
	ids := make([]string, 0, len(c.members))
	for id := range c.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ri, rj := status.Rank(c.members[ids[i]]), status.Rank(c.members[ids[j]])
		if ri != rj {
			return ri > rj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// MemberCount returns the number of joined users
func (c *Channel) MemberCount() int {
	return len(c.members)
}

// Server is one IRC server session. It owns its channels exclusively.
type Server struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Nickname    string `json:"nickname"` // local user's current nick
	IsConnected bool   `json:"is_connected"`

	channels []*Channel
	users    map[string]string // folded nick -> user ID
}

// Channels returns the server's channels in creation order
func (s *Server) Channels() []*Channel {
	out := make([]*Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// Channel looks up a channel by name, case-insensitively
func (s *Server) Channel(name string) *Channel {
	key := fold(name)
	for _, ch := range s.channels {
		if fold(ch.Name) == key {
			return ch
		}
	}
	return nil
}

// UserID returns the ID of a known nick on this server
func (s *Server) UserID(nick string) (string, bool) {
	id, ok := s.users[fold(nick)]
	return id, ok
}

// UserCount returns the number of known users on the server
func (s *Server) UserCount() int {
	return len(s.users)
}

// ServerConfig holds the persisted connection parameters for a server.
// It is consumed once by Session.Connect and not mutated afterwards.
type ServerConfig struct {
	Name        string   `json:"name"`
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	Nickname    string   `json:"nickname"`
	Password    string   `json:"-"`
	Channels    []string `json:"channels"`
	AutoConnect bool     `json:"auto_connect"`
}
