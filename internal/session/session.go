// Package session holds the in-memory model of one running client:
// servers own channels, channels own messages, and users live in a single
// arena that channels reference by ID.
//
// A Session is not safe for concurrent use. The application drives it from
// one goroutine, applying each input or protocol event to completion before
// the next.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matt0x6f/cascade-core/internal/casemap"
	"github.com/matt0x6f/cascade-core/internal/constants"
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/validation"
)

var (
	ErrServerNotFound  = errors.New("server not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNickInUse       = errors.New("nickname already in use")
)

type userEntry struct {
	user *User
	refs int // channel memberships holding this user
}

// Session is the mutable Server -> Channel -> {Message, User} graph
type Session struct {
	servers     []*Server
	serverIndex map[string]*Server
	channels    map[string]*Channel
	users       map[string]*userEntry
	bus         *events.EventBus
	now         func() time.Time
}

// New creates an empty session. bus may be nil.
func New(bus *events.EventBus) *Session {
	return &Session{
		serverIndex: make(map[string]*Server),
		channels:    make(map[string]*Channel),
		users:       make(map[string]*userEntry),
		bus:         bus,
		now:         time.Now,
	}
}

func fold(name string) string {
	return casemap.Fold(name)
}

func foldEqual(a, b string) bool {
	return casemap.Equal(a, b)
}

func (s *Session) publish(eventType string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(events.New(eventType, events.EventSourceSession, data))
}

// publishSync delivers to every subscriber before returning
func (s *Session) publishSync(eventType string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.EmitSync(events.New(eventType, events.EventSourceSession, data))
}

// Connect creates a server from its configuration. Channels listed in the
// config are created up front (not yet joined) so they can be auto-joined.
func (s *Session) Connect(cfg ServerConfig) (*Server, error) {
	port := cfg.Port
	if port == 0 {
		port = constants.DefaultPort
	}
	if err := validation.ValidateServerConfig(cfg.Host, port, cfg.Nickname, cfg.Channels); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Host
	}

	srv := &Server{
		ID:       uuid.NewString(),
		Name:     name,
		Host:     cfg.Host,
		Port:     port,
		Nickname: cfg.Nickname,
		users:    make(map[string]string),
	}
	s.servers = append(s.servers, srv)
	s.serverIndex[srv.ID] = srv

	for _, channelName := range cfg.Channels {
		s.addChannel(srv, channelName, false)
	}

	logger.Log.Info().
		Str("server", srv.Name).
		Str("host", srv.Host).
		Int("port", srv.Port).
		Int("channels", len(srv.channels)).
		Msg("Server added to session")

	s.publish(events.EventServerAdded, map[string]interface{}{
		"serverId": srv.ID,
		"name":     srv.Name,
	})
	return srv, nil
}

// Server returns a server by ID, or nil
func (s *Session) Server(serverID string) *Server {
	return s.serverIndex[serverID]
}

// ServerByName returns the first server whose name matches, or nil
func (s *Session) ServerByName(name string) *Server {
	for _, srv := range s.servers {
		if foldEqual(srv.Name, name) {
			return srv
		}
	}
	return nil
}

// Servers returns all servers in connection order
func (s *Session) Servers() []*Server {
	out := make([]*Server, len(s.servers))
	copy(out, s.servers)
	return out
}

// SetConnected records the transport state of a server
func (s *Session) SetConnected(serverID string, connected bool) error {
	srv, err := s.server(serverID)
	if err != nil {
		return err
	}
	if srv.IsConnected == connected {
		return nil
	}
	srv.IsConnected = connected
	s.publish(events.EventServerConnection, map[string]interface{}{
		"serverId":  srv.ID,
		"connected": connected,
	})
	return nil
}

// SetNickname updates the local user's nick on a server
func (s *Session) SetNickname(serverID, nick string) error {
	srv, err := s.server(serverID)
	if err != nil {
		return err
	}
	if _, joined := srv.UserID(srv.Nickname); joined {
		_, err := s.RenameUser(serverID, srv.Nickname, nick)
		return err
	}
	if err := validation.ValidateNickname(nick); err != nil {
		return fmt.Errorf("invalid nickname: %w", err)
	}
	srv.Nickname = nick
	return nil
}

// RemoveServer drops a server with all of its channels and users
func (s *Session) RemoveServer(serverID string) error {
	srv, err := s.server(serverID)
	if err != nil {
		return err
	}
	for _, ch := range srv.Channels() {
		if err := s.RemoveChannel(ch.ID); err != nil {
			return err
		}
	}
	for i, candidate := range s.servers {
		if candidate == srv {
			s.servers = append(s.servers[:i:i], s.servers[i+1:]...)
			break
		}
	}
	delete(s.serverIndex, serverID)

	s.publish(events.EventServerRemoved, map[string]interface{}{"serverId": serverID})
	return nil
}

func (s *Session) server(serverID string) (*Server, error) {
	srv, ok := s.serverIndex[serverID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, serverID)
	}
	return srv, nil
}

func (s *Session) channel(channelID string) (*Channel, error) {
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	return ch, nil
}

// Channel returns a channel by ID, or nil
func (s *Session) Channel(channelID string) *Channel {
	return s.channels[channelID]
}

// AddChannel opens a channel (or private conversation when private is set)
// on a server. Adding an existing name returns the existing channel.
func (s *Session) AddChannel(serverID, name string, private bool) (*Channel, error) {
	srv, err := s.server(serverID)
	if err != nil {
		return nil, err
	}
	if existing := srv.Channel(name); existing != nil {
		return existing, nil
	}
	if private {
		err = validation.ValidateNickname(name)
	} else {
		err = validation.ValidateChannelName(name)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid channel: %w", err)
	}
	return s.addChannel(srv, name, private), nil
}

func (s *Session) addChannel(srv *Server, name string, private bool) *Channel {
	if existing := srv.Channel(name); existing != nil {
		return existing
	}
	ch := &Channel{
		ID:        uuid.NewString(),
		Name:      name,
		IsPrivate: private,
		ServerID:  srv.ID,
		IsRead:    true,
		members:   make(map[string]string),
	}
	srv.channels = append(srv.channels, ch)
	s.channels[ch.ID] = ch

	s.publish(events.EventChannelAdded, map[string]interface{}{
		"serverId":  srv.ID,
		"channelId": ch.ID,
		"channel":   ch.Name,
		"private":   private,
	})
	return ch
}

// RemoveChannel closes a channel, releasing its memberships
func (s *Session) RemoveChannel(channelID string) error {
	ch, err := s.channel(channelID)
	if err != nil {
		return err
	}
	for userID := range ch.members {
		delete(ch.members, userID)
		s.release(userID)
	}

	if srv := s.serverIndex[ch.ServerID]; srv != nil {
		for i, candidate := range srv.channels {
			if candidate == ch {
				srv.channels = append(srv.channels[:i:i], srv.channels[i+1:]...)
				break
			}
		}
	}
	delete(s.channels, channelID)

	s.publish(events.EventChannelRemoved, map[string]interface{}{
		"serverId":  ch.ServerID,
		"channelId": ch.ID,
		"channel":   ch.Name,
	})
	return nil
}

// SetTopic replaces a channel topic
func (s *Session) SetTopic(channelID, topic string) error {
	ch, err := s.channel(channelID)
	if err != nil {
		return err
	}
	ch.Topic = topic
	s.publish(events.EventChannelTopic, map[string]interface{}{
		"serverId":  ch.ServerID,
		"channelId": ch.ID,
		"topic":     topic,
	})
	return nil
}

// AddMessage appends a message to a channel and returns it as stored.
//
// isActive tells whether the channel currently has focus. Messages added to
// an unfocused channel bump the unread counter and raise the mention flag when
// the server's local nick is among the message mentions.
func (s *Session) AddMessage(channelID string, msg Message, isActive bool) (Message, error) {
	ch, err := s.channel(channelID)
	if err != nil {
		return Message{}, err
	}
	srv, err := s.server(ch.ServerID)
	if err != nil {
		return Message{}, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if msg.Kind == "" {
		msg.Kind = KindMessage
	}
	msg.ChannelID = ch.ID
	msg.ServerID = srv.ID
	if msg.Mentions != nil {
		msg.Mentions = append([]string(nil), msg.Mentions...)
	}

	ch.messages = append(ch.messages, msg)

	mentioned := false
	if !isActive {
		ch.UnreadCount++
		ch.IsRead = false
		if msg.Mentioned(srv.Nickname) {
			ch.IsMentioned = true
			mentioned = true
		}
	}

	data := map[string]interface{}{
		"serverId":  srv.ID,
		"server":    srv.Name,
		"channelId": ch.ID,
		"channel":   ch.Name,
		"message":   msg,
	}
	// Subscribers record history; they see messages in append order
	s.publishSync(events.EventMessageAdded, data)
	if mentioned {
		s.publish(events.EventMention, data)
	}
	return msg, nil
}

// RestoreHistory puts previously stored messages in front of a channel's
// history. Restored messages are not unread and publish no events.
func (s *Session) RestoreHistory(channelID string, history []Message) error {
	ch, err := s.channel(channelID)
	if err != nil {
		return err
	}
	restored := make([]Message, 0, len(history)+len(ch.messages))
	for _, msg := range history {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Kind == "" {
			msg.Kind = KindMessage
		}
		msg.ChannelID = ch.ID
		msg.ServerID = ch.ServerID
		restored = append(restored, msg)
	}
	ch.messages = append(restored, ch.messages...)
	return nil
}

// MarkRead clears the unread state of a channel. It is idempotent.
func (s *Session) MarkRead(channelID string) error {
	ch, err := s.channel(channelID)
	if err != nil {
		return err
	}
	changed := !ch.IsRead || ch.UnreadCount != 0 || ch.IsMentioned
	ch.IsRead = true
	ch.UnreadCount = 0
	ch.IsMentioned = false

	if changed {
		s.publish(events.EventChannelRead, map[string]interface{}{
			"serverId":  ch.ServerID,
			"channelId": ch.ID,
		})
	}
	return nil
}

// User returns a user by ID, or nil
func (s *Session) User(userID string) *User {
	entry, ok := s.users[userID]
	if !ok {
		return nil
	}
	return entry.user
}

// FindUser returns the user known by nick on a server, or nil
func (s *Session) FindUser(serverID, nick string) *User {
	srv := s.serverIndex[serverID]
	if srv == nil {
		return nil
	}
	id, ok := srv.UserID(nick)
	if !ok {
		return nil
	}
	return s.User(id)
}

// UserChannels returns the channels a user is joined to
func (s *Session) UserChannels(userID string) []*Channel {
	entry, ok := s.users[userID]
	if !ok {
		return nil
	}
	srv := s.serverIndex[entry.user.ServerID]
	if srv == nil {
		return nil
	}
	var out []*Channel
	for _, ch := range srv.channels {
		if ch.HasMember(userID) {
			out = append(out, ch)
		}
	}
	return out
}

// JoinUser adds nick to a channel with the given membership status. The user
// entity is shared: joining a second channel on the same server reuses it.
func (s *Session) JoinUser(channelID, nick, memberStatus string) (*User, error) {
	ch, err := s.channel(channelID)
	if err != nil {
		return nil, err
	}
	srv, err := s.server(ch.ServerID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateNickname(nick); err != nil {
		return nil, fmt.Errorf("invalid nickname: %w", err)
	}

	id, known := srv.UserID(nick)
	if !known {
		user := &User{
			ID:       uuid.NewString(),
			ServerID: srv.ID,
			Username: nick,
			IsOnline: true,
			Presence: PresenceOnline,
		}
		id = user.ID
		s.users[id] = &userEntry{user: user}
		srv.users[fold(nick)] = id
	}

	entry := s.users[id]
	if !ch.HasMember(id) {
		entry.refs++
	}
	ch.members[id] = memberStatus

	s.publish(events.EventUserJoined, map[string]interface{}{
		"serverId":  srv.ID,
		"channelId": ch.ID,
		"userId":    id,
		"nick":      entry.user.Username,
	})
	return entry.user, nil
}

// PartUser removes a user from one channel
func (s *Session) PartUser(channelID, userID string) error {
	ch, err := s.channel(channelID)
	if err != nil {
		return err
	}
	if !ch.HasMember(userID) {
		return fmt.Errorf("%w in %s: %s", ErrUserNotFound, ch.Name, userID)
	}
	delete(ch.members, userID)
	s.release(userID)

	s.publish(events.EventUserParted, map[string]interface{}{
		"serverId":  ch.ServerID,
		"channelId": ch.ID,
		"userId":    userID,
	})
	return nil
}

// RemoveUser removes a user from every channel on a server. The user entity
// is discarded once no channel references it any more.
func (s *Session) RemoveUser(serverID, userID string) error {
	srv, err := s.server(serverID)
	if err != nil {
		return err
	}
	entry, ok := s.users[userID]
	if !ok || entry.user.ServerID != serverID {
		return fmt.Errorf("%w on %s: %s", ErrUserNotFound, srv.Name, userID)
	}

	for _, ch := range srv.channels {
		if ch.HasMember(userID) {
			delete(ch.members, userID)
			s.release(userID)
		}
	}
	return nil
}

// release drops one channel reference and discards the user at zero
func (s *Session) release(userID string) {
	entry, ok := s.users[userID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}

	delete(s.users, userID)
	if srv := s.serverIndex[entry.user.ServerID]; srv != nil {
		key := fold(entry.user.Username)
		if srv.users[key] == userID {
			delete(srv.users, key)
		}
	}
	s.publish(events.EventUserRemoved, map[string]interface{}{
		"serverId": entry.user.ServerID,
		"userId":   userID,
		"nick":     entry.user.Username,
	})
}

// RenameUser applies a nick change. The local nick follows when it matches.
func (s *Session) RenameUser(serverID, oldNick, newNick string) (*User, error) {
	srv, err := s.server(serverID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateNickname(newNick); err != nil {
		return nil, fmt.Errorf("invalid nickname: %w", err)
	}
	localRename := foldEqual(srv.Nickname, oldNick)

	id, ok := srv.UserID(oldNick)
	if !ok {
		if localRename {
			// Not joined anywhere yet, only the local nick changes
			srv.Nickname = newNick
			return nil, nil
		}
		return nil, fmt.Errorf("%w on %s: %s", ErrUserNotFound, srv.Name, oldNick)
	}
	if other, taken := srv.UserID(newNick); taken && other != id {
		return nil, fmt.Errorf("%w: %s", ErrNickInUse, newNick)
	}
	if localRename {
		srv.Nickname = newNick
	}

	user := s.users[id].user
	delete(srv.users, fold(oldNick))
	srv.users[fold(newNick)] = id
	user.Username = newNick

	s.publish(events.EventUserNick, map[string]interface{}{
		"serverId": srv.ID,
		"userId":   id,
		"oldNick":  oldNick,
		"newNick":  newNick,
	})
	return user, nil
}

// SetStatus replaces a member's status string in one channel
func (s *Session) SetStatus(channelID, userID, memberStatus string) error {
	ch, err := s.channel(channelID)
	if err != nil {
		return err
	}
	if !ch.HasMember(userID) {
		return fmt.Errorf("%w in %s: %s", ErrUserNotFound, ch.Name, userID)
	}
	ch.members[userID] = memberStatus

	s.publish(events.EventUserStatus, map[string]interface{}{
		"serverId":  ch.ServerID,
		"channelId": ch.ID,
		"userId":    userID,
		"status":    memberStatus,
	})
	return nil
}

// SetPresence records a user's presence
func (s *Session) SetPresence(userID string, presence Presence) error {
	entry, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	entry.user.Presence = presence
	entry.user.IsOnline = presence != PresenceOffline
	return nil
}

// LocalStatus returns the local user's status in a channel
func (s *Session) LocalStatus(channelID string) string {
	ch := s.channels[channelID]
	if ch == nil {
		return ""
	}
	srv := s.serverIndex[ch.ServerID]
	if srv == nil {
		return ""
	}
	id, ok := srv.UserID(srv.Nickname)
	if !ok {
		return ""
	}
	return ch.Status(id)
}
