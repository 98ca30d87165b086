// Package ingest applies inbound IRC protocol lines to the session model.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/matt0x6f/cascade-core/internal/casemap"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/session"
	"github.com/matt0x6f/cascade-core/internal/status"
	"github.com/matt0x6f/cascade-core/internal/validation"
)

// ErrMalformed is returned for lines missing required parameters.
var ErrMalformed = errors.New("malformed message")

// ActiveFunc reports whether a channel is the one currently shown.
type ActiveFunc func(channelID string) bool

// Ingestor applies lines received from one server.
type Ingestor struct {
	session  *session.Session
	serverID string
	isActive ActiveFunc
}

// New creates an Ingestor for serverID. isActive may be nil, in which case
// no channel is considered active.
func New(s *session.Session, serverID string, isActive ActiveFunc) *Ingestor {
	if isActive == nil {
		isActive = func(string) bool { return false }
	}
	return &Ingestor{session: s, serverID: serverID, isActive: isActive}
}

// HandleLine parses a raw protocol line and applies it.
func (i *Ingestor) HandleLine(line string) error {
	msg, err := ircmsg.ParseLine(line)
	if err != nil {
		return fmt.Errorf("failed to parse line: %w", err)
	}
	return i.Handle(msg)
}

// Handle applies one parsed message. Commands the model has no use for are
// ignored.
func (i *Ingestor) Handle(msg ircmsg.Message) error {
	srv := i.session.Server(i.serverID)
	if srv == nil {
		return fmt.Errorf("%w: %s", session.ErrServerNotFound, i.serverID)
	}

	var err error
	switch msg.Command {
	case "001":
		err = i.handleWelcome(srv, msg)
	case "PRIVMSG", "NOTICE":
		err = i.handleMessage(srv, msg)
	case "JOIN":
		err = i.handleJoin(srv, msg)
	case "PART":
		err = i.handlePart(srv, msg)
	case "QUIT":
		err = i.handleQuit(srv, msg)
	case "NICK":
		err = i.handleNick(srv, msg)
	case "KICK":
		err = i.handleKick(srv, msg)
	case "TOPIC":
		err = i.handleTopic(srv, msg)
	case "332":
		err = i.handleTopicReply(srv, msg)
	case "353":
		err = i.handleNames(srv, msg)
	case "MODE":
		err = i.handleMode(srv, msg)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to handle %s: %w", msg.Command, err)
	}
	return nil
}

func needParams(msg ircmsg.Message, n int) error {
	if len(msg.Params) < n {
		return fmt.Errorf("%w: %s needs %d params, got %d", ErrMalformed, msg.Command, n, len(msg.Params))
	}
	return nil
}

func isSelf(srv *session.Server, nick string) bool {
	return casemap.Equal(nick, srv.Nickname)
}

// system appends a system message to a channel
func (i *Ingestor) system(ch *session.Channel, kind session.MessageKind, text string) error {
	_, err := i.session.AddMessage(ch.ID, session.Message{
		Content: text,
		Kind:    kind,
	}, i.isActive(ch.ID))
	return err
}

// RPL_WELCOME: registration finished, params[0] is the nick we ended up with
func (i *Ingestor) handleWelcome(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 1); err != nil {
		return err
	}
	if err := i.session.SetConnected(srv.ID, true); err != nil {
		return err
	}
	if nick := msg.Params[0]; !isSelf(srv, nick) {
		logger.Log.Info().Str("requested", srv.Nickname).Str("nick", nick).Msg("Server assigned a different nickname")
		return i.session.SetNickname(srv.ID, nick)
	}
	return nil
}

func (i *Ingestor) handleMessage(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 2); err != nil {
		return err
	}
	target, text := msg.Params[0], msg.Params[1]
	from := msg.Nick()

	// Our own lines are recorded when sent; skip server echoes
	if from != "" && isSelf(srv, from) {
		return nil
	}

	action := false
	if len(text) >= 2 && text[0] == '\x01' && text[len(text)-1] == '\x01' {
		ctcp := text[1 : len(text)-1]
		command, args, _ := strings.Cut(ctcp, " ")
		if !strings.EqualFold(command, "ACTION") || msg.Command != "PRIVMSG" {
			logger.Log.Debug().Str("from", from).Str("ctcp", command).Msg("Ignoring CTCP request")
			return nil
		}
		action = true
		text = args
	}

	var ch *session.Channel
	switch {
	case validation.IsChannelName(target):
		ch = srv.Channel(target)
		if ch == nil {
			logger.Log.Debug().Str("channel", target).Msg("Message for unknown channel")
			return nil
		}
	case msg.Command == "NOTICE":
		// Server and service notices only land in an already open query
		ch = srv.Channel(from)
		if ch == nil || !ch.IsPrivate {
			logger.Log.Debug().Str("from", from).Str("notice", text).Msg("Notice")
			return nil
		}
	default:
		var err error
		if ch, err = i.session.AddChannel(srv.ID, from, true); err != nil {
			return err
		}
	}

	m := session.Message{
		Content:  text,
		Author:   from,
		Kind:     session.KindMessage,
		IsAction: action,
		Mentions: session.DetectMentions(text, []string{srv.Nickname}),
	}
	if id, ok := srv.UserID(from); ok {
		m.UserID = id
	}
	_, err := i.session.AddMessage(ch.ID, m, i.isActive(ch.ID))
	return err
}

func (i *Ingestor) handleJoin(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 1); err != nil {
		return err
	}
	name, nick := msg.Params[0], msg.Nick()

	ch := srv.Channel(name)
	if ch == nil {
		if !isSelf(srv, nick) {
			logger.Log.Debug().Str("channel", name).Str("nick", nick).Msg("Join for unknown channel")
			return nil
		}
		var err error
		if ch, err = i.session.AddChannel(srv.ID, name, false); err != nil {
			return err
		}
	}

	if _, err := i.session.JoinUser(ch.ID, nick, ""); err != nil {
		return err
	}
	return i.system(ch, session.KindJoin, fmt.Sprintf("%s has joined %s", nick, ch.Name))
}

func (i *Ingestor) handlePart(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 1); err != nil {
		return err
	}
	name, nick := msg.Params[0], msg.Nick()
	ch := srv.Channel(name)
	if ch == nil {
		// Already closed locally by /part
		return nil
	}
	if isSelf(srv, nick) {
		return i.session.RemoveChannel(ch.ID)
	}

	id, ok := srv.UserID(nick)
	if !ok || !ch.HasMember(id) {
		return nil
	}
	if err := i.session.PartUser(ch.ID, id); err != nil {
		return err
	}
	text := fmt.Sprintf("%s has left %s", nick, ch.Name)
	if len(msg.Params) > 1 && msg.Params[1] != "" {
		text += " (" + msg.Params[1] + ")"
	}
	return i.system(ch, session.KindLeave, text)
}

func (i *Ingestor) handleQuit(srv *session.Server, msg ircmsg.Message) error {
	nick := msg.Nick()
	if isSelf(srv, nick) {
		return i.session.SetConnected(srv.ID, false)
	}
	id, ok := srv.UserID(nick)
	if !ok {
		return nil
	}

	text := nick + " has quit"
	if len(msg.Params) > 0 && msg.Params[0] != "" {
		text += " (" + msg.Params[0] + ")"
	}
	for _, ch := range i.session.UserChannels(id) {
		if err := i.system(ch, session.KindLeave, text); err != nil {
			return err
		}
	}
	return i.session.RemoveUser(srv.ID, id)
}

func (i *Ingestor) handleNick(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 1); err != nil {
		return err
	}
	oldNick, newNick := msg.Nick(), msg.Params[0]

	var channels []*session.Channel
	if id, ok := srv.UserID(oldNick); ok {
		channels = i.session.UserChannels(id)
	}
	if _, err := i.session.RenameUser(srv.ID, oldNick, newNick); err != nil {
		return err
	}
	text := fmt.Sprintf("%s is now known as %s", oldNick, newNick)
	for _, ch := range channels {
		if err := i.system(ch, session.KindNick, text); err != nil {
			return err
		}
	}
	return nil
}

func (i *Ingestor) handleKick(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 2); err != nil {
		return err
	}
	name, target := msg.Params[0], msg.Params[1]
	ch := srv.Channel(name)
	if ch == nil {
		return nil
	}
	if isSelf(srv, target) {
		logger.Log.Info().Str("channel", name).Str("by", msg.Nick()).Msg("Kicked from channel")
		return i.session.RemoveChannel(ch.ID)
	}

	id, ok := srv.UserID(target)
	if !ok || !ch.HasMember(id) {
		return nil
	}
	if err := i.session.PartUser(ch.ID, id); err != nil {
		return err
	}
	text := fmt.Sprintf("%s was kicked by %s", target, msg.Nick())
	if len(msg.Params) > 2 && msg.Params[2] != "" {
		text += " (" + msg.Params[2] + ")"
	}
	return i.system(ch, session.KindLeave, text)
}

func (i *Ingestor) handleTopic(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 2); err != nil {
		return err
	}
	ch := srv.Channel(msg.Params[0])
	if ch == nil {
		return nil
	}
	if err := i.session.SetTopic(ch.ID, msg.Params[1]); err != nil {
		return err
	}
	return i.system(ch, session.KindSystem, fmt.Sprintf("%s changed the topic to: %s", msg.Nick(), msg.Params[1]))
}

// RPL_TOPIC: <client> <channel> :<topic>
func (i *Ingestor) handleTopicReply(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 3); err != nil {
		return err
	}
	ch := srv.Channel(msg.Params[1])
	if ch == nil {
		return nil
	}
	return i.session.SetTopic(ch.ID, msg.Params[2])
}

// RPL_NAMREPLY: <client> <symbol> <channel> :[prefix]<nick>{ [prefix]<nick>}
func (i *Ingestor) handleNames(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 4); err != nil {
		return err
	}
	ch := srv.Channel(msg.Params[2])
	if ch == nil {
		return nil
	}

	for _, entry := range strings.Fields(msg.Params[3]) {
		nick := strings.TrimLeftFunc(entry, isPrefix)
		modes := entry[:len(entry)-len(nick)]
		if nick == "" {
			continue
		}
		if _, err := i.session.JoinUser(ch.ID, nick, modes); err != nil {
			logger.Log.Warn().Err(err).Str("channel", ch.Name).Str("entry", entry).Msg("Skipping NAMES entry")
		}
	}
	return nil
}

func isPrefix(r rune) bool {
	return status.Rank(string(r)) > status.RankNone
}

// Channel modes that always take a parameter, and those that take one only
// when set.
const (
	modesWithParam      = "beIk"
	modesWithParamOnSet = "lfjJ"
)

// handleMode applies membership prefix changes (+o, -v, ...) and skips over
// the parameters of every other mode.
func (i *Ingestor) handleMode(srv *session.Server, msg ircmsg.Message) error {
	if err := needParams(msg, 2); err != nil {
		return err
	}
	if !validation.IsChannelName(msg.Params[0]) {
		return nil
	}
	ch := srv.Channel(msg.Params[0])
	if ch == nil {
		return nil
	}

	args := msg.Params[2:]
	next := func() (string, bool) {
		if len(args) == 0 {
			return "", false
		}
		arg := args[0]
		args = args[1:]
		return arg, true
	}

	adding := true
	for _, mode := range msg.Params[1] {
		switch {
		case mode == '+':
			adding = true
		case mode == '-':
			adding = false
		case strings.ContainsRune(modesWithParam, mode):
			next()
		case adding && strings.ContainsRune(modesWithParamOnSet, mode):
			next()
		default:
			marker, isPrefixMode := status.FromModeLetter(mode)
			if !isPrefixMode {
				continue
			}
			nick, ok := next()
			if !ok {
				return fmt.Errorf("%w: missing nick for mode %c", ErrMalformed, mode)
			}
			if err := i.applyPrefix(srv, ch, nick, marker, adding); err != nil {
				return err
			}
		}
	}
	return nil
}

func (i *Ingestor) applyPrefix(srv *session.Server, ch *session.Channel, nick string, marker rune, adding bool) error {
	id, ok := srv.UserID(nick)
	if !ok || !ch.HasMember(id) {
		logger.Log.Debug().Str("channel", ch.Name).Str("nick", nick).Msg("Mode change for unknown member")
		return nil
	}

	current := ch.Status(id)
	updated := strings.ReplaceAll(current, string(marker), "")
	if adding {
		updated = string(marker) + updated
	}
	if updated == current {
		return nil
	}
	return i.session.SetStatus(ch.ID, id, updated)
}
