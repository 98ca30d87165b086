package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/session"
	"github.com/matt0x6f/cascade-core/internal/status"
	"github.com/matt0x6f/cascade-core/internal/validation"
)

// Sender delivers outbound protocol messages for a server.
type Sender interface {
	Send(serverID string, msg ircmsg.Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(serverID string, msg ircmsg.Message) error

// Send calls f.
func (f SenderFunc) Send(serverID string, msg ircmsg.Message) error {
	return f(serverID, msg)
}

// Env is what the built-in handlers operate on.
type Env struct {
	Session *session.Session
	Sender  Sender
}

const (
	CategoryChannel    = "Channel"
	CategoryMessaging  = "Messaging"
	CategoryModeration = "Moderation"
	CategoryServer     = "Server"
	CategoryGeneral    = "General"
)

// RegisterBuiltins registers the standard IRC commands.
func RegisterBuiltins(r *Registry, env Env) error {
	b := &builtins{env: env, registry: r}

	cmds := []*Command{
		{Name: "join", Aliases: []string{"j"}, Category: CategoryChannel,
			Description: "Join a channel", Usage: "/join #channel [key]", Handler: HandlerFunc(b.join)},
		{Name: "part", Aliases: []string{"leave"}, Category: CategoryChannel,
			Description: "Leave a channel", Usage: "/part [#channel] [reason]", Handler: HandlerFunc(b.part)},
		{Name: "close", Category: CategoryChannel,
			Description: "Close the current channel or query", Usage: "/close", Handler: HandlerFunc(b.close)},
		{Name: "topic", Category: CategoryChannel,
			Description: "Show or set the channel topic", Usage: "/topic [#channel] [new topic]", Handler: HandlerFunc(b.topic)},
		{Name: "names", Category: CategoryChannel,
			Description: "List channel members", Usage: "/names", Handler: HandlerFunc(b.names)},
		{Name: "read", Category: CategoryChannel,
			Description: "Mark the current channel as read", Usage: "/read", Handler: HandlerFunc(b.read)},

		{Name: "msg", Aliases: []string{"m", "privmsg"}, Category: CategoryMessaging,
			Description: "Send a message", Usage: "/msg target message", Handler: HandlerFunc(b.msg)},
		{Name: "query", Aliases: []string{"q"}, Category: CategoryMessaging,
			Description: "Open a private conversation", Usage: "/query nick [message]", Handler: HandlerFunc(b.query)},
		{Name: "me", Aliases: []string{"action"}, Category: CategoryMessaging,
			Description: "Send an action", Usage: "/me action text", Handler: HandlerFunc(b.me)},
		{Name: "notice", Category: CategoryMessaging,
			Description: "Send a notice", Usage: "/notice target message", Handler: HandlerFunc(b.notice)},

		{Name: "kick", Category: CategoryModeration,
			Description: "Kick a user from the channel", Usage: "/kick nick [reason]", Handler: HandlerFunc(b.kick)},
		{Name: "ban", Category: CategoryModeration,
			Description: "Ban a user from the channel", Usage: "/ban nick|mask", Handler: HandlerFunc(b.ban)},
		{Name: "unban", Category: CategoryModeration,
			Description: "Remove a channel ban", Usage: "/unban nick|mask", Handler: HandlerFunc(b.unban)},
		{Name: "op", Category: CategoryModeration,
			Description: "Give channel operator status", Usage: "/op nick...", Handler: b.memberMode('+', 'o', status.RankOp)},
		{Name: "deop", Category: CategoryModeration,
			Description: "Take channel operator status", Usage: "/deop nick...", Handler: b.memberMode('-', 'o', status.RankOp)},
		{Name: "voice", Category: CategoryModeration,
			Description: "Give voice", Usage: "/voice nick...", Handler: b.memberMode('+', 'v', status.ModerateThreshold)},
		{Name: "devoice", Category: CategoryModeration,
			Description: "Take voice", Usage: "/devoice nick...", Handler: b.memberMode('-', 'v', status.ModerateThreshold)},

		{Name: "nick", Category: CategoryServer,
			Description: "Change your nickname", Usage: "/nick newnick", Handler: HandlerFunc(b.nick)},
		{Name: "away", Category: CategoryServer,
			Description: "Set or clear your away message", Usage: "/away [message]", Handler: HandlerFunc(b.away)},
		{Name: "whois", Category: CategoryServer,
			Description: "Query information about a user", Usage: "/whois nick", Handler: HandlerFunc(b.whois)},
		{Name: "quote", Aliases: []string{"raw"}, Category: CategoryServer,
			Description: "Send a raw protocol line", Usage: "/quote COMMAND params", Handler: HandlerFunc(b.quote)},

		{Name: "help", Aliases: []string{"?"}, Category: CategoryGeneral,
			Description: "List commands or describe one", Usage: "/help [command]", Handler: HandlerFunc(b.help)},
	}

	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return fmt.Errorf("failed to register builtin commands: %w", err)
		}
	}
	return nil
}

type builtins struct {
	env      Env
	registry *Registry
}

func (b *builtins) send(srv *session.Server, command string, params ...string) error {
	msg := ircmsg.MakeMessage(nil, "", command, params...)
	logger.Log.Debug().Str("server", srv.Name).Str("command", command).Strs("params", RedactParams(command, params)).Msg("Sending command")
	if err := b.env.Sender.Send(srv.ID, msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", command, err)
	}
	return nil
}

// secretCommands carry credentials in every parameter
var secretCommands = map[string]bool{"PASS": true, "AUTHENTICATE": true, "OPER": true}

// RedactParams returns params safe to log or display. Credential commands
// have their parameters masked; everything else is returned as is.
func RedactParams(command string, params []string) []string {
	if !secretCommands[strings.ToUpper(command)] {
		return params
	}
	masked := make([]string, len(params))
	for i := range params {
		masked[i] = "********"
	}
	return masked
}

// IsSecretCommand reports whether a protocol command carries credentials
func IsSecretCommand(command string) bool {
	return secretCommands[strings.ToUpper(command)]
}

// echo records one of our own messages in the local history. Our own lines
// never count as unread.
func (b *builtins) echo(srv *session.Server, ch *session.Channel, text string, action bool) {
	msg := session.Message{
		Content:  text,
		Author:   srv.Nickname,
		Kind:     session.KindMessage,
		IsAction: action,
	}
	if id, ok := srv.UserID(srv.Nickname); ok {
		msg.UserID = id
	}
	if _, err := b.env.Session.AddMessage(ch.ID, msg, true); err != nil {
		logger.Log.Warn().Err(err).Str("channel", ch.Name).Msg("Failed to record outgoing message")
	}
}

// channelArg resolves an optional leading #channel argument, falling back to
// the current channel. It returns the remaining args.
func channelArg(args []string, ch *session.Channel) (string, []string) {
	if len(args) > 0 && validation.IsChannelName(args[0]) {
		return args[0], args[1:]
	}
	if ch != nil && !ch.IsPrivate {
		return ch.Name, args
	}
	return "", args
}

var errNoServer = Fail("not connected to a server")

func (b *builtins) join(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	if len(args) < 1 {
		return Fail("usage: /join #channel [key]"), nil
	}
	name := args[0]
	if !validation.IsChannelName(name) {
		name = "#" + name
	}
	if err := validation.ValidateChannelName(name); err != nil {
		return Fail("invalid channel: %v", err), nil
	}

	params := []string{name}
	if len(args) >= 2 {
		params = append(params, args[1])
	}
	logger.Log.Info().Str("channel", name).Msg("Joining channel")
	if err := b.send(srv, "JOIN", params...); err != nil {
		return Response{}, err
	}

	joined, err := b.env.Session.AddChannel(srv.ID, name, false)
	if err != nil {
		return Response{}, err
	}
	return Response{Success: true, Message: "joining " + joined.Name, Data: joined.ID}, nil
}

func (b *builtins) part(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	name, rest := channelArg(args, ch)
	if name == "" {
		return Fail("usage: /part [#channel] [reason]"), nil
	}
	return b.leave(srv, name, strings.Join(rest, " "))
}

func (b *builtins) leave(srv *session.Server, name, reason string) (Response, error) {
	params := []string{name}
	if reason != "" {
		params = append(params, reason)
	}
	if err := b.send(srv, "PART", params...); err != nil {
		return Response{}, err
	}
	if target := srv.Channel(name); target != nil {
		if err := b.env.Session.RemoveChannel(target.ID); err != nil {
			return Response{}, err
		}
	}
	return OK("left " + name), nil
}

func (b *builtins) close(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if ch == nil || srv == nil {
		return Fail("nothing to close"), nil
	}
	if !ch.IsPrivate {
		return b.leave(srv, ch.Name, "")
	}
	if err := b.env.Session.RemoveChannel(ch.ID); err != nil {
		return Response{}, err
	}
	return OK("closed " + ch.Name), nil
}

func (b *builtins) topic(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	name, rest := channelArg(args, ch)
	if name == "" {
		return Fail("usage: /topic [#channel] [new topic]"), nil
	}

	if len(rest) == 0 {
		if known := srv.Channel(name); known != nil && known.Topic != "" {
			return Response{Success: true, Message: known.Topic, Data: known.Topic}, nil
		}
		// Ask the server; the reply updates the model
		if err := b.send(srv, "TOPIC", name); err != nil {
			return Response{}, err
		}
		return OK("requested topic for " + name), nil
	}

	if err := b.send(srv, "TOPIC", name, strings.Join(rest, " ")); err != nil {
		return Response{}, err
	}
	return OK("topic change requested"), nil
}

func (b *builtins) names(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if ch == nil || ch.IsPrivate {
		return Fail("/names must be used in a channel"), nil
	}
	var nicks []string
	for _, id := range ch.MemberIDs() {
		user := b.env.Session.User(id)
		if user == nil {
			continue
		}
		nicks = append(nicks, status.Highest(ch.Status(id))+user.Username)
	}
	return Response{
		Success: true,
		Message: fmt.Sprintf("%s: %s", ch.Name, strings.Join(nicks, " ")),
		Data:    nicks,
	}, nil
}

func (b *builtins) read(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if ch == nil {
		return Fail("no channel selected"), nil
	}
	if err := b.env.Session.MarkRead(ch.ID); err != nil {
		return Response{}, err
	}
	return OK("marked " + ch.Name + " as read"), nil
}

func (b *builtins) msg(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	if len(args) < 2 {
		return Fail("usage: /msg target message"), nil
	}
	target, text := args[0], rest(args, 1)
	if err := b.send(srv, "PRIVMSG", target, text); err != nil {
		return Response{}, err
	}

	// Private messages open a query window; channel messages echo only where
	// the channel is already known
	dest := srv.Channel(target)
	if dest == nil && !validation.IsChannelName(target) {
		var err error
		if dest, err = b.env.Session.AddChannel(srv.ID, target, true); err != nil {
			return Response{}, err
		}
	}
	if dest != nil {
		b.echo(srv, dest, text, false)
	}
	return OK(""), nil
}

func (b *builtins) query(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	if len(args) < 1 {
		return Fail("usage: /query nick [message]"), nil
	}
	nick := args[0]
	if validation.IsChannelName(nick) {
		return Fail("/query takes a nickname, use /join for channels"), nil
	}

	dest, err := b.env.Session.AddChannel(srv.ID, nick, true)
	if err != nil {
		return Fail("invalid nickname: %v", err), nil
	}
	if text := rest(args, 1); text != "" {
		if err := b.send(srv, "PRIVMSG", nick, text); err != nil {
			return Response{}, err
		}
		b.echo(srv, dest, text, false)
	}
	return Response{Success: true, Message: "query with " + dest.Name, Data: dest.ID}, nil
}

func (b *builtins) me(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	if ch == nil {
		return Fail("usage: /me action text (must be used in a channel)"), nil
	}
	if len(args) == 0 {
		return Fail("usage: /me action text"), nil
	}
	text := strings.Join(args, " ")
	if err := b.send(srv, "PRIVMSG", ch.Name, "\x01ACTION "+text+"\x01"); err != nil {
		return Response{}, err
	}
	b.echo(srv, ch, text, true)
	return OK(""), nil
}

func (b *builtins) notice(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	if len(args) < 2 {
		return Fail("usage: /notice target message"), nil
	}
	if err := b.send(srv, "NOTICE", args[0], rest(args, 1)); err != nil {
		return Response{}, err
	}
	return OK(""), nil
}

// moderated returns the channel a moderation command applies to, or a failed
// response when there is none.
func moderated(ch *session.Channel, srv *session.Server, usage string) (*session.Channel, *Response) {
	if srv == nil {
		resp := errNoServer
		return nil, &resp
	}
	if ch == nil || ch.IsPrivate {
		resp := Fail("%s (must be used in a channel)", usage)
		return nil, &resp
	}
	return ch, nil
}

func (b *builtins) kick(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	ch, failed := moderated(ch, srv, "usage: /kick nick [reason]")
	if failed != nil {
		return *failed, nil
	}
	if len(args) < 1 {
		return Fail("usage: /kick nick [reason]"), nil
	}
	target := args[0]
	if !status.CanModerateTarget(b.env.Session.LocalStatus(ch.ID), srv.Nickname, target) {
		return Fail("you cannot kick %s from %s", target, ch.Name), nil
	}

	params := []string{ch.Name, target}
	if reason := rest(args, 1); reason != "" {
		params = append(params, reason)
	}
	if err := b.send(srv, "KICK", params...); err != nil {
		return Response{}, err
	}
	return OK("kicked " + target), nil
}

// banMask turns a bare nick into nick!*@*
func banMask(target string) string {
	if strings.ContainsAny(target, "!@") {
		return target
	}
	return target + "!*@*"
}

func (b *builtins) ban(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	ch, failed := moderated(ch, srv, "usage: /ban nick|mask")
	if failed != nil {
		return *failed, nil
	}
	if len(args) < 1 {
		return Fail("usage: /ban nick|mask"), nil
	}
	target := args[0]
	nick := target
	if idx := strings.IndexAny(nick, "!@"); idx >= 0 {
		nick = nick[:idx]
	}
	if !status.CanModerateTarget(b.env.Session.LocalStatus(ch.ID), srv.Nickname, nick) {
		return Fail("you cannot ban %s from %s", target, ch.Name), nil
	}
	if err := b.send(srv, "MODE", ch.Name, "+b", banMask(target)); err != nil {
		return Response{}, err
	}
	return OK("banned " + banMask(target)), nil
}

func (b *builtins) unban(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	ch, failed := moderated(ch, srv, "usage: /unban nick|mask")
	if failed != nil {
		return *failed, nil
	}
	if len(args) < 1 {
		return Fail("usage: /unban nick|mask"), nil
	}
	if !status.CanModerate(b.env.Session.LocalStatus(ch.ID)) {
		return Fail("you cannot unban in %s", ch.Name), nil
	}
	if err := b.send(srv, "MODE", ch.Name, "-b", banMask(args[0])); err != nil {
		return Response{}, err
	}
	return OK("unbanned " + banMask(args[0])), nil
}

// memberMode builds the op/deop/voice/devoice handlers. minRank is the local
// rank needed to offer the change.
func (b *builtins) memberMode(sign, letter rune, minRank int) Handler {
	return HandlerFunc(func(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
		ch, failed := moderated(ch, srv, "usage: nick...")
		if failed != nil {
			return *failed, nil
		}
		if len(args) == 0 {
			return Fail("at least one nick is required"), nil
		}
		if status.Rank(b.env.Session.LocalStatus(ch.ID)) < minRank {
			return Fail("insufficient privileges in %s", ch.Name), nil
		}

		modes := string(sign) + strings.Repeat(string(letter), len(args))
		params := append([]string{ch.Name, modes}, args...)
		if err := b.send(srv, "MODE", params...); err != nil {
			return Response{}, err
		}
		return OK(""), nil
	})
}

func (b *builtins) nick(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	if len(args) != 1 {
		return Fail("usage: /nick newnick"), nil
	}
	if err := validation.ValidateNickname(args[0]); err != nil {
		return Fail("invalid nickname: %v", err), nil
	}

	// Offline the change applies immediately; online we wait for the
	// server's NICK echo
	if !srv.IsConnected {
		if err := b.env.Session.SetNickname(srv.ID, args[0]); err != nil {
			return Response{}, err
		}
		return OK("nickname set to " + args[0]), nil
	}
	if err := b.send(srv, "NICK", args[0]); err != nil {
		return Response{}, err
	}
	return OK("nickname change requested"), nil
}

func (b *builtins) away(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	message := strings.Join(args, " ")
	var err error
	if message != "" {
		err = b.send(srv, "AWAY", message)
	} else {
		// Empty away message means unset away
		err = b.send(srv, "AWAY")
	}
	if err != nil {
		return Response{}, err
	}

	if id, ok := srv.UserID(srv.Nickname); ok {
		presence := session.PresenceOnline
		if message != "" {
			presence = session.PresenceIdle
		}
		_ = b.env.Session.SetPresence(id, presence)
	}
	return OK(""), nil
}

func (b *builtins) whois(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	if len(args) < 1 {
		return Fail("usage: /whois nick"), nil
	}
	if err := b.send(srv, "WHOIS", args[0]); err != nil {
		return Response{}, err
	}
	return OK(""), nil
}

func (b *builtins) quote(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if srv == nil {
		return errNoServer, nil
	}
	if len(args) == 0 {
		return Fail("usage: /quote COMMAND params"), nil
	}
	msg, err := ircmsg.ParseLine(strings.Join(args, " "))
	if err != nil {
		return Fail("invalid protocol line: %v", err), nil
	}
	if err := b.env.Sender.Send(srv.ID, msg); err != nil {
		return Response{}, fmt.Errorf("failed to send raw line: %w", err)
	}
	return OK(""), nil
}

func (b *builtins) help(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	if len(args) > 0 {
		cmd := b.registry.Get(args[0])
		if cmd == nil {
			return Fail("no such command: %s", args[0]), nil
		}
		text := fmt.Sprintf("%s - %s", cmd.Usage, cmd.Description)
		if len(cmd.Aliases) > 0 {
			text += " (aliases: /" + strings.Join(cmd.Aliases, ", /") + ")"
		}
		return Response{Success: true, Message: text, Data: cmd}, nil
	}

	groups := b.registry.ByCategory()
	categories := make([]string, 0, len(groups))
	for category := range groups {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var sb strings.Builder
	for _, category := range categories {
		sb.WriteString(category)
		sb.WriteString(":\n")
		for _, cmd := range groups[category] {
			fmt.Fprintf(&sb, "  /%-10s %s\n", cmd.Name, cmd.Description)
		}
	}
	return Response{Success: true, Message: strings.TrimRight(sb.String(), "\n"), Data: groups}, nil
}
