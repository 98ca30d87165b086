package commands

import (
	"errors"
	"testing"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/matt0x6f/cascade-core/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentLine struct {
	serverID string
	msg      ircmsg.Message
}

type recordingSender struct {
	sent []sentLine
	err  error
}

func (r *recordingSender) Send(serverID string, msg ircmsg.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentLine{serverID: serverID, msg: msg})
	return nil
}

func (r *recordingSender) last(t *testing.T) ircmsg.Message {
	t.Helper()
	require.NotEmpty(t, r.sent, "nothing was sent")
	return r.sent[len(r.sent)-1].msg
}

type fixture struct {
	session  *session.Session
	registry *Registry
	sender   *recordingSender
	server   *session.Server
	channel  *session.Channel
}

// newFixture connects alice to #go with the given status, alongside bob.
func newFixture(t *testing.T, localStatus string) *fixture {
	t.Helper()
	s := session.New(nil)
	srv, err := s.Connect(session.ServerConfig{
		Name:     "libera",
		Host:     "irc.libera.chat",
		Nickname: "alice",
		Channels: []string{"#go"},
	})
	require.NoError(t, err)
	require.NoError(t, s.SetConnected(srv.ID, true))

	ch := srv.Channel("#go")
	_, err = s.JoinUser(ch.ID, "alice", localStatus)
	require.NoError(t, err)
	_, err = s.JoinUser(ch.ID, "bob", "+")
	require.NoError(t, err)

	sender := &recordingSender{}
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, Env{Session: s, Sender: sender}))

	return &fixture{session: s, registry: r, sender: sender, server: srv, channel: ch}
}

func (f *fixture) run(t *testing.T, input string) Response {
	t.Helper()
	resp, err := f.registry.Execute(input, f.channel, f.server)
	require.NoError(t, err)
	return resp
}

func TestRegisterBuiltins_Aliases(t *testing.T) {
	f := newFixture(t, "")
	for alias, name := range map[string]string{
		"j": "join", "leave": "part", "m": "msg", "privmsg": "msg", "q": "query",
		"action": "me", "raw": "quote",
	} {
		cmd := f.registry.Get(alias)
		require.NotNil(t, cmd, alias)
		assert.Equal(t, name, cmd.Name)
	}

	// Registering twice collides
	assert.Error(t, RegisterBuiltins(f.registry, Env{Session: f.session, Sender: f.sender}))
}

func TestJoin(t *testing.T) {
	f := newFixture(t, "")

	resp := f.run(t, "/join rust secret")
	require.True(t, resp.Success, resp.Message)

	msg := f.sender.last(t)
	assert.Equal(t, "JOIN", msg.Command)
	assert.Equal(t, []string{"#rust", "secret"}, msg.Params)
	assert.Equal(t, f.server.ID, f.sender.sent[0].serverID)

	ch := f.server.Channel("#rust")
	require.NotNil(t, ch)
	assert.Equal(t, ch.ID, resp.Data)

	resp = f.run(t, "/join")
	assert.False(t, resp.Success)
	assert.Len(t, f.sender.sent, 1)
}

func TestPart(t *testing.T) {
	f := newFixture(t, "")

	resp := f.run(t, "/part see you")
	require.True(t, resp.Success)
	msg := f.sender.last(t)
	assert.Equal(t, "PART", msg.Command)
	assert.Equal(t, []string{"#go", "see you"}, msg.Params)
	assert.Nil(t, f.server.Channel("#go"))
	// Both users only lived in #go
	assert.Equal(t, 0, f.server.UserCount())
}

func TestMsg_OpensQueryAndEchoes(t *testing.T) {
	f := newFixture(t, "")

	resp := f.run(t, "/msg carol hi there")
	require.True(t, resp.Success)

	msg := f.sender.last(t)
	assert.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, []string{"carol", "hi there"}, msg.Params)

	query := f.server.Channel("carol")
	require.NotNil(t, query)
	assert.True(t, query.IsPrivate)
	require.Equal(t, 1, query.MessageCount())
	assert.Equal(t, "hi there", query.Messages()[0].Content)
	assert.Equal(t, "alice", query.Messages()[0].Author)
	assert.Equal(t, 0, query.UnreadCount)
}

func TestMsg_UnknownChannelNotCreated(t *testing.T) {
	f := newFixture(t, "")

	resp := f.run(t, "/msg #elsewhere hello")
	require.True(t, resp.Success)
	assert.Nil(t, f.server.Channel("#elsewhere"))
}

func TestQuery(t *testing.T) {
	f := newFixture(t, "")

	resp := f.run(t, "/query bob")
	require.True(t, resp.Success)
	assert.Empty(t, f.sender.sent)
	ch := f.server.Channel("bob")
	require.NotNil(t, ch)
	assert.Equal(t, ch.ID, resp.Data)

	resp = f.run(t, "/query #go")
	assert.False(t, resp.Success)
}

func TestMe(t *testing.T) {
	f := newFixture(t, "")

	resp := f.run(t, "/me waves")
	require.True(t, resp.Success)

	msg := f.sender.last(t)
	assert.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, []string{"#go", "\x01ACTION waves\x01"}, msg.Params)

	history := f.channel.Messages()
	require.Len(t, history, 1)
	assert.True(t, history[0].IsAction)
	assert.Equal(t, "waves", history[0].Content)
}

func TestKick_PermissionGate(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		input   string
		allowed bool
	}{
		{"voice cannot kick", "+", "/kick bob", false},
		{"halfop can kick", "%", "/kick bob spam", true},
		{"op can kick", "@", "/kick bob", true},
		{"op cannot kick self", "@", "/kick ALICE", false},
		{"owner cannot kick self", "~", "/kick alice", false},
		{"op cannot ban self", "@", "/ban alice", false},
		{"op cannot ban self by mask", "@", "/ban alice!*@*", false},
		{"voice cannot ban", "+", "/ban bob", false},
		{"op can ban", "@", "/ban bob", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.status)
			resp := f.run(t, tt.input)
			assert.Equal(t, tt.allowed, resp.Success, resp.Message)
			if tt.allowed {
				assert.Len(t, f.sender.sent, 1)
			} else {
				assert.Empty(t, f.sender.sent)
			}
		})
	}
}

func TestKick_SendsReason(t *testing.T) {
	f := newFixture(t, "@")
	f.run(t, "/kick bob please stop")
	msg := f.sender.last(t)
	assert.Equal(t, "KICK", msg.Command)
	assert.Equal(t, []string{"#go", "bob", "please stop"}, msg.Params)
}

func TestBan_Mask(t *testing.T) {
	f := newFixture(t, "@")
	f.run(t, "/ban bob")
	assert.Equal(t, []string{"#go", "+b", "bob!*@*"}, f.sender.last(t).Params)

	f.run(t, "/unban *!*@spam.example")
	assert.Equal(t, []string{"#go", "-b", "*!*@spam.example"}, f.sender.last(t).Params)
}

func TestModerationNeedsChannel(t *testing.T) {
	f := newFixture(t, "@")
	resp, err := f.registry.Execute("/kick bob", nil, f.server)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Empty(t, f.sender.sent)
}

func TestMemberModes(t *testing.T) {
	f := newFixture(t, "%")

	// Halfops can voice but not op
	resp := f.run(t, "/voice bob carol")
	require.True(t, resp.Success)
	assert.Equal(t, []string{"#go", "+vv", "bob", "carol"}, f.sender.last(t).Params)

	resp = f.run(t, "/op bob")
	assert.False(t, resp.Success)
	assert.Len(t, f.sender.sent, 1)

	f = newFixture(t, "@")
	require.True(t, f.run(t, "/deop bob").Success)
	assert.Equal(t, []string{"#go", "-o", "bob"}, f.sender.last(t).Params)
}

func TestNick(t *testing.T) {
	f := newFixture(t, "")

	resp := f.run(t, "/nick alice_")
	require.True(t, resp.Success)
	assert.Equal(t, "NICK", f.sender.last(t).Command)
	// Online: wait for the server
	assert.Equal(t, "alice", f.server.Nickname)

	require.NoError(t, f.session.SetConnected(f.server.ID, false))
	resp = f.run(t, "/nick alice2")
	require.True(t, resp.Success)
	assert.Equal(t, "alice2", f.server.Nickname)
	_, joined := f.server.UserID("alice2")
	assert.True(t, joined)
	assert.Len(t, f.sender.sent, 1)

	resp = f.run(t, "/nick 9lives")
	assert.False(t, resp.Success)
}

func TestTopic(t *testing.T) {
	f := newFixture(t, "")

	require.True(t, f.run(t, "/topic").Success)
	assert.Equal(t, []string{"#go"}, f.sender.last(t).Params)

	require.NoError(t, f.session.SetTopic(f.channel.ID, "Go news"))
	resp := f.run(t, "/topic")
	assert.Equal(t, "Go news", resp.Message)
	assert.Len(t, f.sender.sent, 1)

	f.run(t, "/topic #go Go 1.24 released")
	assert.Equal(t, []string{"#go", "Go 1.24 released"}, f.sender.last(t).Params)
}

func TestNames(t *testing.T) {
	f := newFixture(t, "@")
	resp := f.run(t, "/names")
	require.True(t, resp.Success)
	assert.Equal(t, []string{"@alice", "+bob"}, resp.Data)
}

func TestRead(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.session.AddMessage(f.channel.ID, session.Message{Author: "bob", Content: "hey"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, f.channel.UnreadCount)

	require.True(t, f.run(t, "/read").Success)
	assert.Equal(t, 0, f.channel.UnreadCount)
	assert.True(t, f.channel.IsRead)
}

func TestAway(t *testing.T) {
	f := newFixture(t, "")
	aliceID, ok := f.server.UserID("alice")
	require.True(t, ok)

	f.run(t, "/away lunch")
	assert.Equal(t, []string{"lunch"}, f.sender.last(t).Params)
	assert.Equal(t, session.PresenceIdle, f.session.User(aliceID).Presence)

	f.run(t, "/away")
	assert.Empty(t, f.sender.last(t).Params)
	assert.Equal(t, session.PresenceOnline, f.session.User(aliceID).Presence)
}

func TestQuote(t *testing.T) {
	f := newFixture(t, "")
	require.True(t, f.run(t, "/quote MODE #go +m").Success)
	msg := f.sender.last(t)
	assert.Equal(t, "MODE", msg.Command)
	assert.Equal(t, []string{"#go", "+m"}, msg.Params)

	assert.False(t, f.run(t, "/raw").Success)

	// Only display is masked; the wire gets the real password
	require.True(t, f.run(t, "/quote PASS s3cret").Success)
	assert.Equal(t, []string{"s3cret"}, f.sender.last(t).Params)
}

func TestRedactParams(t *testing.T) {
	assert.Equal(t, []string{"********"}, RedactParams("PASS", []string{"s3cret"}))
	assert.Equal(t, []string{"********", "********"}, RedactParams("oper", []string{"admin", "s3cret"}))
	assert.Equal(t, []string{"#go", "hi"}, RedactParams("PRIVMSG", []string{"#go", "hi"}))

	assert.True(t, IsSecretCommand("authenticate"))
	assert.False(t, IsSecretCommand("NICK"))
}

func TestHelp(t *testing.T) {
	f := newFixture(t, "")

	resp := f.run(t, "/help")
	require.True(t, resp.Success)
	assert.Contains(t, resp.Message, "Moderation:")
	assert.Contains(t, resp.Message, "/kick")

	resp = f.run(t, "/help j")
	require.True(t, resp.Success)
	assert.Contains(t, resp.Message, "/join #channel [key]")

	assert.False(t, f.run(t, "/help bogus").Success)
}

func TestSendFailureBecomesExecutionError(t *testing.T) {
	f := newFixture(t, "")
	f.sender.err = errors.New("connection reset")

	resp := f.run(t, "/whois bob")
	assert.False(t, resp.Success)
	var execErr *HandlerExecutionError
	require.True(t, errors.As(resp.Err, &execErr))
	assert.Equal(t, "whois", execErr.Command)
}

func TestNoServer(t *testing.T) {
	f := newFixture(t, "")
	resp, err := f.registry.Execute("/join #x", nil, nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Empty(t, f.sender.sent)
}
