package ingest

import (
	"errors"
	"testing"

	"github.com/matt0x6f/cascade-core/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	session *session.Session
	server  *session.Server
	ing     *Ingestor
	active  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := session.New(nil)
	srv, err := s.Connect(session.ServerConfig{
		Name:     "libera",
		Host:     "irc.libera.chat",
		Nickname: "alice",
	})
	require.NoError(t, err)

	h := &harness{session: s, server: srv}
	h.ing = New(s, srv.ID, func(channelID string) bool { return channelID == h.active })
	return h
}

func (h *harness) feed(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.NoError(t, h.ing.HandleLine(line), line)
	}
}

// joined puts alice and the given nicks into #go
func (h *harness) joined(t *testing.T, nicks ...string) *session.Channel {
	t.Helper()
	h.feed(t, ":alice!a@host JOIN #go")
	for _, nick := range nicks {
		h.feed(t, ":"+nick+"!u@host JOIN #go")
	}
	ch := h.server.Channel("#go")
	require.NotNil(t, ch)
	return ch
}

func (h *harness) userID(t *testing.T, nick string) string {
	t.Helper()
	id, ok := h.server.UserID(nick)
	require.True(t, ok, "no user %s", nick)
	return id
}

func TestWelcome(t *testing.T) {
	h := newHarness(t)
	h.feed(t, ":irc.libera.chat 001 alice_ :Welcome to Libera.Chat")
	assert.True(t, h.server.IsConnected)
	assert.Equal(t, "alice_", h.server.Nickname)
}

func TestSelfJoinCreatesChannel(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t)

	assert.False(t, ch.IsPrivate)
	assert.True(t, ch.HasMember(h.userID(t, "alice")))
	require.Equal(t, 1, ch.MessageCount())
	assert.Equal(t, session.KindJoin, ch.Messages()[0].Kind)
}

func TestJoinUnknownChannelIgnored(t *testing.T) {
	h := newHarness(t)
	h.feed(t, ":bob!b@host JOIN #elsewhere")
	assert.Nil(t, h.server.Channel("#elsewhere"))
	assert.Equal(t, 0, h.server.UserCount())
}

func TestChannelMessage(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t, "bob")
	before := ch.UnreadCount

	h.feed(t, "@time=2024-01-01T00:00:00.000Z :bob!b@host PRIVMSG #go :hey Alice, ping")

	msgs := ch.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, "hey Alice, ping", last.Content)
	assert.Equal(t, "bob", last.Author)
	assert.Equal(t, h.userID(t, "bob"), last.UserID)
	assert.Equal(t, []string{"alice"}, last.Mentions)
	assert.Equal(t, before+1, ch.UnreadCount)
	assert.True(t, ch.IsMentioned)
}

func TestActiveChannelStaysRead(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t, "bob")
	require.NoError(t, h.session.MarkRead(ch.ID))
	h.active = ch.ID

	h.feed(t, ":bob!b@host PRIVMSG #go :alice: look")
	assert.Equal(t, 0, ch.UnreadCount)
	assert.False(t, ch.IsMentioned)
	assert.True(t, ch.IsRead)
}

func TestAction(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t, "bob")

	h.feed(t, ":bob!b@host PRIVMSG #go :\x01ACTION waves\x01")
	last := ch.Messages()[ch.MessageCount()-1]
	assert.True(t, last.IsAction)
	assert.Equal(t, "waves", last.Content)

	count := ch.MessageCount()
	h.feed(t, ":bob!b@host PRIVMSG #go :\x01VERSION\x01")
	assert.Equal(t, count, ch.MessageCount())
}

func TestPrivateMessageOpensQuery(t *testing.T) {
	h := newHarness(t)
	h.feed(t, ":carol!c@host PRIVMSG alice :psst")

	query := h.server.Channel("carol")
	require.NotNil(t, query)
	assert.True(t, query.IsPrivate)
	assert.Equal(t, 1, query.UnreadCount)
	assert.Equal(t, "psst", query.Messages()[0].Content)
}

func TestNoticeWithoutQueryIgnored(t *testing.T) {
	h := newHarness(t)
	h.feed(t, ":NickServ!NickServ@services. NOTICE alice :This nickname is registered")
	assert.Nil(t, h.server.Channel("NickServ"))

	_, err := h.session.AddChannel(h.server.ID, "NickServ", true)
	require.NoError(t, err)
	h.feed(t, ":NickServ!NickServ@services. NOTICE alice :You are now identified")
	assert.Equal(t, 1, h.server.Channel("nickserv").MessageCount())
}

func TestOwnEchoSkipped(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t)
	count := ch.MessageCount()

	h.feed(t, ":alice!a@host PRIVMSG #go :my own line")
	assert.Equal(t, count, ch.MessageCount())
}

func TestPartAndQuit(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t, "bob", "carol")
	h.feed(t, ":alice!a@host JOIN #rust", ":bob!b@host JOIN #rust")
	rust := h.server.Channel("#rust")

	h.feed(t, ":carol!c@host PART #go :bye")
	_, ok := h.server.UserID("carol")
	assert.False(t, ok, "carol had no other channels")
	last := ch.Messages()[ch.MessageCount()-1]
	assert.Equal(t, session.KindLeave, last.Kind)
	assert.Contains(t, last.Content, "(bye)")

	bob := h.userID(t, "bob")
	h.feed(t, ":bob!b@host QUIT :Ping timeout")
	assert.False(t, ch.HasMember(bob))
	assert.False(t, rust.HasMember(bob))
	assert.Nil(t, h.session.User(bob))
	assert.Contains(t, rust.Messages()[rust.MessageCount()-1].Content, "Ping timeout")
}

func TestSelfPartRemovesChannel(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "bob")
	h.feed(t, ":alice!a@host PART #go")
	assert.Nil(t, h.server.Channel("#go"))
	assert.Equal(t, 0, h.server.UserCount())

	// A late echo after /part already closed it
	h.feed(t, ":alice!a@host PART #go")
}

func TestNick(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t, "bob")
	bob := h.userID(t, "bob")

	h.feed(t, ":bob!b@host NICK :robert")
	assert.Equal(t, bob, h.userID(t, "robert"))
	assert.Equal(t, session.KindNick, ch.Messages()[ch.MessageCount()-1].Kind)

	h.feed(t, ":alice!a@host NICK alicia")
	assert.Equal(t, "alicia", h.server.Nickname)
}

func TestKick(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t, "bob")

	h.feed(t, ":op!o@host KICK #go bob :flooding")
	_, ok := h.server.UserID("bob")
	assert.False(t, ok)
	assert.Contains(t, ch.Messages()[ch.MessageCount()-1].Content, "kicked by op (flooding)")

	h.feed(t, ":op!o@host KICK #go alice")
	assert.Nil(t, h.server.Channel("#go"))
}

func TestTopic(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t)

	h.feed(t, ":irc.libera.chat 332 alice #go :Go discussion")
	assert.Equal(t, "Go discussion", ch.Topic)

	h.feed(t, ":bob!b@host TOPIC #go :Go 1.24 is out")
	assert.Equal(t, "Go 1.24 is out", ch.Topic)
}

func TestNames(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t)

	h.feed(t, ":irc.libera.chat 353 alice = #go :@alice ~@founder +bob carol")
	assert.Equal(t, 4, ch.MemberCount())
	assert.Equal(t, "@", ch.Status(h.userID(t, "alice")))
	assert.Equal(t, "~@", ch.Status(h.userID(t, "founder")))
	assert.Equal(t, "+", ch.Status(h.userID(t, "bob")))
	assert.Equal(t, "", ch.Status(h.userID(t, "carol")))
}

func TestMode(t *testing.T) {
	h := newHarness(t)
	ch := h.joined(t, "bob", "carol")
	bob, carol := h.userID(t, "bob"), h.userID(t, "carol")

	h.feed(t, ":op!o@host MODE #go +ov bob carol")
	assert.Equal(t, "@", ch.Status(bob))
	assert.Equal(t, "+", ch.Status(carol))

	// Ban and limit parameters are skipped, not mistaken for nicks
	h.feed(t, ":op!o@host MODE #go +bl-o+v *!*@spam 10 bob bob")
	assert.Equal(t, "+", ch.Status(bob))

	h.feed(t, ":op!o@host MODE #go -v carol")
	assert.Equal(t, "", ch.Status(carol))

	// User modes are not channel state
	h.feed(t, ":alice MODE alice +i")
}

func TestMalformed(t *testing.T) {
	h := newHarness(t)
	h.joined(t)

	err := h.ing.HandleLine(":bob!b@host PRIVMSG #go")
	assert.True(t, errors.Is(err, ErrMalformed))

	err = h.ing.HandleLine(":op!o@host MODE #go +o")
	assert.True(t, errors.Is(err, ErrMalformed))

	assert.Error(t, h.ing.HandleLine(""))
}

func TestNumericsIgnored(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.ing.HandleLine(":irc.libera.chat 372 alice :- Message of the day"))
}

func TestUnknownServer(t *testing.T) {
	ing := New(session.New(nil), "missing", nil)
	err := ing.HandleLine("PING :x")
	assert.ErrorIs(t, err, session.ErrServerNotFound)
}
