package commands

import (
	"errors"
	"testing"

	"github.com/matt0x6f/cascade-core/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(prefix string) Handler {
	return HandlerFunc(func(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
		return Response{Success: true, Message: prefix, Data: args}, nil
	})
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "/Join", Aliases: []string{"J"}, Handler: echoHandler("join")}))

	cmd := r.Get("join")
	require.NotNil(t, cmd)
	assert.Equal(t, "join", cmd.Name)
	assert.Equal(t, []string{"j"}, cmd.Aliases)
	assert.Same(t, cmd, r.Get("/J"))
	assert.Same(t, cmd, r.Get("JOIN"))
	assert.Nil(t, r.Get("part"))
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "join", Aliases: []string{"j"}, Handler: echoHandler("join")}))

	tests := []struct {
		name string
		cmd  *Command
		dup  string
	}{
		{"same name", &Command{Name: "join", Handler: echoHandler("x")}, "join"},
		{"case and slash", &Command{Name: "/JOIN", Handler: echoHandler("x")}, "join"},
		{"name clashes with alias", &Command{Name: "j", Handler: echoHandler("x")}, "j"},
		{"alias clashes with name", &Command{Name: "jump", Aliases: []string{"join"}, Handler: echoHandler("x")}, "join"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.cmd)
			var dup *DuplicateCommandError
			require.True(t, errors.As(err, &dup), "got %v", err)
			assert.Equal(t, tt.dup, dup.Name)
		})
	}

	// A failed registration leaves nothing behind
	assert.Nil(t, r.Get("jump"))
	assert.Len(t, r.All(), 1)
}

func TestRegister_Invalid(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&Command{Name: "nohandler"}))
	assert.Error(t, r.Register(&Command{Name: "  ", Handler: echoHandler("x")}))
	assert.Error(t, r.Register(nil))
}

func TestDispatch_Success(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Command{Name: "echo", Handler: echoHandler("echoed")})

	resp, err := r.Dispatch("ECHO", []string{"a", "b"}, nil, nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "echoed", resp.Message)
	assert.Equal(t, []string{"a", "b"}, resp.Data)
	assert.NoError(t, resp.Err)
}

func TestDispatch_Unknown(t *testing.T) {
	r := NewRegistry()
	resp, err := r.Dispatch("/nope", nil, nil, nil)

	var unknown *UnknownCommandError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nope", unknown.Name)
	assert.False(t, resp.Success)
	assert.Same(t, unknown, resp.Err)
}

func TestDispatch_HandlerError(t *testing.T) {
	cause := errors.New("socket closed")
	r := NewRegistry()
	r.MustRegister(&Command{Name: "fail", Handler: HandlerFunc(func([]string, *session.Channel, *session.Server) (Response, error) {
		return Response{Success: true}, cause
	})})

	resp, err := r.Dispatch("fail", nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)

	var execErr *HandlerExecutionError
	require.True(t, errors.As(resp.Err, &execErr))
	assert.Equal(t, "fail", execErr.Command)
	assert.ErrorIs(t, resp.Err, cause)
}

func TestDispatch_HandlerPanic(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Command{Name: "boom", Handler: HandlerFunc(func([]string, *session.Channel, *session.Server) (Response, error) {
		panic("nil map")
	})})

	var (
		resp Response
		err  error
	)
	require.NotPanics(t, func() {
		resp, err = r.Dispatch("boom", nil, nil, nil)
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	var execErr *HandlerExecutionError
	require.True(t, errors.As(resp.Err, &execErr))
	assert.Contains(t, execErr.Error(), "nil map")
}

func TestDispatch_PartialMutationIsKept(t *testing.T) {
	s := session.New(nil)
	srv, err := s.Connect(session.ServerConfig{Host: "irc.libera.chat", Nickname: "alice"})
	require.NoError(t, err)

	r := NewRegistry()
	r.MustRegister(&Command{Name: "half", Handler: HandlerFunc(func(_ []string, _ *session.Channel, srv *session.Server) (Response, error) {
		if _, err := s.AddChannel(srv.ID, "#first", false); err != nil {
			return Response{}, err
		}
		return Response{}, errors.New("second step failed")
	})})

	resp, err := r.Dispatch("half", nil, nil, srv)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotNil(t, srv.Channel("#first"))
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Command{Name: "echo", Handler: echoHandler("echoed")})

	resp, err := r.Execute("  /echo one two ", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, resp.Data)

	_, err = r.Execute("hello", nil, nil)
	assert.Error(t, err)
}

func TestAllAndByCategory(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Command{Name: "zeta", Category: "B", Handler: echoHandler("z")})
	r.MustRegister(&Command{Name: "alpha", Category: "A", Handler: echoHandler("a")})
	r.MustRegister(&Command{Name: "mid", Handler: echoHandler("m")})

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "mid", all[1].Name)
	assert.Equal(t, "zeta", all[2].Name)

	groups := r.ByCategory()
	assert.Len(t, groups["A"], 1)
	assert.Len(t, groups["B"], 1)
	assert.Len(t, groups["General"], 1)
}
