// Package commands provides the slash command registry and the built-in
// IRC commands that operate on the session model.
package commands

import (
	"fmt"

	"github.com/matt0x6f/cascade-core/internal/session"
)

// Command describes a named slash command.
type Command struct {
	// Name is the primary command name without the leading slash (e.g. "join")
	Name string

	// Aliases are alternative names (e.g. "j")
	Aliases []string

	// Description is shown in /help
	Description string

	// Usage shows argument syntax (e.g. "/join #channel [key]")
	Usage string

	// Category groups commands in /help
	Category string

	// Handler executes the command
	Handler Handler
}

// Handler executes a command against a target channel and server.
// ch is nil when the command runs from a server status window.
//
// A handler may mutate the session. The registry does not roll back on
// failure, so handlers must leave the model consistent when they return an
// error or panic part-way.
type Handler interface {
	Handle(args []string, ch *session.Channel, srv *session.Server) (Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(args []string, ch *session.Channel, srv *session.Server) (Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(args []string, ch *session.Channel, srv *session.Server) (Response, error) {
	return f(args, ch, srv)
}

// Response reports the outcome of a dispatched command.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`

	// Err carries the typed failure when Success is false
	Err error `json:"-"`
}

// OK builds a successful response.
func OK(message string) Response {
	return Response{Success: true, Message: message}
}

// Fail builds a failed response for a recoverable, user-facing problem.
func Fail(format string, args ...any) Response {
	return Response{Success: false, Message: fmt.Sprintf(format, args...)}
}

// DuplicateCommandError is returned when a name or alias is registered twice.
type DuplicateCommandError struct {
	Name string
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("command already registered: /%s", e.Name)
}

// UnknownCommandError is returned when dispatching a name nobody registered.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: /%s", e.Name)
}

// HandlerExecutionError wraps an error returned or a panic raised by a handler.
type HandlerExecutionError struct {
	Command string
	Cause   error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("/%s failed: %v", e.Command, e.Cause)
}

func (e *HandlerExecutionError) Unwrap() error {
	return e.Cause
}
