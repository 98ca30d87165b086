package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/session"
)

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
}

// normalize lower-cases a command name and strips a leading slash.
// Registration and lookup both go through it.
func normalize(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}

func (r *Registry) taken(name string) bool {
	_, isCommand := r.commands[name]
	_, isAlias := r.aliases[name]
	return isCommand || isAlias
}

// Register adds a command. A name or alias that is already in use,
// as a name or an alias, fails with *DuplicateCommandError.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil || cmd.Handler == nil {
		return fmt.Errorf("command must have a handler")
	}
	name := normalize(cmd.Name)
	if name == "" {
		return fmt.Errorf("command name is required")
	}
	if r.taken(name) {
		return &DuplicateCommandError{Name: name}
	}

	aliases := make([]string, 0, len(cmd.Aliases))
	for _, alias := range cmd.Aliases {
		alias = normalize(alias)
		if alias == "" || alias == name {
			continue
		}
		if r.taken(alias) {
			return &DuplicateCommandError{Name: alias}
		}
		aliases = append(aliases, alias)
	}

	cmd.Name = name
	cmd.Aliases = aliases
	r.commands[name] = cmd
	for _, alias := range aliases {
		r.aliases[alias] = cmd
	}
	return nil
}

// MustRegister is Register for commands wired at startup.
func (r *Registry) MustRegister(cmd *Command) {
	if err := r.Register(cmd); err != nil {
		panic(err)
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	name = normalize(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// Dispatch runs the named command against ch and srv.
//
// An unregistered name returns a failed response and *UnknownCommandError
// without touching the session. A handler that returns an error or panics
// yields a failed response whose Err is *HandlerExecutionError; the failure
// does not propagate further.
func (r *Registry) Dispatch(name string, args []string, ch *session.Channel, srv *session.Server) (resp Response, err error) {
	cmd := r.Get(name)
	if cmd == nil {
		unknown := &UnknownCommandError{Name: normalize(name)}
		return Response{Success: false, Message: unknown.Error(), Err: unknown}, unknown
	}

	defer func() {
		if rec := recover(); rec != nil {
			execErr := &HandlerExecutionError{Command: cmd.Name, Cause: fmt.Errorf("panic: %v", rec)}
			logger.Log.Error().Interface("panic", rec).Str("command", cmd.Name).Msg("PANIC in command handler")
			resp = Response{Success: false, Message: execErr.Error(), Err: execErr}
			err = nil
		}
	}()

	resp, handlerErr := cmd.Handler.Handle(args, ch, srv)
	if handlerErr != nil {
		execErr := &HandlerExecutionError{Command: cmd.Name, Cause: handlerErr}
		logger.Log.Warn().Err(handlerErr).Str("command", cmd.Name).Msg("Command handler failed")
		return Response{Success: false, Message: execErr.Error(), Err: execErr}, nil
	}
	return resp, nil
}

// Execute parses a slash command line and dispatches it.
func (r *Registry) Execute(input string, ch *session.Channel, srv *session.Server) (Response, error) {
	inv, ok := Parse(input)
	if !ok {
		return Fail("not a command: %q", input), fmt.Errorf("not a command")
	}
	return r.Dispatch(inv.Name, inv.Args, ch, srv)
}
