package core

import "sync"

// CommandHandler decodes its own arguments from the front of *data.
type CommandHandler func(data *[]byte) error

// Command is a registered command (host to MCU) or response (MCU to host).
// Responses have a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "clock=%u"
	Handler CommandHandler
}

// CommandRegistry assigns sequential IDs to commands in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	byName   map[string]*Command
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{byName: make(map[string]*Command)}
}

// Register adds a command and returns its ID. Registering a name twice
// returns the existing ID.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd, ok := r.byName[name]; ok {
		return cmd.ID
	}

	cmd := &Command{
		ID:      uint16(len(r.commands)),
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.commands = append(r.commands, cmd)
	r.byName[name] = cmd
	return cmd.ID
}

// RegisterResponse adds an MCU to host message.
func (r *CommandRegistry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

// Lookup finds a command by name.
func (r *CommandRegistry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	return cmd, ok
}

// Count returns the number of registered commands and responses.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler registered under cmdID.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	r.mu.RLock()
	var cmd *Command
	if int(cmdID) < len(r.commands) {
		cmd = r.commands[cmdID]
	}
	r.mu.RUnlock()

	if cmd == nil {
		return Error("unknown command ID: " + utoa(uint32(cmdID)))
	}
	if cmd.Handler == nil {
		return Error("not a command: " + cmd.Name)
	}
	return cmd.Handler(data)
}

// each calls fn for every command in ID order.
func (r *CommandRegistry) each(fn func(*Command)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cmd := range r.commands {
		fn(cmd)
	}
}

// Signature returns "name format" as used for dictionary keys.
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}
