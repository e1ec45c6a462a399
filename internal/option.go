package internal

// Command selects what Run does.
type Command string

// Commands.
const (
	CommandParse  Command = "parse"
	CommandRender Command = "render"
	CommandRun    Command = "run"
	CommandAll    Command = "all"
	CommandExport Command = "export"
	CommandMCP    Command = "mcp"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	command Command
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithCommand sets the command to run. The default is CommandAll.
func WithCommand(cmd Command) Option {
	return func(a *application) {
		a.command = cmd
	}
}
