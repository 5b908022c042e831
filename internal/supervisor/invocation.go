package supervisor

import (
	"path/filepath"

	"github.com/iambrandonn/loggy/internal/config"
)

// ProgramName is the name loggy answers to when invoked directly.
const ProgramName = "loggy"

// Mode is how loggy was invoked.
type Mode int

const (
	// ModeDirect is "loggy <command> [args...]".
	ModeDirect Mode = iota
	// ModeAliased is loggy installed under the wrapped program's name. The
	// pattern file only applies in this mode.
	ModeAliased
	// ModePassthrough is "loggy" with no arguments: log standard input.
	ModePassthrough
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeAliased:
		return "aliased"
	case ModePassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// Invocation is one command to run.
type Invocation struct {
	Mode Mode
	// Args is the wrapped command line; Args[0] is the program as named by
	// the user. In passthrough mode it is just ProgramName.
	Args []string
	Env  config.Env
}

// ParseInvocation derives the invocation from loggy's own argv.
func ParseInvocation(argv []string, env config.Env) Invocation {
	if len(argv) == 0 || filepath.Base(argv[0]) != ProgramName {
		return Invocation{Mode: ModeAliased, Args: argv, Env: env}
	}
	if len(argv) == 1 {
		return Invocation{Mode: ModePassthrough, Args: []string{ProgramName}, Env: env}
	}
	return Invocation{Mode: ModeDirect, Args: argv[1:], Env: env}
}
