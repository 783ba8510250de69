// Package agents provides the facility agent model: the module
// identity tuple, the capability registry resolving identities to
// agent factories, and the built-in Source, Sink, and Storage
// facility kinds.
package agents

import (
	"fmt"
	"strings"
)

// Ref identifies an agent implementation: the install path of the
// providing library (may be empty for built-ins), the library name,
// the agent name within it, and an alias used when one agent is
// registered under several configurations. Packaging a Ref into
// loadable code is an external loader's concern.
type Ref struct {
	Path  string
	Lib   string
	Agent string
	Alias string
}

// ParseRef parses a "path:lib:agent" spec string. The path segment may
// be empty (":cycle:Source"); a two-segment "lib:agent" form is
// accepted with an empty path. The alias defaults to the agent name.
func ParseRef(s string) (Ref, error) {
	parts := strings.Split(s, ":")
	var ref Ref
	switch len(parts) {
	case 2:
		ref = Ref{Lib: parts[0], Agent: parts[1]}
	case 3:
		ref = Ref{Path: parts[0], Lib: parts[1], Agent: parts[2]}
	default:
		return Ref{}, fmt.Errorf("malformed agent spec %q: want [path]:lib:agent", s)
	}
	if ref.Lib == "" || ref.Agent == "" {
		return Ref{}, fmt.Errorf("malformed agent spec %q: empty lib or agent", s)
	}
	ref.Alias = ref.Agent
	return ref, nil
}

// SpecID returns the registry key for the implementation, independent
// of path and alias.
func (r Ref) SpecID() string {
	return r.Lib + ":" + r.Agent
}

// String reassembles the full spec string.
func (r Ref) String() string {
	return r.Path + ":" + r.Lib + ":" + r.Agent
}
