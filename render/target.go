// Package render turns traversal programs into C routines with inline
// assembly for a target machine.
package render

import (
	"fmt"

	"github.com/sarchlab/asmgen/traversal"
)

// DefaultNodeType is the C type of the linked cache nodes.
const DefaultNodeType = "cacheline"

// A Target renders programs in the syntax of one machine.
type Target interface {
	// Name returns the machine name.
	Name() string

	// Routine renders a program as one complete static inline C function.
	Routine(p traversal.Program) (string, error)
}

// NewTarget returns the target for a machine name as reported by uname.
func NewTarget(machine string) (Target, error) {
	switch machine {
	case "x86_64", "amd64":
		return NewX86_64(), nil
	default:
		return nil, fmt.Errorf("unsupported machine: %s", machine)
	}
}

// Routines renders all programs in order.
func Routines(t Target, programs []traversal.Program) ([]string, error) {
	routines := make([]string, 0, len(programs))
	for _, p := range programs {
		r, err := t.Routine(p)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", p.Name, err)
		}

		routines = append(routines, r)
	}

	return routines, nil
}

// segment is a run of ops that are either all inline assembly or all
// calls to the timing primitives.
type segment struct {
	inline bool
	ops    []traversal.Op
}

func split(ops []traversal.Op) []segment {
	var segments []segment

	for _, op := range ops {
		inline := op.Code.IsInline()
		n := len(segments)
		if n == 0 || segments[n-1].inline != inline {
			segments = append(segments, segment{inline: inline})
			n++
		}

		segments[n-1].ops = append(segments[n-1].ops, op)
	}

	return segments
}
