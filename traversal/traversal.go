// Package traversal builds the unrolled pointer-chasing sequences that prime
// and probe cache sets.
//
// A traversal is a Program: a flat list of typed micro-operations. The
// number of loads is fixed by the cache geometry, so the list can be checked
// without rendering it to any assembly syntax.
package traversal

import (
	"fmt"
	"strings"

	"github.com/sarchlab/asmgen/geometry"
)

// Kind selects the traversal.
type Kind int

// The traversal kinds.
const (
	// Probe visits every way of one set backwards through the prev links
	// and times the walk.
	Probe Kind = iota

	// Prime visits every line of the cache forwards through the next
	// links.
	Prime
)

// Kinds lists the kinds in emission order.
var Kinds = []Kind{Probe, Prime}

func (k Kind) String() string {
	switch k {
	case Probe:
		return "probe"
	case Prime:
		return "prime"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// edgeNodes is the number of nodes covered by the prologue and the epilogue
// together.
const edgeNodes = 4

// hopsPerBlock is the number of loads in a repeated block.
const hopsPerBlock = 2

// Spec pairs a traversal kind with a geometry.
type Spec struct {
	Kind     Kind
	Geometry geometry.Geometry
}

// NodesToVisit returns the number of loads the traversal performs.
func (s Spec) NodesToVisit() int {
	if s.Kind == Prime {
		return s.Geometry.Sets * s.Geometry.Associativity
	}

	return s.Geometry.Associativity
}

// UnrollCount returns the number of repeated two-hop blocks.
func (s Spec) UnrollCount() (int, error) {
	rest := s.NodesToVisit() - edgeNodes
	if rest < 0 || rest%hopsPerBlock != 0 {
		return 0, &UnrollError{
			Level: s.Geometry.Level,
			Kind:  s.Kind,
			Nodes: s.NodesToVisit(),
		}
	}

	return rest / hopsPerBlock, nil
}

// UnrollError reports a node count that the fixed prologue and epilogue
// cannot bridge with whole two-hop blocks.
type UnrollError struct {
	Level string
	Kind  Kind
	Nodes int
}

func (e *UnrollError) Error() string {
	return fmt.Sprintf(
		"%s %s: cannot unroll %d nodes, need at least %d and an even count",
		e.Level, e.Kind, e.Nodes, edgeNodes)
}

// RoutineName returns the C name of a routine.
func RoutineName(level string, kind Kind) string {
	level = strings.ToLower(level)
	if kind == Prime {
		return "asm_" + level + "_prime"
	}

	return "asm_" + level + "_probe_cacheset"
}

// A Program is the complete op sequence of one routine.
type Program struct {
	Name     string
	Kind     Kind
	Level    string
	Geometry geometry.Geometry
	Unroll   int
	Ops      []Op
	Result   Result
}

// Loads returns the number of load ops.
func (p Program) Loads() int {
	n := 0
	for _, op := range p.Ops {
		if op.Code == OpLoad {
			n++
		}
	}

	return n
}

// Count returns the number of ops with the given code.
func (p Program) Count(code OpCode) int {
	n := 0
	for _, op := range p.Ops {
		if op.Code == code {
			n++
		}
	}

	return n
}

// RepeatedBlocks returns the number of distinct repeated blocks.
func (p Program) RepeatedBlocks() int {
	blocks := 0
	for _, op := range p.Ops {
		if op.Block >= blocks {
			blocks = op.Block + 1
		}
	}

	return blocks
}

// Outputs returns the output operands in order of first appearance.
func (p Program) Outputs() []Operand {
	return p.operands(Output)
}

// Inputs returns the input operands in order of first appearance.
func (p Program) Inputs() []Operand {
	return p.operands(Input)
}

// Scratches returns the scratch operands in order of first appearance.
func (p Program) Scratches() []Operand {
	return p.operands(Scratch)
}

func (p Program) operands(kind OperandKind) []Operand {
	var list []Operand
	seen := make(map[Operand]bool)

	for _, op := range p.Ops {
		if op.Code != OpLoad {
			continue
		}

		for _, o := range []Operand{op.Dst, op.Src} {
			if o.Kind != kind || seen[o] {
				continue
			}

			seen[o] = true
			list = append(list, o)
		}
	}

	return list
}

// Build builds the program of the given kind.
func Build(kind Kind, g geometry.Geometry) (Program, error) {
	switch kind {
	case Probe:
		return BuildProbe(g)
	case Prime:
		return BuildPrime(g)
	default:
		return Program{}, fmt.Errorf("unknown traversal kind %d", int(kind))
	}
}

// BuildAll builds every kind in Kinds order.
func BuildAll(g geometry.Geometry) ([]Program, error) {
	programs := make([]Program, 0, len(Kinds))
	for _, kind := range Kinds {
		p, err := Build(kind, g)
		if err != nil {
			return nil, err
		}

		programs = append(programs, p)
	}

	return programs, nil
}

func newProgram(kind Kind, g geometry.Geometry) (Program, error) {
	if err := g.Validate(); err != nil {
		return Program{}, err
	}

	unroll, err := Spec{Kind: kind, Geometry: g}.UnrollCount()
	if err != nil {
		return Program{}, err
	}

	return Program{
		Name:     RoutineName(g.Level, kind),
		Kind:     kind,
		Level:    g.Level,
		Geometry: g,
		Unroll:   unroll,
	}, nil
}
