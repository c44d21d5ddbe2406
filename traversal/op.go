package traversal

import "fmt"

// OpCode identifies a micro-operation of a traversal.
type OpCode int

// The micro-operations a traversal is made of.
const (
	// OpLoad follows one link: Dst = *(Src + Offset).
	OpLoad OpCode = iota

	// OpFence keeps later loads from issuing before earlier ones retire.
	OpFence

	// OpSerialize drains the whole pipeline.
	OpSerialize

	// OpTimerStart takes the start timestamp.
	OpTimerStart

	// OpTimerStop takes the stop timestamp and stores the elapsed time in
	// Dst.
	OpTimerStop
)

func (c OpCode) String() string {
	switch c {
	case OpLoad:
		return "load"
	case OpFence:
		return "fence"
	case OpSerialize:
		return "serialize"
	case OpTimerStart:
		return "timer-start"
	case OpTimerStop:
		return "timer-stop"
	default:
		return fmt.Sprintf("OpCode(%d)", int(c))
	}
}

// IsInline tells whether the op belongs inside the assembly block. The
// other ops are calls to the collaborating timing primitives.
func (c OpCode) IsInline() bool {
	return c == OpLoad || c == OpFence
}

// OperandKind classifies operands.
type OperandKind int

// The operand kinds.
const (
	// Scratch is a temporary register, numbered by Index.
	Scratch OperandKind = iota

	// Input is a node pointer passed into the assembly block.
	Input

	// Output is a node pointer produced by the assembly block.
	Output

	// Field is a field of the node held by Var.
	Field
)

// An Operand is a source or destination of an op.
type Operand struct {
	Kind  OperandKind
	Index int

	// Name is the symbolic assembly name of inputs and outputs, or the
	// field name of Field operands.
	Name string

	// Var is the C variable bound to the operand.
	Var string
}

func (o Operand) String() string {
	switch o.Kind {
	case Scratch:
		return fmt.Sprintf("s%d", o.Index)
	case Field:
		return o.Var + "->" + o.Name
	default:
		return "[" + o.Name + "]"
	}
}

// The operands shared by all traversals.
var (
	ScratchA = Operand{Kind: Scratch, Index: 0}
	ScratchB = Operand{Kind: Scratch, Index: 1}

	CurrIn      = Operand{Kind: Input, Name: "curr_cl", Var: ParamName}
	CurrOut     = Operand{Kind: Output, Name: "curr_cl_out", Var: ParamName}
	NextOut     = Operand{Kind: Output, Name: "next_cl_out", Var: "next_cl"}
	Measurement = Operand{Kind: Field, Name: "time_msrmt", Var: ParamName}
)

// ParamName is the name of the node parameter of every routine.
const ParamName = "curr_cl"

// NoBlock marks ops of the prologue and the epilogue.
const NoBlock = -1

// An Op is one micro-operation.
type Op struct {
	Code   OpCode
	Offset int64
	Src    Operand
	Dst    Operand

	// Block is the index of the repeated two-hop block the op belongs to,
	// or NoBlock.
	Block int
}

func (o Op) String() string {
	switch o.Code {
	case OpLoad:
		return fmt.Sprintf("load %s <- %#x(%s)", o.Dst, o.Offset, o.Src)
	case OpTimerStop:
		return fmt.Sprintf("timer-stop %s", o.Dst)
	default:
		return o.Code.String()
	}
}

// Result is the value a routine returns: Var, or Var->Field when Field is
// set.
type Result struct {
	Var   string
	Field string
}

func (r Result) String() string {
	if r.Field == "" {
		return r.Var
	}

	return r.Var + "->" + r.Field
}
