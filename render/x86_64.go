package render

import (
	"fmt"
	"strings"

	"github.com/sarchlab/asmgen/traversal"
)

const indent = "    "

// X86_64 emits GCC extended inline assembly in AT&T syntax.
type X86_64 struct {
	NodeType string

	// Scratch holds the register names of the scratch operands, by index.
	Scratch []string

	StartTimer string
	StopTimer  string
	Serialize  string
}

// NewX86_64 creates the x86-64 target with the register assignment and
// primitive names of the attack library.
func NewX86_64() *X86_64 {
	return &X86_64{
		NodeType:   DefaultNodeType,
		Scratch:    []string{"rax", "rcx"},
		StartTimer: "start_timer",
		StopTimer:  "stop_timer",
		Serialize:  "cpuid",
	}
}

// Name returns x86_64.
func (t *X86_64) Name() string {
	return "x86_64"
}

// Routine renders p.
func (t *X86_64) Routine(p traversal.Program) (string, error) {
	var b strings.Builder

	b.WriteString("\n")
	t.writeComment(&b, p)
	fmt.Fprintf(&b, "static inline %s *%s(%s *%s) {\n",
		t.NodeType, p.Name, t.NodeType, traversal.ParamName)

	t.writeLocals(&b, p)

	for _, seg := range split(p.Ops) {
		var err error
		if seg.inline {
			err = t.writeAsm(&b, seg.ops)
		} else {
			err = t.writeCalls(&b, seg.ops)
		}

		if err != nil {
			return "", err
		}
	}

	fmt.Fprintf(&b, "\n%sreturn %s;\n}\n", indent, p.Result)

	return b.String(), nil
}

func (t *X86_64) writeComment(b *strings.Builder, p traversal.Program) {
	g := p.Geometry

	switch p.Kind {
	case traversal.Probe:
		b.WriteString("// Traverse cache sets in reverse order for minimal cache impact\n")
	case traversal.Prime:
		b.WriteString("// Fill every cache line in list order, one fence per hop pair\n")
	}

	fmt.Fprintf(b, "// %s: %d sets x %d ways, %d unrolled blocks\n",
		g.Level, g.Sets, g.Associativity, p.Unroll)
}

func (t *X86_64) writeLocals(b *strings.Builder, p traversal.Program) {
	declared := false
	for _, o := range p.Outputs() {
		if o.Var == traversal.ParamName {
			continue
		}

		fmt.Fprintf(b, "%s%s *%s;\n", indent, t.NodeType, o.Var)
		declared = true
	}

	if declared {
		b.WriteString("\n")
	}
}

func (t *X86_64) writeCalls(b *strings.Builder, ops []traversal.Op) error {
	for _, op := range ops {
		switch op.Code {
		case traversal.OpTimerStart:
			fmt.Fprintf(b, "%s%s();\n", indent, t.StartTimer)
		case traversal.OpTimerStop:
			if op.Dst.Kind != traversal.Field {
				return fmt.Errorf("timer result must be a node field, got %s", op.Dst)
			}

			fmt.Fprintf(b, "%s%s(&(%s->%s));\n",
				indent, t.StopTimer, op.Dst.Var, op.Dst.Name)
		case traversal.OpSerialize:
			fmt.Fprintf(b, "%s%s();\n", indent, t.Serialize)
		default:
			return fmt.Errorf("op %s cannot be called", op.Code)
		}
	}

	return nil
}

func (t *X86_64) writeAsm(b *strings.Builder, ops []traversal.Op) error {
	fmt.Fprintf(b, "%sasm volatile(\n", indent)

	for _, op := range ops {
		line, err := t.instruction(op)
		if err != nil {
			return err
		}

		fmt.Fprintf(b, "%s%s\"%s \\n\\t\"\n", indent, indent, line)
	}

	seg := traversal.Program{Ops: ops}

	outputs := make([]string, 0, 2)
	for _, o := range seg.Outputs() {
		outputs = append(outputs, fmt.Sprintf("[%s] \"=r\" (%s)", o.Name, o.Var))
	}

	inputs := make([]string, 0, 1)
	for _, o := range seg.Inputs() {
		inputs = append(inputs, fmt.Sprintf("[%s] \"r\" (%s)", o.Name, o.Var))
	}

	clobbers := make([]string, 0, len(t.Scratch))
	for _, o := range seg.Scratches() {
		reg, err := t.register(o)
		if err != nil {
			return err
		}

		clobbers = append(clobbers, fmt.Sprintf("\"%%%s\"", reg))
	}

	fmt.Fprintf(b, "%s%s: %s\n", indent, indent, strings.Join(outputs, ", "))
	fmt.Fprintf(b, "%s%s: %s\n", indent, indent, strings.Join(inputs, ", "))
	fmt.Fprintf(b, "%s%s: %s\n", indent, indent, strings.Join(clobbers, ", "))
	fmt.Fprintf(b, "%s);\n", indent)

	return nil
}

func (t *X86_64) instruction(op traversal.Op) (string, error) {
	switch op.Code {
	case traversal.OpLoad:
		src, err := t.operand(op.Src)
		if err != nil {
			return "", err
		}

		dst, err := t.operand(op.Dst)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("mov %#x(%s), %s", op.Offset, src, dst), nil
	case traversal.OpFence:
		return "lfence", nil
	default:
		return "", fmt.Errorf("op %s cannot be inlined", op.Code)
	}
}

func (t *X86_64) operand(o traversal.Operand) (string, error) {
	switch o.Kind {
	case traversal.Scratch:
		reg, err := t.register(o)
		if err != nil {
			return "", err
		}

		return "%%" + reg, nil
	case traversal.Input, traversal.Output:
		return "%[" + o.Name + "]", nil
	default:
		return "", fmt.Errorf("operand %s cannot be used in assembly", o)
	}
}

func (t *X86_64) register(o traversal.Operand) (string, error) {
	if o.Index < 0 || o.Index >= len(t.Scratch) {
		return "", fmt.Errorf("no register for scratch operand %s", o)
	}

	return t.Scratch[o.Index], nil
}
