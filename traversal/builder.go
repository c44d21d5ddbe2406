package traversal

import "github.com/sarchlab/asmgen/geometry"

// sequence appends ops and tracks the block currently being emitted.
type sequence struct {
	ops   []Op
	block int
}

func newSequence(capacity int) *sequence {
	return &sequence{
		ops:   make([]Op, 0, capacity),
		block: NoBlock,
	}
}

func (s *sequence) load(offset int64, src, dst Operand) {
	s.ops = append(s.ops, Op{
		Code:   OpLoad,
		Offset: offset,
		Src:    src,
		Dst:    dst,
		Block:  s.block,
	})
}

func (s *sequence) emit(code OpCode) {
	s.ops = append(s.ops, Op{Code: code, Block: s.block})
}

func (s *sequence) timerStop(dst Operand) {
	s.ops = append(s.ops, Op{Code: OpTimerStop, Dst: dst, Block: s.block})
}

// repeat emits n blocks with body, numbering them from zero.
func (s *sequence) repeat(n int, body func()) {
	for i := 0; i < n; i++ {
		s.block = i
		body()
	}

	s.block = NoBlock
}

// BuildProbe builds the timed backwards walk over one set. The walk starts
// at the given node, follows the prev links through all ways and stores the
// elapsed time in the measurement field of the last node of the set. The
// routine returns the node after it, which is the first node of the next
// set to probe.
func BuildProbe(g geometry.Geometry) (Program, error) {
	p, err := newProgram(Probe, g)
	if err != nil {
		return Program{}, err
	}

	off := g.Offsets.Prev
	s := newSequence(g.Associativity + 2)

	s.emit(OpTimerStart)
	s.load(off, CurrIn, ScratchA)
	s.load(off, ScratchA, ScratchB)
	s.repeat(p.Unroll, func() {
		s.load(off, ScratchB, ScratchA)
		s.load(off, ScratchA, ScratchB)
	})
	s.load(off, ScratchB, CurrOut)
	s.load(off, CurrOut, NextOut)
	s.timerStop(Measurement)

	p.Ops = s.ops
	p.Result = Result{Var: NextOut.Var}

	return p, nil
}

// BuildPrime builds the untimed forwards walk over every line of the cache.
// A fence sits between the two hops of every pair and the whole walk is
// bracketed by full serialization. The routine returns the node before the
// starting node, the entry point of the next prime.
func BuildPrime(g geometry.Geometry) (Program, error) {
	p, err := newProgram(Prime, g)
	if err != nil {
		return Program{}, err
	}

	off := g.Offsets.Next
	s := newSequence(3*g.Lines()/2 + 2)

	s.emit(OpSerialize)
	s.load(off, CurrIn, ScratchA)
	s.emit(OpFence)
	s.load(off, ScratchA, ScratchB)
	s.repeat(p.Unroll, func() {
		s.load(off, ScratchB, ScratchA)
		s.emit(OpFence)
		s.load(off, ScratchA, ScratchB)
	})
	s.load(off, ScratchB, ScratchA)
	s.emit(OpFence)
	s.load(off, ScratchA, CurrOut)
	s.emit(OpSerialize)

	p.Ops = s.ops
	p.Result = Result{Var: CurrOut.Var, Field: "prev"}

	return p, nil
}
