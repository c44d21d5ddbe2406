package traversal_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/asmgen/geometry"
	"github.com/sarchlab/asmgen/traversal"
)

func makeGeometry(sets, ways int) geometry.Geometry {
	return geometry.Geometry{
		Level:         "L1",
		Sets:          sets,
		Associativity: ways,
		LineSize:      64,
		Offsets:       geometry.NodeOffsets{Prev: 0x10, Next: 0x18},
	}
}

var _ = Describe("Spec", func() {
	It("should count ways for probe and lines for prime", func() {
		g := makeGeometry(64, 8)

		probe := traversal.Spec{Kind: traversal.Probe, Geometry: g}
		prime := traversal.Spec{Kind: traversal.Prime, Geometry: g}

		Expect(probe.NodesToVisit()).To(Equal(8))
		Expect(prime.NodesToVisit()).To(Equal(512))
		Expect(probe.UnrollCount()).To(Equal(2))
		Expect(prime.UnrollCount()).To(Equal(254))
	})

	It("should refuse node counts it cannot unroll", func() {
		for _, ways := range []int{0, 2, 3, 5} {
			s := traversal.Spec{Kind: traversal.Probe, Geometry: makeGeometry(1, ways)}

			_, err := s.UnrollCount()

			var unrollErr *traversal.UnrollError
			Expect(errors.As(err, &unrollErr)).To(BeTrue())
			Expect(unrollErr.Nodes).To(Equal(ways))
		}
	})
})

var _ = Describe("RoutineName", func() {
	It("should derive names from the lower-case level", func() {
		Expect(traversal.RoutineName("L1", traversal.Probe)).
			To(Equal("asm_l1_probe_cacheset"))
		Expect(traversal.RoutineName("L2", traversal.Prime)).
			To(Equal("asm_l2_prime"))
	})
})

var _ = Describe("BuildProbe", func() {
	It("should unroll exactly (ways-4)/2 blocks for every valid associativity", func() {
		for ways := 4; ways <= 64; ways += 2 {
			for _, sets := range []int{1, 3, 64, 512} {
				p, err := traversal.BuildProbe(makeGeometry(sets, ways))

				Expect(err).NotTo(HaveOccurred())
				Expect(p.Unroll).To(Equal((ways - 4) / 2))
				Expect(p.RepeatedBlocks()).To(Equal((ways - 4) / 2))
				Expect(p.Loads()).To(Equal(ways))
			}
		}
	})

	It("should follow prev links only", func() {
		p, err := traversal.BuildProbe(makeGeometry(64, 8))
		Expect(err).NotTo(HaveOccurred())

		for _, op := range p.Ops {
			if op.Code == traversal.OpLoad {
				Expect(op.Offset).To(Equal(int64(0x10)))
			}
		}
	})

	It("should bracket the walk with the timer", func() {
		p, err := traversal.BuildProbe(makeGeometry(64, 8))
		Expect(err).NotTo(HaveOccurred())

		Expect(p.Ops[0].Code).To(Equal(traversal.OpTimerStart))
		last := p.Ops[len(p.Ops)-1]
		Expect(last.Code).To(Equal(traversal.OpTimerStop))
		Expect(last.Dst).To(Equal(traversal.Measurement))
		Expect(p.Count(traversal.OpFence)).To(Equal(0))
		Expect(p.Count(traversal.OpSerialize)).To(Equal(0))
	})

	It("should chain every load from the previous destination", func() {
		p, err := traversal.BuildProbe(makeGeometry(64, 12))
		Expect(err).NotTo(HaveOccurred())

		loads := loadsOf(p)
		Expect(loads[0].Src).To(Equal(traversal.CurrIn))
		for i := 1; i < len(loads); i++ {
			Expect(loads[i].Src).To(Equal(loads[i-1].Dst))
		}
		Expect(loads[len(loads)-2].Dst).To(Equal(traversal.CurrOut))
		Expect(loads[len(loads)-1].Dst).To(Equal(traversal.NextOut))
	})

	It("should return the next node", func() {
		p, err := traversal.BuildProbe(makeGeometry(64, 8))
		Expect(err).NotTo(HaveOccurred())

		Expect(p.Result.String()).To(Equal("next_cl"))
		Expect(p.Name).To(Equal("asm_l1_probe_cacheset"))
		Expect(p.Outputs()).To(Equal([]traversal.Operand{
			traversal.CurrOut, traversal.NextOut,
		}))
		Expect(p.Inputs()).To(Equal([]traversal.Operand{traversal.CurrIn}))
	})

	It("should emit a complete program at the minimum associativity", func() {
		p, err := traversal.BuildProbe(makeGeometry(64, 4))

		Expect(err).NotTo(HaveOccurred())
		Expect(p.Unroll).To(Equal(0))
		Expect(p.RepeatedBlocks()).To(Equal(0))
		Expect(p.Loads()).To(Equal(4))
		Expect(p.Ops).To(HaveLen(6))
	})

	It("should reject an odd associativity", func() {
		_, err := traversal.BuildProbe(makeGeometry(64, 3))

		var invalid *geometry.ValidationError
		Expect(errors.As(err, &invalid)).To(BeTrue())
	})
})

var _ = Describe("BuildPrime", func() {
	It("should unroll exactly (sets*ways-4)/2 blocks", func() {
		for ways := 4; ways <= 64; ways += 2 {
			for _, sets := range []int{1, 2, 7, 64} {
				p, err := traversal.BuildPrime(makeGeometry(sets, ways))

				Expect(err).NotTo(HaveOccurred())
				Expect(p.Unroll).To(Equal((sets*ways - 4) / 2))
				Expect(p.RepeatedBlocks()).To(Equal(p.Unroll))
				Expect(p.Loads()).To(Equal(sets * ways))
			}
		}
	})

	It("should fence every hop pair and serialize around the walk", func() {
		p, err := traversal.BuildPrime(makeGeometry(64, 8))
		Expect(err).NotTo(HaveOccurred())

		Expect(p.Count(traversal.OpFence)).To(Equal(512 / 2))
		Expect(p.Count(traversal.OpSerialize)).To(Equal(2))
		Expect(p.Ops[0].Code).To(Equal(traversal.OpSerialize))
		Expect(p.Ops[len(p.Ops)-1].Code).To(Equal(traversal.OpSerialize))
		Expect(p.Count(traversal.OpTimerStart)).To(Equal(0))
	})

	It("should follow next links and return the node before the start", func() {
		p, err := traversal.BuildPrime(makeGeometry(2, 4))
		Expect(err).NotTo(HaveOccurred())

		for _, op := range loadsOf(p) {
			Expect(op.Offset).To(Equal(int64(0x18)))
		}
		Expect(p.Result.String()).To(Equal("curr_cl->prev"))
		Expect(p.Name).To(Equal("asm_l1_prime"))
		Expect(p.Outputs()).To(Equal([]traversal.Operand{traversal.CurrOut}))
	})
})

var _ = Describe("BuildAll", func() {
	It("should build probe then prime", func() {
		programs, err := traversal.BuildAll(makeGeometry(8, 4))

		Expect(err).NotTo(HaveOccurred())
		Expect(programs).To(HaveLen(2))
		Expect(programs[0].Kind).To(Equal(traversal.Probe))
		Expect(programs[1].Kind).To(Equal(traversal.Prime))
	})

	It("should be deterministic", func() {
		a, err := traversal.BuildAll(makeGeometry(16, 10))
		Expect(err).NotTo(HaveOccurred())
		b, err := traversal.BuildAll(makeGeometry(16, 10))
		Expect(err).NotTo(HaveOccurred())

		Expect(a).To(Equal(b))
	})
})

func loadsOf(p traversal.Program) []traversal.Op {
	var loads []traversal.Op
	for _, op := range p.Ops {
		if op.Code == traversal.OpLoad {
			loads = append(loads, op)
		}
	}

	return loads
}
