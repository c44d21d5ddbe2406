package generator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/asmgen/config"
	"github.com/sarchlab/asmgen/geometry"
	"github.com/sarchlab/asmgen/macro"
)

const cacheTypes = `#define CL_NEXT_OFFSET 0x18
#define CL_PREV_OFFSET 0x10
`

func deviceConf(l1Ways int) string {
	return fmt.Sprintf(`#define CACHELINE_SIZE 64
#define L1_SETS 64
#define L1_ASSOCIATIVITY %d
#define L2_SETS 512
#define L2_ASSOCIATIVITY 8
`, l1Ways)
}

func testConfig(dir string) config.Config {
	cfg := *config.Default()
	cfg.DeviceConf = filepath.Join(dir, "device_conf.h")
	cfg.CacheTypes = filepath.Join(dir, "cache_types.h")
	cfg.OutputDir = filepath.Join(dir, "gen")

	return cfg
}

func writeInputs(dir, device, types string) {
	Expect(os.WriteFile(filepath.Join(dir, "device_conf.h"), []byte(device), 0o644)).
		To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "cache_types.h"), []byte(types), 0o644)).
		To(Succeed())
}

type hookCounter struct {
	levels []LevelResult
	runs   int
}

func (h *hookCounter) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosLevelDone:
		h.levels = append(h.levels, ctx.Item.(LevelResult))
	case HookPosRunDone:
		h.runs++
	}
}

var _ = Describe("Builder", func() {
	It("should pick the target from the machine", func() {
		cfg := *config.Default()
		cfg.Machine = "sparc"

		_, err := MakeBuilder().WithConfig(cfg).Build()

		Expect(err).To(MatchError(ContainSubstring("sparc")))
	})

	It("should refuse an empty level list", func() {
		cfg := *config.Default()
		cfg.Levels = nil

		_, err := MakeBuilder().WithConfig(cfg).Build()

		Expect(err).To(HaveOccurred())
	})

	It("should normalize levels", func() {
		cfg := *config.Default()
		cfg.Levels = []string{"l1", "l3"}

		g, err := MakeBuilder().WithConfig(cfg).Build()

		Expect(err).NotTo(HaveOccurred())
		Expect(g.Config().Levels).To(Equal([]string{"L1", "L3"}))
		Expect(cfg.Levels).To(Equal([]string{"l1", "l3"}))
	})
})

var _ = Describe("Generator on disk", func() {
	var (
		dir   string
		gen   *Generator
		hooks *hookCounter
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		writeInputs(dir, deviceConf(8), cacheTypes)

		var err error
		gen, err = MakeBuilder().WithConfig(testConfig(dir)).Build()
		Expect(err).NotTo(HaveOccurred())

		hooks = &hookCounter{}
		gen.AcceptHook(hooks)
	})

	It("should write one guarded header per level", func() {
		report, err := gen.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(report.Results).To(HaveLen(2))

		l1 := report.Results[0]
		Expect(l1.Written).To(BeTrue())
		Expect(l1.ProbeUnroll).To(Equal(2))
		Expect(l1.PrimeUnroll).To(Equal((64*8 - 4) / 2))
		Expect(l1.Path).To(Equal(filepath.Join(dir, "gen", "l1_asm.h")))

		data, err := os.ReadFile(l1.Path)
		Expect(err).NotTo(HaveOccurred())
		text := string(data)

		Expect(text).To(HavePrefix("/*\n * This file is generated by asmgen.\n"))
		Expect(text).To(ContainSubstring("#ifndef HEADER_L1_ASM_H\n#define HEADER_L1_ASM_H\n"))
		Expect(text).To(HaveSuffix("#endif // HEADER_L1_ASM_H\n"))
		Expect(text).To(ContainSubstring("static inline cacheline *asm_l1_probe_cacheset(cacheline *curr_cl)"))
		Expect(text).To(ContainSubstring("static inline cacheline *asm_l1_prime(cacheline *curr_cl)"))

		probe := text[:strings.Index(text, "asm_l1_prime")]
		Expect(strings.Count(probe, `"mov 0x10(%%rcx), %%rax \n\t"`)).To(Equal(2))
		Expect(probe).NotTo(ContainSubstring("0x18("))

		_, err = os.Stat(filepath.Join(dir, "gen", "l2_asm.h"))
		Expect(err).NotTo(HaveOccurred())

		Expect(hooks.levels).To(HaveLen(2))
		Expect(hooks.runs).To(Equal(1))
	})

	It("should hand the run report to hooks", func() {
		var got []*RunReport
		gen.AcceptHook(HookFunc(func(ctx HookCtx) {
			Expect(ctx.Generator).To(BeIdenticalTo(gen))
			if ctx.Pos == HookPosRunDone {
				got = append(got, ctx.Item.(*RunReport))
			}
		}))

		report, err := gen.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0]).To(BeIdenticalTo(report))
		Expect(got[0].Mode).To(Equal(ModeWrite))
	})

	It("should reproduce byte-identical files", func() {
		_, err := gen.Run()
		Expect(err).NotTo(HaveOccurred())
		first, err := os.ReadFile(filepath.Join(dir, "gen", "l2_asm.h"))
		Expect(err).NotTo(HaveOccurred())

		report, err := gen.Run()
		Expect(err).NotTo(HaveOccurred())
		second, err := os.ReadFile(filepath.Join(dir, "gen", "l2_asm.h"))
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
		Expect(report.Results[1].Fingerprint).NotTo(BeZero())
	})

	It("should report stale and missing artifacts in check mode", func() {
		report, err := gen.Check()
		Expect(errors.Is(err, ErrStale)).To(BeTrue())
		Expect(report.Failed()).To(HaveLen(2))
		Expect(report.Results[0].Stale).To(BeTrue())

		_, err = os.Stat(filepath.Join(dir, "gen"))
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())

		_, err = gen.Run()
		Expect(err).NotTo(HaveOccurred())

		report, err = gen.Check()
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Failed()).To(BeEmpty())

		Expect(os.WriteFile(filepath.Join(dir, "gen", "l1_asm.h"), []byte("edited"), 0o644)).
			To(Succeed())
		report, err = gen.Check()
		Expect(errors.Is(err, ErrStale)).To(BeTrue())
		Expect(report.Failed()).To(HaveLen(1))
		Expect(report.Failed()[0].Level).To(Equal("L1"))
	})

	It("should plan without writing", func() {
		report, err := gen.Plan()

		Expect(err).NotTo(HaveOccurred())
		Expect(report.Mode).To(Equal(ModePlan))
		Expect(report.Results[1].Geometry.Sets).To(Equal(512))
		Expect(report.Results[1].Written).To(BeFalse())

		_, err = os.Stat(filepath.Join(dir, "gen"))
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
	})

	It("should stop before writing when the device configuration is missing", func() {
		Expect(os.Remove(filepath.Join(dir, "device_conf.h"))).To(Succeed())

		report, err := gen.Run()

		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
		Expect(report.Fatal).To(HaveOccurred())
		Expect(report.Results).To(BeEmpty())
		Expect(hooks.runs).To(Equal(1))
	})
})

var _ = Describe("Generator with a mocked file system", func() {
	var (
		mockCtrl *gomock.Controller
		fsys     *MockFileSystem
		cfg      config.Config
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		fsys = NewMockFileSystem(mockCtrl)
		cfg = testConfig("in")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func() *Generator {
		g, err := MakeBuilder().WithConfig(cfg).WithFileSystem(fsys).Build()
		Expect(err).NotTo(HaveOccurred())

		return g
	}

	expectInputs := func(device, types string) {
		fsys.EXPECT().ReadFile(cfg.CacheTypes).Return([]byte(types), nil).AnyTimes()
		fsys.EXPECT().ReadFile(cfg.DeviceConf).Return([]byte(device), nil).AnyTimes()
	}

	It("should not write a level with an odd associativity", func() {
		expectInputs(deviceConf(3), cacheTypes)
		fsys.EXPECT().MkdirAll(cfg.OutputDir, gomock.Any()).Return(nil)
		fsys.EXPECT().
			WriteFile(filepath.Join(cfg.OutputDir, "l2_asm.h"), gomock.Any(), gomock.Any()).
			Return(nil)

		report, err := build().Run()

		var invalid *geometry.ValidationError
		Expect(errors.As(err, &invalid)).To(BeTrue())
		Expect(invalid.Value).To(Equal(int64(3)))

		var levelErr *LevelError
		Expect(errors.As(report.Results[0].Err, &levelErr)).To(BeTrue())
		Expect(levelErr.Level).To(Equal("L1"))
		Expect(report.Results[1].OK()).To(BeTrue())
	})

	It("should not write anything when a node offset is missing", func() {
		expectInputs(deviceConf(8), "#define CL_NEXT_OFFSET 0x18\n")

		report, err := build().Run()

		var missing *macro.MissingError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(missing.Name).To(Equal("CL_PREV_OFFSET"))
		Expect(report.Results).To(BeEmpty())
	})

	It("should not default a missing associativity", func() {
		expectInputs("#define L1_SETS 64\n#define L1_ASSOCIATIVITY 4\n#define L2_SETS 512\n",
			cacheTypes)
		fsys.EXPECT().MkdirAll(gomock.Any(), gomock.Any()).Return(nil)
		fsys.EXPECT().
			WriteFile(filepath.Join(cfg.OutputDir, "l1_asm.h"), gomock.Any(), gomock.Any()).
			Return(nil)

		report, err := build().Run()

		var missing *macro.MissingError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(missing.Name).To(Equal("L2_ASSOCIATIVITY"))
		Expect(report.Results[0].ProbeUnroll).To(Equal(0))
		Expect(report.Failed()).To(HaveLen(1))
	})

	It("should keep going after a write failure", func() {
		expectInputs(deviceConf(8), cacheTypes)
		fsys.EXPECT().MkdirAll(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		fsys.EXPECT().
			WriteFile(filepath.Join(cfg.OutputDir, "l1_asm.h"), gomock.Any(), gomock.Any()).
			Return(fs.ErrPermission)
		fsys.EXPECT().
			WriteFile(filepath.Join(cfg.OutputDir, "l2_asm.h"), gomock.Any(), gomock.Any()).
			Return(nil)

		report, err := build().Run()

		Expect(errors.Is(err, fs.ErrPermission)).To(BeTrue())
		Expect(report.Results[0].Written).To(BeFalse())
		Expect(report.Results[1].Written).To(BeTrue())
	})
})
