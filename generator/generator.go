// Package generator runs the whole pipeline from configuration headers to
// generated traversal headers, one cache level at a time.
package generator

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sarchlab/asmgen/artifact"
	"github.com/sarchlab/asmgen/config"
	"github.com/sarchlab/asmgen/geometry"
	"github.com/sarchlab/asmgen/macro"
	"github.com/sarchlab/asmgen/render"
	"github.com/sarchlab/asmgen/traversal"
)

// Mode selects what a run does with the composed artifacts.
type Mode int

// The run modes.
const (
	// ModeWrite writes every artifact, replacing existing files.
	ModeWrite Mode = iota

	// ModeCheck compares every artifact with the file on disk.
	ModeCheck

	// ModePlan only resolves and composes.
	ModePlan
)

func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeCheck:
		return "check"
	case ModePlan:
		return "plan"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Generator produces one header per configured cache level.
type Generator struct {
	cfg    config.Config
	target render.Target
	layout artifact.Layout
	fs     artifact.FileSystem
	writer artifact.Writer
	log    zerolog.Logger
	hooks  []Hook
}

// Logger returns the logger of the generator.
func (g *Generator) Logger() zerolog.Logger {
	return g.log
}

// Config returns the normalized configuration.
func (g *Generator) Config() config.Config {
	return g.cfg
}

// Run generates and writes every level. Levels fail independently: a
// level that cannot be resolved, validated or rendered is not written and
// the others still are. A failure to read the node offsets or the device
// configuration stops the run before anything is written.
func (g *Generator) Run() (*RunReport, error) {
	return g.run(ModeWrite)
}

// Check generates every level and reports the ones whose file is missing
// or different. Nothing is written.
func (g *Generator) Check() (*RunReport, error) {
	return g.run(ModeCheck)
}

// Plan resolves and composes every level without touching the output
// directory.
func (g *Generator) Plan() (*RunReport, error) {
	return g.run(ModePlan)
}

func (g *Generator) run(mode Mode) (*RunReport, error) {
	report := &RunReport{Mode: mode}

	offsets, device, err := g.loadInputs()
	if err != nil {
		g.log.Error().Err(err).Msg("[generate] cannot read configuration")
		report.Fatal = err
		g.invokeHook(HookPosRunDone, report)

		return report, report.Err()
	}

	for _, level := range g.cfg.Levels {
		res := g.processLevel(mode, level, device, offsets)
		report.Results = append(report.Results, res)

		g.invokeHook(HookPosLevelDone, res)
	}

	g.invokeHook(HookPosRunDone, report)

	return report, report.Err()
}

func (g *Generator) loadInputs() (geometry.NodeOffsets, *macro.Table, error) {
	types, err := g.parse(g.cfg.CacheTypes)
	if err != nil {
		return geometry.NodeOffsets{}, nil, err
	}

	offsets, err := geometry.ResolveOffsets(types)
	if err != nil {
		return geometry.NodeOffsets{}, nil, err
	}

	g.log.Debug().
		Int64("prev", offsets.Prev).
		Int64("next", offsets.Next).
		Msgf("[generate] node offsets from %s", g.cfg.CacheTypes)

	device, err := g.parse(g.cfg.DeviceConf)
	if err != nil {
		return geometry.NodeOffsets{}, nil, err
	}

	return offsets, device, nil
}

func (g *Generator) parse(path string) (*macro.Table, error) {
	data, err := g.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return macro.Parse(bytes.NewReader(data), path)
}

func (g *Generator) processLevel(
	mode Mode,
	level string,
	device *macro.Table,
	offsets geometry.NodeOffsets,
) LevelResult {
	res := LevelResult{Level: level}

	a, err := g.compose(&res, device, offsets)
	if err != nil {
		return g.fail(res, err)
	}

	res.FileName = a.FileName
	res.Path = g.writer.Path(a)
	res.Fingerprint = a.Fingerprint()

	switch mode {
	case ModeWrite:
		if _, err := g.writer.Write(a); err != nil {
			return g.fail(res, err)
		}

		res.Written = true
		g.log.Info().
			Str("cache", level).
			Str("path", res.Path).
			Int("probe_unroll", res.ProbeUnroll).
			Int("prime_unroll", res.PrimeUnroll).
			Msg("[generate] wrote artifact")
	case ModeCheck:
		current, err := g.writer.IsCurrent(a)
		if err != nil {
			return g.fail(res, err)
		}

		if !current {
			res.Stale = true
			return g.fail(res, fmt.Errorf("%s: %w", res.Path, ErrStale))
		}

		g.log.Info().Str("cache", level).Str("path", res.Path).
			Msg("[check] artifact is current")
	case ModePlan:
		g.log.Debug().Str("cache", level).Msg("[plan] composed artifact")
	}

	return res
}

func (g *Generator) compose(
	res *LevelResult,
	device *macro.Table,
	offsets geometry.NodeOffsets,
) (artifact.Artifact, error) {
	geo, err := geometry.Resolve(res.Level, device, offsets)
	if err != nil {
		return artifact.Artifact{}, err
	}
	res.Geometry = geo

	programs, err := traversal.BuildAll(geo)
	if err != nil {
		return artifact.Artifact{}, err
	}

	for _, p := range programs {
		switch p.Kind {
		case traversal.Probe:
			res.ProbeUnroll = p.Unroll
		case traversal.Prime:
			res.PrimeUnroll = p.Unroll
		}
	}

	routines, err := render.Routines(g.target, programs)
	if err != nil {
		return artifact.Artifact{}, err
	}

	return g.layout.Compose(res.Level, routines)
}

func (g *Generator) fail(res LevelResult, err error) LevelResult {
	res.Err = &LevelError{Level: res.Level, Err: err}

	g.log.Error().
		Str("cache", res.Level).
		Err(err).
		Msg("[generate] level failed")

	return res
}
