package generator

import (
	"github.com/rs/zerolog"
	"github.com/sarchlab/asmgen/artifact"
	"github.com/sarchlab/asmgen/config"
	"github.com/sarchlab/asmgen/render"
)

// Builder can build generators.
type Builder struct {
	cfg    config.Config
	target render.Target
	fs     artifact.FileSystem
	log    zerolog.Logger
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: *config.Default(),
		fs:  artifact.OSFileSystem{},
		log: zerolog.Nop(),
	}
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithTarget sets the render target. Without it, the target is chosen by
// the configured machine.
func (b Builder) WithTarget(t render.Target) Builder {
	b.target = t
	return b
}

// WithFileSystem sets the file system the inputs are read from and the
// artifacts are written to.
func (b Builder) WithFileSystem(fs artifact.FileSystem) Builder {
	b.fs = fs
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(log zerolog.Logger) Builder {
	b.log = log
	return b
}

// Build builds a generator.
func (b Builder) Build() (*Generator, error) {
	cfg := b.cfg
	cfg.Levels = append([]string(nil), b.cfg.Levels...)
	cfg.AdjustConfig()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	target := b.target
	if target == nil {
		var err error
		target, err = render.NewTarget(cfg.Machine)
		if err != nil {
			return nil, err
		}
	}

	layout := artifact.DefaultLayout(cfg.Tool)
	layout.Extension = cfg.Extension
	if len(cfg.Includes) > 0 {
		layout.Includes = cfg.Includes
	}

	return &Generator{
		cfg:    cfg,
		target: target,
		layout: layout,
		fs:     b.fs,
		writer: artifact.Writer{FS: b.fs, Dir: cfg.OutputDir},
		log:    b.log,
	}, nil
}
