// Package hostcheck compares configured cache geometries with the caches
// of the machine asmgen runs on.
package hostcheck

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/sarchlab/asmgen/geometry"
)

// Host describes the data caches of a CPU. Sizes are in bytes; values
// that could not be detected are zero or negative.
type Host struct {
	Brand    string
	L1D      int
	L2       int
	L3       int
	LineSize int
}

// Detect reads the cache description of the running CPU.
func Detect() Host {
	return Host{
		Brand:    cpuid.CPU.BrandName,
		L1D:      cpuid.CPU.Cache.L1D,
		L2:       cpuid.CPU.Cache.L2,
		L3:       cpuid.CPU.Cache.L3,
		LineSize: cpuid.CPU.CacheLine,
	}
}

// Size returns the detected size of a cache level.
func (h Host) Size(level string) (int, bool) {
	var size int

	switch strings.ToUpper(level) {
	case "L1":
		size = h.L1D
	case "L2":
		size = h.L2
	case "L3":
		size = h.L3
	default:
		return 0, false
	}

	return size, size > 0
}

// A Finding is a difference between configuration and host.
type Finding struct {
	Level      string
	Field      string
	Configured int
	Host       int
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s: configured %d, host %d",
		f.Level, f.Field, f.Configured, f.Host)
}

// Compare returns the differences between the geometries and the host.
// Levels the host does not report are skipped.
func Compare(geos []geometry.Geometry, h Host) []Finding {
	var findings []Finding

	for _, g := range geos {
		if size, ok := h.Size(g.Level); ok && g.TotalSize() != size {
			findings = append(findings, Finding{
				Level:      g.Level,
				Field:      "size",
				Configured: g.TotalSize(),
				Host:       size,
			})
		}

		if h.LineSize > 0 && g.LineSize != h.LineSize {
			findings = append(findings, Finding{
				Level:      g.Level,
				Field:      "line size",
				Configured: g.LineSize,
				Host:       h.LineSize,
			})
		}
	}

	return findings
}
