// Package geometry turns extracted configuration constants into validated
// cache geometries.
package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/sarchlab/asmgen/macro"
)

// MinAssociativity is the smallest associativity that can be unrolled. The
// prologue and the epilogue of a traversal each cover two nodes.
const MinAssociativity = 4

// DefaultLineSize is used when the device configuration does not define
// CACHELINE_SIZE.
const DefaultLineSize = 64

// Names of the node offset constants in the cache types header.
const (
	PrevOffsetName = "CL_PREV_OFFSET"
	NextOffsetName = "CL_NEXT_OFFSET"
	LineSizeName   = "CACHELINE_SIZE"
)

// Addressing tells whether a cache level is indexed by virtual or physical
// addresses.
type Addressing int

// The addressing modes.
const (
	Virtual Addressing = iota
	Physical
)

func (a Addressing) String() string {
	switch a {
	case Virtual:
		return "virtual"
	case Physical:
		return "physical"
	default:
		return fmt.Sprintf("Addressing(%d)", int(a))
	}
}

// NodeOffsets are the byte offsets of the links in the cache node struct.
type NodeOffsets struct {
	Prev int64
	Next int64
}

// A Geometry describes one cache level.
type Geometry struct {
	Level         string
	Sets          int
	Associativity int
	Offsets       NodeOffsets

	// Descriptive fields. They do not influence the emitted traversal.
	LineSize   int
	Addressing Addressing
	AccessTime int
}

// Lines returns the number of cache lines in the level.
func (g Geometry) Lines() int {
	return g.Sets * g.Associativity
}

// SetSize returns the number of bytes in one set.
func (g Geometry) SetSize() int {
	return g.LineSize * g.Associativity
}

// TotalSize returns the capacity of the level in bytes.
func (g Geometry) TotalSize() int {
	return g.Sets * g.SetSize()
}

// Validate checks that the geometry can be unrolled safely.
func (g Geometry) Validate() error {
	if g.Sets <= 0 {
		return &ValidationError{
			Level:  g.Level,
			Field:  "sets",
			Value:  int64(g.Sets),
			Reason: "must be positive",
		}
	}

	if g.Associativity < MinAssociativity {
		return &ValidationError{
			Level:  g.Level,
			Field:  "associativity",
			Value:  int64(g.Associativity),
			Reason: fmt.Sprintf("must be at least %d", MinAssociativity),
		}
	}

	if g.Associativity%2 != 0 {
		return &ValidationError{
			Level:  g.Level,
			Field:  "associativity",
			Value:  int64(g.Associativity),
			Reason: "must be even",
		}
	}

	if g.LineSize <= 0 {
		return &ValidationError{
			Level:  g.Level,
			Field:  "line size",
			Value:  int64(g.LineSize),
			Reason: "must be positive",
		}
	}

	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%s{sets: %d, ways: %d, line: %dB, prev: %#x, next: %#x}",
		g.Level, g.Sets, g.Associativity, g.LineSize,
		g.Offsets.Prev, g.Offsets.Next)
}

// ResolveOffsets reads the node link offsets. Both are required.
func ResolveOffsets(types *macro.Table) (NodeOffsets, error) {
	prev, err := types.Int(PrevOffsetName)
	if err != nil {
		return NodeOffsets{}, err
	}

	next, err := types.Int(NextOffsetName)
	if err != nil {
		return NodeOffsets{}, err
	}

	if prev < 0 {
		return NodeOffsets{}, &ValidationError{
			Field: PrevOffsetName, Value: prev, Reason: "must not be negative",
		}
	}

	if next < 0 {
		return NodeOffsets{}, &ValidationError{
			Field: NextOffsetName, Value: next, Reason: "must not be negative",
		}
	}

	return NodeOffsets{Prev: prev, Next: next}, nil
}

// Constants returns the constants a level reads from the device
// configuration.
func Constants(level string) []macro.Constant {
	prefix := strings.ToUpper(level)

	return []macro.Constant{
		{Name: prefix + "_SETS", Kind: macro.KindInt, Required: true},
		{Name: prefix + "_ASSOCIATIVITY", Kind: macro.KindInt, Required: true},
		{Name: prefix + "_ADDRESSING", Kind: macro.KindInt, Default: "0"},
		{Name: prefix + "_ACCESS_TIME", Kind: macro.KindInt, Default: "0"},
		{Name: LineSizeName, Kind: macro.KindInt,
			Default: fmt.Sprint(DefaultLineSize)},
	}
}

// Resolve builds and validates the geometry of a level.
func Resolve(
	level string,
	device *macro.Table,
	offsets NodeOffsets,
) (Geometry, error) {
	values := make([]int64, 0, 5)
	for _, c := range Constants(level) {
		n, _, err := device.ResolveInt(c)
		if err != nil {
			return Geometry{}, err
		}

		if n < math.MinInt32 || n > math.MaxInt32 {
			return Geometry{}, &ValidationError{
				Level:  strings.ToUpper(level),
				Field:  c.Name,
				Value:  n,
				Reason: "out of range",
			}
		}

		values = append(values, n)
	}

	// Sets and ways are both at most MaxInt32, so the product fits.
	if lines := values[0] * values[1]; lines > math.MaxInt32 {
		return Geometry{}, &ValidationError{
			Level:  strings.ToUpper(level),
			Field:  "lines",
			Value:  lines,
			Reason: "out of range",
		}
	}

	g := Geometry{
		Level:         strings.ToUpper(level),
		Sets:          int(values[0]),
		Associativity: int(values[1]),
		Addressing:    Addressing(values[2]),
		AccessTime:    int(values[3]),
		LineSize:      int(values[4]),
		Offsets:       offsets,
	}

	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}

	return g, nil
}
