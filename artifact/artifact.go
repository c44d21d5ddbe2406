// Package artifact assembles generated routines into include-guarded C
// headers and writes them to disk.
package artifact

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/zeebo/xxh3"
)

//go:embed header.tmpl
var headerTemplate string

var header = template.Must(template.New("header").Parse(headerTemplate))

// DefaultIncludes are the headers of the timing primitives, the cache node
// layout and the device configuration, in that order.
var DefaultIncludes = []string{"asm.h", "cache.h", "device_conf.h"}

// DefaultExtension is the extension of generated files.
const DefaultExtension = "h"

// An Artifact is one generated compilation unit.
type Artifact struct {
	Level    string
	FileName string
	Content  []byte
}

// Fingerprint returns the hash of the content.
func (a Artifact) Fingerprint() uint64 {
	return Fingerprint(a.Content)
}

// Fingerprint hashes generated content.
func Fingerprint(content []byte) uint64 {
	return xxh3.Hash(content)
}

// FileName returns the file name of the artifact of a level.
func FileName(level, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}

	return strings.ToLower(level) + "_asm." + strings.TrimPrefix(ext, ".")
}

// GuardName returns the include guard macro of a level.
func GuardName(level string) string {
	return "HEADER_" + strings.ToUpper(level) + "_ASM_H"
}

// Layout controls the boilerplate around the routines.
type Layout struct {
	Tool      string
	Includes  []string
	Extension string
}

// DefaultLayout returns the layout the attack library expects.
func DefaultLayout(tool string) Layout {
	return Layout{
		Tool:      tool,
		Includes:  DefaultIncludes,
		Extension: DefaultExtension,
	}
}

// Compose wraps the routines of a level into one artifact.
func (l Layout) Compose(level string, routines []string) (Artifact, error) {
	guard := GuardName(level)

	var buf bytes.Buffer
	err := header.Execute(&buf, struct {
		Tool     string
		Guard    string
		Includes []string
	}{
		Tool:     l.Tool,
		Guard:    guard,
		Includes: l.Includes,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("compose %s: %w", level, err)
	}

	for _, r := range routines {
		buf.WriteString(r)
	}

	fmt.Fprintf(&buf, "\n#endif // %s\n", guard)

	return Artifact{
		Level:    strings.ToUpper(level),
		FileName: FileName(level, l.Extension),
		Content:  buf.Bytes(),
	}, nil
}
