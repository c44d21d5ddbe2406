// Package macro extracts object-like `#define` constants from C headers.
//
// A header is parsed once into a Table. Consumers ask the table for the
// constants they need and get an explicit present/absent answer, so a value
// that happens to equal some default is never confused with a missing one.
package macro

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the type a constant is converted to.
type Kind int

// The kinds of constant values.
const (
	KindInt Kind = iota
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	defineRe       = regexp.MustCompile(`^\s*#\s*define\s+([A-Za-z_]\w*)(\([^)]*\))?(?:\s+(.*))?$`)
	blockCommentRe = regexp.MustCompile(`/\*.*?\*/`)
)

// Value is the textual value of one definition.
type Value struct {
	Name string
	Raw  string

	// Line is the 1-based line of the definition. It is 0 for values that
	// were synthesized from a default.
	Line      int
	Defaulted bool
}

// Int converts the value to an integer. Decimal and the 0x, 0o and 0b
// prefixes are accepted, as are C integer suffixes and one pair of
// enclosing parentheses.
func (v Value) Int() (int64, error) {
	s := strings.TrimSpace(v.Raw)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimRight(s, "uUlL")

	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, err
	}

	return n, nil
}

func (v Value) String() string {
	return v.Raw
}

// Constant declares a constant that a consumer needs.
type Constant struct {
	Name string
	Kind Kind

	// Default is the raw text used when an optional constant is absent.
	// It is ignored for required constants.
	Default  string
	Required bool
}

// Table maps constant names to their first definition in a source.
type Table struct {
	source  string
	entries map[string]Value
	order   []string
}

// NewTable creates an empty table that reports errors against source.
func NewTable(source string) *Table {
	return &Table{
		source:  source,
		entries: make(map[string]Value),
	}
}

// Parse reads all lines of r and collects the object-like definitions.
// When a name is defined more than once, the first definition wins.
func Parse(r io.Reader, source string) (*Table, error) {
	t := NewTable(source)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		t.parseLine(scanner.Text(), lineNo)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	return t, nil
}

// ParseFile parses the file at path.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f, path)
}

func (t *Table) parseLine(line string, lineNo int) {
	m := defineRe.FindStringSubmatch(line)
	if m == nil {
		return
	}

	name, params, raw := m[1], m[2], m[3]
	if params != "" {
		return
	}

	raw = stripComments(raw)
	if raw == "" {
		return
	}

	t.Add(Value{Name: name, Raw: raw, Line: lineNo})
}

func stripComments(s string) string {
	s = blockCommentRe.ReplaceAllString(s, " ")
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "/*"); i >= 0 {
		s = s[:i]
	}

	return strings.TrimSpace(s)
}

// Add inserts v unless the name is already defined.
func (t *Table) Add(v Value) {
	if _, ok := t.entries[v.Name]; ok {
		return
	}

	t.entries[v.Name] = v
	t.order = append(t.order, v.Name)
}

// Source returns the name of the file the table was parsed from.
func (t *Table) Source() string {
	return t.source
}

// Len returns the number of distinct constants.
func (t *Table) Len() int {
	return len(t.order)
}

// Names returns the constant names in definition order.
func (t *Table) Names() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)

	return names
}

// Lookup returns the definition of name and whether it exists.
func (t *Table) Lookup(name string) (Value, bool) {
	v, ok := t.entries[name]
	return v, ok
}

// String returns the raw value of a required constant.
func (t *Table) String(name string) (string, error) {
	v, ok := t.Lookup(name)
	if !ok {
		return "", &MissingError{Name: name, Source: t.source}
	}

	return v.Raw, nil
}

// Int returns the integer value of a required constant.
func (t *Table) Int(name string) (int64, error) {
	v, ok := t.Lookup(name)
	if !ok {
		return 0, &MissingError{Name: name, Source: t.source}
	}

	return t.toInt(v)
}

func (t *Table) toInt(v Value) (int64, error) {
	n, err := v.Int()
	if err != nil {
		return 0, &InvalidError{
			Name:   v.Name,
			Source: t.source,
			Raw:    v.Raw,
			Err:    err,
		}
	}

	return n, nil
}

// Resolve looks up a declared constant. An absent required constant is an
// error; an absent optional constant resolves to its default, marked as
// Defaulted. Integer constants are checked for convertibility.
func (t *Table) Resolve(c Constant) (Value, error) {
	v, ok := t.Lookup(c.Name)
	if !ok {
		if c.Required {
			return Value{}, &MissingError{Name: c.Name, Source: t.source}
		}

		v = Value{Name: c.Name, Raw: c.Default, Defaulted: true}
	}

	if c.Kind == KindInt {
		if _, err := t.toInt(v); err != nil {
			return Value{}, err
		}
	}

	return v, nil
}

// ResolveInt resolves c and converts it to an integer.
func (t *Table) ResolveInt(c Constant) (int64, bool, error) {
	c.Kind = KindInt

	v, err := t.Resolve(c)
	if err != nil {
		return 0, false, err
	}

	n, err := t.toInt(v)
	if err != nil {
		return 0, false, err
	}

	return n, v.Defaulted, nil
}
