// Package attributes merges file, identification and element metadata into
// the flat attribute set attached to every reconstructed instance.
package attributes

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/Faultbox/bimport/pkg/formats"
	bmath "github.com/Faultbox/bimport/pkg/math"
)

// Key prefixes that namespace file and element metadata.
const (
	FilePrefix    = "File Info: "
	ElementPrefix = "Info: "
)

// Fixed identification keys.
const (
	KeyGuid     = "Guid"
	KeyMeshID   = "Mesh ID"
	KeyRotation = "Rotation"
	KeyVector   = "Vector"
	KeyType     = "Type"
	KeyColor    = "Color"
)

// Digits is the number of decimals used when rendering transforms.
const Digits = 3

const separator = ", "

// Source tags where an attribute came from. Sources are ordered by
// precedence: a later source overwrites an earlier one on key collision.
type Source int

const (
	SourceFile           Source = iota // File-level info, prefixed with FilePrefix
	SourceIdentification               // Fixed keys derived from the element
	SourceElement                      // Element info, prefixed with ElementPrefix
)

// String returns a human-readable source name.
func (s Source) String() string {
	switch s {
	case SourceFile:
		return "File"
	case SourceIdentification:
		return "Identification"
	case SourceElement:
		return "Element"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Prefix returns the namespace applied to raw keys of this source.
func (s Source) Prefix() string {
	switch s {
	case SourceFile:
		return FilePrefix
	case SourceElement:
		return ElementPrefix
	default:
		return ""
	}
}

// Entry is one attribute before namespacing.
type Entry struct {
	Source Source
	Name   string // Raw key as found in the source
	Value  string
}

// Key returns the final, namespaced key.
func (e Entry) Key() string {
	return e.Source.Prefix() + e.Name
}

// Set is a flat attribute map. Every key appears once.
type Set struct {
	values map[string]string
	origin map[string]Source
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		values: make(map[string]string),
		origin: make(map[string]Source),
	}
}

// Get returns the value stored under key.
func (s *Set) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Source returns the source that wrote key last.
func (s *Set) Source(key string) (Source, bool) {
	src, ok := s.origin[key]
	return src, ok
}

// Len returns the number of keys.
func (s *Set) Len() int {
	return len(s.values)
}

// Keys returns all keys in ascending order.
func (s *Set) Keys() []string {
	keys := maps.Keys(s.values)
	slices.Sort(keys)
	return keys
}

// Map returns a copy of the set as a plain map.
func (s *Set) Map() map[string]string {
	return maps.Clone(s.values)
}

// Equal reports whether both sets hold the same keys and values.
func (s *Set) Equal(other *Set) bool {
	return maps.Equal(s.values, other.values)
}

func (s *Set) put(e Entry) {
	key := e.Key()
	s.values[key] = e.Value
	s.origin[key] = e.Source
}

// Merge applies entries in precedence order: file, then identification, then
// element. Entries of the same source keep their given order. On a key
// collision the last write wins.
func Merge(entries ...Entry) *Set {
	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, func(a, b Entry) int {
		return int(a.Source) - int(b.Source)
	})

	set := NewSet()
	for _, e := range ordered {
		set.put(e)
	}
	return set
}

// Propagate builds the attribute set of one element.
func Propagate(fileInfo map[string]string, elem *formats.BIMElement) *Set {
	entries := FileEntries(fileInfo)
	entries = append(entries, IdentificationEntries(elem)...)
	entries = append(entries, ElementEntries(elem.Info)...)
	return Merge(entries...)
}

// FileEntries wraps file-level info, sorted by key.
func FileEntries(info map[string]string) []Entry {
	return infoEntries(SourceFile, info)
}

// ElementEntries wraps element info, sorted by key.
func ElementEntries(info map[string]string) []Entry {
	return infoEntries(SourceElement, info)
}

func infoEntries(src Source, info map[string]string) []Entry {
	keys := maps.Keys(info)
	slices.Sort(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Source: src, Name: k, Value: info[k]})
	}
	return entries
}

// IdentificationEntries derives the fixed keys of an element.
func IdentificationEntries(elem *formats.BIMElement) []Entry {
	return []Entry{
		{Source: SourceIdentification, Name: KeyGuid, Value: elem.GUID},
		{Source: SourceIdentification, Name: KeyMeshID, Value: strconv.Itoa(elem.MeshID)},
		{Source: SourceIdentification, Name: KeyRotation, Value: FormatRotation(elem.Rotation)},
		{Source: SourceIdentification, Name: KeyVector, Value: FormatVector(elem.Vector)},
		{Source: SourceIdentification, Name: KeyType, Value: elem.Type},
		{Source: SourceIdentification, Name: KeyColor, Value: FormatColor(elem.Color)},
	}
}

// FormatRotation renders a quaternion as "w, x, y, z".
func FormatRotation(r formats.BIMRotation) string {
	return joinRounded(r.Qw, r.Qx, r.Qy, r.Qz)
}

// FormatVector renders a translation as "x, y, z".
func FormatVector(v formats.BIMVector) string {
	return joinRounded(v.X, v.Y, v.Z)
}

// FormatColor renders a color as "A, R, G, B".
func FormatColor(c formats.BIMColor) string {
	return strings.Join([]string{
		strconv.Itoa(int(c.A)),
		strconv.Itoa(int(c.R)),
		strconv.Itoa(int(c.G)),
		strconv.Itoa(int(c.B)),
	}, separator)
}

func joinRounded(values ...float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = bmath.FormatRounded(v, Digits)
	}
	return strings.Join(parts, separator)
}
