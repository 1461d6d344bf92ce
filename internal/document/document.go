// Package document is a minimal in-memory host object store for imported
// geometry. Every object holds a mesh and a record of document attributes,
// and both carry their own user strings.
package document

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"

	"github.com/Faultbox/bimport/pkg/formats"
)

// ErrInvalidObjectID is returned when a Guid string cannot be parsed.
var ErrInvalidObjectID = errors.New("invalid object id")

// ColorSource selects where an object's display color comes from.
type ColorSource int

const (
	ColorFromLayer  ColorSource = iota // Host default
	ColorFromObject                    // ObjectAttributes.Color
	ColorFromVertex                    // Mesh.VertexColors
)

// String returns a human-readable color source name.
func (c ColorSource) String() string {
	switch c {
	case ColorFromLayer:
		return "layer"
	case ColorFromObject:
		return "object"
	case ColorFromVertex:
		return "vertex"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// MarshalText renders the color source by name.
func (c ColorSource) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UserStrings is a key/value string store. The zero value is ready to use.
type UserStrings struct {
	values map[string]string
}

// SetUserString stores value under key, replacing any previous value.
func (u *UserStrings) SetUserString(key, value string) {
	if u.values == nil {
		u.values = make(map[string]string)
	}
	u.values[key] = value
}

// GetUserString returns the value stored under key.
func (u *UserStrings) GetUserString(key string) (string, bool) {
	v, ok := u.values[key]
	return v, ok
}

// UserStringCount returns the number of stored keys.
func (u *UserStrings) UserStringCount() int {
	return len(u.values)
}

// UserStringMap returns a copy of all stored pairs.
func (u *UserStrings) UserStringMap() map[string]string {
	if u.values == nil {
		return map[string]string{}
	}
	return maps.Clone(u.values)
}

// Mesh is the geometry of one object.
type Mesh struct {
	UserStrings

	Vertices     [][3]float64
	Faces        [][3]int
	VertexColors []formats.BIMColor
	FaceColors   []formats.BIMColor
}

// ObjectAttributes is the document-level record of one object.
type ObjectAttributes struct {
	UserStrings

	Name        string
	ObjectID    uuid.UUID // uuid.Nil lets the document assign one
	Color       formats.BIMColor
	ColorSource ColorSource
}

// SetObjectID parses a Guid formatted string into ObjectID.
func (a *ObjectAttributes) SetObjectID(guid string) error {
	id, err := uuid.Parse(guid)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidObjectID, guid, err)
	}
	a.ObjectID = id
	return nil
}

// Object is a mesh with its attributes, as stored in the document.
type Object struct {
	ID         uuid.UUID
	Mesh       *Mesh
	Attributes *ObjectAttributes
}

// Document stores imported objects in insertion order.
type Document struct {
	mu      sync.RWMutex
	objects []*Object
	byID    map[uuid.UUID]*Object
}

// New creates an empty document.
func New() *Document {
	return &Document{byID: make(map[uuid.UUID]*Object)}
}

// Add stores a mesh and its attributes. The object keeps attrs.ObjectID when
// it is set and not yet taken; otherwise a fresh id is generated and
// reassigned is true.
func (d *Document) Add(mesh *Mesh, attrs *ObjectAttributes) (id uuid.UUID, reassigned bool) {
	if attrs == nil {
		attrs = &ObjectAttributes{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id = attrs.ObjectID
	if id == uuid.Nil {
		id = uuid.New()
	} else if _, taken := d.byID[id]; taken {
		id = uuid.New()
		reassigned = true
	}
	attrs.ObjectID = id

	obj := &Object{ID: id, Mesh: mesh, Attributes: attrs}
	d.objects = append(d.objects, obj)
	d.byID[id] = obj
	return id, reassigned
}

// Find returns the object with the given id.
func (d *Document) Find(id uuid.UUID) (*Object, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	obj, ok := d.byID[id]
	return obj, ok
}

// Objects returns the stored objects in insertion order.
func (d *Document) Objects() []*Object {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Object, len(d.objects))
	copy(out, d.objects)
	return out
}

// Len returns the number of stored objects.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.objects)
}
