// Package formats provides parsers for building-model interchange files.
// BIM (dotbim) format parser for mesh templates and placed elements.
package formats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Faultbox/bimport/pkg/encoding"
	bmath "github.com/Faultbox/bimport/pkg/math"
)

// BIMExtension is the only file extension accepted by LoadBIM.
const BIMExtension = ".bim"

// BIM format errors.
var (
	ErrBIMFileNotFound       = errors.New("file not found")
	ErrNotBIMFile            = errors.New("not a dotbim file")
	ErrInvalidBIMJSON        = errors.New("invalid BIM JSON")
	ErrUnsupportedBIMVersion = errors.New("unsupported BIM schema version")
	ErrMalformedCoordinates  = errors.New("mesh coordinate count is not a multiple of 3")
	ErrMalformedIndices      = errors.New("mesh index count is not a multiple of 3")
	ErrIndexOutOfRange       = errors.New("mesh index out of range")
	ErrMalformedVertexColors = errors.New("mesh vertex colors do not match vertex count")
	ErrMalformedFaceColors   = errors.New("element face color count is not a multiple of 4")
	ErrDuplicateMeshID       = errors.New("duplicate mesh id")
)

// Transform field names reported in BIMElement.Defaulted.
const (
	FieldVectorX   = "vector.x"
	FieldVectorY   = "vector.y"
	FieldVectorZ   = "vector.z"
	FieldRotationX = "rotation.qx"
	FieldRotationY = "rotation.qy"
	FieldRotationZ = "rotation.qz"
	FieldRotationW = "rotation.qw"
)

// BIMColor is an RGBA color with 8-bit channels.
type BIMColor struct {
	R, G, B, A uint8
}

// BIMVector is an element translation.
type BIMVector struct {
	X, Y, Z float64
}

// Vec3 converts the translation to a math vector.
func (v BIMVector) Vec3() bmath.Vec3 {
	return bmath.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// BIMRotation is an element rotation quaternion. Qw is the scalar part.
type BIMRotation struct {
	Qx, Qy, Qz, Qw float64
}

// Quat converts the rotation to a math quaternion without normalising it.
func (r BIMRotation) Quat() bmath.Quat {
	return bmath.Quat{X: r.Qx, Y: r.Qy, Z: r.Qz, W: r.Qw}
}

// BIMMesh is a reusable, untransformed mesh template.
type BIMMesh struct {
	ID       int          // Template identifier referenced by elements
	Vertices [][3]float64 // Vertex positions
	Faces    [][3]int     // Triangles as indices into Vertices
	Colors   []BIMColor   // Per-vertex colors (nil when absent)
}

// HasVertexColors reports whether the template carries per-vertex colors.
func (m *BIMMesh) HasVertexColors() bool {
	return len(m.Colors) > 0
}

// BIMElement is one placed instance of a mesh template.
type BIMElement struct {
	GUID       string            // Element identifier (GUID formatted)
	Type       string            // Free-form type tag, e.g. "Wall"
	MeshID     int               // Referenced template
	HasMeshID  bool              // False when mesh_id was absent
	Vector     BIMVector         // Translation
	Rotation   BIMRotation       // Rotation quaternion
	Color      BIMColor          // Element color
	FaceColors []BIMColor        // Per-triangle colors (nil when absent)
	Info       map[string]string // Element metadata

	// Defaulted lists transform fields that were missing or not numeric
	// and were read as zero.
	Defaulted []string
}

// HasDefaultedRotation reports whether any rotation component was defaulted.
func (e *BIMElement) HasDefaultedRotation() bool {
	for _, f := range e.Defaulted {
		if strings.HasPrefix(f, "rotation.") {
			return true
		}
	}
	return false
}

// HasDefaultedVector reports whether any translation component was defaulted.
func (e *BIMElement) HasDefaultedVector() bool {
	for _, f := range e.Defaulted {
		if strings.HasPrefix(f, "vector.") {
			return true
		}
	}
	return false
}

// BIMFile represents a parsed dotbim file.
type BIMFile struct {
	SchemaVersion string
	Meshes        []BIMMesh
	Elements      []BIMElement
	Info          map[string]string // File-level metadata

	meshIndex map[int]int
}

// Mesh returns the template with the given id.
func (f *BIMFile) Mesh(id int) (*BIMMesh, bool) {
	idx, ok := f.meshIndex[id]
	if !ok {
		return nil, false
	}
	return &f.Meshes[idx], true
}

// NewBIMFile assembles a BIMFile from parsed parts and indexes the
// templates by id.
func NewBIMFile(meshes []BIMMesh, elements []BIMElement, info map[string]string) (*BIMFile, error) {
	f := &BIMFile{
		SchemaVersion: "1.0.0",
		Meshes:        meshes,
		Elements:      elements,
		Info:          info,
		meshIndex:     make(map[int]int, len(meshes)),
	}
	if f.Info == nil {
		f.Info = map[string]string{}
	}
	for i := range meshes {
		if _, dup := f.meshIndex[meshes[i].ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateMeshID, meshes[i].ID)
		}
		f.meshIndex[meshes[i].ID] = i
	}
	return f, nil
}

// IsBIMPath reports whether path has the .bim extension, ignoring case.
func IsBIMPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), BIMExtension)
}

// LoadBIM loads a BIM file from disk.
// Missing files and foreign extensions are rejected before any parsing.
func LoadBIM(path string) (*BIMFile, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBIMFileNotFound, path)
		}
		return nil, fmt.Errorf("stat BIM file: %w", err)
	}
	if !IsBIMPath(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotBIMFile, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading BIM file: %w", err)
	}
	return ParseBIM(data)
}

// Wire representation. Transform objects stay raw so that malformed
// components can default to zero instead of failing the whole file.
type bimDocument struct {
	SchemaVersion string                     `json:"schema_version"`
	Meshes        []bimMeshJSON              `json:"meshes"`
	Elements      []bimElementJSON           `json:"elements"`
	Info          map[string]json.RawMessage `json:"info"`
}

type bimMeshJSON struct {
	MeshID      int       `json:"mesh_id"`
	Coordinates []float64 `json:"coordinates"`
	Indices     []int     `json:"indices"`
	Colors      []float64 `json:"colors"`
}

type bimElementJSON struct {
	MeshID     *int                       `json:"mesh_id"`
	Vector     json.RawMessage            `json:"vector"`
	Rotation   json.RawMessage            `json:"rotation"`
	GUID       string                     `json:"guid"`
	Type       string                     `json:"type"`
	Color      json.RawMessage            `json:"color"`
	FaceColors []float64                  `json:"face_colors"`
	Info       map[string]json.RawMessage `json:"info"`
}

// ParseBIM parses BIM data from a byte slice.
func ParseBIM(data []byte) (*BIMFile, error) {
	text, err := encoding.DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBIMJSON, err)
	}

	var doc bimDocument
	if err := json.Unmarshal(bytes.TrimSpace(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBIMJSON, err)
	}

	if err := checkBIMVersion(doc.SchemaVersion); err != nil {
		return nil, err
	}

	meshes := make([]BIMMesh, len(doc.Meshes))
	for i := range doc.Meshes {
		mesh, err := parseBIMMesh(&doc.Meshes[i])
		if err != nil {
			return nil, fmt.Errorf("parsing mesh %d: %w", i, err)
		}
		meshes[i] = *mesh
	}

	elements := make([]BIMElement, len(doc.Elements))
	for i := range doc.Elements {
		elem, err := parseBIMElement(&doc.Elements[i])
		if err != nil {
			return nil, fmt.Errorf("parsing element %d: %w", i, err)
		}
		elements[i] = *elem
	}

	bim, err := NewBIMFile(meshes, elements, stringMap(doc.Info))
	if err != nil {
		return nil, err
	}
	bim.SchemaVersion = doc.SchemaVersion

	return bim, nil
}

// checkBIMVersion accepts schema 1.x and files that omit the version.
func checkBIMVersion(v string) error {
	if v == "" {
		return nil
	}
	major, _, _ := strings.Cut(v, ".")
	if n, err := strconv.Atoi(major); err != nil || n != 1 {
		return fmt.Errorf("%w: %s", ErrUnsupportedBIMVersion, v)
	}
	return nil
}

// parseBIMMesh converts flat coordinate and index arrays into a template.
func parseBIMMesh(m *bimMeshJSON) (*BIMMesh, error) {
	if len(m.Coordinates)%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrMalformedCoordinates, len(m.Coordinates))
	}
	if len(m.Indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrMalformedIndices, len(m.Indices))
	}

	mesh := &BIMMesh{
		ID:       m.MeshID,
		Vertices: make([][3]float64, len(m.Coordinates)/3),
		Faces:    make([][3]int, len(m.Indices)/3),
	}

	for i := range mesh.Vertices {
		mesh.Vertices[i] = [3]float64{m.Coordinates[i*3], m.Coordinates[i*3+1], m.Coordinates[i*3+2]}
	}

	vertexCount := len(mesh.Vertices)
	for i := range mesh.Faces {
		for j := 0; j < 3; j++ {
			idx := m.Indices[i*3+j]
			if idx < 0 || idx >= vertexCount {
				return nil, fmt.Errorf("%w: face %d index %d (vertices: %d)", ErrIndexOutOfRange, i, idx, vertexCount)
			}
			mesh.Faces[i][j] = idx
		}
	}

	if len(m.Colors) > 0 {
		if len(m.Colors) != vertexCount*4 {
			return nil, fmt.Errorf("%w: %d channels for %d vertices", ErrMalformedVertexColors, len(m.Colors), vertexCount)
		}
		mesh.Colors = colorsFromChannels(m.Colors)
	}

	return mesh, nil
}

// parseBIMElement decodes one element, defaulting malformed transform fields.
func parseBIMElement(e *bimElementJSON) (*BIMElement, error) {
	if len(e.FaceColors)%4 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrMalformedFaceColors, len(e.FaceColors))
	}

	elem := &BIMElement{
		GUID: e.GUID,
		Type: e.Type,
		Info: stringMap(e.Info),
	}
	if e.MeshID != nil {
		elem.MeshID = *e.MeshID
		elem.HasMeshID = true
	}

	vec := readNumbers(e.Vector, []string{"x", "y", "z"})
	elem.Vector = BIMVector{X: vec[0].value, Y: vec[1].value, Z: vec[2].value}
	for i, f := range []string{FieldVectorX, FieldVectorY, FieldVectorZ} {
		if !vec[i].ok {
			elem.Defaulted = append(elem.Defaulted, f)
		}
	}

	rot := readNumbers(e.Rotation, []string{"qx", "qy", "qz", "qw"})
	elem.Rotation = BIMRotation{Qx: rot[0].value, Qy: rot[1].value, Qz: rot[2].value, Qw: rot[3].value}
	for i, f := range []string{FieldRotationX, FieldRotationY, FieldRotationZ, FieldRotationW} {
		if !rot[i].ok {
			elem.Defaulted = append(elem.Defaulted, f)
		}
	}

	rgba := readNumbers(e.Color, []string{"r", "g", "b", "a"})
	elem.Color = BIMColor{
		R: channel(rgba[0].value),
		G: channel(rgba[1].value),
		B: channel(rgba[2].value),
		A: channel(rgba[3].value),
	}

	if len(e.FaceColors) > 0 {
		elem.FaceColors = colorsFromChannels(e.FaceColors)
	}

	return elem, nil
}

type number struct {
	value float64
	ok    bool
}

// readNumbers reads the named members of a JSON object. Members that are
// missing, null or not numeric come back as zero with ok=false.
func readNumbers(raw json.RawMessage, keys []string) []number {
	out := make([]number, len(keys))

	var obj map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil {
		return out
	}

	for i, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		out[i].value, out[i].ok = parseNumber(v)
	}
	return out
}

// parseNumber accepts JSON numbers and numeric strings.
func parseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
	}
	return 0, false
}

// channel clamps a color component into 0..255.
func channel(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}

func colorsFromChannels(ch []float64) []BIMColor {
	colors := make([]BIMColor, len(ch)/4)
	for i := range colors {
		colors[i] = BIMColor{
			R: channel(ch[i*4]),
			G: channel(ch[i*4+1]),
			B: channel(ch[i*4+2]),
			A: channel(ch[i*4+3]),
		}
	}
	return colors
}

// stringMap flattens metadata values to strings. Non-string JSON values keep
// their JSON text.
func stringMap(raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(bytes.TrimSpace(v))
	}
	return out
}
