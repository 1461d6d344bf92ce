package attributes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/bimport/pkg/formats"
)

func wallElement() *formats.BIMElement {
	return &formats.BIMElement{
		GUID:      "76e051c1-1bd7-44fc-8e2e-db2b64055068",
		Type:      "Wall",
		MeshID:    3,
		HasMeshID: true,
		Rotation:  formats.BIMRotation{Qx: 0.70710678, Qy: 0, Qz: 0, Qw: 0.70710678},
		Vector:    formats.BIMVector{X: 1.23456, Y: -2, Z: 1e-5},
		Color:     formats.BIMColor{R: 10, G: 20, B: 30, A: 255},
		Info:      map[string]string{"Type": "Custom", "Name": "W-1"},
	}
}

func TestPropagate_NamespacesAvoidCollisions(t *testing.T) {
	set := Propagate(map[string]string{"Author": "Ada"}, wallElement())

	want := map[string]string{
		"File Info: Author": "Ada",
		"Guid":              "76e051c1-1bd7-44fc-8e2e-db2b64055068",
		"Mesh ID":           "3",
		"Rotation":          "0.707, 0.707, 0, 0",
		"Vector":            "1.235, -2, 0",
		"Type":              "Wall",
		"Color":             "255, 10, 20, 30",
		"Info: Type":        "Custom",
		"Info: Name":        "W-1",
	}
	assert.Equal(t, want, set.Map())

	src, ok := set.Source("Info: Type")
	require.True(t, ok)
	assert.Equal(t, SourceElement, src)
	src, _ = set.Source("Type")
	assert.Equal(t, SourceIdentification, src)
	src, _ = set.Source("File Info: Author")
	assert.Equal(t, SourceFile, src)
}

func TestPropagate_EmptyMetadata(t *testing.T) {
	elem := &formats.BIMElement{GUID: "g"}
	set := Propagate(nil, elem)

	assert.Equal(t, 6, set.Len())
	assert.Equal(t, []string{"Color", "Guid", "Mesh ID", "Rotation", "Type", "Vector"}, set.Keys())

	rot, _ := set.Get(KeyRotation)
	assert.Equal(t, "0, 0, 0, 0", rot)
	vec, _ := set.Get(KeyVector)
	assert.Equal(t, "0, 0, 0", vec)
	color, _ := set.Get(KeyColor)
	assert.Equal(t, "0, 0, 0, 0", color)
}

func TestMerge_LastWriteWinsInPrecedenceOrder(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		key     string
		want    string
		source  Source
	}{
		{
			name: "identification overwrites an earlier identification key",
			entries: []Entry{
				{Source: SourceIdentification, Name: "Type", Value: "first"},
				{Source: SourceIdentification, Name: "Type", Value: "second"},
			},
			key: "Type", want: "second", source: SourceIdentification,
		},
		{
			name: "precedence is by source, not argument order",
			entries: []Entry{
				{Source: SourceElement, Name: "X", Value: "element"},
				{Source: SourceIdentification, Name: "Info: X", Value: "ident"},
			},
			key: "Info: X", want: "element", source: SourceElement,
		},
		{
			name: "file key does not shadow identification key",
			entries: []Entry{
				{Source: SourceFile, Name: "Guid", Value: "file"},
				{Source: SourceIdentification, Name: "Guid", Value: "ident"},
			},
			key: "Guid", want: "ident", source: SourceIdentification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := Merge(tt.entries...)
			got, ok := set.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			src, _ := set.Source(tt.key)
			assert.Equal(t, tt.source, src)
		})
	}
}

func TestMerge_DoesNotReorderInput(t *testing.T) {
	entries := []Entry{
		{Source: SourceElement, Name: "a", Value: "1"},
		{Source: SourceFile, Name: "b", Value: "2"},
	}
	Merge(entries...)
	assert.Equal(t, SourceElement, entries[0].Source)
}

func TestSet_FileKeyNeverCollidesWithFixedKeys(t *testing.T) {
	fileInfo := map[string]string{}
	for _, k := range []string{KeyGuid, KeyMeshID, KeyRotation, KeyVector, KeyType, KeyColor} {
		fileInfo[k] = "file-" + k
	}
	elem := wallElement()
	set := Propagate(fileInfo, elem)

	guid, _ := set.Get(KeyGuid)
	assert.Equal(t, elem.GUID, guid)
	fileGuid, _ := set.Get(FilePrefix + KeyGuid)
	assert.Equal(t, "file-Guid", fileGuid)
	assert.Equal(t, 6+6+2, set.Len())
}

func TestEmit_SinksReceiveIdenticalSets(t *testing.T) {
	set := Propagate(map[string]string{"Author": "Ada"}, wallElement())

	document := MapSink{}
	geometry := MapSink{}
	Emit(set, document, geometry)

	assert.Equal(t, set.Map(), map[string]string(document))
	assert.Equal(t, map[string]string(document), map[string]string(geometry))
}

func TestSet_Equal(t *testing.T) {
	a := Propagate(map[string]string{"Author": "Ada"}, wallElement())
	b := Propagate(map[string]string{"Author": "Ada"}, wallElement())
	c := Propagate(map[string]string{"Author": "Bob"}, wallElement())

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestFormatRotation(t *testing.T) {
	tests := []struct {
		in   formats.BIMRotation
		want string
	}{
		{formats.BIMRotation{Qw: 1}, "1, 0, 0, 0"},
		{formats.BIMRotation{Qx: 0.1, Qy: 0.2, Qz: 0.3, Qw: 0.4}, "0.4, 0.1, 0.2, 0.3"},
		{formats.BIMRotation{Qz: -0.38268343, Qw: 0.92387953}, "0.924, 0, 0, -0.383"},
		{formats.BIMRotation{Qx: -0.0001, Qw: 1}, "1, 0, 0, 0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRotation(tt.in))
		})
	}
}

func TestFormatVector(t *testing.T) {
	assert.Equal(t, "1.5, -2, 3", FormatVector(formats.BIMVector{X: 1.5, Y: -2, Z: 3}))
	assert.Equal(t, "0.333, 0.667, 1000", FormatVector(formats.BIMVector{X: 1.0 / 3, Y: 2.0 / 3, Z: 1000.0001}))

	huge := FormatVector(formats.BIMVector{X: 1e306, Y: 2.25, Z: -1e-9})
	assert.Equal(t, "1"+strings.Repeat("0", 306)+", 2.25, 0", huge)
	assert.NotContains(t, huge, "Inf")
}

func TestFormatColor(t *testing.T) {
	assert.Equal(t, "128, 1, 2, 3", FormatColor(formats.BIMColor{R: 1, G: 2, B: 3, A: 128}))
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "File", SourceFile.String())
	assert.Equal(t, "Identification", SourceIdentification.String())
	assert.Equal(t, "Element", SourceElement.String())
	assert.Equal(t, "Unknown(7)", Source(7).String())
}
