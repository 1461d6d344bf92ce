// Package reconstruct turns mesh templates and placed elements into
// independent world-space mesh instances.
package reconstruct

import "github.com/Faultbox/bimport/pkg/formats"

// Template is a read-only view of a parsed mesh template.
type Template struct {
	mesh *formats.BIMMesh
}

// ID returns the template identifier.
func (t *Template) ID() int { return t.mesh.ID }

// VertexCount returns the number of vertices.
func (t *Template) VertexCount() int { return len(t.mesh.Vertices) }

// FaceCount returns the number of triangles.
func (t *Template) FaceCount() int { return len(t.mesh.Faces) }

// HasVertexColors reports whether the template carries per-vertex colors.
func (t *Template) HasVertexColors() bool { return t.mesh.HasVertexColors() }

// TemplateStore indexes mesh templates by id. It is built once and only read
// afterwards, so it can be shared across goroutines.
type TemplateStore struct {
	templates map[int]*Template
}

// NewTemplateStore indexes the given meshes. When ids repeat, the last mesh wins;
// parsed files never contain duplicates.
func NewTemplateStore(meshes []formats.BIMMesh) *TemplateStore {
	s := &TemplateStore{templates: make(map[int]*Template, len(meshes))}
	for i := range meshes {
		s.templates[meshes[i].ID] = &Template{mesh: &meshes[i]}
	}
	return s
}

// Lookup returns the template with the given id.
func (s *TemplateStore) Lookup(id int) (*Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

// Len returns the number of templates.
func (s *TemplateStore) Len() int {
	return len(s.templates)
}
