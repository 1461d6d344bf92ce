package document

// Record is a serialisable snapshot of one object.
type Record struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name,omitempty" json:"name,omitempty"`
	ColorSource ColorSource       `yaml:"color_source" json:"color_source"`
	Color       [4]uint8          `yaml:"color,flow" json:"color"` // R, G, B, A
	Attributes  map[string]string `yaml:"attributes" json:"attributes"`
	Geometry    GeometryRecord    `yaml:"geometry" json:"geometry"`
}

// GeometryRecord is the mesh part of a Record.
type GeometryRecord struct {
	UserStrings  map[string]string `yaml:"user_strings" json:"user_strings"`
	Vertices     [][3]float64      `yaml:"vertices,flow" json:"vertices"`
	Faces        [][3]int          `yaml:"faces,flow" json:"faces"`
	VertexColors [][4]uint8        `yaml:"vertex_colors,omitempty,flow" json:"vertex_colors,omitempty"`
	FaceColors   [][4]uint8        `yaml:"face_colors,omitempty,flow" json:"face_colors,omitempty"`
}

// Records snapshots every object in insertion order.
func (d *Document) Records() []Record {
	objects := d.Objects()
	records := make([]Record, 0, len(objects))
	for _, obj := range objects {
		rec := Record{
			ID:          obj.ID.String(),
			Name:        obj.Attributes.Name,
			ColorSource: obj.Attributes.ColorSource,
			Color:       rgba(obj.Attributes.Color.R, obj.Attributes.Color.G, obj.Attributes.Color.B, obj.Attributes.Color.A),
			Attributes:  obj.Attributes.UserStringMap(),
		}
		if m := obj.Mesh; m != nil {
			rec.Geometry = GeometryRecord{
				UserStrings: m.UserStringMap(),
				Vertices:    m.Vertices,
				Faces:       m.Faces,
			}
			for _, c := range m.VertexColors {
				rec.Geometry.VertexColors = append(rec.Geometry.VertexColors, rgba(c.R, c.G, c.B, c.A))
			}
			for _, c := range m.FaceColors {
				rec.Geometry.FaceColors = append(rec.Geometry.FaceColors, rgba(c.R, c.G, c.B, c.A))
			}
		}
		records = append(records, rec)
	}
	return records
}

func rgba(r, g, b, a uint8) [4]uint8 {
	return [4]uint8{r, g, b, a}
}
