package reconstruct

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/copier"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/bimport/pkg/formats"
	bmath "github.com/Faultbox/bimport/pkg/math"
)

// Instance is the world-space mesh built for one element. It owns all of its
// slices; nothing is shared with the template or with other instances.
type Instance struct {
	Index     int    // Position of the source element in the input
	ElementID string // Source element Guid
	MeshID    int    // Template the geometry was copied from

	Vertices [][3]float64 // Transformed vertex positions, template order
	Faces    [][3]int     // Triangle indices, identical to the template

	VertexColors []formats.BIMColor // Per-vertex colors copied from the template
	FaceColors   []formats.BIMColor // Per-triangle colors copied from the element

	// Color is the element color. It applies to the whole instance only when
	// UsesElementColor is set, i.e. the template has no per-vertex colors.
	Color            formats.BIMColor
	UsesElementColor bool
}

// Options controls a reconstruction run.
type Options struct {
	// Workers is the number of elements processed concurrently.
	// Values below 2 process elements sequentially.
	Workers int

	// RotationTolerance enables AnomalyNonUnitRotation for rotations whose
	// norm differs from 1 by more than this amount. Zero disables the check.
	// The rotation is applied as given either way.
	RotationTolerance float64
}

// Result holds the instances built from a batch of elements together with
// the anomalies encountered along the way.
type Result struct {
	Instances []Instance
	Anomalies Anomalies
	Processed int // Elements handled before completion or cancellation
}

// Reconstruct builds one instance per element whose template resolves.
//
// Instances keep the input order. Elements with an unknown template are
// skipped and reported as anomalies; malformed transforms are reported but
// still reconstructed with their zero defaults. When ctx is cancelled the
// instances finished so far are returned together with ctx.Err().
func Reconstruct(ctx context.Context, store *TemplateStore, elements []formats.BIMElement, opts Options) (*Result, error) {
	if opts.Workers > 1 && len(elements) > 1 {
		return reconstructParallel(ctx, store, elements, opts)
	}

	res := &Result{Instances: make([]Instance, 0, len(elements))}
	for i := range elements {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		inst, anomalies, err := BuildInstance(store, i, &elements[i], opts)
		if err != nil {
			return res, err
		}
		res.Anomalies = append(res.Anomalies, anomalies...)
		if inst != nil {
			res.Instances = append(res.Instances, *inst)
		}
		res.Processed++
	}
	return res, nil
}

// reconstructParallel fans elements out over a bounded worker group. Every
// element writes only to its own slot, so no locking is needed.
func reconstructParallel(ctx context.Context, store *TemplateStore, elements []formats.BIMElement, opts Options) (*Result, error) {
	instances := make([]*Instance, len(elements))
	anomalies := make([]Anomalies, len(elements))
	done := make([]bool, len(elements))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	scheduled := 0
	for i := range elements {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inst, an, err := BuildInstance(store, i, &elements[i], opts)
			if err != nil {
				return err
			}
			instances[i] = inst
			anomalies[i] = an
			done[i] = true
			return nil
		})
		scheduled++
	}

	err := g.Wait()
	if err == nil && scheduled < len(elements) {
		err = ctx.Err()
	}

	res := &Result{Instances: make([]Instance, 0, len(elements))}
	for i := range elements {
		res.Anomalies = append(res.Anomalies, anomalies[i]...)
		if instances[i] != nil {
			res.Instances = append(res.Instances, *instances[i])
		}
		if done[i] {
			res.Processed++
		}
	}
	return res, err
}

// BuildInstance reconstructs a single element. It returns a nil instance when
// the element's template does not resolve.
func BuildInstance(store *TemplateStore, index int, elem *formats.BIMElement, opts Options) (*Instance, Anomalies, error) {
	var anomalies Anomalies

	if !elem.HasMeshID {
		anomalies = append(anomalies, Anomaly{
			Index: index, ElementID: elem.GUID, Kind: AnomalyUnresolvedTemplate,
			Detail: "mesh_id missing",
		})
		return nil, anomalies, nil
	}

	tpl, ok := store.Lookup(elem.MeshID)
	if !ok {
		anomalies = append(anomalies, Anomaly{
			Index: index, ElementID: elem.GUID, Kind: AnomalyUnresolvedTemplate,
			Detail: fmt.Sprintf("mesh_id %d not found", elem.MeshID),
		})
		return nil, anomalies, nil
	}

	if elem.HasDefaultedRotation() {
		anomalies = append(anomalies, Anomaly{
			Index: index, ElementID: elem.GUID, Kind: AnomalyMalformedRotation,
			Detail: defaultedFields(elem, "rotation."),
		})
	}
	if q := elem.Rotation.Quat(); opts.RotationTolerance > 0 && !elem.HasDefaultedRotation() && !q.IsUnit(opts.RotationTolerance) {
		anomalies = append(anomalies, Anomaly{
			Index: index, ElementID: elem.GUID, Kind: AnomalyNonUnitRotation,
			Detail: fmt.Sprintf("norm %s applied without normalising", bmath.FormatRounded(q.Length(), 6)),
		})
	}
	if elem.HasDefaultedVector() {
		anomalies = append(anomalies, Anomaly{
			Index: index, ElementID: elem.GUID, Kind: AnomalyMalformedVector,
			Detail: defaultedFields(elem, "vector."),
		})
	}

	inst := &Instance{
		Index:     index,
		ElementID: elem.GUID,
		MeshID:    tpl.ID(),
		Vertices:  Transform(tpl.mesh.Vertices, elem.Rotation.Quat(), elem.Vector.Vec3()),
		Color:     elem.Color,
	}

	if err := deepCopy(&inst.Faces, tpl.mesh.Faces); err != nil {
		return nil, anomalies, fmt.Errorf("copying faces of mesh %d: %w", tpl.ID(), err)
	}
	if err := deepCopy(&inst.FaceColors, elem.FaceColors); err != nil {
		return nil, anomalies, fmt.Errorf("copying face colors of element %d: %w", index, err)
	}
	if tpl.HasVertexColors() {
		if err := deepCopy(&inst.VertexColors, tpl.mesh.Colors); err != nil {
			return nil, anomalies, fmt.Errorf("copying vertex colors of mesh %d: %w", tpl.ID(), err)
		}
	} else {
		inst.UsesElementColor = true
	}

	return inst, anomalies, nil
}

// Transform returns a new vertex list with every vertex rotated by q and then
// translated by t. The quaternion is applied as given, without normalising.
func Transform(vertices [][3]float64, q bmath.Quat, t bmath.Vec3) [][3]float64 {
	m := bmath.RigidTransform(q, t)
	out := make([][3]float64, len(vertices))
	for i, v := range vertices {
		out[i] = m.TransformPoint(v)
	}
	return out
}

// deepCopy copies src into a freshly allocated *dst. Empty sources leave
// *dst nil.
func deepCopy[T any](dst *[]T, src []T) error {
	if len(src) == 0 {
		return nil
	}
	return copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true})
}

func defaultedFields(elem *formats.BIMElement, prefix string) string {
	var fields []string
	for _, f := range elem.Defaulted {
		if strings.HasPrefix(f, prefix) {
			fields = append(fields, f)
		}
	}
	return "defaulted to 0: " + strings.Join(fields, ", ")
}
