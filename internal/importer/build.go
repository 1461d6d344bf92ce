// Package importer wires the model provider, the geometry reconstructor and
// the metadata propagator into a single import pipeline.
package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/Faultbox/bimport/internal/attributes"
	"github.com/Faultbox/bimport/internal/reconstruct"
	"github.com/Faultbox/bimport/pkg/formats"
)

// Options controls an import.
type Options struct {
	Workers         int  // Concurrent element reconstruction; below 2 is sequential
	Strict          bool // Treat any anomaly as a failed import
	AssignObjectIDs bool // Use element Guids as document object ids

	// RotationTolerance reports rotations whose norm is further than this
	// from 1. Zero disables the check.
	RotationTolerance float64
}

// Item pairs one reconstructed instance with its source element and
// attribute set.
type Item struct {
	Element    *formats.BIMElement
	Instance   reconstruct.Instance
	Attributes *attributes.Set
}

// Batch is the result of reconstructing and propagating a whole model.
type Batch struct {
	Items     []Item
	Anomalies reconstruct.Anomalies // Ordered by element index
	Elements  int                   // Number of elements in the model
	Processed int                   // Elements handled before completion or cancellation
}

// Build reconstructs every element of file and attaches its attribute set.
// It touches no document. On cancellation the items built so far are
// returned together with the context error.
func Build(ctx context.Context, file *formats.BIMFile, opts Options) (*Batch, error) {
	store := reconstruct.NewTemplateStore(file.Meshes)

	res, err := reconstruct.Reconstruct(ctx, store, file.Elements, reconstruct.Options{
		Workers:           opts.Workers,
		RotationTolerance: opts.RotationTolerance,
	})
	if res == nil {
		return nil, err
	}

	batch := &Batch{
		Items:     make([]Item, 0, len(res.Instances)),
		Anomalies: res.Anomalies,
		Elements:  len(file.Elements),
		Processed: res.Processed,
	}
	for _, inst := range res.Instances {
		elem := &file.Elements[inst.Index]
		batch.Items = append(batch.Items, Item{
			Element:    elem,
			Instance:   inst,
			Attributes: attributes.Propagate(file.Info, elem),
		})
	}

	if opts.AssignObjectIDs {
		batch.Anomalies = append(batch.Anomalies, guidAnomalies(batch.Items)...)
		slices.SortStableFunc(batch.Anomalies, func(a, b reconstruct.Anomaly) int {
			return a.Index - b.Index
		})
	}

	return batch, err
}

// guidAnomalies reports Guids that cannot serve as object ids, either because
// they do not parse or because an earlier item already uses them.
func guidAnomalies(items []Item) reconstruct.Anomalies {
	var anomalies reconstruct.Anomalies
	seen := make(map[uuid.UUID]int, len(items))

	for _, item := range items {
		guid := item.Element.GUID
		id, err := uuid.Parse(guid)
		if err != nil {
			anomalies = append(anomalies, reconstruct.Anomaly{
				Index: item.Instance.Index, ElementID: guid, Kind: reconstruct.AnomalyInvalidGuid,
				Detail: err.Error(),
			})
			continue
		}
		if first, dup := seen[id]; dup {
			anomalies = append(anomalies, reconstruct.Anomaly{
				Index: item.Instance.Index, ElementID: guid, Kind: reconstruct.AnomalyDuplicateGuid,
				Detail: fmt.Sprintf("also used by element %d", first),
			})
			continue
		}
		seen[id] = item.Instance.Index
	}
	return anomalies
}
