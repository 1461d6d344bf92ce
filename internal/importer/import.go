package importer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/Faultbox/bimport/internal/attributes"
	"github.com/Faultbox/bimport/internal/document"
	"github.com/Faultbox/bimport/internal/logger"
	"github.com/Faultbox/bimport/internal/reconstruct"
	"github.com/Faultbox/bimport/pkg/formats"
)

// Outcome is the coarse result of an import.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Cancel
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	case Cancel:
		return "Cancel"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// ErrStrictAnomalies is returned in strict mode when any element misbehaved.
var ErrStrictAnomalies = errors.New("anomalies present in strict mode")

// Report describes how an import went.
type Report struct {
	Outcome   Outcome
	Message   string // Single human-readable line for the user
	Added     int    // Objects committed to the document
	Elements  int    // Elements in the file
	Processed int    // Elements handled before completion or cancellation
	Anomalies reconstruct.Anomalies
	Err       error // Underlying error for Failure and Cancel
}

// Import loads a .bim file and adds one object per reconstructed element to
// doc. Input and parse errors commit nothing. A cancelled context commits the
// objects built before cancellation.
func Import(ctx context.Context, path string, doc *document.Document, opts Options) Report {
	log := logger.Named("importer").With(zap.String("path", path))

	if err := ctx.Err(); err != nil {
		return Report{Outcome: Cancel, Message: "Import cancelled.", Err: err}
	}

	file, err := formats.LoadBIM(path)
	if err != nil {
		log.Error("loading BIM file failed", zap.Error(err))
		return Report{Outcome: Failure, Message: failureMessage(err), Err: err}
	}
	log.Debug("BIM file parsed",
		zap.String("schema", file.SchemaVersion),
		zap.Int("meshes", len(file.Meshes)),
		zap.Int("elements", len(file.Elements)))

	batch, err := Build(ctx, file, opts)
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !cancelled {
		log.Error("reconstruction failed", zap.Error(err))
		return Report{Outcome: Failure, Message: failureMessage(err), Elements: len(file.Elements), Err: err}
	}

	report := Report{Elements: batch.Elements, Processed: batch.Processed, Anomalies: batch.Anomalies}

	if opts.Strict && len(batch.Anomalies) > 0 {
		report.Outcome = Failure
		report.Err = fmt.Errorf("%w: %w", ErrStrictAnomalies, batch.Anomalies.Err())
		report.Message = fmt.Sprintf("Import aborted: %d element anomalies.", len(batch.Anomalies))
		logAnomalies(log, batch.Anomalies)
		return report
	}

	if committed := Commit(batch, doc, opts); len(committed) > 0 {
		report.Anomalies = append(slices.Clone(report.Anomalies), committed...)
		slices.SortStableFunc(report.Anomalies, func(a, b reconstruct.Anomaly) int {
			return a.Index - b.Index
		})
	}
	report.Added = len(batch.Items)
	logAnomalies(log, report.Anomalies)

	if cancelled {
		report.Outcome = Cancel
		report.Err = err
		report.Message = fmt.Sprintf("Import cancelled after %d of %d elements, %d objects added.",
			report.Processed, report.Elements, report.Added)
		log.Warn("import cancelled",
			zap.Int("processed", report.Processed),
			zap.Int("added", report.Added))
		return report
	}

	report.Outcome = Success
	report.Message = "BIM file opened successfully."
	log.Info("import finished",
		zap.Int("added", report.Added),
		zap.Int("elements", report.Elements),
		zap.Int("anomalies", len(report.Anomalies)))
	return report
}

// Commit adds every item of batch to doc. The same attribute set is written
// to the object's attributes and to its mesh. Anomalies found while assigning
// object ids are returned.
func Commit(batch *Batch, doc *document.Document, opts Options) reconstruct.Anomalies {
	var anomalies reconstruct.Anomalies

	flagged := make(map[int]bool)
	for _, a := range batch.Anomalies {
		if a.Kind == reconstruct.AnomalyInvalidGuid || a.Kind == reconstruct.AnomalyDuplicateGuid {
			flagged[a.Index] = true
		}
	}

	for i := range batch.Items {
		item := &batch.Items[i]
		inst := &item.Instance

		mesh := &document.Mesh{
			Vertices:     inst.Vertices,
			Faces:        inst.Faces,
			VertexColors: inst.VertexColors,
			FaceColors:   inst.FaceColors,
		}
		attrs := &document.ObjectAttributes{
			Name:        item.Element.Info["Name"],
			Color:       inst.Color,
			ColorSource: document.ColorFromVertex,
		}
		if inst.UsesElementColor {
			attrs.ColorSource = document.ColorFromObject
		}

		attributes.Emit(item.Attributes, attrs, mesh)

		if opts.AssignObjectIDs {
			// Unparseable Guids were reported by Build; the document picks an id.
			_ = attrs.SetObjectID(item.Element.GUID)
		}

		if _, reassigned := doc.Add(mesh, attrs); reassigned && !flagged[inst.Index] {
			anomalies = append(anomalies, reconstruct.Anomaly{
				Index: inst.Index, ElementID: inst.ElementID, Kind: reconstruct.AnomalyDuplicateGuid,
				Detail: "already present in document",
			})
		}
	}
	return anomalies
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, formats.ErrBIMFileNotFound):
		return "File not found."
	case errors.Is(err, formats.ErrNotBIMFile):
		return "Not a dotbim file."
	default:
		return fmt.Sprintf("Error opening BIM file: %v", err)
	}
}

func logAnomalies(log *zap.Logger, anomalies reconstruct.Anomalies) {
	for _, a := range anomalies {
		log.Warn("element anomaly",
			zap.Int("index", a.Index),
			zap.String("guid", a.ElementID),
			zap.Stringer("kind", a.Kind),
			zap.String("detail", a.Detail))
	}
}
