package reconstruct

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// AnomalyKind classifies a non-fatal per-element problem.
type AnomalyKind int

const (
	AnomalyUnresolvedTemplate AnomalyKind = iota // Template reference missing or unknown; element skipped
	AnomalyMalformedRotation                     // Rotation component defaulted to zero
	AnomalyMalformedVector                       // Translation component defaulted to zero
	AnomalyInvalidGuid                           // Guid not usable as an object id
	AnomalyDuplicateGuid                         // Guid already used by another object
	AnomalyNonUnitRotation                       // Rotation quaternion is not unit length
)

// String returns a human-readable anomaly kind.
func (k AnomalyKind) String() string {
	switch k {
	case AnomalyUnresolvedTemplate:
		return "UnresolvedTemplate"
	case AnomalyMalformedRotation:
		return "MalformedRotation"
	case AnomalyMalformedVector:
		return "MalformedVector"
	case AnomalyInvalidGuid:
		return "InvalidGuid"
	case AnomalyDuplicateGuid:
		return "DuplicateGuid"
	case AnomalyNonUnitRotation:
		return "NonUnitRotation"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Skips reports whether the anomaly prevents an instance from being built.
func (k AnomalyKind) Skips() bool {
	return k == AnomalyUnresolvedTemplate
}

// ErrAnomaly is matched by every error produced from an Anomaly.
var ErrAnomaly = errors.New("element anomaly")

// Anomaly is a non-fatal issue found while processing one element.
type Anomaly struct {
	Index     int    // Position of the element in the input
	ElementID string // Element Guid as written in the file
	Kind      AnomalyKind
	Detail    string
}

// Error implements error.
func (a Anomaly) Error() string {
	if a.Detail == "" {
		return fmt.Sprintf("element %d (%s): %s", a.Index, a.ElementID, a.Kind)
	}
	return fmt.Sprintf("element %d (%s): %s: %s", a.Index, a.ElementID, a.Kind, a.Detail)
}

// Is makes errors.Is(anomaly, ErrAnomaly) true.
func (a Anomaly) Is(target error) bool {
	return target == ErrAnomaly
}

// Anomalies is the ordered list of anomalies for one batch.
type Anomalies []Anomaly

// Count returns the number of anomalies of the given kind.
func (as Anomalies) Count(kind AnomalyKind) int {
	n := 0
	for _, a := range as {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Skipped returns the number of elements that produced no instance.
func (as Anomalies) Skipped() int {
	n := 0
	for _, a := range as {
		if a.Kind.Skips() {
			n++
		}
	}
	return n
}

// Err folds all anomalies into a single error, or nil when there are none.
func (as Anomalies) Err() error {
	var err error
	for _, a := range as {
		err = multierr.Append(err, a)
	}
	return err
}
