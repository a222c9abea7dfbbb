package core

import (
	"errors"
	"fmt"
)

// Error kind names, as surfaced in batch summaries and API responses.
const (
	KindInsufficientSatellites = "insufficient_satellites"
	KindSingularGeometry       = "singular_geometry"
	KindInputShapeMismatch     = "input_shape_mismatch"
)

// InsufficientSatellitesError reports that an epoch carried fewer usable
// satellites than the 4-unknown position/clock system requires.
type InsufficientSatellitesError struct {
	Have int
	Need int
}

func (e *InsufficientSatellitesError) Error() string {
	return fmt.Sprintf("insufficient satellites: have %d, need %d", e.Have, e.Need)
}

// SingularGeometryError reports that the design matrix was rank-deficient
// (e.g. colinear satellites), so the least-squares solve or the DOP
// covariance inversion has no well-defined answer.
type SingularGeometryError struct {
	Op  string // "solve" or "dop"
	Err error  // underlying numeric failure, may be nil
}

func (e *SingularGeometryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("singular satellite geometry during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("singular satellite geometry during %s", e.Op)
}

func (e *SingularGeometryError) Unwrap() error { return e.Err }

// InputShapeMismatchError reports that satellite positions and pseudoranges
// were not paired index-for-index.
type InputShapeMismatchError struct {
	Satellites   int
	Pseudoranges int
}

func (e *InputShapeMismatchError) Error() string {
	return fmt.Sprintf("input shape mismatch: %d satellite positions vs %d pseudoranges",
		e.Satellites, e.Pseudoranges)
}

// ErrorKind maps an epoch error to its taxonomy name for reporting. Unknown
// errors map to "internal" so summaries never silently drop a failure.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var insufficient *InsufficientSatellitesError
	if errors.As(err, &insufficient) {
		return KindInsufficientSatellites
	}
	var singular *SingularGeometryError
	if errors.As(err, &singular) {
		return KindSingularGeometry
	}
	var mismatch *InputShapeMismatchError
	if errors.As(err, &mismatch) {
		return KindInputShapeMismatch
	}
	return "internal"
}
