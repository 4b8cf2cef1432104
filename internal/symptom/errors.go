package symptom

import (
	"errors"
	"fmt"
)

// ErrNoDoctorsAvailable means the directory returned no candidates for
// the patient's city. Non-fatal: the workflow records the session and
// skips the appointment tail.
var ErrNoDoctorsAvailable = errors.New("no doctors available")

// ErrSessionNotFound means the referenced session does not exist or is
// not owned by the requesting patient.
var ErrSessionNotFound = errors.New("session not found")

// ErrPatientNotFound means no patient record exists for the opaque id
// the token carried.
var ErrPatientNotFound = errors.New("patient not found")

// ErrInvalidSubmission means the submission failed boundary validation
// before any stage ran.
var ErrInvalidSubmission = errors.New("invalid submission")

// PersistenceError wraps a storage failure. It is fatal to the workflow
// only when raised while recording the session; appointment-stage
// persistence failures are absorbed into the stage log.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
