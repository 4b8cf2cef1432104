package symptom

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"
)

// Appointment lead times by urgency.
const (
	emergencyLeadTime = 24 * time.Hour
	routineLeadTime   = 72 * time.Hour
)

// Scheduler creates appointment records. Notes are encrypted before
// storage; everything else is stored as given.
type Scheduler struct {
	store  Store
	cipher Cipher
	logger log.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler. store and cipher are required.
func NewScheduler(store Store, cipher Cipher, logger log.Logger) *Scheduler {
	if store == nil {
		panic(xerrors.New("scheduler store is required"))
	}
	if cipher == nil {
		panic(xerrors.New("scheduler cipher is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Scheduler{
		store:  store,
		cipher: cipher,
		logger: logger,
		now:    time.Now,
	}
}

// Schedule creates the appointment for a recorded session: submission
// time plus one day for emergencies, three days otherwise. Fails with a
// PersistenceError on storage failure; the caller decides whether that
// is fatal.
func (s *Scheduler) Schedule(ctx context.Context, patientID, sessionID string, doctor *DoctorCandidate, urgency Urgency, notes string) (*Appointment, error) {
	lead := routineLeadTime
	if urgency == UrgencyEmergency {
		lead = emergencyLeadTime
	}

	a := &Appointment{
		ID:          ulid.Make().String(),
		PatientID:   patientID,
		DoctorID:    doctor.ID,
		SessionID:   sessionID,
		ScheduledAt: s.now().Add(lead),
		Location:    doctor.ClinicName,
		Status:      StatusConfirmed,
	}

	if notes != "" {
		enc, err := s.cipher.Encrypt([]byte(notes))
		if err != nil {
			// Notes are auxiliary; an encryption failure drops them
			// rather than blocking the appointment.
			s.logger.Warn(ctx, "notes encryption failed, storing appointment without notes", "error", err)
		} else {
			a.Notes = enc
		}
	}

	if err := s.store.RecordAppointment(ctx, a); err != nil {
		return nil, &PersistenceError{Op: "record appointment", Err: err}
	}
	return a, nil
}
