package symptom

import "context"

// Store is the persistence interface for sessions, patients and
// appointments. Implementations provide their own transaction
// mechanics; RecordSession must be all-or-nothing.
type Store interface {
	// RecordSession atomically creates the session row, both chat log
	// entries and one symptom row per observation.
	RecordSession(ctx context.Context, in *SessionInput) (*Session, error)

	// RecordAppointment creates the appointment. At most one
	// appointment may exist per session.
	RecordAppointment(ctx context.Context, a *Appointment) error

	Session(ctx context.Context, id string) (*SessionDetail, bool, error)
	SessionsByPatient(ctx context.Context, patientID string, limit int) ([]Session, error)
	Patient(ctx context.Context, id string) (*Patient, bool, error)
}

// Directory is the doctor lookup collaborator. Candidates are
// read-only; the workflow never mutates them.
type Directory interface {
	// FindDoctors returns all candidates in a city, empty on no match.
	FindDoctors(ctx context.Context, city string) ([]DoctorCandidate, error)

	AddDoctor(ctx context.Context, d *DoctorCandidate) error
	ListDoctors(ctx context.Context) ([]DoctorCandidate, error)
}

// Attachment is an already-read file to include in a mail. Reading
// happens before send so an unreadable file can be skipped without
// aborting delivery.
type Attachment struct {
	Filename string
	Data     []byte
}

// Mail is one outbound message.
type Mail struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Transport delivers mail best-effort. Configured reports whether the
// underlying transport has enough configuration to attempt a send.
type Transport interface {
	Configured() bool
	Send(ctx context.Context, m *Mail) error
}

// Cipher encrypts appointment notes before storage. The mechanism is a
// collaborator; the workflow only sees opaque blobs.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}
