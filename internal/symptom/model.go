package symptom

import "time"

// SpecGeneralPractitioner is the default specialization when analysis
// cannot determine a more specific one.
const SpecGeneralPractitioner = "General Practitioner"

// Urgency classifies how soon an appointment must happen.
type Urgency string

const (
	UrgencyEmergency Urgency = "emergency"
	UrgencyRoutine   Urgency = "routine"
)

// StatusConfirmed is the only appointment status this service creates.
// Cancellation and rescheduling are out of scope.
const StatusConfirmed = "confirmed"

// Observation is one reported symptom with an intensity rating.
// Immutable once submitted.
type Observation struct {
	Symptom   string `json:"symptom"`
	Intensity int    `json:"intensity"` // 0..10
	Notes     string `json:"notes,omitempty"`
	PhotoRef  string `json:"photo_ref,omitempty"`
}

// Assessment is the structured output of severity analysis for one
// submission. SeverityScore is always within [0, 10].
type Assessment struct {
	Summary           string   `json:"summary"`
	SeverityScore     float64  `json:"severity_score"`
	RecommendFollowUp bool     `json:"recommend_follow_up"`
	RedFlags          []string `json:"red_flags,omitempty"`
	SuggestedActions  []string `json:"suggested_actions,omitempty"`
	Specialization    string   `json:"specialization_needed"`

	// Heuristic marks an assessment produced by the deterministic
	// fallback after an inference backend failure.
	Heuristic bool `json:"heuristic,omitempty"`
}

// Session is the durable record of one symptom-submission event.
// Created exactly once per submission and never mutated afterwards.
type Session struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patient_id"`
	StartTime     time.Time `json:"start_time"`
	SeverityScore float64   `json:"severity_score"`
	IsEmergency   bool      `json:"is_emergency"`
	Summary       string    `json:"summary"`
}

// ChatEntry is one transcript line owned by a session.
type ChatEntry struct {
	Sender  string    `json:"sender"` // "patient" or "assistant"
	Message string    `json:"message"`
	Intent  string    `json:"intent,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// SessionDetail is a session with its owned observations and transcript.
type SessionDetail struct {
	Session
	Mood         int           `json:"mood"`
	Observations []Observation `json:"observations"`
	ChatLog      []ChatEntry   `json:"chat_log"`
}

// SessionInput is the validated payload the recorder persists atomically.
type SessionInput struct {
	ID           string
	PatientID    string
	StartTime    time.Time
	Observations []Observation
	Mood         int
	FreeText     string
	Assessment   Assessment
	IsEmergency  bool
}

// Patient is the minimal patient record the workflow needs; identity
// issuance and verification live elsewhere.
type Patient struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	City     string `json:"city"`
}

// DoctorCandidate is a read-only doctor record from the directory.
type DoctorCandidate struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Specialization string `json:"specialization"`
	ClinicName     string `json:"clinic_name"`
	City           string `json:"city"`
	ContactEmail   string `json:"contact_email"`
}

// Appointment links a patient, a doctor and the session that caused it.
// Its existence is the durable signal that a visit was arranged.
type Appointment struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	DoctorID    string    `json:"doctor_id"`
	SessionID   string    `json:"session_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	Notes       []byte    `json:"-"` // encrypted blob, optional
}

// NotificationOutcome reports the two independent sends separately.
type NotificationOutcome struct {
	PatientSent bool   `json:"patient_sent"`
	DoctorSent  bool   `json:"doctor_sent"`
	Error       string `json:"error,omitempty"`
}

// WorkflowResult is the aggregate a submission returns. Appointment and
// Notification are absent when the emergency tail did not run or failed
// partway; StageLog records which stages ran and their outcome.
type WorkflowResult struct {
	SessionID    string               `json:"session_id"`
	Assessment   Assessment           `json:"assessment"`
	IsEmergency  bool                 `json:"is_emergency"`
	Doctor       *DoctorCandidate     `json:"doctor,omitempty"`
	Appointment  *Appointment         `json:"appointment,omitempty"`
	Notification *NotificationOutcome `json:"notification,omitempty"`
	StageLog     []string             `json:"stage_log"`
}

// BookingResult is the outcome of a manual appointment booking for an
// already-recorded session.
type BookingResult struct {
	SessionID    string               `json:"session_id"`
	Doctor       *DoctorCandidate     `json:"doctor"`
	Appointment  *Appointment         `json:"appointment"`
	Notification *NotificationOutcome `json:"notification,omitempty"`
	StageLog     []string             `json:"stage_log"`
}

// HistoryEntry is one past session with its observations.
type HistoryEntry struct {
	Session
	Observations []Observation `json:"observations"`
}
