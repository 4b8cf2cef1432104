package symptom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"
)

// historyFetchLimit bounds how many past sessions feed prior context.
const historyFetchLimit = 10

// Workflow sequences the triage stages for one submission. Session
// recording is mandatory and all-or-nothing; every stage after it is
// best-effort and degrades into the stage log instead of failing the
// workflow.
type Workflow struct {
	store      Store
	analyzer   *Analyzer
	matcher    *Matcher
	scheduler  *Scheduler
	dispatcher *Dispatcher
	logger     log.Logger
	metrics    *Metrics
}

// NewWorkflow wires the stages together.
func NewWorkflow(store Store, analyzer *Analyzer, matcher *Matcher, scheduler *Scheduler, dispatcher *Dispatcher, logger log.Logger, metrics *Metrics) *Workflow {
	if store == nil {
		panic(xerrors.New("workflow store is required"))
	}
	if metrics == nil {
		panic(xerrors.New("workflow metrics are required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Workflow{
		store:      store,
		analyzer:   analyzer,
		matcher:    matcher,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Submit runs the full pipeline for one submission. The only fatal
// failure is the session recording itself, surfaced as a
// PersistenceError; an AI outage, an empty doctor directory or a mail
// outage never lose the patient's data.
func (w *Workflow) Submit(ctx context.Context, patientID string, obs []Observation, mood int, freeText string) (*WorkflowResult, error) {
	start := time.Now()

	if err := validateSubmission(patientID, obs, mood); err != nil {
		return nil, err
	}

	L := w.logger.With("patient_id", patientID)

	// Prior sessions influence prompt wording only; loading them is
	// best-effort.
	priorContext := ""
	if recent, err := w.store.SessionsByPatient(ctx, patientID, historyFetchLimit); err != nil {
		L.Warn(ctx, "history load failed, analyzing without prior context", "error", err)
	} else {
		priorContext = BuildPriorContext(recent)
	}

	assessment := w.analyzer.Analyze(ctx, obs, freeText, priorContext)
	result := &WorkflowResult{Assessment: assessment}
	if assessment.Heuristic {
		w.metrics.HeuristicFallbacks.Inc()
		result.logStage("analyzed (heuristic fallback)")
	} else {
		result.logStage("analyzed")
	}
	w.metrics.stage("analyze", nil)

	result.IsEmergency = Gate(assessment, obs)
	path := "routine"
	if result.IsEmergency {
		path = "emergency"
		result.logStage("gate: emergency")
	} else {
		result.logStage("gate: routine")
	}

	// The session must commit even if the caller goes away mid-flight:
	// only not-yet-started stages may be abandoned on cancellation.
	sess, err := w.store.RecordSession(context.WithoutCancel(ctx), &SessionInput{
		ID:           ulid.Make().String(),
		PatientID:    patientID,
		StartTime:    time.Now().UTC(),
		Observations: obs,
		Mood:         mood,
		FreeText:     freeText,
		Assessment:   assessment,
		IsEmergency:  result.IsEmergency,
	})
	if err != nil {
		w.metrics.stage("record", err)
		w.metrics.WorkflowsTotal.WithLabelValues(path, "failed").Inc()
		L.Error(ctx, err, "session recording failed")
		return nil, &PersistenceError{Op: "record session", Err: err}
	}
	w.metrics.stage("record", nil)
	result.SessionID = sess.ID
	result.logStage("recorded")

	L = L.With("session_id", sess.ID)

	if result.IsEmergency {
		switch {
		case ctx.Err() != nil:
			result.logStage("cancelled: emergency escalation abandoned")
		default:
			w.runEscalation(ctx, L, result, sess, obs, assessment)
		}
	}

	result.logStage("completed")
	w.metrics.WorkflowsTotal.WithLabelValues(path, "completed").Inc()
	w.metrics.WorkflowDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	L.Info(ctx, "workflow complete",
		"emergency", result.IsEmergency,
		"severity", assessment.SeverityScore,
		"appointment", result.Appointment != nil,
	)
	return result, nil
}

// runEscalation executes the match -> schedule -> notify tail for an
// emergency submission. Failures degrade into the stage log; nothing in
// here is fatal once the session is recorded.
func (w *Workflow) runEscalation(ctx context.Context, L log.Logger, result *WorkflowResult, sess *Session, obs []Observation, assessment Assessment) {
	patient, ok, err := w.store.Patient(ctx, sess.PatientID)
	if err != nil || !ok {
		if err != nil {
			L.Error(ctx, err, "patient lookup failed")
		}
		w.metrics.stage("match", errors.New("patient unavailable"))
		result.logStage("doctor matching unavailable, please contact a clinic directly")
		return
	}

	esc := w.escalate(ctx, L, patient, sess.ID, assessment.Specialization, obs, assessment.Summary, photoRefs(obs))
	result.Doctor = esc.doctor
	result.Appointment = esc.appointment
	result.Notification = esc.notification
	result.StageLog = append(result.StageLog, esc.stages...)
}

// escalation is the partial outcome of the emergency tail.
type escalation struct {
	doctor       *DoctorCandidate
	appointment  *Appointment
	notification *NotificationOutcome
	stages       []string
	err          error // first match/schedule failure, for manual booking
}

func (e *escalation) logStage(format string, args ...any) {
	e.stages = append(e.stages, fmt.Sprintf(format, args...))
}

func (w *Workflow) escalate(ctx context.Context, L log.Logger, patient *Patient, sessionID, specialization string, obs []Observation, summary string, photos []string) escalation {
	var e escalation

	doctor, err := w.matcher.Match(ctx, patient.City, specialization, obs)
	w.metrics.stage("match", err)
	if err != nil {
		e.err = err
		if errors.Is(err, ErrNoDoctorsAvailable) {
			e.logStage("no doctors available in %s; please contact a clinic directly", patient.City)
		} else {
			L.Error(ctx, err, "doctor matching failed")
			e.logStage("doctor matching unavailable, please contact a clinic directly")
		}
		return e
	}
	e.doctor = doctor
	e.logStage("matched Dr. %s (%s)", doctor.FullName, doctor.Specialization)

	if ctx.Err() != nil {
		e.logStage("cancelled: remaining stages abandoned")
		return e
	}

	appt, err := w.scheduler.Schedule(ctx, patient.ID, sessionID, doctor, UrgencyEmergency, summary)
	w.metrics.stage("schedule", err)
	if err != nil {
		e.err = err
		L.Error(ctx, err, "appointment scheduling failed")
		e.logStage("scheduling unavailable; your session is recorded, please contact the clinic directly")
		return e
	}
	e.appointment = appt
	e.logStage("scheduled for %s", appt.ScheduledAt.Format(time.RFC3339))

	if ctx.Err() != nil {
		e.logStage("cancelled: notification abandoned")
		return e
	}

	out := w.dispatcher.Notify(ctx, &NotifyContext{
		Patient:        patient,
		Doctor:         doctor,
		Appointment:    appt,
		SymptomSummary: summary,
		PhotoRefs:      photos,
	})
	e.notification = &out
	if out.Error == "not configured" {
		e.logStage("notifications skipped: transport not configured")
		return e
	}
	w.metrics.notification("patient", out.PatientSent)
	w.metrics.notification("doctor", out.DoctorSent)
	e.logStage("notified (patient=%t doctor=%t)", out.PatientSent, out.DoctorSent)
	return e
}

// BookAppointment runs the escalation tail manually for an
// already-recorded session, deriving the needed specialization from the
// recorded symptoms. Unlike Submit, match and schedule failures surface
// to the caller since nothing new is recorded before them.
func (w *Workflow) BookAppointment(ctx context.Context, patientID, sessionID string) (*BookingResult, error) {
	detail, ok, err := w.store.Session(ctx, sessionID)
	if err != nil {
		return nil, &PersistenceError{Op: "load session", Err: err}
	}
	if !ok || detail.PatientID != patientID {
		return nil, ErrSessionNotFound
	}

	patient, ok, err := w.store.Patient(ctx, patientID)
	if err != nil {
		return nil, &PersistenceError{Op: "load patient", Err: err}
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	summary := chatSummary(detail.ChatLog)
	if summary == "" {
		summary = detail.Summary
	}
	if summary == "" {
		summary = "High severity symptoms requiring immediate attention"
	}

	L := w.logger.With("patient_id", patientID, "session_id", sessionID)
	esc := w.escalate(ctx, L, patient, sessionID, SpecializationFor(detail.Observations), detail.Observations, summary, photoRefs(detail.Observations))
	if esc.err != nil {
		return nil, esc.err
	}

	return &BookingResult{
		SessionID:    sessionID,
		Doctor:       esc.doctor,
		Appointment:  esc.appointment,
		Notification: esc.notification,
		StageLog:     esc.stages,
	}, nil
}

// Sessions lists a patient's past sessions, newest first.
func (w *Workflow) Sessions(ctx context.Context, patientID string) ([]Session, error) {
	return w.store.SessionsByPatient(ctx, patientID, 0)
}

// SessionDetail returns one session with transcript and observations,
// enforcing ownership.
func (w *Workflow) SessionDetail(ctx context.Context, patientID, sessionID string) (*SessionDetail, error) {
	detail, ok, err := w.store.Session(ctx, sessionID)
	if err != nil {
		return nil, &PersistenceError{Op: "load session", Err: err}
	}
	if !ok || detail.PatientID != patientID {
		return nil, ErrSessionNotFound
	}
	return detail, nil
}

// History returns the patient's recent sessions with their observations.
func (w *Workflow) History(ctx context.Context, patientID string, limit int) ([]HistoryEntry, error) {
	sessions, err := w.store.SessionsByPatient(ctx, patientID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "load history", Err: err}
	}

	out := make([]HistoryEntry, 0, len(sessions))
	for _, s := range sessions {
		detail, ok, err := w.store.Session(ctx, s.ID)
		if err != nil {
			return nil, &PersistenceError{Op: "load history", Err: err}
		}
		entry := HistoryEntry{Session: s}
		if ok {
			entry.Observations = detail.Observations
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *WorkflowResult) logStage(format string, args ...any) {
	r.StageLog = append(r.StageLog, fmt.Sprintf(format, args...))
}

func validateSubmission(patientID string, obs []Observation, mood int) error {
	if patientID == "" {
		return fmt.Errorf("%w: missing patient id", ErrInvalidSubmission)
	}
	if mood < 0 || mood > 10 {
		return fmt.Errorf("%w: mood %d out of range 0..10", ErrInvalidSubmission, mood)
	}
	for i, o := range obs {
		if strings.TrimSpace(o.Symptom) == "" {
			return fmt.Errorf("%w: observation %d has no symptom", ErrInvalidSubmission, i)
		}
		if o.Intensity < 0 || o.Intensity > 10 {
			return fmt.Errorf("%w: observation %d intensity %d out of range 0..10", ErrInvalidSubmission, i, o.Intensity)
		}
	}
	return nil
}

func photoRefs(obs []Observation) []string {
	var refs []string
	for _, o := range obs {
		if o.PhotoRef != "" {
			refs = append(refs, o.PhotoRef)
		}
	}
	return refs
}

func chatSummary(entries []ChatEntry) string {
	var b strings.Builder
	for _, e := range entries {
		switch e.Sender {
		case "patient":
			fmt.Fprintf(&b, "Patient: %s\n", e.Message)
		case "assistant":
			fmt.Fprintf(&b, "AI: %s\n", e.Message)
		}
	}
	return strings.TrimSpace(b.String())
}
