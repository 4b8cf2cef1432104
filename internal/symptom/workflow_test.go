package symptom

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// mockStore implements Store with per-test hooks. A nil hook behaves as
// a benign default so tests only wire what they assert on.
type mockStore struct {
	recordSession     func(ctx context.Context, in *SessionInput) (*Session, error)
	recordAppointment func(ctx context.Context, a *Appointment) error
	session           func(ctx context.Context, id string) (*SessionDetail, bool, error)
	sessionsByPatient func(ctx context.Context, patientID string, limit int) ([]Session, error)
	patient           func(ctx context.Context, id string) (*Patient, bool, error)
}

func (m *mockStore) RecordSession(ctx context.Context, in *SessionInput) (*Session, error) {
	if m.recordSession != nil {
		return m.recordSession(ctx, in)
	}
	return &Session{
		ID:            in.ID,
		PatientID:     in.PatientID,
		StartTime:     in.StartTime,
		SeverityScore: in.Assessment.SeverityScore,
		IsEmergency:   in.IsEmergency,
		Summary:       in.Assessment.Summary,
	}, nil
}

func (m *mockStore) RecordAppointment(ctx context.Context, a *Appointment) error {
	if m.recordAppointment != nil {
		return m.recordAppointment(ctx, a)
	}
	return nil
}

func (m *mockStore) Session(ctx context.Context, id string) (*SessionDetail, bool, error) {
	if m.session != nil {
		return m.session(ctx, id)
	}
	return nil, false, nil
}

func (m *mockStore) SessionsByPatient(ctx context.Context, patientID string, limit int) ([]Session, error) {
	if m.sessionsByPatient != nil {
		return m.sessionsByPatient(ctx, patientID, limit)
	}
	return nil, nil
}

func (m *mockStore) Patient(ctx context.Context, id string) (*Patient, bool, error) {
	if m.patient != nil {
		return m.patient(ctx, id)
	}
	return nil, false, nil
}

var testPatient = &Patient{ID: "p1", FullName: "Asha Rao", Email: "asha@example.com", City: "Pune"}

const (
	emergencyReply = `{"summary":"Possible cardiac event","severity":9,"recommendation":"yes","red_flags":["chest pain"],"specialization_needed":"Cardiologist"}`
	routineReply   = `{"summary":"Mild irritation","severity":2,"recommendation":"no","specialization_needed":"Dermatologist"}`
)

var routineObs = []Observation{{Symptom: "fatigue", Intensity: 3}}

// workflowDeps collects the collaborators a test can override.
type workflowDeps struct {
	store     Store
	directory Directory
	analyze   Provider
	rank      Provider
	transport Transport
	uploads   string
}

func newTestWorkflow(t *testing.T, d workflowDeps) (*Workflow, *Metrics) {
	t.Helper()
	if d.store == nil {
		d.store = &mockStore{}
	}
	if d.directory == nil {
		d.directory = &stubDirectory{doctors: testDoctors}
	}
	if d.transport == nil {
		d.transport = &stubTransport{configured: true}
	}
	if d.uploads == "" {
		d.uploads = t.TempDir()
	}

	m := NewMetrics(prometheus.NewRegistry())
	analyzer := NewAnalyzer(d.analyze, time.Second, nil)
	matcher := NewMatcher(d.directory, d.rank, time.Second, nil)
	scheduler := NewScheduler(d.store, &prefixCipher{}, nil)
	dispatcher := NewDispatcher(d.transport, d.uploads, nil)
	return NewWorkflow(d.store, analyzer, matcher, scheduler, dispatcher, nil, m), m
}

func hasStage(log []string, substr string) bool {
	for _, s := range log {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func TestSubmit_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		patientID  string
		obs        []Observation
		mood       int
		wantSubstr string
	}{
		{"missing patient id", "", routineObs, 5, "missing patient id"},
		{"mood below range", "p1", routineObs, -1, "mood -1 out of range"},
		{"mood above range", "p1", routineObs, 11, "mood 11 out of range"},
		{"blank symptom", "p1", []Observation{{Symptom: "  ", Intensity: 3}}, 5, "has no symptom"},
		{"intensity above range", "p1", []Observation{{Symptom: "cough", Intensity: 12}}, 5, "intensity 12 out of range"},
		{"intensity below range", "p1", []Observation{{Symptom: "cough", Intensity: -1}}, 5, "intensity -1 out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, _ := newTestWorkflow(t, workflowDeps{analyze: &stubProvider{reply: routineReply}})

			_, err := w.Submit(context.Background(), tt.patientID, tt.obs, tt.mood, "")
			if !errors.Is(err, ErrInvalidSubmission) {
				t.Fatalf("err = %v, want ErrInvalidSubmission", err)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("err = %q, want substring %q", err, tt.wantSubstr)
			}
		})
	}
}

func TestSubmit_RoutinePath(t *testing.T) {
	t.Parallel()

	var recordedInput *SessionInput
	store := &mockStore{
		recordSession: func(_ context.Context, in *SessionInput) (*Session, error) {
			recordedInput = in
			return &Session{ID: in.ID, PatientID: in.PatientID}, nil
		},
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store, analyze: &stubProvider{reply: routineReply}})

	got, err := w.Submit(context.Background(), "p1", routineObs, 6, "itchy since yesterday")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.IsEmergency {
		t.Error("IsEmergency = true for severity 2")
	}
	if got.SessionID == "" {
		t.Error("SessionID is empty")
	}
	if got.Doctor != nil || got.Appointment != nil || got.Notification != nil {
		t.Errorf("routine path ran escalation: %+v", got)
	}
	for _, want := range []string{"analyzed", "gate: routine", "recorded", "completed"} {
		if !hasStage(got.StageLog, want) {
			t.Errorf("stage log missing %q: %v", want, got.StageLog)
		}
	}
	if recordedInput == nil {
		t.Fatal("session not recorded")
	}
	if recordedInput.Mood != 6 || recordedInput.FreeText != "itchy since yesterday" {
		t.Errorf("recorded input = %+v", recordedInput)
	}
	if recordedInput.IsEmergency {
		t.Error("recorded input marked emergency")
	}
}

func TestSubmit_EmergencyFullPath(t *testing.T) {
	t.Parallel()

	var recordedAppt *Appointment
	store := &mockStore{
		recordAppointment: func(_ context.Context, a *Appointment) error {
			recordedAppt = a
			return nil
		},
		patient: func(_ context.Context, id string) (*Patient, bool, error) {
			if id != "p1" {
				return nil, false, nil
			}
			return testPatient, true, nil
		},
	}
	tr := &stubTransport{configured: true}
	w, _ := newTestWorkflow(t, workflowDeps{
		store:     store,
		analyze:   &stubProvider{reply: emergencyReply},
		rank:      &stubProvider{reply: "2"},
		transport: tr,
	})

	got, err := w.Submit(context.Background(), "p1", testObs, 3, "sharp pain")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !got.IsEmergency {
		t.Fatal("IsEmergency = false for severity 9")
	}
	if got.Doctor == nil || got.Doctor.ID != "d2" {
		t.Fatalf("Doctor = %+v, want d2", got.Doctor)
	}
	if got.Appointment == nil {
		t.Fatal("Appointment is nil")
	}
	if got.Appointment.SessionID != got.SessionID {
		t.Errorf("appointment session = %q, want %q", got.Appointment.SessionID, got.SessionID)
	}
	if got.Notification == nil || !got.Notification.PatientSent || !got.Notification.DoctorSent {
		t.Errorf("Notification = %+v", got.Notification)
	}
	for _, want := range []string{
		"gate: emergency",
		"matched Dr. Meera Iyer (Cardiologist)",
		"scheduled for",
		"notified (patient=true doctor=true)",
		"completed",
	} {
		if !hasStage(got.StageLog, want) {
			t.Errorf("stage log missing %q: %v", want, got.StageLog)
		}
	}
	if recordedAppt == nil || recordedAppt.DoctorID != "d2" {
		t.Errorf("recorded appointment = %+v", recordedAppt)
	}
	if tr.sentTo("asha@example.com") == nil || tr.sentTo("meera@example.com") == nil {
		t.Error("both parties should have been mailed")
	}
}

func TestSubmit_RecordFailure(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		recordSession: func(context.Context, *SessionInput) (*Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	w, m := newTestWorkflow(t, workflowDeps{store: store, analyze: &stubProvider{reply: routineReply}})

	_, err := w.Submit(context.Background(), "p1", routineObs, 5, "")
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if pe.Op != "record session" {
		t.Errorf("Op = %q", pe.Op)
	}
	if got := testutil.ToFloat64(m.WorkflowsTotal.WithLabelValues("routine", "failed")); got != 1 {
		t.Errorf("failed workflow counter = %v, want 1", got)
	}
}

func TestSubmit_HeuristicFallback(t *testing.T) {
	t.Parallel()

	w, m := newTestWorkflow(t, workflowDeps{
		store: &mockStore{
			patient: func(context.Context, string) (*Patient, bool, error) { return testPatient, true, nil },
		},
		analyze: &stubProvider{err: errors.New("backend down")},
		rank:    &stubProvider{reply: "2"},
	})

	// Max intensity 9 makes this an emergency even without the backend.
	got, err := w.Submit(context.Background(), "p1", testObs, 5, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !got.Assessment.Heuristic {
		t.Error("Assessment.Heuristic = false after backend outage")
	}
	if !hasStage(got.StageLog, "analyzed (heuristic fallback)") {
		t.Errorf("stage log missing fallback marker: %v", got.StageLog)
	}
	if !got.IsEmergency {
		t.Error("IsEmergency = false, heuristic intensity 9 should escalate")
	}
	if count := testutil.ToFloat64(m.HeuristicFallbacks); count != 1 {
		t.Errorf("heuristic fallback counter = %v, want 1", count)
	}
}

func TestSubmit_HistoryLoadFailure(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		sessionsByPatient: func(context.Context, string, int) ([]Session, error) {
			return nil, errors.New("db timeout")
		},
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store, analyze: &stubProvider{reply: routineReply}})

	got, err := w.Submit(context.Background(), "p1", routineObs, 5, "")
	if err != nil {
		t.Fatalf("Submit should tolerate a history load failure: %v", err)
	}
	if got.SessionID == "" {
		t.Error("SessionID is empty")
	}
}

func TestSubmit_NoDoctors(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		patient: func(context.Context, string) (*Patient, bool, error) { return testPatient, true, nil },
	}
	w, _ := newTestWorkflow(t, workflowDeps{
		store:     store,
		directory: &stubDirectory{},
		analyze:   &stubProvider{reply: emergencyReply},
	})

	got, err := w.Submit(context.Background(), "p1", testObs, 5, "")
	if err != nil {
		t.Fatalf("empty directory must not fail the submission: %v", err)
	}
	if got.Doctor != nil || got.Appointment != nil {
		t.Errorf("result = %+v, want no doctor or appointment", got)
	}
	if !hasStage(got.StageLog, "no doctors available in Pune") {
		t.Errorf("stage log missing guidance: %v", got.StageLog)
	}
}

func TestSubmit_PatientLookupFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		patient func(context.Context, string) (*Patient, bool, error)
	}{
		{"lookup error", func(context.Context, string) (*Patient, bool, error) {
			return nil, false, errors.New("db down")
		}},
		{"patient missing", func(context.Context, string) (*Patient, bool, error) {
			return nil, false, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &mockStore{patient: tt.patient}
			w, _ := newTestWorkflow(t, workflowDeps{store: store, analyze: &stubProvider{reply: emergencyReply}})

			got, err := w.Submit(context.Background(), "p1", testObs, 5, "")
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if !hasStage(got.StageLog, "doctor matching unavailable") {
				t.Errorf("stage log = %v", got.StageLog)
			}
			if got.Doctor != nil {
				t.Error("no doctor should be matched without a patient record")
			}
		})
	}
}

func TestSubmit_SchedulingFailureAbsorbed(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		patient: func(context.Context, string) (*Patient, bool, error) { return testPatient, true, nil },
		recordAppointment: func(context.Context, *Appointment) error {
			return errors.New("unique violation")
		},
	}
	w, _ := newTestWorkflow(t, workflowDeps{
		store:   store,
		analyze: &stubProvider{reply: emergencyReply},
		rank:    &stubProvider{reply: "2"},
	})

	got, err := w.Submit(context.Background(), "p1", testObs, 5, "")
	if err != nil {
		t.Fatalf("scheduling failure must not fail the submission: %v", err)
	}
	if got.Doctor == nil {
		t.Error("matched doctor should survive a scheduling failure")
	}
	if got.Appointment != nil {
		t.Error("Appointment should be nil after a scheduling failure")
	}
	if !hasStage(got.StageLog, "scheduling unavailable; your session is recorded") {
		t.Errorf("stage log = %v", got.StageLog)
	}
}

func TestSubmit_NotificationsUnconfigured(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		patient: func(context.Context, string) (*Patient, bool, error) { return testPatient, true, nil },
	}
	w, _ := newTestWorkflow(t, workflowDeps{
		store:     store,
		analyze:   &stubProvider{reply: emergencyReply},
		rank:      &stubProvider{reply: "2"},
		transport: &stubTransport{configured: false},
	})

	got, err := w.Submit(context.Background(), "p1", testObs, 5, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Appointment == nil {
		t.Fatal("appointment should be scheduled regardless of mail configuration")
	}
	if !hasStage(got.StageLog, "notifications skipped: transport not configured") {
		t.Errorf("stage log = %v", got.StageLog)
	}
}

func TestSubmit_CancelledBeforeEscalation(t *testing.T) {
	t.Parallel()

	var recorded bool
	store := &mockStore{
		recordSession: func(_ context.Context, in *SessionInput) (*Session, error) {
			recorded = true
			return &Session{ID: in.ID, PatientID: in.PatientID}, nil
		},
		patient: func(context.Context, string) (*Patient, bool, error) { return testPatient, true, nil },
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store, analyze: &stubProvider{reply: emergencyReply}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := w.Submit(ctx, "p1", testObs, 5, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !recorded {
		t.Error("session must still be recorded after cancellation")
	}
	if got.Doctor != nil || got.Appointment != nil {
		t.Errorf("escalation ran under a cancelled context: %+v", got)
	}
	if !hasStage(got.StageLog, "cancelled: emergency escalation abandoned") {
		t.Errorf("stage log = %v", got.StageLog)
	}
}

func testSessionDetail(patientID string) *SessionDetail {
	return &SessionDetail{
		Session: Session{
			ID:            "sess-1",
			PatientID:     patientID,
			StartTime:     time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
			SeverityScore: 9,
			IsEmergency:   true,
			Summary:       "Possible cardiac event",
		},
		Mood:         3,
		Observations: testObs,
		ChatLog: []ChatEntry{
			{Sender: "patient", Message: "chest pain since morning", Intent: "symptom_report"},
			{Sender: "assistant", Message: "Possible cardiac event", Intent: "ai_summary"},
		},
	}
}

func TestBookAppointment_FullTail(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		session: func(_ context.Context, id string) (*SessionDetail, bool, error) {
			if id != "sess-1" {
				return nil, false, nil
			}
			return testSessionDetail("p1"), true, nil
		},
		patient: func(context.Context, string) (*Patient, bool, error) { return testPatient, true, nil },
	}
	w, _ := newTestWorkflow(t, workflowDeps{
		store: store,
		rank:  &stubProvider{reply: "2"},
	})

	got, err := w.BookAppointment(context.Background(), "p1", "sess-1")
	if err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}
	if got.Doctor == nil || got.Doctor.ID != "d2" {
		t.Fatalf("Doctor = %+v, want d2", got.Doctor)
	}
	if got.Appointment == nil || got.Appointment.SessionID != "sess-1" {
		t.Fatalf("Appointment = %+v", got.Appointment)
	}
	if got.Notification == nil || !got.Notification.PatientSent {
		t.Errorf("Notification = %+v", got.Notification)
	}
	if !hasStage(got.StageLog, "matched Dr. Meera Iyer") {
		t.Errorf("stage log = %v", got.StageLog)
	}
}

func TestBookAppointment_Ownership(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		session func(context.Context, string) (*SessionDetail, bool, error)
	}{
		{"session missing", nil},
		{"owned by another patient", func(context.Context, string) (*SessionDetail, bool, error) {
			return testSessionDetail("someone-else"), true, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &mockStore{session: tt.session}
			w, _ := newTestWorkflow(t, workflowDeps{store: store})

			_, err := w.BookAppointment(context.Background(), "p1", "sess-1")
			if !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("err = %v, want ErrSessionNotFound", err)
			}
		})
	}
}

func TestBookAppointment_PatientNotFound(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		session: func(context.Context, string) (*SessionDetail, bool, error) {
			return testSessionDetail("p1"), true, nil
		},
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store})

	_, err := w.BookAppointment(context.Background(), "p1", "sess-1")
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("err = %v, want ErrPatientNotFound", err)
	}
}

func TestBookAppointment_NoDoctorsSurfaces(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		session: func(context.Context, string) (*SessionDetail, bool, error) {
			return testSessionDetail("p1"), true, nil
		},
		patient: func(context.Context, string) (*Patient, bool, error) { return testPatient, true, nil },
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store, directory: &stubDirectory{}})

	_, err := w.BookAppointment(context.Background(), "p1", "sess-1")
	if !errors.Is(err, ErrNoDoctorsAvailable) {
		t.Fatalf("err = %v, want ErrNoDoctorsAvailable", err)
	}
}

func TestBookAppointment_ScheduleFailureSurfaces(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		session: func(context.Context, string) (*SessionDetail, bool, error) {
			return testSessionDetail("p1"), true, nil
		},
		patient: func(context.Context, string) (*Patient, bool, error) { return testPatient, true, nil },
		recordAppointment: func(context.Context, *Appointment) error {
			return errors.New("unique violation")
		},
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store, rank: &stubProvider{reply: "2"}})

	_, err := w.BookAppointment(context.Background(), "p1", "sess-1")
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if pe.Op != "record appointment" {
		t.Errorf("Op = %q", pe.Op)
	}
}

func TestSessionDetail_Ownership(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		session: func(context.Context, string) (*SessionDetail, bool, error) {
			return testSessionDetail("p1"), true, nil
		},
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store})

	got, err := w.SessionDetail(context.Background(), "p1", "sess-1")
	if err != nil {
		t.Fatalf("SessionDetail: %v", err)
	}
	if got.ID != "sess-1" || len(got.Observations) != 2 {
		t.Errorf("detail = %+v", got)
	}

	if _, err := w.SessionDetail(context.Background(), "p2", "sess-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("cross-patient read err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessions_Passthrough(t *testing.T) {
	t.Parallel()

	want := []Session{{ID: "a"}, {ID: "b"}}
	var gotLimit = -1
	store := &mockStore{
		sessionsByPatient: func(_ context.Context, patientID string, limit int) ([]Session, error) {
			if patientID != "p1" {
				t.Errorf("patientID = %q", patientID)
			}
			gotLimit = limit
			return want, nil
		},
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store})

	got, err := w.Sessions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("sessions = %+v", got)
	}
	if gotLimit != 0 {
		t.Errorf("limit = %d, want 0 (unlimited)", gotLimit)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		sessionsByPatient: func(_ context.Context, _ string, limit int) ([]Session, error) {
			if limit != 5 {
				t.Errorf("limit = %d, want 5", limit)
			}
			return []Session{{ID: "sess-1", PatientID: "p1"}}, nil
		},
		session: func(context.Context, string) (*SessionDetail, bool, error) {
			return testSessionDetail("p1"), true, nil
		},
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store})

	got, err := w.History(context.Background(), "p1", 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1", len(got))
	}
	if len(got[0].Observations) != 2 {
		t.Errorf("observations = %+v", got[0].Observations)
	}
}

func TestHistory_StoreFailure(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		sessionsByPatient: func(context.Context, string, int) ([]Session, error) {
			return nil, errors.New("db down")
		},
	}
	w, _ := newTestWorkflow(t, workflowDeps{store: store})

	_, err := w.History(context.Background(), "p1", 5)
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if pe.Op != "load history" {
		t.Errorf("Op = %q", pe.Op)
	}
}
