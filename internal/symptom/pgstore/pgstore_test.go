package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/postgres"
	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom"
	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("TRACKER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TRACKER_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func sampleInput(patientID string) *symptom.SessionInput {
	now := time.Now().Truncate(time.Microsecond).UTC()
	return &symptom.SessionInput{
		ID:        ulid.Make().String(),
		PatientID: patientID,
		StartTime: now,
		Observations: []symptom.Observation{
			{Symptom: "chest pain", Intensity: 9, Notes: "radiating to left arm"},
			{Symptom: "shortness of breath", Intensity: 7, PhotoRef: "uploads/sob.jpg"},
		},
		Mood:     3,
		FreeText: "chest pain since this morning",
		Assessment: symptom.Assessment{
			Summary:        "Possible cardiac event",
			SeverityScore:  9,
			Specialization: "Cardiologist",
		},
		IsEmergency: true,
	}
}

func TestRecordAndLoadSession(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	in := sampleInput(ulid.Make().String())
	sess, err := s.RecordSession(ctx, in)
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}
	if sess.ID != in.ID {
		t.Errorf("session ID = %q, want %q", sess.ID, in.ID)
	}
	if !sess.IsEmergency {
		t.Error("IsEmergency = false, want true")
	}

	got, ok, err := s.Session(ctx, in.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if !ok {
		t.Fatal("Session returned ok=false, want true")
	}
	if got.PatientID != in.PatientID {
		t.Errorf("PatientID = %q, want %q", got.PatientID, in.PatientID)
	}
	if got.Summary != "Possible cardiac event" {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.Mood != 3 {
		t.Errorf("Mood = %d, want 3", got.Mood)
	}
	if len(got.Observations) != 2 {
		t.Fatalf("Observations = %d, want 2", len(got.Observations))
	}
	if got.Observations[0].Symptom != "chest pain" || got.Observations[0].Intensity != 9 {
		t.Errorf("first observation = %+v", got.Observations[0])
	}
	if got.Observations[1].PhotoRef != "uploads/sob.jpg" {
		t.Errorf("second observation photo ref = %q", got.Observations[1].PhotoRef)
	}
	if len(got.ChatLog) != 2 {
		t.Fatalf("ChatLog = %d entries, want 2", len(got.ChatLog))
	}
	if got.ChatLog[0].Sender != "patient" || got.ChatLog[0].Intent != "symptom_report" {
		t.Errorf("first chat entry = %+v", got.ChatLog[0])
	}
	if got.ChatLog[1].Sender != "assistant" || got.ChatLog[1].Message != "Possible cardiac event" {
		t.Errorf("second chat entry = %+v", got.ChatLog[1])
	}
}

func TestSessionNotFound(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Session(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if ok {
		t.Error("Session returned ok=true for missing row")
	}
}

func TestSessionsByPatient_OrderAndLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	patientID := ulid.Make().String()
	base := time.Now().Truncate(time.Microsecond).UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		in := sampleInput(patientID)
		in.StartTime = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.RecordSession(ctx, in); err != nil {
			t.Fatalf("RecordSession %d: %v", i, err)
		}
		ids = append(ids, in.ID)
	}

	got, err := s.SessionsByPatient(ctx, patientID, 2)
	if err != nil {
		t.Fatalf("SessionsByPatient: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sessions, want 2", len(got))
	}
	if got[0].ID != ids[2] || got[1].ID != ids[1] {
		t.Errorf("order mismatch: got [%s %s], want [%s %s]", got[0].ID, got[1].ID, ids[2], ids[1])
	}
}

func TestRecordAppointment_OnePerSession(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	in := sampleInput(ulid.Make().String())
	if _, err := s.RecordSession(ctx, in); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	appt := &symptom.Appointment{
		ID:          ulid.Make().String(),
		PatientID:   in.PatientID,
		DoctorID:    ulid.Make().String(),
		SessionID:   in.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour).Truncate(time.Microsecond).UTC(),
		Location:    "City Cardiac Clinic",
		Status:      symptom.StatusConfirmed,
		Notes:       []byte{0x01, 0x02, 0x03},
	}
	if err := s.RecordAppointment(ctx, appt); err != nil {
		t.Fatalf("RecordAppointment: %v", err)
	}

	dup := *appt
	dup.ID = ulid.Make().String()
	if err := s.RecordAppointment(ctx, &dup); err == nil {
		t.Error("second appointment for same session succeeded, want unique violation")
	}
}

func TestPatientRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	p := &symptom.Patient{
		ID:       ulid.Make().String(),
		FullName: "Asha Rao",
		Email:    "asha@example.com",
		City:     "Pune",
	}
	if err := s.UpsertPatient(ctx, p); err != nil {
		t.Fatalf("UpsertPatient: %v", err)
	}

	got, ok, err := s.Patient(ctx, p.ID)
	if err != nil {
		t.Fatalf("Patient: %v", err)
	}
	if !ok {
		t.Fatal("Patient returned ok=false, want true")
	}
	if got.FullName != p.FullName || got.City != p.City {
		t.Errorf("patient = %+v, want %+v", got, p)
	}

	p.City = "Mumbai"
	if err := s.UpsertPatient(ctx, p); err != nil {
		t.Fatalf("UpsertPatient update: %v", err)
	}
	got, _, err = s.Patient(ctx, p.ID)
	if err != nil {
		t.Fatalf("Patient after update: %v", err)
	}
	if got.City != "Mumbai" {
		t.Errorf("City after upsert = %q, want Mumbai", got.City)
	}
}

func TestDoctorDirectory(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	city := "test-city-" + ulid.Make().String()
	d := &symptom.DoctorCandidate{
		ID:             ulid.Make().String(),
		FullName:       "Meera Iyer",
		Specialization: "Cardiologist",
		ClinicName:     "Heart Care Center",
		City:           city,
		ContactEmail:   "meera@example.com",
	}
	if err := s.AddDoctor(ctx, d); err != nil {
		t.Fatalf("AddDoctor: %v", err)
	}

	got, err := s.FindDoctors(ctx, city)
	if err != nil {
		t.Fatalf("FindDoctors: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("FindDoctors returned %d doctors, want 1", len(got))
	}
	if got[0].ClinicName != "Heart Care Center" {
		t.Errorf("ClinicName = %q", got[0].ClinicName)
	}

	none, err := s.FindDoctors(ctx, "no-such-city-"+ulid.Make().String())
	if err != nil {
		t.Fatalf("FindDoctors empty city: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("FindDoctors for empty city returned %d doctors", len(none))
	}
}
