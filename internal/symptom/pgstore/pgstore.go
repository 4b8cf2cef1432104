// Package pgstore provides a PostgreSQL implementation of symptom.Store
// and symptom.Directory.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom"
)

var tracer = otel.Tracer("github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom/pgstore")

//go:embed schema.sql
var schema string

// Store persists sessions, appointments and the doctor directory in
// PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool's lifetime
// is owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const sessionColumns = `id, patient_id, start_time, severity_score, is_emergency, summary`

// RecordSession writes the session row, its transcript and its symptom
// entries in a single transaction.
func (s *Store) RecordSession(ctx context.Context, in *symptom.SessionInput) (*symptom.Session, error) {
	ctx, span := tracer.Start(ctx, "pgstore.RecordSession", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (id, patient_id, start_time, severity_score, is_emergency, summary, mood)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		in.ID, in.PatientID, in.StartTime, in.Assessment.SeverityScore, in.IsEmergency,
		in.Assessment.Summary, in.Mood,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("insert session: %w", err)
	}

	transcript := []symptom.ChatEntry{
		{Sender: "patient", Message: in.FreeText, Intent: "symptom_report", SentAt: in.StartTime},
		{Sender: "assistant", Message: in.Assessment.Summary, Intent: "ai_summary", SentAt: in.StartTime},
	}
	for _, e := range transcript {
		_, err = tx.Exec(ctx,
			`INSERT INTO chat_logs (session_id, sender, message, intent, sent_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			in.ID, e.Sender, e.Message, e.Intent, e.SentAt,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("insert chat log: %w", err)
		}
	}

	for i, o := range in.Observations {
		_, err = tx.Exec(ctx,
			`INSERT INTO symptom_entries (session_id, seq, symptom, intensity, notes, photo_ref)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			in.ID, i, o.Symptom, o.Intensity, o.Notes, o.PhotoRef,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("insert symptom entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &symptom.Session{
		ID:            in.ID,
		PatientID:     in.PatientID,
		StartTime:     in.StartTime,
		SeverityScore: in.Assessment.SeverityScore,
		IsEmergency:   in.IsEmergency,
		Summary:       in.Assessment.Summary,
	}, nil
}

// RecordAppointment inserts the appointment. The unique constraint on
// session_id rejects a second appointment for the same session.
func (s *Store) RecordAppointment(ctx context.Context, a *symptom.Appointment) error {
	ctx, span := tracer.Start(ctx, "pgstore.RecordAppointment", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments (id, patient_id, doctor_id, session_id, scheduled_at, location, status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.PatientID, a.DoctorID, a.SessionID, a.ScheduledAt, a.Location, a.Status, a.Notes,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// Session retrieves a session with its transcript and observations.
func (s *Store) Session(ctx context.Context, id string) (*symptom.SessionDetail, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Session", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + sessionColumns + `, mood FROM sessions WHERE id = $1`

	var d symptom.SessionDetail
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.PatientID, &d.StartTime, &d.SeverityScore, &d.IsEmergency, &d.Summary, &d.Mood,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("scan session: %w", err)
	}

	if err := s.loadTranscript(ctx, &d); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if err := s.loadObservations(ctx, &d); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	return &d, true, nil
}

// SessionsByPatient lists a patient's sessions, newest first. limit <= 0
// means all.
func (s *Store) SessionsByPatient(ctx context.Context, patientID string, limit int) ([]symptom.Session, error) {
	ctx, span := tracer.Start(ctx, "pgstore.SessionsByPatient", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE patient_id = $1 ORDER BY start_time DESC`
	args := []any{patientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []symptom.Session
	for rows.Next() {
		var sess symptom.Session
		if err := rows.Scan(&sess.ID, &sess.PatientID, &sess.StartTime, &sess.SeverityScore, &sess.IsEmergency, &sess.Summary); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Patient retrieves a patient record by ID.
func (s *Store) Patient(ctx context.Context, id string) (*symptom.Patient, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Patient", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var p symptom.Patient
	err := s.pool.QueryRow(ctx,
		`SELECT id, full_name, email, city FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.FullName, &p.Email, &p.City)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("scan patient: %w", err)
	}
	return &p, true, nil
}

// FindDoctors returns all doctors registered in a city.
func (s *Store) FindDoctors(ctx context.Context, city string) ([]symptom.DoctorCandidate, error) {
	ctx, span := tracer.Start(ctx, "pgstore.FindDoctors", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, full_name, specialization, clinic_name, city, contact_email
		 FROM doctors WHERE city = $1 ORDER BY full_name`, city,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	return scanDoctors(rows)
}

// AddDoctor registers a doctor candidate.
func (s *Store) AddDoctor(ctx context.Context, d *symptom.DoctorCandidate) error {
	ctx, span := tracer.Start(ctx, "pgstore.AddDoctor", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO doctors (id, full_name, specialization, clinic_name, city, contact_email)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.FullName, d.Specialization, d.ClinicName, d.City, d.ContactEmail,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

// ListDoctors returns every registered doctor.
func (s *Store) ListDoctors(ctx context.Context) ([]symptom.DoctorCandidate, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListDoctors", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, full_name, specialization, clinic_name, city, contact_email
		 FROM doctors ORDER BY full_name`,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	return scanDoctors(rows)
}

// UpsertPatient inserts or refreshes a patient record. Used by seeding
// and account provisioning.
func (s *Store) UpsertPatient(ctx context.Context, p *symptom.Patient) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpsertPatient", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO patients (id, full_name, email, city) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email     = EXCLUDED.email,
			city      = EXCLUDED.city`,
		p.ID, p.FullName, p.Email, p.City,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert patient: %w", err)
	}
	return nil
}

func (s *Store) loadTranscript(ctx context.Context, d *symptom.SessionDetail) error {
	rows, err := s.pool.Query(ctx,
		`SELECT sender, message, intent, sent_at FROM chat_logs WHERE session_id = $1 ORDER BY id`,
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("query chat logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e symptom.ChatEntry
		if err := rows.Scan(&e.Sender, &e.Message, &e.Intent, &e.SentAt); err != nil {
			return fmt.Errorf("scan chat log: %w", err)
		}
		d.ChatLog = append(d.ChatLog, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate chat logs: %w", err)
	}
	return nil
}

func (s *Store) loadObservations(ctx context.Context, d *symptom.SessionDetail) error {
	rows, err := s.pool.Query(ctx,
		`SELECT symptom, intensity, notes, photo_ref FROM symptom_entries WHERE session_id = $1 ORDER BY seq`,
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("query symptom entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o symptom.Observation
		if err := rows.Scan(&o.Symptom, &o.Intensity, &o.Notes, &o.PhotoRef); err != nil {
			return fmt.Errorf("scan symptom entry: %w", err)
		}
		d.Observations = append(d.Observations, o)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate symptom entries: %w", err)
	}
	return nil
}

func scanDoctors(rows pgx.Rows) ([]symptom.DoctorCandidate, error) {
	var out []symptom.DoctorCandidate
	for rows.Next() {
		var d symptom.DoctorCandidate
		if err := rows.Scan(&d.ID, &d.FullName, &d.Specialization, &d.ClinicName, &d.City, &d.ContactEmail); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate doctors: %w", err)
	}
	return out, nil
}
