// Package memstore provides in-memory implementations of symptom.Store
// and symptom.Directory. Suitable for dev/testing.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom"
)

// Store holds sessions, patients, doctors and appointments in memory.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*symptom.SessionDetail // session ID -> detail
	patients     map[string]*symptom.Patient       // patient ID -> record
	appointments map[string]*symptom.Appointment   // session ID -> appointment
	doctors      []symptom.DoctorCandidate

	failRecord bool // fault injection for tests
}

// New initializes an empty in-memory Store.
func New() *Store {
	return &Store{
		sessions:     make(map[string]*symptom.SessionDetail),
		patients:     make(map[string]*symptom.Patient),
		appointments: make(map[string]*symptom.Appointment),
	}
}

// FailNextRecord makes subsequent RecordSession calls fail, simulating
// a storage outage.
func (s *Store) FailNextRecord(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRecord = fail
}

// AddPatient seeds a patient record.
func (s *Store) AddPatient(p *symptom.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.patients[p.ID] = &cp
}

// RecordSession stores the session, transcript and observations as one
// unit. All-or-nothing holds trivially under the lock.
func (s *Store) RecordSession(_ context.Context, in *symptom.SessionInput) (*symptom.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRecord {
		return nil, fmt.Errorf("memstore: record failure injected")
	}
	if _, exists := s.sessions[in.ID]; exists {
		return nil, fmt.Errorf("memstore: session %s already recorded", in.ID)
	}

	sess := symptom.Session{
		ID:            in.ID,
		PatientID:     in.PatientID,
		StartTime:     in.StartTime,
		SeverityScore: in.Assessment.SeverityScore,
		IsEmergency:   in.IsEmergency,
		Summary:       in.Assessment.Summary,
	}

	detail := &symptom.SessionDetail{
		Session:      sess,
		Mood:         in.Mood,
		Observations: append([]symptom.Observation(nil), in.Observations...),
		ChatLog: []symptom.ChatEntry{
			{Sender: "patient", Message: in.FreeText, Intent: "symptom_report", SentAt: in.StartTime},
			{Sender: "assistant", Message: in.Assessment.Summary, Intent: "ai_summary", SentAt: in.StartTime},
		},
	}
	s.sessions[in.ID] = detail

	cp := sess
	return &cp, nil
}

// RecordAppointment stores the appointment, enforcing at most one per
// session.
func (s *Store) RecordAppointment(_ context.Context, a *symptom.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.appointments[a.SessionID]; exists {
		return fmt.Errorf("memstore: session %s already has an appointment", a.SessionID)
	}
	if _, exists := s.sessions[a.SessionID]; !exists {
		return fmt.Errorf("memstore: session %s not recorded", a.SessionID)
	}
	cp := *a
	s.appointments[a.SessionID] = &cp
	return nil
}

// Session retrieves a session with transcript and observations. Returns
// a copy.
func (s *Store) Session(_ context.Context, id string) (*symptom.SessionDetail, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.sessions[id]
	if !ok {
		return nil, false, nil
	}
	cp := *d
	cp.Observations = append([]symptom.Observation(nil), d.Observations...)
	cp.ChatLog = append([]symptom.ChatEntry(nil), d.ChatLog...)
	return &cp, true, nil
}

// SessionsByPatient lists a patient's sessions, newest first. limit <= 0
// means all.
func (s *Store) SessionsByPatient(_ context.Context, patientID string, limit int) ([]symptom.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []symptom.Session
	for _, d := range s.sessions {
		if d.PatientID == patientID {
			out = append(out, d.Session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Patient retrieves a patient record. Returns a copy.
func (s *Store) Patient(_ context.Context, id string) (*symptom.Patient, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patients[id]
	if !ok {
		return nil, false, nil
	}
	cp := *p
	return &cp, true, nil
}

// Appointment returns the appointment recorded for a session, if any.
func (s *Store) Appointment(sessionID string) (*symptom.Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[sessionID]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// FindDoctors returns all doctors in a city in insertion order.
func (s *Store) FindDoctors(_ context.Context, city string) ([]symptom.DoctorCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []symptom.DoctorCandidate
	for _, d := range s.doctors {
		if d.City == city {
			out = append(out, d)
		}
	}
	return out, nil
}

// AddDoctor registers a doctor candidate.
func (s *Store) AddDoctor(_ context.Context, d *symptom.DoctorCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors = append(s.doctors, *d)
	return nil
}

// ListDoctors returns all doctors in insertion order.
func (s *Store) ListDoctors(_ context.Context) ([]symptom.DoctorCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]symptom.DoctorCandidate(nil), s.doctors...), nil
}
