package symptom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/linnemanlabs/go-core/log"
)

// NotifyContext carries everything the dispatcher needs to build the
// patient confirmation and the doctor alert.
type NotifyContext struct {
	Patient        *Patient
	Doctor         *DoctorCandidate
	Appointment    *Appointment
	SymptomSummary string
	PhotoRefs      []string
}

// Dispatcher sends the two appointment mails. It never fails the
// workflow: outcomes are reported as per-recipient booleans and an
// optional error string.
type Dispatcher struct {
	transport  Transport
	uploadsDir string
	logger     log.Logger
}

// NewDispatcher creates a dispatcher. transport may be nil (delivery
// disabled); uploadsDir is where photo references resolve to files.
func NewDispatcher(transport Transport, uploadsDir string, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		transport:  transport,
		uploadsDir: uploadsDir,
		logger:     logger,
	}
}

// Notify attempts both sends. The sends are independent: they run
// concurrently and the failure of one never prevents the other.
func (d *Dispatcher) Notify(ctx context.Context, nc *NotifyContext) NotificationOutcome {
	if d.transport == nil || !d.transport.Configured() {
		return NotificationOutcome{Error: "not configured"}
	}

	patientMail := &Mail{
		To:       nc.Patient.Email,
		Subject:  "Appointment Confirmation",
		HTMLBody: patientBody(nc),
	}
	doctorMail := &Mail{
		To:          nc.Doctor.ContactEmail,
		Subject:     "New Patient Appointment",
		HTMLBody:    doctorBody(nc),
		Attachments: d.loadAttachments(ctx, nc.PhotoRefs),
	}

	var (
		wg                    sync.WaitGroup
		patientErr, doctorErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		patientErr = d.transport.Send(ctx, patientMail)
	}()
	go func() {
		defer wg.Done()
		doctorErr = d.transport.Send(ctx, doctorMail)
	}()
	wg.Wait()

	out := NotificationOutcome{
		PatientSent: patientErr == nil,
		DoctorSent:  doctorErr == nil,
	}

	var errs []string
	if patientErr != nil {
		d.logger.Warn(ctx, "patient notification failed", "error", patientErr)
		errs = append(errs, fmt.Sprintf("patient: %v", patientErr))
	}
	if doctorErr != nil {
		d.logger.Warn(ctx, "doctor notification failed", "error", doctorErr)
		errs = append(errs, fmt.Sprintf("doctor: %v", doctorErr))
	}
	out.Error = strings.Join(errs, "; ")

	return out
}

// loadAttachments reads photo files referenced by the submission.
// Missing or unreadable files are skipped: attachments are best-effort
// and must never abort a send.
func (d *Dispatcher) loadAttachments(ctx context.Context, refs []string) []Attachment {
	var out []Attachment
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		name := filepath.Base(ref)
		data, err := os.ReadFile(filepath.Join(d.uploadsDir, name))
		if err != nil {
			d.logger.Warn(ctx, "skipping unreadable photo attachment", "ref", ref, "error", err)
			continue
		}
		out = append(out, Attachment{Filename: name, Data: data})
	}
	return out
}

func patientBody(nc *NotifyContext) string {
	return fmt.Sprintf(
		"<html><body><h2>Appointment Confirmed</h2><p>Dear %s,</p><p>Doctor: Dr. %s</p><p>Clinic: %s</p><p>Date: %s</p></body></html>",
		nc.Patient.FullName,
		nc.Doctor.FullName,
		nc.Appointment.Location,
		nc.Appointment.ScheduledAt.Format("January 2, 2006 at 3:04 PM"),
	)
}

func doctorBody(nc *NotifyContext) string {
	return fmt.Sprintf(
		"<html><body><h2>New Appointment</h2><p>Dear Dr. %s,</p><p>Patient: %s</p><p>Date: %s</p><p>Symptoms: %s</p></body></html>",
		nc.Doctor.FullName,
		nc.Patient.FullName,
		nc.Appointment.ScheduledAt.Format("January 2, 2006 at 3:04 PM"),
		nc.SymptomSummary,
	)
}
