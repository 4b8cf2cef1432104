// Package symptomapi exposes the triage workflow over HTTP.
package symptomapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom"
)

// WorkflowService defines the business operations symptomapi needs.
type WorkflowService interface {
	Submit(ctx context.Context, patientID string, obs []symptom.Observation, mood int, freeText string) (*symptom.WorkflowResult, error)
	BookAppointment(ctx context.Context, patientID, sessionID string) (*symptom.BookingResult, error)
	Sessions(ctx context.Context, patientID string) ([]symptom.Session, error)
	SessionDetail(ctx context.Context, patientID, sessionID string) (*symptom.SessionDetail, error)
	History(ctx context.Context, patientID string, limit int) ([]symptom.HistoryEntry, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	svc       WorkflowService
	directory symptom.Directory
}

// New creates a new API handler.
func New(logger log.Logger, svc WorkflowService, directory symptom.Directory) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("workflow service is required"))
	}
	if directory == nil {
		panic(xerrors.New("doctor directory is required"))
	}
	return &API{
		logger:    logger,
		svc:       svc,
		directory: directory,
	}
}

// RegisterRoutes attaches API endpoints to the router. Patient routes
// require a patient token; admin routes require the admin token.
func (a *API) RegisterRoutes(r chi.Router, patientAuth, adminAuth func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(patientAuth)
			r.Post("/symptoms/submit", a.handleSubmit)
			r.Get("/symptoms/history", a.handleHistory)
			r.Get("/sessions", a.handleListSessions)
			r.Get("/sessions/{id}", a.handleGetSession)
			r.Post("/sessions/{id}/book-appointment", a.handleBookAppointment)
		})
		r.Group(func(r chi.Router) {
			r.Use(adminAuth)
			r.Post("/admin/doctors", a.handleAddDoctor)
			r.Get("/admin/doctors", a.handleListDoctors)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, symptom.ErrInvalidSubmission):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, symptom.ErrSessionNotFound), errors.Is(err, symptom.ErrPatientNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, symptom.ErrNoDoctorsAvailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		a.logger.Error(r.Context(), err, msg)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
