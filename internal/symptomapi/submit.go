package symptomapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/authmw"
	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom"
)

type submitRequest struct {
	Symptoms    []symptom.Observation `json:"symptoms"`
	Mood        int                   `json:"mood"`
	Description string                `json:"description"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	patientID, ok := authmw.PatientID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no patient identity"})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("symptom.patient_id", patientID),
		attribute.Int("symptom.observation_count", len(req.Symptoms)),
	)

	result, err := a.svc.Submit(r.Context(), patientID, req.Symptoms, req.Mood, req.Description)
	if err != nil {
		a.writeError(w, r, err, "submission failed")
		return
	}

	span.SetAttributes(
		attribute.String("symptom.session_id", result.SessionID),
		attribute.Bool("symptom.emergency", result.IsEmergency),
	)

	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	patientID, ok := authmw.PatientID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no patient identity"})
		return
	}
	sessionID := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("symptom.session_id", sessionID))

	result, err := a.svc.BookAppointment(r.Context(), patientID, sessionID)
	if err != nil {
		a.writeError(w, r, err, "manual booking failed")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
