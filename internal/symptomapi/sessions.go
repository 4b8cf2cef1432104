package symptomapi

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/authmw"
	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom"
)

// defaultHistoryLimit bounds /symptoms/history when no limit is given.
const defaultHistoryLimit = 20

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	patientID, ok := authmw.PatientID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no patient identity"})
		return
	}

	sessions, err := a.svc.Sessions(r.Context(), patientID)
	if err != nil {
		a.writeError(w, r, err, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []symptom.Session{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	patientID, ok := authmw.PatientID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no patient identity"})
		return
	}
	sessionID := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("symptom.session_id", sessionID))

	detail, err := a.svc.SessionDetail(r.Context(), patientID, sessionID)
	if err != nil {
		a.writeError(w, r, err, "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	patientID, ok := authmw.PatientID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no patient identity"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := a.svc.History(r.Context(), patientID, limit)
	if err != nil {
		a.writeError(w, r, err, "failed to load history")
		return
	}
	if entries == nil {
		entries = []symptom.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}
