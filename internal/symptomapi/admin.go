package symptomapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom"
)

type addDoctorRequest struct {
	FullName       string `json:"full_name"`
	Specialization string `json:"specialization"`
	ClinicName     string `json:"clinic_name"`
	City           string `json:"city"`
	ContactEmail   string `json:"contact_email"`
}

func (a *API) handleAddDoctor(w http.ResponseWriter, r *http.Request) {
	var req addDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.City) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "full_name and city are required"})
		return
	}
	if req.Specialization == "" {
		req.Specialization = symptom.SpecGeneralPractitioner
	}

	doctor := &symptom.DoctorCandidate{
		ID:             ulid.Make().String(),
		FullName:       req.FullName,
		Specialization: req.Specialization,
		ClinicName:     req.ClinicName,
		City:           req.City,
		ContactEmail:   req.ContactEmail,
	}
	if err := a.directory.AddDoctor(r.Context(), doctor); err != nil {
		a.writeError(w, r, err, "failed to add doctor")
		return
	}

	writeJSON(w, http.StatusCreated, doctor)
}

func (a *API) handleListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := a.directory.ListDoctors(r.Context())
	if err != nil {
		a.writeError(w, r, err, "failed to list doctors")
		return
	}
	if doctors == nil {
		doctors = []symptom.DoctorCandidate{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
}
