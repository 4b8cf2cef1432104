// Package symptom implements the triage workflow for self-reported
// patient symptoms: severity analysis, emergency gating, session
// recording, doctor matching, appointment scheduling and notification.
package symptom
