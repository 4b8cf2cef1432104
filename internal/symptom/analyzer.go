package symptom

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// DefaultInferenceTimeout bounds a single inference backend call so an
// unresponsive backend cannot stall session recording.
const DefaultInferenceTimeout = 8 * time.Second

// Analyzer turns observations plus free text into an Assessment. It
// never fails outward: on backend error, timeout or unparseable output
// it substitutes a deterministic heuristic.
type Analyzer struct {
	provider Provider
	timeout  time.Duration
	logger   log.Logger
}

// NewAnalyzer creates an analyzer. A non-positive timeout falls back to
// DefaultInferenceTimeout.
func NewAnalyzer(provider Provider, timeout time.Duration, logger log.Logger) *Analyzer {
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Analyzer{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Analyze produces an Assessment for the submission. priorContext, when
// present, influences wording only; only the current submission
// determines severity.
func (a *Analyzer) Analyze(ctx context.Context, obs []Observation, freeText, priorContext string) Assessment {
	if a.provider == nil {
		return heuristicAssessment(obs)
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.provider.Complete(cctx, buildAnalysisPrompt(obs, freeText, priorContext))
	if err != nil {
		a.logger.Warn(ctx, "inference backend failed, using heuristic assessment", "error", err)
		return heuristicAssessment(obs)
	}

	assessment, err := parseAssessment(raw)
	if err != nil {
		a.logger.Warn(ctx, "unparseable assessment response, using heuristic assessment", "error", err)
		return heuristicAssessment(obs)
	}
	return assessment
}

// buildAnalysisPrompt renders the observation list and free text into
// the instruction the backend answers with a JSON assessment.
func buildAnalysisPrompt(obs []Observation, freeText, priorContext string) string {
	var b strings.Builder

	b.WriteString(`Analyze the patient's symptoms and return JSON with exactly these fields:
{"summary": "...", "severity": 0-10, "recommendation": "yes/no", "red_flags": [], "suggested_actions": [], "specialization_needed": "..."}

Symptoms:
`)
	for _, o := range obs {
		fmt.Fprintf(&b, "- %s: intensity %d/10\n", o.Symptom, o.Intensity)
		if o.Notes != "" {
			fmt.Fprintf(&b, "  notes: %s\n", o.Notes)
		}
	}

	fmt.Fprintf(&b, "\nDescription: %s\n", freeText)

	if priorContext != "" {
		b.WriteString("\nPrior sessions (context for wording only - score ONLY the current symptoms):\n")
		b.WriteString(priorContext)
		b.WriteString("\n")
	}

	return b.String()
}

// assessmentWire is the JSON shape the backend is asked to produce.
type assessmentWire struct {
	Summary          string   `json:"summary"`
	Severity         float64  `json:"severity"`
	Recommendation   string   `json:"recommendation"`
	RedFlags         []string `json:"red_flags"`
	SuggestedActions []string `json:"suggested_actions"`
	Specialization   string   `json:"specialization_needed"`
}

// parseAssessment decodes a backend response. Responses are frequently
// wrapped in markdown code fences which are stripped before decoding.
func parseAssessment(raw string) (Assessment, error) {
	text := stripFences(raw)

	var w assessmentWire
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return Assessment{}, fmt.Errorf("decode assessment: %w", err)
	}

	spec := strings.TrimSpace(w.Specialization)
	if spec == "" {
		spec = SpecGeneralPractitioner
	}

	return Assessment{
		Summary:           w.Summary,
		SeverityScore:     clampSeverity(w.Severity),
		RecommendFollowUp: strings.EqualFold(strings.TrimSpace(w.Recommendation), "yes"),
		RedFlags:          w.RedFlags,
		SuggestedActions:  w.SuggestedActions,
		Specialization:    spec,
	}, nil
}

// heuristicAssessment is the deterministic substitute when the backend
// is unavailable: severity equals the maximum observed intensity.
func heuristicAssessment(obs []Observation) Assessment {
	maxI := maxIntensity(obs)

	var redFlags []string
	for _, o := range obs {
		if o.Intensity >= 8 {
			redFlags = append(redFlags, o.Symptom)
		}
	}

	return Assessment{
		Summary:           fmt.Sprintf("%d symptoms reported", len(obs)),
		SeverityScore:     float64(maxI),
		RecommendFollowUp: maxI >= 8,
		RedFlags:          redFlags,
		Specialization:    SpecGeneralPractitioner,
		Heuristic:         true,
	}
}

func clampSeverity(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}

// stripFences removes a leading/trailing markdown code fence, with or
// without a json language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
