package symptom

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Matcher selects one doctor for a patient. The inference backend ranks
// candidates; any ranking failure falls back to deterministic selection
// so matching never fails for a non-empty candidate set.
type Matcher struct {
	directory Directory
	provider  Provider
	timeout   time.Duration
	logger    log.Logger
}

// NewMatcher creates a matcher. provider may be nil, in which case
// selection is always deterministic.
func NewMatcher(directory Directory, provider Provider, timeout time.Duration, logger log.Logger) *Matcher {
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Matcher{
		directory: directory,
		provider:  provider,
		timeout:   timeout,
		logger:    logger,
	}
}

// Match picks one candidate from the directory for the city. The
// specialization biases ranking but is not a hard filter. Fails with
// ErrNoDoctorsAvailable when the city has no candidates.
func (m *Matcher) Match(ctx context.Context, city, specialization string, obs []Observation) (*DoctorCandidate, error) {
	candidates, err := m.directory.FindDoctors(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("directory lookup for %q: %w", city, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDoctorsAvailable, city)
	}

	if idx, ok := m.rank(ctx, candidates, obs); ok {
		return &candidates[idx], nil
	}

	d := pickDeterministic(candidates, specialization)
	return d, nil
}

// rank asks the backend to pick a 1-based candidate index. Returns
// ok=false on backend failure, unparseable output or an out-of-range
// index.
func (m *Matcher) rank(ctx context.Context, candidates []DoctorCandidate, obs []Observation) (int, bool) {
	if m.provider == nil {
		return 0, false
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.provider.Complete(cctx, buildRankingPrompt(candidates, obs))
	if err != nil {
		m.logger.Warn(ctx, "doctor ranking failed, selecting deterministically", "error", err)
		return 0, false
	}

	n, err := strconv.Atoi(strings.TrimSpace(stripFences(raw)))
	if err != nil {
		m.logger.Warn(ctx, "unparseable ranking response, selecting deterministically", "response", raw)
		return 0, false
	}
	if n < 1 || n > len(candidates) {
		m.logger.Warn(ctx, "ranking index out of range, selecting deterministically", "index", n, "candidates", len(candidates))
		return 0, false
	}
	return n - 1, true
}

func buildRankingPrompt(candidates []DoctorCandidate, obs []Observation) string {
	var b strings.Builder

	b.WriteString("Select the best doctor for the patient and return only its number.\n\nDoctors:\n")
	for i, d := range candidates {
		fmt.Fprintf(&b, "%d. Dr. %s - %s (%s)\n", i+1, d.FullName, d.Specialization, d.ClinicName)
	}

	symptoms := make([]string, 0, len(obs))
	for _, o := range obs {
		symptoms = append(symptoms, o.Symptom)
	}
	fmt.Fprintf(&b, "\nSymptoms: %s\nReturn only the number.\n", strings.Join(symptoms, ", "))

	return b.String()
}

// pickDeterministic prefers the first exact specialization match, else
// the first candidate in directory order.
func pickDeterministic(candidates []DoctorCandidate, specialization string) *DoctorCandidate {
	for i := range candidates {
		if candidates[i].Specialization == specialization {
			return &candidates[i]
		}
	}
	return &candidates[0]
}

// specializationKeywords maps symptom fragments to the specialization
// that should handle them. Checked in order.
var specializationKeywords = []struct {
	fragment       string
	specialization string
}{
	{"chest pain", "Cardiologist"},
	{"heart", "Cardiologist"},
	{"headache", "Neurologist"},
	{"dizziness", "Neurologist"},
	{"confusion", "Neurologist"},
	{"rash", "Dermatologist"},
	{"skin", "Dermatologist"},
	{"nausea", "Gastroenterologist"},
	{"vomiting", "Gastroenterologist"},
	{"abdominal pain", "Gastroenterologist"},
	{"joint pain", "Orthopedist"},
	{"back pain", "Orthopedist"},
}

// SpecializationFor derives a needed specialization from raw symptom
// names, defaulting to General Practitioner.
func SpecializationFor(obs []Observation) string {
	for _, o := range obs {
		name := strings.ToLower(o.Symptom)
		for _, k := range specializationKeywords {
			if strings.Contains(name, k.fragment) {
				return k.specialization
			}
		}
	}
	return SpecGeneralPractitioner
}
