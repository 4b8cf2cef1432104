package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds            int
	ShutdownBudgetSeconds   int
	APIPort                 int
	DatabaseURL             string
	GeminiAPIKey            string
	GeminiModel             string
	GeminiAPIBase           string
	InferenceTimeoutSeconds int
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	SMTPFrom                string
	NotesKey                string
	PatientTokenSecret      string
	AdminToken              string
	UploadsDir              string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.GeminiAPIKey, "gemini-api-key", "", "API key for the Gemini inference backend")
	fs.StringVar(&c.GeminiModel, "gemini-model", "gemini-2.0-flash", "Gemini model to use")
	fs.StringVar(&c.GeminiAPIBase, "gemini-api-base", "", "Gemini API base URL (empty = production endpoint)")
	fs.IntVar(&c.InferenceTimeoutSeconds, "inference-timeout-seconds", 8, "per-call inference timeout in seconds (1..120)")
	fs.StringVar(&c.SMTPHost, "smtp-host", "", "SMTP relay host for notifications (empty = notifications disabled)")
	fs.IntVar(&c.SMTPPort, "smtp-port", 587, "SMTP relay port")
	fs.StringVar(&c.SMTPUsername, "smtp-username", "", "SMTP relay username")
	fs.StringVar(&c.SMTPPassword, "smtp-password", "", "SMTP relay password")
	fs.StringVar(&c.SMTPFrom, "smtp-from", "", "sender address for notification mail")
	fs.StringVar(&c.NotesKey, "notes-key", "", "secret used to encrypt appointment notes at rest")
	fs.StringVar(&c.PatientTokenSecret, "patient-token-secret", "", "HS256 secret for patient bearer tokens")
	fs.StringVar(&c.AdminToken, "admin-token", "", "static bearer token for admin endpoints")
	fs.StringVar(&c.UploadsDir, "uploads-dir", "uploads", "directory holding patient-uploaded symptom photos")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Gemini credentials are required; the heuristic fallback covers
	// runtime outages, not a missing backend.
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.GeminiModel == "" {
		errs = append(errs, errors.New("GEMINI_MODEL is required"))
	}

	if c.InferenceTimeoutSeconds <= 0 || c.InferenceTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid INFERENCE_TIMEOUT_SECONDS %d (must be 1..120)", c.InferenceTimeoutSeconds))
	}

	// SMTP is optional as a whole, but an enabled relay needs a valid
	// port and sender.
	if c.SMTPHost != "" {
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid SMTP_PORT %d (must be 1..65535)", c.SMTPPort))
		}
		if c.SMTPFrom == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
		}
	}

	if c.NotesKey == "" {
		errs = append(errs, errors.New("NOTES_KEY is required"))
	}
	if c.PatientTokenSecret == "" {
		errs = append(errs, errors.New("PATIENT_TOKEN_SECRET is required"))
	}
	if c.AdminToken == "" {
		errs = append(errs, errors.New("ADMIN_TOKEN is required"))
	}
	if c.UploadsDir == "" {
		errs = append(errs, errors.New("UPLOADS_DIR is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
