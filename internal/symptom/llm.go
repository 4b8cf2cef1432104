package symptom

import "context"

// Provider is the interface for the inference backend: prompt in, raw
// text out. It may fail or return malformed output; callers own the
// fallback.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
