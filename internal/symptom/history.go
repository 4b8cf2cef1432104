package symptom

import (
	"fmt"
	"strings"
	"time"
)

// Prior-context windows, measured back from the most recent session.
const (
	currentWindow  = 12 * time.Hour
	previousWindow = 24 * time.Hour
)

// maxContextSessions caps how many past sessions feed the prompt.
const maxContextSessions = 5

// BuildPriorContext renders recent sessions into a prompt fragment.
// Sessions within 12 hours of the newest one form the current window,
// sessions 12 to 24 hours back form the previous window; older sessions
// are dropped. The fragment influences wording only, never scoring.
func BuildPriorContext(sessions []Session) string {
	if len(sessions) == 0 {
		return ""
	}

	newest := sessions[0].StartTime
	for _, s := range sessions[1:] {
		if s.StartTime.After(newest) {
			newest = s.StartTime
		}
	}

	var current, previous []Session
	for _, s := range sessions {
		age := newest.Sub(s.StartTime)
		switch {
		case age <= currentWindow:
			current = append(current, s)
		case age <= previousWindow:
			previous = append(previous, s)
		}
	}

	var b strings.Builder
	writeBucket(&b, "Recent sessions (last 12h):", current)
	writeBucket(&b, "Earlier sessions (12-24h ago):", previous)
	return strings.TrimSpace(b.String())
}

func writeBucket(b *strings.Builder, heading string, sessions []Session) {
	if len(sessions) == 0 {
		return
	}
	b.WriteString(heading)
	b.WriteString("\n")
	for i, s := range sessions {
		if i >= maxContextSessions {
			break
		}
		fmt.Fprintf(b, "- %s severity %.1f: %s\n", s.StartTime.Format(time.RFC3339), s.SeverityScore, s.Summary)
	}
}
