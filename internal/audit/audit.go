// Package audit records the gateway's security-relevant events:
// classification outcomes, permission denials, and connection retries.
package audit

import (
	"github.com/rs/zerolog"

	"github.com/sfmcp/snowflake-mcp/internal/classify"
)

// Sink receives audit events. Implementations must be safe for
// concurrent use.
type Sink interface {
	// Classified records the kind assigned to a statement and whether the
	// gate let it through.
	Classified(kind classify.Kind, allowed bool)
	// Denied records a gate denial with its operator-facing reason.
	Denied(kind classify.Kind, reason string)
	// Retried records how many connection attempts a request consumed
	// beyond the first.
	Retried(attempts int)
}

// LogSink writes audit events through zerolog.
type LogSink struct {
	Logger zerolog.Logger
}

func (s *LogSink) Classified(kind classify.Kind, allowed bool) {
	s.Logger.Info().
		Str("kind", string(kind)).
		Bool("allowed", allowed).
		Msg("statement classified")
}

func (s *LogSink) Denied(kind classify.Kind, reason string) {
	s.Logger.Warn().
		Str("kind", string(kind)).
		Str("reason", reason).
		Msg("statement denied")
}

func (s *LogSink) Retried(attempts int) {
	s.Logger.Warn().
		Int("retries", attempts).
		Msg("connection retried")
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Classified(classify.Kind, bool) {}
func (NopSink) Denied(classify.Kind, string)   {}
func (NopSink) Retried(int)                    {}
