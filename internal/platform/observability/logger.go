// Package observability holds the logging, tracing, and metrics plumbing the
// client shares. Spans and counters ride the global OpenTelemetry providers,
// so they stay no-ops unless the embedding program installs a pipeline.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Structured JSON goes to stderr so
// stdout stays reserved for command output. KRAAL_LOG_LEVEL sets the
// threshold and defaults to info.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if raw := strings.TrimSpace(os.Getenv("KRAAL_LOG_LEVEL")); raw != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("observability: KRAAL_LOG_LEVEL %q: %w", raw, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	return cfg.Build()
}
