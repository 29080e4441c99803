package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the JSON production logger used by both binaries.
func NewLogger(level string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	normalized := strings.TrimSpace(level)
	if normalized == "" {
		return zapcore.InfoLevel, nil
	}

	parsed, err := zapcore.ParseLevel(strings.ToLower(normalized))
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}

type logScopeKey struct{}

// logScope is the set of identifiers a dispatch run carries through its context.
type logScope struct {
	tickID     string
	campaignID string
}

func scopeFrom(ctx context.Context) logScope {
	if ctx == nil {
		return logScope{}
	}
	scope, _ := ctx.Value(logScopeKey{}).(logScope)
	return scope
}

func withScope(ctx context.Context, scope logScope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, logScopeKey{}, scope)
}

// WithTickID tags ctx with the scheduler tick that is processing it.
func WithTickID(ctx context.Context, tickID string) context.Context {
	scope := scopeFrom(ctx)
	scope.tickID = tickID
	return withScope(ctx, scope)
}

// WithCampaignID tags ctx with the campaign being dispatched.
func WithCampaignID(ctx context.Context, campaignID string) context.Context {
	scope := scopeFrom(ctx)
	scope.campaignID = campaignID
	return withScope(ctx, scope)
}

func TickIDFromContext(ctx context.Context) (string, bool) {
	tickID := scopeFrom(ctx).tickID
	return tickID, tickID != ""
}

func CampaignIDFromContext(ctx context.Context) (string, bool) {
	campaignID := scopeFrom(ctx).campaignID
	return campaignID, campaignID != ""
}

// WithContextLogger adds tickId and campaignId fields for whichever are set on ctx.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	scope := scopeFrom(ctx)
	fields := make([]zap.Field, 0, 2)
	if scope.tickID != "" {
		fields = append(fields, zap.String("tickId", scope.tickID))
	}
	if scope.campaignID != "" {
		fields = append(fields, zap.String("campaignId", scope.campaignID))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
