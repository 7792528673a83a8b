package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/config"
)

// New creates a zerolog logger configured from config.
// Supports "trace" | "debug" | "info" | "warn" | "error" levels
// and "json" | "console" formats. Sampling keeps prod output bounded.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	return NewWithWriter(cfg, dev, os.Stdout)
}

func NewWithWriter(cfg config.LogConfig, dev bool, w io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" || dev {
		out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		base = zerolog.New(out).With().Timestamp().Str("service", "tgms-worker").Logger()
	} else {
		base = zerolog.New(w).With().Timestamp().Str("service", "tgms-worker").Logger()
	}

	if cfg.Sampling && !dev {
		// Keep 1 in 100 debug-and-below events; info and up are never dropped.
		sampled := base.Sample(zerolog.LevelSampler{
			TraceSampler: &zerolog.BasicSampler{N: 100},
			DebugSampler: &zerolog.BasicSampler{N: 100},
		})
		return &sampled
	}
	return &base
}

type ctxKey string

const (
	ctxTraceID ctxKey = "trace_id"
	ctxJobID   ctxKey = "job_id"
	ctxJobType ctxKey = "job_type"
	ctxGroupID ctxKey = "group_id"
)

// With attaches the context fields set by the With* helpers below.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := base.With()
	if v, ok := ctx.Value(ctxTraceID).(string); ok {
		l = l.Str("trace_id", v)
	}
	if v, ok := ctx.Value(ctxJobID).(int64); ok {
		l = l.Int64("job_id", v)
	}
	if v, ok := ctx.Value(ctxJobType).(string); ok {
		l = l.Str("job_type", v)
	}
	if v, ok := ctx.Value(ctxGroupID).(int64); ok {
		l = l.Int64("group_id", v)
	}
	logger := l.Logger()
	return &logger
}

// NewTraceID returns a sortable id for one consumer iteration.
func NewTraceID() string {
	return ulid.Make().String()
}

// TraceDuration logs start and end with elapsed duration at TRACE level.
// Usage: defer logging.TraceDuration(logger, "BroadcastEngine.Broadcast")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("method", name).Msg("start")
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

// Redact hides secrets such as bot tokens when not in dev.
func Redact(s string, dev bool) string {
	if dev {
		return s
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-2:]
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxTraceID, id)
}
func WithJob(ctx context.Context, id int64, jobType string) context.Context {
	ctx = context.WithValue(ctx, ctxJobID, id)
	return context.WithValue(ctx, ctxJobType, jobType)
}
func WithGroupID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxGroupID, id)
}
