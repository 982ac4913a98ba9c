package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erp/invoicesync/internal/infrastructure/config"
)

// DBTracingConfig controls statement spans on the gorm handle
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound variables in db.statement; they can carry
	// customer emails, so leave it off outside development.
	LogFullSQL         bool
	SlowQueryThreshold time.Duration
	DBSystem           string
}

// DBTracingFromConfig derives the gorm tracing settings from the telemetry
// section. Statement spans need the trace pipeline, so they stay off when
// telemetry is disabled.
func DBTracingFromConfig(cfg config.TelemetryConfig) DBTracingConfig {
	return DBTracingConfig{
		Enabled:            cfg.Enabled && cfg.DBTracing,
		LogFullSQL:         cfg.DBLogFullSQL,
		SlowQueryThreshold: cfg.DBSlowQueryThreshold,
		DBSystem:           "postgresql",
	}
}

const statementStartKey = "invoicesync:statement_start"

// RegisterDBTracing installs otelgorm on db, so sync record writes and audit
// queries show up under the operation span that issued them. Each statement
// span is also tagged with its table, rows affected and a slow-query marker.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger, opts ...otelgorm.Option) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}

	pluginOpts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		pluginOpts = append(pluginOpts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(append(pluginOpts, opts...)...)); err != nil {
		return fmt.Errorf("failed to register otelgorm: %w", err)
	}

	a := &statementAnnotator{threshold: cfg.SlowQueryThreshold}
	if err := a.register(db); err != nil {
		return fmt.Errorf("failed to register statement callbacks: %w", err)
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return nil
}

type statementAnnotator struct {
	threshold time.Duration
}

// register hooks every statement kind. The annotate hooks run before
// otelgorm's own after hooks, which end the span.
func (a *statementAnnotator) register(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("invoicesync:start:create", a.start),
		cb.Create().After("gorm:create").Before("otel:after:create").Register("invoicesync:annotate:create", a.annotate),
		cb.Query().Before("gorm:query").Register("invoicesync:start:query", a.start),
		cb.Query().After("gorm:query").Before("otel:after:select").Register("invoicesync:annotate:query", a.annotate),
		cb.Update().Before("gorm:update").Register("invoicesync:start:update", a.start),
		cb.Update().After("gorm:update").Before("otel:after:update").Register("invoicesync:annotate:update", a.annotate),
		cb.Delete().Before("gorm:delete").Register("invoicesync:start:delete", a.start),
		cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("invoicesync:annotate:delete", a.annotate),
		cb.Row().Before("gorm:row").Register("invoicesync:start:row", a.start),
		cb.Row().After("gorm:row").Before("otel:after:row").Register("invoicesync:annotate:row", a.annotate),
		cb.Raw().Before("gorm:raw").Register("invoicesync:start:raw", a.start),
		cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("invoicesync:annotate:raw", a.annotate),
	)
}

func (a *statementAnnotator) start(db *gorm.DB) {
	db.InstanceSet(statementStartKey, time.Now())
}

func (a *statementAnnotator) annotate(db *gorm.DB) {
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{attribute.Int64("db.rows_affected", db.Statement.RowsAffected)}
	if db.Statement.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", db.Statement.Table))
	}
	span.SetAttributes(attrs...)

	v, ok := db.InstanceGet(statementStartKey)
	if !ok {
		return
	}
	started, ok := v.(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(started); elapsed > a.threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("threshold_ms", a.threshold.Milliseconds()),
		))
	}
}
