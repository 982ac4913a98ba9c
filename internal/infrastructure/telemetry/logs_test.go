package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/invoicesync/internal/infrastructure/config"
)

// memoryLogExporter keeps the bodies of exported records
type memoryLogExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *memoryLogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.bodies = append(e.bodies, r.Body().AsString())
	}
	return nil
}

func (e *memoryLogExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryLogExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryLogExporter) Bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.bodies...)
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TelemetryConfig
	}{
		{"telemetry off", config.TelemetryConfig{Enabled: false, LogsEnabled: true}},
		{"logs off", config.TelemetryConfig{Enabled: true, LogsEnabled: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lp, err := NewLoggerProvider(context.Background(), tt.cfg, zap.NewNop())
			require.NoError(t, err)

			log := zap.NewNop()
			assert.Same(t, log, lp.Bridge(log, zapcore.InfoLevel))
			assert.NoError(t, lp.Shutdown(context.Background()))
		})
	}
}

func TestLoggerProvider_Bridge(t *testing.T) {
	exporter := &memoryLogExporter{}
	lp := &LoggerProvider{
		provider:    sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter))),
		logger:      zap.NewNop(),
		serviceName: "invoicesync",
	}
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

	core, observed := observer.New(zapcore.DebugLevel)
	log := lp.Bridge(zap.New(core), zapcore.WarnLevel)

	log.Info("Invoice Created!", zap.Int64("order_id", 1002))
	log.Warn("Sync operation failed", zap.Int64("order_id", 1003))

	assert.Equal(t, 2, observed.Len(), "local output keeps every record")
	assert.Equal(t, []string{"Sync operation failed"}, exporter.Bodies())
}
