package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fromTOML builds a Config the way Load does, from inline TOML
func fromTOML(t *testing.T, content string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("toml")
	setSyncDefaults(v)
	require.NoError(t, v.ReadConfig(strings.NewReader(content)))
	return FromViper(v)
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "invoicesync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "invoicesync", cfg.Database.DBName)
		assert.False(t, cfg.Redis.Enabled())
		assert.Equal(t, 30*time.Second, cfg.Billing.Timeout)
		assert.Equal(t, float64(3), cfg.Billing.RateLimit)
		assert.Equal(t, 5, cfg.Billing.RateBurst)
		assert.Equal(t, 2*time.Minute, cfg.Sync.LockTTL)
		assert.Equal(t, 4, cfg.Sync.Workers)
		assert.Equal(t, 256, cfg.Sync.QueueSize)
		assert.Equal(t, float64(10), cfg.HTTP.WebhookRateLimit)
		assert.Equal(t, 20, cfg.HTTP.WebhookRateBurst)
		assert.False(t, cfg.Telemetry.DBTracing)
		assert.False(t, cfg.Telemetry.LogsEnabled)
		assert.Equal(t, 200*time.Millisecond, cfg.Telemetry.DBSlowQueryThreshold)
	})

	t.Run("loads values from environment variables with INVOICESYNC prefix", func(t *testing.T) {
		t.Setenv("INVOICESYNC_APP_PORT", "9000")
		t.Setenv("INVOICESYNC_DATABASE_HOST", "testdb.local")
		t.Setenv("INVOICESYNC_BILLING_BASE_URL", "https://shop.repairshopr.com/api/v1")
		t.Setenv("INVOICESYNC_BILLING_API_KEY", "T-key")
		t.Setenv("INVOICESYNC_SYNC_INVOICE_PREFIX", "WC-")
		t.Setenv("INVOICESYNC_SYNC_AUTO_SYNC_INVOICE", "true")
		t.Setenv("INVOICESYNC_SYNC_TAXABLE", "false")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, "https://shop.repairshopr.com/api/v1", cfg.Billing.BaseURL)
		assert.Equal(t, "T-key", cfg.Billing.APIKey)
		assert.Equal(t, "WC-", cfg.Sync.InvoicePrefix)
		assert.True(t, cfg.Sync.AutoSyncInvoice)
		assert.False(t, cfg.Sync.Taxable)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("INVOICESYNC_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("INVOICESYNC_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})
}

func TestSyncDefaults(t *testing.T) {
	cfg, err := fromTOML(t, "")
	require.NoError(t, err)

	s := cfg.Sync
	assert.Equal(t, "", s.InvoicePrefix)
	assert.Equal(t, "Electronic Payment Fee", s.EPFName)
	assert.Equal(t, "9263351", s.EPFProductID)
	assert.Equal(t, "", s.RoundingCorrectionProductID)
	assert.Equal(t, "40354", s.TaxRateID)
	assert.Equal(t, "Created by WooCommerce", s.CustomerNotes)
	assert.Equal(t, "Order created from WooCommerce", s.InvoiceNote)
	assert.True(t, s.Taxable)
	assert.True(t, s.VerifiedPaid)
	assert.True(t, s.TechMarkedPaid)
	assert.True(t, s.IsPaid)
	assert.True(t, s.GetSMS)
	assert.True(t, s.GetBilling)
	assert.True(t, s.GetMarketing)
	assert.True(t, s.GetReports)
	assert.False(t, s.OptOut)
	assert.False(t, s.NoEmail)
	assert.False(t, s.AutoSyncInvoice)
	assert.False(t, s.AutoSyncPayment)
	assert.Empty(t, s.PaymentMapping)
	assert.Equal(t, 90, s.RecordRetentionDays)
	assert.Equal(t, 3, s.MaintenanceHour)
}

func TestSyncFromFile(t *testing.T) {
	cfg, err := fromTOML(t, `
[sync]
invoice_prefix = "WC-"
rounding_correction_product_id = "8888"
auto_sync_payment = true

[sync.payment_mapping]
stripe = 3
bacs = 7
broken = 0
`)
	require.NoError(t, err)

	assert.Equal(t, "WC-", cfg.Sync.InvoicePrefix)
	assert.Equal(t, "8888", cfg.Sync.RoundingCorrectionProductID)
	assert.True(t, cfg.Sync.AutoSyncPayment)
	assert.Equal(t, map[string]int64{"stripe": 3, "bacs": 7}, cfg.Sync.PaymentMapping)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		toml    string
		wantErr string
	}{
		{
			name:    "fee name without product",
			toml:    "[sync]\nepf_product_id = \"\"\n",
			wantErr: "sync.epf_name and sync.epf_product_id",
		},
		{
			name:    "fee disabled entirely",
			toml:    "[sync]\nepf_name = \"\"\nepf_product_id = \"\"\n",
			wantErr: "",
		},
		{
			name:    "encrypted key without secret",
			toml:    "[billing]\napi_key_encrypted = \"abc\"\n",
			wantErr: "billing.secret is required",
		},
		{
			name:    "storage without bucket",
			toml:    "[storage]\nenabled = true\n",
			wantErr: "storage.bucket is required",
		},
		{
			name:    "redis required but unset",
			toml:    "[redis]\nrequired = true\n",
			wantErr: "redis.host is required",
		},
		{
			name:    "sampling ratio out of range",
			toml:    "[telemetry]\nsampling_ratio = 1.5\n",
			wantErr: "telemetry.sampling_ratio",
		},
		{
			name:    "negative record retention",
			toml:    "[sync]\nrecord_retention_days = -1\n",
			wantErr: "sync.record_retention_days cannot be negative",
		},
		{
			name:    "retention disabled",
			toml:    "[sync]\nrecord_retention_days = 0\n",
			wantErr: "",
		},
		{
			name:    "maintenance hour out of range",
			toml:    "[sync]\nmaintenance_hour = 24\n",
			wantErr: "sync.maintenance_hour",
		},
		{
			name:    "production needs webhook secret",
			toml:    "[app]\nenv = \"production\"\n[jwt]\nsecret = \"0123456789abcdef0123456789abcdef\"\n[database]\nsslmode = \"require\"\n",
			wantErr: "store.webhook_secret is required",
		},
		{
			name:    "valid production",
			toml:    "[app]\nenv = \"production\"\n[jwt]\nsecret = \"0123456789abcdef0123456789abcdef\"\n[database]\nsslmode = \"require\"\n[store]\nwebhook_secret = \"s\"\n",
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromTOML(t, tt.toml)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedisConfig(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	assert.True(t, r.Enabled())
	assert.Equal(t, "cache:6380", r.Addr())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
