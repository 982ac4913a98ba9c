package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/infrastructure/secrets"
)

// SettingsProvider builds a fresh immutable SyncSettings snapshot per
// operation from the current configuration and the stored payment method
// mappings. Database mappings override file entries with the same method.
type SettingsProvider struct {
	mu       sync.RWMutex
	billing  BillingConfig
	sync     SyncConfig
	apiKey   string
	keyErr   error
	mappings integration.PaymentMethodMappingRepository
	logger   *zap.Logger
}

// NewSettingsProvider creates a provider. mappings may be nil.
func NewSettingsProvider(cfg *Config, mappings integration.PaymentMethodMappingRepository, logger *zap.Logger) *SettingsProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &SettingsProvider{mappings: mappings, logger: logger}
	p.Update(cfg)
	return p
}

// Update swaps in a new configuration. The API key is decrypted once here;
// a decryption failure is reported by every later Current call.
func (p *SettingsProvider) Update(cfg *Config) {
	apiKey, err := secrets.ResolveAPIKey(cfg.Billing.APIKey, cfg.Billing.APIKeyEncrypted, cfg.Billing.Secret)
	if err != nil {
		p.logger.Error("Failed to decrypt billing API key", zap.Error(err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.billing = cfg.Billing
	p.sync = cfg.Sync
	p.apiKey = apiKey
	p.keyErr = err
}

// Watch reloads the configuration whenever the config file changes
func (p *SettingsProvider) Watch(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := FromViper(v)
		if err != nil {
			p.logger.Error("Ignoring invalid configuration change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		p.Update(cfg)
		p.logger.Info("Configuration reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()
}

// Current returns a snapshot for one operation
func (p *SettingsProvider) Current(ctx context.Context) (integration.SyncSettings, error) {
	p.mu.RLock()
	billing, syncCfg, apiKey, keyErr := p.billing, p.sync, p.apiKey, p.keyErr
	p.mu.RUnlock()

	if keyErr != nil {
		return integration.SyncSettings{}, &integration.ConfigurationError{
			Field:  "billing API key",
			Reason: keyErr.Error(),
		}
	}

	mappings := make(map[string]int64, len(syncCfg.PaymentMapping))
	for method, id := range syncCfg.PaymentMapping {
		mappings[method] = id
	}
	if p.mappings != nil {
		stored, err := p.mappings.FindAll(ctx)
		if err != nil {
			return integration.SyncSettings{}, fmt.Errorf("load payment method mappings: %w", err)
		}
		for _, m := range stored {
			mappings[m.StorefrontMethod] = m.BillingMethodID
		}
	}

	return integration.NewSyncSettings(integration.SyncSettingsParams{
		BaseURL:       billing.BaseURL,
		APIKey:        apiKey,
		InvoicePrefix: syncCfg.InvoicePrefix,
		ElectronicPaymentFee: integration.ElectronicPaymentFee{
			Name:      syncCfg.EPFName,
			ProductID: syncCfg.EPFProductID,
		},
		RoundingCorrectionProduct: syncCfg.RoundingCorrectionProductID,
		TaxRateID:                 syncCfg.TaxRateID,
		CustomerNotes:             syncCfg.CustomerNotes,
		InvoiceNote:               syncCfg.InvoiceNote,
		Taxable:                   syncCfg.Taxable,
		CustomerPreferences: integration.CustomerPreferences{
			GetSMS:       syncCfg.GetSMS,
			GetBilling:   syncCfg.GetBilling,
			GetMarketing: syncCfg.GetMarketing,
			GetReports:   syncCfg.GetReports,
			OptOut:       syncCfg.OptOut,
			NoEmail:      syncCfg.NoEmail,
		},
		PaidFlags: integration.InvoicePaidFlags{
			VerifiedPaid:   syncCfg.VerifiedPaid,
			TechMarkedPaid: syncCfg.TechMarkedPaid,
			IsPaid:         syncCfg.IsPaid,
		},
		PaymentMethodMappings: mappings,
		AutoSyncInvoice:       syncCfg.AutoSyncInvoice,
		AutoSyncPayment:       syncCfg.AutoSyncPayment,
	})
}

var _ integration.SettingsProvider = (*SettingsProvider)(nil)
