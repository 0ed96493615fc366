package oracle

import (
	"fmt"
	"io"

	"icpscout/internal/config"
	"icpscout/internal/port"
)

// ProviderFactory creates an Oracle from a provider config.
type ProviderFactory func(cfg *config.ProviderConfig) (port.Oracle, error)

// registry of oracle provider factories, populated by the command wiring
// via RegisterProvider.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers an oracle provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewOracle creates an Oracle from a provider config using the registered factory.
func NewOracle(cfg *config.ProviderConfig) (port.Oracle, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown oracle provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// FromConfig builds the configured primary oracle, wrapped in a
// FallbackOracle when a fallback provider is set. The returned close
// function releases provider clients and must be called when the run ends.
func FromConfig(cfg *config.OracleConfig) (port.Oracle, func() error, error) {
	primary, err := NewOracle(cfg.PrimaryConfig())
	if err != nil {
		return nil, nil, err
	}
	fb := cfg.FallbackConfig()
	if fb == nil {
		return primary, closerOf(primary), nil
	}
	secondary, err := NewOracle(fb)
	if err != nil {
		_ = closerOf(primary)()
		return nil, nil, fmt.Errorf("fallback: %w", err)
	}
	f := NewFallbackOracle([]port.Oracle{primary, secondary}, []string{cfg.Provider, fb.Provider})
	return f, f.Close, nil
}

func closerOf(o port.Oracle) func() error {
	if c, ok := o.(io.Closer); ok {
		return c.Close
	}
	return func() error { return nil }
}
