package pvsim

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-beamline/logger"
	"github.com/arloliu/go-beamline/pv"
)

// ProviderOption configures a Provider at construction time.
type ProviderOption func(*Provider)

// WithLogger sets the logger used for provider diagnostics. Defaults to the
// package default logger.
func WithLogger(l logger.Logger) ProviderOption {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// Provider is an in-process pv.Provider backed by a concurrent PV registry.
type Provider struct {
	pvs    *xsync.MapOf[string, *PV]
	logger logger.Logger
}

var _ pv.Provider = (*Provider)(nil)

// NewProvider creates an empty Provider.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		pvs:    xsync.NewMapOf[string, *PV](),
		logger: logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Add registers PVs with the provider. It fails with ErrDuplicatePV when a
// name is already registered; PVs preceding the duplicate stay registered.
func (p *Provider) Add(pvs ...*PV) error {
	for _, item := range pvs {
		if _, loaded := p.pvs.LoadOrStore(item.Name(), item); loaded {
			return fmt.Errorf("%w: %s", ErrDuplicatePV, item.Name())
		}
		p.logger.Debug("registered pv", "name", item.Name())
	}

	return nil
}

// Channel resolves a PV name into a pv.Channel.
func (p *Provider) Channel(name string) (pv.Channel, error) {
	item, ok := p.pvs.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", pv.ErrChannelNotFound, name)
	}

	return item, nil
}

// Lookup returns the registered *PV for direct device-side access.
func (p *Provider) Lookup(name string) (*PV, bool) {
	return p.pvs.Load(name)
}

// Size returns the number of registered PVs.
func (p *Provider) Size() int {
	return p.pvs.Size()
}
