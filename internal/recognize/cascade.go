package recognize

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// DefaultCloudSizeLimit is the largest payload routed to the cloud provider
// in auto mode.
const DefaultCloudSizeLimit int64 = 10 << 20

// ErrNoProvider indicates that no recognition provider can serve the request
// under the configured mode.
var ErrNoProvider = errors.New("no recognition provider configured")

// CascadeConfig controls provider selection.
type CascadeConfig struct {
	// Mode picks the selection strategy. Empty means ModeAuto.
	Mode Mode
	// CloudSizeLimit caps payloads sent to the cloud provider in auto
	// mode. Zero means DefaultCloudSizeLimit.
	CloudSizeLimit int64
}

// Cascade routes recognition requests to the preferred provider and falls
// back to the secondary one when the preferred call fails.
type Cascade struct {
	cloud Provider
	local Provider
	cfg   CascadeConfig
}

// NewCascade builds a cascade over the given providers. Either provider may
// be nil when not configured.
func NewCascade(cloud, local Provider, cfg CascadeConfig) *Cascade {
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if cfg.CloudSizeLimit <= 0 {
		cfg.CloudSizeLimit = DefaultCloudSizeLimit
	}
	return &Cascade{cloud: cloud, local: local, cfg: cfg}
}

// order returns the providers to try, preferred first.
func (c *Cascade) order(payloadSize int64) []Provider {
	switch c.cfg.Mode {
	case ModeCloud:
		if c.cloud == nil {
			return nil
		}
		return []Provider{c.cloud}
	case ModeLocal:
		if c.local == nil {
			return nil
		}
		return []Provider{c.local}
	}

	// Auto: cloud first while the payload fits under the ceiling, local
	// as fallback. Oversized payloads never reach the cloud provider.
	var providers []Provider
	if c.cloud != nil && payloadSize < c.cfg.CloudSizeLimit {
		providers = append(providers, c.cloud)
	}
	if c.local != nil {
		providers = append(providers, c.local)
	}
	return providers
}

// Recognize tries each eligible provider in preference order and returns the
// first successful result.
func (c *Cascade) Recognize(ctx context.Context, data []byte, mimeType string) (Result, error) {
	providers := c.order(int64(len(data)))
	if len(providers) == 0 {
		return Result{}, ErrNoProvider
	}

	var errs []error
	for i, p := range providers {
		res, err := p.Recognize(ctx, data, mimeType)
		if err == nil {
			res.Provider = p.Name()
			return res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i+1 < len(providers) {
			log.Printf("[recognize] provider %s failed, falling back to %s: %v",
				p.Name(), providers[i+1].Name(), err)
		}
	}
	return Result{}, fmt.Errorf("all recognition providers failed: %w", errors.Join(errs...))
}
