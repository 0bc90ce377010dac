// Package inventory provides the platform collaborators the lifecycle
// service talks to: resource records and reservation output.
package inventory

import (
	"context"
	"fmt"

	"github.com/melih/lighthouse-dockerhost/internal/config"
	"github.com/melih/lighthouse-dockerhost/internal/core/ports"
)

// FromConfig opens the configured inventory. The returned func releases it.
func FromConfig(ctx context.Context, cfg config.InventoryConfig) (ports.SessionProvider, func(), error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), func() {}, nil
	case "postgres":
		pg, err := NewPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown inventory driver %q", cfg.Driver)
	}
}
