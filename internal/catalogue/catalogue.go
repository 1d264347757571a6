// Package catalogue keeps the read-only vehicle profile list used to enrich vehicle
// assessments and to project envelopes.
package catalogue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Hamza-Xoho/digital-surveyor/internal/assessclient"
	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
)

// Source lists profiles from the backend.
type Source interface {
	ListVehicles(ctx context.Context) ([]domain.VehicleProfile, error)
	ListCustomVehicles(ctx context.Context) ([]domain.VehicleProfile, error)
}

// Catalogue indexes profiles by class key. User-defined profiles shadow built-ins with
// the same key.
type Catalogue struct {
	log    zerolog.Logger
	source Source

	mu        sync.RWMutex
	byClass   map[string]domain.VehicleProfile
	order     []string
	refreshed time.Time
}

func New(log zerolog.Logger, source Source) *Catalogue {
	return &Catalogue{log: log, source: source, byClass: map[string]domain.VehicleProfile{}}
}

// Refresh reloads both lists concurrently. A missing session skips the custom list; any
// other custom-list failure is logged and the built-ins are still used.
func (c *Catalogue) Refresh(ctx context.Context) error {
	var builtIn, custom []domain.VehicleProfile

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := c.source.ListVehicles(gctx)
		if err != nil {
			return fmt.Errorf("list vehicles: %w", err)
		}
		builtIn = out
		return nil
	})
	g.Go(func() error {
		out, err := c.source.ListCustomVehicles(gctx)
		switch {
		case err == nil:
			custom = out
		case errors.Is(err, assessclient.ErrNotAuthenticated):
		default:
			c.log.Warn().Err(err).Msg("custom vehicle list unavailable")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.Replace(append(builtIn, custom...))
	c.log.Debug().Int("built_in", len(builtIn)).Int("custom", len(custom)).Msg("vehicle catalogue refreshed")
	return nil
}

// Replace swaps the indexed profiles. Later entries win on duplicate class keys.
func (c *Catalogue) Replace(profiles []domain.VehicleProfile) {
	byClass := make(map[string]domain.VehicleProfile, len(profiles))
	for _, p := range profiles {
		if p.VehicleClass == "" {
			continue
		}
		byClass[p.VehicleClass] = p
	}
	order := make([]string, 0, len(byClass))
	for k := range byClass {
		order = append(order, k)
	}
	sort.Strings(order)

	c.mu.Lock()
	c.byClass = byClass
	c.order = order
	c.refreshed = time.Now().UTC()
	c.mu.Unlock()
}

func (c *Catalogue) Lookup(class string) (domain.VehicleProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byClass[class]
	return p, ok
}

// List returns every profile ordered by class key.
func (c *Catalogue) List() []domain.VehicleProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.VehicleProfile, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.byClass[k])
	}
	return out
}

func (c *Catalogue) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}
