// Package mapsurface owns the map surface lifecycle: creation on an anchor, stale
// anchor recovery, camera moves, layer bookkeeping and disposal.
package mapsurface

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/Hamza-Xoho/digital-surveyor/internal/metrics"
)

const (
	StateUninitialized = "uninitialized"
	StateMounted       = "mounted"
	StateUnmounted     = "unmounted"

	eventMount   = "mount"
	eventUnmount = "unmount"
)

var ErrNotMounted = errors.New("map surface not mounted")

type Options struct {
	// TileAPIKey selects the authenticated tile provider when set.
	TileAPIKey string
	Sink       Sink
	Metrics    *metrics.Metrics
}

// Controller holds at most one live Surface. Unmounted is terminal.
type Controller struct {
	mu      sync.Mutex
	log     zerolog.Logger
	opts    Options
	machine *fsm.FSM
	surface *Surface
}

func NewController(log zerolog.Logger, opts Options) *Controller {
	c := &Controller{log: log, opts: opts}
	c.machine = fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{Name: eventMount, Src: []string{StateUninitialized}, Dst: StateMounted},
			{Name: eventUnmount, Src: []string{StateUninitialized, StateMounted}, Dst: StateUnmounted},
		},
		fsm.Callbacks{
			"enter_" + StateMounted: func(_ context.Context, e *fsm.Event) {
				c.log.Debug().Str("from", e.Src).Msg("map surface mounted")
			},
			"enter_" + StateUnmounted: func(_ context.Context, e *fsm.Event) {
				c.log.Debug().Str("from", e.Src).Msg("map surface unmounted")
			},
		},
	)
	return c
}

func (c *Controller) State() string {
	return c.machine.Current()
}

// Surface returns the live surface, if mounted.
func (c *Controller) Surface() (*Surface, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface, c.surface != nil
}

// Mount binds a surface to anchor. Mounting again returns the existing surface. If the
// anchor still carries another instance, that orphan is disposed and the anchor is
// cleared first.
func (c *Controller) Mount(ctx context.Context, anchor *Anchor) (*Surface, error) {
	if anchor == nil {
		return nil, errors.New("mount: nil anchor")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.machine.Current() {
	case StateMounted:
		return c.surface, nil
	case StateUnmounted:
		return nil, ErrDisposed
	}

	stale := false
	if staleID, ok := anchor.BoundID(); ok {
		stale = true
		orphan := anchor.strip()
		if orphan != nil {
			orphan.dispose()
			c.opts.Metrics.SurfaceDisposed()
		}
		c.log.Warn().
			Str("anchor", anchor.ID()).
			Str("stale_surface_id", staleID).
			Msg("stripped stale map surface from anchor")
	}

	s, err := newSurface(anchor, SelectTileSource(c.opts.TileAPIKey), Overview, c.opts.Sink)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	if err := c.machine.Event(ctx, eventMount); err != nil {
		s.dispose()
		return nil, fmt.Errorf("mount: %w", err)
	}
	c.surface = s
	c.opts.Metrics.SurfaceMounted(stale)
	c.log.Info().
		Str("anchor", anchor.ID()).
		Str("surface_id", s.id).
		Str("tiles", s.tiles.Name).
		Bool("stale_anchor", stale).
		Msg("map surface created")
	return s, nil
}

// Unmount disposes the surface and clears the reference. Calling it again is a no-op.
func (c *Controller) Unmount(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.Current() == StateUnmounted {
		return nil
	}
	if err := c.machine.Event(ctx, eventUnmount); err != nil {
		return fmt.Errorf("unmount: %w", err)
	}
	if c.surface != nil {
		if c.surface.dispose() {
			c.opts.Metrics.SurfaceDisposed()
		}
		c.surface = nil
	}
	return nil
}
