package mapsurface

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
)

var (
	// ErrAlreadyInitialized is returned when a surface is created on an anchor that
	// another surface still claims.
	ErrAlreadyInitialized = errors.New("map container is already initialized")
	ErrDisposed           = errors.New("map surface disposed")
	ErrInvalidLayer       = errors.New("layer needs an id and a kind")
)

const (
	InspectionZoom       = 17
	FlyDurationMs        = 1500
	tileLayerID          = "base-tiles"
	anchorTilePane       = "tile-pane"
	anchorOverlayPane    = "overlay-pane"
	anchorAttributionBox = "attribution"
)

// Overview is the camera used before any result exists.
var Overview = Camera{Center: domain.LatLon{Lat: 54.0, Lon: -2.0}, Zoom: 6}

// Camera is a viewport. DurationMs > 0 means the move is animated.
type Camera struct {
	Center     domain.LatLon `json:"center"`
	Zoom       int           `json:"zoom"`
	DurationMs int           `json:"duration_ms,omitempty"`
}

// Snapshot is the full state a late subscriber needs to rebuild the surface.
type Snapshot struct {
	SurfaceID string     `json:"surface_id"`
	Tiles     TileSource `json:"tiles"`
	Camera    Camera     `json:"camera"`
	Layers    []Layer    `json:"layers"`
}

// Surface is a live map instance. Only the Controller creates or disposes one.
type Surface struct {
	mu       sync.Mutex
	id       string
	anchor   *Anchor
	tiles    TileSource
	camera   Camera
	layers   map[string]Layer
	sink     Sink
	disposed bool
}

func newSurface(anchor *Anchor, tiles TileSource, camera Camera, sink Sink) (*Surface, error) {
	if sink == nil {
		sink = discardSink{}
	}
	s := &Surface{
		id:     uuid.NewString(),
		anchor: anchor,
		tiles:  tiles,
		camera: camera,
		layers: map[string]Layer{},
		sink:   sink,
	}
	if err := anchor.claim(s, []string{anchorTilePane, anchorOverlayPane, anchorAttributionBox}); err != nil {
		return nil, err
	}
	t := tiles
	s.layers[tileLayerID] = Layer{ID: tileLayerID, Kind: KindTiles, ZIndex: 0, Tiles: &t}
	s.sink.Publish(Command{Op: OpMount, SurfaceID: s.id, Snapshot: s.snapshotLocked()})
	return s, nil
}

func (s *Surface) ID() string { return s.id }

func (s *Surface) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// SetView jumps the camera without animation.
func (s *Surface) SetView(center domain.LatLon, zoom int) error {
	return s.move(Command{Op: OpSetView}, Camera{Center: center, Zoom: zoom})
}

// FlyTo animates to center at the inspection zoom.
func (s *Surface) FlyTo(center domain.LatLon) error {
	return s.move(Command{Op: OpFlyTo}, Camera{Center: center, Zoom: InspectionZoom, DurationMs: FlyDurationMs})
}

func (s *Surface) move(cmd Command, cam Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	s.camera = cam
	cmd.SurfaceID = s.id
	cmd.Camera = &cam
	s.sink.Publish(cmd)
	return nil
}

// AddLayer adds l, replacing any layer with the same id.
func (s *Surface) AddLayer(l Layer) error {
	if l.ID == "" || l.Kind == "" {
		return ErrInvalidLayer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	s.layers[l.ID] = l
	s.sink.Publish(Command{Op: OpAddLayer, SurfaceID: s.id, Layer: &l})
	return nil
}

// RemoveLayer reports whether a layer was removed.
func (s *Surface) RemoveLayer(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || id == tileLayerID {
		return false
	}
	if _, ok := s.layers[id]; !ok {
		return false
	}
	delete(s.layers, id)
	s.sink.Publish(Command{Op: OpRemoveLayer, SurfaceID: s.id, LayerID: id})
	return true
}

// Layers returns the current layers in draw order.
func (s *Surface) Layers() []Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLayersLocked()
}

func (s *Surface) Camera() Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

func (s *Surface) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.snapshotLocked()
}

func (s *Surface) snapshotLocked() *Snapshot {
	return &Snapshot{
		SurfaceID: s.id,
		Tiles:     s.tiles,
		Camera:    s.camera,
		Layers:    s.sortedLayersLocked(),
	}
}

func (s *Surface) sortedLayersLocked() []Layer {
	out := make([]Layer, 0, len(s.layers))
	for _, l := range s.layers {
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// dispose drops layers, detaches the sink and releases the anchor. Safe to call twice.
func (s *Surface) dispose() bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	s.disposed = true
	s.layers = map[string]Layer{}
	sink := s.sink
	s.sink = discardSink{}
	s.mu.Unlock()

	sink.Publish(Command{Op: OpDispose, SurfaceID: s.id})
	s.anchor.release(s)
	return true
}
