package mapsurface

// Command ops published to a Sink.
const (
	OpMount       = "mount"
	OpSetView     = "set_view"
	OpFlyTo       = "fly_to"
	OpAddLayer    = "add_layer"
	OpRemoveLayer = "remove_layer"
	OpDispose     = "dispose"
)

// Command is one surface mutation, in the order it was applied.
type Command struct {
	Op        string    `json:"op"`
	SurfaceID string    `json:"surface_id"`
	Camera    *Camera   `json:"camera,omitempty"`
	Layer     *Layer    `json:"layer,omitempty"`
	LayerID   string    `json:"layer_id,omitempty"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
}

// Sink receives surface commands. Publish must not block for long; it is called with
// the surface lock held.
type Sink interface {
	Publish(Command)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Command)

func (f SinkFunc) Publish(c Command) { f(c) }

type discardSink struct{}

func (discardSink) Publish(Command) {}
