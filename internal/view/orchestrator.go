// Package view ties an assessment result, the vehicle selection and the map surface
// together.
package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/Hamza-Xoho/digital-surveyor/internal/assessclient"
	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
	"github.com/Hamza-Xoho/digital-surveyor/internal/envelope"
	"github.com/Hamza-Xoho/digital-surveyor/internal/mapsurface"
	"github.com/Hamza-Xoho/digital-surveyor/internal/overlay"
	"github.com/Hamza-Xoho/digital-surveyor/internal/postcode"
	"github.com/Hamza-Xoho/digital-surveyor/internal/sqlcgen"
)

const maxRecent = 10

var (
	ErrBusy           = errors.New("an assessment is already in progress")
	ErrClosed         = errors.New("view closed")
	ErrNoResult       = errors.New("no assessment result")
	ErrUnknownVehicle = errors.New("vehicle class not in result")
	ErrNotPersisted   = errors.New("notes need a saved assessment; log in and run it again")
	ErrRender         = errors.New("the assessment result could not be displayed")
)

// Assessor runs assessments against the backend.
type Assessor interface {
	Run(ctx context.Context, pc postcode.Canonical) (assessclient.Outcome, error)
	UpdateNotes(ctx context.Context, id, notes string) error
}

// HistoryStore persists successful assessments.
type HistoryStore interface {
	InsertAssessmentSnapshot(ctx context.Context, arg sqlcgen.InsertAssessmentSnapshotParams) (sqlcgen.AssessmentSnapshot, error)
	SetAssessmentNotes(ctx context.Context, arg sqlcgen.SetAssessmentNotesParams) (int64, error)
}

type Options struct {
	Profiles  envelope.Profiles
	Projector envelope.Projector
	// History is optional.
	History HistoryStore
	Now     func() time.Time
}

// Orchestrator is safe for concurrent use. The backend call runs without the lock held,
// so selection changes stay responsive while a request is pending.
type Orchestrator struct {
	log     zerolog.Logger
	client  Assessor
	surface *mapsurface.Controller
	opts    Options

	mu             sync.Mutex
	machine        *fsm.FSM
	closed         bool
	requested      postcode.Canonical
	result         *domain.AssessmentResult
	outcome        assessclient.Kind
	notes          string
	errMsg         string
	selected       string
	lastEntered    string
	entered        bool
	resultLayers   []string
	envelopeLayers []string
	recent         []RecentEntry
}

func New(log zerolog.Logger, client Assessor, surface *mapsurface.Controller, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	o := &Orchestrator{log: log, client: client, surface: surface, opts: opts}
	o.machine = newMachine(func(_ context.Context, e *fsm.Event) {
		o.log.Debug().Str("event", e.Event).Str("from", e.Src).Str("to", e.Dst).Msg("view transition")
	})
	return o
}

func (o *Orchestrator) State() State {
	return State(o.machine.Current())
}

// Mount binds the map surface and draws whatever the view already holds.
func (o *Orchestrator) Mount(ctx context.Context, anchor *mapsurface.Anchor) (*mapsurface.Surface, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	s, err := o.surface.Mount(ctx, anchor)
	if err != nil {
		return nil, err
	}
	if o.result != nil {
		o.renderResultLocked()
		o.renderEnvelopeLocked()
		if err := s.SetView(o.result.Center(), mapsurface.InspectionZoom); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Submit validates raw, runs the assessment and applies the outcome. Validation errors
// leave the state untouched. On failure the previous result stays in place.
func (o *Orchestrator) Submit(ctx context.Context, raw string) (Snapshot, error) {
	pc, err := postcode.Validate(raw)
	if err != nil {
		return o.Snapshot(), err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if State(o.machine.Current()) == StatePending {
		o.mu.Unlock()
		return o.Snapshot(), ErrBusy
	}
	if err := o.machine.Event(ctx, eventSubmit); err != nil {
		o.mu.Unlock()
		return o.Snapshot(), fmt.Errorf("submit: %w", err)
	}
	o.requested = pc
	o.mu.Unlock()

	o.log.Info().Str("postcode", pc.String()).Msg("assessment submitted")
	out, runErr := o.client.Run(ctx, pc)

	if runErr == nil {
		runErr = o.apply(ctx, out)
	}
	if runErr != nil {
		o.mu.Lock()
		o.errMsg = failureMessage(runErr)
		if err := o.machine.Event(context.WithoutCancel(ctx), eventFail); err != nil {
			o.log.Error().Err(err).Msg("view fail transition rejected")
		}
		o.mu.Unlock()
		o.log.Warn().Err(runErr).Str("postcode", pc.String()).Msg("assessment failed")
		return o.Snapshot(), runErr
	}

	o.log.Info().
		Str("postcode", pc.String()).
		Str("outcome", string(out.Kind)).
		Str("rating", string(out.Result.DisplayRating())).
		Msg("assessment ready")

	o.record(context.WithoutCancel(ctx), out)
	return o.Snapshot(), nil
}

// Enter auto-submits a postcode arriving from navigation, once per distinct value.
// submitted is false when the value was already entered. A value turned away as busy
// is not remembered, so entering it again submits.
func (o *Orchestrator) Enter(ctx context.Context, raw string) (snap Snapshot, submitted bool, err error) {
	key := strings.TrimSpace(raw)
	o.mu.Lock()
	seen := o.entered && o.lastEntered == key
	o.mu.Unlock()
	if seen {
		return o.Snapshot(), false, nil
	}

	snap, err = o.Submit(ctx, raw)
	if errors.Is(err, ErrBusy) || errors.Is(err, ErrClosed) {
		return snap, false, err
	}
	o.mu.Lock()
	o.entered = true
	o.lastEntered = key
	o.mu.Unlock()
	return snap, true, err
}

// DismissError returns to the previous result, or to idle when there is none.
func (o *Orchestrator) DismissError(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if State(o.machine.Current()) != StateError {
		o.mu.Unlock()
		return o.Snapshot(), nil
	}
	event := eventReset
	if o.result != nil {
		event = eventDismiss
	}
	err := o.machine.Event(ctx, event)
	if err == nil {
		o.errMsg = ""
	}
	o.mu.Unlock()
	if err != nil {
		return o.Snapshot(), fmt.Errorf("dismiss: %w", err)
	}
	return o.Snapshot(), nil
}

// ToggleVehicle selects class, or clears the selection when class is already selected.
// Only the envelope layers change.
func (o *Orchestrator) ToggleVehicle(class string) (Snapshot, error) {
	o.mu.Lock()
	if o.result == nil {
		o.mu.Unlock()
		return o.Snapshot(), ErrNoResult
	}
	if _, ok := o.result.Vehicle(class); !ok {
		o.mu.Unlock()
		return o.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownVehicle, class)
	}
	if o.selected == class {
		o.selected = ""
	} else {
		o.selected = class
	}
	o.renderEnvelopeLocked()
	o.mu.Unlock()
	return o.Snapshot(), nil
}

// ClearSelection drops the selected vehicle, if any.
func (o *Orchestrator) ClearSelection() Snapshot {
	o.mu.Lock()
	if o.selected != "" {
		o.selected = ""
		o.renderEnvelopeLocked()
	}
	o.mu.Unlock()
	return o.Snapshot()
}

// UpdateNotes attaches notes to the current result. Only persisted results accept notes.
func (o *Orchestrator) UpdateNotes(ctx context.Context, notes string) (Snapshot, error) {
	o.mu.Lock()
	if !o.result.Persisted() {
		o.mu.Unlock()
		return o.Snapshot(), ErrNotPersisted
	}
	id := *o.result.ID
	o.mu.Unlock()

	if err := o.client.UpdateNotes(ctx, id, notes); err != nil {
		return o.Snapshot(), err
	}

	o.mu.Lock()
	if o.result.Persisted() && *o.result.ID == id {
		o.notes = notes
	}
	o.mu.Unlock()

	if o.opts.History != nil {
		if _, err := o.opts.History.SetAssessmentNotes(ctx, sqlcgen.SetAssessmentNotesParams{AssessmentID: id, Notes: notes}); err != nil {
			o.log.Warn().Err(err).Str("assessment_id", id).Msg("history notes update failed")
		}
	}
	return o.Snapshot(), nil
}

// Close is navigation away: the map surface is disposed and further submits fail.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.resultLayers = nil
	o.envelopeLayers = nil
	return o.surface.Unmount(ctx)
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		State:           State(o.machine.Current()),
		Postcode:        o.requested.String(),
		Outcome:         o.outcome,
		Result:          o.result,
		Error:           o.errMsg,
		SelectedVehicle: o.selected,
		CanEditNotes:    o.result.Persisted(),
		Notes:           o.notes,
		Recent:          append([]RecentEntry{}, o.recent...),
	}
	if o.result != nil {
		snap.DisplayRating = o.result.DisplayRating()
		snap.DataSources = dataSources(o.result)
		if o.selected != "" {
			var profile *domain.VehicleProfile
			if o.opts.Profiles != nil {
				if p, ok := o.opts.Profiles.Lookup(o.selected); ok {
					profile = &p
				}
			}
			snap.Inspector = buildInspector(o.result, o.selected, profile)
		}
	}
	if s, ok := o.surface.Surface(); ok {
		cam := s.Camera()
		snap.Camera = &cam
	}
	return snap
}

// apply installs a successful outcome. A panic while drawing restores the previous
// result and is reported as ErrRender, leaving the view in pending for the caller to fail.
func (o *Orchestrator) apply(ctx context.Context, out assessclient.Outcome) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.result
	prevOutcome, prevNotes, prevSelected := o.outcome, o.notes, o.selected
	recent := o.recent
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Msg("assessment result could not be drawn")
			o.result, o.outcome, o.notes, o.selected = prev, prevOutcome, prevNotes, prevSelected
			o.recent = recent
			o.redrawLocked()
			err = ErrRender
		}
	}()

	o.applyResultLocked(out)
	if err := o.machine.Event(context.WithoutCancel(ctx), eventSucceed); err != nil {
		o.log.Error().Err(err).Msg("view succeed transition rejected")
	}
	return nil
}

// redrawLocked puts the current result back on the map after a failed draw. A second
// failure leaves the map without result layers.
func (o *Orchestrator) redrawLocked() {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Msg("previous result could not be redrawn")
		}
	}()
	o.renderResultLocked()
	o.renderEnvelopeLocked()
}

func (o *Orchestrator) applyResultLocked(out assessclient.Outcome) {
	o.result = out.Result
	o.outcome = out.Kind
	o.errMsg = ""
	o.notes = ""
	o.selected = ""

	o.renderResultLocked()
	o.renderEnvelopeLocked()
	if s, ok := o.surface.Surface(); ok {
		if err := s.FlyTo(out.Result.Center()); err != nil {
			o.log.Warn().Err(err).Msg("camera move failed")
		}
	}

	o.recent = append([]RecentEntry{{
		Postcode: out.Result.Postcode,
		Rating:   out.Result.DisplayRating(),
		Outcome:  out.Kind,
		At:       o.opts.Now().UTC(),
	}}, o.recent...)
	if len(o.recent) > maxRecent {
		o.recent = o.recent[:maxRecent]
	}
}

func (o *Orchestrator) renderResultLocked() {
	s, ok := o.surface.Surface()
	if !ok {
		o.resultLayers = nil
		return
	}
	for _, id := range o.resultLayers {
		s.RemoveLayer(id)
	}
	o.resultLayers = o.resultLayers[:0]
	for _, l := range overlay.BuildResultLayers(o.result) {
		if err := s.AddLayer(l); err != nil {
			o.log.Warn().Err(err).Str("kind", l.Kind).Msg("overlay layer rejected")
			continue
		}
		o.resultLayers = append(o.resultLayers, l.ID)
	}
}

// renderEnvelopeLocked redraws the selected vehicle's envelope. An unresolvable profile
// draws nothing.
func (o *Orchestrator) renderEnvelopeLocked() {
	s, ok := o.surface.Surface()
	if !ok {
		o.envelopeLayers = nil
		return
	}
	for _, id := range o.envelopeLayers {
		s.RemoveLayer(id)
	}
	o.envelopeLayers = o.envelopeLayers[:0]
	if o.result == nil || o.selected == "" {
		return
	}
	va, _ := o.result.Vehicle(o.selected)
	env, ok := o.opts.Projector.Resolve(o.opts.Profiles, o.selected, o.result.Center())
	if !ok {
		o.log.Debug().Str("vehicle_class", o.selected).Msg("no profile for vehicle class; envelope skipped")
		return
	}
	for _, l := range overlay.BuildEnvelopeLayers(env, va.OverallRating) {
		if err := s.AddLayer(l); err != nil {
			o.log.Warn().Err(err).Str("kind", l.Kind).Msg("envelope layer rejected")
			continue
		}
		o.envelopeLayers = append(o.envelopeLayers, l.ID)
	}
}

func (o *Orchestrator) record(ctx context.Context, out assessclient.Outcome) {
	if o.opts.History == nil {
		return
	}
	doc, err := json.Marshal(out.Result)
	if err != nil {
		o.log.Warn().Err(err).Msg("history encode failed")
		return
	}
	_, err = o.opts.History.InsertAssessmentSnapshot(ctx, sqlcgen.InsertAssessmentSnapshotParams{
		Postcode:      out.Result.Postcode,
		OverallRating: string(out.Result.DisplayRating()),
		Outcome:       string(out.Kind),
		AssessmentID:  out.Result.ID,
		Latitude:      out.Result.Latitude,
		Longitude:     out.Result.Longitude,
		VehicleCount:  int32(len(out.Result.VehicleAssessments)),
		Document:      doc,
	})
	if err != nil {
		o.log.Warn().Err(err).Str("postcode", out.Result.Postcode).Msg("history insert failed")
	}
}

func failureMessage(err error) string {
	var upErr *assessclient.Error
	if errors.As(err, &upErr) && upErr.Message != "" {
		return upErr.Message
	}
	return err.Error()
}
