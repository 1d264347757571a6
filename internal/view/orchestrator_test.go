package view

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hamza-Xoho/digital-surveyor/internal/assessclient"
	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
	"github.com/Hamza-Xoho/digital-surveyor/internal/envelope"
	"github.com/Hamza-Xoho/digital-surveyor/internal/mapsurface"
	"github.com/Hamza-Xoho/digital-surveyor/internal/postcode"
	"github.com/Hamza-Xoho/digital-surveyor/internal/sqlcgen"
)

type fakeAssessor struct {
	mu        sync.Mutex
	calls     []postcode.Canonical
	runFn     func(ctx context.Context, pc postcode.Canonical) (assessclient.Outcome, error)
	notesFn   func(ctx context.Context, id, notes string) error
	noteCalls int
}

func (f *fakeAssessor) Run(ctx context.Context, pc postcode.Canonical) (assessclient.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pc)
	f.mu.Unlock()
	return f.runFn(ctx, pc)
}

func (f *fakeAssessor) UpdateNotes(ctx context.Context, id, notes string) error {
	f.mu.Lock()
	f.noteCalls++
	f.mu.Unlock()
	if f.notesFn == nil {
		return nil
	}
	return f.notesFn(ctx, id, notes)
}

func (f *fakeAssessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeHistory struct {
	mu       sync.Mutex
	inserted []sqlcgen.InsertAssessmentSnapshotParams
	notes    []sqlcgen.SetAssessmentNotesParams
}

func (h *fakeHistory) InsertAssessmentSnapshot(_ context.Context, arg sqlcgen.InsertAssessmentSnapshotParams) (sqlcgen.AssessmentSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inserted = append(h.inserted, arg)
	return sqlcgen.AssessmentSnapshot{ID: "row-1", Postcode: arg.Postcode}, nil
}

func (h *fakeHistory) SetAssessmentNotes(_ context.Context, arg sqlcgen.SetAssessmentNotesParams) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notes = append(h.notes, arg)
	return 1, nil
}

type profileMap map[string]domain.VehicleProfile

func (m profileMap) Lookup(class string) (domain.VehicleProfile, bool) {
	p, ok := m[class]
	return p, ok
}

var testProfiles = profileMap{
	"luton_3_5t": {Name: "Luton van", VehicleClass: "luton_3_5t", WidthM: 2.1, LengthM: 6.5, HeightM: 3.2, WeightKg: 3500, TurningRadiusM: 6.8},
	"box_7_5t":   {Name: "7.5t box", VehicleClass: "box_7_5t", WidthM: 2.5, LengthM: 8, HeightM: 3.6, WeightKg: 7500, TurningRadiusM: 8.5},
}

func resultFor(t *testing.T, pc string, lat, lon float64, id string) *domain.AssessmentResult {
	t.Helper()
	doc := map[string]any{
		"postcode":       pc,
		"latitude":       lat,
		"longitude":      lon,
		"overall_rating": "AMBER",
		"vehicle_assessments": []any{
			map[string]any{"vehicle_name": "Luton van", "vehicle_class": "luton_3_5t", "overall_rating": "GREEN", "confidence": 1, "checks": []any{}, "recommendation": "ok"},
			map[string]any{"vehicle_name": "7.5t box", "vehicle_class": "box_7_5t", "overall_rating": "AMBER", "confidence": 0.8, "checks": []any{}, "recommendation": "check"},
			map[string]any{"vehicle_name": "Artic", "vehicle_class": "artic_44t", "overall_rating": "AMBER", "confidence": 0.5, "checks": []any{}, "recommendation": "no"},
		},
		"data_sources": map[string]any{
			"geocoding": map[string]any{"source": "postcodes.io", "status": "ok"},
			"elevation": map[string]any{"source": "lidar", "status": "unavailable", "note": "no tiles"},
		},
		"geojson_overlays": map[string]any{
			"width_measurements": map[string]any{"type": "FeatureCollection", "features": []any{
				map[string]any{"type": "Feature", "geometry": map[string]any{"type": "LineString", "coordinates": [][]float64{{lon, lat}, {lon + 0.0001, lat}}}, "properties": map[string]any{"width_m": 3.4}},
			}},
			"roads": map[string]any{"type": "FeatureCollection", "features": []any{
				map[string]any{"type": "Feature", "geometry": map[string]any{"type": "Point", "coordinates": []float64{lon, lat}}, "properties": map[string]any{}},
			}},
		},
	}
	if id != "" {
		doc["id"] = id
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var r domain.AssessmentResult
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &r
}

func newTestOrchestrator(t *testing.T, a *fakeAssessor, h HistoryStore) (*Orchestrator, *mapsurface.Surface) {
	t.Helper()
	ctrl := mapsurface.NewController(zerolog.Nop(), mapsurface.Options{})
	o := New(zerolog.Nop(), a, ctrl, Options{
		Profiles:  testProfiles,
		Projector: envelope.NewProjector(false),
		History:   h,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	s, err := o.Mount(context.Background(), mapsurface.NewAnchor("map"))
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	return o, s
}

func okAssessor(t *testing.T) *fakeAssessor {
	return &fakeAssessor{runFn: func(_ context.Context, pc postcode.Canonical) (assessclient.Outcome, error) {
		return assessclient.Outcome{Kind: assessclient.KindAnonymous, Result: resultFor(t, pc.String(), 50.8225, -0.1372, "")}, nil
	}}
}

func layerKinds(s *mapsurface.Surface) map[string]int {
	out := map[string]int{}
	for _, l := range s.Layers() {
		out[l.Kind]++
	}
	return out
}

func TestSubmit_NormalisesPostcodeBeforeRequest(t *testing.T) {
	a := okAssessor(t)
	o, s := newTestOrchestrator(t, a, nil)

	snap, err := o.Submit(context.Background(), "bn1 1ab")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a.calls[0] != "BN1 1AB" {
		t.Fatalf("expected request for BN1 1AB, got %q", a.calls[0])
	}
	if snap.State != StateReady || snap.Result == nil || snap.Postcode != "BN1 1AB" {
		t.Fatalf("expected ready snapshot for BN1 1AB, got %#v", snap)
	}
	if snap.DisplayRating != domain.RatingAmber {
		t.Fatalf("expected display rating AMBER, got %s", snap.DisplayRating)
	}
	if len(snap.DataSources) != 2 || snap.DataSources[0].Stage != "elevation" {
		t.Fatalf("expected data sources sorted by stage, got %#v", snap.DataSources)
	}
	cam := s.Camera()
	if cam.Zoom != mapsurface.InspectionZoom || cam.Center != (domain.LatLon{Lat: 50.8225, Lon: -0.1372}) {
		t.Fatalf("expected camera at the result, got %#v", cam)
	}
	kinds := layerKinds(s)
	if kinds[mapsurface.KindWidths] != 1 || kinds[mapsurface.KindRoads] != 1 || kinds[mapsurface.KindPinchPoints] != 1 {
		t.Fatalf("expected result overlays, got %v", kinds)
	}
}

func TestSubmit_ValidationErrorsNeverReachBackend(t *testing.T) {
	a := okAssessor(t)
	o, _ := newTestOrchestrator(t, a, nil)

	if _, err := o.Submit(context.Background(), "   "); !errors.Is(err, postcode.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := o.Submit(context.Background(), "NOT A POSTCODE"); !errors.Is(err, postcode.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if a.callCount() != 0 {
		t.Fatalf("expected no backend calls, got %d", a.callCount())
	}
	if o.State() != StateIdle {
		t.Fatalf("expected idle, got %s", o.State())
	}
}

func TestToggleVehicle_SelectClearReplace(t *testing.T) {
	o, s := newTestOrchestrator(t, okAssessor(t), nil)
	if _, err := o.ToggleVehicle("luton_3_5t"); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult before any result, got %v", err)
	}
	if _, err := o.Submit(context.Background(), "BN1 1AB"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	before := o.Snapshot().Result

	snap, err := o.ToggleVehicle("luton_3_5t")
	if err != nil || snap.SelectedVehicle != "luton_3_5t" {
		t.Fatalf("expected luton selected, got %q err=%v", snap.SelectedVehicle, err)
	}
	if snap.Inspector == nil || snap.Inspector.Title != "Luton van" || len(snap.Inspector.Identity) < 2 {
		t.Fatalf("expected profile-enriched inspector, got %#v", snap.Inspector)
	}
	if k := layerKinds(s); k[mapsurface.KindEnvelopeBody] != 1 || k[mapsurface.KindTurningCircle] != 1 {
		t.Fatalf("expected one envelope, got %v", k)
	}

	snap, _ = o.ToggleVehicle("luton_3_5t")
	if snap.SelectedVehicle != "" || snap.Inspector != nil {
		t.Fatalf("expected selection cleared, got %q", snap.SelectedVehicle)
	}
	if k := layerKinds(s); k[mapsurface.KindEnvelopeBody] != 0 {
		t.Fatalf("expected envelope removed, got %v", k)
	}

	if _, err := o.ToggleVehicle("luton_3_5t"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	snap, _ = o.ToggleVehicle("box_7_5t")
	if snap.SelectedVehicle != "box_7_5t" {
		t.Fatalf("expected box to replace luton directly, got %q", snap.SelectedVehicle)
	}
	if k := layerKinds(s); k[mapsurface.KindEnvelopeBody] != 1 {
		t.Fatalf("expected exactly one envelope after replace, got %v", k)
	}

	if _, err := o.ToggleVehicle("tractor"); !errors.Is(err, ErrUnknownVehicle) {
		t.Fatalf("expected ErrUnknownVehicle, got %v", err)
	}
	if o.Snapshot().Result != before {
		t.Fatalf("expected selection to leave the result untouched")
	}
}

func TestToggleVehicle_UnresolvedProfileDrawsNothing(t *testing.T) {
	o, s := newTestOrchestrator(t, okAssessor(t), nil)
	if _, err := o.Submit(context.Background(), "BN1 1AB"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap, err := o.ToggleVehicle("artic_44t")
	if err != nil || snap.SelectedVehicle != "artic_44t" {
		t.Fatalf("expected artic selected, got %q err=%v", snap.SelectedVehicle, err)
	}
	if k := layerKinds(s); k[mapsurface.KindEnvelopeBody] != 0 || k[mapsurface.KindTurningCircle] != 0 {
		t.Fatalf("expected no envelope without a profile, got %v", k)
	}
	if snap.Inspector == nil || len(snap.Inspector.Identity) != 1 {
		t.Fatalf("expected inspector without profile fields, got %#v", snap.Inspector)
	}
}

func TestNewResult_ResetsSelectionAndOldGeometry(t *testing.T) {
	a := &fakeAssessor{runFn: func(_ context.Context, pc postcode.Canonical) (assessclient.Outcome, error) {
		if pc == "BN1 1AB" {
			return assessclient.Outcome{Kind: assessclient.KindAnonymous, Result: resultFor(t, "BN1 1AB", 50.8225, -0.1372, "")}, nil
		}
		return assessclient.Outcome{Kind: assessclient.KindAnonymous, Result: resultFor(t, "SW1A 1AA", 51.501, -0.1416, "")}, nil
	}}
	o, s := newTestOrchestrator(t, a, nil)

	if _, err := o.Submit(context.Background(), "BN1 1AB"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := o.ToggleVehicle("luton_3_5t"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	oldIDs := map[string]bool{}
	for _, l := range s.Layers() {
		if l.Kind != mapsurface.KindTiles {
			oldIDs[l.ID] = true
		}
	}

	snap, err := o.Submit(context.Background(), "SW1A 1AA")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if snap.SelectedVehicle != "" {
		t.Fatalf("expected selection reset, got %q", snap.SelectedVehicle)
	}
	for _, l := range s.Layers() {
		if oldIDs[l.ID] {
			t.Fatalf("expected old %s layer to be removed", l.Kind)
		}
	}
	k := layerKinds(s)
	if k[mapsurface.KindWidths] != 1 || k[mapsurface.KindEnvelopeBody] != 0 || k[mapsurface.KindTiles] != 1 {
		t.Fatalf("expected only the new result overlays, got %v", k)
	}
	if len(snap.Recent) != 2 || snap.Recent[0].Postcode != "SW1A 1AA" {
		t.Fatalf("expected newest-first recent list, got %#v", snap.Recent)
	}
}

func TestSubmit_FailureKeepsPreviousResult(t *testing.T) {
	fail := false
	a := &fakeAssessor{runFn: func(_ context.Context, pc postcode.Canonical) (assessclient.Outcome, error) {
		if fail {
			return assessclient.Outcome{}, &assessclient.Error{Status: 502, Message: "OS API unavailable"}
		}
		return assessclient.Outcome{Kind: assessclient.KindAnonymous, Result: resultFor(t, pc.String(), 50.8, -0.13, "")}, nil
	}}
	o, s := newTestOrchestrator(t, a, nil)
	if _, err := o.Submit(context.Background(), "BN1 1AB"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	layersBefore := len(s.Layers())

	fail = true
	snap, err := o.Submit(context.Background(), "SW1A 1AA")
	var upErr *assessclient.Error
	if !errors.As(err, &upErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if snap.State != StateError || snap.Error != "OS API unavailable" {
		t.Fatalf("expected error state with server message, got %s %q", snap.State, snap.Error)
	}
	if snap.Result == nil || snap.Result.Postcode != "BN1 1AB" {
		t.Fatalf("expected previous result to be kept, got %#v", snap.Result)
	}
	if len(s.Layers()) != layersBefore {
		t.Fatalf("expected previous overlays to stay on the map")
	}

	snap, err = o.DismissError(context.Background())
	if err != nil || snap.State != StateReady || snap.Error != "" {
		t.Fatalf("expected ready after dismiss, got %s %q err=%v", snap.State, snap.Error, err)
	}
}

func TestDismissError_WithoutResultReturnsToIdle(t *testing.T) {
	a := &fakeAssessor{runFn: func(context.Context, postcode.Canonical) (assessclient.Outcome, error) {
		return assessclient.Outcome{}, errors.New("dial tcp: connection refused")
	}}
	o, _ := newTestOrchestrator(t, a, nil)
	snap, _ := o.Submit(context.Background(), "BN1 1AB")
	if snap.State != StateError || snap.Error != "dial tcp: connection refused" {
		t.Fatalf("expected error state, got %s %q", snap.State, snap.Error)
	}
	snap, err := o.DismissError(context.Background())
	if err != nil || snap.State != StateIdle {
		t.Fatalf("expected idle after dismiss, got %s err=%v", snap.State, err)
	}
}

func TestSubmit_SecondSubmitWhilePendingIsBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	a := &fakeAssessor{runFn: func(_ context.Context, pc postcode.Canonical) (assessclient.Outcome, error) {
		close(started)
		<-release
		return assessclient.Outcome{Kind: assessclient.KindAnonymous, Result: resultFor(t, pc.String(), 50.8, -0.13, "")}, nil
	}}
	o, _ := newTestOrchestrator(t, a, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), "BN1 1AB")
		done <- err
	}()
	<-started

	if o.State() != StatePending {
		t.Fatalf("expected pending, got %s", o.State())
	}
	if _, err := o.Submit(context.Background(), "SW1A 1AA"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if a.callCount() != 1 {
		t.Fatalf("expected a single backend call, got %d", a.callCount())
	}
	if o.State() != StateReady {
		t.Fatalf("expected ready, got %s", o.State())
	}
}

func TestEnter_AutoSubmitsOncePerDistinctValue(t *testing.T) {
	a := okAssessor(t)
	o, _ := newTestOrchestrator(t, a, nil)
	ctx := context.Background()

	if _, submitted, err := o.Enter(ctx, "BN1 1AB"); err != nil || !submitted {
		t.Fatalf("expected first entry to submit, got submitted=%v err=%v", submitted, err)
	}
	if _, submitted, _ := o.Enter(ctx, " BN1 1AB "); submitted {
		t.Fatalf("expected repeated entry to be ignored")
	}
	if _, submitted, _ := o.Enter(ctx, "SW1A 1AA"); !submitted {
		t.Fatalf("expected a new value to submit")
	}
	if _, submitted, _ := o.Enter(ctx, "BN1 1AB"); !submitted {
		t.Fatalf("expected a changed-back value to submit again")
	}
	if a.callCount() != 3 {
		t.Fatalf("expected 3 backend calls, got %d", a.callCount())
	}
}

func TestUpdateNotes(t *testing.T) {
	persisted := false
	a := &fakeAssessor{runFn: func(_ context.Context, pc postcode.Canonical) (assessclient.Outcome, error) {
		if persisted {
			return assessclient.Outcome{Kind: assessclient.KindAuthenticated, Result: resultFor(t, pc.String(), 50.8, -0.13, "a-1")}, nil
		}
		return assessclient.Outcome{Kind: assessclient.KindAnonymous, Result: resultFor(t, pc.String(), 50.8, -0.13, "")}, nil
	}}
	h := &fakeHistory{}
	o, _ := newTestOrchestrator(t, a, h)
	ctx := context.Background()

	if _, err := o.UpdateNotes(ctx, "x"); !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted without a result, got %v", err)
	}
	if _, err := o.Submit(ctx, "BN1 1AB"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap := o.Snapshot(); snap.CanEditNotes {
		t.Fatalf("expected anonymous result to refuse notes")
	}
	if _, err := o.UpdateNotes(ctx, "x"); !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted for anonymous result, got %v", err)
	}

	persisted = true
	if _, err := o.Submit(ctx, "BN1 1AB"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap, err := o.UpdateNotes(ctx, "gate code 4411")
	if err != nil {
		t.Fatalf("update notes: %v", err)
	}
	if snap.Notes != "gate code 4411" || a.noteCalls != 1 {
		t.Fatalf("expected notes stored once, got %q calls=%d", snap.Notes, a.noteCalls)
	}
	if len(h.inserted) != 2 || h.inserted[1].AssessmentID == nil || *h.inserted[1].AssessmentID != "a-1" {
		t.Fatalf("expected both results recorded, got %#v", h.inserted)
	}
	if h.inserted[0].Outcome != string(assessclient.KindAnonymous) || h.inserted[0].VehicleCount != 3 {
		t.Fatalf("unexpected history row %#v", h.inserted[0])
	}
	if len(h.notes) != 1 || h.notes[0].AssessmentID != "a-1" {
		t.Fatalf("expected history notes update, got %#v", h.notes)
	}
}

func TestClose_DisposesSurface(t *testing.T) {
	o, s := newTestOrchestrator(t, okAssessor(t), nil)
	ctx := context.Background()
	if err := o.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !s.Disposed() {
		t.Fatalf("expected surface disposed on close")
	}
	if _, err := o.Submit(ctx, "BN1 1AB"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := o.Close(ctx); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
}

func TestSubmit_NullWidthFeatureStillDraws(t *testing.T) {
	a := &fakeAssessor{runFn: func(_ context.Context, pc postcode.Canonical) (assessclient.Outcome, error) {
		r := resultFor(t, pc.String(), 50.8225, -0.1372, "")
		r.Overlays.WidthMeasurements.Features = append(r.Overlays.WidthMeasurements.Features, nil)
		return assessclient.Outcome{Kind: assessclient.KindAnonymous, Result: r}, nil
	}}
	o, s := newTestOrchestrator(t, a, nil)

	snap, err := o.Submit(context.Background(), "BN1 1AB")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap.State != StateReady {
		t.Fatalf("expected ready, got %s", snap.State)
	}
	if k := layerKinds(s); k[mapsurface.KindWidths] != 1 {
		t.Fatalf("expected the widths layer drawn, got %v", k)
	}
}

func TestSubmit_DrawFailureKeepsViewUsable(t *testing.T) {
	broken := false
	a := &fakeAssessor{runFn: func(_ context.Context, pc postcode.Canonical) (assessclient.Outcome, error) {
		if broken {
			return assessclient.Outcome{Kind: assessclient.KindAnonymous}, nil
		}
		return assessclient.Outcome{Kind: assessclient.KindAnonymous, Result: resultFor(t, pc.String(), 50.8, -0.13, "")}, nil
	}}
	o, s := newTestOrchestrator(t, a, nil)
	if _, err := o.Submit(context.Background(), "BN1 1AB"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	layersBefore := len(s.Layers())

	broken = true
	snap, err := o.Submit(context.Background(), "SW1A 1AA")
	if !errors.Is(err, ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	if snap.State != StateError {
		t.Fatalf("expected error state, got %s", snap.State)
	}
	if snap.Result == nil || snap.Result.Postcode != "BN1 1AB" {
		t.Fatalf("expected previous result restored, got %#v", snap.Result)
	}
	if len(snap.Recent) != 1 {
		t.Fatalf("expected recent list unchanged, got %#v", snap.Recent)
	}
	if len(s.Layers()) != layersBefore {
		t.Fatalf("expected previous overlays redrawn, got %d layers want %d", len(s.Layers()), layersBefore)
	}

	done := make(chan Snapshot, 1)
	go func() { done <- o.Snapshot() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the view lock to be released after a draw failure")
	}

	broken = false
	if snap, err := o.Submit(context.Background(), "SW1A 1AA"); err != nil || snap.State != StateReady {
		t.Fatalf("expected a later submit to succeed, got %s err=%v", snap.State, err)
	}
}

func TestEnter_BusyValueIsNotRemembered(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	a := &fakeAssessor{runFn: func(_ context.Context, pc postcode.Canonical) (assessclient.Outcome, error) {
		if pc.String() == "SW1A 1AA" {
			started <- struct{}{}
			<-release
		}
		return assessclient.Outcome{Kind: assessclient.KindAnonymous, Result: resultFor(t, pc.String(), 50.8, -0.13, "")}, nil
	}}
	o, _ := newTestOrchestrator(t, a, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(ctx, "SW1A 1AA")
		done <- err
	}()
	<-started

	if _, submitted, err := o.Enter(ctx, "BN1 1AB"); !errors.Is(err, ErrBusy) || submitted {
		t.Fatalf("expected busy entry, got submitted=%v err=%v", submitted, err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}

	if _, submitted, err := o.Enter(ctx, "BN1 1AB"); err != nil || !submitted {
		t.Fatalf("expected the turned-away value to submit, got submitted=%v err=%v", submitted, err)
	}
	if a.callCount() != 2 {
		t.Fatalf("expected 2 backend calls, got %d", a.callCount())
	}
}
