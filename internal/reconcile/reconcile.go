// Package reconcile owns the in-memory snapshot of the build. It merges remote
// records with local overrides on load, and degrades zone and structure writes
// the remote schema rejects into local overrides.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teamstreem/realm/internal/airtable"
	"github.com/teamstreem/realm/internal/codec"
	"github.com/teamstreem/realm/internal/model"
	"github.com/teamstreem/realm/internal/notifier"
	"github.com/teamstreem/realm/internal/state"
	"golang.org/x/sync/errgroup"
)

// Lookup errors for ids that are not in the current snapshot.
var (
	ErrZoneNotFound      = errors.New("zone not found")
	ErrStructureNotFound = errors.New("structure not found")
)

// DefaultKidsSessionLimit is how many sessions the kid-filtered load keeps.
const DefaultKidsSessionLimit = 10

// Gateway is the remote table API the reconciler reads and writes.
type Gateway interface {
	ListAll(ctx context.Context, table string, opts airtable.ListOptions) ([]airtable.Record, error)
	CreateRecord(ctx context.Context, table string, fields airtable.Fields) (airtable.Record, error)
	UpdateRecord(ctx context.Context, table, id string, fields airtable.Fields) (airtable.Record, error)
}

// OverrideStore is the part of state.Store the reconciler needs.
type OverrideStore interface {
	SetOverride(o state.Override) error
	Overrides(kind state.OverrideKind) (map[string]state.Override, error)
}

// Outcome is how a zone or structure write ended.
type Outcome int

// Write outcomes.
const (
	Failed Outcome = iota
	Committed
	SavedLocally
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case SavedLocally:
		return "saved_locally"
	default:
		return "failed"
	}
}

// Config configures a Reconciler.
type Config struct {
	Gateway Gateway
	// Store holds overrides. Without one, schema rejections propagate as errors.
	Store            OverrideStore
	Logger           *slog.Logger
	Metrics          *Metrics
	KidsSessionLimit int
	Now              func() time.Time
}

// Reconciler is the single writer of the published snapshot.
type Reconciler struct {
	gw           Gateway
	store        OverrideStore
	logger       *slog.Logger
	metrics      *Metrics
	sessionLimit int
	now          func() time.Time

	snap     atomic.Pointer[Snapshot]
	mu       sync.Mutex // serializes publish
	notifier *notifier.Notifier[*Snapshot]
}

// New creates a Reconciler with an empty snapshot.
func New(cfg Config) *Reconciler {
	r := &Reconciler{
		gw:           cfg.Gateway,
		store:        cfg.Store,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		sessionLimit: cfg.KidsSessionLimit,
		now:          cfg.Now,
		notifier:     notifier.New[*Snapshot](),
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.sessionLimit <= 0 {
		r.sessionLimit = DefaultKidsSessionLimit
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.snap.Store(&Snapshot{})
	return r
}

// Snapshot returns the currently published snapshot.
func (r *Reconciler) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Subscribe returns a channel that receives the latest snapshot after every publish.
func (r *Reconciler) Subscribe() <-chan *Snapshot {
	return r.notifier.Subscribe()
}

// Unsubscribe stops delivery to sub and closes it.
func (r *Reconciler) Unsubscribe(sub <-chan *Snapshot) {
	r.notifier.Unsubscribe(sub)
}

// LoadAll rebuilds the snapshot from every remote record.
func (r *Reconciler) LoadAll(ctx context.Context) (*Snapshot, error) {
	return r.load(ctx, 0)
}

// LoadKids rebuilds the snapshot keeping only the most recent sessions.
// Hidden records are still loaded; Snapshot.ForKids drops them.
func (r *Reconciler) LoadKids(ctx context.Context) (*Snapshot, error) {
	return r.load(ctx, r.sessionLimit)
}

func (r *Reconciler) load(ctx context.Context, sessionLimit int) (*Snapshot, error) {
	var (
		zones      []model.Zone
		structures []model.Structure
		materials  []model.Material
		sessions   []model.BuildSession
	)

	// Siblings are not cancelled on the first error; their results are dropped.
	var g errgroup.Group
	g.Go(func() error {
		recs, err := r.gw.ListAll(ctx, airtable.TableZones, airtable.ListOptions{
			Sort: []airtable.Sort{{Field: codec.FieldZoneNumber, Direction: airtable.Asc}},
		})
		if err != nil {
			return fmt.Errorf("list zones: %w", err)
		}
		zones = make([]model.Zone, 0, len(recs))
		for _, rec := range recs {
			zones = append(zones, codec.DecodeZone(rec))
		}
		return nil
	})
	g.Go(func() error {
		recs, err := r.gw.ListAll(ctx, airtable.TableStructures, airtable.ListOptions{})
		if err != nil {
			return fmt.Errorf("list structures: %w", err)
		}
		structures = make([]model.Structure, 0, len(recs))
		for _, rec := range recs {
			structures = append(structures, codec.DecodeStructure(rec))
		}
		return nil
	})
	g.Go(func() error {
		recs, err := r.gw.ListAll(ctx, airtable.TableMaterials, airtable.ListOptions{})
		if err != nil {
			return fmt.Errorf("list materials: %w", err)
		}
		materials = make([]model.Material, 0, len(recs))
		for _, rec := range recs {
			materials = append(materials, codec.DecodeMaterial(rec))
		}
		return nil
	})
	g.Go(func() error {
		recs, err := r.gw.ListAll(ctx, airtable.TableSessions, airtable.ListOptions{
			Sort:       []airtable.Sort{{Field: codec.FieldSessionDate, Direction: airtable.Desc}},
			MaxRecords: sessionLimit,
		})
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if sessionLimit > 0 && len(recs) > sessionLimit {
			recs = recs[:sessionLimit]
		}
		sessions = make([]model.BuildSession, 0, len(recs))
		for _, rec := range recs {
			sessions = append(sessions, codec.DecodeSession(rec))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		r.metrics.load(err, 0)
		return nil, err
	}

	if err := r.applyOverrides(zones, structures); err != nil {
		r.metrics.load(err, 0)
		return nil, err
	}

	loadedAt := r.now()
	r.mu.Lock()
	next := (&Snapshot{version: r.snap.Load().version, loadedAt: loadedAt, materials: materials}).
		with(zones, structures, sessions)
	r.publishLocked(next)
	r.mu.Unlock()

	r.metrics.load(nil, float64(loadedAt.Unix()))
	r.logger.Debug("snapshot loaded",
		"zones", len(zones),
		"structures", len(structures),
		"materials", len(materials),
		"sessions", len(sessions),
		"version", next.version)
	return next, nil
}

// applyOverrides writes stored overrides onto zones and structures in place.
func (r *Reconciler) applyOverrides(zones []model.Zone, structures []model.Structure) error {
	if r.store == nil {
		return nil
	}
	zoneOverrides, err := r.store.Overrides(state.KindZone)
	if err != nil {
		return fmt.Errorf("read zone overrides: %w", err)
	}
	structureOverrides, err := r.store.Overrides(state.KindStructure)
	if err != nil {
		return fmt.Errorf("read structure overrides: %w", err)
	}

	for i := range zones {
		if o, ok := zoneOverrides[zones[i].ID]; ok {
			applyZoneOverride(&zones[i], o)
		}
	}
	for i := range structures {
		if o, ok := structureOverrides[structures[i].ID]; ok {
			applyStructureOverride(&structures[i], o)
		}
	}
	return nil
}

// applyZoneOverride sets the zone triple. An unknown stored status is ignored.
func applyZoneOverride(z *model.Zone, o state.Override) {
	z.Visible = o.Visible
	if status, ok := model.ParseZoneStatus(o.Status); ok {
		z.Status = status
	}
	z.Teaser = o.Teaser
}

// applyStructureOverride sets visibility and any stored text. Empty text is
// never written to the remote, so it leaves the remote value in place.
func applyStructureOverride(s *model.Structure, o state.Override) {
	s.Visible = o.Visible
	if o.KidsText != "" {
		s.KidsText = o.KidsText
	}
	if o.RealText != "" {
		s.RealText = o.RealText
	}
}

// ReapplyOverrides re-reads the override store and republishes the current
// snapshot without contacting the remote.
func (r *Reconciler) ReapplyOverrides(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	zones := cur.Zones()
	structures := cur.Structures()
	if err := r.applyOverrides(zones, structures); err != nil {
		return nil, err
	}
	next := cur.with(zones, structures, nil)
	r.publishLocked(next)
	return next, nil
}

// UpdateZone writes z to the remote. A schema rejection saves the zone's
// visibility, status and teaser as a local override and still succeeds.
func (r *Reconciler) UpdateZone(ctx context.Context, z model.Zone) (Outcome, error) {
	rec, err := r.gw.UpdateRecord(ctx, airtable.TableZones, z.ID, codec.EncodeZone(z))
	switch {
	case err == nil:
		merged := z
		if rec.ID != "" {
			merged = codec.DecodeZone(rec)
			merged.Visible, merged.Status, merged.Teaser = z.Visible, z.Status, z.Teaser
		}
		// A stale override would shadow the committed values on the next load.
		if err := r.refreshOverride(zoneOverride(z)); err != nil {
			r.logger.Warn("refresh zone override failed", "zone_id", z.ID, "error", err)
		}
		r.spliceZone(merged)
		r.metrics.write(string(state.KindZone), Committed)
		return Committed, nil

	case r.store != nil && airtable.IsSchemaRejection(err):
		o := zoneOverride(z)
		o.UpdatedAt = r.now()
		if serr := r.store.SetOverride(o); serr != nil {
			r.metrics.write(string(state.KindZone), Failed)
			return Failed, fmt.Errorf("save zone override: %w", serr)
		}
		r.logger.Warn("zone write rejected by remote schema, saved locally",
			"zone_id", z.ID,
			"reason", o.Reason,
			"error", err)
		r.spliceZone(z)
		r.metrics.write(string(state.KindZone), SavedLocally)
		return SavedLocally, nil

	default:
		r.metrics.write(string(state.KindZone), Failed)
		return Failed, fmt.Errorf("update zone %s: %w", z.ID, err)
	}
}

// UpdateStructure writes s to the remote. A schema rejection saves the
// structure's visibility and narrative text as a local override and still succeeds.
func (r *Reconciler) UpdateStructure(ctx context.Context, s model.Structure) (Outcome, error) {
	rec, err := r.gw.UpdateRecord(ctx, airtable.TableStructures, s.ID, codec.EncodeStructure(s))
	switch {
	case err == nil:
		merged := s
		if rec.ID != "" {
			merged = codec.DecodeStructure(rec)
			merged.Visible = s.Visible
		}
		if err := r.refreshOverride(structureOverride(s)); err != nil {
			r.logger.Warn("refresh structure override failed", "structure_id", s.ID, "error", err)
		}
		r.spliceStructure(merged)
		r.metrics.write(string(state.KindStructure), Committed)
		return Committed, nil

	case r.store != nil && airtable.IsSchemaRejection(err):
		o := structureOverride(s)
		o.UpdatedAt = r.now()
		if serr := r.store.SetOverride(o); serr != nil {
			r.metrics.write(string(state.KindStructure), Failed)
			return Failed, fmt.Errorf("save structure override: %w", serr)
		}
		r.logger.Warn("structure write rejected by remote schema, saved locally",
			"structure_id", s.ID,
			"reason", o.Reason,
			"error", err)
		r.spliceStructure(s)
		r.metrics.write(string(state.KindStructure), SavedLocally)
		return SavedLocally, nil

	default:
		r.metrics.write(string(state.KindStructure), Failed)
		return Failed, fmt.Errorf("update structure %s: %w", s.ID, err)
	}
}

// refreshOverride overwrites an existing override after a committed write.
// Records without an override are left alone.
func (r *Reconciler) refreshOverride(o state.Override) error {
	if r.store == nil {
		return nil
	}
	existing, err := r.store.Overrides(o.Kind)
	if err != nil {
		return fmt.Errorf("read %s overrides: %w", o.Kind, err)
	}
	if _, ok := existing[o.RecordID]; !ok {
		return nil
	}
	o.UpdatedAt = r.now()
	if err := r.store.SetOverride(o); err != nil {
		return fmt.Errorf("refresh %s override: %w", o.Kind, err)
	}
	return nil
}

func zoneOverride(z model.Zone) state.Override {
	return state.Override{
		Kind:     state.KindZone,
		RecordID: z.ID,
		Visible:  z.Visible,
		Status:   string(z.Status),
		Teaser:   z.Teaser,
		Reason:   state.ReasonSchemaMismatch,
	}
}

func structureOverride(s model.Structure) state.Override {
	return state.Override{
		Kind:     state.KindStructure,
		RecordID: s.ID,
		Visible:  s.Visible,
		KidsText: s.KidsText,
		RealText: s.RealText,
		Reason:   state.ReasonSchemaMismatch,
	}
}

// CreateSession creates s remotely and prepends the stored record to the
// snapshot. Errors propagate; sessions have no local fallback.
func (r *Reconciler) CreateSession(ctx context.Context, s model.BuildSession) (model.BuildSession, error) {
	rec, err := r.gw.CreateRecord(ctx, airtable.TableSessions, codec.EncodeSession(s))
	if err != nil {
		r.metrics.write("session", Failed)
		return model.BuildSession{}, fmt.Errorf("create session: %w", err)
	}
	created := codec.DecodeSession(rec)

	r.mu.Lock()
	cur := r.snap.Load()
	sessions := make([]model.BuildSession, 0, len(cur.sessions)+1)
	sessions = append(sessions, created)
	sessions = append(sessions, cur.sessions...)
	r.publishLocked(cur.with(nil, nil, sessions))
	r.mu.Unlock()

	r.metrics.write("session", Committed)
	return created.Clone(), nil
}

// ToggleZoneVisibility flips a zone's visibility.
func (r *Reconciler) ToggleZoneVisibility(ctx context.Context, id string) (model.Zone, Outcome, error) {
	return r.editZone(ctx, id, func(z *model.Zone) { z.Visible = !z.Visible })
}

// SetZoneStatus sets a zone's status.
func (r *Reconciler) SetZoneStatus(ctx context.Context, id string, status model.ZoneStatus) (model.Zone, Outcome, error) {
	return r.editZone(ctx, id, func(z *model.Zone) { z.Status = status })
}

// SetZoneTeaser sets the text shown while a zone is locked.
func (r *Reconciler) SetZoneTeaser(ctx context.Context, id, teaser string) (model.Zone, Outcome, error) {
	return r.editZone(ctx, id, func(z *model.Zone) { z.Teaser = teaser })
}

// EditZone applies edit to the current copy of a zone and writes it.
func (r *Reconciler) EditZone(ctx context.Context, id string, edit func(*model.Zone)) (model.Zone, Outcome, error) {
	return r.editZone(ctx, id, edit)
}

func (r *Reconciler) editZone(ctx context.Context, id string, edit func(*model.Zone)) (model.Zone, Outcome, error) {
	z, ok := r.Snapshot().Zone(id)
	if !ok {
		return model.Zone{}, Failed, fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}
	edit(&z)
	outcome, err := r.UpdateZone(ctx, z)
	if err != nil {
		return model.Zone{}, outcome, err
	}
	return z, outcome, nil
}

// ToggleStructureVisibility flips a structure's visibility.
func (r *Reconciler) ToggleStructureVisibility(ctx context.Context, id string) (model.Structure, Outcome, error) {
	return r.EditStructure(ctx, id, func(s *model.Structure) { s.Visible = !s.Visible })
}

// EditStructure applies edit to the current copy of a structure and writes it.
func (r *Reconciler) EditStructure(ctx context.Context, id string, edit func(*model.Structure)) (model.Structure, Outcome, error) {
	s, ok := r.Snapshot().Structure(id)
	if !ok {
		return model.Structure{}, Failed, fmt.Errorf("%w: %s", ErrStructureNotFound, id)
	}
	edit(&s)
	outcome, err := r.UpdateStructure(ctx, s)
	if err != nil {
		return model.Structure{}, outcome, err
	}
	return s, outcome, nil
}

// spliceZone replaces the zone with the same id. Unknown ids are ignored.
func (r *Reconciler) spliceZone(z model.Zone) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	zones := cur.Zones()
	for i := range zones {
		if zones[i].ID == z.ID {
			zones[i] = z.Clone()
			r.publishLocked(cur.with(zones, nil, nil))
			return
		}
	}
}

// spliceStructure replaces the structure with the same id. Unknown ids are ignored.
func (r *Reconciler) spliceStructure(s model.Structure) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	structures := cur.Structures()
	for i := range structures {
		if structures[i].ID == s.ID {
			structures[i] = s.Clone()
			r.publishLocked(cur.with(nil, structures, nil))
			return
		}
	}
}

// publishLocked stores next and notifies subscribers. r.mu must be held.
func (r *Reconciler) publishLocked(next *Snapshot) {
	r.snap.Store(next)
	r.notifier.Broadcast(next)
}
