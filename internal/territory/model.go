// Package territory owns the in-memory territory set: membership of counties and
// ZIP areas, per-territory aggregates and the session pointers that drive the map.
package territory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/territory-mapper/internal/logger"
	"github.com/stwalsh4118/territory-mapper/internal/metrics"
	"github.com/stwalsh4118/territory-mapper/internal/models"
)

var (
	// ErrTerritoryNotFound is returned when a territory id does not exist.
	ErrTerritoryNotFound = errors.New("territory not found")
	// ErrEmptyName is returned when a rename would leave a blank name.
	ErrEmptyName = errors.New("territory name cannot be empty")
)

// DefaultPalette is used when no palette is configured.
var DefaultPalette = []string{
	"#6366f1", "#ec4899", "#14b8a6", "#f59e0b", "#8b5cf6",
	"#06b6d4", "#f43f5e", "#22c55e", "#3b82f6", "#a855f7",
}

// StatsSource resolves unit statistics. Both the Census client and the
// statistics cache satisfy it.
type StatsSource interface {
	Lookup(ctx context.Context, ref models.UnitRef) (models.UnitStats, error)
}

// Option configures a Model.
type Option func(*Model)

// WithPalette overrides the territory colors.
func WithPalette(colors []string) Option {
	return func(m *Model) {
		if len(colors) > 0 {
			m.palette = append([]string(nil), colors...)
		}
	}
}

// WithLogger sets the model logger.
func WithLogger(log *logger.Logger) Option {
	return func(m *Model) {
		m.log = log.WithComponent("territory")
	}
}

// WithMetrics enables toggle and territory metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Model) {
		m.metrics = mt
	}
}

// WithIDGenerator replaces the UUID generator, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(m *Model) {
		m.newID = fn
	}
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(m *Model) {
		m.now = fn
	}
}

type territory struct {
	id        string
	number    int
	name      string
	color     string
	createdAt time.Time
	members   map[string]Member
	order     []string
}

// Model is the authoritative territory set. All state sits behind one mutex;
// statistics lookups run outside it.
type Model struct {
	stats   StatsSource
	palette []string
	log     *logger.Logger
	metrics *metrics.Metrics
	newID   func() string
	now     func() time.Time

	mu           sync.RWMutex
	territories  map[string]*territory
	order        []string
	counter      int
	owners       map[string]string
	activeID     string
	addModeID    string
	boundaryMode BoundaryMode
	version      uint64
}

// New creates an empty Model backed by stats.
func New(stats StatsSource, opts ...Option) *Model {
	m := &Model{
		stats:        stats,
		palette:      DefaultPalette,
		log:          logger.Nop(),
		newID:        uuid.NewString,
		now:          time.Now,
		territories:  make(map[string]*territory),
		owners:       make(map[string]string),
		boundaryMode: BoundaryCounties,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create appends a new empty territory named "Territory {n}" and makes it both
// active and the add-mode target.
func (m *Model) Create() Territory {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	t := &territory{
		id:        m.newID(),
		number:    m.counter,
		name:      fmt.Sprintf("Territory %d", m.counter),
		color:     m.palette[(m.counter-1)%len(m.palette)],
		createdAt: m.now(),
		members:   make(map[string]Member),
	}
	m.territories[t.id] = t
	m.order = append(m.order, t.id)
	m.activeID = t.id
	m.addModeID = t.id
	m.version++

	m.metrics.SetTerritories(len(m.territories))
	m.log.Info("Territory created", map[string]interface{}{
		"territory_id": t.id,
		"name":         t.name,
		"color":        t.color,
	})
	return t.snapshot()
}

// Delete removes a territory, releases its units and clears any session pointer
// referencing it. It reports whether anything was removed.
func (m *Model) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.territories[id]
	if !ok {
		return false
	}

	for key := range t.members {
		delete(m.owners, key)
	}
	delete(m.territories, id)
	for i, tid := range m.order {
		if tid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.activeID == id {
		m.activeID = ""
	}
	if m.addModeID == id {
		m.addModeID = ""
	}
	m.version++

	m.metrics.SetTerritories(len(m.territories))
	m.log.Info("Territory deleted", map[string]interface{}{
		"territory_id":   id,
		"released_units": len(t.members),
	})
	return true
}

// Rename sets a trimmed name. A blank name is rejected and the old name kept.
func (m *Model) Rename(id, name string) (Territory, error) {
	name = strings.TrimSpace(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.territories[id]
	if !ok {
		return Territory{}, ErrTerritoryNotFound
	}
	if name == "" {
		return Territory{}, ErrEmptyName
	}
	if t.name != name {
		t.name = name
		m.version++
	}
	return t.snapshot(), nil
}

// SetAddMode points add mode at id. Passing the current add-mode id clears it;
// any other id also becomes the active territory. An empty id clears add mode.
func (m *Model) SetAddMode(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case id == "" || id == m.addModeID:
		m.addModeID = ""
	default:
		if _, ok := m.territories[id]; !ok {
			return Session{}, ErrTerritoryNotFound
		}
		m.addModeID = id
		m.activeID = id
	}
	m.version++
	return m.sessionLocked(), nil
}

// SetActive selects the territory being viewed; an empty id clears the selection.
func (m *Model) SetActive(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if _, ok := m.territories[id]; !ok {
			return Session{}, ErrTerritoryNotFound
		}
	}
	m.activeID = id
	m.version++
	return m.sessionLocked(), nil
}

// SetBoundaryMode selects which unit layers the map shows.
func (m *Model) SetBoundaryMode(mode BoundaryMode) (Session, error) {
	if !mode.Valid() {
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidBoundaryMode, mode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.boundaryMode != mode {
		m.boundaryMode = mode
		m.version++
	}
	return m.sessionLocked(), nil
}

// Toggle adds ref to the add-mode territory, or removes it if already there.
//
// Membership is checked and changed under the lock, but the statistics lookup
// runs without it and is detached from ctx so a late result is still applied.
// A failed lookup adds the unit with zero statistics and marks it degraded.
func (m *Model) Toggle(ctx context.Context, ref models.UnitRef) (ToggleResult, error) {
	if err := ref.Validate(); err != nil {
		return ToggleResult{}, err
	}
	key := ref.Key()

	m.mu.Lock()
	targetID := m.addModeID
	if targetID == "" {
		m.mu.Unlock()
		return m.finish(ToggleResult{Outcome: OutcomeNoAddMode, Unit: ref}), nil
	}
	target := m.territories[targetID]

	if owner, owned := m.owners[key]; owned {
		if owner == targetID {
			member := target.remove(key)
			delete(m.owners, key)
			m.version++
			result := ToggleResult{
				Outcome:     OutcomeRemoved,
				Unit:        ref,
				TerritoryID: targetID,
				Member:      &member,
				Stats:       target.stats(),
			}
			m.mu.Unlock()
			return m.finish(result), nil
		}
		m.mu.Unlock()
		return m.finish(ToggleResult{Outcome: OutcomeOwnedElsewhere, Unit: ref, TerritoryID: targetID, OwnerID: owner}), nil
	}
	m.mu.Unlock()

	stats, err := m.stats.Lookup(context.WithoutCancel(ctx), ref)
	degraded := false
	if err != nil {
		degraded = true
		stats = models.UnitStats{}
		m.log.Warn("Statistics unavailable; adding unit with zero statistics", map[string]interface{}{
			"unit":         ref.String(),
			"territory_id": targetID,
			"error":        err.Error(),
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.territories[targetID]
	if !ok {
		return m.finish(ToggleResult{Outcome: OutcomeTerritoryGone, Unit: ref, TerritoryID: targetID}), nil
	}
	if owner, owned := m.owners[key]; owned {
		outcome := OutcomeOwnedElsewhere
		if owner == targetID {
			outcome = OutcomeAlreadyMember
		}
		return m.finish(ToggleResult{Outcome: outcome, Unit: ref, TerritoryID: targetID, OwnerID: owner, Stats: target.stats()}), nil
	}

	member := Member{Ref: ref, Stats: stats, Degraded: degraded, AddedAt: m.now()}
	target.add(member)
	m.owners[key] = targetID
	m.version++

	return m.finish(ToggleResult{
		Outcome:     OutcomeAdded,
		Unit:        ref,
		TerritoryID: targetID,
		Member:      &member,
		Stats:       target.stats(),
		Degraded:    degraded,
	}), nil
}

func (m *Model) finish(result ToggleResult) ToggleResult {
	m.metrics.ToggleOutcome(string(result.Outcome))
	m.log.Debug("Unit toggled", map[string]interface{}{
		"unit":         result.Unit.String(),
		"outcome":      string(result.Outcome),
		"territory_id": result.TerritoryID,
	})
	return result
}

// OwnerOf returns the id of the territory holding ref.
func (m *Model) OwnerOf(ref models.UnitRef) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[ref.Key()]
	return owner, ok
}

// StatsOf returns the aggregates of a territory.
func (m *Model) StatsOf(id string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.territories[id]
	if !ok {
		return Stats{}, ErrTerritoryNotFound
	}
	return t.stats(), nil
}

// Get returns a snapshot of one territory.
func (m *Model) Get(id string) (Territory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.territories[id]
	if !ok {
		return Territory{}, ErrTerritoryNotFound
	}
	return t.snapshot(), nil
}

// List returns snapshots of all territories in creation order.
func (m *Model) List() []Territory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Territory, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.territories[id].snapshot())
	}
	return out
}

// Session returns the current session pointers.
func (m *Model) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionLocked()
}

func (m *Model) sessionLocked() Session {
	s := Session{
		BoundaryMode:   m.boundaryMode,
		Version:        m.version,
		TerritoryCount: len(m.territories),
	}
	if m.activeID != "" {
		id := m.activeID
		s.ActiveTerritoryID = &id
	}
	if m.addModeID != "" {
		id := m.addModeID
		s.AddModeTerritoryID = &id
	}
	return s
}

func (t *territory) add(member Member) {
	key := member.Ref.Key()
	t.members[key] = member
	t.order = append(t.order, key)
}

func (t *territory) remove(key string) Member {
	member := t.members[key]
	delete(t.members, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return member
}

// stats sums the member snapshots so aggregates can never drift from membership.
func (t *territory) stats() Stats {
	var s Stats
	for _, member := range t.members {
		s.Population += member.Stats.Population
		s.StandAloneHouses += member.Stats.StandAloneHouses
		if member.Degraded {
			s.DegradedUnits++
		}
	}
	s.UnitCount = len(t.members)
	return s
}

func (t *territory) snapshot() Territory {
	units := make([]Member, 0, len(t.order))
	for _, key := range t.order {
		units = append(units, t.members[key])
	}
	return Territory{
		ID:        t.id,
		Number:    t.number,
		Name:      t.name,
		Color:     t.color,
		CreatedAt: t.createdAt,
		Units:     units,
		Stats:     t.stats(),
	}
}
