package resolver

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/citenet/internal/model"
)

// Decision is the outcome of resolving one record.
type Decision struct {
	// ID is the canonical id the record resolves to.
	ID int64

	// IsNew reports whether ID has been minted for this record.
	IsNew bool

	// Strategy names the strategy that matched, or StrategyNew.
	Strategy string

	// Conflict is set when several identities matched and the lowest id won.
	Conflict *model.Conflict
}

// PersistFunc stores the publication for a decision and returns the stored
// state after merging. It runs under the resolver lock.
type PersistFunc func(ctx context.Context, d Decision, observed model.Publication) (model.Publication, error)

// Resolver maps raw records to canonical publication ids.
type Resolver struct {
	cfg    Config
	logger *slog.Logger

	mu            sync.RWMutex
	maxID         int64
	entries       map[int64]keys
	bySource      map[string]int64
	byTitleAuthor map[string][]int64
	byTitle       map[string][]int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for soft conflicts.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates an empty Resolver.
func New(cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:           cfg,
		logger:        slog.Default(),
		entries:       make(map[int64]keys),
		bySource:      make(map[string]int64),
		byTitleAuthor: make(map[string][]int64),
		byTitle:       make(map[string][]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Len returns the number of known identities.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Load registers every publication of pubs, typically read from the graph store.
func (r *Resolver) Load(pubs iter.Seq2[model.Publication, error]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p, err := range pubs {
		if err != nil {
			return fmt.Errorf("loading identity index: %w", err)
		}
		r.commitLocked(p)
	}
	return nil
}

// Resolve returns the canonical id rec resolves to against the current
// index. It does not modify the index: a minted id is only reserved once
// Commit registers it.
func (r *Resolver) Resolve(rec model.RawRecord) Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(rec)
}

// Commit registers a persisted publication.
func (r *Resolver) Commit(p model.Publication) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commitLocked(p)
}

// Apply resolves rec, persists it through persist and registers the stored
// publication, all under the index lock. When persist fails the index is
// left unchanged.
func (r *Resolver) Apply(ctx context.Context, rec model.RawRecord, depth int, persist PersistFunc) (Decision, model.Publication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.resolveLocked(rec)
	observed := rec.Publication(depth)
	observed.ID = d.ID

	stored, err := persist(ctx, d, observed)
	if err != nil {
		return d, model.Publication{}, err
	}
	r.commitLocked(stored)

	if d.Conflict != nil {
		r.logger.Info("ambiguous publication match",
			"strategy", d.Conflict.Strategy,
			"chosen", d.Conflict.ChosenID,
			"candidates", d.Conflict.Candidates,
			"title", d.Conflict.ObservedTitle)
	}
	return d, stored, nil
}

func (r *Resolver) resolveLocked(rec model.RawRecord) Decision {
	k := r.keysOf(rec.Title, rec.Authors, rec.Year, rec.SourceID)

	if r.cfg.EnableSourceID && k.sourceID != "" {
		if id, ok := r.bySource[k.sourceID]; ok {
			return Decision{ID: id, Strategy: StrategySourceID}
		}
	}

	if r.cfg.EnableTitleAuthor {
		if key := titleAuthorKey(k); key != "" {
			if d, ok := r.pick(StrategyTitleAuthor, r.compatible(k, r.byTitleAuthor[key]), rec.Title); ok {
				return d
			}
		}
	}

	if r.cfg.EnableTitleYear && k.title != "" && k.year != nil {
		var candidates []int64
		for _, id := range r.compatible(k, r.byTitle[k.title]) {
			e := r.entries[id]
			if e.year == nil || abs(*e.year-*k.year) > r.cfg.YearTolerance {
				continue
			}
			// Only used when author text is missing on one side.
			if k.author != "" && e.author != "" {
				continue
			}
			candidates = append(candidates, id)
		}
		if d, ok := r.pick(StrategyTitleYear, candidates, rec.Title); ok {
			return d
		}
	}

	return Decision{ID: r.maxID + 1, IsNew: true, Strategy: StrategyNew}
}

// compatible drops candidates whose service id contradicts the record's.
func (r *Resolver) compatible(k keys, ids []int64) []int64 {
	if k.sourceID == "" {
		return ids
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if s := r.entries[id].sourceID; s == "" || s == k.sourceID {
			out = append(out, id)
		}
	}
	return out
}

// pick chooses the lowest id and reports a conflict for several candidates.
func (r *Resolver) pick(strategy string, candidates []int64, title string) (Decision, bool) {
	if len(candidates) == 0 {
		return Decision{}, false
	}
	sorted := slices.Clone(candidates)
	slices.Sort(sorted)
	d := Decision{ID: sorted[0], Strategy: strategy}
	if len(sorted) > 1 {
		d.Conflict = &model.Conflict{
			ChosenID:      sorted[0],
			Candidates:    sorted,
			Strategy:      strategy,
			ObservedTitle: title,
			RecordedAt:    time.Now().UTC(),
		}
	}
	return d, true
}

func (r *Resolver) commitLocked(p model.Publication) {
	if old, ok := r.entries[p.ID]; ok {
		r.unindex(p.ID, old)
	}

	k := r.keysOf(p.Title, p.Authors, p.Year, p.SourceID)
	r.entries[p.ID] = k
	if p.ID > r.maxID {
		r.maxID = p.ID
	}

	if k.sourceID != "" {
		if existing, ok := r.bySource[k.sourceID]; !ok || p.ID < existing {
			r.bySource[k.sourceID] = p.ID
		}
	}
	if key := titleAuthorKey(k); key != "" {
		r.byTitleAuthor[key] = append(r.byTitleAuthor[key], p.ID)
	}
	if k.title != "" {
		r.byTitle[k.title] = append(r.byTitle[k.title], p.ID)
	}
}

func (r *Resolver) unindex(id int64, k keys) {
	if k.sourceID != "" && r.bySource[k.sourceID] == id {
		delete(r.bySource, k.sourceID)
	}
	if key := titleAuthorKey(k); key != "" {
		r.byTitleAuthor[key] = remove(r.byTitleAuthor[key], id)
	}
	if k.title != "" {
		r.byTitle[k.title] = remove(r.byTitle[k.title], id)
	}
}

func remove(ids []int64, id int64) []int64 {
	return slices.DeleteFunc(ids, func(v int64) bool { return v == id })
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
