// Package registry is an in-memory file metadata table with time-travel reads
// against a caller-supplied logical clock and a destructive rollback.
package registry

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/alignecoderepos/filereg/internal/config"
	"github.com/alignecoderepos/filereg/internal/logging"
	"github.com/alignecoderepos/filereg/internal/metrics"
)

// Registry maps file names to their records.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
	config  *config.Config
	metrics *metrics.Metrics
}

// RollbackResult reports what a rollback kept and discarded.
type RollbackResult struct {
	Kept      int
	Discarded int
}

// New creates an empty registry. m may be nil.
func New(cfg *config.Config, m *metrics.Metrics) *Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Registry{
		records: make(map[string]Record),
		config:  cfg,
		metrics: m,
	}
}

// Upload stores a new record that is visible at every timestamp.
func (r *Registry) Upload(name string, size uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.insert(Record{Name: name, Size: size}, Always)
	r.observe("upload", err)
	return err
}

// UploadAt stores a new record created at ts. ttl may be NoTTL.
func (r *Registry) UploadAt(ts int64, name string, size uint64, ttl TTL) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Presence, not visibility: names stay unique across the whole history.
	err := r.insert(Record{Name: name, Size: size, CreatedAt: At(ts), TTL: ttl}, Always)
	r.observe("upload_at", err)
	return err
}

// Copy duplicates source into dest, including its creation time and TTL.
func (r *Registry) Copy(source, dest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.copyLocked(source, dest)
	r.observe("copy", err)
	return err
}

func (r *Registry) copyLocked(source, dest string) error {
	src, ok := r.records[source]
	if !ok {
		return notFound(source, Always)
	}
	src.Name = dest
	return r.insert(src, Always)
}

// CopyAt duplicates the size and TTL of source, which must be visible at ts,
// into a new record dest created at ts. dest must not be present at all.
func (r *Registry) CopyAt(ts int64, source, dest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.copyAtLocked(ts, source, dest)
	r.observe("copy_at", err)
	return err
}

func (r *Registry) copyAtLocked(ts int64, source, dest string) error {
	src, ok := r.records[source]
	if !ok || !src.VisibleAt(ts) {
		return notFound(source, At(ts))
	}
	return r.insert(Record{
		Name:      dest,
		Size:      src.Size,
		CreatedAt: At(ts),
		TTL:       src.TTL,
	}, At(ts))
}

// insert adds rec unless its name is taken. Callers hold the write lock.
func (r *Registry) insert(rec Record, at Timestamp) error {
	if _, exists := r.records[rec.Name]; exists {
		logging.L().Debug("file already exists", "name", rec.Name, "at", at.String())
		return alreadyExists(rec.Name, at)
	}
	r.records[rec.Name] = rec
	r.metrics.SetRecords(len(r.records))
	return nil
}

// Get returns the size of name.
func (r *Registry) Get(name string) (uint64, error) {
	rec, err := r.Lookup(name)
	if err != nil {
		return 0, err
	}
	return rec.Size, nil
}

// Lookup returns the full record for name.
func (r *Registry) Lookup(name string) (Record, error) {
	r.mu.RLock()
	rec, ok := r.records[name]
	r.mu.RUnlock()

	if !ok {
		r.metrics.Observe("get", metrics.ResultNotFound)
		return Record{}, notFound(name, Always)
	}
	r.metrics.Observe("get", metrics.ResultOK)
	return rec, nil
}

// GetAt returns the size of name if it is visible at ts.
func (r *Registry) GetAt(ts int64, name string) (uint64, error) {
	rec, err := r.LookupAt(ts, name)
	if err != nil {
		return 0, err
	}
	return rec.Size, nil
}

// LookupAt returns the record for name if it is visible at ts. A missing name
// and an invisible one are reported the same way.
func (r *Registry) LookupAt(ts int64, name string) (Record, error) {
	r.mu.RLock()
	rec, ok := r.records[name]
	r.mu.RUnlock()

	if !ok || !rec.VisibleAt(ts) {
		r.metrics.Observe("get_at", metrics.ResultNotFound)
		return Record{}, notFound(name, At(ts))
	}
	r.metrics.Observe("get_at", metrics.ResultOK)
	return rec, nil
}

// Search returns records whose name starts with prefix, largest first and
// ties broken by descending name. limit <= 0 uses the configured default.
func (r *Registry) Search(prefix string, limit int) []Record {
	r.mu.RLock()
	candidates := r.collect(prefix, nil)
	r.mu.RUnlock()

	out := rank(candidates, r.limit(limit))
	r.metrics.Observe("search", metrics.ResultOK)
	r.metrics.ObserveSearch(len(out))
	return out
}

// SearchAt is Search restricted to records visible at ts.
func (r *Registry) SearchAt(ts int64, prefix string, limit int) []Record {
	r.mu.RLock()
	candidates := r.collect(prefix, visibleAt(ts))
	r.mu.RUnlock()

	out := rank(candidates, r.limit(limit))
	r.metrics.Observe("search_at", metrics.ResultOK)
	r.metrics.ObserveSearch(len(out))
	return out
}

// Rollback replaces the table with exactly the records visible at ts. Every
// other record is discarded for good.
func (r *Registry) Rollback(ts int64) RollbackResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make(map[string]Record, len(r.records))
	for name, rec := range r.records {
		if rec.VisibleAt(ts) {
			kept[name] = rec
		}
	}

	res := RollbackResult{Kept: len(kept), Discarded: len(r.records) - len(kept)}
	r.records = kept

	r.metrics.Observe("rollback", metrics.ResultOK)
	r.metrics.AddDiscarded(res.Discarded)
	r.metrics.SetRecords(len(kept))
	logging.L().Info("rollback applied", "timestamp", ts, "kept", res.Kept, "discarded", res.Discarded)
	return res
}

// Len returns the number of stored records, visible or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Snapshot returns every stored record ordered by name.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	out := r.collect("", nil)
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// collect copies matching records out of the table. Callers hold a lock.
func (r *Registry) collect(prefix string, keep func(Record) bool) []Record {
	out := make([]Record, 0)
	for name, rec := range r.records {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if keep != nil && !keep(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (r *Registry) limit(limit int) int {
	if limit <= 0 {
		return r.config.SearchLimit
	}
	return limit
}

func (r *Registry) observe(op string, err error) {
	switch {
	case err == nil:
		r.metrics.Observe(op, metrics.ResultOK)
	case errors.Is(err, ErrAlreadyExists):
		r.metrics.Observe(op, metrics.ResultExists)
	case errors.Is(err, ErrNotFound):
		r.metrics.Observe(op, metrics.ResultNotFound)
	}
}

func visibleAt(ts int64) func(Record) bool {
	return func(rec Record) bool { return rec.VisibleAt(ts) }
}

// rank orders by size descending, then name descending, and truncates.
func rank(recs []Record, limit int) []Record {
	slices.SortFunc(recs, func(a, b Record) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
