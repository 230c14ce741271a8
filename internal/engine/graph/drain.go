package graph

import (
	"context"
	"log/slog"
	"time"

	"pyintel/internal/engine/analyzer"
	"pyintel/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Analyze runs one pass over e with the tree current at the start of the
// pass and publishes the result.
func (ps *ProjectState) Analyze(ctx context.Context, e *ProjectEntry) error {
	_, err := ps.analyzeEntry(ctx, e)
	return err
}

// AnalyzeQueuedEntries drains the queue. An entry is taken once none of its
// dependencies is still queued; when only cycles remain the oldest queued
// entry goes first. Dependents are queued again when an entry's exported
// fingerprint changes, at most analysis.max_passes_per_drain times each.
func (ps *ProjectState) AnalyzeQueuedEntries(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "graph.AnalyzeQueuedEntries")
	defer span.End()

	start := time.Now()
	passes := make(map[EntryID]int)
	analyzed := 0
	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return err
		}
		e := ps.next()
		if e == nil {
			break
		}
		changed, err := ps.analyzeEntry(ctx, e)
		if err != nil {
			// Removed while queued.
			slog.Debug("skipping entry", "module", e.name, "error", err)
			continue
		}
		analyzed++
		passes[e.id]++
		if changed {
			ps.requeueDependents(e, passes)
		}
	}

	span.SetAttributes(attribute.Int("analyzed", analyzed))
	observability.AnalysisDuration.WithLabelValues("drain").Observe(time.Since(start).Seconds())
	if analyzed > 0 {
		slog.Debug("queue drained", "session", ps.id, "analyzed", analyzed, "elapsed", time.Since(start))
	}
	return nil
}

// next picks the queued entry to analyze, or nil when the queue is empty.
func (ps *ProjectState) next() *ProjectEntry {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	var ready, oldest *ProjectEntry
	for id := range ps.queued {
		e := ps.entries[id]
		if e == nil {
			delete(ps.queued, id)
			continue
		}
		if oldest == nil || e.queuedAt < oldest.queuedAt {
			oldest = e
		}
		if ps.blockedLocked(e) {
			continue
		}
		if ready == nil || e.queuedAt < ready.queuedAt {
			ready = e
		}
	}
	if ready != nil {
		return ready
	}
	return oldest
}

// blockedLocked reports whether one of e's dependencies is still queued.
func (ps *ProjectState) blockedLocked(e *ProjectEntry) bool {
	for dep := range ps.deps[e.id] {
		if dep != e.id && ps.queued[dep] {
			return true
		}
	}
	return false
}

func (ps *ProjectState) requeueDependents(e *ProjectEntry, passes map[EntryID]int) {
	limit := ps.cfg.MaxPassesPerDrain
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, id := range sortedIDs(ps.dependents[e.id]) {
		d := ps.entries[id]
		if d == nil || (limit > 0 && passes[id] >= limit) {
			continue
		}
		ps.queueLocked(d)
	}
}

// analyzeEntry runs one pass and reports whether the exported fingerprint
// changed.
func (ps *ProjectState) analyzeEntry(ctx context.Context, e *ProjectEntry) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps.mu.Lock()
	if err := ps.checkLocked(e); err != nil {
		ps.mu.Unlock()
		return false, err
	}
	in := analyzer.Input{Name: e.name, Path: e.path, Tree: e.tree, Version: e.version.Load()}
	e.state = StateAnalyzing
	e.stale = false
	delete(ps.queued, e.id)
	observability.QueueDepth.Set(float64(len(ps.queued)))
	ps.mu.Unlock()

	ma := ps.analyzer.Analyze(ctx, in)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if e.removed {
		return false, nil
	}
	prev := e.analysis.Swap(ma)
	if e.stale {
		e.state = StateUnanalyzed
		ps.queueLocked(e)
	} else {
		e.state = StateAnalyzed
	}
	return prev == nil || prev.Fingerprint != ma.Fingerprint, nil
}
