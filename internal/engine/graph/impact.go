package graph

import "sort"

// ImpactReport lists the modules that must be re-analyzed when an entry
// changes.
type ImpactReport struct {
	Module               string
	DirectDependents     []string
	TransitiveDependents []string
}

// Impact reports the direct and transitive dependents of e.
func (ps *ProjectState) Impact(e *ProjectEntry) (ImpactReport, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if err := ps.checkLocked(e); err != nil {
		return ImpactReport{}, err
	}

	report := ImpactReport{Module: e.name}
	direct := make(map[EntryID]bool, len(ps.dependents[e.id]))
	for id := range ps.dependents[e.id] {
		direct[id] = true
		report.DirectDependents = append(report.DirectDependents, ps.entries[id].name)
	}
	for _, id := range ps.transitiveDependentsLocked(e.id) {
		if !direct[id] {
			report.TransitiveDependents = append(report.TransitiveDependents, ps.entries[id].name)
		}
	}
	sort.Strings(report.DirectDependents)
	sort.Strings(report.TransitiveDependents)
	return report, nil
}

// transitiveDependentsLocked walks importers breadth-first, excluding start.
func (ps *ProjectState) transitiveDependentsLocked(start EntryID) []EntryID {
	seen := map[EntryID]bool{start: true}
	queue := []EntryID{start}
	var out []EntryID
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, next := range sortedIDs(ps.dependents[curr]) {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}
