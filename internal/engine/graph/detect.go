package graph

import "sort"

// Cycles returns the import cycles between registered modules as strongly
// connected components with more than one member, or a module importing
// itself. Members are sorted by name.
func (ps *ProjectState) Cycles() [][]string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	nodes := make([]EntryID, 0, len(ps.byName))
	for _, e := range ps.entries {
		if e != nil {
			nodes = append(nodes, e.id)
		}
	}

	var cycles [][]string
	for _, comp := range stronglyConnectedComponents(nodes, ps.deps) {
		if len(comp) == 1 && !ps.deps[comp[0]][comp[0]] {
			continue
		}
		names := make([]string, len(comp))
		for i, id := range comp {
			names[i] = ps.entries[id].name
		}
		sort.Strings(names)
		cycles = append(cycles, names)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

func stronglyConnectedComponents(nodes []EntryID, adjacency map[EntryID]map[EntryID]bool) [][]EntryID {
	index := 0
	stack := make([]EntryID, 0, len(nodes))
	onStack := make(map[EntryID]bool, len(nodes))
	indexOf := make(map[EntryID]int, len(nodes))
	lowLink := make(map[EntryID]int, len(nodes))
	var components [][]EntryID

	var strongConnect func(EntryID)
	strongConnect = func(v EntryID) {
		indexOf[v] = index
		lowLink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range sortedIDs(adjacency[v]) {
			if _, visited := indexOf[w]; !visited {
				strongConnect(w)
				lowLink[v] = min(lowLink[v], lowLink[w])
			} else if onStack[w] {
				lowLink[v] = min(lowLink[v], indexOf[w])
			}
		}

		if lowLink[v] == indexOf[v] {
			var comp []EntryID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			components = append(components, comp)
		}
	}

	for _, v := range nodes {
		if _, visited := indexOf[v]; !visited {
			strongConnect(v)
		}
	}
	return components
}
