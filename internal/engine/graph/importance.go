package graph

import "strings"

// ImportanceScore ranks how central a module is to the project:
//
//	Score = (FanIn * 2) + (FanOut * 1) + (Exports * 0.5) + (IsPublicPackage ? 10 : 0)
//
// Private modules, whose last name component starts with an underscore, and
// plain modules get no package bonus.
func ImportanceScore(fanIn, fanOut, exports int, moduleName string, isPackage bool) float64 {
	score := float64(fanIn*2) + float64(fanOut) + float64(exports)*0.5
	if isPackage && !isPrivateName(moduleName) {
		score += 10
	}
	return score
}

func isPrivateName(moduleName string) bool {
	last := moduleName[strings.LastIndexByte(moduleName, '.')+1:]
	return strings.HasPrefix(last, "_") && !strings.HasPrefix(last, "__")
}

// Importance scores e from its edges and published exports.
func (ps *ProjectState) Importance(e *ProjectEntry) float64 {
	ps.mu.RLock()
	fanIn, fanOut := len(ps.dependents[e.id]), len(ps.deps[e.id])
	ps.mu.RUnlock()
	exports := 0
	if ma := e.Analysis(); ma != nil {
		exports = ma.Module.Members().Len()
	}
	return ImportanceScore(fanIn, fanOut, exports, e.name, e.IsPackage())
}
