package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportanceScore_Formula(t *testing.T) {
	tests := []struct {
		name      string
		fanIn     int
		fanOut    int
		exports   int
		module    string
		isPackage bool
		want      float64
	}{
		{name: "zero everything gives zero", module: "leaf"},
		{name: "fan-in weighted double fan-out", fanIn: 4, fanOut: 2, module: "core", want: 10},
		{name: "exports contribute half", exports: 20, module: "models", want: 10},
		{name: "public package bonus", module: "pkg", isPackage: true, want: 10},
		{name: "private package has no bonus", module: "pkg._impl", isPackage: true},
		{name: "dunder package keeps bonus", fanIn: 1, module: "__main__", isPackage: true, want: 12},
		{name: "plain module has no bonus", fanOut: 3, module: "api", want: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ImportanceScore(tc.fanIn, tc.fanOut, tc.exports, tc.module, tc.isPackage)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestImportance_FromProject(t *testing.T) {
	ps := newProject(t)
	core := addSource(t, ps, "core", "A = 1\nB = 2\n")
	addSource(t, ps, "left", "import core\n")
	addSource(t, ps, "right", "from core import A\n")
	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))

	// Two importers, no imports, two exports.
	assert.InDelta(t, 5.0, ps.Importance(core), 1e-9)

	left, ok := ps.Entry("left")
	require.True(t, ok)
	assert.Greater(t, ps.Importance(core), ps.Importance(left))
}
