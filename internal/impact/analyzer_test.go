package impact

import (
	"fmt"
	"reflect"
	"testing"

	"repomap/internal/model"
)

func TestSeverityBoundaries(t *testing.T) {
	tests := []struct {
		size int
		want model.Severity
	}{
		{0, model.SeverityLow},
		{5, model.SeverityLow},
		{6, model.SeverityMedium},
		{20, model.SeverityMedium},
		{21, model.SeverityHigh},
		{100, model.SeverityHigh},
	}
	for _, tt := range tests {
		if got := SeverityFor(tt.size); got != tt.want {
			t.Errorf("SeverityFor(%d) = %s, want %s", tt.size, got, tt.want)
		}
	}
}

func TestAnalyzeNodeTransitive(t *testing.T) {
	// c depends on b, b depends on a: changing a affects both.
	graph := model.DependencyGraph{
		"b": {"a"},
		"c": {"b"},
	}
	a := NewAnalyzer(graph)

	br := a.AnalyzeNode("a")
	if br == nil {
		t.Fatal("expected a blast radius for a")
	}
	if !reflect.DeepEqual(br.AffectedResources, []string{"b", "c"}) {
		t.Errorf("AffectedResources = %v, want [b c]", br.AffectedResources)
	}
	if br.Severity != model.SeverityLow {
		t.Errorf("Severity = %s, want low", br.Severity)
	}
}

func TestAnalyzeNodeNoDependents(t *testing.T) {
	graph := model.DependencyGraph{"b": {"a"}}
	a := NewAnalyzer(graph)
	// b has dependencies but no dependents.
	if br := a.AnalyzeNode("b"); br != nil {
		t.Errorf("expected nil for leaf node, got %+v", br)
	}
}

func TestCycleTerminates(t *testing.T) {
	graph := model.DependencyGraph{
		"a": {"b"},
		"b": {"a"},
		"c": {"a"},
	}
	a := NewAnalyzer(graph)

	br := a.AnalyzeNode("a")
	if br == nil {
		t.Fatal("expected a blast radius for a")
	}
	// The cycle pulls a itself into its own affected set; the traversal
	// still terminates and counts each node once.
	if !reflect.DeepEqual(br.AffectedResources, []string{"a", "b", "c"}) {
		t.Errorf("AffectedResources = %v, want [a b c]", br.AffectedResources)
	}
}

func TestAnalyzeOrdering(t *testing.T) {
	// hub has 6 dependents (medium); minor has 1 (low).
	graph := model.DependencyGraph{"dep.minor": {"minor"}}
	for i := 0; i < 6; i++ {
		graph[fmt.Sprintf("dep.%d", i)] = []string{"hub"}
	}
	a := NewAnalyzer(graph)

	results := a.Analyze()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Target != "hub" || results[0].Severity != model.SeverityMedium {
		t.Errorf("first result = %+v, want hub/medium", results[0])
	}
	if results[1].Target != "minor" || results[1].Severity != model.SeverityLow {
		t.Errorf("second result = %+v, want minor/low", results[1])
	}
}

func TestAnalyzeTieBreaksByName(t *testing.T) {
	graph := model.DependencyGraph{
		"x": {"beta", "alpha"},
	}
	a := NewAnalyzer(graph)

	results := a.Analyze()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Target != "alpha" || results[1].Target != "beta" {
		t.Errorf("tie not broken by target name: %s, %s", results[0].Target, results[1].Target)
	}
}
