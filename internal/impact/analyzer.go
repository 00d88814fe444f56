// Package impact computes blast radii over a resource dependency graph:
// for each node, the transitive set of nodes that depend on it, with a
// severity tier derived from the set's size.
package impact

import (
	"sort"

	"repomap/internal/model"
)

// Severity boundaries, by affected-resource count.
const (
	lowMax    = 5  // size <= 5  -> low
	mediumMax = 20 // size <= 20 -> medium, above -> high
)

// TopNDefault is the conventional display cut for presentation layers.
// The analyzer itself never truncates.
const TopNDefault = 20

// Analyzer computes blast radii.
type Analyzer struct {
	graph   model.DependencyGraph
	reverse map[string][]string // dependency -> direct dependents
}

// NewAnalyzer builds the reverse adjacency once so every per-node
// traversal reuses it.
func NewAnalyzer(graph model.DependencyGraph) *Analyzer {
	reverse := make(map[string][]string)
	for node, deps := range graph {
		for _, dep := range deps {
			reverse[dep] = append(reverse[dep], node)
		}
	}
	for dep := range reverse {
		sort.Strings(reverse[dep])
	}
	return &Analyzer{graph: graph, reverse: reverse}
}

// Analyze returns one BlastRadius per node that has at least one direct
// dependent, sorted high severity first. The full transitive-dependent
// set is computed by breadth-first traversal over the reverse graph; the
// visited-set guard makes it terminate on any finite graph, cycles
// included.
func (a *Analyzer) Analyze() []model.BlastRadius {
	var results []model.BlastRadius

	for target, dependents := range a.reverse {
		if len(dependents) == 0 {
			continue
		}

		affected := a.reachable(target)
		results = append(results, model.BlastRadius{
			Target:            target,
			AffectedResources: affected,
			Severity:          SeverityFor(len(affected)),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		si, sj := severityRank(results[i].Severity), severityRank(results[j].Severity)
		if si != sj {
			return si > sj
		}
		if len(results[i].AffectedResources) != len(results[j].AffectedResources) {
			return len(results[i].AffectedResources) > len(results[j].AffectedResources)
		}
		return results[i].Target < results[j].Target
	})

	return results
}

// AnalyzeNode computes the blast radius for a single node, or nil if
// nothing depends on it.
func (a *Analyzer) AnalyzeNode(target string) *model.BlastRadius {
	if len(a.reverse[target]) == 0 {
		return nil
	}
	affected := a.reachable(target)
	return &model.BlastRadius{
		Target:            target,
		AffectedResources: affected,
		Severity:          SeverityFor(len(affected)),
	}
}

// reachable collects every node reachable from target's direct dependents
// via the reverse graph. A node already visited is never re-enqueued.
func (a *Analyzer) reachable(target string) []string {
	visited := make(map[string]struct{})
	queue := append([]string(nil), a.reverse[target]...)

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if _, ok := visited[node]; ok {
			continue
		}
		visited[node] = struct{}{}

		queue = append(queue, a.reverse[node]...)
	}

	affected := make([]string, 0, len(visited))
	for node := range visited {
		affected = append(affected, node)
	}
	sort.Strings(affected)
	return affected
}

// SeverityFor maps an affected-resource count to a severity tier.
func SeverityFor(size int) model.Severity {
	switch {
	case size <= lowMax:
		return model.SeverityLow
	case size <= mediumMax:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}

func severityRank(s model.Severity) int {
	switch s {
	case model.SeverityHigh:
		return 3
	case model.SeverityMedium:
		return 2
	default:
		return 1
	}
}
