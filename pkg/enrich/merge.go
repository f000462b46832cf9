package enrich

import (
	"slices"
	"time"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/taxonomy"
)

// Apply writes the enrichment-owned fields of org onto current. Title,
// content and attachments are never touched; tags are unioned.
func Apply(current core.Note, org Organized, placement taxonomy.Placement, now time.Time) core.Note {
	merged := current.Clone()
	merged.ProjectID = placement.ProjectID
	merged.SubjectID = placement.SubjectID
	merged.Summary = org.Summary
	merged.DetailedSummary = org.DetailedSummary
	merged.Todos = slices.Clone(org.Todos)
	merged.KeyPeople = slices.Clone(org.KeyPeople)
	merged.Decisions = slices.Clone(org.Decisions)
	merged.Tags = UnionTags(current.Tags, org.Tags)
	merged.GraphData = NormalizeGraph(org.GraphData)
	if now.After(merged.UpdatedAt) {
		merged.UpdatedAt = now
	}
	return merged
}

// UnionTags returns existing followed by the added tags it lacks.
func UnionTags(existing, added []string) []string {
	out := make([]string, 0, len(existing)+len(added))
	seen := make(map[string]struct{}, len(existing)+len(added))
	for _, list := range [][]string{existing, added} {
		for _, tag := range list {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// NormalizeGraph maps an empty chart to nil.
func NormalizeGraph(g *core.GraphData) *core.GraphData {
	if g == nil || (g.Type == "" && len(g.Data) == 0) {
		return nil
	}
	c := *g
	c.Data = slices.Clone(g.Data)
	return &c
}
