package graph

import (
	"reflect"
	"testing"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
)

func entitiesNamed(names ...string) []common.Entity {
	entities := make([]common.Entity, len(names))
	for i, n := range names {
		entities[i] = common.Entity{Name: n, Type: "PERSON"}
	}
	return entities
}

func rel(source, target string) common.Relationship {
	return common.Relationship{Source: source, Target: target, Type: "RELATED", Strength: 5}
}

func levelCommunities(all []common.Community, level int) []common.Community {
	var out []common.Community
	for _, c := range all {
		if c.Level == level {
			out = append(out, c)
		}
	}
	return out
}

func TestDetectCommunitiesPartition(t *testing.T) {
	entities := entitiesNamed("A", "B", "C", "D", "E")
	relationships := []common.Relationship{rel("A", "B"), rel("B", "C"), rel("D", "E")}

	communities := DetectCommunities(entities, relationships)
	level0 := levelCommunities(communities, 0)

	if len(level0) != 2 {
		t.Fatalf("level-0 communities = %d, want 2", len(level0))
	}

	// Union of level-0 members equals the full entity set, no overlaps.
	seen := map[string]int{}
	for _, c := range level0 {
		for _, m := range c.Entities {
			seen[m]++
		}
	}
	if len(seen) != len(entities) {
		t.Errorf("partition covers %d entities, want %d", len(seen), len(entities))
	}
	for name, count := range seen {
		if count != 1 {
			t.Errorf("entity %s appears in %d level-0 communities", name, count)
		}
	}
}

func TestDetectCommunitiesSmallCarriesForward(t *testing.T) {
	entities := entitiesNamed("A", "B", "C")
	relationships := []common.Relationship{rel("A", "B"), rel("B", "C")}

	communities := DetectCommunities(entities, relationships)
	level0 := levelCommunities(communities, 0)
	level1 := levelCommunities(communities, 1)

	if len(level0) != 1 || len(level1) != 1 {
		t.Fatalf("communities = %d/%d (level 0/1), want 1/1", len(level0), len(level1))
	}
	if !reflect.DeepEqual(level0[0].Entities, level1[0].Entities) {
		t.Error("small community must carry forward with identical membership")
	}
	if level1[0].ParentCommunity != level0[0].ID {
		t.Errorf("parent = %q, want %q", level1[0].ParentCommunity, level0[0].ID)
	}
	if !reflect.DeepEqual(level0[0].SubCommunities, []string{level1[0].ID}) {
		t.Errorf("sub-communities = %v", level0[0].SubCommunities)
	}
}

func TestDetectCommunitiesLargeConnectedComponent(t *testing.T) {
	// A 6-member chain crosses the subdivision threshold but its induced
	// subgraph is still one connected component.
	entities := entitiesNamed("A", "B", "C", "D", "E", "F")
	relationships := []common.Relationship{
		rel("A", "B"), rel("B", "C"), rel("C", "D"), rel("D", "E"), rel("E", "F"),
	}

	communities := DetectCommunities(entities, relationships)
	level1 := levelCommunities(communities, 1)

	if len(level1) != 1 {
		t.Fatalf("level-1 communities = %d, want 1", len(level1))
	}
	if len(level1[0].Entities) != 6 {
		t.Errorf("level-1 members = %d, want 6", len(level1[0].Entities))
	}
}

func TestDetectCommunitiesSingletons(t *testing.T) {
	communities := DetectCommunities(entitiesNamed("LONER", "HERMIT"), nil)
	level0 := levelCommunities(communities, 0)

	if len(level0) != 2 {
		t.Fatalf("level-0 communities = %d, want 2 singletons", len(level0))
	}
	// Components are ordered by minimal member name.
	if level0[0].Entities[0] != "HERMIT" || level0[1].Entities[0] != "LONER" {
		t.Errorf("unexpected ordering: %v then %v", level0[0].Entities, level0[1].Entities)
	}
}

func TestDetectCommunitiesDeterministicUnderReordering(t *testing.T) {
	relationships := []common.Relationship{rel("A", "B"), rel("C", "D")}

	first := DetectCommunities(entitiesNamed("A", "B", "C", "D"), relationships)
	second := DetectCommunities(entitiesNamed("D", "C", "B", "A"), []common.Relationship{rel("C", "D"), rel("A", "B")})

	if !reflect.DeepEqual(first, second) {
		t.Error("community detection must be deterministic under input reordering")
	}
}

func TestDetectCommunitiesIgnoresUnknownEndpoints(t *testing.T) {
	entities := entitiesNamed("A", "B")
	relationships := []common.Relationship{rel("A", "GHOST"), rel("A", "B"), rel("A", "A")}

	communities := DetectCommunities(entities, relationships)
	level0 := levelCommunities(communities, 0)

	if len(level0) != 1 {
		t.Fatalf("level-0 communities = %d, want 1", len(level0))
	}
	if len(level0[0].Relationships) != 1 {
		t.Errorf("induced relationships = %d, want only A-B", len(level0[0].Relationships))
	}
}

func TestDetectCommunitiesInducedRelationships(t *testing.T) {
	entities := entitiesNamed("A", "B", "C", "D")
	relationships := []common.Relationship{rel("A", "B"), rel("C", "D")}

	communities := DetectCommunities(entities, relationships)
	for _, c := range communities {
		members := toSet(c.Entities)
		for _, r := range c.Relationships {
			if !members[r.Source] || !members[r.Target] {
				t.Errorf("community %s carries relationship %s-%s outside its member set", c.ID, r.Source, r.Target)
			}
		}
	}
}
