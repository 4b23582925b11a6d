package graph

import (
	"fmt"
	"sort"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
)

// subdivideAbove is the member count above which a level-0 community is
// subdivided into level-1 children.
const subdivideAbove = 5

// DetectCommunities computes the two-level community hierarchy over the
// extracted entity graph. Level 0 communities are the connected components
// of the undirected entity graph and partition the full entity set. A
// level-0 community with more than subdivideAbove members is subdivided by
// recomputing components on its node-induced subgraph; smaller communities
// carry forward unchanged as their own single level-1 child.
//
// Member lists are sorted and components are ordered by their minimal
// member name, so community numbering is deterministic for a given
// entity/relationship set regardless of input ordering.
func DetectCommunities(entities []common.Entity, relationships []common.Relationship) []common.Community {
	nodes := make([]string, 0, len(entities))
	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		if e.Name == "" || seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		nodes = append(nodes, e.Name)
	}

	adjacency := buildAdjacency(seen, relationships)

	var communities []common.Community
	for i, members := range connectedComponents(nodes, adjacency) {
		level0 := common.Community{
			ID:            fmt.Sprintf("community-0-%d", i),
			Level:         0,
			Entities:      members,
			Relationships: inducedRelationships(members, relationships),
		}

		var children []common.Community
		if len(members) > subdivideAbove {
			subAdjacency := buildAdjacency(toSet(members), level0.Relationships)
			for j, subMembers := range connectedComponents(members, subAdjacency) {
				children = append(children, common.Community{
					ID:              fmt.Sprintf("community-1-%d-%d", i, j),
					Level:           1,
					Entities:        subMembers,
					Relationships:   inducedRelationships(subMembers, level0.Relationships),
					ParentCommunity: level0.ID,
				})
			}
		} else {
			children = append(children, common.Community{
				ID:              fmt.Sprintf("community-1-%d-0", i),
				Level:           1,
				Entities:        members,
				Relationships:   level0.Relationships,
				ParentCommunity: level0.ID,
			})
		}

		for _, child := range children {
			level0.SubCommunities = append(level0.SubCommunities, child.ID)
		}

		communities = append(communities, level0)
		communities = append(communities, children...)
	}

	return communities
}

// buildAdjacency builds an undirected simple adjacency map over the given
// node set. Relationships touching unknown entities and self-loops are
// dropped.
func buildAdjacency(nodes map[string]bool, relationships []common.Relationship) map[string]map[string]bool {
	adjacency := make(map[string]map[string]bool)
	for _, r := range relationships {
		if r.Source == r.Target || !nodes[r.Source] || !nodes[r.Target] {
			continue
		}
		addEdge(adjacency, r.Source, r.Target)
		addEdge(adjacency, r.Target, r.Source)
	}
	return adjacency
}

func addEdge(adjacency map[string]map[string]bool, from, to string) {
	if adjacency[from] == nil {
		adjacency[from] = make(map[string]bool)
	}
	adjacency[from][to] = true
}

// connectedComponents computes the connected components of the graph using
// an iterative depth-first traversal with an explicit stack, so large
// graphs cannot overflow the call stack. Each component's members are
// sorted and components are ordered by their minimal member name.
func connectedComponents(nodes []string, adjacency map[string]map[string]bool) [][]string {
	ordered := append([]string(nil), nodes...)
	sort.Strings(ordered)

	visited := make(map[string]bool, len(ordered))
	var components [][]string

	for _, start := range ordered {
		if visited[start] {
			continue
		}

		var component []string
		stack := []string{start}
		visited[start] = true
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, node)

			for neighbor := range adjacency[node] {
				if !visited[neighbor] {
					visited[neighbor] = true
					stack = append(stack, neighbor)
				}
			}
		}

		sort.Strings(component)
		components = append(components, component)
	}

	// Iterating sorted nodes already yields components in minimal-member
	// order; each component is discovered at its smallest name.
	return components
}

// inducedRelationships returns the relationships whose endpoints both lie
// inside the member set.
func inducedRelationships(members []string, relationships []common.Relationship) []common.Relationship {
	set := toSet(members)
	var induced []common.Relationship
	for _, r := range relationships {
		if set[r.Source] && set[r.Target] {
			induced = append(induced, r)
		}
	}
	return induced
}

func toSet(members []string) map[string]bool {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	return set
}
