package store

import "context"

// Projection describes the subgraph a graph algorithm runs over: which node
// labels and relationship types to include. Empty slices mean all.
type Projection struct {
	NodeLabels        []string `json:"node_labels,omitempty"`
	RelationshipTypes []string `json:"relationship_types,omitempty"`
}

// SchemaInfo is the result of schema introspection on the graph store.
type SchemaInfo struct {
	Labels            []string `json:"labels"`
	RelationshipTypes []string `json:"relationship_types"`
	PropertyKeys      []string `json:"property_keys"`
}

// GraphStore is the adapter over the property-graph datastore. The
// underlying driver connection is the one shared, poolable resource in the
// copilot; implementations must acquire a scoped session per call and
// release it on every exit path.
//
// Query is read-only; Write is reserved for the enrichment writer's merge
// operations. Both take a Cypher string plus named parameters and return
// row-like records.
type GraphStore interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Write(ctx context.Context, cypher string, params map[string]any) error
	RunAlgorithm(ctx context.Context, algorithm string, projection Projection, params map[string]any) ([]map[string]any, error)
	Schema(ctx context.Context) (*SchemaInfo, error)
	Close(ctx context.Context) error
}
