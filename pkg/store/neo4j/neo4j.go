package neo4j

import (
	"context"
	"fmt"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// GraphDBClient implements store.GraphStore on top of the Neo4j driver.
// A single DriverWithContext holds the connection pool; each call opens a
// session scoped to that call and closes it on all exit paths.
type GraphDBClient struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewGraphDBClientParams defines the connection parameters for a
// GraphDBClient.
type NewGraphDBClientParams struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewGraphDBClient creates a GraphDBClient and verifies connectivity.
//
// Example:
//
//	client, err := neo4j.NewGraphDBClient(ctx, neo4j.NewGraphDBClientParams{
//		URI:      "neo4j://localhost:7687",
//		Username: "neo4j",
//		Password: os.Getenv("NEO4J_PASSWORD"),
//		Database: "neo4j",
//	})
func NewGraphDBClient(ctx context.Context, params NewGraphDBClientParams) (*GraphDBClient, error) {
	driver, err := neo4j.NewDriverWithContext(params.URI, neo4j.BasicAuth(params.Username, params.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify graph connectivity: %w", err)
	}

	database := params.Database
	if database == "" {
		database = "neo4j"
	}

	return &GraphDBClient{
		driver:   driver,
		database: database,
	}, nil
}

// Query executes a read-only Cypher query in a scoped read session and
// returns the rows as maps keyed by the query's return aliases.
func (c *GraphDBClient) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collectRows(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, err
	}

	return rows.([]map[string]any), nil
}

// Write executes a mutating Cypher statement in a scoped write session.
// Only the enrichment writer should use this; everything else is read-only.
func (c *GraphDBClient) Write(ctx context.Context, cypher string, params map[string]any) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

// streamSuffixes maps the algorithm names exposed to the agent loop onto
// their GDS stream procedures.
var streamSuffixes = map[string]string{
	"pageRank":    "gds.pageRank.stream",
	"louvain":     "gds.louvain.stream",
	"betweenness": "gds.betweenness.stream",
	"degree":      "gds.degree.stream",
	"wcc":         "gds.wcc.stream",
}

// RunAlgorithm projects an anonymous graph from the requested labels and
// relationship types, runs the
// named GDS algorithm in stream mode, and drops the projection again even
// when the algorithm fails.
func (c *GraphDBClient) RunAlgorithm(
	ctx context.Context,
	algorithm string,
	projection store.Projection,
	params map[string]any,
) ([]map[string]any, error) {
	procedure, ok := streamSuffixes[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported graph algorithm: %q", algorithm)
	}

	suffix, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate projection name: %w", err)
	}
	graphName := "copilot_" + suffix

	nodeLabels := any("*")
	if len(projection.NodeLabels) > 0 {
		nodeLabels = projection.NodeLabels
	}
	relTypes := any("*")
	if len(projection.RelationshipTypes) > 0 {
		relTypes = projection.RelationshipTypes
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	_, err = session.Run(ctx,
		"CALL gds.graph.project($name, $nodeLabels, $relTypes)",
		map[string]any{"name": graphName, "nodeLabels": nodeLabels, "relTypes": relTypes},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to project graph: %w", err)
	}
	defer func() {
		dropCtx := context.WithoutCancel(ctx)
		_, _ = session.Run(dropCtx,
			"CALL gds.graph.drop($name, false)",
			map[string]any{"name": graphName},
		)
	}()

	config := map[string]any{}
	for k, v := range params {
		config[k] = v
	}

	result, err := session.Run(ctx,
		fmt.Sprintf("CALL %s($name, $config) YIELD nodeId, score RETURN gds.util.asNode(nodeId) AS node, score ORDER BY score DESC LIMIT 50", procedure),
		map[string]any{"name": graphName, "config": config},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", algorithm, err)
	}

	rows := make([]map[string]any, 0)
	for result.Next(ctx) {
		rows = append(rows, recordToMap(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	return rows, nil
}

// Schema introspects node labels, relationship types and property keys.
func (c *GraphDBClient) Schema(ctx context.Context) (*store.SchemaInfo, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	info := &store.SchemaInfo{}

	queries := []struct {
		cypher string
		out    *[]string
	}{
		{"CALL db.labels() YIELD label RETURN label", &info.Labels},
		{"CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType", &info.RelationshipTypes},
		{"CALL db.propertyKeys() YIELD propertyKey RETURN propertyKey", &info.PropertyKeys},
	}

	for _, q := range queries {
		result, err := session.Run(ctx, q.cypher, nil)
		if err != nil {
			return nil, fmt.Errorf("schema introspection failed: %w", err)
		}
		for result.Next(ctx) {
			values := result.Record().Values
			if len(values) == 0 {
				continue
			}
			if s, ok := values[0].(string); ok {
				*q.out = append(*q.out, s)
			}
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
	}

	return info, nil
}

// Close releases the driver and its connection pool.
func (c *GraphDBClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func collectRows(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0)
	for result.Next(ctx) {
		rows = append(rows, recordToMap(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func recordToMap(record *neo4j.Record) map[string]any {
	row := make(map[string]any, len(record.Keys))
	for i, key := range record.Keys {
		value := record.Values[i]
		switch v := value.(type) {
		case neo4j.Node:
			row[key] = v.Props
		case neo4j.Relationship:
			row[key] = v.Props
		default:
			row[key] = value
		}
	}
	return row
}
