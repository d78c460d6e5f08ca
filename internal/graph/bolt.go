package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Bolt implements Driver over the neo4j bolt protocol. Works against both
// Neo4j and Memgraph.
type Bolt struct {
	driver neo4j.DriverWithContext
}

// NewBolt creates a bolt driver from config.
func NewBolt(cfg Config) (*Bolt, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	return &Bolt{driver: driver}, nil
}

// Execute runs a read query and returns results.
func (b *Bolt) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	var records []Record
	for result.Next(ctx) {
		rec := result.Record()
		record := make(Record, len(rec.Keys))
		for _, key := range rec.Keys {
			val, _ := rec.Get(key)
			record[key] = val
		}
		records = append(records, record)
	}
	return records, result.Err()
}

// ExecuteWrite runs a write query (CREATE, MERGE, SET, DELETE).
func (b *Bolt) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("write query: %w", err)
	}
	return nil
}

// Ping checks if the database is reachable.
func (b *Bolt) Ping(ctx context.Context) error {
	return b.driver.VerifyConnectivity(ctx)
}

// Close releases driver resources.
func (b *Bolt) Close(ctx context.Context) error {
	return b.driver.Close(ctx)
}

var _ Driver = (*Bolt)(nil)
