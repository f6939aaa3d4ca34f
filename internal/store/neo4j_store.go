// Grounded on the teacher's internal/service/codegraph/neo4j_db.go:
// NewDriverWithContext wiring and the ExecuteRead/ExecuteWrite
// session/ManagedTransaction pattern (including its node-to-map record
// conversion). Specialized here to the best-effort (:Symbol) mirror
// SPEC_FULL.md component P describes: in/out degree counts for the
// query orchestrator's graph rerank step (spec.md §4.K), not a general
// Cypher passthrough — see DESIGN.md for why the teacher's raw-Cypher
// endpoint was dropped rather than carried forward.
package store

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/model"
)

type Neo4jStore struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

func NewNeo4jStore(uri, username, password string, logger *zap.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	return &Neo4jStore{driver: driver, logger: logger}, nil
}

func (s *Neo4jStore) VerifyConnectivity(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) executeWrite(ctx context.Context, query string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	if err != nil {
		s.logger.Error("neo4j write failed", zap.String("query", query), zap.Error(err))
		return fmt.Errorf("neo4j write failed: %w", err)
	}
	return nil
}

// ReplaceFileMirror deletes every (:Symbol) node for a file and recreates
// it from the freshly resolved edges, mirroring the MySQL
// delete-old/insert-new batch step (spec.md §4.I). Best-effort: a failure
// here is logged, never fails the indexing transaction (SPEC_FULL.md §4.P).
func (s *Neo4jStore) ReplaceFileMirror(ctx context.Context, repoID, branchName, filePath string, symbols []model.Symbol, edges []model.Edge) error {
	if err := s.executeWrite(ctx, `
		MATCH (s:Symbol {repo_id: $repo_id, branch_name: $branch_name, file_path: $file_path})
		DETACH DELETE s
	`, map[string]any{"repo_id": repoID, "branch_name": branchName, "file_path": filePath}); err != nil {
		return err
	}

	for _, sym := range symbols {
		if err := s.executeWrite(ctx, `
			MERGE (s:Symbol {id: $id})
			SET s.repo_id = $repo_id, s.branch_name = $branch_name, s.file_path = $file_path,
			    s.name = $name, s.kind = $kind
		`, map[string]any{
			"id": sym.ID, "repo_id": repoID, "branch_name": branchName, "file_path": filePath,
			"name": sym.Name, "kind": string(sym.Kind),
		}); err != nil {
			return err
		}
	}

	for _, e := range edges {
		if err := s.executeWrite(ctx, `
			MATCH (a:Symbol {id: $source_id}), (b:Symbol {id: $target_id})
			MERGE (a)-[r:RELATION {kind: $kind}]->(b)
		`, map[string]any{"source_id": e.SourceSymbolID, "target_id": e.TargetSymbolID, "kind": string(e.Kind)}); err != nil {
			return err
		}
	}
	return nil
}

// Degree returns (out-degree, in-degree) for each requested symbol,
// feeding the graph rerank formula min(1, (out+2*in)/20) in
// internal/query. A missing mirror entry yields (0, 0), matching
// spec.md §4.K's "graph rerank degrades gracefully if the mirror is
// behind" note.
func (s *Neo4jStore) Degree(ctx context.Context, symbolIDs []string) (map[string][2]int, error) {
	out := make(map[string][2]int, len(symbolIDs))
	for _, id := range symbolIDs {
		out[id] = [2]int{0, 0}
	}
	if len(symbolIDs) == 0 {
		return out, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			UNWIND $ids AS id
			MATCH (s:Symbol {id: id})
			OPTIONAL MATCH (s)-[out]->()
			OPTIONAL MATCH (s)<-[in]-()
			RETURN id, count(DISTINCT out) AS out_degree, count(DISTINCT in) AS in_degree
		`, map[string]any{"ids": symbolIDs})
		if err != nil {
			return nil, err
		}
		records := make(map[string][2]int)
		for res.Next(ctx) {
			rec := res.Record()
			id, _ := rec.Get("id")
			outDeg, _ := rec.Get("out_degree")
			inDeg, _ := rec.Get("in_degree")
			records[id.(string)] = [2]int{toInt(outDeg), toInt(inDeg)}
		}
		return records, res.Err()
	})
	if err != nil {
		// Best-effort mirror: log and degrade to MySQL COUNT(*) fallback,
		// performed by the caller (SPEC_FULL.md §4.P).
		s.logger.Warn("neo4j degree query failed, graph rerank will fall back", zap.Error(err))
		return out, fmt.Errorf("neo4j degree query failed: %w", err)
	}

	for id, deg := range result.(map[string][2]int) {
		out[id] = deg
	}
	return out, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
