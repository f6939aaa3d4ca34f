// Grounded on the teacher's internal/service/vector/qdrant_db.go:
// NewClient wiring, CreateCollection/Upsert/Query/Get/Delete/Scroll call
// shapes, and the point/payload marshaling helpers — rebuilt against
// model.Embedding/model.CodeChunk instead of the teacher's ChunkType/
// Level/ParentID chunk shape, and collection-per-embedding-model instead
// of one fixed collection, per SPEC_FULL.md component P (Qdrant mirrors
// (chunk_id, vector, payload) only; MySQL remains the source of truth).
package store

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/model"
)

type QdrantStore struct {
	client *qdrant.Client
	logger *zap.Logger
}

func NewQdrantStore(host string, port int, apiKey string, logger *zap.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	return &QdrantStore{client: client, logger: logger}, nil
}

// collectionName is per-embedding-model, since each model can have its
// own vector dimension and must not be mixed into one collection.
func collectionName(model string) string {
	return "embeddings_" + model
}

func (q *QdrantStore) EnsureCollection(ctx context.Context, model string, dims int) error {
	name := collectionName(model)
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	q.logger.Info("created qdrant collection", zap.String("collection", name), zap.Int("dims", dims))
	return nil
}

// UpsertEmbeddings writes one point per embedding, payload-only metadata
// (repo/branch/chunk scoping) needed to filter a similarity query without
// a round trip to MySQL. chunkFilePaths maps chunk id to file path so
// DeleteByFilePath can target points by payload filter alone.
func (q *QdrantStore) UpsertEmbeddings(ctx context.Context, embeddings []model.Embedding, chunkFilePaths map[string]string) error {
	if len(embeddings) == 0 {
		return nil
	}

	byModel := map[string][]model.Embedding{}
	for _, e := range embeddings {
		byModel[e.Model] = append(byModel[e.Model], e)
	}

	for modelName, batch := range byModel {
		points := make([]*qdrant.PointStruct, 0, len(batch))
		for _, e := range batch {
			payload := map[string]any{
				"chunk_id":      e.ChunkID,
				"repo_id":       e.RepoID,
				"branch_name":   e.BranchName,
				"commit_sha":    e.CommitSHA,
				"model_version": e.ModelVersion,
			}
			if fp, ok := chunkFilePaths[e.ChunkID]; ok {
				payload["file_path"] = fp
			}
			points = append(points, &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(e.ChunkID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					"": qdrant.NewVector(e.Vector...),
				}),
				Payload: qdrant.NewValueMap(payload),
			})
		}
		if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName(modelName),
			Points:         points,
		}); err != nil {
			return fmt.Errorf("failed to upsert embeddings for model %s: %w", modelName, err)
		}
	}
	return nil
}

// SearchSimilar runs a vector (ANN) search scoped to (repo, branch),
// returning chunk ids and their cosine scores, in the order and shape the
// query orchestrator's hybrid fusion step expects (spec.md §4.K).
func (q *QdrantStore) SearchSimilar(ctx context.Context, modelName string, queryVector []float32, repoID, branchName string, limit int) ([]string, []float32, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			fieldMatch("repo_id", repoID),
			fieldMatch("branch_name", branchName),
		},
	}

	result, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName(modelName),
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("vector search failed: %w", err)
	}

	ids := make([]string, 0, len(result))
	scores := make([]float32, 0, len(result))
	for _, point := range result {
		ids = append(ids, point.Id.GetUuid())
		scores = append(scores, point.Score)
	}
	return ids, scores, nil
}

// DeleteByFilePath removes every point belonging to a file being
// re-indexed, ahead of the batch's fresh insert (the orchestrator's
// delete-old step mirrored into Qdrant).
func (q *QdrantStore) DeleteByFilePath(ctx context.Context, modelName, repoID, branchName, filePath string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			fieldMatch("repo_id", repoID),
			fieldMatch("branch_name", branchName),
			fieldMatch("file_path", filePath),
		},
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName(modelName),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", filePath, err)
	}
	return nil
}

func fieldMatch(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func (q *QdrantStore) Health(ctx context.Context) error {
	_, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}
