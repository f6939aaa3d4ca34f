// Package embedjob implements the embedding job worker (spec.md §4.J):
// a poll loop that claims pending embedding_jobs rows, calls the
// embedding provider in batches, writes vectors into Qdrant plus a
// metadata row in MySQL, and retries failures with exponential backoff.
//
// Grounded on Aman-CERP-amanmcp's internal/telemetry/query_metrics.go for
// the ticker-plus-stop-channel poll loop shape, and on the teacher's
// internal/controller/embedding_processor.go for the
// ensure-collection-then-process-continue-on-error structure of one
// batch's work (ensureCollection mirrored here by
// QdrantStore.EnsureCollection, and a per-job failure logged and
// skipped rather than aborting the whole batch).
package embedjob

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/embedclient"
	"github.com/armchr/codeindex/internal/model"
	"github.com/armchr/codeindex/internal/store"
)

// Config mirrors config.EmbeddingJobsConfig; kept as its own type so this
// package doesn't need to import internal/config directly.
type Config struct {
	PollInterval       time.Duration
	LeaseDuration       time.Duration
	MaxAttempts         int
	BackoffBaseSeconds  int
	BackoffCapSeconds   int
	BatchSize           int
	WorkerCount         int
}

// Worker claims and processes embedding_jobs rows until its context is
// cancelled.
type Worker struct {
	id       string
	mysql    *store.MySQLStore
	qdrant   *store.QdrantStore
	embedder *embedclient.Client
	cfg      Config
	logger   *zap.Logger
}

func NewWorker(id string, mysql *store.MySQLStore, qdrant *store.QdrantStore, embedder *embedclient.Client, cfg Config, logger *zap.Logger) *Worker {
	return &Worker{id: id, mysql: mysql, qdrant: qdrant, embedder: embedder, cfg: cfg, logger: logger}
}

// Run polls at cfg.PollInterval until ctx is cancelled, reclaiming stale
// leases once per tick before claiming fresh work (spec.md §4.J's
// crashed-worker recovery requirement).
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	if n, err := w.mysql.RequeueStaleLeases(); err != nil {
		w.logger.Warn("failed to requeue stale leases", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("requeued stale embedding jobs", zap.Int64("count", n))
	}

	jobs, err := w.mysql.ClaimJobs(w.id, w.cfg.BatchSize, w.cfg.LeaseDuration)
	if err != nil {
		w.logger.Error("failed to claim embedding jobs", zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	w.processBatch(ctx, jobs)
}

// processBatch resolves each job's chunk, embeds every resolvable chunk
// in a single provider call (one HTTP round trip per batch rather than
// per chunk), and completes or requeues each job individually so one bad
// chunk doesn't block the rest of the batch.
func (w *Worker) processBatch(ctx context.Context, jobs []model.EmbeddingJob) {
	texts := make([]string, 0, len(jobs))
	chunks := make([]model.CodeChunk, 0, len(jobs))
	resolvedJobs := make([]model.EmbeddingJob, 0, len(jobs))

	for _, job := range jobs {
		chunk, ok, err := w.mysql.GetChunkByID(job.TargetID)
		if err != nil {
			w.logger.Error("failed to fetch chunk for embedding job", zap.String("job_id", job.ID), zap.Error(err))
			w.fail(job, err)
			continue
		}
		if !ok {
			// Chunk was deleted since the job was enqueued (e.g. the file
			// was re-indexed or removed): the job is stale, not failed.
			if err := w.mysql.CompleteJob(job.ID); err != nil {
				w.logger.Warn("failed to complete orphaned embedding job", zap.String("job_id", job.ID), zap.Error(err))
			}
			continue
		}
		texts = append(texts, chunk.Content)
		chunks = append(chunks, chunk)
		resolvedJobs = append(resolvedJobs, job)
	}

	if len(texts) == 0 {
		return
	}

	vectors, dims, err := w.embedder.Embed(ctx, texts)
	if err != nil {
		w.logger.Error("embedding provider call failed", zap.Error(err), zap.Bool("transient", embedclient.IsTransient(err)))
		for _, job := range resolvedJobs {
			w.fail(job, err)
		}
		return
	}

	chunkFilePaths := make(map[string]string, len(chunks))
	embeddings := make([]model.Embedding, 0, len(chunks))
	for i, chunk := range chunks {
		chunkFilePaths[chunk.ID] = chunk.FilePath
		embeddings = append(embeddings, model.Embedding{
			ID: resolvedJobs[i].ID, ChunkID: chunk.ID, RepoID: chunk.RepoID, BranchName: chunk.BranchName,
			CommitSHA: resolvedJobs[i].CommitSHA, Vector: vectors[i], Model: resolvedJobs[i].Model, Dims: dims,
		})
	}

	if err := w.qdrant.EnsureCollection(ctx, resolvedJobs[0].Model, dims); err != nil {
		w.logger.Error("failed to ensure vector collection", zap.Error(err))
		for _, job := range resolvedJobs {
			w.fail(job, err)
		}
		return
	}
	if err := w.qdrant.UpsertEmbeddings(ctx, embeddings, chunkFilePaths); err != nil {
		w.logger.Error("failed to upsert vectors", zap.Error(err))
		for _, job := range resolvedJobs {
			w.fail(job, err)
		}
		return
	}

	for i, job := range resolvedJobs {
		if err := w.mysql.UpsertEmbeddingRecord(embeddings[i]); err != nil {
			w.logger.Warn("failed to record embedding metadata", zap.String("job_id", job.ID), zap.Error(err))
		}
		if err := w.mysql.CompleteJob(job.ID); err != nil {
			w.logger.Warn("failed to complete embedding job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func (w *Worker) fail(job model.EmbeddingJob, cause error) {
	attempts := job.Attempts + 1
	if err := w.mysql.RequeueJob(job.ID, attempts, cause.Error(), w.cfg.MaxAttempts, w.cfg.BackoffBaseSeconds, w.cfg.BackoffCapSeconds); err != nil {
		w.logger.Error("failed to requeue embedding job", zap.String("job_id", job.ID), zap.Error(err))
	}
}
