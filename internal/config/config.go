// Package config loads the two-document YAML configuration (app.yaml +
// sources.yaml) spec.md §6 and SPEC_FULL.md component O describe, with
// environment variable interpolation.
//
// Grounded directly on the teacher's internal/config/config.go: same
// two-file load-and-merge shape, the same expandEnvVars implementation
// (${VAR}, $VAR, ${VAR:-default}), and the same validate-after-load
// pattern — only the Config struct's fields have been replaced to match
// this domain.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"regexp"

	"gopkg.in/yaml.v2"
)

// SourceConfig lists the repositories this instance tracks.
type SourceConfig struct {
	Repositories []Repository `yaml:"repositories"`
}

type Repository struct {
	Name          string `yaml:"name"`
	RemoteURL     string `yaml:"remote_url"`
	DefaultBranch string `yaml:"default_branch"`
	Disabled      bool   `yaml:"disabled,omitempty"`
}

type App struct {
	Port               int    `yaml:"port"`
	WorkDir            string `yaml:"workdir"`
	LogLevel           string `yaml:"log_level,omitempty"` // debug, info, warn, error (default: info)
	DebugHTTP          bool   `yaml:"debug_http,omitempty"`
	FileReadConcurrency int   `yaml:"file_read_concurrency,omitempty"`
	MaxFileBytes       int64  `yaml:"max_file_bytes,omitempty"`
	StaleBranchDays    int    `yaml:"stale_branch_days,omitempty"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"apikey"`
}

// EmbeddingConfig describes the embedding provider HTTP client
// (internal/embedclient); it replaces the teacher's Ollama-specific
// config with a provider-agnostic shape matching spec.md §6's "small
// HTTP client" framing.
type EmbeddingConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"apikey"`
	Model     string `yaml:"model"`
	ModelVersion string `yaml:"model_version"`
	Dimension int    `yaml:"dimension"`
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

type ChunkingConfig struct {
	ContextLinesBefore int `yaml:"context_lines_before"`
	ContextLinesAfter  int `yaml:"context_lines_after"`
	MaxChunkChars      int `yaml:"max_chunk_chars"`
}

type BloomFilterConfig struct {
	Enabled           bool    `yaml:"enabled"`
	StorageDir        string  `yaml:"storage_dir"`
	ExpectedItems     uint    `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
}

// EmbeddingJobsConfig governs the job queue worker (internal/embedjob).
type EmbeddingJobsConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	LeaseSeconds        int `yaml:"lease_seconds"`
	MaxAttempts         int `yaml:"max_attempts"`
	BackoffBaseSeconds  int `yaml:"backoff_base_seconds"`
	BackoffCapSeconds   int `yaml:"backoff_cap_seconds"`
	BatchSize           int `yaml:"batch_size"`
	WorkerCount         int `yaml:"worker_count"`
}

// MaxResponseConfig caps the response compactor's output (internal/compact).
type MaxResponseConfig struct {
	MaxResults      int `yaml:"max_results"`
	MaxSnippetChars int `yaml:"max_snippet_chars"`
	MaxResponseBytes int `yaml:"max_response_bytes"`
}

// RetrievalConfig governs the query orchestrator's hybrid-search fusion.
type RetrievalConfig struct {
	DefaultProfile string  `yaml:"default_profile"`
	BM25Weight     float64 `yaml:"bm25_weight"`
	VectorWeight   float64 `yaml:"vector_weight"`
}

type Config struct {
	Source          SourceConfig        `yaml:"source"`
	App             App                 `yaml:"app"`
	MySQL           MySQLConfig         `yaml:"mysql"`
	Neo4j           Neo4jConfig         `yaml:"neo4j"`
	Qdrant          QdrantConfig        `yaml:"qdrant"`
	Embedding       EmbeddingConfig     `yaml:"embedding"`
	Chunking        ChunkingConfig      `yaml:"chunking"`
	BloomFilter     BloomFilterConfig   `yaml:"bloom_filter"`
	EmbeddingJobs   EmbeddingJobsConfig `yaml:"embedding_jobs"`
	MaxResponse     MaxResponseConfig   `yaml:"max_response"`
	Retrieval       RetrievalConfig     `yaml:"retrieval"`
}

// expandEnvVars expands environment variables in the given string.
// Supports formats: ${VAR}, $VAR, ${VAR:-default}.
func expandEnvVars(s string) string {
	reBraces := regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)
	s = reBraces.ReplaceAllStringFunc(s, func(match string) string {
		parts := reBraces.FindStringSubmatch(match)
		if len(parts) >= 2 {
			varName := parts[1]
			defaultValue := ""
			if len(parts) >= 4 {
				defaultValue = parts[3]
			}
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultValue
		}
		return match
	})

	reSimple := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = reSimple.ReplaceAllStringFunc(s, func(match string) string {
		parts := reSimple.FindStringSubmatch(match)
		if len(parts) >= 2 {
			varName := parts[1]
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return match
		}
		return match
	})

	return s
}

// LoadConfig reads appConfigPath and sourceConfigPath, expands environment
// variables in both, merges sourceConfigPath's repository list and any
// store overrides into the app config, and validates the result.
func LoadConfig(appConfigPath, sourceConfigPath string) (*Config, error) {
	if _, err := os.Stat(appConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("app config file does not exist: %s", appConfigPath)
	}
	if _, err := os.Stat(sourceConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("source config file does not exist: %s", sourceConfigPath)
	}

	dataApp, err := ioutil.ReadFile(appConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read app config file: %w", err)
	}
	dataSource, err := ioutil.ReadFile(sourceConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source config file: %w", err)
	}

	dataApp = []byte(expandEnvVars(string(dataApp)))
	dataSource = []byte(expandEnvVars(string(dataSource)))

	var configApp Config
	if err := yaml.Unmarshal(dataApp, &configApp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app config: %w", err)
	}
	var configSource Config
	if err := yaml.Unmarshal(dataSource, &configSource); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source config: %w", err)
	}

	configApp.Source = configSource.Source

	if err := validateRepositories(&configApp); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}

	if configSource.Neo4j.URI != "" {
		configApp.Neo4j = configSource.Neo4j
	}
	if configSource.Qdrant.Host != "" {
		configApp.Qdrant = configSource.Qdrant
	}
	if configSource.Embedding.URL != "" {
		configApp.Embedding = configSource.Embedding
	}

	applyDefaults(&configApp)
	return &configApp, nil
}

// applyDefaults fills in spec.md's stated defaults (§4.E context lines
// 5/5, §4.E max chunk chars 30000, §4.J backoff 30s base capped at 3600s,
// §4.L caps 10/8000/16384, §4.K retrieval weights 0.3/0.7) when the
// operator's YAML leaves them at the zero value.
func applyDefaults(c *Config) {
	if c.Chunking.ContextLinesBefore == 0 {
		c.Chunking.ContextLinesBefore = 5
	}
	if c.Chunking.ContextLinesAfter == 0 {
		c.Chunking.ContextLinesAfter = 5
	}
	if c.Chunking.MaxChunkChars == 0 {
		c.Chunking.MaxChunkChars = 30000
	}
	if c.EmbeddingJobs.BackoffBaseSeconds == 0 {
		c.EmbeddingJobs.BackoffBaseSeconds = 30
	}
	if c.EmbeddingJobs.BackoffCapSeconds == 0 {
		c.EmbeddingJobs.BackoffCapSeconds = 3600
	}
	if c.EmbeddingJobs.MaxAttempts == 0 {
		c.EmbeddingJobs.MaxAttempts = 5
	}
	if c.EmbeddingJobs.PollIntervalSeconds == 0 {
		c.EmbeddingJobs.PollIntervalSeconds = 5
	}
	if c.EmbeddingJobs.LeaseSeconds == 0 {
		c.EmbeddingJobs.LeaseSeconds = 300
	}
	if c.EmbeddingJobs.BatchSize == 0 {
		c.EmbeddingJobs.BatchSize = 20
	}
	if c.EmbeddingJobs.WorkerCount == 0 {
		c.EmbeddingJobs.WorkerCount = 2
	}
	if c.MaxResponse.MaxResults == 0 {
		c.MaxResponse.MaxResults = 10
	}
	if c.MaxResponse.MaxSnippetChars == 0 {
		c.MaxResponse.MaxSnippetChars = 8000
	}
	if c.MaxResponse.MaxResponseBytes == 0 {
		c.MaxResponse.MaxResponseBytes = 16384
	}
	if c.Retrieval.BM25Weight == 0 && c.Retrieval.VectorWeight == 0 {
		c.Retrieval.BM25Weight = 0.3
		c.Retrieval.VectorWeight = 0.7
	}
	if c.Retrieval.DefaultProfile == "" {
		c.Retrieval.DefaultProfile = "balanced"
	}
	if c.App.StaleBranchDays == 0 {
		c.App.StaleBranchDays = 30
	}
	if c.App.FileReadConcurrency == 0 {
		c.App.FileReadConcurrency = 8
	}
	if c.App.MaxFileBytes == 0 {
		c.App.MaxFileBytes = 1 << 20
	}
}

func (c *Config) GetRepository(name string) (*Repository, error) {
	for _, repo := range c.Source.Repositories {
		if repo.Name == name {
			return &repo, nil
		}
	}
	return nil, fmt.Errorf("repository not found: %s", name)
}

func validateRepositories(config *Config) error {
	for _, repo := range config.Source.Repositories {
		if repo.Name == "" {
			return fmt.Errorf("repository entry missing a name")
		}
		if repo.RemoteURL == "" {
			return fmt.Errorf("repository '%s': remote_url is required", repo.Name)
		}
	}
	return nil
}
