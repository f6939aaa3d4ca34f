package util

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/config"
)

// BloomFilterManager tracks a content-hash bloom filter per (repo, branch),
// with disk persistence, so the indexing orchestrator can skip
// re-chunking and re-embedding a file whose content hash it has already
// seen on this branch (spec.md §9's open question on this, resolved in
// DESIGN.md via this component).
type BloomFilterManager struct {
	config     config.BloomFilterConfig
	filters    map[string]*bloom.BloomFilter
	mu         sync.RWMutex
	logger     *zap.Logger
	storageDir string
}

func NewBloomFilterManager(cfg config.BloomFilterConfig, logger *zap.Logger) (*BloomFilterManager, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("bloom filter is disabled in config")
	}

	if cfg.ExpectedItems == 0 {
		cfg.ExpectedItems = 1000000
	}
	if cfg.FalsePositiveRate == 0 {
		cfg.FalsePositiveRate = 0.01
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "./bloom_filters"
	}

	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bloom filter storage directory: %w", err)
	}

	return &BloomFilterManager{
		config:     cfg,
		filters:    make(map[string]*bloom.BloomFilter),
		logger:     logger,
		storageDir: cfg.StorageDir,
	}, nil
}

// branchKey is the bloom filter's unit of scoping: a bloom filter is
// per-branch, not per-repository, since two branches of the same
// repository can diverge arbitrarily on file content.
func branchKey(repoID, branchName string) string {
	return repoID + "@" + branchName
}

func (bfm *BloomFilterManager) GetOrCreateFilter(repoID, branchName string) (*bloom.BloomFilter, error) {
	key := branchKey(repoID, branchName)

	bfm.mu.RLock()
	filter, exists := bfm.filters[key]
	bfm.mu.RUnlock()
	if exists {
		return filter, nil
	}

	bfm.mu.Lock()
	defer bfm.mu.Unlock()

	if filter, exists := bfm.filters[key]; exists {
		return filter, nil
	}

	filterPath := bfm.getFilterPath(key)
	filter, err := bfm.loadFromDisk(filterPath)
	if err != nil {
		bfm.logger.Info("creating new bloom filter for branch",
			zap.String("repo_id", repoID), zap.String("branch", branchName),
			zap.Uint("expected_items", bfm.config.ExpectedItems),
			zap.Float64("false_positive_rate", bfm.config.FalsePositiveRate))
		filter = bloom.NewWithEstimates(bfm.config.ExpectedItems, bfm.config.FalsePositiveRate)
	} else {
		bfm.logger.Info("loaded bloom filter from disk", zap.String("path", filterPath))
	}

	bfm.filters[key] = filter
	return filter, nil
}

// Test checks whether a (file_path, content_hash) pair has already been
// indexed on this branch. A true result may be a false positive — the
// orchestrator still treats a positive as "skip, already indexed",
// matching spec.md §9's tolerance for occasionally missing a genuine
// content change in exchange for avoiding the common case's embedding cost.
func (bfm *BloomFilterManager) Test(repoID, branchName, contentKey string) (bool, error) {
	filter, err := bfm.GetOrCreateFilter(repoID, branchName)
	if err != nil {
		return false, err
	}
	return filter.TestString(contentKey), nil
}

func (bfm *BloomFilterManager) Add(repoID, branchName, contentKey string) error {
	filter, err := bfm.GetOrCreateFilter(repoID, branchName)
	if err != nil {
		return err
	}
	filter.AddString(contentKey)
	return nil
}

func (bfm *BloomFilterManager) Save(repoID, branchName string) error {
	key := branchKey(repoID, branchName)

	bfm.mu.RLock()
	filter, exists := bfm.filters[key]
	bfm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("no bloom filter found for %s", key)
	}

	return bfm.saveToDisk(filter, bfm.getFilterPath(key))
}

func (bfm *BloomFilterManager) SaveAll() error {
	bfm.mu.RLock()
	defer bfm.mu.RUnlock()

	for key, filter := range bfm.filters {
		path := bfm.getFilterPath(key)
		if err := bfm.saveToDisk(filter, path); err != nil {
			bfm.logger.Error("failed to save bloom filter", zap.String("key", key), zap.Error(err))
			return err
		}
	}
	return nil
}

func (bfm *BloomFilterManager) getFilterPath(key string) string {
	return filepath.Join(bfm.storageDir, fmt.Sprintf("%s.bloom", key))
}

func (bfm *BloomFilterManager) saveToDisk(filter *bloom.BloomFilter, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create bloom filter file: %w", err)
	}
	defer file.Close()
	if _, err := filter.WriteTo(file); err != nil {
		return fmt.Errorf("failed to write bloom filter: %w", err)
	}
	return nil
}

func (bfm *BloomFilterManager) loadFromDisk(path string) (*bloom.BloomFilter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bloom filter file: %w", err)
	}
	defer file.Close()

	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("failed to read bloom filter: %w", err)
	}
	return filter, nil
}

func (bfm *BloomFilterManager) Clear(repoID, branchName string) {
	bfm.mu.Lock()
	defer bfm.mu.Unlock()
	delete(bfm.filters, branchKey(repoID, branchName))
}

func (bfm *BloomFilterManager) ClearAll() {
	bfm.mu.Lock()
	defer bfm.mu.Unlock()
	bfm.filters = make(map[string]*bloom.BloomFilter)
}

func (bfm *BloomFilterManager) Delete(repoID, branchName string) error {
	bfm.Clear(repoID, branchName)
	path := bfm.getFilterPath(branchKey(repoID, branchName))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete bloom filter file: %w", err)
	}
	return nil
}
