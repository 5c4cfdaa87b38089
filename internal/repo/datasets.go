// Package repo holds the narrow persistence contracts the insights pipeline
// consumes. Dataset upload and CRUD live in a separate service; this side
// only ever reads.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/platformbuilds/compara-core/internal/models"
)

// DatasetRepository resolves a dataset with its rows and schema mapping.
// FindByID returns models.ErrDatasetNotFound for unknown IDs.
type DatasetRepository interface {
	FindByID(ctx context.Context, id string) (*models.Dataset, error)
}

// MemoryDatasetRepository keeps datasets in process memory. It backs local
// development and tests; production deployments point the service at the
// dataset service instead.
type MemoryDatasetRepository struct {
	mu       sync.RWMutex
	datasets map[string]*models.Dataset
}

func NewMemoryDatasetRepository() *MemoryDatasetRepository {
	return &MemoryDatasetRepository{datasets: make(map[string]*models.Dataset)}
}

// NewMemoryDatasetRepositoryFromFile seeds the repository from a JSON file
// containing an array of datasets.
func NewMemoryDatasetRepositoryFromFile(path string) (*MemoryDatasetRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset seed file: %w", err)
	}
	var datasets []*models.Dataset
	if err := json.Unmarshal(data, &datasets); err != nil {
		return nil, fmt.Errorf("failed to parse dataset seed file: %w", err)
	}

	r := NewMemoryDatasetRepository()
	for _, ds := range datasets {
		r.Put(ds)
	}
	return r, nil
}

func (r *MemoryDatasetRepository) FindByID(_ context.Context, id string) (*models.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.datasets[id]
	if !ok {
		return nil, models.ErrDatasetNotFound
	}
	return ds, nil
}

// Put inserts or replaces a dataset.
func (r *MemoryDatasetRepository) Put(ds *models.Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[ds.ID] = ds
}
