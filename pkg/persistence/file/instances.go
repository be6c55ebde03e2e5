package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/persistence"
)

// InstanceRepository stores one JSON file per workflow instance under
// <root>/instances.
type InstanceRepository struct {
	root string
	mu   sync.RWMutex
}

func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{root: root}
}

func (r *InstanceRepository) dir() string {
	return filepath.Join(r.root, "instances")
}

func (r *InstanceRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.write(instance)
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.read(id)
}

func (r *InstanceRepository) Update(ctx context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(instance.ID)); err != nil {
		return persistence.NewStorageError("Update", instance.ID, persistence.ErrInstanceNotFound)
	}

	return r.write(instance)
}

// CancelIfActive re-reads the stored instance under the write lock, so a run
// loop finalizing concurrently cannot have its terminal state overwritten.
func (r *InstanceRepository) CancelIfActive(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, err := r.read(id)
	if err != nil {
		return nil, err
	}

	if instance.Status.Terminal() {
		return nil, persistence.NewStorageError("CancelIfActive", id, persistence.ErrInstanceTerminal)
	}

	now := time.Now().UTC()
	instance.Status = models.InstanceStatusCancelled
	instance.CompletedAt = &now
	instance.UpdatedAt = now

	for _, exec := range instance.ActionExecutions {
		if !exec.Status.Terminal() {
			exec.Status = models.ExecutionStatusCancelled
		}
	}

	instance.RecomputeProgress()

	if err := r.write(instance); err != nil {
		return nil, err
	}

	return instance, nil
}

func (r *InstanceRepository) ListByDefinition(ctx context.Context, definitionID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all, err := r.readAll()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.WorkflowInstance, 0)

	for _, instance := range all {
		if instance.DefinitionID == definitionID {
			filtered = append(filtered, instance)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return paginate(filtered, opts.Offset, opts.Limit), nil
}

func (r *InstanceRepository) Stats(ctx context.Context, definitionID string) (*persistence.InstanceStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all, err := r.readAll()
	if err != nil {
		return nil, err
	}

	stats := &persistence.InstanceStats{}

	for _, instance := range all {
		if instance.DefinitionID != definitionID {
			continue
		}

		stats.Total++

		switch instance.Status {
		case models.InstanceStatusCompleted:
			stats.Completed++
		case models.InstanceStatusFailed:
			stats.Failed++
		case models.InstanceStatusCancelled:
			stats.Cancelled++
		}
	}

	return stats, nil
}

func (r *InstanceRepository) write(instance *models.WorkflowInstance) error {
	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return persistence.NewStorageError("write", instance.ID, err)
	}

	data, err := json.MarshalIndent(instance, "", "  ")
	if err != nil {
		return persistence.NewStorageError("write", instance.ID, err)
	}

	if err := os.WriteFile(r.path(instance.ID), data, 0o644); err != nil {
		return persistence.NewStorageError("write", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) read(id string) (*models.WorkflowInstance, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewStorageError("read", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewStorageError("read", id, err)
	}

	var instance models.WorkflowInstance
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, persistence.NewStorageError("read", id, fmt.Errorf("corrupt instance file: %w", err))
	}

	return &instance, nil
}

func (r *InstanceRepository) readAll() ([]*models.WorkflowInstance, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, persistence.NewStorageError("readAll", "", err)
	}

	instances := make([]*models.WorkflowInstance, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		instance, err := r.read(entry.Name()[:len(entry.Name())-5])
		if err != nil {
			return nil, err
		}

		instances = append(instances, instance)
	}

	return instances, nil
}
