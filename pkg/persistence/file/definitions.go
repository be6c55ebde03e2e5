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

	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/persistence"
)

// DefinitionRepository stores one JSON file per workflow definition under
// <root>/definitions.
type DefinitionRepository struct {
	root string
	mu   sync.RWMutex
}

func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{root: root}
}

func (r *DefinitionRepository) dir() string {
	return filepath.Join(r.root, "definitions")
}

func (r *DefinitionRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

func (r *DefinitionRepository) Create(ctx context.Context, def *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(def.ID)); err == nil {
		return persistence.NewStorageError("Create", def.ID, persistence.ErrDefinitionAlreadyExists)
	}

	return r.write(def)
}

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.read(id)
}

func (r *DefinitionRepository) Update(ctx context.Context, def *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(def.ID)); err != nil {
		return persistence.NewStorageError("Update", def.ID, persistence.ErrDefinitionNotFound)
	}

	return r.write(def)
}

func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewStorageError("Delete", id, persistence.ErrDefinitionNotFound)
		}

		return persistence.NewStorageError("Delete", id, err)
	}

	return nil
}

func (r *DefinitionRepository) List(ctx context.Context, opts persistence.ListDefinitionsOptions) ([]*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all, err := r.readAll()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.WorkflowDefinition, 0, len(all))

	for _, def := range all {
		if opts.TenantID != "" && def.TenantID != opts.TenantID {
			continue
		}

		if opts.Enabled != nil && def.Enabled != *opts.Enabled {
			continue
		}

		filtered = append(filtered, def)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return paginate(filtered, opts.Offset, opts.Limit), nil
}

func (r *DefinitionRepository) ListEnabledByTriggerType(ctx context.Context, tenantID, triggerType string) ([]*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all, err := r.readAll()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.WorkflowDefinition, 0)

	for _, def := range all {
		if !def.Enabled || def.TenantID != tenantID {
			continue
		}

		for _, trigger := range def.Triggers {
			if trigger.TriggerType == triggerType {
				matched = append(matched, def)

				break
			}
		}
	}

	return matched, nil
}

func (r *DefinitionRepository) write(def *models.WorkflowDefinition) error {
	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return persistence.NewStorageError("write", def.ID, err)
	}

	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return persistence.NewStorageError("write", def.ID, err)
	}

	if err := os.WriteFile(r.path(def.ID), data, 0o644); err != nil {
		return persistence.NewStorageError("write", def.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) read(id string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewStorageError("read", id, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewStorageError("read", id, err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, persistence.NewStorageError("read", id, fmt.Errorf("corrupt definition file: %w", err))
	}

	return &def, nil
}

func (r *DefinitionRepository) readAll() ([]*models.WorkflowDefinition, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, persistence.NewStorageError("readAll", "", err)
	}

	defs := make([]*models.WorkflowDefinition, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		def, err := r.read(entry.Name()[:len(entry.Name())-5])
		if err != nil {
			return nil, err
		}

		defs = append(defs, def)
	}

	return defs, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}

	if offset >= len(items) {
		return []T{}
	}

	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return items[offset:end]
}
