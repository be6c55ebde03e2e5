// Package file provides file-based persistence for definitions and
// instances. Records are one JSON document per entity; reads always
// deserialize a fresh copy, so callers get consistent snapshots even while
// an instance is being mutated by its execution path.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/vyomtech/automation/pkg/persistence"
)

type Persistence struct {
	root           string
	definitionRepo *DefinitionRepository
	instanceRepo   *InstanceRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// Accepts plain paths and file:// URLs.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		definitionRepo: NewDefinitionRepository(cleanRoot),
		instanceRepo:   NewInstanceRepository(cleanRoot),
	}
}

func (fp *Persistence) Definitions() persistence.DefinitionRepository {
	return fp.definitionRepo
}

func (fp *Persistence) Instances() persistence.InstanceRepository {
	return fp.instanceRepo
}

func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
