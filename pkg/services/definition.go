// Package services implements the application layer over persistence: it
// validates workflow definitions and owns their lifecycle transitions.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/persistence"
	"github.com/vyomtech/automation/pkg/registry"
)

type DefinitionService struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
}

func NewDefinitionService(logger *slog.Logger, p persistence.Persistence, reg *registry.Registry) *DefinitionService {
	return &DefinitionService{
		logger:      logger.With("module", "definition_service"),
		persistence: p,
		registry:    reg,
		validate:    validator.New(),
	}
}

// Create validates and stores a new definition. Missing IDs on the definition
// and its triggers and actions are assigned.
func (s *DefinitionService) Create(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	assignIDs(def)

	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := s.validateDefinition(def); err != nil {
		return nil, err
	}

	if err := s.persistence.Definitions().Create(ctx, def); err != nil {
		return nil, err
	}

	s.logger.Info("Definition created", "definition_id", def.ID, "tenant_id", def.TenantID, "name", def.Name)

	return def, nil
}

func (s *DefinitionService) Get(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return s.persistence.Definitions().GetByID(ctx, id)
}

func (s *DefinitionService) List(ctx context.Context, opts persistence.ListDefinitionsOptions) ([]*models.WorkflowDefinition, error) {
	return s.persistence.Definitions().List(ctx, opts)
}

// Update replaces an existing definition. Instances already running keep the
// snapshot they started with.
func (s *DefinitionService) Update(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	existing, err := s.persistence.Definitions().GetByID(ctx, def.ID)
	if err != nil {
		return nil, err
	}

	assignIDs(def)
	def.TenantID = existing.TenantID
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now().UTC()

	if err := s.validateDefinition(def); err != nil {
		return nil, err
	}

	if err := s.persistence.Definitions().Update(ctx, def); err != nil {
		return nil, err
	}

	s.logger.Info("Definition updated", "definition_id", def.ID)

	return def, nil
}

func (s *DefinitionService) Delete(ctx context.Context, id string) error {
	if err := s.persistence.Definitions().Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Definition deleted", "definition_id", id)

	return nil
}

// SetEnabled flips a definition on or off. Disabling does not touch instances
// already in flight.
func (s *DefinitionService) SetEnabled(ctx context.Context, id string, enabled bool) (*models.WorkflowDefinition, error) {
	def, err := s.persistence.Definitions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	def.Enabled = enabled
	def.UpdatedAt = time.Now().UTC()

	if err := s.persistence.Definitions().Update(ctx, def); err != nil {
		return nil, err
	}

	s.logger.Info("Definition enabled state changed", "definition_id", id, "enabled", enabled)

	return def, nil
}

func (s *DefinitionService) validateDefinition(def *models.WorkflowDefinition) error {
	if err := s.validate.Struct(def); err != nil {
		details := make([]string, 0)

		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			for _, fe := range fieldErrors {
				details = append(details, fmt.Sprintf("field '%s' failed rule '%s'", fe.Namespace(), fe.Tag()))
			}
		} else {
			details = append(details, err.Error())
		}

		return NewValidationError(details...)
	}

	details := make([]string, 0)

	seenOrders := make(map[int]string, len(def.Actions))
	for _, action := range def.Actions {
		if prev, dup := seenOrders[action.ActionOrder]; dup {
			details = append(details, fmt.Sprintf("actions '%s' and '%s' share action_order %d", prev, action.ID, action.ActionOrder))
		}

		seenOrders[action.ActionOrder] = action.ID

		if !s.registry.IsActionRegistered(action.ActionType) {
			details = append(details, fmt.Sprintf("action '%s' has unknown action_type '%s'", action.ID, action.ActionType))

			continue
		}

		if err := s.registry.ValidateActionConfig(action.ActionType, action.ActionConfig); err != nil {
			details = append(details, err.Error())
		}
	}

	if len(details) > 0 {
		return NewValidationError(details...)
	}

	return nil
}

func assignIDs(def *models.WorkflowDefinition) {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}

	for _, trigger := range def.Triggers {
		if trigger.ID == "" {
			trigger.ID = uuid.New().String()
		}
	}

	for _, action := range def.Actions {
		if action.ID == "" {
			action.ID = uuid.New().String()
		}
	}
}
