package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/persistence"
)

// DefinitionRepository stores workflow definitions with triggers and actions
// as JSONB documents.
type DefinitionRepository struct {
	db *sql.DB
}

func NewDefinitionRepository(db *sql.DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

const definitionColumns = `id, tenant_id, name, description, enabled, triggers, actions, created_at, updated_at`

func (r *DefinitionRepository) Create(ctx context.Context, def *models.WorkflowDefinition) error {
	triggers, actions, err := marshalDefinitionDocs(def)
	if err != nil {
		return persistence.NewStorageError("Create", def.ID, err)
	}

	query := `
		INSERT INTO workflow_definitions (id, tenant_id, name, description, enabled, triggers, actions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		def.ID, def.TenantID, def.Name, def.Description, def.Enabled,
		triggers, actions, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return persistence.NewStorageError("Create", def.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE id = $1`

	def, err := scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStorageError("GetByID", id, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewStorageError("GetByID", id, err)
	}

	return def, nil
}

func (r *DefinitionRepository) Update(ctx context.Context, def *models.WorkflowDefinition) error {
	triggers, actions, err := marshalDefinitionDocs(def)
	if err != nil {
		return persistence.NewStorageError("Update", def.ID, err)
	}

	query := `
		UPDATE workflow_definitions
		SET name = $2, description = $3, enabled = $4, triggers = $5, actions = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		def.ID, def.Name, def.Description, def.Enabled, triggers, actions, def.UpdatedAt)
	if err != nil {
		return persistence.NewStorageError("Update", def.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError("Update", def.ID, err)
	}

	if affected == 0 {
		return persistence.NewStorageError("Update", def.ID, persistence.ErrDefinitionNotFound)
	}

	return nil
}

func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflow_definitions WHERE id = $1`, id)
	if err != nil {
		return persistence.NewStorageError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewStorageError("Delete", id, persistence.ErrDefinitionNotFound)
	}

	return nil
}

func (r *DefinitionRepository) List(ctx context.Context, opts persistence.ListDefinitionsOptions) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE ($1 = '' OR tenant_id = $1)`
	args := []any{opts.TenantID}

	if opts.Enabled != nil {
		query += fmt.Sprintf(" AND enabled = $%d", len(args)+1)
		args = append(args, *opts.Enabled)
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}

	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStorageError("List", opts.TenantID, err)
	}
	defer rows.Close()

	return collectDefinitions(rows, opts.TenantID)
}

func (r *DefinitionRepository) ListEnabledByTriggerType(ctx context.Context, tenantID, triggerType string) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflow_definitions
		WHERE tenant_id = $1 AND enabled = TRUE
		  AND triggers @> $2::jsonb
	`

	filter, err := json.Marshal([]map[string]any{{"trigger_type": triggerType}})
	if err != nil {
		return nil, persistence.NewStorageError("ListEnabledByTriggerType", tenantID, err)
	}

	rows, err := r.db.QueryContext(ctx, query, tenantID, filter)
	if err != nil {
		return nil, persistence.NewStorageError("ListEnabledByTriggerType", tenantID, err)
	}
	defer rows.Close()

	return collectDefinitions(rows, tenantID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*models.WorkflowDefinition, error) {
	var (
		def      models.WorkflowDefinition
		triggers []byte
		actions  []byte
	)

	err := row.Scan(&def.ID, &def.TenantID, &def.Name, &def.Description, &def.Enabled,
		&triggers, &actions, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(triggers, &def.Triggers); err != nil {
		return nil, fmt.Errorf("corrupt triggers document: %w", err)
	}

	if err := json.Unmarshal(actions, &def.Actions); err != nil {
		return nil, fmt.Errorf("corrupt actions document: %w", err)
	}

	return &def, nil
}

func collectDefinitions(rows *sql.Rows, contextID string) ([]*models.WorkflowDefinition, error) {
	defs := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, persistence.NewStorageError("scan", contextID, err)
		}

		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStorageError("scan", contextID, err)
	}

	return defs, nil
}

func marshalDefinitionDocs(def *models.WorkflowDefinition) ([]byte, []byte, error) {
	triggers, err := json.Marshal(def.Triggers)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal triggers: %w", err)
	}

	actions, err := json.Marshal(def.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal actions: %w", err)
	}

	return triggers, actions, nil
}
