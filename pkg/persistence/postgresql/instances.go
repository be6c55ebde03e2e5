package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/persistence"
)

// InstanceRepository stores workflow instances with their action executions
// as a JSONB document, updated atomically with the parent row.
type InstanceRepository struct {
	db *sql.DB
}

func NewInstanceRepository(db *sql.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = `id, definition_id, tenant_id, status, triggered_by, trigger_data,
	executed_actions, failed_actions, progress_percentage, action_executions,
	started_at, completed_at, created_at, updated_at`

func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	triggerData, executions, err := marshalInstanceDocs(instance)
	if err != nil {
		return persistence.NewStorageError("Create", instance.ID, err)
	}

	query := `
		INSERT INTO workflow_instances (id, definition_id, tenant_id, status, triggered_by, trigger_data,
			executed_actions, failed_actions, progress_percentage, action_executions,
			started_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID, instance.DefinitionID, instance.TenantID, instance.Status,
		instance.TriggeredBy, triggerData,
		instance.ExecutedActions, instance.FailedActions, instance.ProgressPercentage, executions,
		instance.StartedAt, instance.CompletedAt, instance.CreatedAt, instance.UpdatedAt)
	if err != nil {
		return persistence.NewStorageError("Create", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = $1`

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStorageError("GetByID", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewStorageError("GetByID", id, err)
	}

	return instance, nil
}

func (r *InstanceRepository) Update(ctx context.Context, instance *models.WorkflowInstance) error {
	triggerData, executions, err := marshalInstanceDocs(instance)
	if err != nil {
		return persistence.NewStorageError("Update", instance.ID, err)
	}

	query := `
		UPDATE workflow_instances
		SET status = $2, trigger_data = $3, executed_actions = $4, failed_actions = $5,
			progress_percentage = $6, action_executions = $7, started_at = $8,
			completed_at = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		instance.ID, instance.Status, triggerData,
		instance.ExecutedActions, instance.FailedActions, instance.ProgressPercentage,
		executions, instance.StartedAt, instance.CompletedAt, instance.UpdatedAt)
	if err != nil {
		return persistence.NewStorageError("Update", instance.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError("Update", instance.ID, err)
	}

	if affected == 0 {
		return persistence.NewStorageError("Update", instance.ID, persistence.ErrInstanceNotFound)
	}

	return nil
}

// CancelIfActive locks the row for the duration of the transition, so a run
// loop finalizing concurrently cannot have its terminal state overwritten.
func (r *InstanceRepository) CancelIfActive(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence.NewStorageError("CancelIfActive", id, err)
	}
	defer tx.Rollback() // nolint:errcheck // Rollback after commit is a no-op

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = $1 FOR UPDATE`

	instance, err := scanInstance(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStorageError("CancelIfActive", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewStorageError("CancelIfActive", id, err)
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

	executions, err := json.Marshal(instance.ActionExecutions)
	if err != nil {
		return nil, persistence.NewStorageError("CancelIfActive", id, err)
	}

	update := `
		UPDATE workflow_instances
		SET status = $2, executed_actions = $3, failed_actions = $4,
			progress_percentage = $5, action_executions = $6,
			completed_at = $7, updated_at = $8
		WHERE id = $1 AND status IN ('pending', 'running')
	`

	if _, err := tx.ExecContext(ctx, update,
		instance.ID, instance.Status,
		instance.ExecutedActions, instance.FailedActions, instance.ProgressPercentage,
		executions, instance.CompletedAt, instance.UpdatedAt); err != nil {
		return nil, persistence.NewStorageError("CancelIfActive", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, persistence.NewStorageError("CancelIfActive", id, err)
	}

	return instance, nil
}

func (r *InstanceRepository) ListByDefinition(ctx context.Context, definitionID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE definition_id = $1 ORDER BY created_at DESC`
	args := []any{definitionID}

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
		return nil, persistence.NewStorageError("ListByDefinition", definitionID, err)
	}
	defer rows.Close()

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, persistence.NewStorageError("scan", definitionID, err)
		}

		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStorageError("scan", definitionID, err)
	}

	return instances, nil
}

func (r *InstanceRepository) Stats(ctx context.Context, definitionID string) (*persistence.InstanceStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM workflow_instances
		WHERE definition_id = $1
	`

	stats := &persistence.InstanceStats{}

	err := r.db.QueryRowContext(ctx, query, definitionID).Scan(
		&stats.Total, &stats.Completed, &stats.Failed, &stats.Cancelled)
	if err != nil {
		return nil, persistence.NewStorageError("Stats", definitionID, err)
	}

	return stats, nil
}

func scanInstance(row rowScanner) (*models.WorkflowInstance, error) {
	var (
		instance    models.WorkflowInstance
		triggerData []byte
		executions  []byte
	)

	err := row.Scan(&instance.ID, &instance.DefinitionID, &instance.TenantID, &instance.Status,
		&instance.TriggeredBy, &triggerData,
		&instance.ExecutedActions, &instance.FailedActions, &instance.ProgressPercentage, &executions,
		&instance.StartedAt, &instance.CompletedAt, &instance.CreatedAt, &instance.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(triggerData) > 0 {
		if err := json.Unmarshal(triggerData, &instance.TriggerData); err != nil {
			return nil, fmt.Errorf("corrupt trigger_data document: %w", err)
		}
	}

	if err := json.Unmarshal(executions, &instance.ActionExecutions); err != nil {
		return nil, fmt.Errorf("corrupt action_executions document: %w", err)
	}

	return &instance, nil
}

func marshalInstanceDocs(instance *models.WorkflowInstance) ([]byte, []byte, error) {
	triggerData, err := json.Marshal(instance.TriggerData)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal trigger_data: %w", err)
	}

	executions, err := json.Marshal(instance.ActionExecutions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal action_executions: %w", err)
	}

	return triggerData, executions, nil
}
