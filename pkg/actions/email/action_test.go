package email_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyomtech/automation/pkg/actions/email"
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/protocol"
)

type capturingPublisher struct {
	published []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func executionContext(triggerData map[string]any) models.ExecutionContext {
	return models.ExecutionContext{
		InstanceID:   "inst-1",
		DefinitionID: "wf-1",
		TenantID:     "tenant-1",
		TriggerType:  models.TriggerTypeLeadCreated,
		TriggerData:  triggerData,
	}
}

func TestNewAction(t *testing.T) {
	t.Parallel()

	_, err := email.NewAction(&capturingPublisher{}, map[string]any{"to": "ana@example.com"})
	require.ErrorIs(t, err, email.ErrSubjectRequired)

	action, err := email.NewAction(&capturingPublisher{}, map[string]any{
		"subject": "Welcome!",
		"to":      "ana@example.com",
		"body":    "Hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, "Welcome!", action.Subject)
}

func TestExecutePublishesCommand(t *testing.T) {
	t.Parallel()

	publisher := &capturingPublisher{}

	action, err := email.NewAction(publisher, map[string]any{
		"subject": "Welcome!",
		"to":      "ana@example.com",
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), executionContext(nil), slog.Default())
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", result["to"])
	assert.NotEmpty(t, result["message_id"])

	require.Len(t, publisher.published, 1)

	command, ok := publisher.published[0].(events.CommandIssued)
	require.True(t, ok)
	assert.Equal(t, "send_email", command.Command)
	assert.Equal(t, "tenant-1", command.TenantID)
	assert.Equal(t, "inst-1", command.InstanceID)
	assert.Equal(t, "ana@example.com", command.Parameters["to"])
	assert.Equal(t, "Welcome!", command.Parameters["subject"])
}

func TestExecuteRecipientFromTriggerData(t *testing.T) {
	t.Parallel()

	publisher := &capturingPublisher{}

	action, err := email.NewAction(publisher, map[string]any{"subject": "Welcome!"})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), executionContext(map[string]any{
		"email": "lead@example.com",
	}), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "lead@example.com", result["to"])
}

func TestExecuteMissingRecipientIsPermanent(t *testing.T) {
	t.Parallel()

	action, err := email.NewAction(&capturingPublisher{}, map[string]any{"subject": "Welcome!"})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), executionContext(nil), slog.Default())
	require.ErrorIs(t, err, email.ErrRecipientRequired)
	assert.False(t, protocol.IsRetryable(err))
}
