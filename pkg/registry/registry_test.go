package registry_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/protocol"
	"github.com/vyomtech/automation/pkg/registry"
)

type fakeFactory struct {
	id     string
	schema *models.JSONSchema
}

func (f *fakeFactory) ID() string { return f.id }

func (f *fakeFactory) Schema() *models.JSONSchema { return f.schema }

func (f *fakeFactory) Create(_ map[string]any) (protocol.ActionHandler, error) {
	return &fakeHandler{}, nil
}

type fakeHandler struct{}

func (h *fakeHandler) Execute(_ context.Context, _ models.ExecutionContext, _ *slog.Logger) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func strictSchema() *models.JSONSchema {
	return &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"message": {Type: "string"},
			"count":   {Type: "integer"},
		},
		Required: []string{"message"},
	}
}

func TestRegistryCreateAction(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterAction(&fakeFactory{id: "fake"})

	handler, err := reg.CreateAction("fake", nil)
	require.NoError(t, err)
	require.NotNil(t, handler)

	_, err = reg.CreateAction("missing", nil)
	require.Error(t, err)
}

func TestRegistryIsActionRegistered(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterAction(&fakeFactory{id: "fake"})

	assert.True(t, reg.IsActionRegistered("fake"))
	assert.False(t, reg.IsActionRegistered("missing"))
	assert.Equal(t, []string{"fake"}, reg.ActionTypes())
}

func TestRegistryValidateActionConfig(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterAction(&fakeFactory{id: "strict", schema: strictSchema()})
	reg.RegisterAction(&fakeFactory{id: "loose"})

	tests := []struct {
		name       string
		actionType string
		config     map[string]any
		wantErr    bool
	}{
		{
			name:       "valid config",
			actionType: "strict",
			config:     map[string]any{"message": "hello", "count": 3},
		},
		{
			name:       "missing required property",
			actionType: "strict",
			config:     map[string]any{"count": 3},
			wantErr:    true,
		},
		{
			name:       "wrong property type",
			actionType: "strict",
			config:     map[string]any{"message": "hello", "count": "three"},
			wantErr:    true,
		},
		{
			name:       "nil config fails required check",
			actionType: "strict",
			wantErr:    true,
		},
		{
			name:       "factory without schema accepts anything",
			actionType: "loose",
			config:     map[string]any{"whatever": []int{1, 2, 3}},
		},
		{
			name:       "unregistered action type",
			actionType: "missing",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := reg.ValidateActionConfig(tt.actionType, tt.config)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRegistryHealthCheck(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())

	message, ok := reg.HealthCheck()
	assert.False(t, ok)
	assert.Contains(t, message, "No action handlers")

	reg.RegisterAction(&fakeFactory{id: "fake"})

	message, ok = reg.HealthCheck()
	assert.True(t, ok)
	assert.Contains(t, message, "1 action handlers")
}
