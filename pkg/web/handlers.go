package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/vyomtech/automation/pkg/engine"
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/persistence"
	"github.com/vyomtech/automation/pkg/registry"
	"github.com/vyomtech/automation/pkg/services"
)

type APIHandlers struct {
	definitionService *services.DefinitionService
	tracker           *engine.Tracker
	registry          *registry.Registry
	eventBus          eventbus.EventBus
	persistence       persistence.Persistence
	validator         *validator.Validate
}

func NewAPIHandlers(
	definitionService *services.DefinitionService,
	tracker *engine.Tracker,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	p persistence.Persistence,
) *APIHandlers {
	return &APIHandlers{
		definitionService: definitionService,
		tracker:           tracker,
		registry:          reg,
		eventBus:          eventBus,
		persistence:       p,
		validator:         validator.New(),
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	opts, err := parseListOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	definitions, err := h.definitionService.List(c.Context(), *opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": definitions,
		"count":     len(definitions),
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

func parseListOptions(c fiber.Ctx) (*persistence.ListDefinitionsOptions, error) {
	opts := &persistence.ListDefinitionsOptions{
		TenantID: c.Query("tenant_id"),
	}

	if enabledStr := c.Query("enabled"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return nil, err
		}

		opts.Enabled = &enabled
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	return opts, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	def, err := h.definitionService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	def := &models.WorkflowDefinition{
		TenantID:    req.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Enabled:     enabled,
		Triggers:    req.Triggers,
		Actions:     req.Actions,
	}

	created, err := h.definitionService.Create(c.Context(), def)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.definitionService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	enabled := existing.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	def := &models.WorkflowDefinition{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Enabled:     enabled,
		Triggers:    req.Triggers,
		Actions:     req.Actions,
	}

	updated, err := h.definitionService.Update(c.Context(), def)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.definitionService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetWorkflowEnabled(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req SetEnabledRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.definitionService.SetEnabled(c.Context(), id, *req.Enabled)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

// TriggerWorkflow publishes a manual trigger for the definition. The worker
// starts the instance; condition evaluation is skipped.
func (h *APIHandlers) TriggerWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	def, err := h.definitionService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req TriggerWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	payload := map[string]any{"definition_id": def.ID}
	if req.TriggerData != nil {
		payload["trigger_data"] = req.TriggerData
	}

	event := events.NewDomainEvent(events.ManualTriggerType, def.TenantID, payload)
	if err := h.eventBus.Publish(c.Context(), def.ID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id":      event.ID,
		"definition_id": def.ID,
		"status":        "trigger_requested",
	})
}

func (h *APIHandlers) GetWorkflowInstances(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.definitionService.Get(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	opts := persistence.ListInstancesOptions{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid offset parameter")
		}

		opts.Offset = offset
	}

	instances, err := h.tracker.ListByDefinition(c.Context(), id, opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"instances": instances,
		"count":     len(instances),
	})
}

func (h *APIHandlers) GetWorkflowStats(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.definitionService.Get(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	stats, err := h.tracker.Stats(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.tracker.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) CancelInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	if err := h.tracker.Cancel(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	instance, err := h.tracker.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(instance)
}

// IngestEvent accepts a domain event over HTTP and forwards it to the event
// bus for trigger evaluation.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req IngestEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.NewDomainEvent(req.Type, req.TenantID, req.Payload)
	if err := h.eventBus.Publish(c.Context(), event.ID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID,
		"status":   "accepted",
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()

	repositoryCheck := "ok"

	repOk := true
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		repositoryCheck = err.Error()
		repOk = false
	}

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
